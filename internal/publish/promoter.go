// Package publish promotes curation queue entries into draft posts.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"curator/internal/docstore"
	"curator/internal/model"

	"github.com/google/uuid"
)

// Queue is the subset of the curation queue the promoter needs.
type Queue interface {
	ListOldest(ctx context.Context, n int) ([]model.QueueEntry, error)
	Delete(ctx context.Context, id string) error
}

// Promoter turns the oldest queue entries into draft posts or news items.
type Promoter struct {
	queue  Queue
	store  docstore.Store
	target Target
	newID  func() string
	now    func() time.Time
}

// Option customizes a Promoter.
type Option func(*Promoter)

// WithTarget selects what entries are promoted into; the default is TargetPost.
func WithTarget(t Target) Option {
	return func(p *Promoter) { p.target = t }
}

func NewPromoter(queue Queue, store docstore.Store, opts ...Option) *Promoter {
	p := &Promoter{
		queue:  queue,
		store:  store,
		target: TargetPost,
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Promote promotes at most limit entries and returns how many succeeded.
func (p *Promoter) Promote(ctx context.Context, limit int) (int, error) {
	return p.PromoteWithin(ctx, NewQuota(limit))
}

// PromoteWithin promotes oldest entries while quota has room. Each entry is
// deleted from the queue only after its post was created; a failed create
// leaves the entry for a later call.
func (p *Promoter) PromoteWithin(ctx context.Context, quota *Quota) (int, error) {
	n := quota.Remaining()
	if n <= 0 {
		return 0, nil
	}
	entries, err := p.queue.ListOldest(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("promoter: list queue: %w", err)
	}
	promoted := 0
	for _, e := range entries {
		if !quota.Acquire() {
			break
		}
		created, err := p.promoteOne(ctx, e)
		if err != nil {
			quota.Release()
			slog.Error("promoter: entry kept in queue", "queue_id", e.ID, "link", e.Link, "error", err)
			continue
		}
		if !created {
			quota.Release()
			continue
		}
		promoted++
	}
	return promoted, nil
}

// promoteOne reports false without error when a post or news item for the
// link already exists; the leftover entry is then just removed.
func (p *Promoter) promoteOne(ctx context.Context, e model.QueueEntry) (bool, error) {
	posted, err := p.store.Count(ctx, docstore.Filter{Kinds: []string{docstore.KindPost, docstore.KindNews}, Link: e.Link})
	if err != nil {
		return false, fmt.Errorf("check existing post: %w", err)
	}
	if posted > 0 {
		slog.Warn("promoter: link already posted, dropping queue entry", "queue_id", e.ID, "link", e.Link)
		if err := p.queue.Delete(ctx, e.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	doc, err := p.build(e)
	if err != nil {
		return false, err
	}
	if err := p.store.Create(ctx, doc); err != nil {
		return false, fmt.Errorf("create %s: %w", doc.Kind, err)
	}
	slog.Info("promoter: document created", "id", doc.ID, "kind", doc.Kind, "queue_id", e.ID)
	if err := p.queue.Delete(ctx, e.ID); err != nil {
		// The next promotion finds the post by link and drops the entry.
		slog.Error("promoter: delete queue entry failed", "queue_id", e.ID, "id", doc.ID, "error", err)
	}
	return true, nil
}

// build renders e as a document of the promoter's target kind.
func (p *Promoter) build(e model.QueueEntry) (docstore.Document, error) {
	now := p.now()
	var (
		v   any
		doc docstore.Document
	)
	switch p.target {
	case TargetNews:
		item := BuildNewsItem(e, NewsPrefix+p.newID(), now)
		v = item
		doc = docstore.Document{ID: item.ID, Kind: docstore.KindNews, Link: item.Link, CreatedAt: item.Date}
	default:
		post := BuildPost(e, DraftPrefix+p.newID(), now)
		v = post
		doc = docstore.Document{ID: post.ID, Kind: docstore.KindPost, Link: post.Link, CreatedAt: post.PublishedAt}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return docstore.Document{}, err
	}
	doc.Data = data
	return doc, nil
}
