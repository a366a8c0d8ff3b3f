// Package curation holds the durable FIFO of approved items awaiting promotion.
package curation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"curator/internal/docstore"
	"curator/internal/fingerprint"
	"curator/internal/model"
)

// Queue stores entries as queue documents keyed by the link fingerprint.
type Queue struct {
	store docstore.Store
	now   func() time.Time

	mu   sync.Mutex
	last time.Time
}

// Option customizes a Queue.
type Option func(*Queue)

// WithClock replaces the wall clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func NewQueue(store docstore.Store, opts ...Option) *Queue {
	q := &Queue{store: store, now: time.Now}
	for _, o := range opts {
		o(q)
	}
	return q
}

// stamp returns a UTC timestamp strictly greater than any previous one from
// this queue.
func (q *Queue) stamp() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.now().UTC()
	if !t.After(q.last) {
		t = q.last.Add(time.Microsecond)
	}
	q.last = t
	return t
}

// InsertIfAbsent stores entry under its fingerprint id. ID and CreatedAt are
// assigned here. A second insert for the same link is a no-op.
func (q *Queue) InsertIfAbsent(ctx context.Context, entry model.QueueEntry) (bool, error) {
	if entry.Link == "" {
		return false, errors.New("curation: entry without link")
	}
	entry.ID = fingerprint.QueueID(entry.Link)
	entry.CreatedAt = q.stamp()
	data, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	created, err := q.store.CreateIfAbsent(ctx, docstore.Document{
		ID:        entry.ID,
		Kind:      docstore.KindQueue,
		Link:      entry.Link,
		CreatedAt: entry.CreatedAt,
		Data:      data,
	})
	if err != nil {
		return false, fmt.Errorf("curation: insert %s: %w", entry.ID, err)
	}
	return created, nil
}

// ListOldest returns up to n entries by ascending CreatedAt, ties by id.
// Entries that cannot be decoded are logged and passed over.
func (q *Queue) ListOldest(ctx context.Context, n int) ([]model.QueueEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	want := n
	for {
		docs, err := q.store.Query(ctx, docstore.Filter{Kinds: []string{docstore.KindQueue}, Limit: want})
		if err != nil {
			return nil, fmt.Errorf("curation: list: %w", err)
		}
		entries := decodeEntries(docs)
		if len(entries) >= n || len(docs) < want {
			if len(entries) > n {
				entries = entries[:n]
			}
			return entries, nil
		}
		// read past the broken entries
		want = n + len(docs) - len(entries)
	}
}

// Delete removes an entry; unknown ids are ignored.
func (q *Queue) Delete(ctx context.Context, id string) error {
	if err := q.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("curation: delete %s: %w", id, err)
	}
	return nil
}

// Len returns the number of queued entries.
func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.store.Count(ctx, docstore.Filter{Kinds: []string{docstore.KindQueue}})
}

func decodeEntries(docs []docstore.Document) []model.QueueEntry {
	out := make([]model.QueueEntry, 0, len(docs))
	for _, d := range docs {
		var e model.QueueEntry
		if err := json.Unmarshal(d.Data, &e); err != nil {
			slog.Warn("curation: skipping undecodable queue entry", "id", d.ID, "error", err)
			continue
		}
		// the document envelope is authoritative
		e.ID = d.ID
		if !d.CreatedAt.IsZero() {
			e.CreatedAt = d.CreatedAt
		}
		if d.Link != "" {
			e.Link = d.Link
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
