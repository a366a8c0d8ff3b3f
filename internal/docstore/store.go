// Package docstore is a small document database abstraction: create, fetch,
// query by kind and source link, delete by id.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"
)

var (
	ErrNotFound = errors.New("docstore: document not found")
	ErrConflict = errors.New("docstore: document already exists")
)

// Document kinds.
const (
	KindQueue = "queue"
	KindPost  = "post"
	// KindNews is a short news card; the name matches the studio schema type.
	KindNews = "newsItem"
)

// Document is a typed JSON document. Link is kept outside Data so backends
// can index it for dedup lookups.
type Document struct {
	ID        string          `json:"_id"`
	Kind      string          `json:"_type"`
	Link      string          `json:"link,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Filter selects documents of any of Kinds, optionally restricted to an
// exact Link match. A positive Limit makes Query order by CreatedAt, ties by
// id, and return at most Limit documents; Newest reverses that order.
// Count ignores Limit and Newest.
type Filter struct {
	Kinds  []string
	Link   string
	Limit  int
	Newest bool
}

// Store is implemented by every backend.
type Store interface {
	// Create fails with ErrConflict when the id is taken.
	Create(ctx context.Context, doc Document) error
	// CreateIfAbsent reports whether the document was written.
	CreateIfAbsent(ctx context.Context, doc Document) (bool, error)
	Get(ctx context.Context, id string) (Document, error)
	// Query returns matching documents ordered by id, or by creation time
	// when f.Limit is set. Undecodable documents are skipped.
	Query(ctx context.Context, f Filter) ([]Document, error)
	Count(ctx context.Context, f Filter) (int, error)
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

func validate(doc Document) error {
	if doc.ID == "" {
		return errors.New("docstore: empty document id")
	}
	if doc.Kind == "" {
		return errors.New("docstore: empty document kind")
	}
	return nil
}

// sortByCreated orders docs oldest first, ties by id, or the exact reverse
// when newest is set.
func sortByCreated(docs []Document, newest bool) {
	sort.Slice(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if newest {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func limitDocs(docs []Document, f Filter) []Document {
	if f.Limit <= 0 {
		return docs
	}
	sortByCreated(docs, f.Newest)
	if len(docs) > f.Limit {
		docs = docs[:f.Limit]
	}
	return docs
}
