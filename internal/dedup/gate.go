// Package dedup answers whether a source link is already represented in the
// curation queue or among posts.
package dedup

import (
	"context"
	"log/slog"

	"curator/internal/docstore"
)

// Verdict is the result of a dedup check.
type Verdict int

const (
	Novel Verdict = iota
	Duplicate
	// Unknown means the lookup failed. Callers must treat it as Duplicate.
	Unknown
)

func (v Verdict) String() string {
	switch v {
	case Novel:
		return "novel"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Blocks reports whether the item must be dropped.
func (v Verdict) Blocks() bool { return v != Novel }

// Gate is a read-only view over queue and post documents.
type Gate struct {
	store docstore.Store
}

func NewGate(store docstore.Store) *Gate {
	return &Gate{store: store}
}

// Seen reports whether a queue entry, post or news item with this exact
// link exists.
func (g *Gate) Seen(ctx context.Context, link string) (bool, error) {
	n, err := g.store.Count(ctx, docstore.Filter{
		Kinds: []string{docstore.KindQueue, docstore.KindPost, docstore.KindNews},
		Link:  link,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Check is the total form of Seen.
func (g *Gate) Check(ctx context.Context, link string) Verdict {
	seen, err := g.Seen(ctx, link)
	if err != nil {
		slog.Warn("dedup: lookup failed, assuming duplicate", "link", link, "error", err)
		return Unknown
	}
	if seen {
		return Duplicate
	}
	return Novel
}
