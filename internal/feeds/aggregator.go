// Package feeds fetches syndication feeds and flattens them into feed items.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"curator/internal/model"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

// Result is the outcome of fetching one feed. Err is set when the feed could
// not be fetched or parsed; Items is then empty.
type Result struct {
	FeedURL string
	Items   []model.FeedItem
	Err     error
}

// Options tune an Aggregator.
type Options struct {
	ItemsPerFeed int
	UserAgent    string
	Timeout      time.Duration
	Client       *http.Client
}

// Aggregator fetches a static list of feeds, capped per feed.
type Aggregator struct {
	urls         []string
	itemsPerFeed int
	userAgent    string
	timeout      time.Duration
	client       *http.Client
	policy       *bluemonday.Policy
}

func NewAggregator(urls []string, opts Options) *Aggregator {
	if opts.ItemsPerFeed <= 0 {
		opts.ItemsPerFeed = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	return &Aggregator{
		urls:         append([]string(nil), urls...),
		itemsPerFeed: opts.ItemsPerFeed,
		userAgent:    opts.UserAgent,
		timeout:      opts.Timeout,
		client:       opts.Client,
		policy:       bluemonday.StrictPolicy(),
	}
}

// URLs returns the configured feed list in its static order.
func (a *Aggregator) URLs() []string {
	return append([]string(nil), a.urls...)
}

// Order returns the feed list uniformly shuffled with rng.
func (a *Aggregator) Order(rng *rand.Rand) []string {
	out := a.URLs()
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Fetch downloads and parses one feed. It never panics or retries; every
// failure is reported through Result.Err.
func (a *Aggregator) Fetch(ctx context.Context, feedURL string) Result {
	res := Result{FeedURL: feedURL}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// gofeed parsers keep per-parse state, so each fetch gets its own.
	fp := gofeed.NewParser()
	fp.Client = a.client
	if a.userAgent != "" {
		fp.UserAgent = a.userAgent
	}
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			err = fmt.Errorf("feed %s: http status %d", feedURL, httpErr.StatusCode)
		} else {
			err = fmt.Errorf("feed %s: %w", feedURL, err)
		}
		slog.Warn("feeds: fetch failed", "feed", feedURL, "error", err)
		res.Err = err
		return res
	}

	for _, it := range feed.Items {
		if len(res.Items) >= a.itemsPerFeed {
			break
		}
		if it == nil {
			continue
		}
		link := strings.TrimSpace(it.Link)
		if link == "" && len(it.Links) > 0 {
			link = strings.TrimSpace(it.Links[0])
		}
		if link == "" {
			continue
		}
		summary := a.plainText(it.Description)
		if summary == "" {
			summary = a.plainText(it.Content)
		}
		res.Items = append(res.Items, model.FeedItem{
			Title:         strings.TrimSpace(html.UnescapeString(it.Title)),
			Summary:       summary,
			Link:          link,
			SourceFeedURL: feedURL,
		})
	}
	slog.Info("feeds: fetched", "feed", feedURL, "title", feed.Title, "items", len(res.Items), "available", len(feed.Items))
	return res
}

// plainText strips markup and collapses whitespace.
func (a *Aggregator) plainText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	text := html.UnescapeString(a.policy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}
