// Package pipeline drives one curation run: ingest every feed, then promote
// a bounded number of queue entries.
package pipeline

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"curator/internal/ai"
	"curator/internal/config"
	"curator/internal/dedup"
	"curator/internal/feeds"
	"curator/internal/metrics"
	"curator/internal/model"
	"curator/internal/publish"

	"golang.org/x/sync/errgroup"
)

// Feeds supplies the per-run feed order and fetches single feeds.
type Feeds interface {
	Order(rng *rand.Rand) []string
	Fetch(ctx context.Context, feedURL string) feeds.Result
}

type Gate interface {
	Check(ctx context.Context, link string) dedup.Verdict
}

// Classifier bounds its own backend call; it receives the run context.
type Classifier interface {
	Classify(ctx context.Context, item model.FeedItem) ai.Outcome
}

type Queue interface {
	InsertIfAbsent(ctx context.Context, entry model.QueueEntry) (bool, error)
	Len(ctx context.Context) (int, error)
}

type Promoter interface {
	PromoteWithin(ctx context.Context, quota *publish.Quota) (int, error)
}

// Enricher fetches page text for items that arrive without a snippet.
type Enricher interface {
	PageText(ctx context.Context, pageURL string) (string, error)
}

// Deps are the collaborators of an Orchestrator. Enricher is optional.
type Deps struct {
	Feeds      Feeds
	Gate       Gate
	Classifier Classifier
	Queue      Queue
	Promoter   Promoter
	Enricher   Enricher
}

// Options bound a run.
type Options struct {
	PromoteLimit int
	Workers      int
	IOTimeout    time.Duration
}

type Orchestrator struct {
	deps Deps
	opts Options
	rng  func() *rand.Rand
	now  func() time.Time
}

func New(deps Deps, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Workers > config.MaxWorkers {
		opts.Workers = config.MaxWorkers
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 30 * time.Second
	}
	if opts.PromoteLimit < 0 {
		opts.PromoteLimit = 0
	}
	return &Orchestrator{deps: deps, opts: opts, rng: seededRand, now: time.Now}
}

// Run performs ingestion for every feed followed by promotion. Per-feed and
// per-item failures are recorded in the report, never returned.
func (o *Orchestrator) Run(ctx context.Context) Report {
	rc := newRunContext(o.deps.Feeds.Order(o.rng()), o.opts.PromoteLimit, o.now())
	log := slog.With("run_id", rc.ID)
	log.Info("pipeline: run started", "feeds", len(rc.Feeds), "promote_limit", rc.Quota.Max(), "workers", o.opts.Workers)

	t := o.ingest(ctx, rc)

	rep := Report{
		RunID:       rc.ID,
		StartedAt:   rc.StartedAt,
		Feeds:       len(rc.Feeds),
		FeedsFailed: t.feedsFailed,
		Items:       t.items,
		QueueLen:    -1,
	}
	if rep.Items == nil {
		rep.Items = map[ItemOutcome]int{}
	}

	if ctx.Err() == nil {
		pctx, cancel := context.WithTimeout(ctx, PromotionTimeout(o.opts.IOTimeout, rc.Quota.Max()))
		rep.Promoted, rep.PromoteErr = o.deps.Promoter.PromoteWithin(pctx, rc.Quota)
		cancel()
		if rep.PromoteErr != nil {
			log.Error("pipeline: promotion failed", "error", rep.PromoteErr)
		}

		lctx, cancel := context.WithTimeout(ctx, o.opts.IOTimeout)
		if n, err := o.deps.Queue.Len(lctx); err == nil {
			rep.QueueLen = n
		}
		cancel()
	}

	rep.Duration = o.now().Sub(rc.StartedAt)
	metrics.RecordRun(rep.Promoted, rep.QueueLen)
	log.Info("pipeline: run finished",
		"items", rep.Total(),
		"queued", rep.Count(OutcomeQueued),
		"feeds_failed", rep.FeedsFailed,
		"promoted", rep.Promoted,
		"duration", rep.Duration,
	)
	return rep
}

// PromotionTimeout bounds a promotion of up to limit entries: each entry
// costs at most two lookups, one create and one delete.
func PromotionTimeout(ioTimeout time.Duration, limit int) time.Duration {
	if limit < 0 {
		limit = 0
	}
	return ioTimeout * time.Duration(4*limit+1)
}

func (o *Orchestrator) ingest(ctx context.Context, rc *RunContext) *tally {
	t := &tally{}
	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for _, feedURL := range rc.Feeds {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o.processFeed(ctx, rc, feedURL, t)
			return nil
		})
	}
	_ = g.Wait()
	return t
}

// processFeed handles the items of one feed sequentially.
func (o *Orchestrator) processFeed(ctx context.Context, rc *RunContext, feedURL string, t *tally) {
	fctx, cancel := context.WithTimeout(ctx, o.opts.IOTimeout)
	res := o.deps.Feeds.Fetch(fctx, feedURL)
	cancel()
	metrics.RecordFeed(res.Err != nil)
	if res.Err != nil {
		slog.Warn("pipeline: feed skipped", "run_id", rc.ID, "feed", feedURL, "error", res.Err)
		t.feedFailed()
		return
	}
	for _, item := range res.Items {
		if ctx.Err() != nil {
			return
		}
		outcome := o.processItem(ctx, rc, item)
		metrics.RecordItem(string(outcome))
		t.item(outcome)
	}
}

func (o *Orchestrator) processItem(ctx context.Context, rc *RunContext, item model.FeedItem) ItemOutcome {
	log := slog.With("run_id", rc.ID, "link", item.Link)

	dctx, cancel := context.WithTimeout(ctx, o.opts.IOTimeout)
	verdict := o.deps.Gate.Check(dctx, item.Link)
	cancel()
	switch verdict {
	case dedup.Duplicate:
		log.Debug("pipeline: duplicate")
		return OutcomeDuplicate
	case dedup.Unknown:
		return OutcomeDedupUnknown
	}

	if strings.TrimSpace(item.Summary) == "" && o.deps.Enricher != nil {
		ectx, cancel := context.WithTimeout(ctx, o.opts.IOTimeout)
		text, err := o.deps.Enricher.PageText(ectx, item.Link)
		cancel()
		if err != nil {
			log.Warn("pipeline: enrichment failed", "error", err)
		} else {
			item.Summary = text
		}
	}

	// Classify paces calls and applies its own request timeout.
	start := time.Now()
	out := o.deps.Classifier.Classify(ctx, item)
	metrics.RecordClassify(out.Status.String(), time.Since(start).Seconds())

	switch out.Status {
	case ai.Skipped:
		log.Info("pipeline: skipped by classifier", "title", item.Title)
		return OutcomeSkipped
	case ai.Approved:
	default:
		log.Warn("pipeline: classification failed", "error", out.Err)
		return OutcomeClassifyFailed
	}

	entry := model.QueueEntry{
		Title:      out.Result.Title,
		Body:       out.Result.Body,
		Link:       item.Link,
		SourceHost: SourceHost(item),
		Format:     out.Result.Format,
		Tags:       out.Result.Tags,
		AIJSON:     out.Raw,
	}
	qctx, cancel := context.WithTimeout(ctx, o.opts.IOTimeout)
	inserted, err := o.deps.Queue.InsertIfAbsent(qctx, entry)
	cancel()
	if err != nil {
		log.Error("pipeline: queue insert failed", "error", err)
		return OutcomeQueueFailed
	}
	if !inserted {
		return OutcomeAlreadyQueued
	}
	log.Info("pipeline: queued", "title", entry.Title, "format", entry.Format)
	return OutcomeQueued
}

// SourceHost names the publication an item came from: the host of its link,
// falling back to the feed host, without a leading "www.".
func SourceHost(item model.FeedItem) string {
	for _, raw := range []string{item.Link, item.SourceFeedURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	return ""
}
