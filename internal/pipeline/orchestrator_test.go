package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"curator/internal/ai"
	"curator/internal/curation"
	"curator/internal/dedup"
	"curator/internal/docstore"
	"curator/internal/feeds"
	"curator/internal/model"
	"curator/internal/publish"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssTemplate = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>%[1]s</title>
<item><title>%[1]s one</title><link>https://www.%[1]s.example/1</link><description>first &lt;b&gt;story&lt;/b&gt;</description></item>
<item><title>%[1]s two</title><link>https://www.%[1]s.example/2</link><description>second story</description></item>
<item><title>%[1]s three</title><link>https://www.%[1]s.example/3</link><description>third story</description></item>
</channel></rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/alpha", "/beta", "/gamma":
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprintf(w, rssTemplate, r.URL.Path[1:])
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprint(w, "<not-a-feed")
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fakeClassifier approves everything except links in skip, and counts calls
// per link.
type fakeClassifier struct {
	mu    sync.Mutex
	calls map[string]int
	skip  map[string]bool
	fail  map[string]bool
	raw   string
}

func newFakeClassifier() *fakeClassifier {
	return &fakeClassifier{calls: map[string]int{}, skip: map[string]bool{}, fail: map[string]bool{}}
}

func (c *fakeClassifier) Classify(_ context.Context, item model.FeedItem) ai.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[item.Link]++
	switch {
	case c.fail[item.Link]:
		return ai.Outcome{Status: ai.Failed, Err: errors.New("backend down")}
	case c.skip[item.Link]:
		return ai.Outcome{Status: ai.Skipped, Result: model.Classification{Skip: true, Title: "ignored"}}
	}
	raw := c.raw
	if raw == "" {
		raw = `{"skip":false,"title":"Curated ` + item.Title + `","body":"Body of ` + item.Title + `","tags":["Noise"],"format":"breaking"}`
	}
	return ai.Decide(raw, item)
}

func (c *fakeClassifier) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *fakeClassifier) count(link string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[link]
}

type harness struct {
	store      docstore.Store
	queue      *curation.Queue
	classifier *fakeClassifier
	orch       *Orchestrator
}

func newHarness(t *testing.T, srv *httptest.Server, paths []string, opts Options) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := docstore.NewRedisStore(rdb, "test")

	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		urls = append(urls, srv.URL+p)
	}
	q := curation.NewQueue(store)
	c := newFakeClassifier()
	o := New(Deps{
		Feeds:      feeds.NewAggregator(urls, feeds.Options{ItemsPerFeed: 2, UserAgent: "curator-test", Timeout: 5 * time.Second}),
		Gate:       dedup.NewGate(store),
		Classifier: c,
		Queue:      q,
		Promoter:   publish.NewPromoter(q, store),
	}, opts)
	o.rng = func() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }
	return &harness{store: store, queue: q, classifier: c, orch: o}
}

func (h *harness) posts(t *testing.T) []docstore.Document {
	t.Helper()
	docs, err := h.store.Query(context.Background(), docstore.Filter{Kinds: []string{docstore.KindPost}})
	require.NoError(t, err)
	return docs
}

func TestRunIngestsThenPromotes(t *testing.T) {
	srv := feedServer(t)
	h := newHarness(t, srv, []string{"/alpha", "/beta"}, Options{PromoteLimit: 1})

	rep := h.orch.Run(context.Background())
	assert.Equal(t, 2, rep.Feeds)
	assert.Equal(t, 0, rep.FeedsFailed)
	assert.Equal(t, 4, rep.Count(OutcomeQueued))
	assert.Equal(t, 4, rep.Total())
	assert.Equal(t, 1, rep.Promoted)
	assert.Equal(t, 3, rep.QueueLen)
	assert.NotEmpty(t, rep.RunID)

	// items beyond the per-feed cap are never seen
	assert.Equal(t, 0, h.classifier.count("https://www.alpha.example/3"))

	entries, err := h.queue.ListOldest(context.Background(), 10)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, model.FormatNews, e.Format)
		assert.Equal(t, []string{"Noise"}, e.Tags)
		assert.Contains(t, []string{"alpha.example", "beta.example"}, e.SourceHost)
		assert.Contains(t, e.AIJSON, `"format":"breaking"`)
	}
	require.Len(t, h.posts(t), 1)
}

func TestRunIsIdempotent(t *testing.T) {
	srv := feedServer(t)
	h := newHarness(t, srv, []string{"/alpha", "/beta"}, Options{PromoteLimit: 0})

	first := h.orch.Run(context.Background())
	require.Equal(t, 4, first.Count(OutcomeQueued))
	require.Equal(t, 4, h.classifier.total())

	second := h.orch.Run(context.Background())
	assert.Equal(t, 0, second.Count(OutcomeQueued))
	assert.Equal(t, 4, second.Count(OutcomeDuplicate))
	assert.Equal(t, 4, h.classifier.total(), "no classification for known links")

	n, err := h.queue.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPostedLinkIsNeverReclassified(t *testing.T) {
	srv := feedServer(t)
	h := newHarness(t, srv, []string{"/alpha"}, Options{PromoteLimit: 5})

	first := h.orch.Run(context.Background())
	require.Equal(t, 2, first.Promoted)
	require.Len(t, h.posts(t), 2)
	n, err := h.queue.Len(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	second := h.orch.Run(context.Background())
	assert.Equal(t, 2, second.Count(OutcomeDuplicate))
	assert.Equal(t, 1, h.classifier.count("https://www.alpha.example/1"))
	assert.Equal(t, 1, h.classifier.count("https://www.alpha.example/2"))
	assert.Equal(t, 0, second.Promoted)
	assert.Len(t, h.posts(t), 2)
}

func TestSkipNeverQueues(t *testing.T) {
	srv := feedServer(t)
	h := newHarness(t, srv, []string{"/alpha"}, Options{PromoteLimit: 5})
	h.classifier.skip["https://www.alpha.example/1"] = true

	rep := h.orch.Run(context.Background())
	assert.Equal(t, 1, rep.Count(OutcomeSkipped))
	assert.Equal(t, 1, rep.Count(OutcomeQueued))
	assert.Equal(t, 1, rep.Promoted)

	for _, d := range h.posts(t) {
		assert.NotEqual(t, "https://www.alpha.example/1", d.Link)
	}
	seen, err := dedup.NewGate(h.store).Seen(context.Background(), "https://www.alpha.example/1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestFeedFailureIsIsolated(t *testing.T) {
	srv := feedServer(t)
	h := newHarness(t, srv, []string{"/broken", "/alpha", "/garbage", "/beta"}, Options{PromoteLimit: 0, Workers: 3})

	rep := h.orch.Run(context.Background())
	assert.Equal(t, 4, rep.Feeds)
	assert.Equal(t, 2, rep.FeedsFailed)
	assert.Equal(t, 4, rep.Count(OutcomeQueued))
}

func TestClassifyFailureLeavesItemForNextRun(t *testing.T) {
	srv := feedServer(t)
	h := newHarness(t, srv, []string{"/alpha"}, Options{PromoteLimit: 0})
	link := "https://www.alpha.example/2"
	h.classifier.fail[link] = true

	rep := h.orch.Run(context.Background())
	assert.Equal(t, 1, rep.Count(OutcomeClassifyFailed))
	assert.Equal(t, 1, rep.Count(OutcomeQueued))

	delete(h.classifier.fail, link)
	rep = h.orch.Run(context.Background())
	assert.Equal(t, 1, rep.Count(OutcomeQueued))
	assert.Equal(t, 1, rep.Count(OutcomeDuplicate))
	assert.Equal(t, 2, h.classifier.count(link))
}

func TestQuotaAcrossWorkers(t *testing.T) {
	srv := feedServer(t)
	h := newHarness(t, srv, []string{"/alpha", "/beta", "/gamma"}, Options{PromoteLimit: 3, Workers: 4})

	rep := h.orch.Run(context.Background())
	assert.Equal(t, 6, rep.Count(OutcomeQueued))
	assert.Equal(t, 3, rep.Promoted)
	assert.Equal(t, 3, rep.QueueLen)
	assert.Len(t, h.posts(t), 3)
}

// failingGate simulates an unreachable store for dedup lookups.
type failingGate struct{}

func (failingGate) Check(context.Context, string) dedup.Verdict { return dedup.Unknown }

func TestUnknownDedupSkipsClassification(t *testing.T) {
	srv := feedServer(t)
	h := newHarness(t, srv, []string{"/alpha"}, Options{})
	h.orch.deps.Gate = failingGate{}

	rep := h.orch.Run(context.Background())
	assert.Equal(t, 2, rep.Count(OutcomeDedupUnknown))
	assert.Zero(t, h.classifier.total())
}

type stubEnricher struct{ text string }

func (e stubEnricher) PageText(context.Context, string) (string, error) { return e.text, nil }

// recordingClassifier keeps the items it was asked about.
type recordingClassifier struct {
	mu    sync.Mutex
	items []model.FeedItem
}

func (c *recordingClassifier) Classify(_ context.Context, item model.FeedItem) ai.Outcome {
	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()
	return ai.Outcome{Status: ai.Skipped}
}

func TestEnricherFillsMissingSnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>
<item><title>bare</title><link>https://example.com/bare</link></item>
<item><title>full</title><link>https://example.com/full</link><description>has text</description></item>
</channel></rss>`)
	}))
	defer srv.Close()
	h := newHarness(t, srv, []string{"/"}, Options{})
	rec := &recordingClassifier{}
	h.orch.deps.Classifier = rec
	h.orch.deps.Enricher = stubEnricher{text: "scraped page"}

	h.orch.Run(context.Background())
	require.Len(t, rec.items, 2)
	sort.Slice(rec.items, func(i, j int) bool { return rec.items[i].Link < rec.items[j].Link })
	assert.Equal(t, "scraped page", rec.items[0].Summary)
	assert.Equal(t, "has text", rec.items[1].Summary)
}

func TestCancelledRunSkipsPromotion(t *testing.T) {
	srv := feedServer(t)
	h := newHarness(t, srv, []string{"/alpha"}, Options{PromoteLimit: 3})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := h.orch.Run(ctx)
	assert.Zero(t, rep.Promoted)
	assert.Zero(t, h.classifier.total())
	assert.Equal(t, -1, rep.QueueLen)
}

func TestSourceHost(t *testing.T) {
	assert.Equal(t, "thequietus.com", SourceHost(model.FeedItem{Link: "https://www.thequietus.com/a"}))
	assert.Equal(t, "feeds.example", SourceHost(model.FeedItem{Link: "not a url", SourceFeedURL: "https://feeds.example/rss"}))
	assert.Equal(t, "", SourceHost(model.FeedItem{}))
}

func TestReportString(t *testing.T) {
	r := Report{RunID: "r1", Feeds: 2, Items: map[ItemOutcome]int{OutcomeQueued: 2, OutcomeDuplicate: 1}, Promoted: 1, QueueLen: 4}
	assert.Equal(t, "run r1: feeds=2 failed=0 items=3 promoted=1 duplicate=1 queued=2 queue=4", r.String())
}

// flakyQueue fails inserts for the listed links.
type flakyQueue struct {
	*curation.Queue
	fail map[string]bool
}

func (q flakyQueue) InsertIfAbsent(ctx context.Context, e model.QueueEntry) (bool, error) {
	if q.fail[e.Link] {
		return false, errors.New("store unavailable")
	}
	return q.Queue.InsertIfAbsent(ctx, e)
}

func TestQueueInsertFailureIsContained(t *testing.T) {
	srv := feedServer(t)
	h := newHarness(t, srv, []string{"/alpha", "/beta"}, Options{PromoteLimit: 2})
	lost := "https://www.alpha.example/1"
	h.orch.deps.Queue = flakyQueue{Queue: h.queue, fail: map[string]bool{lost: true}}

	rep := h.orch.Run(context.Background())
	assert.Equal(t, 1, rep.Count(OutcomeQueueFailed))
	assert.Equal(t, 3, rep.Count(OutcomeQueued))
	assert.Equal(t, 2, rep.Promoted)
	assert.Equal(t, 1, rep.QueueLen)

	seen, err := dedup.NewGate(h.store).Seen(context.Background(), lost)
	require.NoError(t, err)
	assert.False(t, seen, "a failed insert leaves nothing behind")
}

// slowClassifier waits before answering, honouring cancellation.
type slowClassifier struct{ delay time.Duration }

func (c slowClassifier) Classify(ctx context.Context, item model.FeedItem) ai.Outcome {
	select {
	case <-ctx.Done():
		return ai.Outcome{Status: ai.Failed, Err: ctx.Err()}
	case <-time.After(c.delay):
	}
	return ai.Decide(`{"skip":false,"title":"t","body":"b"}`, item)
}

func TestClassificationIsNotCutByIOTimeout(t *testing.T) {
	srv := feedServer(t)
	h := newHarness(t, srv, []string{"/alpha"}, Options{IOTimeout: 200 * time.Millisecond})
	h.orch.deps.Classifier = slowClassifier{delay: 300 * time.Millisecond}

	rep := h.orch.Run(context.Background())
	assert.Zero(t, rep.Count(OutcomeClassifyFailed))
	assert.Equal(t, 2, rep.Count(OutcomeQueued))
}

func TestPromotionTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, PromotionTimeout(30*time.Second, 0))
	assert.Equal(t, 13*time.Second, PromotionTimeout(time.Second, 3))
	assert.Equal(t, time.Second, PromotionTimeout(time.Second, -2))
}
