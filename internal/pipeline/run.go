package pipeline

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"curator/internal/publish"

	"github.com/google/uuid"
)

// ItemOutcome is the terminal state of one feed item within a run.
type ItemOutcome string

const (
	OutcomeDuplicate      ItemOutcome = "duplicate"
	OutcomeDedupUnknown   ItemOutcome = "dedup_unknown"
	OutcomeClassifyFailed ItemOutcome = "classify_failed"
	OutcomeSkipped        ItemOutcome = "skipped"
	OutcomeQueued         ItemOutcome = "queued"
	OutcomeAlreadyQueued  ItemOutcome = "already_queued"
	OutcomeQueueFailed    ItemOutcome = "queue_failed"
)

// RunContext is the state of a single run. It is created when the run starts
// and dropped when it ends; nothing in it outlives the run.
type RunContext struct {
	ID        string
	StartedAt time.Time
	Feeds     []string
	Quota     *publish.Quota
}

func newRunContext(feeds []string, promoteLimit int, now time.Time) *RunContext {
	return &RunContext{
		ID:        uuid.NewString(),
		StartedAt: now,
		Feeds:     feeds,
		Quota:     publish.NewQuota(promoteLimit),
	}
}

// seededRand returns a generator for shuffling the feed order of one run.
func seededRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Report summarizes a finished run.
type Report struct {
	RunID       string
	StartedAt   time.Time
	Duration    time.Duration
	Feeds       int
	FeedsFailed int
	Items       map[ItemOutcome]int
	Promoted    int
	PromoteErr  error
	// QueueLen is the queue size after promotion, or -1 when unknown.
	QueueLen int
}

// Count returns how many items ended with outcome o.
func (r Report) Count(o ItemOutcome) int { return r.Items[o] }

// Total is the number of items seen across all feeds.
func (r Report) Total() int {
	n := 0
	for _, c := range r.Items {
		n += c
	}
	return n
}

func (r Report) String() string {
	keys := make([]string, 0, len(r.Items))
	for k := range r.Items {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: feeds=%d failed=%d items=%d promoted=%d", r.RunID, r.Feeds, r.FeedsFailed, r.Total(), r.Promoted)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%d", k, r.Items[ItemOutcome(k)])
	}
	if r.QueueLen >= 0 {
		fmt.Fprintf(&b, " queue=%d", r.QueueLen)
	}
	return b.String()
}

// tally collects per-feed results from concurrent workers.
type tally struct {
	mu          sync.Mutex
	items       map[ItemOutcome]int
	feedsFailed int
}

func (t *tally) item(o ItemOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.items == nil {
		t.items = map[ItemOutcome]int{}
	}
	t.items[o]++
}

func (t *tally) feedFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.feedsFailed++
}
