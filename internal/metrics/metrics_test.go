package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordItem(t *testing.T) {
	before := testutil.ToFloat64(ItemsTotal.WithLabelValues("queued"))
	RecordItem("queued")
	RecordItem("queued")
	assert.Equal(t, before+2, testutil.ToFloat64(ItemsTotal.WithLabelValues("queued")))
}

func TestRecordRun(t *testing.T) {
	runs := testutil.ToFloat64(RunsTotal)
	promoted := testutil.ToFloat64(PromotedTotal)
	RecordRun(3, 7)
	assert.Equal(t, runs+1, testutil.ToFloat64(RunsTotal))
	assert.Equal(t, promoted+3, testutil.ToFloat64(PromotedTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(QueueLength))

	RecordRun(0, -1)
	assert.Equal(t, 7.0, testutil.ToFloat64(QueueLength))
}

func TestRecordFeed(t *testing.T) {
	before := testutil.ToFloat64(FeedFetchTotal.WithLabelValues("failed"))
	RecordFeed(true)
	assert.Equal(t, before+1, testutil.ToFloat64(FeedFetchTotal.WithLabelValues("failed")))
}
