package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCollector(t *testing.T) {
	c := NewCollector("tap_test", nil)

	c.RecordsExtracted("events", 3)
	c.RecordsExtracted("events", 2)
	c.RecordsExtracted("users", 1)
	c.StreamCompleted("events", StatusSuccess)
	c.StreamCompleted("users", StatusFailure)
	c.ObserveQuery("events", PhaseSync, 1500*time.Millisecond)
	c.SetBookmark("events", time.Unix(1577836800, 0))

	assert.Equal(t, 5.0, testutil.ToFloat64(c.recordsExtracted.WithLabelValues("events")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.streamsCompleted.WithLabelValues("users", StatusFailure)))
	assert.Equal(t, 1577836800.0, testutil.ToFloat64(c.bookmarkTime.WithLabelValues("events")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.queryDuration))

	snap, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []StreamCount{{"events", 5}, {"users", 1}}, snap)
}

func TestCollector_Independent(t *testing.T) {
	a := NewCollector("tap_test", nil)
	b := NewCollector("tap_test", nil)
	a.RecordsExtracted("events", 1)

	assert.Equal(t, 0.0, testutil.ToFloat64(b.recordsExtracted.WithLabelValues("events")))
}

func TestHandler(t *testing.T) {
	c := NewCollector("tap_test", nil)
	c.RecordsExtracted("events", 7)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tap_test_records_extracted_total{stream="events"} 7`)
}

func TestLogCounter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c := NewCollector("tap_test", zap.New(core))

	c.LogCounter(RecordCount, 10, map[string]string{"endpoint": "events"})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, `METRIC: {"type":"counter","metric":"record_count","value":10,"tags":{"endpoint":"events"}}`, entries[0].Message)
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	first := timer.Stop()
	assert.GreaterOrEqual(t, timer.Stop(), first)
}
