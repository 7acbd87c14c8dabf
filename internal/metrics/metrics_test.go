package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/epg-queue/internal/queue"
)

func TestRecorderObservesBuildAndClusters(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	rec.ObserveBuild(queue.BuildStats{
		FilesScanned:    4,
		FilesNoSite:     1,
		FilesIgnored:    2,
		ChannelsSkipped: 3,
		ChannelErrors:   5,
		Items:           10,
	})
	rec.ObserveClusters([]int{4, 3, 3, 0})

	assert.InDelta(t, 4, testutil.ToFloat64(rec.filesTotal.WithLabelValues("scanned")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.filesTotal.WithLabelValues("no_site")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(rec.filesTotal.WithLabelValues("ignored")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(rec.channelsSkipped), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(rec.channelErrors), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(rec.items), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(rec.clusters), 0)

	n, err := testutil.GatherAndCount(rec.Registry(), "epg_queue_cluster_size")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecorderObservesRun(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	rec.ObserveRun(2*time.Second, false)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.runsTotal.WithLabelValues("failure")), 0)
	assert.Zero(t, testutil.ToFloat64(rec.lastSuccessUnixtime))

	rec.ObserveRun(1500*time.Millisecond, true)
	assert.InDelta(t, 1.5, testutil.ToFloat64(rec.runDurationSeconds), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.runsTotal.WithLabelValues("success")), 0)
	assert.Positive(t, testutil.ToFloat64(rec.lastSuccessUnixtime))
}

func TestRecordersAreIndependent(t *testing.T) {
	t.Parallel()

	a, b := NewRecorder(), NewRecorder()
	a.ObserveBuild(queue.BuildStats{Items: 7})
	assert.Zero(t, testutil.ToFloat64(b.items))
}

func TestPushSendsToGateway(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	rec := NewRecorder()
	rec.ObserveBuild(queue.BuildStats{Items: 3})
	require.NoError(t, rec.Push(context.Background(), srv.URL, "epg_create_queue"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/epg_create_queue", path)
	assert.NotEmpty(t, body)
}

func TestPushErrors(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	require.Error(t, rec.Push(context.Background(), "", "job"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	require.ErrorContains(t, rec.Push(context.Background(), srv.URL, "job"), "push metrics")
}
