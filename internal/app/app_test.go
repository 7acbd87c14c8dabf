package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/epg-queue/internal/app"
	"github.com/JakeFAU/epg-queue/internal/config"
	memorypub "github.com/JakeFAU/epg-queue/internal/publisher/memory"
	"github.com/JakeFAU/epg-queue/internal/queue"
	"github.com/JakeFAU/epg-queue/internal/storage/memory"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// fixture lays out a two-site tree and returns a config using the memory backends.
func fixture(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sites", "a.tv", "a.tv_us.channels.xml"), `<?xml version="1.0"?>
<channels>
  <channel site="a.tv" site_id="1" lang="en" xmltv_id="A.us">A</channel>
  <channel site="a.tv" site_id="2" lang="en" xmltv_id="Unknown.us">?</channel>
</channels>`)
	writeFile(t, filepath.Join(root, "sites", "a.tv", "a.tv.config.js"), `module.exports = { site: 'a.tv' }`)
	writeFile(t, filepath.Join(root, "sites", "b.tv", "b.tv.channels.xml"), `<?xml version="1.0"?>
<channels>
  <channel site="b.tv" site_id="x" lang="fr" xmltv_id="B.fr">B</channel>
</channels>`)
	writeFile(t, filepath.Join(root, "sites", "b.tv", "b.tv.config.js"), `module.exports = { site: 'b.tv' }`)
	writeFile(t, filepath.Join(root, "channels.json"), `[{"id":"A.us","name":"A"},{"id":"B.fr","name":"B"}]`)

	return config.Config{
		ChannelsPath: filepath.ToSlash(root) + "/sites/**/*.channels.xml",
		LogsDir:      filepath.Join(root, "logs"),
		Queue:        config.QueueConfig{MaxClusters: 2, Days: 2, Seed: 1, Date: "2024-03-09"},
		Catalog:      config.CatalogConfig{Source: filepath.Join(root, "channels.json"), TimeoutSeconds: 5},
		Store:        config.StoreConfig{Backend: config.StoreMemory},
		Snapshot:     config.SnapshotConfig{Backend: config.BackendMemory, Prefix: "queues"},
		Publisher:    config.PublisherConfig{Backend: config.BackendMemory, TopicName: "clusters"},
		Metrics:      config.MetricsConfig{Job: "epg_create_queue"},
	}
}

func TestNewAppRunsPipeline(t *testing.T) {
	t.Parallel()

	cfg := fixture(t)
	a, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Equal(t, 2, a.Catalog().Len())
	require.IsType(t, &memory.QueueStore{}, a.Store())

	res, err := a.Creator().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Items)
	assert.Equal(t, []int{2, 2}, res.ClusterSizes)
	assert.NotEmpty(t, res.SnapshotURI)
	assert.True(t, strings.HasPrefix(res.SnapshotSum, "sha256:"))

	items := a.Store().(*memory.QueueStore).Items()
	require.Len(t, items, 4)
	assert.Equal(t, "A.us", items[0].Channel.XMLTVID)
	assert.Equal(t, "2024-03-09T00:00:00.000Z", items[0].Date)
	assert.Equal(t, "2024-03-10T00:00:00.000Z", items[1].Date)
	assert.Equal(t, []string{"us/a.tv"}, items[0].Groups)
	assert.Equal(t, "B.fr", items[3].Channel.XMLTVID)
	assert.Equal(t, []string{"null/b.tv"}, items[3].Groups)

	msgs := a.Publisher().(*memorypub.Publisher).Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "clusters", msgs[0].Topic)

	data, err := os.ReadFile(filepath.Join(cfg.LogsDir, "errors", "us", "a.tv.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"xmltv_id":"Unknown.us"`)
}

func TestPinnedDateKeepsWallClockForRun(t *testing.T) {
	t.Parallel()

	cfg := fixture(t)
	a, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	before := time.Now().UTC()
	_, err = a.Creator().Run(context.Background())
	require.NoError(t, err)
	after := time.Now().UTC()

	items := a.Store().(*memory.QueueStore).Items()
	require.NotEmpty(t, items)
	assert.Equal(t, "2024-03-09T00:00:00.000Z", items[0].Date)

	msgs := a.Publisher().(*memorypub.Publisher).Messages()
	require.NotEmpty(t, msgs)
	for _, msg := range msgs {
		ready, ok := msg.Payload.(queue.ClusterReady)
		require.True(t, ok)
		assert.False(t, ready.CreatedAt.Before(before.Truncate(time.Second)), "created_at %s", ready.CreatedAt)
		assert.False(t, ready.CreatedAt.After(after), "created_at %s", ready.CreatedAt)
	}

	families, err := a.Metrics().Registry().Gather()
	require.NoError(t, err)
	var duration float64
	for _, mf := range families {
		if mf.GetName() == "epg_queue_run_duration_seconds" {
			duration = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Greater(t, duration, 0.0)
}

func TestSeededShuffleIsReproducible(t *testing.T) {
	t.Parallel()

	cfg := fixture(t)
	run := func() []queue.Item {
		a, err := app.NewApp(context.Background(), cfg, nil)
		require.NoError(t, err)
		defer a.Close()
		_, err = a.Creator().Run(context.Background())
		require.NoError(t, err)
		items := a.Store().(*memory.QueueStore).Items()
		for i := range items {
			items[i].ID = ""
		}
		return items
	}
	assert.Equal(t, run(), run())
}

func TestNewAppRedisBackend(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := fixture(t)
	cfg.Store = config.StoreConfig{Backend: config.StoreRedis, Redis: config.RedisConfig{Addr: mr.Addr(), Prefix: "t"}}

	a, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Creator().Run(context.Background())
	require.NoError(t, err)
	members, err := mr.Members("t:clusters")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestNewAppFileBackendAndLocalSnapshots(t *testing.T) {
	t.Parallel()

	cfg := fixture(t)
	dir := t.TempDir()
	cfg.Store = config.StoreConfig{Backend: config.StoreFile, File: config.FileConfig{Path: filepath.Join(dir, "queue.db")}}
	cfg.Snapshot = config.SnapshotConfig{Backend: config.BackendLocal, LocalDir: filepath.Join(dir, "snapshots"), Prefix: "queues"}
	cfg.Publisher = config.PublisherConfig{Backend: config.BackendNone}

	a, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Publisher())

	res, err := a.Creator().Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "queue.db"))
	assert.FileExists(t, filepath.Join(dir, "snapshots", "queues", res.RunID, "queue.ndjson"))
}

func TestNewAppFailures(t *testing.T) {
	t.Parallel()

	cfg := fixture(t)
	cfg.Catalog.Source = filepath.Join(t.TempDir(), "missing.json")
	_, err := app.NewApp(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "load catalog")

	cfg = fixture(t)
	cfg.Store.Backend = "mongo"
	_, err = app.NewApp(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "unknown store backend")

	cfg = fixture(t)
	cfg.Queue.Date = "tomorrow"
	_, err = app.NewApp(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "queue.date")
}

func TestPushMetrics(t *testing.T) {
	t.Parallel()

	var pushes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics/job/epg_create_queue" {
			pushes.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := fixture(t)
	a, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.PushMetrics(context.Background()), "no gateway configured is a no-op")
	assert.Zero(t, pushes.Load())

	cfg.Metrics.PushgatewayURL = srv.URL
	a2, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a2.Close()
	_, err = a2.Creator().Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, a2.PushMetrics(context.Background()))
	assert.Equal(t, int32(1), pushes.Load())
}
