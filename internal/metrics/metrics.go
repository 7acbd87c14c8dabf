// Package metrics records queue-creation statistics in a per-run Prometheus registry.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/JakeFAU/epg-queue/internal/queue"
)

// Recorder implements queue.Observer. Each run gets its own registry so the pushed
// batch only carries that run's values.
type Recorder struct {
	registry *prometheus.Registry

	filesTotal          *prometheus.CounterVec
	channelsSkipped     prometheus.Counter
	channelErrors       prometheus.Counter
	items               prometheus.Gauge
	clusters            prometheus.Gauge
	clusterSize         prometheus.Histogram
	runDurationSeconds  prometheus.Gauge
	runsTotal           *prometheus.CounterVec
	lastSuccessUnixtime prometheus.Gauge
}

// NewRecorder registers the queue collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		filesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epg_queue_channel_files_total",
				Help: "Channel list files seen, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		channelsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "epg_queue_channels_skipped_total",
			Help: "Channels skipped for missing site, site_id or xmltv_id.",
		}),
		channelErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "epg_queue_channel_errors_total",
			Help: "Channels logged with an unknown xmltv_id.",
		}),
		items: factory.NewGauge(prometheus.GaugeOpts{
			Name: "epg_queue_items",
			Help: "Items in the stored queue.",
		}),
		clusters: factory.NewGauge(prometheus.GaugeOpts{
			Name: "epg_queue_clusters",
			Help: "Non-empty clusters in the stored queue.",
		}),
		clusterSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "epg_queue_cluster_size",
			Help:    "Items per cluster, including empty clusters.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		runDurationSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "epg_queue_run_duration_seconds",
			Help: "Wall time of the last queue creation run.",
		}),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epg_queue_runs_total",
				Help: "Queue creation runs, labeled by status.",
			},
			[]string{"status"},
		),
		lastSuccessUnixtime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "epg_queue_last_success_timestamp_seconds",
			Help: "Unix time the queue was last created successfully.",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveBuild records file and channel counters.
func (r *Recorder) ObserveBuild(stats queue.BuildStats) {
	r.filesTotal.WithLabelValues("scanned").Add(float64(stats.FilesScanned))
	r.filesTotal.WithLabelValues("no_site").Add(float64(stats.FilesNoSite))
	r.filesTotal.WithLabelValues("ignored").Add(float64(stats.FilesIgnored))
	r.channelsSkipped.Add(float64(stats.ChannelsSkipped))
	r.channelErrors.Add(float64(stats.ChannelErrors))
	r.items.Set(float64(stats.Items))
}

// ObserveClusters records the cluster size distribution.
func (r *Recorder) ObserveClusters(sizes []int) {
	nonEmpty := 0
	for _, size := range sizes {
		r.clusterSize.Observe(float64(size))
		if size > 0 {
			nonEmpty++
		}
	}
	r.clusters.Set(float64(nonEmpty))
}

// ObserveRun records the run outcome.
func (r *Recorder) ObserveRun(duration time.Duration, success bool) {
	r.runDurationSeconds.Set(duration.Seconds())
	if !success {
		r.runsTotal.WithLabelValues("failure").Inc()
		return
	}
	r.runsTotal.WithLabelValues("success").Inc()
	r.lastSuccessUnixtime.SetToCurrentTime()
}

// Push sends the recorded values to a Prometheus Pushgateway under job.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return fmt.Errorf("pushgateway url is required")
	}
	if err := push.New(gatewayURL, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
