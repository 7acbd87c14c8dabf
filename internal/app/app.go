// Package app initializes and holds the services a queue run needs, acting as a
// dependency injection container.
package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"

	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/epg-queue/internal/catalog"
	"github.com/JakeFAU/epg-queue/internal/clock/system"
	"github.com/JakeFAU/epg-queue/internal/config"
	"github.com/JakeFAU/epg-queue/internal/errlog"
	"github.com/JakeFAU/epg-queue/internal/hash/sha256"
	"github.com/JakeFAU/epg-queue/internal/id/uuid"
	"github.com/JakeFAU/epg-queue/internal/metrics"
	memorypub "github.com/JakeFAU/epg-queue/internal/publisher/memory"
	"github.com/JakeFAU/epg-queue/internal/publisher/pubsub"
	"github.com/JakeFAU/epg-queue/internal/queue"
	"github.com/JakeFAU/epg-queue/internal/sites"
	"github.com/JakeFAU/epg-queue/internal/storage/file"
	"github.com/JakeFAU/epg-queue/internal/storage/gcs"
	"github.com/JakeFAU/epg-queue/internal/storage/local"
	"github.com/JakeFAU/epg-queue/internal/storage/memory"
	"github.com/JakeFAU/epg-queue/internal/storage/postgres"
	"github.com/JakeFAU/epg-queue/internal/storage/redis"
)

// App holds the long-lived services of one queue run.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	catalog   *catalog.Catalog
	source    *sites.Source
	errLog    *errlog.FileLog
	store     queue.Store
	blobs     queue.BlobStore
	publisher queue.Publisher
	metrics   *metrics.Recorder
	dates     queue.Clock // first queued day; pinned by queue.date
	wall      queue.Clock
	closers   []func() error
}

// NewApp wires every service selected by cfg. It fails fast when a backend cannot
// be initialized and releases whatever it had already opened.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (a *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a = &App{
		cfg:     cfg,
		logger:  logger,
		source:  sites.NewSource(cfg.ChannelsPath, logger.Named("sites")),
		metrics: metrics.NewRecorder(),
	}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	a.wall = system.New()
	if a.dates, err = newClock(cfg.Queue.Date); err != nil {
		return a, err
	}
	if a.errLog, err = errlog.New(cfg.LogsDir); err != nil {
		return a, fmt.Errorf("init error log: %w", err)
	}

	logger.Info("Loading channel catalog", zap.String("source", cfg.Catalog.Source))
	client := &http.Client{Timeout: cfg.CatalogTimeout()}
	if a.catalog, err = catalog.Load(ctx, cfg.Catalog.Source, client); err != nil {
		return a, fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("Channel catalog loaded", zap.Int("channels", a.catalog.Len()))

	if err = a.initStore(ctx); err != nil {
		return a, err
	}
	if err = a.initSnapshots(ctx); err != nil {
		return a, err
	}
	if err = a.initPublisher(ctx); err != nil {
		return a, err
	}
	return a, nil
}

func newClock(date string) (queue.Clock, error) {
	if date == "" {
		return system.New(), nil
	}
	clk, err := system.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse queue.date: %w", err)
	}
	return clk, nil
}

func (a *App) initStore(ctx context.Context) error {
	cfg := a.cfg.Store
	switch cfg.Backend {
	case config.StoreFile:
		a.logger.Info("Using file queue store", zap.String("path", cfg.File.Path))
		store, err := file.New(cfg.File.Path)
		if err != nil {
			return fmt.Errorf("init file store: %w", err)
		}
		a.store = store
	case config.StorePostgres:
		if cfg.Postgres.Migrate {
			a.logger.Info("Applying postgres migrations")
			if err := postgres.Migrate(cfg.Postgres.DSN); err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
		}
		a.logger.Info("Connecting to PostgreSQL")
		store, err := postgres.NewQueueStore(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime(),
		})
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
	case config.StoreRedis:
		a.logger.Info("Connecting to Redis", zap.String("addr", cfg.Redis.Addr))
		store, err := redis.NewQueueStore(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return fmt.Errorf("init redis store: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	case config.StoreMemory:
		a.logger.Info("Using in-memory queue store. The queue is discarded on exit.")
		a.store = memory.NewQueueStore()
	default:
		return fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
	return nil
}

func (a *App) initSnapshots(ctx context.Context) error {
	cfg := a.cfg.Snapshot
	switch cfg.Backend {
	case "", config.BackendNone:
	case config.BackendMemory:
		a.blobs = memory.NewBlobStore()
	case config.BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return fmt.Errorf("init local snapshots: %w", err)
		}
		a.blobs = store
	case config.BackendGCS:
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs snapshots: %w", err)
		}
		a.blobs = store
	default:
		return fmt.Errorf("unknown snapshot backend: %s", cfg.Backend)
	}
	if a.blobs != nil {
		a.logger.Info("Queue snapshots enabled", zap.String("backend", cfg.Backend))
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	cfg := a.cfg.Publisher
	switch cfg.Backend {
	case "", config.BackendNone:
	case config.BackendMemory:
		a.publisher = memorypub.New()
	case config.BackendPubSub:
		a.logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", cfg.TopicName))
		pub, err := pubsub.Dial(ctx, cfg.ProjectID, cfg.TopicName)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
	default:
		return fmt.Errorf("unknown publisher backend: %s", cfg.Backend)
	}
	return nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Store returns the configured queue store.
func (a *App) Store() queue.Store { return a.store }

// Blobs returns the snapshot store, or nil when snapshots are disabled.
func (a *App) Blobs() queue.BlobStore { return a.blobs }

// Publisher returns the cluster-ready publisher, or nil when disabled.
func (a *App) Publisher() queue.Publisher { return a.publisher }

// Metrics returns the run's metrics recorder.
func (a *App) Metrics() *metrics.Recorder { return a.metrics }

// Catalog returns the loaded channel catalog.
func (a *App) Catalog() *catalog.Catalog { return a.catalog }

// Shuffler returns a seeded shuffle when queue.seed is set, else the runtime-seeded one.
func (a *App) Shuffler() queue.Shuffler {
	if a.cfg.Queue.Seed == 0 {
		return rand.Shuffle
	}
	seed := uint64(a.cfg.Queue.Seed) // #nosec G115 -- any bit pattern is a valid seed.
	return rand.New(rand.NewPCG(seed, seed)).Shuffle
}

// Creator assembles the queue pipeline from the app's services.
func (a *App) Creator() *queue.Creator {
	builder := queue.NewBuilder(a.source, a.catalog, a.errLog, a.dates, a.logger.Named("builder"))
	creator := queue.NewCreator(
		builder,
		a.store,
		uuid.New(),
		a.wall,
		a.Shuffler(),
		queue.CreatorConfig{
			MaxClusters:    a.cfg.Queue.MaxClusters,
			Days:           a.cfg.Queue.Days,
			SnapshotPrefix: a.cfg.Snapshot.Prefix,
			Topic:          a.cfg.Publisher.TopicName,
		},
		a.logger.Named("creator"),
	).WithObserver(a.metrics)
	if a.blobs != nil {
		creator.WithSnapshots(a.blobs).WithChecksums(sha256.New())
	}
	if a.publisher != nil {
		creator.WithPublisher(a.publisher)
	}
	return creator
}

// PushMetrics sends the run's metrics to the Pushgateway when one is configured.
func (a *App) PushMetrics(ctx context.Context) error {
	if a.cfg.Metrics.PushgatewayURL == "" {
		return nil
	}
	return a.metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job)
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}
