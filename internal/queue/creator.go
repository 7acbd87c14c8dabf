package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"go.uber.org/zap"
)

// SnapshotContentType is the media type of queue snapshots.
const SnapshotContentType = "application/x-ndjson"

// CreatorConfig holds the knobs of one queue creation run.
type CreatorConfig struct {
	MaxClusters    int
	Days           int
	SnapshotPrefix string
	Topic          string
}

// Creator runs the full pipeline: build, cluster, sort, persist and announce.
type Creator struct {
	builder   *Builder
	store     Store
	ids       IDGenerator
	clock     Clock
	shuffle   Shuffler
	blobs     BlobStore
	hasher    Hasher
	publisher Publisher
	observer  Observer
	cfg       CreatorConfig
	logger    *zap.Logger
}

// NewCreator wires a Creator. clock is wall time: it times the run and stamps
// announcements, independently of the builder's date source. Snapshot export, publishing
// and observation are optional and attached with the With* methods.
func NewCreator(
	builder *Builder,
	store Store,
	ids IDGenerator,
	clock Clock,
	shuffle Shuffler,
	cfg CreatorConfig,
	logger *zap.Logger,
) *Creator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Creator{
		builder: builder,
		store:   store,
		ids:     ids,
		clock:   clock,
		shuffle: shuffle,
		cfg:     cfg,
		logger:  logger,
	}
}

// WithSnapshots exports every stored queue as NDJSON to blobs.
func (c *Creator) WithSnapshots(blobs BlobStore) *Creator {
	c.blobs = blobs
	return c
}

// WithChecksums adds a digest of each exported snapshot to the result and to the
// cluster-ready messages.
func (c *Creator) WithChecksums(h Hasher) *Creator {
	c.hasher = h
	return c
}

// WithPublisher announces each non-empty cluster once the queue is stored.
func (c *Creator) WithPublisher(p Publisher) *Creator {
	c.publisher = p
	return c
}

// WithObserver reports build and cluster statistics to o.
func (c *Creator) WithObserver(o Observer) *Creator {
	c.observer = o
	return c
}

// Run builds and persists a fresh queue, replacing whatever the store held before.
func (c *Creator) Run(ctx context.Context) (Result, error) {
	started := c.clock.Now()
	res, err := c.run(ctx)
	if c.observer != nil {
		c.observer.ObserveRun(c.clock.Now().Sub(started), err == nil)
	}
	return res, err
}

func (c *Creator) run(ctx context.Context) (Result, error) {
	if c.cfg.MaxClusters <= 0 {
		return Result{}, fmt.Errorf("max clusters must be > 0, got %d", c.cfg.MaxClusters)
	}
	runID, err := c.ids.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := c.logger.With(zap.String("run_id", runID))
	logger.Info("Creating queue",
		zap.Int("max_clusters", c.cfg.MaxClusters),
		zap.Int("days", c.cfg.Days),
	)

	items, stats, err := c.builder.Build(ctx, c.cfg.Days)
	if err != nil {
		return Result{}, err
	}
	if c.observer != nil {
		c.observer.ObserveBuild(stats)
	}

	for i := range items {
		id, err := c.ids.NewID()
		if err != nil {
			return Result{}, fmt.Errorf("generate item id: %w", err)
		}
		items[i].ID = id
	}

	queued := AssignClusters(items, c.cfg.MaxClusters, c.shuffle)
	SortItems(queued)
	sizes := ClusterSizes(queued, c.cfg.MaxClusters)
	if c.observer != nil {
		c.observer.ObserveClusters(sizes)
	}

	logger.Info("Saving queue", zap.Int("items", len(queued)))
	if err := c.store.Replace(ctx, queued); err != nil {
		return Result{}, fmt.Errorf("replace queue: %w", err)
	}

	res := Result{
		RunID:        runID,
		Items:        len(queued),
		ClusterSizes: sizes,
		Stats:        stats,
	}

	if c.blobs != nil {
		uri, sum, err := c.exportSnapshot(ctx, runID, queued)
		if err != nil {
			return res, err
		}
		res.SnapshotURI = uri
		res.SnapshotSum = sum
		logger.Info("Snapshot exported", zap.String("uri", uri), zap.String("digest", sum))
	}

	if c.publisher != nil {
		if err := c.announce(ctx, res); err != nil {
			return res, err
		}
	}

	logger.Info("Queue created", zap.Int("items", res.Items))
	return res, nil
}

func (c *Creator) exportSnapshot(ctx context.Context, runID string, items []Item) (string, string, error) {
	data, err := EncodeNDJSON(items)
	if err != nil {
		return "", "", err
	}
	var sum string
	if c.hasher != nil {
		if sum, err = c.hasher.Hash(data); err != nil {
			return "", "", fmt.Errorf("hash snapshot: %w", err)
		}
	}
	key := path.Join(c.cfg.SnapshotPrefix, runID, "queue.ndjson")
	uri, err := c.blobs.PutObject(ctx, key, SnapshotContentType, data)
	if err != nil {
		return "", "", fmt.Errorf("export snapshot: %w", err)
	}
	return uri, sum, nil
}

func (c *Creator) announce(ctx context.Context, res Result) error {
	now := c.clock.Now().UTC()
	for idx, size := range res.ClusterSizes {
		if size == 0 {
			continue
		}
		msg := ClusterReady{
			RunID:       res.RunID,
			ClusterID:   idx + 1,
			Items:       size,
			SnapshotURI: res.SnapshotURI,
			SnapshotSum: res.SnapshotSum,
			CreatedAt:   now,
		}
		if _, err := c.publisher.Publish(ctx, c.cfg.Topic, msg); err != nil {
			return fmt.Errorf("publish cluster %d: %w", idx+1, err)
		}
	}
	return nil
}

// EncodeNDJSON renders items as newline-delimited JSON documents.
func EncodeNDJSON(items []Item) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, fmt.Errorf("encode item %s: %w", item.Key(), err)
		}
	}
	return buf.Bytes(), nil
}
