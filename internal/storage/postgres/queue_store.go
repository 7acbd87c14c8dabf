// Package postgres provides the Postgres-backed queue store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/epg-queue/internal/queue"
)

const tableName = "queue_items"

var columns = []string{
	"id",
	"site",
	"site_id",
	"lang",
	"xmltv_id",
	"date",
	"config_path",
	"groups",
	"cluster_id",
	"error",
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txBeginner interface {
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// QueueStore keeps the queue in the queue_items table.
type QueueStore struct {
	pool txBeginner
}

// NewQueueStore connects a pool using cfg.
func NewQueueStore(ctx context.Context, cfg Config) (*QueueStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &QueueStore{pool: pool}, nil
}

// NewQueueStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewQueueStoreWithPool(pool txBeginner) (*QueueStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &QueueStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *QueueStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Replace truncates queue_items and copies items in, in a single transaction.
func (s *QueueStore) Replace(ctx context.Context, items []queue.Item) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("queue store is not configured")
	}
	rows, err := toRows(items)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+tableName); err != nil {
		return rollback(ctx, tx, fmt.Errorf("truncate queue: %w", err))
	}
	if len(rows) > 0 {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{tableName}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return rollback(ctx, tx, fmt.Errorf("copy queue items: %w", err))
		}
		if n != int64(len(rows)) {
			return rollback(ctx, tx, fmt.Errorf("copy queue items: wrote %d of %d rows", n, len(rows)))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit queue: %w", err)
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	if err := tx.Rollback(ctx); err != nil {
		return fmt.Errorf("%w (rollback: %v)", cause, err)
	}
	return cause
}

func toRows(items []queue.Item) ([][]any, error) {
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("item %s has no id", item.Key())
		}
		date, err := time.Parse(queue.DateLayout, item.Date)
		if err != nil {
			return nil, fmt.Errorf("parse date of item %s: %w", item.ID, err)
		}
		groups := item.Groups
		if groups == nil {
			groups = []string{}
		}
		rows = append(rows, []any{
			item.ID,
			item.Channel.Site,
			item.Channel.SiteID,
			item.Channel.Lang,
			item.Channel.XMLTVID,
			date,
			item.ConfigPath,
			groups,
			item.ClusterID,
			item.Error,
		})
	}
	return rows, nil
}
