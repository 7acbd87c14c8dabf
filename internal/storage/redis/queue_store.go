// Package redis stores the queue as one Redis list per cluster.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/JakeFAU/epg-queue/internal/queue"
)

// DefaultPrefix namespaces queue keys when none is configured.
const DefaultPrefix = "epg:queue"

// Config describes the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// QueueStore writes `<prefix>:cluster:<n>` lists and tracks them in `<prefix>:clusters`.
type QueueStore struct {
	client redis.UniversalClient
	prefix string
	owned  bool
}

// NewQueueStore dials Redis and verifies the connection.
func NewQueueStore(ctx context.Context, cfg Config) (*QueueStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("store.redis.addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	store := NewQueueStoreWithClient(client, cfg.Prefix)
	store.owned = true
	return store, nil
}

// NewQueueStoreWithClient wraps an existing client. The caller keeps ownership of it.
func NewQueueStoreWithClient(client redis.UniversalClient, prefix string) *QueueStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &QueueStore{client: client, prefix: prefix}
}

// Close closes the client when the store dialed it.
func (s *QueueStore) Close() error {
	if s == nil || s.client == nil || !s.owned {
		return nil
	}
	return s.client.Close()
}

// ClusterKey returns the list key holding cluster id.
func (s *QueueStore) ClusterKey(id int) string {
	return s.prefix + ":cluster:" + strconv.Itoa(id)
}

func (s *QueueStore) indexKey() string {
	return s.prefix + ":clusters"
}

// maxReplaceAttempts bounds the optimistic retries when another run rewrites the
// index between WATCH and EXEC.
const maxReplaceAttempts = 10

// Replace drops every previously stored cluster list and writes items, in one MULTI/EXEC.
// The index set is WATCHed so lists written by an overlapping run are never orphaned.
func (s *QueueStore) Replace(ctx context.Context, items []queue.Item) error {
	byCluster := make(map[int][]any)
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode item %s: %w", item.Key(), err)
		}
		byCluster[item.ClusterID] = append(byCluster[item.ClusterID], string(raw))
	}
	ids := make([]int, 0, len(byCluster))
	for id := range byCluster {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	index := s.indexKey()
	replace := func(tx *redis.Tx) error {
		previous, err := tx.SMembers(ctx, index).Result()
		if err != nil {
			return fmt.Errorf("list previous clusters: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, append(previous, index)...)
			for _, id := range ids {
				key := s.ClusterKey(id)
				pipe.RPush(ctx, key, byCluster[id]...)
				pipe.SAdd(ctx, index, key)
			}
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxReplaceAttempts; attempt++ {
		err := s.client.Watch(ctx, replace, index)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("replace queue: %w", err)
		}
		return nil
	}
	return fmt.Errorf("replace queue: index %s kept changing after %d attempts", index, maxReplaceAttempts)
}

// Cluster reads the items stored for one cluster, in queue order.
func (s *QueueStore) Cluster(ctx context.Context, id int) ([]queue.Item, error) {
	raw, err := s.client.LRange(ctx, s.ClusterKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read cluster %d: %w", id, err)
	}
	items := make([]queue.Item, 0, len(raw))
	for _, r := range raw {
		var item queue.Item
		if err := json.Unmarshal([]byte(r), &item); err != nil {
			return nil, fmt.Errorf("decode cluster %d item: %w", id, err)
		}
		items = append(items, item)
	}
	return items, nil
}
