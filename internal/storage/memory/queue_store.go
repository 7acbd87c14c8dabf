package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/epg-queue/internal/queue"
)

// QueueStore holds the most recently replaced queue.
type QueueStore struct {
	mu       sync.RWMutex
	items    []queue.Item
	replaces int
}

// NewQueueStore constructs an empty QueueStore.
func NewQueueStore() *QueueStore {
	return &QueueStore{}
}

// Replace swaps the stored queue for a copy of items.
func (s *QueueStore) Replace(ctx context.Context, items []queue.Item) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	cp := make([]queue.Item, len(items))
	for i, item := range items {
		item.Groups = append([]string(nil), item.Groups...)
		cp[i] = item
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = cp
	s.replaces++
	return nil
}

// Items returns a copy of the stored queue.
func (s *QueueStore) Items() []queue.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]queue.Item(nil), s.items...)
}

// Cluster returns the stored items assigned to cluster id, in queue order.
func (s *QueueStore) Cluster(id int) []queue.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []queue.Item
	for _, item := range s.items {
		if item.ClusterID == id {
			out = append(out, item)
		}
	}
	return out
}

// Replaces reports how many times Replace succeeded.
func (s *QueueStore) Replaces() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replaces
}
