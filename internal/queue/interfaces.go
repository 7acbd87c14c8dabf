package queue

import (
	"context"
	"time"
)

// SiteSource discovers and reads the site definitions the queue is built from.
type SiteSource interface {
	ListChannelFiles(ctx context.Context) ([]string, error)
	ReadChannelFile(ctx context.Context, path string) (ChannelFile, error)
	ReadSiteConfig(ctx context.Context, dir, site string) (SiteConfig, error)
}

// ChannelCatalog resolves canonical channel ids.
type ChannelCatalog interface {
	Has(id string) bool
}

// ErrorLog records channels that could not be queued.
type ErrorLog interface {
	Append(ctx context.Context, group string, entry ErrorEntry) error
}

// Store replaces the persisted queue collection with a new set of items.
type Store interface {
	Replace(ctx context.Context, items []Item) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Hasher computes digests for snapshot integrity checks.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Observer receives run statistics (metrics, audits).
type Observer interface {
	ObserveBuild(stats BuildStats)
	ObserveClusters(sizes []int)
	ObserveRun(duration time.Duration, success bool)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces item and run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Shuffler permutes n elements via swap, matching rand.Shuffle.
type Shuffler func(n int, swap func(i, j int))
