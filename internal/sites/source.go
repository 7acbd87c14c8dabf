package sites

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/epg-queue/internal/queue"
)

// Source implements queue.SiteSource on top of the local filesystem.
type Source struct {
	pattern string
	logger  *zap.Logger
}

// NewSource creates a Source that discovers channel files matching pattern.
func NewSource(pattern string, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{pattern: pattern, logger: logger}
}

// ListChannelFiles returns the sorted channel list paths.
func (s *Source) ListChannelFiles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	files, err := Discover(s.pattern)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Channel files discovered", zap.String("pattern", s.pattern), zap.Int("count", len(files)))
	return files, nil
}

// ReadChannelFile parses one channel list.
func (s *Source) ReadChannelFile(_ context.Context, path string) (queue.ChannelFile, error) {
	return ParseChannelsFile(path)
}

// ReadSiteConfig loads the grabber configuration for site.
func (s *Source) ReadSiteConfig(_ context.Context, dir, site string) (queue.SiteConfig, error) {
	return ReadSiteConfig(dir, site)
}
