package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Builder expands channel lists into deduplicated queue items.
type Builder struct {
	source  SiteSource
	catalog ChannelCatalog
	errLog  ErrorLog
	clock   Clock
	logger  *zap.Logger
}

// NewBuilder wires a Builder. A nil logger is replaced with a no-op logger.
func NewBuilder(source SiteSource, catalog ChannelCatalog, errLog ErrorLog, clock Clock, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		source:  source,
		catalog: catalog,
		errLog:  errLog,
		clock:   clock,
		logger:  logger,
	}
}

// Dates returns days consecutive UTC midnights starting at the day containing now.
func Dates(now time.Time, days int) []string {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]string, 0, max(days, 0))
	for i := 0; i < days; i++ {
		out = append(out, start.AddDate(0, 0, i).Format(DateLayout))
	}
	return out
}

// Build scans every channel file and returns one item per site:site_id:lang:date key, in
// first-seen order. Channels whose xmltv_id is unknown to the catalog are written to the
// group's error log and left out.
func (b *Builder) Build(ctx context.Context, days int) ([]Item, BuildStats, error) {
	var stats BuildStats
	if days <= 0 {
		return nil, stats, fmt.Errorf("days must be > 0, got %d", days)
	}

	files, err := b.source.ListChannelFiles(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("list channel files: %w", err)
	}
	dates := Dates(b.clock.Now(), days)

	index := make(map[string]int)
	var items []Item

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("build canceled: %w", err)
		}
		stats.FilesScanned++

		file, err := b.source.ReadChannelFile(ctx, path)
		if err != nil {
			return nil, stats, fmt.Errorf("read channel file %s: %w", path, err)
		}
		if file.Site == "" {
			stats.FilesNoSite++
			b.logger.Debug("Skipping channel file without site", zap.String("path", path))
			continue
		}

		cfg, err := b.source.ReadSiteConfig(ctx, file.Dir(), file.Site)
		if err != nil {
			return nil, stats, fmt.Errorf("read site config for %s: %w", file.Site, err)
		}
		if cfg.Ignore {
			stats.FilesIgnored++
			b.logger.Debug("Skipping ignored site", zap.String("site", file.Site), zap.String("path", path))
			continue
		}

		group := file.GroupID()
		for _, entry := range file.Channels {
			if entry.Site == "" || entry.SiteID == "" || entry.XMLTVID == "" {
				stats.ChannelsSkipped++
				continue
			}
			if !b.catalog.Has(entry.XMLTVID) {
				stats.ChannelErrors++
				if err := b.errLog.Append(ctx, group, ErrorEntry{
					XMLTVID: entry.XMLTVID,
					Site:    entry.Site,
					SiteID:  entry.SiteID,
					Lang:    entry.Lang,
					Error:   MsgWrongXMLTVID,
				}); err != nil {
					return nil, stats, fmt.Errorf("log channel error for %s: %w", group, err)
				}
				continue
			}

			channel := Channel{
				Lang:    entry.Lang,
				XMLTVID: entry.XMLTVID,
				SiteID:  entry.SiteID,
				Site:    entry.Site,
			}
			for _, date := range dates {
				key := itemKey(channel, date)
				pos, ok := index[key]
				if !ok {
					pos = len(items)
					index[key] = pos
					items = append(items, Item{
						Channel:    channel,
						Date:       date,
						ConfigPath: cfg.Path,
					})
				}
				if !items[pos].HasGroup(group) {
					items[pos].Groups = append(items[pos].Groups, group)
				}
			}
		}
	}

	stats.Items = len(items)
	b.logger.Info("Queue built",
		zap.Int("files", stats.FilesScanned),
		zap.Int("items", stats.Items),
		zap.Int("channel_errors", stats.ChannelErrors),
	)
	return items, stats, nil
}
