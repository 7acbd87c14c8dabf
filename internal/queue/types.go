// Package queue builds the scraping work queue: it expands channel lists into per-date
// items, deduplicates them, partitions them into worker clusters and persists the result.
package queue

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DateLayout renders item dates the way downstream grabbers expect them (millisecond UTC).
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// MsgWrongXMLTVID is the message recorded for channels missing from the catalog.
const MsgWrongXMLTVID = "The channel has the wrong xmltv_id"

// Channel identifies one channel on one site.
type Channel struct {
	Lang    string `json:"lang"`
	XMLTVID string `json:"xmltv_id"`
	SiteID  string `json:"site_id"`
	Site    string `json:"site"`
}

// Item is one unit of scraping work: a channel on a date.
type Item struct {
	ID         string   `json:"_id,omitempty"`
	Channel    Channel  `json:"channel"`
	Date       string   `json:"date"`
	ConfigPath string   `json:"configPath"`
	Groups     []string `json:"groups"`
	ClusterID  int      `json:"cluster_id"`
	Error      *string  `json:"error"`
}

// Key returns the deduplication key site:site_id:lang:date.
func (i Item) Key() string {
	return itemKey(i.Channel, i.Date)
}

// HasGroup reports whether group already references the item.
func (i Item) HasGroup(group string) bool {
	for _, g := range i.Groups {
		if g == group {
			return true
		}
	}
	return false
}

func itemKey(ch Channel, date string) string {
	return strings.Join([]string{ch.Site, ch.SiteID, ch.Lang, date}, ":")
}

// ChannelEntry is a single <channel> element of a channel list.
type ChannelEntry struct {
	Site    string
	SiteID  string
	Lang    string
	XMLTVID string
	Name    string
}

// ChannelFile is a parsed *.channels.xml file.
type ChannelFile struct {
	Path     string
	Site     string
	Region   string
	Channels []ChannelEntry
}

// Dir returns the directory containing the channel file.
func (f ChannelFile) Dir() string {
	return filepath.Dir(f.Path)
}

// NoRegion stands in for the region of channel files named without one. Grabber
// groups and error logs already use "null/<site>" for such files.
const NoRegion = "null"

// GroupID returns region/site.
func (f ChannelFile) GroupID() string {
	region := f.Region
	if region == "" {
		region = NoRegion
	}
	return region + "/" + f.Site
}

// SiteConfig is the subset of a site's grabber configuration the queue needs.
type SiteConfig struct {
	Path   string
	Site   string
	Ignore bool
}

// ErrorEntry is one line of a group's error log.
type ErrorEntry struct {
	XMLTVID string `json:"xmltv_id"`
	Site    string `json:"site"`
	SiteID  string `json:"site_id"`
	Lang    string `json:"lang"`
	Date    string `json:"date,omitempty"`
	Error   string `json:"error"`
}

// BuildStats summarizes one Build pass.
type BuildStats struct {
	FilesScanned    int
	FilesNoSite     int
	FilesIgnored    int
	ChannelsSkipped int
	ChannelErrors   int
	Items           int
}

// ClusterReady is published once per non-empty cluster after the queue is stored.
type ClusterReady struct {
	RunID       string    `json:"run_id"`
	ClusterID   int       `json:"cluster_id"`
	Items       int       `json:"items"`
	SnapshotURI string    `json:"snapshot_uri,omitempty"`
	SnapshotSum string    `json:"snapshot_sha256,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Attributes returns the message attributes subscribers filter on.
func (m ClusterReady) Attributes() map[string]string {
	return map[string]string{
		"run_id":     m.RunID,
		"cluster_id": strconv.Itoa(m.ClusterID),
	}
}

// Result describes a completed Creator run.
type Result struct {
	RunID        string
	Items        int
	ClusterSizes []int
	SnapshotURI  string
	SnapshotSum  string
	Stats        BuildStats
}
