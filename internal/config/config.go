// Package config loads and validates queue configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Snapshot and publisher backends share "none" and "memory".
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendPubSub = "pubsub"
)

// Config captures all queue configuration knobs loaded via Viper.
type Config struct {
	ChannelsPath string          `mapstructure:"channels_path"`
	LogsDir      string          `mapstructure:"logs_dir"`
	Queue        QueueConfig     `mapstructure:"queue"`
	Catalog      CatalogConfig   `mapstructure:"catalog"`
	Store        StoreConfig     `mapstructure:"store"`
	Snapshot     SnapshotConfig  `mapstructure:"snapshot"`
	Publisher    PublisherConfig `mapstructure:"publisher"`
	Metrics      MetricsConfig   `mapstructure:"metrics"`
	Logging      LoggingConfig   `mapstructure:"logging"`
}

// QueueConfig governs queue construction.
type QueueConfig struct {
	MaxClusters int    `mapstructure:"max_clusters"`
	Days        int    `mapstructure:"days"`
	Seed        int64  `mapstructure:"seed"`
	Date        string `mapstructure:"date"`
}

// CatalogConfig points at the canonical channel directory.
type CatalogConfig struct {
	Source         string `mapstructure:"source"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StoreConfig selects where the queue is persisted.
type StoreConfig struct {
	Backend  string         `mapstructure:"backend"`
	File     FileConfig     `mapstructure:"file"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// FileConfig configures the NDJSON datastore file.
type FileConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig controls access to the relational database.
type PostgresConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
	Migrate                bool   `mapstructure:"migrate"`
}

// RedisConfig describes the Redis connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// SnapshotConfig controls the optional NDJSON export of each stored queue.
type SnapshotConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PublisherConfig holds metadata for cluster-ready notifications.
type PublisherConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"max-clusters": "queue.max_clusters",
	"days":         "queue.days",
	"seed":         "queue.seed",
	"date":         "queue.date",
}

// Load builds a Config from defaults, an optional file, the environment and flags.
// CHANNELS_PATH and LOGS_DIR are read unprefixed; every other key uses EPG_ (for
// example EPG_STORE_BACKEND).
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EPG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.BindEnv("channels_path", "CHANNELS_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind CHANNELS_PATH: %w", err)
	}
	if err := v.BindEnv("logs_dir", "LOGS_DIR"); err != nil {
		return Config{}, fmt.Errorf("bind LOGS_DIR: %w", err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("channels_path", "sites/**/*.channels.xml")
	v.SetDefault("logs_dir", "scripts/logs")
	v.SetDefault("queue.max_clusters", 256)
	v.SetDefault("queue.days", 1)
	v.SetDefault("queue.seed", 0)
	v.SetDefault("queue.date", "")
	v.SetDefault("catalog.source", "temp/data/channels.json")
	v.SetDefault("catalog.timeout_seconds", 30)
	v.SetDefault("store.backend", StoreFile)
	v.SetDefault("store.file.path", "scripts/database/queue.db")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.max_conns", 4)
	v.SetDefault("store.postgres.min_conns", 0)
	v.SetDefault("store.postgres.max_conn_lifetime_seconds", 0)
	v.SetDefault("store.postgres.migrate", true)
	v.SetDefault("store.redis.addr", "")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "epg:queue")
	v.SetDefault("snapshot.backend", BackendNone)
	v.SetDefault("snapshot.local_dir", "")
	v.SetDefault("snapshot.gcs_bucket", "")
	v.SetDefault("snapshot.prefix", "queues")
	v.SetDefault("publisher.backend", BackendNone)
	v.SetDefault("publisher.project_id", "")
	v.SetDefault("publisher.topic_name", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "epg_create_queue")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ChannelsPath) == "" {
		return fmt.Errorf("channels_path is required")
	}
	if strings.TrimSpace(c.LogsDir) == "" {
		return fmt.Errorf("logs_dir is required")
	}
	if c.Queue.MaxClusters <= 0 {
		return fmt.Errorf("queue.max_clusters must be > 0")
	}
	if c.Queue.Days <= 0 {
		return fmt.Errorf("queue.days must be > 0")
	}
	if c.Queue.Date != "" {
		if _, err := time.Parse(time.DateOnly, c.Queue.Date); err != nil {
			return fmt.Errorf("queue.date must be YYYY-MM-DD: %w", err)
		}
	}
	if strings.TrimSpace(c.Catalog.Source) == "" {
		return fmt.Errorf("catalog.source is required")
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		return fmt.Errorf("catalog.timeout_seconds must be > 0")
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Snapshot.validate(); err != nil {
		return err
	}
	if err := c.Publisher.validate(); err != nil {
		return err
	}
	if c.Metrics.PushgatewayURL != "" && c.Metrics.Job == "" {
		return fmt.Errorf("metrics.job must be set when metrics.pushgateway_url is set")
	}
	return nil
}

func (s StoreConfig) validate() error {
	switch s.Backend {
	case StoreFile:
		if s.File.Path == "" {
			return fmt.Errorf("store.file.path is required for the file backend")
		}
	case StorePostgres:
		if s.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required for the postgres backend")
		}
	case StoreRedis:
		if s.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store.backend %q", s.Backend)
	}
	return nil
}

func (s SnapshotConfig) validate() error {
	switch s.Backend {
	case "", BackendNone, BackendMemory:
	case BackendLocal:
		if s.LocalDir == "" {
			return fmt.Errorf("snapshot.local_dir is required for the local backend")
		}
	case BackendGCS:
		if s.GCSBucket == "" {
			return fmt.Errorf("snapshot.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown snapshot.backend %q", s.Backend)
	}
	return nil
}

func (p PublisherConfig) validate() error {
	switch p.Backend {
	case "", BackendNone, BackendMemory:
	case BackendPubSub:
		if p.ProjectID == "" || p.TopicName == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic_name are required for the pubsub backend")
		}
	default:
		return fmt.Errorf("unknown publisher.backend %q", p.Backend)
	}
	return nil
}

// CatalogTimeout converts the catalog timeout into a duration.
func (c Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

// MaxConnLifetime converts the pool lifetime into a duration.
func (p PostgresConfig) MaxConnLifetime() time.Duration {
	return time.Duration(p.MaxConnLifetimeSeconds) * time.Second
}
