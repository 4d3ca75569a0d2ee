// Package config loads application configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Indexer, Search, Dialect, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Search    SearchConfig    `yaml:"search"`
	Dialect   DialectConfig   `yaml:"dialect"`
	Fields    []FieldConfig   `yaml:"fields"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexerConfig controls the reference index engine's memory threshold and
// flush interval.
type IndexerConfig struct {
	DataDir        string        `yaml:"dataDir"`
	SegmentMaxSize int64         `yaml:"segmentMaxSize"`
	FlushInterval  time.Duration `yaml:"flushInterval"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	MaxResults   int           `yaml:"maxResults"`
	DefaultLimit int           `yaml:"defaultLimit"`
	Timeout      time.Duration `yaml:"timeout"`
	// DocStore selects the collaborator scorer hooks read stored fields
	// from: "index" (segment stored fields) or "postgres".
	DocStore string `yaml:"docStore"`
}

// DialectConfig controls how a clause tree is compiled.
type DialectConfig struct {
	DefaultField           []string `yaml:"defaultField"`
	DefaultBoolOp          string   `yaml:"defaultBoolOp"`
	AllowSingleWildcards   bool     `yaml:"allowSingleWildcards"`
	RequireField           bool     `yaml:"requireField"`
	IgnoreOrderInProximity bool     `yaml:"ignoreOrderInProximity"`
	PatternCacheSize       int      `yaml:"patternCacheSize"`
}

// FieldConfig describes one searchable field.
type FieldConfig struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Analyzer string  `yaml:"analyzer"`
	Boost    float64 `yaml:"boost"`
	Stored   bool    `yaml:"stored"`
	// ScoreBands attaches a categorical score override to term queries on
	// this field.
	ScoreBands *ScoreBandsConfig `yaml:"scoreBands"`
}

// ScoreBandsConfig maps a stored field's value to a fixed score.
type ScoreBandsConfig struct {
	Field  string             `yaml:"field"`
	Scores map[string]float64 `yaml:"scores"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// AnalyticsConfig controls search event collection and the periodic
// snapshot of aggregated stats to Postgres.
//
// Mode "embedded" aggregates inside the search process. Mode "remote" only
// publishes to Kafka and leaves aggregation to cmd/analytics.
type AnalyticsConfig struct {
	Mode             string        `yaml:"mode"`
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that YAML decoding cannot.
func (c *Config) Validate() error {
	switch c.Dialect.DefaultBoolOp {
	case "+", "":
	default:
		return fmt.Errorf("dialect.defaultBoolOp must be \"+\" or empty, got %q", c.Dialect.DefaultBoolOp)
	}
	switch c.Search.DocStore {
	case "index", "postgres":
	default:
		return fmt.Errorf("search.docStore must be \"index\" or \"postgres\", got %q", c.Search.DocStore)
	}
	if c.Search.DocStore == "postgres" && !c.Postgres.Enabled {
		return fmt.Errorf("search.docStore \"postgres\" requires postgres.enabled")
	}
	switch c.Analytics.Mode {
	case "embedded":
	case "remote":
		if !c.Kafka.Enabled {
			return fmt.Errorf("analytics.mode \"remote\" requires kafka.enabled")
		}
	default:
		return fmt.Errorf("analytics.mode must be \"embedded\" or \"remote\", got %q", c.Analytics.Mode)
	}
	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("field with empty name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "searchdialect",
			User:            "searchdialect",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "search-dialect-analytics",
			Topics: KafkaTopics{
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Indexer: IndexerConfig{
			DataDir:        "./data",
			SegmentMaxSize: 4 << 20,
			FlushInterval:  30 * time.Second,
		},
		Search: SearchConfig{
			MaxResults:   1000,
			DefaultLimit: 10,
			Timeout:      5 * time.Second,
			DocStore:     "index",
		},
		Dialect: DialectConfig{
			DefaultBoolOp:    "+",
			PatternCacheSize: 256,
		},
		Fields: []FieldConfig{
			{Name: "title", Type: "text", Analyzer: "simple", Boost: 2, Stored: true},
			{Name: "body", Type: "text", Analyzer: "simple", Boost: 1, Stored: true},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Analytics: AnalyticsConfig{
			Mode:             "embedded",
			BufferSize:       10000,
			SnapshotInterval: time.Minute,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = b
		}
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("SP_SEARCH_DOCSTORE"); v != "" {
		cfg.Search.DocStore = v
	}
	if v := os.Getenv("SP_DIALECT_DEFAULT_FIELD"); v != "" {
		cfg.Dialect.DefaultField = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_DIALECT_REQUIRE_FIELD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Dialect.RequireField = b
		}
	}
	if v := os.Getenv("SP_ANALYTICS_MODE"); v != "" {
		cfg.Analytics.Mode = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
