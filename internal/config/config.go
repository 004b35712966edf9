// Package config loads process configuration for the vecache command from
// the environment. Variables use the VECACHE_ prefix; an optional .env file
// is read first and never overrides variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hupe1980/vecache"
	"github.com/hupe1980/vecache/distance"
	"github.com/hupe1980/vecache/persistence"
)

// Prefix is the environment variable prefix.
const Prefix = "VECACHE"

// ErrInvalidConfig is returned when a variable holds an unusable value.
var ErrInvalidConfig = errors.New("invalid config")

// Backend names accepted by VECACHE_BACKEND.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendMinIO = "minio"
)

// Config holds the process configuration.
type Config struct {
	StoragePath  string `envconfig:"STORAGE_PATH" default:"./data"`
	SnapshotName string `envconfig:"SNAPSHOT_NAME" default:"vecache.bin"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"text"`
	Dimension    int    `envconfig:"DIMENSION" default:"0"` // 0 means fixed by the first insert
	Capacity     int    `envconfig:"CAPACITY" default:"0"`
	Metric       string `envconfig:"METRIC" default:"cosine"`
	Parallelism  int    `envconfig:"PARALLELISM" default:"0"`
	MetricsAddr  string `envconfig:"METRICS_ADDR"` // empty disables the endpoint
	Compression  string `envconfig:"COMPRESSION" default:"none"`

	// Snapshot backend. Local uses StoragePath as the root directory.
	Backend   string `envconfig:"BACKEND" default:"local"`
	Bucket    string `envconfig:"BUCKET"`
	Prefix    string `envconfig:"PREFIX"`
	Region    string `envconfig:"REGION"`
	Endpoint  string `envconfig:"ENDPOINT"`
	AccessKey string `envconfig:"ACCESS_KEY"`
	SecretKey string `envconfig:"SECRET_KEY"`
	Secure    bool   `envconfig:"SECURE" default:"true"`
	DDBTable  string `envconfig:"DDB_TABLE"` // enables DynamoDB commits for the s3 backend
}

// Load reads the given .env files (".env" when none are named), then
// processes the environment. Missing .env files are ignored.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: read env file: %v", ErrInvalidConfig, err)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if c.Dimension < 0 {
		return fmt.Errorf("%w: DIMENSION must be >= 0, got %d", ErrInvalidConfig, c.Dimension)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("%w: CAPACITY must be >= 0, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.SnapshotName == "" {
		return fmt.Errorf("%w: SNAPSHOT_NAME is empty", ErrInvalidConfig)
	}
	if _, err := c.ParseMetric(); err != nil {
		return err
	}
	if _, err := c.ParseCompression(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	switch strings.ToLower(c.Backend) {
	case BackendLocal:
	case BackendS3, BackendMinIO:
		if c.Bucket == "" {
			return fmt.Errorf("%w: BUCKET is required for the %s backend", ErrInvalidConfig, c.Backend)
		}
		if strings.EqualFold(c.Backend, BackendMinIO) && c.Endpoint == "" {
			return fmt.Errorf("%w: ENDPOINT is required for the minio backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown BACKEND %q", ErrInvalidConfig, c.Backend)
	}
	return nil
}

// ParseMetric returns the configured metric.
func (c Config) ParseMetric() (distance.Metric, error) {
	m, err := distance.ParseMetric(c.Metric)
	if err != nil {
		return 0, fmt.Errorf("%w: METRIC: %v", ErrInvalidConfig, err)
	}
	return m, nil
}

// ParseCompression returns the configured snapshot compression.
func (c Config) ParseCompression() (persistence.Compression, error) {
	comp, err := persistence.ParseCompression(c.Compression)
	if err != nil {
		return 0, fmt.Errorf("%w: COMPRESSION: %v", ErrInvalidConfig, err)
	}
	return comp, nil
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: LOG_LEVEL: %v", ErrInvalidConfig, err)
	}
	return level, nil
}

// Logger builds a logger writing to w in the configured format.
func (c Config) Logger(w io.Writer) *vecache.Logger {
	level, _ := c.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return vecache.NewLogger(slog.NewJSONHandler(w, opts))
	}
	return vecache.NewLogger(slog.NewTextHandler(w, opts))
}

// StoreOptions translates the configuration into store options.
func (c Config) StoreOptions() []vecache.Option {
	return []vecache.Option{
		vecache.WithDimension(c.Dimension),
		vecache.WithCapacity(c.Capacity),
		vecache.WithParallelism(c.Parallelism),
	}
}
