package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the catsync pipeline configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	RecordStore RecordStoreConfig `yaml:"record_store"`
	Auth        AuthConfig        `yaml:"auth"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Ranking     RankingConfig     `yaml:"ranking"`
	Tags        TagsConfig        `yaml:"tags"`
	Storage     StorageConfig     `yaml:"storage"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds ops API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds ops HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds search-index database (Redis) connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RecordStoreConfig holds record store (MongoDB) connection settings.
type RecordStoreConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// PipelineConfig holds worker pool, scheduling and retry settings.
type PipelineConfig struct {
	Workers            int `yaml:"workers"`
	FeedPollIntervalMS int `yaml:"feed_poll_interval_ms"`
	FeedBatchSize      int `yaml:"feed_batch_size"`
	CycleIntervalSec   int `yaml:"cycle_interval_sec"`
	RescanIntervalSec  int `yaml:"rescan_interval_sec"`
	RetryMaxAttempts   int `yaml:"retry_max_attempts"`
	RetryBackoffMS     int `yaml:"retry_backoff_base_ms"`
	RetryBackoffCapMS  int `yaml:"retry_backoff_cap_ms"`
}

// RankingConfig holds score weights and the rolling window.
type RankingConfig struct {
	WeightOrders    float64   `yaml:"weight_orders"`
	WeightViews     float64   `yaml:"weight_views"`
	WeightFavorites float64   `yaml:"weight_favorites"`
	WeightRating    float64   `yaml:"weight_rating"`
	WindowHours     int       `yaml:"window_hours"`
	RecencyWeights  []float64 `yaml:"recency_weights"`
}

// Window returns the rolling window as a duration.
func (r RankingConfig) Window() time.Duration {
	return time.Duration(r.WindowHours) * time.Hour
}

// TagsConfig holds the tag derivation rule set.
type TagsConfig struct {
	CategoryTags map[string][]string `yaml:"category_tags"`
	KeywordTags  map[string]string   `yaml:"keyword_tags"`
	PriceBands   []PriceBand         `yaml:"price_bands"`
	Importers    []ImporterConfig    `yaml:"importers"`
}

// PriceBand tags items whose price is below Max. Bands are evaluated in
// order; the first matching band wins. Max 0 means "no upper bound".
type PriceBand struct {
	Max float64 `yaml:"max"`
	Tag string  `yaml:"tag"`
}

// ImporterConfig declares a SKU-list tag importer with an activation window.
type ImporterConfig struct {
	Name  string    `yaml:"name"`
	SKUs  []string  `yaml:"skus"`
	Tags  []string  `yaml:"tags"`
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// StorageConfig holds key namespace settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// AlertsConfig holds the operator alert stream settings.
type AlertsConfig struct {
	Stream string `yaml:"stream"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec == 0 {
		c.HTTP.ReadTimeoutSec = 15
	}
	if c.HTTP.WriteTimeoutSec == 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec == 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout == 0 {
		c.Database.ReadinessTimeout = 30
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 8
	}
	if c.Pipeline.FeedPollIntervalMS == 0 {
		c.Pipeline.FeedPollIntervalMS = 500
	}
	if c.Pipeline.FeedBatchSize == 0 {
		c.Pipeline.FeedBatchSize = 100
	}
	if c.Pipeline.CycleIntervalSec == 0 {
		c.Pipeline.CycleIntervalSec = 300
	}
	if c.Pipeline.RescanIntervalSec == 0 {
		c.Pipeline.RescanIntervalSec = 3600
	}
	if c.Pipeline.RetryMaxAttempts == 0 {
		c.Pipeline.RetryMaxAttempts = 5
	}
	if c.Pipeline.RetryBackoffMS == 0 {
		c.Pipeline.RetryBackoffMS = 100
	}
	if c.Pipeline.RetryBackoffCapMS == 0 {
		c.Pipeline.RetryBackoffCapMS = 30000
	}
	if c.Ranking.WeightOrders == 0 && c.Ranking.WeightViews == 0 &&
		c.Ranking.WeightFavorites == 0 && c.Ranking.WeightRating == 0 {
		c.Ranking.WeightOrders = 0.4
		c.Ranking.WeightViews = 0.2
		c.Ranking.WeightFavorites = 0.2
		c.Ranking.WeightRating = 0.2
	}
	if c.Ranking.WindowHours == 0 {
		c.Ranking.WindowHours = 21 * 24 // three weeks
	}
	if len(c.Ranking.RecencyWeights) == 0 {
		c.Ranking.RecencyWeights = []float64{0.5, 0.3, 0.2}
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "catsync"
	}
	if c.Alerts.Stream == "" {
		c.Alerts.Stream = "catsync:alerts"
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Database.Addrs) == 0 {
		return errors.New("database.addrs is required")
	}
	if c.RecordStore.URI == "" {
		return errors.New("record_store.uri is required")
	}
	if c.RecordStore.Database == "" {
		return errors.New("record_store.database is required")
	}
	if c.Pipeline.Workers < 1 {
		return errors.New("pipeline.workers must be positive")
	}
	if c.Pipeline.RetryMaxAttempts < 1 {
		return errors.New("pipeline.retry_max_attempts must be positive")
	}
	for _, w := range c.Ranking.RecencyWeights {
		if w < 0 {
			return errors.New("ranking.recency_weights must be non-negative")
		}
	}
	for i, b := range c.Tags.PriceBands {
		if b.Tag == "" {
			return fmt.Errorf("tags.price_bands[%d].tag is required", i)
		}
	}
	for i, imp := range c.Tags.Importers {
		if imp.Name == "" {
			return fmt.Errorf("tags.importers[%d].name is required", i)
		}
		if len(imp.Tags) == 0 {
			return fmt.Errorf("tags.importers[%d].tags is required", i)
		}
	}
	return nil
}

// GetEnv returns the runtime environment name from ENV (default: local).
func GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}
	return env
}

// findConfigPath locates config.{env}.yaml: CONFIG_PATH override first, then
// the working directory, then the directory of this source file (useful when
// running tests from package directories).
func findConfigPath(env string) string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}

	name := fmt.Sprintf("config.%s.yaml", env)
	if _, err := os.Stat(name); err == nil {
		return name
	}

	if _, file, _, ok := runtime.Caller(0); ok {
		root := filepath.Join(filepath.Dir(file), "..", "..")
		candidate := filepath.Join(root, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return name
}

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnvVars substitutes ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := strings.TrimSuffix(strings.TrimPrefix(string(m), "${"), "}")
		return []byte(os.Getenv(name))
	})
}
