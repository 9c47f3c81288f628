// Package config defines the sn111 configuration schema and loading rules.
//
// Configuration is read from sn111.yaml, overridable per key through
// SN111_-prefixed environment variables. Every tuning constant used by the
// collector, cache, and optimizer lives here so operators can adjust them
// without a rebuild.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete sn111 configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Pool      PoolConfig      `yaml:"pool" mapstructure:"pool"`
	Collector CollectorConfig `yaml:"collector" mapstructure:"collector"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Prefetch  PrefetchConfig  `yaml:"prefetch" mapstructure:"prefetch"`
	Optimizer OptimizerConfig `yaml:"optimizer" mapstructure:"optimizer"`
	Request   RequestConfig   `yaml:"request" mapstructure:"request"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string `yaml:"host" mapstructure:"host"`
	Port              int    `yaml:"port" mapstructure:"port"`
	ReadTimeoutMs     int    `yaml:"readTimeoutMs" mapstructure:"readTimeoutMs"`
	WriteTimeoutMs    int    `yaml:"writeTimeoutMs" mapstructure:"writeTimeoutMs"`
	ShutdownTimeoutMs int    `yaml:"shutdownTimeoutMs" mapstructure:"shutdownTimeoutMs"`
}

// BrowserConfig contains headless browser session settings.
type BrowserConfig struct {
	// Headless disables the visible browser window. Turn off for debugging.
	Headless bool `yaml:"headless" mapstructure:"headless"`
	// ExecPath overrides the Chrome binary location. Empty uses the default lookup.
	ExecPath  string `yaml:"execPath" mapstructure:"execPath"`
	UserAgent string `yaml:"userAgent" mapstructure:"userAgent"`
	// Locale is the hl= page language requested from the target site.
	Locale       string `yaml:"locale" mapstructure:"locale"`
	NavTimeoutMs int    `yaml:"navTimeoutMs" mapstructure:"navTimeoutMs"`
	// BlockedURLPatterns are request patterns suppressed during navigation
	// to cut page weight (images, fonts, analytics).
	BlockedURLPatterns []string `yaml:"blockedUrlPatterns" mapstructure:"blockedUrlPatterns"`
	// StaticFallback enables the plain-HTTP fetcher when no browser is available.
	StaticFallback bool `yaml:"staticFallback" mapstructure:"staticFallback"`
}

// PoolConfig contains browser session pool settings.
type PoolConfig struct {
	// Size is the maximum number of concurrently open browser sessions.
	Size int `yaml:"size" mapstructure:"size"`
}

// CollectorConfig contains review collection settings.
type CollectorConfig struct {
	// MaxSessionsPerTask caps how many pool sessions one collection may use.
	MaxSessionsPerTask int `yaml:"maxSessionsPerTask" mapstructure:"maxSessionsPerTask"`
	// PaginationAttempts bounds scroll-and-load rounds per session.
	PaginationAttempts int `yaml:"paginationAttempts" mapstructure:"paginationAttempts"`
	// ResolveTimeoutMs bounds the wait for the reviews affordance before the
	// place is treated as having none.
	ResolveTimeoutMs int `yaml:"resolveTimeoutMs" mapstructure:"resolveTimeoutMs"`
	// TaskTimeoutMs caps one session's collection work even when the request
	// deadline is further out.
	TaskTimeoutMs int `yaml:"taskTimeoutMs" mapstructure:"taskTimeoutMs"`
	// ScrollPauseMs is the settle delay between pagination rounds.
	ScrollPauseMs int `yaml:"scrollPauseMs" mapstructure:"scrollPauseMs"`
}

// CacheConfig contains freshness cache settings. TTLs adapt to content age:
// places with fresh reviews expire sooner so new activity is picked up,
// dormant places are kept longer.
type CacheConfig struct {
	// Path is the SQLite database file. Empty selects an in-memory store.
	Path string `yaml:"path" mapstructure:"path"`
	// FreshnessWindowSeconds is how recently an entry must have been written
	// to be served without a staleness check.
	FreshnessWindowSeconds int `yaml:"freshnessWindowSeconds" mapstructure:"freshnessWindowSeconds"`
	// PrefetchWindowSeconds is the relaxed freshness bound used by the
	// prefetch loop to decide whether a key is worth refreshing.
	PrefetchWindowSeconds int `yaml:"prefetchWindowSeconds" mapstructure:"prefetchWindowSeconds"`
	TTLShortSeconds       int `yaml:"ttlShortSeconds" mapstructure:"ttlShortSeconds"`
	TTLDefaultSeconds     int `yaml:"ttlDefaultSeconds" mapstructure:"ttlDefaultSeconds"`
	TTLLongSeconds        int `yaml:"ttlLongSeconds" mapstructure:"ttlLongSeconds"`
	// FreshContentDays and RecentContentDays are the newest-review age bounds
	// selecting the short and default TTL tiers.
	FreshContentDays  int `yaml:"freshContentDays" mapstructure:"freshContentDays"`
	RecentContentDays int `yaml:"recentContentDays" mapstructure:"recentContentDays"`
	// RetentionHorizonSeconds is how long expired entries stay available for
	// last-resort fallback reads before purge removes them.
	RetentionHorizonSeconds int `yaml:"retentionHorizonSeconds" mapstructure:"retentionHorizonSeconds"`
	// CompressionThresholdBytes is the payload size above which entries are
	// stored zstd-compressed.
	CompressionThresholdBytes int `yaml:"compressionThresholdBytes" mapstructure:"compressionThresholdBytes"`
}

// PrefetchConfig contains background cache warming settings.
type PrefetchConfig struct {
	Enabled         bool `yaml:"enabled" mapstructure:"enabled"`
	IntervalSeconds int  `yaml:"intervalSeconds" mapstructure:"intervalSeconds"`
	// TopN is how many predicted query combinations each cycle refreshes.
	TopN int `yaml:"topN" mapstructure:"topN"`
	// BatchSize is how many keys are refreshed between pauses.
	BatchSize    int `yaml:"batchSize" mapstructure:"batchSize"`
	BatchPauseMs int `yaml:"batchPauseMs" mapstructure:"batchPauseMs"`
}

// OptimizerConfig contains response shaping settings.
type OptimizerConfig struct {
	// TargetVolume is the review count responses aim for.
	TargetVolume int `yaml:"targetVolume" mapstructure:"targetVolume"`
	// TruncateThresholdMs is the remaining-deadline bound below which the
	// result set is cut down before serialization.
	TruncateThresholdMs int `yaml:"truncateThresholdMs" mapstructure:"truncateThresholdMs"`
	// TruncateKeepRatio is the fraction of reviews kept when truncating.
	TruncateKeepRatio float64 `yaml:"truncateKeepRatio" mapstructure:"truncateKeepRatio"`
	// TruncateMinKeep is the floor below which truncation never cuts.
	TruncateMinKeep int           `yaml:"truncateMinKeep" mapstructure:"truncateMinKeep"`
	Scoring         ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
}

// ScoringConfig contains the review quality scoring weights.
type ScoringConfig struct {
	// FreshWeight applies to reviews newer than FreshDays, RecentWeight to
	// those newer than RecentDays, AgingWeight to those newer than AgingDays.
	FreshWeight  int `yaml:"freshWeight" mapstructure:"freshWeight"`
	RecentWeight int `yaml:"recentWeight" mapstructure:"recentWeight"`
	AgingWeight  int `yaml:"agingWeight" mapstructure:"agingWeight"`
	FreshDays    int `yaml:"freshDays" mapstructure:"freshDays"`
	RecentDays   int `yaml:"recentDays" mapstructure:"recentDays"`
	AgingDays    int `yaml:"agingDays" mapstructure:"agingDays"`
	// SubstantiveTextWeight applies above SubstantiveTextLen characters,
	// DetailedTextWeight additionally above DetailedTextLen.
	SubstantiveTextWeight int `yaml:"substantiveTextWeight" mapstructure:"substantiveTextWeight"`
	DetailedTextWeight    int `yaml:"detailedTextWeight" mapstructure:"detailedTextWeight"`
	SubstantiveTextLen    int `yaml:"substantiveTextLen" mapstructure:"substantiveTextLen"`
	DetailedTextLen       int `yaml:"detailedTextLen" mapstructure:"detailedTextLen"`
	// OwnerResponseWeight rewards reviews the business replied to.
	OwnerResponseWeight int `yaml:"ownerResponseWeight" mapstructure:"ownerResponseWeight"`
	// MidRatingWeight rewards 3 and 4 star reviews, which read less templated
	// than the extremes.
	MidRatingWeight int `yaml:"midRatingWeight" mapstructure:"midRatingWeight"`
}

// RequestConfig contains end-to-end request handling settings.
type RequestConfig struct {
	// DeadlineMs is the default overall budget when the caller sets none.
	DeadlineMs int `yaml:"deadlineMs" mapstructure:"deadlineMs"`
	// CollectFloorMs is the minimum budget granted to live collection.
	CollectFloorMs int `yaml:"collectFloorMs" mapstructure:"collectFloorMs"`
	// SafetyMarginMs is reserved out of the deadline for optimization and
	// serialization after collection returns.
	SafetyMarginMs int `yaml:"safetyMarginMs" mapstructure:"safetyMarginMs"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	Level  string `yaml:"level" mapstructure:"level"`
	// Output is "stderr", "stdout", or a file path.
	Output string `yaml:"output" mapstructure:"output"`
	// MaxSize caps a log file before rotation, e.g. "50MB". Empty disables
	// rotation. Only used when Output is a file path.
	MaxSize string `yaml:"maxSize" mapstructure:"maxSize"`
	// MaxBackups is how many rotated log files to keep.
	MaxBackups int `yaml:"maxBackups" mapstructure:"maxBackups"`
}

// AuthConfig contains admin endpoint authentication settings.
type AuthConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// TokenHash is the bcrypt hash of the admin bearer token.
	TokenHash string `yaml:"tokenHash" mapstructure:"tokenHash"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8091,
			ReadTimeoutMs:     15000,
			WriteTimeoutMs:    45000,
			ShutdownTimeoutMs: 10000,
		},
		Browser: BrowserConfig{
			Headless:     true,
			UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			Locale:       "en",
			NavTimeoutMs: 20000,
			BlockedURLPatterns: []string{
				"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp",
				"*.woff", "*.woff2", "*googleadservices*", "*doubleclick*",
			},
			StaticFallback: true,
		},
		Pool: PoolConfig{
			Size: 8,
		},
		Collector: CollectorConfig{
			MaxSessionsPerTask: 4,
			PaginationAttempts: 6,
			ResolveTimeoutMs:   8000,
			TaskTimeoutMs:      20000,
			ScrollPauseMs:      700,
		},
		Cache: CacheConfig{
			Path:                      "sn111.db",
			FreshnessWindowSeconds:    300,
			PrefetchWindowSeconds:     1800,
			TTLShortSeconds:           1800,
			TTLDefaultSeconds:         7200,
			TTLLongSeconds:            86400,
			FreshContentDays:          1,
			RecentContentDays:         7,
			RetentionHorizonSeconds:   86400,
			CompressionThresholdBytes: 4096,
		},
		Prefetch: PrefetchConfig{
			Enabled:         true,
			IntervalSeconds: 1800,
			TopN:            10,
			BatchSize:       5,
			BatchPauseMs:    2000,
		},
		Optimizer: OptimizerConfig{
			TargetVolume:        300,
			TruncateThresholdMs: 5000,
			TruncateKeepRatio:   0.8,
			TruncateMinKeep:     50,
			Scoring: ScoringConfig{
				FreshWeight:           10,
				RecentWeight:          5,
				AgingWeight:           2,
				FreshDays:             7,
				RecentDays:            30,
				AgingDays:             90,
				SubstantiveTextWeight: 3,
				DetailedTextWeight:    2,
				SubstantiveTextLen:    50,
				DetailedTextLen:       200,
				OwnerResponseWeight:   1,
				MidRatingWeight:       1,
			},
		},
		Request: RequestConfig{
			DeadlineMs:     30000,
			CollectFloorMs: 10000,
			SafetyMarginMs: 5000,
		},
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			Output:     "stderr",
			MaxBackups: 3,
		},
		Auth: AuthConfig{
			Enabled: false,
		},
	}
}

// LoadConfig loads configuration from the given file, or from sn111.yaml in
// the working directory and ~/.sn111 when path is empty. Environment
// variables with the SN111_ prefix override file values, nested keys joined
// with underscores (SN111_POOL_SIZE).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("SN111")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sn111")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sn111"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No file is fine, defaults plus environment apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Message: "must be between 1 and 65535"}
	}
	if c.Pool.Size < 1 {
		return &ConfigError{Field: "pool.size", Message: "must be at least 1"}
	}
	if c.Collector.MaxSessionsPerTask < 1 {
		return &ConfigError{Field: "collector.maxSessionsPerTask", Message: "must be at least 1"}
	}
	if c.Collector.PaginationAttempts < 1 {
		return &ConfigError{Field: "collector.paginationAttempts", Message: "must be at least 1"}
	}
	if c.Cache.TTLShortSeconds > c.Cache.TTLDefaultSeconds ||
		c.Cache.TTLDefaultSeconds > c.Cache.TTLLongSeconds {
		return &ConfigError{Field: "cache", Message: "TTL tiers must be ordered short <= default <= long"}
	}
	if c.Cache.FreshnessWindowSeconds > c.Cache.PrefetchWindowSeconds {
		return &ConfigError{Field: "cache.freshnessWindowSeconds", Message: "must not exceed prefetchWindowSeconds"}
	}
	if c.Optimizer.TargetVolume < 1 {
		return &ConfigError{Field: "optimizer.targetVolume", Message: "must be at least 1"}
	}
	if c.Optimizer.TruncateKeepRatio <= 0 || c.Optimizer.TruncateKeepRatio > 1 {
		return &ConfigError{Field: "optimizer.truncateKeepRatio", Message: "must be in (0, 1]"}
	}
	if c.Request.SafetyMarginMs >= c.Request.DeadlineMs {
		return &ConfigError{Field: "request.safetyMarginMs", Message: "must be below deadlineMs"}
	}
	if c.Auth.Enabled && c.Auth.TokenHash == "" {
		return &ConfigError{Field: "auth.tokenHash", Message: "required when auth is enabled"}
	}
	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// Duration helpers keep call sites free of unit conversions.

func (c ServerConfig) ReadTimeout() time.Duration     { return msec(c.ReadTimeoutMs) }
func (c ServerConfig) WriteTimeout() time.Duration    { return msec(c.WriteTimeoutMs) }
func (c ServerConfig) ShutdownTimeout() time.Duration { return msec(c.ShutdownTimeoutMs) }

func (c BrowserConfig) NavTimeout() time.Duration { return msec(c.NavTimeoutMs) }

func (c CollectorConfig) ResolveTimeout() time.Duration { return msec(c.ResolveTimeoutMs) }
func (c CollectorConfig) TaskTimeout() time.Duration    { return msec(c.TaskTimeoutMs) }
func (c CollectorConfig) ScrollPause() time.Duration    { return msec(c.ScrollPauseMs) }

func (c CacheConfig) FreshnessWindow() time.Duration  { return sec(c.FreshnessWindowSeconds) }
func (c CacheConfig) PrefetchWindow() time.Duration   { return sec(c.PrefetchWindowSeconds) }
func (c CacheConfig) TTLShort() time.Duration         { return sec(c.TTLShortSeconds) }
func (c CacheConfig) TTLDefault() time.Duration       { return sec(c.TTLDefaultSeconds) }
func (c CacheConfig) TTLLong() time.Duration          { return sec(c.TTLLongSeconds) }
func (c CacheConfig) RetentionHorizon() time.Duration { return sec(c.RetentionHorizonSeconds) }

func (c PrefetchConfig) Interval() time.Duration   { return sec(c.IntervalSeconds) }
func (c PrefetchConfig) BatchPause() time.Duration { return msec(c.BatchPauseMs) }

func (c OptimizerConfig) TruncateThreshold() time.Duration { return msec(c.TruncateThresholdMs) }

func (c RequestConfig) Deadline() time.Duration     { return msec(c.DeadlineMs) }
func (c RequestConfig) CollectFloor() time.Duration { return msec(c.CollectFloorMs) }
func (c RequestConfig) SafetyMargin() time.Duration { return msec(c.SafetyMarginMs) }

func msec(n int) time.Duration { return time.Duration(n) * time.Millisecond }
func sec(n int) time.Duration  { return time.Duration(n) * time.Second }
