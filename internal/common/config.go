package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Site        SiteConfig    `toml:"site"`
	Storage     StorageConfig `toml:"storage"`
	Cache       CacheConfig   `toml:"cache"`
	Fetch       FetchConfig   `toml:"fetch"`
	Browser     BrowserConfig `toml:"browser"`
	Scan        ScanConfig    `toml:"scan"`
	Report      ReportConfig  `toml:"report"`
	Logging     LoggingConfig `toml:"logging"`
}

// SiteConfig identifies the storefront whose product and seller pages are fetched
type SiteConfig struct {
	BaseURL string `toml:"base_url" validate:"required,url"` // Storefront origin, e.g. "https://www.amazon.com"
	Locale  string `toml:"locale"`                           // Overrides <html lang> for rating parsing (e.g. "de-de")
}

type StorageConfig struct {
	Type   string       `toml:"type" validate:"oneof=badger memory"` // "badger" (persistent) or "memory"
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup
	InMemory       bool   `toml:"in_memory"`        // Keep everything in memory (tests)
}

// CacheConfig holds the soft expiry windows for the two cache namespaces
type CacheConfig struct {
	ProductTTL string `toml:"product_ttl" validate:"required"` // product:* entries, e.g. "24h"
	SellerTTL  string `toml:"seller_ttl" validate:"required"`  // seller:* entries, e.g. "168h"
}

type FetchConfig struct {
	UserAgent         string  `toml:"user_agent"`
	AcceptLanguage    string  `toml:"accept_language"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gte=0"` // 0 disables rate limiting
	Burst             int     `toml:"burst" validate:"gte=1"`
	Timeout           string  `toml:"timeout"` // e.g. "30s", empty = no client timeout
}

type BrowserConfig struct {
	Headless     bool   `toml:"headless"`
	NoSandbox    bool   `toml:"no_sandbox"`
	UserAgent    string `toml:"user_agent"`
	PollInterval string `toml:"poll_interval"` // How often queued mutations are drained, e.g. "500ms"
	WaitTime     string `toml:"wait_time"`     // Initial render wait after navigation, e.g. "2s"
}

type ScanConfig struct {
	Enabled  bool     `toml:"enabled"`  // Enable scheduled rescans
	Schedule string   `toml:"schedule"` // Cron schedule with seconds field
	Timeout  string   `toml:"timeout"`  // Bound on one rescan of every url, e.g. "15m"
	URLs     []string `toml:"urls" validate:"dive,url"`
}

type ReportConfig struct {
	Format string `toml:"format" validate:"oneof=text json yaml markdown html pdf"`
	Output string `toml:"output"` // File path, empty or "-" for stdout
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Site: SiteConfig{
			BaseURL: "https://www.amazon.com",
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data/soldby",
			},
		},
		Cache: CacheConfig{
			ProductTTL: "24h",
			SellerTTL:  "168h",
		},
		Fetch: FetchConfig{
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage:    "en-US,en;q=0.9",
			RequestsPerSecond: 2,
			Burst:             1,
		},
		Browser: BrowserConfig{
			Headless:     true,
			PollInterval: "500ms",
			WaitTime:     "2s",
		},
		Scan: ScanConfig{
			Schedule: "0 */30 * * * *",
			Timeout:  "15m",
		},
		Report: ReportConfig{
			Format: "text",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied by the caller afterwards.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SOLDBY_ENV"); env != "" {
		config.Environment = env
	}

	// Site
	if baseURL := os.Getenv("SOLDBY_BASE_URL"); baseURL != "" {
		config.Site.BaseURL = baseURL
	}
	if locale := os.Getenv("SOLDBY_LOCALE"); locale != "" {
		config.Site.Locale = locale
	}

	// Storage
	if storageType := os.Getenv("SOLDBY_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("SOLDBY_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Cache
	if ttl := os.Getenv("SOLDBY_PRODUCT_TTL"); ttl != "" {
		config.Cache.ProductTTL = ttl
	}
	if ttl := os.Getenv("SOLDBY_SELLER_TTL"); ttl != "" {
		config.Cache.SellerTTL = ttl
	}

	// Fetch
	if ua := os.Getenv("SOLDBY_USER_AGENT"); ua != "" {
		config.Fetch.UserAgent = ua
		config.Browser.UserAgent = ua
	}
	if rps := os.Getenv("SOLDBY_REQUESTS_PER_SECOND"); rps != "" {
		if r, err := strconv.ParseFloat(rps, 64); err == nil {
			config.Fetch.RequestsPerSecond = r
		}
	}
	if timeout := os.Getenv("SOLDBY_FETCH_TIMEOUT"); timeout != "" {
		config.Fetch.Timeout = timeout
	}

	// Scan
	if schedule := os.Getenv("SOLDBY_SCAN_SCHEDULE"); schedule != "" {
		config.Scan.Schedule = schedule
	}
	if timeout := os.Getenv("SOLDBY_SCAN_TIMEOUT"); timeout != "" {
		config.Scan.Timeout = timeout
	}
	if urls := os.Getenv("SOLDBY_SCAN_URLS"); urls != "" {
		config.Scan.URLs = splitList(urls)
	}

	// Report
	if format := os.Getenv("SOLDBY_REPORT_FORMAT"); format != "" {
		config.Report.Format = format
	}

	// Logging
	if level := os.Getenv("SOLDBY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SOLDBY_LOG_OUTPUT"); output != "" {
		if outputs := splitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, baseURL, locale, format, output string) {
	if baseURL != "" {
		config.Site.BaseURL = baseURL
	}
	if locale != "" {
		config.Site.Locale = locale
	}
	if format != "" {
		config.Report.Format = format
	}
	if output != "" {
		config.Report.Output = output
	}
}

// Validate checks struct constraints and the rescan schedule
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"cache.product_ttl":     c.Cache.ProductTTL,
		"cache.seller_ttl":      c.Cache.SellerTTL,
		"fetch.timeout":         c.Fetch.Timeout,
		"browser.poll_interval": c.Browser.PollInterval,
		"browser.wait_time":     c.Browser.WaitTime,
		"scan.timeout":          c.Scan.Timeout,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			return fmt.Errorf("invalid duration for %s: %q", name, value)
		}
	}

	if c.Scan.Enabled {
		if err := ValidateScanSchedule(c.Scan.Schedule); err != nil {
			return fmt.Errorf("invalid scan schedule: %w", err)
		}
		if len(c.Scan.URLs) == 0 {
			return fmt.Errorf("scan is enabled but no urls are configured")
		}
	}

	return nil
}

// ValidateScanSchedule parses a six-field cron expression and rejects
// schedules that fire more often than once a minute
func ValidateScanSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) != 6 {
		return fmt.Errorf("invalid cron format: expected 6 fields, got %d", len(parts))
	}

	if strings.HasPrefix(parts[0], "*") {
		return fmt.Errorf("schedule must have minimum 1-minute interval (per-second schedules are not allowed)")
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ParseDuration parses a config duration string, returning fallback when empty or invalid
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
