package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Priority names accepted for sources
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// Config holds all configuration options for prompthunter
type Config struct {
	Twitter    TwitterConfig    `yaml:"twitter" json:"twitter"`
	Quota      QuotaConfig      `yaml:"quota" json:"quota"`
	Scan       ScanConfig       `yaml:"scan" json:"scan"`
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// TwitterConfig configures the source API client
type TwitterConfig struct {
	BearerToken     string        `yaml:"bearer_token" json:"bearer_token"`
	BaseURL         string        `yaml:"base_url" json:"base_url"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent"`
	ExcludeReplies  bool          `yaml:"exclude_replies" json:"exclude_replies"`
	ExcludeRetweets bool          `yaml:"exclude_retweets" json:"exclude_retweets"`
}

// QuotaConfig holds the monthly source API budget and the run-level guards
type QuotaConfig struct {
	MonthlyLimit          int   `yaml:"monthly_limit" json:"monthly_limit"`
	MinRemainingToStart   int   `yaml:"min_remaining_to_start" json:"min_remaining_to_start"`
	MinRemainingPerSource int   `yaml:"min_remaining_per_source" json:"min_remaining_per_source"`
	AlertThresholds       []int `yaml:"alert_thresholds" json:"alert_thresholds"`
}

// ScanConfig holds per-pass budgets and pacing
type ScanConfig struct {
	FirstScanMaxRequests int                      `yaml:"first_scan_max_requests" json:"first_scan_max_requests"`
	FirstScanTarget      int                      `yaml:"first_scan_target" json:"first_scan_target"`
	UpdateMaxRequests    int                      `yaml:"update_max_requests" json:"update_max_requests"`
	UpdateTarget         int                      `yaml:"update_target" json:"update_target"`
	Cooldown             time.Duration            `yaml:"cooldown" json:"cooldown"`
	PriorityCooldowns    map[string]time.Duration `yaml:"priority_cooldowns" json:"priority_cooldowns"`
	PageSize             int                      `yaml:"page_size" json:"page_size"`
	RequestDelay         time.Duration            `yaml:"request_delay" json:"request_delay"`
	SourceDelay          time.Duration            `yaml:"source_delay" json:"source_delay"`
	RetryAttempts        int                      `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay           time.Duration            `yaml:"retry_delay" json:"retry_delay"`
}

// ClassifierConfig configures the classification service
type ClassifierConfig struct {
	Provider      string        `yaml:"provider" json:"provider"`
	APIKey        string        `yaml:"api_key" json:"api_key"`
	Model         string        `yaml:"model" json:"model"`
	MaxTokens     int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature   float64       `yaml:"temperature" json:"temperature"`
	Endpoint      string        `yaml:"endpoint" json:"endpoint"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length"`
	Threshold     float64       `yaml:"threshold" json:"threshold"`
	MonthlyLimit  int           `yaml:"monthly_limit" json:"monthly_limit"`
	Concurrency   int           `yaml:"concurrency" json:"concurrency"`
	RequestDelay  time.Duration `yaml:"request_delay" json:"request_delay"`
}

// StorageConfig locates the SQLite database and run artifacts
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" json:"database_path"`
	DataDir      string `yaml:"data_dir" json:"data_dir"`
	FeedLimit    int    `yaml:"feed_limit" json:"feed_limit"`
}

// MetricsConfig controls the Prometheus textfile export
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	Format  string `yaml:"format" json:"format"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Twitter: TwitterConfig{
			BaseURL:         "https://api.twitter.com",
			Timeout:         30 * time.Second,
			UserAgent:       "prompthunter/1.0",
			ExcludeReplies:  true,
			ExcludeRetweets: true,
		},
		Quota: QuotaConfig{
			MonthlyLimit:          95,
			MinRemainingToStart:   5,
			MinRemainingPerSource: 2,
			AlertThresholds:       []int{50, 75, 90},
		},
		Scan: ScanConfig{
			FirstScanMaxRequests: 10,
			FirstScanTarget:      1000,
			UpdateMaxRequests:    1,
			UpdateTarget:         200,
			Cooldown:             23 * time.Hour,
			PriorityCooldowns: map[string]time.Duration{
				PriorityHigh:   23 * time.Hour,
				PriorityNormal: 47 * time.Hour,
				PriorityLow:    71 * time.Hour,
			},
			PageSize:      100,
			RequestDelay:  time.Second,
			SourceDelay:   0,
			RetryAttempts: 1,
			RetryDelay:    2 * time.Second,
		},
		Classifier: ClassifierConfig{
			Provider:      "anthropic",
			Model:         "claude-3-5-haiku-latest",
			MaxTokens:     300,
			Temperature:   0.3,
			Timeout:       30 * time.Second,
			MinTextLength: 20,
			Threshold:     0.7,
			MonthlyLimit:  1000,
			Concurrency:   1,
			RequestDelay:  time.Second,
		},
		Storage: StorageConfig{
			FeedLimit: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv overrides configuration from PROMPTHUNTER_* environment variables.
// TWITTER_BEARER_TOKEN, TWITTER_MONTHLY_LIMIT and ANTHROPIC_API_KEY are honored
// when the prefixed variables are unset.
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString(&c.Twitter.BearerToken, "PROMPTHUNTER_TWITTER_BEARER_TOKEN", "TWITTER_BEARER_TOKEN")
	setString(&c.Twitter.BaseURL, "PROMPTHUNTER_TWITTER_BASE_URL")
	setString(&c.Classifier.APIKey, "PROMPTHUNTER_CLASSIFIER_API_KEY", "ANTHROPIC_API_KEY")
	setString(&c.Classifier.Provider, "PROMPTHUNTER_CLASSIFIER_PROVIDER")
	setString(&c.Classifier.Model, "PROMPTHUNTER_CLASSIFIER_MODEL")
	setString(&c.Classifier.Endpoint, "PROMPTHUNTER_CLASSIFIER_ENDPOINT")
	setString(&c.Storage.DatabasePath, "PROMPTHUNTER_DB_PATH")
	setString(&c.Storage.DataDir, "PROMPTHUNTER_DATA_DIR")
	setString(&c.Metrics.TextfilePath, "PROMPTHUNTER_METRICS_TEXTFILE")
	setString(&c.Logging.Level, "PROMPTHUNTER_LOG_LEVEL")
	setString(&c.Logging.Format, "PROMPTHUNTER_LOG_FORMAT")
	setString(&c.Logging.File, "PROMPTHUNTER_LOG_FILE")

	errs = append(errs,
		setInt(&c.Quota.MonthlyLimit, "PROMPTHUNTER_MONTHLY_LIMIT", "TWITTER_MONTHLY_LIMIT"),
		setInt(&c.Classifier.MonthlyLimit, "PROMPTHUNTER_CLASSIFIER_MONTHLY_LIMIT"),
		setInt(&c.Classifier.Concurrency, "PROMPTHUNTER_CLASSIFIER_CONCURRENCY"),
		setFloat(&c.Classifier.Threshold, "PROMPTHUNTER_CLASSIFIER_THRESHOLD"),
		setDuration(&c.Scan.RequestDelay, "PROMPTHUNTER_REQUEST_DELAY"),
		setDuration(&c.Scan.Cooldown, "PROMPTHUNTER_COOLDOWN"),
	)

	return errors.Join(errs...)
}

func lookup(keys ...string) (string, bool) {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, true
		}
	}
	return "", false
}

func setString(dst *string, keys ...string) {
	if v, ok := lookup(keys...); ok {
		*dst = v
	}
}

func setInt(dst *int, keys ...string) error {
	v, ok := lookup(keys...)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", keys[0], v)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, keys ...string) error {
	v, ok := lookup(keys...)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: invalid number %q", keys[0], v)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, keys ...string) error {
	v, ok := lookup(keys...)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", keys[0], v)
	}
	*dst = d
	return nil
}

// LoadFromFile loads configuration from a YAML file.
// An empty path searches the default locations; finding nothing is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".prompthunter.yaml",
		".prompthunter.yml",
		filepath.Join(home, ".config", "prompthunter", "config.yaml"),
		filepath.Join(home, ".config", "prompthunter", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks structural validity. Credentials are checked separately
// by RequireCredentials since read-only commands work without them.
func (c *Config) Validate() error {
	var errs []error

	if c.Twitter.BaseURL == "" {
		errs = append(errs, errors.New("twitter base URL is required"))
	}
	if c.Twitter.Timeout <= 0 {
		errs = append(errs, errors.New("twitter timeout must be positive"))
	}

	if c.Quota.MonthlyLimit <= 0 {
		errs = append(errs, errors.New("monthly limit must be positive"))
	}
	if c.Quota.MinRemainingToStart < 0 || c.Quota.MinRemainingPerSource < 0 {
		errs = append(errs, errors.New("quota reserves cannot be negative"))
	}
	for _, threshold := range c.Quota.AlertThresholds {
		if threshold <= 0 || threshold > 100 {
			errs = append(errs, fmt.Errorf("alert threshold %d must be within 1..100", threshold))
		}
	}

	if c.Scan.FirstScanMaxRequests <= 0 || c.Scan.UpdateMaxRequests <= 0 {
		errs = append(errs, errors.New("scan request caps must be positive"))
	}
	if c.Scan.FirstScanTarget <= 0 || c.Scan.UpdateTarget <= 0 {
		errs = append(errs, errors.New("scan targets must be positive"))
	}
	if c.Scan.Cooldown < 0 {
		errs = append(errs, errors.New("cooldown cannot be negative"))
	}
	for priority := range c.Scan.PriorityCooldowns {
		if !ValidPriority(priority) {
			errs = append(errs, fmt.Errorf("unknown priority %q in priority_cooldowns", priority))
		}
	}
	if c.Scan.PageSize < 5 || c.Scan.PageSize > 100 {
		errs = append(errs, errors.New("page size must be within 5..100"))
	}
	if c.Scan.RequestDelay < 0 || c.Scan.SourceDelay < 0 {
		errs = append(errs, errors.New("delays cannot be negative"))
	}
	if c.Scan.RetryAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}

	switch c.Classifier.Provider {
	case "anthropic":
	case "http":
		if c.Classifier.Endpoint == "" {
			errs = append(errs, errors.New("classifier endpoint is required for the http provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider))
	}
	if c.Classifier.Threshold < 0 || c.Classifier.Threshold > 1 {
		errs = append(errs, errors.New("classifier threshold must be within 0..1"))
	}
	if c.Classifier.MinTextLength < 0 {
		errs = append(errs, errors.New("minimum text length cannot be negative"))
	}
	if c.Classifier.MonthlyLimit <= 0 {
		errs = append(errs, errors.New("classifier monthly limit must be positive"))
	}
	if c.Classifier.Concurrency < 1 || c.Classifier.Concurrency > 10 {
		errs = append(errs, errors.New("classifier concurrency must be within 1..10"))
	}

	if c.Storage.FeedLimit <= 0 {
		errs = append(errs, errors.New("feed limit must be positive"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		errs = append(errs, errors.New("log format must be console or json"))
	}

	return errors.Join(errs...)
}

// RequireCredentials checks the secrets a scan needs
func (c *Config) RequireCredentials() error {
	var errs []error
	if c.Twitter.BearerToken == "" {
		errs = append(errs, errors.New("twitter bearer token is required"))
	}
	if c.Classifier.Provider == "anthropic" && c.Classifier.APIKey == "" {
		errs = append(errs, errors.New("classifier API key is required for the anthropic provider"))
	}
	return errors.Join(errs...)
}

// ValidPriority reports whether p names a known source priority
func ValidPriority(p string) bool {
	return p == PriorityHigh || p == PriorityNormal || p == PriorityLow
}

// Save writes the configuration as YAML with owner-only permissions
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags applies flags that were explicitly set on the command line
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["db"].(string); ok && v != "" {
		c.Storage.DatabasePath = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-format"].(string); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := flags["monthly-limit"].(int); ok && v > 0 {
		c.Quota.MonthlyLimit = v
	}
	if v, ok := flags["request-delay"].(time.Duration); ok && v >= 0 {
		c.Scan.RequestDelay = v
	}
	if v, ok := flags["metrics-textfile"].(string); ok && v != "" {
		c.Metrics.TextfilePath = v
	}
	if v, ok := flags["classifier"].(string); ok && v != "" {
		c.Classifier.Provider = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment > .env files > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".prompthunter.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
