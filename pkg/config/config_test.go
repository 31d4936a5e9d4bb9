package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 95, cfg.Quota.MonthlyLimit)
	assert.Equal(t, 5, cfg.Quota.MinRemainingToStart)
	assert.Equal(t, 2, cfg.Quota.MinRemainingPerSource)
	assert.Equal(t, 10, cfg.Scan.FirstScanMaxRequests)
	assert.Equal(t, 1000, cfg.Scan.FirstScanTarget)
	assert.Equal(t, 200, cfg.Scan.UpdateTarget)
	assert.Equal(t, 23*time.Hour, cfg.Scan.Cooldown)
	assert.Equal(t, 0.7, cfg.Classifier.Threshold)
	assert.Equal(t, 20, cfg.Classifier.MinTextLength)
	assert.Equal(t, 1000, cfg.Classifier.MonthlyLimit)
	assert.Equal(t, 100, cfg.Storage.FeedLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TWITTER_BEARER_TOKEN", "fallback-token")
	t.Setenv("PROMPTHUNTER_TWITTER_BEARER_TOKEN", "prefixed-token")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("TWITTER_MONTHLY_LIMIT", "80")
	t.Setenv("PROMPTHUNTER_CLASSIFIER_THRESHOLD", "0.8")
	t.Setenv("PROMPTHUNTER_REQUEST_DELAY", "250ms")
	t.Setenv("PROMPTHUNTER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "prefixed-token", cfg.Twitter.BearerToken)
	assert.Equal(t, "sk-test", cfg.Classifier.APIKey)
	assert.Equal(t, 80, cfg.Quota.MonthlyLimit)
	assert.Equal(t, 0.8, cfg.Classifier.Threshold)
	assert.Equal(t, 250*time.Millisecond, cfg.Scan.RequestDelay)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("PROMPTHUNTER_MONTHLY_LIMIT", "lots")
	t.Setenv("PROMPTHUNTER_COOLDOWN", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROMPTHUNTER_MONTHLY_LIMIT")
	assert.Contains(t, err.Error(), "PROMPTHUNTER_COOLDOWN")
	assert.Equal(t, 95, cfg.Quota.MonthlyLimit)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", modify: func(c *Config) {}},
		{
			name:    "zero monthly limit",
			modify:  func(c *Config) { c.Quota.MonthlyLimit = 0 },
			wantErr: "monthly limit must be positive",
		},
		{
			name:    "page size above provider cap",
			modify:  func(c *Config) { c.Scan.PageSize = 500 },
			wantErr: "page size must be within 5..100",
		},
		{
			name:    "http provider without endpoint",
			modify:  func(c *Config) { c.Classifier.Provider = "http" },
			wantErr: "classifier endpoint is required",
		},
		{
			name:    "unknown provider",
			modify:  func(c *Config) { c.Classifier.Provider = "oracle" },
			wantErr: "unknown classifier provider",
		},
		{
			name:    "threshold out of range",
			modify:  func(c *Config) { c.Classifier.Threshold = 1.5 },
			wantErr: "threshold must be within 0..1",
		},
		{
			name:    "unknown priority cooldown",
			modify:  func(c *Config) { c.Scan.PriorityCooldowns["urgent"] = time.Hour },
			wantErr: `unknown priority "urgent"`,
		},
		{
			name:    "bad alert threshold",
			modify:  func(c *Config) { c.Quota.AlertThresholds = []int{50, 150} },
			wantErr: "alert threshold 150",
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quota.MonthlyLimit = -1
	cfg.Classifier.Concurrency = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monthly limit")
	assert.Contains(t, err.Error(), "concurrency")
}

func TestRequireCredentials(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.RequireCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bearer token")
	assert.Contains(t, err.Error(), "API key")

	cfg.Twitter.BearerToken = "token"
	cfg.Classifier.Provider = "http"
	cfg.Classifier.Endpoint = "http://localhost:9000/classify"
	assert.NoError(t, cfg.RequireCredentials())
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"db":            "/tmp/ph.db",
		"log-level":     "warn",
		"monthly-limit": 50,
		"request-delay": 100 * time.Millisecond,
		"classifier":    "",
	})

	assert.Equal(t, "/tmp/ph.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 50, cfg.Quota.MonthlyLimit)
	assert.Equal(t, 100*time.Millisecond, cfg.Scan.RequestDelay)
	assert.Equal(t, "anthropic", cfg.Classifier.Provider)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Quota.MonthlyLimit = 42
	cfg.Scan.PriorityCooldowns[PriorityLow] = 96 * time.Hour
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 42, loaded.Quota.MonthlyLimit)
	assert.Equal(t, 96*time.Hour, loaded.Scan.PriorityCooldowns[PriorityLow])
	assert.Equal(t, cfg.Scan.Cooldown, loaded.Scan.Cooldown)
}

func TestLoadFromFileParsesDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
scan:
  cooldown: 12h
  request_delay: 500ms
classifier:
  provider: http
  endpoint: http://localhost:8080/classify
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, 12*time.Hour, cfg.Scan.Cooldown)
	assert.Equal(t, 500*time.Millisecond, cfg.Scan.RequestDelay)
	assert.Equal(t, "http", cfg.Classifier.Provider)
	assert.Equal(t, 10, cfg.Scan.FirstScanMaxRequests)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quota:\n  monthly_limit: 60\nlogging:\n  level: error\n"), 0600))
	t.Setenv("PROMPTHUNTER_LOG_LEVEL", "warn")

	cfg, err := Load(path, map[string]interface{}{"monthly-limit": 30})
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Quota.MonthlyLimit)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  page_size: 1\n"), 0600))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.DataDir = dir

	path, err := cfg.DatabaseFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prompthunter.db"), path)

	cfg.Storage.DatabasePath = "/tmp/custom.db"
	path, err = cfg.DatabaseFile()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", path)
}
