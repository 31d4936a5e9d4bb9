package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"prompthunter/pkg/auth"
	"prompthunter/pkg/config"
	"prompthunter/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage prompthunter configuration.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (PROMPTHUNTER_*, TWITTER_BEARER_TOKEN, ANTHROPIC_API_KEY)
  - .env files
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to .prompthunter.yaml in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and report missing credentials",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# prompthunter configuration
#
# Secrets are better kept out of this file: use 'prompthunter auth set' or the
# TWITTER_BEARER_TOKEN / ANTHROPIC_API_KEY environment variables.

twitter:
  base_url: "https://api.twitter.com"
  timeout: 30s
  exclude_replies: true
  exclude_retweets: true

quota:
  # Hard monthly ceiling for timeline and user lookup requests.
  # Keep it a few requests below your plan's limit.
  monthly_limit: 95
  # Skip the whole run when fewer requests are left
  min_remaining_to_start: 5
  # Stop between sources when fewer requests are left
  min_remaining_per_source: 2
  # Percent thresholds that raise a warning event once per month
  alert_thresholds: [50, 75, 90]

scan:
  # Never-scanned sources get a deep backfill
  first_scan_max_requests: 10
  first_scan_target: 1000
  # Later passes fetch only posts newer than the last one seen
  update_max_requests: 1
  update_target: 200
  # Minimum time between two scans of a source, per priority
  cooldown: 23h
  priority_cooldowns:
    high: 23h
    normal: 47h
    low: 71h
  page_size: 100
  request_delay: 1s
  source_delay: 0s
  # Attempts per page; every attempt costs one request
  retry_attempts: 1
  retry_delay: 2s

classifier:
  # anthropic or http
  provider: anthropic
  model: claude-3-5-haiku-latest
  max_tokens: 300
  temperature: 0.3
  # Used by the http provider: POST {"text": ...}
  endpoint: ""
  timeout: 30s
  # Shorter posts are never sent for classification
  min_text_length: 20
  # Minimum confidence for a match to be stored
  threshold: 0.7
  monthly_limit: 1000
  concurrency: 1
  request_delay: 1s

storage:
  # Empty means <data dir>/prompthunter.db
  database_path: ""
  data_dir: ""
  # Events kept in the feed
  feed_limit: 100

metrics:
  # Prometheus textfile written after every run (empty disables)
  textfile_path: ""

logging:
  level: info
  # console or json
  format: console
  file: ""
  no_color: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".prompthunter.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Output(), "\nNext steps:")
	fmt.Fprintln(ui.Output(), "1. Store your API credentials with 'prompthunter auth set'")
	fmt.Fprintln(ui.Output(), "2. Run 'prompthunter config validate' to check the configuration")
	fmt.Fprintln(ui.Output(), "3. Track accounts with 'prompthunter sources add <handle>'")
	fmt.Fprintln(ui.Output(), "4. Schedule 'prompthunter scan' from cron")
	return nil
}

// masked returns a copy of cfg that is safe to print
func masked(cfg *config.Config) config.Config {
	display := *cfg
	if display.Twitter.BearerToken != "" {
		display.Twitter.BearerToken = auth.MaskString(display.Twitter.BearerToken)
	}
	if display.Classifier.APIKey != "" {
		display.Classifier.APIKey = auth.MaskString(display.Classifier.APIKey)
	}
	return display
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(globalFlags(cmd))
	if err != nil {
		return err
	}

	display := masked(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current configuration")
	fmt.Fprintln(ui.Output())
	fmt.Fprint(ui.Output(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(globalFlags(cmd))
	if err != nil {
		return err
	}
	ui.PrintSuccess("Configuration is valid")

	if err := cfg.RequireCredentials(); err != nil {
		ui.PrintWarning("Scans will fail until credentials are provided")
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, e := range joined.Unwrap() {
				fmt.Fprintf(ui.Output(), "  - %s\n", e)
			}
		} else {
			fmt.Fprintf(ui.Output(), "  - %s\n", err)
		}
	}

	db, err := cfg.DatabaseFile()
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Output(), "\nConfiguration summary:")
	fmt.Fprintf(ui.Output(), "  Database:            %s\n", db)
	fmt.Fprintf(ui.Output(), "  Monthly requests:    %d\n", cfg.Quota.MonthlyLimit)
	fmt.Fprintf(ui.Output(), "  Classifier:          %s (%d calls/month)\n", cfg.Classifier.Provider, cfg.Classifier.MonthlyLimit)
	fmt.Fprintf(ui.Output(), "  First scan budget:   %d requests / %d items\n", cfg.Scan.FirstScanMaxRequests, cfg.Scan.FirstScanTarget)
	fmt.Fprintf(ui.Output(), "  Update budget:       %d requests / %d items\n", cfg.Scan.UpdateMaxRequests, cfg.Scan.UpdateTarget)
	fmt.Fprintf(ui.Output(), "  Log level:           %s\n", cfg.Logging.Level)
	return nil
}
