package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"prompthunter/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	dbPath     string
	logLevel   string
	logFormat  string
	noColor    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "prompthunter",
	Short: "Harvest AI prompts from tracked accounts without blowing the API quota",
	Long: `prompthunter scans a list of tracked accounts, classifies each new post with an
LLM and keeps the ones that contain AI prompts.

Every run stays under a hard monthly request ceiling:
  - never-scanned accounts get a deep backfill, later runs fetch only new posts
  - accounts scanned within their cooldown are skipped at zero cost
  - the run stops early when the remaining quota runs low

Run it from cron; each invocation performs one scan run.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetNoColor(noColor)
		ui.SetQuietMode(quiet)
	},
}

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.prompthunter.yaml or ~/.config/prompthunter/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`prompthunter {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
