package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"prompthunter/internal/pipeline"
	"prompthunter/pkg/metrics"
	"prompthunter/pkg/models"
	"prompthunter/pkg/report"
	"prompthunter/pkg/ui"
)

var (
	// Scan command flags
	monthlyLimit    int
	requestDelay    time.Duration
	metricsTextfile string
	classifierName  string
	jsonOutput      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan over every active source",
	Long: `Run one scan over every active source, in priority order.

For each source the planner picks a deep first scan, an incremental update or a
skip. New posts are classified and qualifying ones are stored. The run summary
is printed, saved as last_run.json in the data directory and, when configured,
exported as a Prometheus textfile.`,
	Example: `  # One run with the configured settings
  prompthunter scan

  # Tighter quota and a metrics file for node_exporter
  prompthunter scan --monthly-limit 80 --metrics-textfile /var/lib/node_exporter/prompthunter.prom`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().IntVar(&monthlyLimit, "monthly-limit", 0, "monthly source API request ceiling")
	scanCmd.Flags().DurationVar(&requestDelay, "request-delay", 0, "pause between page requests")
	scanCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after the run")
	scanCmd.Flags().StringVar(&classifierName, "classifier", "", "classification provider (anthropic, http)")
	scanCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run summary as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("monthly-limit") {
		flags["monthly-limit"] = monthlyLimit
	}
	if cmd.Flags().Changed("request-delay") {
		flags["request-delay"] = requestDelay
	}
	if cmd.Flags().Changed("metrics-textfile") {
		flags["metrics-textfile"] = metricsTextfile
	}
	if cmd.Flags().Changed("classifier") {
		flags["classifier"] = classifierName
	}

	a, err := openApp(cmd, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.RequireCredentials(); err != nil {
		ui.PrintWarning("Run 'prompthunter auth guide' to see how to obtain the API credentials")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := a.sink()
	m := metrics.New()
	p, err := pipeline.Build(a.cfg, a.store, sink, m, a.log, pipeline.Options{})
	if err != nil {
		return err
	}

	if !jsonOutput {
		ui.PrintLogo()
	}
	summary, runErr := p.Orchestrator.Run(ctx)
	if summary == nil {
		return runErr
	}

	if err := saveArtifacts(a, summary, m); err != nil {
		a.log.WithError(err).Warn("failed to save run artifacts")
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
	} else if !quiet {
		ui.RenderSummary(ui.Output(), summary)
	}

	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 && summary.Scanned == 0 {
		return fmt.Errorf("all %d attempted sources failed", summary.Failed)
	}
	return nil
}

// saveArtifacts writes the run report and the metrics textfile
func saveArtifacts(a *app, summary *models.RunSummary, m *metrics.Metrics) error {
	dataDir, err := a.cfg.DataDirectory()
	if err != nil {
		return err
	}
	reports, err := report.NewManager(dataDir, a.log)
	if err != nil {
		return err
	}
	if err := reports.Save(summary); err != nil {
		return err
	}

	if path := a.cfg.Metrics.TextfilePath; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			return err
		}
	}
	return nil
}
