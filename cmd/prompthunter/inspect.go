package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"prompthunter/internal/pipeline"
	"prompthunter/pkg/feed"
	"prompthunter/pkg/models"
	"prompthunter/pkg/quota"
	"prompthunter/pkg/report"
	"prompthunter/pkg/ui"
)

var (
	itemLimit    int
	eventLimit   int
	itemCategory string
	showPrevious bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show this month's quota usage and past months",
	Args:  cobra.NoArgs,
	RunE:  runUsage,
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Show the most recently stored prompts",
	Example: `  prompthunter items --limit 50
  prompthunter items --category Midjourney`,
	Args: cobra.NoArgs,
	RunE: runItems,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the operator event feed",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the summary of the last scan run",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(statusCmd)

	itemsCmd.Flags().IntVarP(&itemLimit, "limit", "n", 20, "number of items to show")
	itemsCmd.Flags().StringVar(&itemCategory, "category", "", "only show one category")
	eventsCmd.Flags().IntVarP(&eventLimit, "limit", "n", 30, "number of events to show")
	statusCmd.Flags().BoolVar(&showPrevious, "previous", false, "show the run before the last one")
}

func runUsage(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var current []models.QuotaStatus
	for _, tracker := range []*quota.Tracker{
		pipeline.NewSourceQuota(a.cfg, a.store, feed.Discard{}, a.log),
		pipeline.NewClassificationQuota(a.cfg, a.store, feed.Discard{}, a.log),
	} {
		w, err := tracker.Window(ctx)
		if err != nil {
			return err
		}
		current = append(current, models.QuotaStatus{Dimension: w.Dimension, Month: w.Month, Used: w.Used, Ceiling: w.Ceiling})
	}

	ui.PrintHighlight("This month")
	ui.RenderQuotas(ui.Output(), current)

	history, err := a.store.ListUsage(ctx)
	if err != nil {
		return err
	}
	var printed bool
	for _, u := range history {
		if u.Month == current[0].Month {
			continue
		}
		if !printed {
			fmt.Fprintln(ui.Output())
			ui.PrintHighlight("Earlier months")
			printed = true
		}
		fmt.Fprintf(ui.Output(), "%-15s %s %d\n", u.Dimension, u.Month, u.Used)
	}

	count, err := a.store.CountItems(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Output())
	ui.PrintInfo("Stored prompts", fmt.Sprintf("%d", count))
	return nil
}

func runItems(cmd *cobra.Command, args []string) error {
	var category models.Category
	if itemCategory != "" {
		category = models.NormalizeCategory(itemCategory)
		if string(category) != itemCategory {
			return fmt.Errorf("unknown category %q", itemCategory)
		}
	}

	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.store.RecentItems(cmd.Context(), itemLimit, category)
	if err != nil {
		return err
	}
	ui.RenderItems(ui.Output(), items)
	return nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.store.RecentEvents(cmd.Context(), eventLimit)
	if err != nil {
		return err
	}
	ui.RenderEvents(ui.Output(), events)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(globalFlags(cmd))
	if err != nil {
		return err
	}
	dataDir, err := cfg.DataDirectory()
	if err != nil {
		return err
	}
	reports, err := report.NewManager(dataDir, nil)
	if err != nil {
		return err
	}

	load := reports.Load
	if showPrevious {
		load = reports.LoadPrevious
	}
	summary, err := load()
	if err != nil {
		return err
	}
	ui.RenderSummary(ui.Output(), summary)
	return nil
}
