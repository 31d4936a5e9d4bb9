package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"prompthunter/internal/pipeline"
	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/models"
	"prompthunter/pkg/planner"
	"prompthunter/pkg/twitter"
	"prompthunter/pkg/ui"
)

var (
	sourcePriority string
	sourceName     string
	sourceResolve  bool
	onlyActive     bool
)

var sourcesCmd = &cobra.Command{
	Use:     "sources",
	Aliases: []string{"source"},
	Short:   "Manage tracked accounts",
	Long: `Manage the accounts prompthunter scans.

Sources are never deleted; deactivate a source to stop scanning it while
keeping its items and scan history.`,
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <handle>...",
	Short: "Track one or more accounts",
	Example: `  prompthunter sources add promptengineer
  prompthunter sources add @midjourney_tips --priority high
  prompthunter sources add alpha --resolve`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSourcesAdd,
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked accounts and when they are next due",
	Args:  cobra.NoArgs,
	RunE:  runSourcesList,
}

var sourcesActivateCmd = &cobra.Command{
	Use:   "activate <handle>",
	Short: "Resume scanning an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceActive(cmd, args[0], true)
	},
}

var sourcesDeactivateCmd = &cobra.Command{
	Use:   "deactivate <handle>",
	Short: "Stop scanning an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceActive(cmd, args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesActivateCmd)
	sourcesCmd.AddCommand(sourcesDeactivateCmd)

	sourcesAddCmd.Flags().StringVarP(&sourcePriority, "priority", "p", "normal", "scan priority (high, normal, low)")
	sourcesAddCmd.Flags().StringVar(&sourceName, "name", "", "display name")
	sourcesAddCmd.Flags().BoolVar(&sourceResolve, "resolve", false, "look up the account id now (costs one request)")

	sourcesListCmd.Flags().BoolVar(&onlyActive, "active", false, "show active sources only")
}

func runSourcesAdd(cmd *cobra.Command, args []string) error {
	priority, err := models.ParsePriority(sourcePriority)
	if err != nil {
		return err
	}

	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	var failed int
	for _, arg := range args {
		handle, err := twitter.NormalizeHandle(arg)
		if err != nil {
			ui.PrintError("Invalid handle", err)
			failed++
			continue
		}

		src, err := a.store.AddSource(ctx, handle, sourceName, priority)
		if errors.Is(err, errs.ErrDuplicate) {
			ui.PrintWarning("Already tracked", "@"+handle)
			continue
		}
		if err != nil {
			return err
		}
		a.log.InfoWithFields("source added", map[string]interface{}{"source": handle, "priority": string(priority)})
		ui.PrintSuccess(fmt.Sprintf("Tracking @%s (%s priority)", src.Handle, src.Priority))

		if sourceResolve {
			if err := resolveSource(ctx, a, src); err != nil {
				ui.PrintWarning("Could not resolve account id, it will be looked up on the first scan", err)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d handle(s) rejected", failed)
	}
	return nil
}

// resolveSource looks up the upstream id, charging one request to the monthly quota
func resolveSource(ctx context.Context, a *app, src *models.Source) error {
	if a.cfg.Twitter.BearerToken == "" {
		return errors.New("twitter bearer token is required")
	}

	budget := pipeline.NewSourceQuota(a.cfg, a.store, a.sink(), a.log)
	ok, err := budget.CanSpend(ctx, 1)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrQuotaExceeded
	}

	user, err := pipeline.NewClient(a.cfg, a.log).LookupUser(ctx, src.Handle)
	if upstream, isUpstream := errs.AsUpstream(err); err == nil || (isUpstream && upstream.Responded()) {
		if chargeErr := budget.Charge(ctx, 1); chargeErr != nil {
			return chargeErr
		}
	}
	if err != nil {
		return err
	}

	if err := a.store.SetSourceUserID(ctx, src.ID, user.ID, user.Name); err != nil {
		return err
	}
	ui.PrintInfo("Account id", user.ID)
	return nil
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	list := a.store.ListSources
	if onlyActive {
		list = a.store.ListActiveSources
	}
	sources, err := list(cmd.Context())
	if err != nil {
		return err
	}

	p := planner.New(pipeline.PlannerConfig(a.cfg))
	ui.RenderSources(ui.Output(), sources, time.Now(), p.CooldownFor)
	return nil
}

func setSourceActive(cmd *cobra.Command, arg string, active bool) error {
	handle, err := twitter.NormalizeHandle(arg)
	if err != nil {
		return err
	}

	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SetSourceActive(cmd.Context(), handle, active); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("@%s is not tracked", handle)
		}
		return err
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	a.log.InfoWithFields("source "+state, map[string]interface{}{"source": handle})
	ui.PrintSuccess(fmt.Sprintf("@%s %s", handle, state))
	return nil
}
