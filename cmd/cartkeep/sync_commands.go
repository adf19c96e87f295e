package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cartkeep/internal/collection"
	"cartkeep/internal/syncplan"
	"cartkeep/internal/syncrun"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var prune bool
	var providers []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch provider snapshots, reconcile the store, and bring files up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(ctx, cmd, syncrun.Options{
				Mode:      syncrun.ModeSync,
				DryRun:    dryRun,
				Prune:     prune,
				Providers: parseProviders(providers),
			})
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Plan without executing or saving")
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete files of excluded or upstream-removed records")
	cmd.Flags().StringSliceVar(&providers, "provider", nil, "Limit to specific providers (tic80, itch)")
	return cmd
}

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	var providers []string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch provider snapshots and update the record store without touching files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(ctx, cmd, syncrun.Options{
				Mode:      syncrun.ModeRefresh,
				Providers: parseProviders(providers),
			})
		},
	}

	cmd.Flags().StringSliceVar(&providers, "provider", nil, "Limit to specific providers (tic80, itch)")
	return cmd
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the actions a sync would take, without fetching or executing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(ctx, cmd, syncrun.Options{
				Mode:  syncrun.ModePlan,
				Prune: prune,
			})
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "Include REMOVE actions for excluded or upstream-removed records")
	return cmd
}

func newRenameCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Apply the current naming config to existing files, offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(ctx, cmd, syncrun.Options{
				Mode:   syncrun.ModeRename,
				DryRun: dryRun,
			})
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show renames without executing them")
	return cmd
}

func executeRun(ctx *commandContext, cmd *cobra.Command, opts syncrun.Options) error {
	runner, history, err := ctx.runner()
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	summary, runErr := runner.Run(cmd.Context(), opts)
	if summary != nil {
		printSummary(cmd.OutOrStdout(), summary, opts)
	}
	if runErr != nil {
		return runErr
	}
	if summary != nil && summary.Failed > 0 {
		return fmt.Errorf("%d action(s) failed", summary.Failed)
	}
	return nil
}

func printSummary(out io.Writer, summary *syncrun.Summary, opts syncrun.Options) {
	for _, report := range summary.Reports {
		fmt.Fprintln(out, report.String())
	}
	for _, unfetched := range summary.Unfetched {
		if unfetched.NeedsManual {
			fmt.Fprintf(out, "%s: needs manual input, records untouched (%v)\n", unfetched.Provider, unfetched.Err)
		} else {
			fmt.Fprintf(out, "%s: fetch failed, records untouched (%v)\n", unfetched.Provider, unfetched.Err)
		}
	}

	plan := summary.Plan
	if plan == nil {
		return
	}
	if plan.Empty() && len(plan.Conflicts) == 0 && len(plan.Skipped) == 0 {
		fmt.Fprintln(out, "Everything in sync, nothing to do")
		return
	}

	if len(plan.Actions) > 0 {
		planOnly := opts.DryRun || opts.Mode == syncrun.ModePlan
		if planOnly {
			printPlanActions(out, plan)
		}
		counts := plan.Counts()
		fmt.Fprintf(out, "Planned: %d download, %d rename, %d backup+replace, %d remove\n",
			counts[syncplan.KindDownload], counts[syncplan.KindRename],
			counts[syncplan.KindBackupReplace], counts[syncplan.KindRemove])
		if !planOnly {
			fmt.Fprintf(out, "Applied: %d succeeded, %d failed\n", summary.Applied, summary.Failed)
		}
	}
	for _, conflict := range plan.Conflicts {
		fmt.Fprintf(out, "Conflict at %s: %s\n", conflict.Path, conflict.Detail)
	}
	for _, skipped := range plan.Skipped {
		fmt.Fprintf(out, "Skipped %s: %s\n", skipped.Identity, skipped.Reason)
	}
}

func printPlanActions(out io.Writer, plan *syncplan.Plan) {
	rows := make([][]string, 0, len(plan.Actions))
	for _, action := range plan.Actions {
		path := action.DestPath
		if path == "" {
			path = action.SourcePath
		}
		rows = append(rows, []string{
			string(action.Kind),
			action.Identity.String(),
			string(action.Role),
			string(action.Reason),
			path,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Action", "Record", "Asset", "Reason", "Path"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
}

func parseProviders(values []string) []collection.Provider {
	var out []collection.Provider
	for _, v := range values {
		out = append(out, collection.Provider(v))
	}
	return out
}
