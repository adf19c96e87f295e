package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cartkeep/internal/runlog"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var failuresFor string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the history of past sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			history, err := runlog.Open(cfg.Paths.LogDir)
			if err != nil {
				return fmt.Errorf("open runlog: %w", err)
			}
			defer history.Close()

			out := cmd.OutOrStdout()
			if failuresFor != "" {
				failures, err := history.FailuresFor(cmd.Context(), failuresFor)
				if err != nil {
					return err
				}
				if len(failures) == 0 {
					fmt.Fprintln(out, "No failures recorded for that run")
					return nil
				}
				rows := make([][]string, 0, len(failures))
				for _, f := range failures {
					rows = append(rows, []string{f.Identity, f.Role, f.Action, f.Detail})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Record", "Asset", "Action", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			}

			runs, err := history.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				outcome := "ok"
				switch {
				case run.FinishedAt.IsZero():
					outcome = "interrupted"
				case run.Error != "":
					outcome = "error"
				case run.ActionsFailed > 0:
					outcome = fmt.Sprintf("%d failed", run.ActionsFailed)
				}
				rows = append(rows, []string{
					run.ID,
					humanize.Time(run.StartedAt),
					run.Mode,
					yesNo(run.DryRun),
					fmt.Sprint(run.ActionsPlanned),
					fmt.Sprint(run.ActionsApplied),
					outcome,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Mode", "Dry", "Planned", "Applied", "Outcome"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVar(&failuresFor, "failures", "", "Show recorded failures for one run id")
	return cmd
}
