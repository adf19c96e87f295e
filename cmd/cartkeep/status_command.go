package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cartkeep/internal/collection"
	"cartkeep/internal/fsprobe"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var listRecords bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize the record store and the on-disk collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.store()
			if err != nil {
				return err
			}
			records, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load record store: %w", err)
			}

			state, err := fsprobe.Scan(cfg.Paths.LibraryDir)
			if err != nil {
				return fmt.Errorf("probe library: %w", err)
			}

			out := cmd.OutOrStdout()
			printStatusSummary(out, records, state, cfg.Paths.StorePath, cfg.Paths.LibraryDir)
			if listRecords {
				printRecordList(out, records)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&listRecords, "list", "l", false, "List every record")
	return cmd
}

func printStatusSummary(out io.Writer, records []collection.Record, state *fsprobe.State, storePath, libraryDir string) {
	byStatus := make(map[collection.Status]int)
	included, excluded := 0, 0
	for i := range records {
		byStatus[records[i].Status]++
		switch records[i].Include {
		case collection.Included:
			included++
		case collection.Excluded:
			excluded++
		}
	}

	fmt.Fprintf(out, "Store:   %s (%d records)\n", storePath, len(records))
	fmt.Fprintf(out, "Library: %s (%d files, %s)\n", libraryDir, state.Len(), humanize.IBytes(uint64(state.TotalSize())))
	fmt.Fprintln(out)

	rows := [][]string{
		{"NEW", fmt.Sprint(byStatus[collection.StatusNew])},
		{"SYNCED", fmt.Sprint(byStatus[collection.StatusSynced])},
		{"UPDATE_AVAILABLE", fmt.Sprint(byStatus[collection.StatusUpdateAvailable])},
		{"REMOVED_UPSTREAM", fmt.Sprint(byStatus[collection.StatusRemovedUpstream])},
		{"included", fmt.Sprint(included)},
		{"excluded", fmt.Sprint(excluded)},
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Status", "Records"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
}

func printRecordList(out io.Writer, records []collection.Record) {
	sorted := make([]collection.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SortKey() < sorted[j].SortKey()
	})

	rows := make([][]string, 0, len(sorted))
	for i := range sorted {
		rec := &sorted[i]
		rows = append(rows, []string{
			rec.Identity().String(),
			rec.DisplayName(),
			rec.EffectiveCategory(),
			string(rec.Status),
			string(rec.Include),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Identity", "Name", "Category", "Status", "Inc"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
}
