package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"cartkeep/internal/export"
	"cartkeep/internal/syncrun"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var profileFlag string
	var destFlag string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a filtered sub-collection into a standalone directory with a gamelist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			profile, err := export.ParseProfile(profileFlag)
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

			selected := export.Select(records, profile)
			if len(selected) == 0 {
				return fmt.Errorf("profile %q selects no records", profile)
			}

			dest := destFlag
			if dest == "" {
				dest = filepath.Join(cfg.Paths.ExportDir,
					fmt.Sprintf("%s-%s", profile, time.Now().Format("2006-01-02")))
			}

			packager := export.NewPackager(cfg.Paths.LibraryDir, syncrun.NamingConfig(cfg), logger)
			summary, err := packager.Package(selected, dest)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Exported %d file(s) for %d record(s) to %s\n", summary.Files, summary.Records, dest)
			if len(summary.Missing) > 0 {
				fmt.Fprintf(out, "%d record(s) had assets missing from the library; run sync first for a complete export\n", len(summary.Missing))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&profileFlag, "profile", "p", string(export.ProfileCurated),
		fmt.Sprintf("Selection profile (%s)", profileList()))
	cmd.Flags().StringVarP(&destFlag, "dest", "d", "", "Destination directory (default: export_dir/<profile>-<date>)")
	return cmd
}

func profileList() string {
	s := ""
	for i, p := range export.Profiles {
		if i > 0 {
			s += ", "
		}
		s += string(p)
	}
	return s
}
