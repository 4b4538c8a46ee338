package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"specimport/internal/config"
	"specimport/internal/deps"
	"specimport/internal/logging"
	"specimport/internal/staging"
)

func newDoctorCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that external dependencies are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			requirements := deps.Requirements(cfg.Parser.WorkerBinary)
			statuses := deps.CheckBinaries(requirements)

			rows := make([][]string, 0, len(statuses))
			allOK := true
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					state = "missing"
					if !status.Optional {
						allOK = false
					}
				}
				detail := status.Detail
				if detail == "" {
					detail = status.Description
				}
				rows = append(rows, []string{status.Name, status.Command, state, detail})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Dependency", "Command", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))

			if !allOK {
				return fmt.Errorf("one or more required dependencies are missing")
			}
			return nil
		},
	}
}

func newCleanCommand(configFlag *string) *cobra.Command {
	var maxAge time.Duration
	var listOnly bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale staging entries left behind by interrupted sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()

			if listOnly {
				entries, err := staging.ListEntries(cfg.Paths.StagingDir)
				if err != nil {
					return fmt.Errorf("list staging entries: %w", err)
				}
				if len(entries) == 0 {
					fmt.Fprintln(out, "Staging directory is empty.")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					kind := "file"
					if entry.Dir {
						kind = "dir"
					}
					rows = append(rows, []string{
						entry.Name,
						kind,
						entry.ModTime.Format(time.RFC3339),
						fmt.Sprintf("%d", entry.Size),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Entry", "Type", "Modified", "Bytes"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			}

			logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			result := staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, maxAge, logger)
			fmt.Fprintf(out, "Removed %d stale staging entr%s.\n", len(result.Removed), pluralY(len(result.Removed)))
			for _, cleanupErr := range result.Errors {
				fmt.Fprintf(out, "Failed to remove %s: %v\n", cleanupErr.Path, cleanupErr.Error)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("cleanup finished with %d error(s)", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "Remove entries older than this duration")
	cmd.Flags().BoolVar(&listOnly, "list", false, "List staging entries without removing anything")
	return cmd
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
