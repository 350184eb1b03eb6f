package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"holoexport/internal/jobs"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show export job counts from the local job database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := jobs.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()

			summary, err := store.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("query job store: %w", err)
			}

			rows := [][]string{
				{"Pending", strconv.Itoa(summary.Pending)},
				{"Processing", strconv.Itoa(summary.Processing)},
				{"Complete", strconv.Itoa(summary.Complete)},
				{"Failed", strconv.Itoa(summary.Failed)},
				{"Total", strconv.Itoa(summary.Total)},
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Status", "Jobs"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			fmt.Fprintf(out, "Job database: %s\n", store.Path())
			return nil
		},
	}
}
