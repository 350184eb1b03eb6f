package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"holoexport/internal/deps"
	"holoexport/internal/logging"
	"holoexport/internal/preflight"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check encoder availability and directory access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			locator := deps.NewLocator(cfg, logging.NewNop())
			results := preflight.RunAll(cmd.Context(), cfg, locator)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Holoexport Health", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, result := range results {
				kind := statusError
				if result.Passed {
					kind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			if !preflight.AllPassed(results) {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
