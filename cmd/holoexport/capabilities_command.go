package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"holoexport/internal/deps"
	"holoexport/internal/export"
	"holoexport/internal/logging"
)

func newCapabilitiesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "List export formats and the qualities each supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger := logging.NewNop()
			locator := deps.NewLocator(cfg, logger)
			registry, err := export.NewDefaultRegistry(cfg, locator, logger)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, 3)
			for _, descriptor := range registry.Capabilities() {
				rows = append(rows, []string{
					string(descriptor.Format),
					descriptor.Name,
					qualityLabels(descriptor.Qualities),
					fmt.Sprintf("%dx%d", descriptor.MaxWidth, descriptor.MaxHeight),
					yesNo(descriptor.SupportsAlpha),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Format", "Encoder", "Qualities", "Max Resolution", "Alpha"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func qualityLabels(qualities []export.Quality) string {
	titleCaser := cases.Title(language.Und)
	labels := make([]string, 0, len(qualities))
	for _, quality := range qualities {
		labels = append(labels, titleCaser.String(string(quality)))
	}
	return strings.Join(labels, ", ")
}
