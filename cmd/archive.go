package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func newArchiveCmd(opts *globalOptions) *cobra.Command {
	var (
		output  string
		collect bool
	)

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Prune security events older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output, formatText, formatJSON, formatYAML)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			out := cmd.OutOrStdout()
			if collect {
				result := app.Pipeline.Collect(ctx)
				if format == formatText {
					info(out, opts, "Collected snapshot: %d requests, %d attacks, %d alerts\n",
						result.Metrics.TotalRequests, result.Metrics.AttackAttempts, len(result.Alerts))
				}
			}

			report := app.Pipeline.Archive(ctx)
			switch format {
			case formatJSON:
				return outputAsJSON(out, report)
			case formatYAML:
				return outputAsYAML(out, report)
			default:
				renderArchiveReport(out, report)
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatText, "Output format: text, json or yaml")
	cmd.Flags().BoolVar(&collect, "collect", false, "Run a collect cycle before archiving")

	return cmd
}
