package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDashboardCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show current metrics, recent alerts and the daily trend",
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

			dashboard, err := app.Dashboard.Build(ctx, time.Now())
			if err != nil {
				return fmt.Errorf("failed to build dashboard: %w", err)
			}

			out := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				return outputAsJSON(out, dashboard)
			case formatYAML:
				return outputAsYAML(out, dashboard)
			default:
				renderDashboard(out, dashboard)
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatText, "Output format: text, json or yaml")

	return cmd
}
