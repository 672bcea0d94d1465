package cmd

import (
	"context"
	"fmt"

	"warden/bootstrap"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor scheduler and the operational API",
		Long: `Start the collect and archive jobs and serve the security health, dashboard,
alert and metrics endpoints until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe initializes and starts warden, then blocks until a shutdown signal
func runServe(ctx context.Context) error {
	app, err := bootstrap.NewApp(ctx, bootstrap.AppOptions{})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	app.WaitForShutdown()
	app.Shutdown()
	return nil
}
