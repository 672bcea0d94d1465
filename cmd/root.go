// Package cmd provides the warden command-line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"warden/bootstrap"
	"warden/util"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// defaultTimeout bounds one-shot CLI operations
const defaultTimeout = 2 * time.Minute

// errChecksFailed and errStatementRejected carry a non-zero exit status
// without an extra error line; the command has already printed why.
var (
	errChecksFailed      = errors.New("security validation failed")
	errStatementRejected = errors.New("statement rejected")
)

// globalOptions holds the persistent flags shared by every subcommand
type globalOptions struct {
	configFile string
	noColor    bool
	quiet      bool
}

// NewRootCmd builds the warden command tree. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "warden",
		Short: "Security validation and monitoring core",
		Long: `warden guards data-access statements against injection, records security
events, aggregates them into metrics, raises alerts on anomalies and runs an
on-demand security self-test.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.noColor {
				color.NoColor = true
			}
			if opts.configFile != "" {
				path, err := util.ValidateFilePath(opts.configFile, true)
				if err != nil {
					return fmt.Errorf("config file: %w", err)
				}
				if _, err := os.Stat(path); err != nil {
					return fmt.Errorf("config file: %w", err)
				}
				viper.SetConfigFile(path)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file path (default: ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVar(&opts.quiet, "quiet", false, "Suppress non-essential output")

	root.AddCommand(newServeCmd())
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newDashboardCmd())
	root.AddCommand(newGuardCmd())
	root.AddCommand(newArchiveCmd(opts))

	return root
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errChecksFailed) && !errors.Is(err, errStatementRejected) {
			errorColor.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// openApp wires the application for a one-shot command. The caller must Shutdown it.
func openApp(ctx context.Context) (*bootstrap.App, error) {
	app, err := bootstrap.NewApp(ctx, bootstrap.AppOptions{CLI: true})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return app, nil
}

// startSpinner shows progress on stderr for interactive text output and
// returns the function that stops it
func startSpinner(opts *globalOptions, format, suffix string) func() {
	if opts.quiet || format != formatText {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	s.Start()
	return s.Stop
}

func info(w io.Writer, opts *globalOptions, format string, args ...interface{}) {
	if opts.quiet {
		return
	}
	fmt.Fprintf(w, format, args...)
}
