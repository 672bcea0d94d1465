package cmd

import (
	"context"
	"fmt"

	"warden/validation"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the security self-test",
		Long: `Run every validation check against the configured stores, secrets and
headers. Exits non-zero when the overall status is fail.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output, formatText, formatJSON, formatYAML, formatMarkdown)
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

			stop := startSpinner(opts, format, " Running security checks...")
			result := app.Validator.Run(ctx)
			stop()

			out := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				err = outputAsJSON(out, result)
			case formatYAML:
				err = outputAsYAML(out, result)
			case formatMarkdown:
				_, err = fmt.Fprint(out, validation.RenderMarkdown(result))
			default:
				renderValidation(out, result)
			}
			if err != nil {
				return err
			}

			if !result.Passed() {
				return errChecksFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatText, "Output format: text, json, yaml or markdown")

	return cmd
}
