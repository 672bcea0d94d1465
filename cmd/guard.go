package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"warden/bootstrap"
	"warden/config"
	"warden/core"
	"warden/guard"

	"github.com/spf13/cobra"
)

// guardVerdict is the machine-readable outcome of the guard command
type guardVerdict struct {
	Statement       string                 `json:"statement"`
	Allowed         bool                   `json:"allowed"`
	Category        string                 `json:"category,omitempty"`
	Table           string                 `json:"table,omitempty"`
	Reason          string                 `json:"reason,omitempty"`
	SanitizedParams map[string]interface{} `json:"sanitized_params,omitempty"`
}

func newGuardCmd() *cobra.Command {
	var (
		output string
		tables []string
		params map[string]string
	)

	cmd := &cobra.Command{
		Use:   "guard <statement>",
		Short: "Check a statement against the attack signatures and table whitelist",
		Long: `Validate a statement the way the guarded executor would, without running it.
The configured whitelist applies unless --tables is given. Exits non-zero when
the statement is rejected. No security event is recorded.`,
		Example: `  warden guard "SELECT id FROM accounts WHERE id = ?" --tables accounts
  warden guard "SELECT * FROM users WHERE name = ?" --param 1="bob" -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output, formatText, formatJSON, formatYAML)
			if err != nil {
				return err
			}

			_, sugar, err := bootstrap.InitCLILogger()
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			patterns, err := cfg.PatternSet()
			if err != nil {
				return fmt.Errorf("failed to compile guard patterns: %w", err)
			}
			g, err := guard.New(guard.Options{
				Patterns:      patterns,
				AllowedTables: cfg.Guard.AllowedTables,
				Logger:        sugar,
			})
			if err != nil {
				return err
			}

			bound := make(map[string]interface{}, len(params))
			for k, v := range params {
				bound[k] = v
			}

			verdict := evaluateStatement(cmd.Context(), g, args[0], bound, tables)

			out := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				err = outputAsJSON(out, verdict)
			case formatYAML:
				err = outputAsYAML(out, verdict)
			default:
				renderGuardVerdict(out, verdict)
			}
			if err != nil {
				return err
			}

			if !verdict.Allowed {
				return errStatementRejected
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatText, "Output format: text, json or yaml")
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "Whitelist to use instead of guard.allowed_tables")
	cmd.Flags().StringToStringVar(&params, "param", nil, "Parameter to sanitize, as key=value (repeatable)")

	return cmd
}

func evaluateStatement(ctx context.Context, g *guard.Guard, statement string, params map[string]interface{}, tables []string) guardVerdict {
	verdict := guardVerdict{Statement: statement}

	err := g.Validate(ctx, statement, params, tables...)
	if err == nil {
		verdict.Allowed = true
		if len(params) > 0 {
			verdict.SanitizedParams = guard.Sanitize(params)
		}
		return verdict
	}

	verdict.Reason = err.Error()
	var te *core.UnauthorizedTableError
	switch {
	case errors.As(err, &te):
		verdict.Table = te.Table
	default:
		verdict.Category = guard.Category(err)
	}
	return verdict
}

func renderGuardVerdict(w io.Writer, v guardVerdict) {
	if v.Allowed {
		successColor.Fprintln(w, "ALLOWED")
	} else {
		errorColor.Fprintln(w, "REJECTED")
		if v.Category != "" {
			printField(w, "Attack signature", v.Category)
		}
		if v.Table != "" {
			printField(w, "Table outside whitelist", v.Table)
		}
	}

	if len(v.SanitizedParams) == 0 {
		return
	}
	printSection(w, "Sanitized parameters")
	keys := make([]string, 0, len(v.SanitizedParams))
	for k := range v.SanitizedParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		printField(w, k, fmt.Sprint(v.SanitizedParams[k]))
	}
}
