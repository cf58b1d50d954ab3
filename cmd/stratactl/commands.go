package main

import (
	stdsql "database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/inflection"
)

func newPluralCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plural WORD...",
		Short: "Print the table name derived from entity names",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, w := range args {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", w, inflection.Pluralize(w))
			}
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  `Print the configuration after layering defaults, file, environment and flags. Passwords are redacted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newBindCmd(a *app) *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "bind STATEMENT",
		Short: "Show how a statement is sent to the configured dialect",
		Example: `  stratactl bind --dialect postgres 'SELECT * FROM "Heroes" WHERE ("Age" > @p1)' -p p1=18`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := parseParams(params)
			if err != nil {
				return err
			}
			q, bound, err := sql.Bind(a.cfg.Dialect, args[0], ps)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(w, q)
			for i, v := range bound {
				_, _ = fmt.Fprintf(w, "  %d: %s\n", i+1, formatValue(v))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "statement parameter as name=value (repeatable)")
	return cmd
}

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured database is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			drv, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer drv.Close()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s, %s)\n",
				a.cfg.Redacted(), drv.Dialect(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		params []string
		format string
	)
	cmd := &cobra.Command{
		Use:   "query STATEMENT",
		Short: "Run a statement and print its rows",
		Long: `Run a statement against the configured database and print its rows.
Parameters are written as @name in the statement and bound with --param.`,
		Example: `  stratactl query --dsn file:app.db 'SELECT "Name", "Age" FROM "Heroes" WHERE "Age" > @p1' -p p1=18`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ps, err := parseParams(params)
			if err != nil {
				return err
			}
			q, bound, err := sql.Bind(a.cfg.Dialect, args[0], ps)
			if err != nil {
				return err
			}
			drv, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer drv.Close()

			a.debugf(ctx, "query: %s args: %v", q, bound)
			rows, err := drv.DB().QueryContext(ctx, q, bound...)
			if err != nil {
				return err
			}
			defer rows.Close()
			cols, err := rows.Columns()
			if err != nil {
				return err
			}
			values, err := sql.ScanRows(rows)
			if err != nil {
				return err
			}
			return renderRows(cmd.OutOrStdout(), format, cols, values)
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "statement parameter as name=value (repeatable)")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, csv or markdown")
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "csv", "markdown"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// parseParams parses name=value pairs. Integer, float and boolean literals
// are bound with their Go types, anything else as a string.
func parseParams(pairs []string) (dialect.Params, error) {
	ps := make(dialect.Params, len(pairs))
	for _, kv := range pairs {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", kv)
		}
		name = strings.TrimPrefix(name, "@")
		switch {
		case isInt(value):
			n, _ := strconv.ParseInt(value, 10, 64)
			ps[name] = n
		case isFloat(value):
			f, _ := strconv.ParseFloat(value, 64)
			ps[name] = f
		case value == "true" || value == "false":
			ps[name] = value == "true"
		default:
			ps[name] = value
		}
	}
	return ps, nil
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil && strings.ContainsAny(s, ".eE")
}

func renderRows(w io.Writer, format string, cols []string, rows [][]any) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, r := range rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}
	switch format {
	case "csv":
		t.RenderCSV()
	case "md", "markdown":
		t.RenderMarkdown()
	case "table", "":
		t.Render()
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case stdsql.NamedArg:
		return "@" + v.Name + " = " + formatValue(v.Value)
	default:
		return fmt.Sprint(v)
	}
}
