package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/syssam/strata/config"
	"github.com/syssam/strata/dialect/sql"
)

// Version is set at build time.
var Version = "0.1.0"

// app carries the state shared by the subcommands.
type app struct {
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "stratactl",
		Short: "Inspect strata configurations and databases",
		Long: `stratactl loads a strata configuration the same way client.OpenConfig does
(defaults, YAML file, STRATA_ environment variables, flags) and runs
diagnostics against the configured database.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(a.cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log every statement")
	config.RegisterFlags(pf)
	_ = root.RegisterFlagCompletionFunc("dialect", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"mysql", "postgres", "sqlite"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newPluralCmd(),
		newConfigCmd(a),
		newBindCmd(a),
		newPingCmd(a),
		newQueryCmd(a),
	)
	return root
}

// open opens and pings the configured database.
func (a *app) open(ctx context.Context) (*sql.Driver, error) {
	drv, err := sql.Open(a.cfg.DriverName(), a.cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := drv.Ping(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping %s: %w", a.cfg.Redacted(), err), drv.Close())
	}
	return drv, nil
}

func (a *app) debugf(ctx context.Context, format string, args ...any) {
	if a.verbose {
		a.logger.DebugContext(ctx, fmt.Sprintf(format, args...))
	}
}
