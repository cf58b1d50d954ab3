package sql

import (
	"context"
	"log/slog"

	"github.com/syssam/strata/dialect"
)

// DebugDriver logs every statement of a driver and its transactions at debug
// level.
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
}

// NewDebugDriver wraps drv. A nil logger logs to slog.Default().
func NewDebugDriver(drv dialect.Driver, l *slog.Logger) *DebugDriver {
	if l == nil {
		l = slog.Default()
	}
	return &DebugDriver{Driver: drv, logger: l}
}

// Query implements dialect.Querier.
func (d *DebugDriver) Query(ctx context.Context, query string, params dialect.Params) ([][]any, error) {
	d.logger.DebugContext(ctx, "query", "sql", query, "params", params.String())
	return d.Driver.Query(ctx, query, params)
}

// Exec implements dialect.Execer.
func (d *DebugDriver) Exec(ctx context.Context, query string, params dialect.Params) (int64, error) {
	d.logger.DebugContext(ctx, "exec", "sql", query, "params", params.String())
	return d.Driver.Exec(ctx, query, params)
}

// Tx starts a transaction whose statements are logged with tx=true.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.logger.DebugContext(ctx, "begin")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &debugTx{Tx: tx, logger: d.logger.With("tx", true)}, nil
}

type debugTx struct {
	dialect.Tx
	logger *slog.Logger
}

func (tx *debugTx) Query(ctx context.Context, query string, params dialect.Params) ([][]any, error) {
	tx.logger.DebugContext(ctx, "query", "sql", query, "params", params.String())
	return tx.Tx.Query(ctx, query, params)
}

func (tx *debugTx) Exec(ctx context.Context, query string, params dialect.Params) (int64, error) {
	tx.logger.DebugContext(ctx, "exec", "sql", query, "params", params.String())
	return tx.Tx.Exec(ctx, query, params)
}

func (tx *debugTx) Commit() error {
	tx.logger.Debug("commit")
	return tx.Tx.Commit()
}

func (tx *debugTx) Rollback() error {
	tx.logger.Debug("rollback")
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*debugTx)(nil)
)
