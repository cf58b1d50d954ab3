package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/syssam/strata/dialect"
)

// DefaultSlowThreshold is the duration above which a statement is slow.
const DefaultSlowThreshold = 100 * time.Millisecond

// QueryStats counts the statements run through a StatsDriver. It is safe for
// concurrent use.
type QueryStats struct {
	queries atomic.Int64
	execs   atomic.Int64
	errors  atomic.Int64
	slow    atomic.Int64
	elapsed atomic.Int64
}

// Snapshot is a copy of the counters at one point in time.
type Snapshot struct {
	Queries int64
	Execs   int64
	Errors  int64
	Slow    int64
	Elapsed time.Duration
}

// Snapshot returns the current counters.
func (s *QueryStats) Snapshot() Snapshot {
	return Snapshot{
		Queries: s.queries.Load(),
		Execs:   s.execs.Load(),
		Errors:  s.errors.Load(),
		Slow:    s.slow.Load(),
		Elapsed: time.Duration(s.elapsed.Load()),
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d errors=%d slow=%d elapsed=%s",
		s.Queries, s.Execs, s.Errors, s.Slow, s.Elapsed)
}

// StatsDriver counts the statements of a driver and its transactions, and
// logs the slow ones.
type StatsDriver struct {
	dialect.Driver
	stats     *QueryStats
	threshold time.Duration
	logger    *slog.Logger
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which statements count as slow.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold = d
	}
}

// WithSlowQueryLog logs slow statements to l at warn level.
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	return func(s *StatsDriver) {
		s.logger = l
	}
}

// NewStatsDriver wraps drv. Slow statements are counted but not logged
// unless WithSlowQueryLog is given.
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{Driver: drv, stats: &QueryStats{}, threshold: DefaultSlowThreshold}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the counters of the driver.
func (d *StatsDriver) QueryStats() *QueryStats { return d.stats }

// Query implements dialect.Querier.
func (d *StatsDriver) Query(ctx context.Context, query string, params dialect.Params) ([][]any, error) {
	start := time.Now()
	rows, err := d.Driver.Query(ctx, query, params)
	d.observe(ctx, &d.stats.queries, query, params, start, err)
	return rows, err
}

// Exec implements dialect.Execer.
func (d *StatsDriver) Exec(ctx context.Context, query string, params dialect.Params) (int64, error) {
	start := time.Now()
	n, err := d.Driver.Exec(ctx, query, params)
	d.observe(ctx, &d.stats.execs, query, params, start, err)
	return n, err
}

// Tx starts a transaction whose statements are counted too.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &statsTx{Tx: tx, d: d}, nil
}

func (d *StatsDriver) observe(ctx context.Context, counter *atomic.Int64, query string, params dialect.Params, start time.Time, err error) {
	elapsed := time.Since(start)
	counter.Add(1)
	d.stats.elapsed.Add(int64(elapsed))
	if err != nil {
		d.stats.errors.Add(1)
	}
	if elapsed <= d.threshold {
		return
	}
	d.stats.slow.Add(1)
	if d.logger != nil {
		d.logger.WarnContext(ctx, "slow query", "elapsed", elapsed, "query", query, "params", params.String())
	}
}

type statsTx struct {
	dialect.Tx
	d *StatsDriver
}

func (tx *statsTx) Query(ctx context.Context, query string, params dialect.Params) ([][]any, error) {
	start := time.Now()
	rows, err := tx.Tx.Query(ctx, query, params)
	tx.d.observe(ctx, &tx.d.stats.queries, query, params, start, err)
	return rows, err
}

func (tx *statsTx) Exec(ctx context.Context, query string, params dialect.Params) (int64, error) {
	start := time.Now()
	n, err := tx.Tx.Exec(ctx, query, params)
	tx.d.observe(ctx, &tx.d.stats.execs, query, params, start, err)
	return n, err
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*statsTx)(nil)
)
