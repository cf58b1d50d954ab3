// Package client is a small CRUD façade over the query builder, the entity
// materializer and the relation resolver.
//
//	c, err := client.Open("sqlite", "file:app.db", client.AutoRelations())
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if _, err := c.Insert(ctx, &Hero{Name: "Bob", Age: 30}); err != nil {
//	    return err
//	}
//	adults, err := client.Query[Hero](ctx, c, predicate.F("Age").GT(18))
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/config"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sql/sqlbuild"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
	"github.com/syssam/strata/dialect/sql/sqlscan"
	"github.com/syssam/strata/schema"
)

// Option function to configure the client.
type Option func(*options)

// options holds the configuration of the client.
type options struct {
	registry      *schema.Registry
	workers       int
	relations     bool
	maxStatement  int
	maxParams     int
	engine        string
	logger        *slog.Logger
	debug         bool
	slowThreshold time.Duration
	cache         strata.Cache
	cacheTTL      time.Duration
}

// Registry sets the descriptor registry. By default every client owns one.
func Registry(reg *schema.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// Workers sets the number of materialization workers.
func Workers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// AutoRelations enables loading the relations of every queried entity.
func AutoRelations() Option {
	return func(o *options) {
		o.relations = true
	}
}

// MaxStatementSize sets the bulk insert statement size limit.
func MaxStatementSize(n int) Option {
	return func(o *options) {
		o.maxStatement = n
	}
}

// MaxParams sets the bulk insert bound parameter limit. It defaults to the
// limit of the dialect.
func MaxParams(n int) Option {
	return func(o *options) {
		o.maxParams = n
	}
}

// Engine sets the MySQL storage engine used by CreateTable.
func Engine(name string) Option {
	return func(o *options) {
		o.engine = name
	}
}

// Logger sets the logger of the client and its components.
func Logger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Debug logs every statement at debug level.
func Debug() Option {
	return func(o *options) {
		o.debug = true
	}
}

// SlowQueryLog counts statements and logs the ones slower than threshold.
func SlowQueryLog(threshold time.Duration) Option {
	return func(o *options) {
		o.slowThreshold = threshold
	}
}

// Cache keeps query results in c for ttl, or until the next mutation when
// ttl is zero.
func Cache(c strata.Cache, ttl time.Duration) Option {
	return func(o *options) {
		o.cache, o.cacheTTL = c, ttl
	}
}

// Client runs entity operations against one driver. It is safe for
// concurrent use.
type Client struct {
	options
	driver  dialect.Driver
	eq      dialect.ExecQuerier
	builder *sqlbuild.Builder
	scanner *sqlscan.Materializer
	stats   *sql.QueryStats
}

// New creates a client over drv.
func New(drv dialect.Driver, opts ...Option) (*Client, error) {
	if drv == nil {
		return nil, errors.New("client: nil driver")
	}
	if !dialect.Valid(drv.Dialect()) {
		return nil, fmt.Errorf("client: unsupported dialect %q", drv.Dialect())
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = schema.NewRegistry()
	}
	c := &Client{options: o}
	if o.debug {
		drv = sql.NewDebugDriver(drv, o.logger)
	}
	if o.slowThreshold > 0 {
		sd := sql.NewStatsDriver(drv, sql.WithSlowThreshold(o.slowThreshold), sql.WithSlowQueryLog(o.logger))
		c.stats = sd.QueryStats()
		drv = sd
	}
	c.driver = drv
	c.eq = drv
	if o.cache != nil {
		c.eq = sql.NewCachedQuerier(drv, o.cache, sql.WithTTL(o.cacheTTL), sql.WithCacheLogger(o.logger))
	}
	var bopts []sqlbuild.Option
	if o.maxStatement > 0 {
		bopts = append(bopts, sqlbuild.WithMaxStatementSize(o.maxStatement))
	}
	if o.maxParams > 0 {
		bopts = append(bopts, sqlbuild.WithMaxParams(o.maxParams))
	}
	c.builder = sqlbuild.New(o.registry, drv.Dialect(), bopts...)
	c.scanner = c.materializer(c.eq)
	return c, nil
}

func (c *Client) materializer(q dialect.Querier) *sqlscan.Materializer {
	sopts := []sqlscan.Option{sqlscan.WithLogger(c.logger)}
	if c.workers > 0 {
		sopts = append(sopts, sqlscan.WithWorkers(c.workers))
	}
	if c.relations {
		sopts = append(sopts, sqlscan.WithRelations(c.resolver(q)))
	}
	return sqlscan.New(c.registry, sopts...)
}

func (c *Client) resolver(q dialect.Querier) *sqlgraph.Resolver {
	return sqlgraph.NewResolver(c.builder, q, sqlgraph.WithLogger(c.logger))
}

// Open opens a database/sql connection and returns a client over it.
func Open(driverName, dataSourceName string, opts ...Option) (*Client, error) {
	drv, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	c, err := New(drv, opts...)
	if err != nil {
		return nil, errors.Join(err, drv.Close())
	}
	return c, nil
}

// OpenConfig opens a client from a loaded configuration. Explicit options
// are applied after the configured ones.
func OpenConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var ropts []schema.RegistryOption
	if cfg.Naming == config.NamingSnakeCase {
		ropts = append(ropts, schema.WithNaming(schema.SnakeCase))
	}
	base := []Option{
		Registry(schema.NewRegistry(ropts...)),
		Workers(cfg.Workers),
		MaxStatementSize(cfg.MaxStatementSize),
		Engine(cfg.Engine),
		SlowQueryLog(cfg.SlowThreshold),
	}
	if cfg.AutoRelations {
		base = append(base, AutoRelations())
	}
	return Open(cfg.DriverName(), cfg.DSN, append(base, opts...)...)
}

// Builder returns the statement builder of the client.
func (c *Client) Builder() *sqlbuild.Builder { return c.builder }

// Registry returns the descriptor registry of the client.
func (c *Client) Registry() *schema.Registry { return c.registry }

// Dialect returns the dialect of the underlying driver.
func (c *Client) Dialect() string { return c.driver.Dialect() }

// Stats returns the statement statistics, or nil unless SlowQueryLog is set.
func (c *Client) Stats() *sql.QueryStats { return c.stats }

// Close closes the underlying driver.
func (c *Client) Close() error { return c.driver.Close() }

// Tx is a client bound to one transaction.
type Tx struct {
	*Client
	tx dialect.Tx
}

// Tx starts a transaction. Statements of the returned client bypass the
// result cache. A transaction holds a single connection, so its entities are
// materialized by one worker and their relation queries never overlap.
func (c *Client) Tx(ctx context.Context) (*Tx, error) {
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: starting a transaction: %w", err)
	}
	txc := *c
	txc.eq = tx
	txc.workers = 1
	txc.scanner = txc.materializer(tx)
	return &Tx{Client: &txc, tx: tx}, nil
}

// Commit commits the transaction and invalidates cached results.
func (tx *Tx) Commit() error {
	if err := tx.tx.Commit(); err != nil {
		return err
	}
	if tx.cache != nil {
		return tx.cache.Clear(context.Background())
	}
	return nil
}

// Rollback rolls the transaction back.
func (tx *Tx) Rollback() error { return tx.tx.Rollback() }

// Close is a no-op on transactional clients; the driver belongs to the
// parent client.
func (tx *Tx) Close() error { return nil }

// WithTx runs fn in a transaction, committing on success and rolling back
// on error or panic.
func (c *Client) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := c.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("client: committing transaction: %w", err)
	}
	return nil
}

// descriptor returns the descriptor of the entity type T.
func descriptor[T any](c *Client) (*schema.Descriptor, error) {
	return c.registry.DescriptorOf(reflect.TypeFor[T]())
}

// label names an entity value in errors, even when its type is not
// describable.
func label(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && (t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}
