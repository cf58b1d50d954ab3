package sql

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
)

// CachedQuerier is a read-through result cache in front of an ExecQuerier.
// Query results are stored msgpack encoded under strata.CacheKey; every Exec
// clears the whole cache.
type CachedQuerier struct {
	dialect.ExecQuerier
	cache  strata.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// CacheOption configures a CachedQuerier.
type CacheOption func(*CachedQuerier)

// WithTTL sets the lifetime of cached results. Zero keeps them until the next
// Exec.
func WithTTL(ttl time.Duration) CacheOption {
	return func(q *CachedQuerier) {
		q.ttl = ttl
	}
}

// WithCacheLogger sets the logger cache failures are reported to.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(q *CachedQuerier) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewCachedQuerier wraps eq with the given cache.
func NewCachedQuerier(eq dialect.ExecQuerier, c strata.Cache, opts ...CacheOption) *CachedQuerier {
	q := &CachedQuerier{ExecQuerier: eq, cache: c, logger: slog.Default()}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Query returns the cached rows of the statement, or runs it and caches the
// result. Cache failures are logged and never fail the query.
func (q *CachedQuerier) Query(ctx context.Context, query string, params dialect.Params) ([][]any, error) {
	key := strata.CacheKey{SQL: query, Params: params}.String()
	b, err := q.cache.Get(ctx, key)
	switch {
	case err != nil:
		q.logger.WarnContext(ctx, "dialect/sql: cache get failed", "key", key, "error", err)
	case b != nil:
		rows, err := decodeRows(b)
		if err == nil {
			return rows, nil
		}
		q.logger.WarnContext(ctx, "dialect/sql: cached rows undecodable", "key", key, "error", err)
	}
	rows, err := q.ExecQuerier.Query(ctx, query, params)
	if err != nil {
		return nil, err
	}
	b, err = msgpack.Marshal(rows)
	if err != nil {
		q.logger.WarnContext(ctx, "dialect/sql: rows not cacheable", "key", key, "error", err)
		return rows, nil
	}
	if err := q.cache.Set(ctx, key, b, q.ttl); err != nil {
		q.logger.WarnContext(ctx, "dialect/sql: cache set failed", "key", key, "error", err)
	}
	return rows, nil
}

// Exec runs the statement and invalidates all cached results.
func (q *CachedQuerier) Exec(ctx context.Context, query string, params dialect.Params) (int64, error) {
	n, err := q.ExecQuerier.Exec(ctx, query, params)
	if cerr := q.cache.Clear(ctx); cerr != nil {
		q.logger.WarnContext(ctx, "dialect/sql: cache clear failed", "error", cerr)
	}
	return n, err
}

func decodeRows(b []byte) ([][]any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

var _ dialect.ExecQuerier = (*CachedQuerier)(nil)
