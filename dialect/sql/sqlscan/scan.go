// Package sqlscan materializes raw result rows into typed entities.
//
// Rows are read positionally against Descriptor.Columns: no column names are
// looked up while reading. Rows are independent, so a batch is split into
// contiguous ranges materialized in parallel, each entity written into its
// own slot of a pre-sized result slice.
package sqlscan

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
)

// RelationResolver populates the relation members of one materialized entity.
type RelationResolver interface {
	Resolve(ctx context.Context, d *schema.Descriptor, entity reflect.Value) error
}

// AfterLoader is implemented by entities that compute members not backed by
// any column. AfterLoad is called once per entity after it is filled.
type AfterLoader interface {
	AfterLoad()
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithWorkers sets the number of rows ranges materialized in parallel.
func WithWorkers(n int) Option {
	return func(m *Materializer) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithRelations enables relation loading through r.
func WithRelations(r RelationResolver) Option {
	return func(m *Materializer) {
		m.relations = r
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(m *Materializer) {
		if l != nil {
			m.logger = l
		}
	}
}

// Materializer converts row batches into entities.
type Materializer struct {
	reg       *schema.Registry
	workers   int
	relations RelationResolver
	logger    *slog.Logger
}

// New returns a materializer over the descriptors of reg.
func New(reg *schema.Registry, opts ...Option) *Materializer {
	m := &Materializer{
		reg:     reg,
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the descriptor registry of the materializer.
func (m *Materializer) Registry() *schema.Registry { return m.reg }

// Workers returns the parallelism of the materializer.
func (m *Materializer) Workers() int { return m.workers }

// Single returns a copy of m that materializes on the calling goroutine and
// does not load relations.
func (m *Materializer) Single() *Materializer {
	return &Materializer{reg: m.reg, workers: 1, logger: m.logger}
}

// Materialize converts rows into entities of d, returned as pointers in row
// order. Every row must carry d.ColumnCount() values; otherwise the whole
// batch is rejected with a *strata.ColumnMismatchError and no entity is
// returned.
func (m *Materializer) Materialize(ctx context.Context, d *schema.Descriptor, rows [][]any) ([]any, error) {
	want := d.ColumnCount()
	for i, row := range rows {
		if len(row) != want {
			return nil, &strata.ColumnMismatchError{Entity: d.Name, Expected: want, Actual: len(row), Row: i}
		}
	}
	out := make([]any, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	relations := m.relations != nil && len(d.Relations) > 0
	if relations && d.HasGroupedArray() {
		m.logger.Warn("sqlscan: relations of entities with grouped arrays are not loaded", "entity", d.Name)
		relations = false
	}
	workers := min(m.workers, len(rows))
	if workers <= 1 {
		return out, m.materializeRange(ctx, d, rows, out, 0, len(rows), relations)
	}
	chunk := (len(rows) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(rows); lo += chunk {
		hi := min(lo+chunk, len(rows))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return m.materializeRange(gctx, d, rows, out, lo, hi, relations)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Materializer) materializeRange(ctx context.Context, d *schema.Descriptor, rows [][]any, out []any, lo, hi int, relations bool) error {
	for i := lo; i < hi; i++ {
		ent := d.New()
		v := ent.Elem()
		if err := Fill(d, v, rows[i]); err != nil {
			return fmt.Errorf("sqlscan: %s row %d: %w", d.Name, i, err)
		}
		if relations {
			if err := m.relations.Resolve(ctx, d, v); err != nil {
				return err
			}
		}
		if al, ok := ent.Interface().(AfterLoader); ok {
			al.AfterLoad()
		}
		out[i] = ent.Interface()
	}
	return nil
}

// Fill assigns one row to the entity struct v, consuming columns in the
// order of d.Columns.
func Fill(d *schema.Descriptor, v reflect.Value, row []any) error {
	col := 0
	for _, f := range d.Fields {
		switch f.Kind {
		case schema.KindScalar:
			if err := assign(f.Value(v), row[col], f.Column); err != nil {
				return err
			}
			col++
		case schema.KindValueObject:
			vo := f.Value(v)
			for _, sf := range f.SubFields {
				if err := assign(sf.Value(vo), row[col], f.Column+sf.Column); err != nil {
					return err
				}
				col++
			}
		case schema.KindArray:
			arr := f.Value(v)
			for i := 0; i < f.Len; i++ {
				if err := assign(arr.Index(i), row[col+i], schema.ElementColumn(f.Column, i)); err != nil {
					return err
				}
			}
			col += f.Len
		case schema.KindGroupedArray:
			// Slot-major layout: a1, b1, a2, b2, ...
			for mi, mem := range f.Members {
				arr := mem.Value(v)
				for slot := 0; slot < f.Len; slot++ {
					src := row[col+mi+slot*f.GroupSize]
					if err := assign(arr.Index(slot), src, schema.ElementColumn(mem.Column, slot)); err != nil {
						return err
					}
				}
			}
			col += f.Len * f.GroupSize
		}
	}
	return nil
}

func assign(dst reflect.Value, src any, column string) error {
	if err := schema.Assign(dst, src); err != nil {
		return fmt.Errorf("column %q: %w", column, err)
	}
	return nil
}

// All materializes rows into entities of type T.
func All[T any](ctx context.Context, m *Materializer, rows [][]any) ([]*T, error) {
	d, err := m.reg.DescriptorOf(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return AllOf[T](ctx, m, d, rows)
}

// AllOf is like All with an explicit, possibly projected, descriptor of T.
func AllOf[T any](ctx context.Context, m *Materializer, d *schema.Descriptor, rows [][]any) ([]*T, error) {
	if d.Type != reflect.TypeFor[T]() {
		return nil, fmt.Errorf("sqlscan: descriptor of %s used for %s", d.Name, reflect.TypeFor[T]())
	}
	ents, err := m.Materialize(ctx, d, rows)
	if err != nil {
		return nil, err
	}
	out := make([]*T, len(ents))
	for i, e := range ents {
		out[i] = e.(*T)
	}
	return out, nil
}
