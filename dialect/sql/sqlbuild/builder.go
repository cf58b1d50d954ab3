// Package sqlbuild builds the SELECT, INSERT, UPDATE, DELETE and COUNT
// statements of entities described by a schema.Registry.
//
// Column lists follow Descriptor.Columns exactly, so rows returned by the
// statements line up with the materializer positionally. Identifiers are
// quoted with the dialect template and every data value is bound as a named
// parameter (@p1, @p2, ...).
package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/predicate"
	"github.com/syssam/strata/schema"
)

// DefaultMaxStatementSize is the default text length limit of one bulk
// INSERT statement.
const DefaultMaxStatementSize = 1 << 20

// DefaultMaxParams returns the number of bound parameters one statement may
// carry on the dialect.
func DefaultMaxParams(dialectName string) int {
	if dialectName == dialect.SQLite {
		return 32766
	}
	return 65535
}

// Statement is a built statement.
type Statement struct {
	SQL    string
	Params dialect.Params
	// Descriptor describes the columns of the rows a query statement
	// returns. It is a projection of the entity descriptor for projected
	// SELECTs.
	Descriptor *schema.Descriptor
}

// String implements fmt.Stringer.
func (s *Statement) String() string {
	return fmt.Sprintf("%s %v", s.SQL, s.Params)
}

// Assignment is one "column = value" item of an UPDATE SET list.
type Assignment struct {
	Member string
	Value  any
}

// Set returns an assignment of v to the member.
func Set(member string, v any) Assignment {
	return Assignment{Member: member, Value: v}
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxStatementSize limits the text length of bulk INSERT statements.
func WithMaxStatementSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxSize = n
		}
	}
}

// WithMaxParams limits the number of bound parameters of bulk INSERT
// statements. It overrides the dialect default.
func WithMaxParams(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxParams = n
		}
	}
}

// Builder builds statements for one dialect. It holds no per-statement state
// and is safe for concurrent use.
type Builder struct {
	reg       *schema.Registry
	dialect   string
	maxSize   int
	maxParams int
}

// New returns a builder for the given registry and dialect.
func New(reg *schema.Registry, dialectName string, opts ...Option) *Builder {
	b := &Builder{
		reg:       reg,
		dialect:   dialectName,
		maxSize:   DefaultMaxStatementSize,
		maxParams: DefaultMaxParams(dialectName),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dialect returns the dialect name of the builder.
func (b *Builder) Dialect() string { return b.dialect }

// Registry returns the descriptor registry of the builder.
func (b *Builder) Registry() *schema.Registry { return b.reg }

// MaxStatementSize returns the bulk INSERT text length limit.
func (b *Builder) MaxStatementSize() int { return b.maxSize }

// MaxParams returns the bulk INSERT bound parameter limit.
func (b *Builder) MaxParams() int { return b.maxParams }

func (b *Builder) quote(ident string) string {
	return dialect.Quote(b.dialect, ident)
}

func (b *Builder) columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = b.quote(c)
	}
	return strings.Join(quoted, ", ")
}

// SelectAll selects every column of every row.
func (b *Builder) SelectAll(d *schema.Descriptor) (*Statement, error) {
	return b.Where(d, nil)
}

// Select selects the given members of every row, in the given order.
func (b *Builder) Select(d *schema.Descriptor, members ...string) (*Statement, error) {
	return b.Where(d, nil, members...)
}

// WhereAll selects every column of the rows matching pred.
func (b *Builder) WhereAll(d *schema.Descriptor, pred predicate.Expr) (*Statement, error) {
	return b.Where(d, pred)
}

// Where selects the given members of the rows matching pred. With no members
// all columns are selected; a nil pred selects all rows.
func (b *Builder) Where(d *schema.Descriptor, pred predicate.Expr, members ...string) (*Statement, error) {
	p, err := d.Project(members...)
	if err != nil {
		return nil, err
	}
	if p.ColumnCount() == 0 {
		return nil, fmt.Errorf("sqlbuild: %s has no columns to select", d.Name)
	}
	var (
		sb     strings.Builder
		binder dialect.Binder
	)
	sb.WriteString("SELECT ")
	sb.WriteString(b.columnList(p.Columns()))
	sb.WriteString(" FROM ")
	sb.WriteString(b.quote(d.Table))
	if err := b.where(&sb, d, pred, &binder); err != nil {
		return nil, err
	}
	return &Statement{SQL: sb.String(), Params: binder.Params(), Descriptor: p}, nil
}

// SelectCount counts all rows.
func (b *Builder) SelectCount(d *schema.Descriptor) (*Statement, error) {
	return b.WhereCount(d, nil)
}

// WhereCount counts the rows matching pred.
func (b *Builder) WhereCount(d *schema.Descriptor, pred predicate.Expr) (*Statement, error) {
	var (
		sb     strings.Builder
		binder dialect.Binder
	)
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(b.quote(d.Table))
	if err := b.where(&sb, d, pred, &binder); err != nil {
		return nil, err
	}
	return &Statement{SQL: sb.String(), Params: binder.Params(), Descriptor: d}, nil
}

func (b *Builder) where(sb *strings.Builder, d *schema.Descriptor, pred predicate.Expr, binder *dialect.Binder) error {
	if pred == nil {
		return nil
	}
	frag, err := predicate.Translate(b.dialect, d, pred, binder)
	if err != nil {
		return err
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(frag)
	return nil
}

// insertFields returns the fields written by INSERT: all but auto-increment.
func insertFields(d *schema.Descriptor) ([]*schema.Field, []string) {
	var (
		fields []*schema.Field
		cols   []string
	)
	for _, f := range d.Fields {
		if f.AutoIncrement {
			continue
		}
		fields = append(fields, f)
		cols = append(cols, f.Columns()...)
	}
	return fields, cols
}

// Insert inserts one entity. Auto-increment columns are left to the backend.
func (b *Builder) Insert(entity any) (*Statement, error) {
	d, err := b.reg.Descriptor(entity)
	if err != nil {
		return nil, err
	}
	v, err := d.Indirect(entity)
	if err != nil {
		return nil, err
	}
	fields, cols := insertFields(d)
	var (
		sb     strings.Builder
		binder dialect.Binder
	)
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.quote(d.Table))
	if len(cols) == 0 {
		sb.WriteString(b.defaultValues())
		return &Statement{SQL: sb.String(), Params: binder.Params(), Descriptor: d}, nil
	}
	sb.WriteString(" (")
	sb.WriteString(b.columnList(cols))
	sb.WriteString(") VALUES (")
	first := true
	for _, f := range fields {
		for _, val := range f.Values(v) {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(binder.Bind(val))
		}
	}
	sb.WriteByte(')')
	return &Statement{SQL: sb.String(), Params: binder.Params(), Descriptor: d}, nil
}

func (b *Builder) defaultValues() string {
	if b.dialect == dialect.MySQL {
		return " () VALUES ()"
	}
	return " DEFAULT VALUES"
}

// Update updates every non-key column of the row identified by the primary
// key values of entity.
func (b *Builder) Update(entity any) (*Statement, error) {
	d, err := b.reg.Descriptor(entity)
	if err != nil {
		return nil, err
	}
	v, err := d.Indirect(entity)
	if err != nil {
		return nil, err
	}
	pred, err := keyPredicate(d, entity)
	if err != nil {
		return nil, err
	}
	var (
		sb     strings.Builder
		binder dialect.Binder
		n      int
	)
	sb.WriteString("UPDATE ")
	sb.WriteString(b.quote(d.Table))
	sb.WriteString(" SET ")
	for _, f := range d.Fields {
		if f.PrimaryKey || f.AutoIncrement {
			continue
		}
		cols, vals := f.Columns(), f.Values(v)
		for i, c := range cols {
			if n > 0 {
				sb.WriteString(", ")
			}
			n++
			sb.WriteString(b.quote(c) + " = " + binder.Bind(vals[i]))
		}
	}
	if n == 0 {
		return nil, fmt.Errorf("sqlbuild: update %s: no columns to set", d.Name)
	}
	if err := b.where(&sb, d, pred, &binder); err != nil {
		return nil, err
	}
	return &Statement{SQL: sb.String(), Params: binder.Params(), Descriptor: d}, nil
}

// UpdateWhere sets the assigned members on the rows matching pred. A nil pred
// updates every row.
func (b *Builder) UpdateWhere(d *schema.Descriptor, set []Assignment, pred predicate.Expr) (*Statement, error) {
	if len(set) == 0 {
		return nil, fmt.Errorf("sqlbuild: update %s: empty set list", d.Name)
	}
	var (
		sb     strings.Builder
		binder dialect.Binder
	)
	sb.WriteString("UPDATE ")
	sb.WriteString(b.quote(d.Table))
	sb.WriteString(" SET ")
	for i, a := range set {
		_, col, err := d.Lookup(a.Member)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.quote(col) + " = " + binder.Bind(schema.StorageValue(a.Value)))
	}
	if err := b.where(&sb, d, pred, &binder); err != nil {
		return nil, err
	}
	return &Statement{SQL: sb.String(), Params: binder.Params(), Descriptor: d}, nil
}

// Delete deletes the row identified by the primary key values of entity.
func (b *Builder) Delete(entity any) (*Statement, error) {
	d, err := b.reg.Descriptor(entity)
	if err != nil {
		return nil, err
	}
	pred, err := keyPredicate(d, entity)
	if err != nil {
		return nil, err
	}
	return b.DeleteWhere(d, pred)
}

// DeleteWhere deletes the rows matching pred. A nil pred deletes every row.
func (b *Builder) DeleteWhere(d *schema.Descriptor, pred predicate.Expr) (*Statement, error) {
	var (
		sb     strings.Builder
		binder dialect.Binder
	)
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.quote(d.Table))
	if err := b.where(&sb, d, pred, &binder); err != nil {
		return nil, err
	}
	return &Statement{SQL: sb.String(), Params: binder.Params(), Descriptor: d}, nil
}

// keyPredicate returns the AND-chain of equalities over all primary keys of
// entity, using their current values.
func keyPredicate(d *schema.Descriptor, entity any) (predicate.Expr, error) {
	if len(d.PrimaryKeys) == 0 {
		return nil, fmt.Errorf("sqlbuild: %s: %w", d.Name, strata.ErrNoPrimaryKey)
	}
	v, err := d.Indirect(entity)
	if err != nil {
		return nil, err
	}
	preds := make([]predicate.Expr, len(d.PrimaryKeys))
	for i, pk := range d.PrimaryKeys {
		preds[i] = predicate.F(pk.Name).EQ(&predicate.Value{V: pk.Value(v).Interface()})
	}
	return predicate.And(preds...), nil
}
