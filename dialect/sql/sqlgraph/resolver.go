// Package sqlgraph loads single-hop relations of materialized entities and
// classifies constraint errors reported by SQL backends.
package sqlgraph

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql/sqlbuild"
	"github.com/syssam/strata/dialect/sql/sqlscan"
	"github.com/syssam/strata/predicate"
	"github.com/syssam/strata/schema"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger unresolvable relations are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resolver populates relation members with one filtered SELECT per relation
// and entity. Related entities are materialized without their own relations.
type Resolver struct {
	builder *sqlbuild.Builder
	querier dialect.Querier
	scanner *sqlscan.Materializer
	logger  *slog.Logger
}

// NewResolver returns a resolver running its queries through q.
func NewResolver(b *sqlbuild.Builder, q dialect.Querier, opts ...Option) *Resolver {
	r := &Resolver{builder: b, querier: q, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.scanner = sqlscan.New(b.Registry(), sqlscan.WithWorkers(1), sqlscan.WithLogger(r.logger))
	return r
}

var _ sqlscan.RelationResolver = (*Resolver)(nil)

// Join is the resolved join condition of a relation: the rows of the remote
// entity whose Remote member equals Value.
type Join struct {
	Remote string
	Value  any
}

// Resolve loads every relation of the entity struct v.
func (r *Resolver) Resolve(ctx context.Context, d *schema.Descriptor, v reflect.Value) error {
	for _, rel := range d.Relations {
		if err := r.resolve(ctx, d, v, rel); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) resolve(ctx context.Context, d *schema.Descriptor, v reflect.Value, rel *schema.Field) error {
	target, err := r.builder.Registry().DescriptorOf(rel.Target)
	if err != nil {
		return fmt.Errorf("sqlgraph: %s.%s: %w", d.Name, rel.Name, err)
	}
	join, ok := JoinOf(d, target, rel, v)
	if !ok {
		r.logger.Warn("sqlgraph: relation has no resolvable join column, skipped",
			"entity", d.Name, "relation", rel.Name, "target", target.Name)
		return nil
	}
	stmt, err := r.builder.WhereAll(target, predicate.F(join.Remote).EQ(&predicate.Value{V: join.Value}))
	if err != nil {
		return fmt.Errorf("sqlgraph: %s.%s: %w", d.Name, rel.Name, err)
	}
	rows, err := r.querier.Query(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return fmt.Errorf("sqlgraph: load %s.%s: %w", d.Name, rel.Name, err)
	}
	ents, err := r.scanner.Materialize(ctx, stmt.Descriptor, rows)
	if err != nil {
		return fmt.Errorf("sqlgraph: load %s.%s: %w", d.Name, rel.Name, err)
	}
	dst := rel.Value(v)
	switch rel.Kind {
	case schema.KindRelationMany:
		s := reflect.MakeSlice(rel.Type, 0, len(ents))
		byValue := rel.Type.Elem().Kind() != reflect.Pointer
		for _, e := range ents {
			ev := reflect.ValueOf(e)
			if byValue {
				ev = ev.Elem()
			}
			s = reflect.Append(s, ev)
		}
		dst.Set(s)
	case schema.KindRelationSingle:
		if len(ents) > 0 {
			dst.Set(reflect.ValueOf(ents[0]))
		}
	}
	return nil
}

// JoinOf resolves the join condition of relation rel of the owner entity
// struct v. The join member is, in order of precedence: the explicit relation
// name, the owner's first primary key, a member of the owner named Id or
// {TypeName}Id. The local value is read from the owner member of the same
// name, falling back to the first primary key for explicit relation names.
func JoinOf(owner, target *schema.Descriptor, rel *schema.Field, v reflect.Value) (Join, bool) {
	var (
		remote string
		local  *schema.Field
	)
	switch {
	case rel.Relation != "":
		remote = rel.Relation
		local = scalarMember(owner, rel.Relation)
		if local == nil && len(owner.PrimaryKeys) > 0 {
			local = owner.PrimaryKeys[0]
		}
	case len(owner.PrimaryKeys) > 0:
		local = owner.PrimaryKeys[0]
		remote = local.Name
	default:
		for _, name := range []string{"Id", owner.Name + "Id"} {
			if local = scalarMember(owner, name); local != nil {
				remote = local.Name
				break
			}
		}
	}
	if local == nil || local.Kind != schema.KindScalar {
		return Join{}, false
	}
	if _, _, err := target.Lookup(remote); err != nil {
		return Join{}, false
	}
	return Join{Remote: remote, Value: local.Value(v).Interface()}, true
}

// scalarMember finds a scalar field of d by member or column name.
func scalarMember(d *schema.Descriptor, name string) *schema.Field {
	for _, f := range d.Fields {
		if f.Kind == schema.KindScalar && (f.Name == name || f.Column == name) {
			return f
		}
	}
	for _, f := range d.Fields {
		if f.Kind == schema.KindScalar && strings.EqualFold(f.Name, name) {
			return f
		}
	}
	return nil
}
