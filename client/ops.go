package client

import (
	"context"
	"fmt"
	"reflect"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sql/schema"
	"github.com/syssam/strata/dialect/sql/sqlbuild"
	"github.com/syssam/strata/dialect/sql/sqlscan"
	"github.com/syssam/strata/predicate"
	entschema "github.com/syssam/strata/schema"
)

// Insert inserts one entity and returns the number of affected rows.
func (c *Client) Insert(ctx context.Context, entity any) (int64, error) {
	stmt, err := c.builder.Insert(entity)
	if err != nil {
		return 0, strata.NewMutationError(label(entity), "insert", err)
	}
	return c.exec(ctx, stmt, "insert")
}

// InsertMany inserts a slice of entities with as few statements as the
// statement size limit allows. Statements run one after another without an
// implicit transaction; use Tx for all-or-nothing semantics.
func (c *Client) InsertMany(ctx context.Context, entities any) (int64, error) {
	stmts, err := c.builder.BulkInsert(entities)
	if err != nil {
		return 0, strata.NewMutationError(label(entities), "insert many", err)
	}
	var total int64
	for _, stmt := range stmts {
		n, err := c.exec(ctx, stmt, "insert many")
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Update updates the row identified by the primary key of entity.
func (c *Client) Update(ctx context.Context, entity any) (int64, error) {
	stmt, err := c.builder.Update(entity)
	if err != nil {
		return 0, strata.NewMutationError(label(entity), "update", err)
	}
	return c.exec(ctx, stmt, "update")
}

// Delete deletes the row identified by the primary key of entity.
func (c *Client) Delete(ctx context.Context, entity any) (int64, error) {
	stmt, err := c.builder.Delete(entity)
	if err != nil {
		return 0, strata.NewMutationError(label(entity), "delete", err)
	}
	return c.exec(ctx, stmt, "delete")
}

func (c *Client) exec(ctx context.Context, stmt *sqlbuild.Statement, op string) (int64, error) {
	n, err := c.eq.Exec(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return n, strata.NewMutationError(stmt.Descriptor.Name, op, err)
	}
	return n, nil
}

// LoadRelations loads the relations of entity, which must be a pointer.
func (c *Client) LoadRelations(ctx context.Context, entity any) error {
	d, err := c.registry.Descriptor(entity)
	if err != nil {
		return strata.NewQueryError(label(entity), "load relations", err)
	}
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return strata.NewQueryError(d.Name, "load relations", fmt.Errorf("client: non-nil pointer required, got %T", entity))
	}
	if err := c.resolver(c.eq).Resolve(ctx, d, v.Elem()); err != nil {
		return strata.NewQueryError(d.Name, "load relations", err)
	}
	return nil
}

// UpdateWhere sets the given members on every row of T matching pred. A nil
// predicate updates every row.
func UpdateWhere[T any](ctx context.Context, c *Client, set []sqlbuild.Assignment, pred predicate.Expr) (int64, error) {
	d, err := descriptor[T](c)
	if err != nil {
		return 0, strata.NewMutationError(label(new(T)), "update where", err)
	}
	stmt, err := c.builder.UpdateWhere(d, set, pred)
	if err != nil {
		return 0, strata.NewMutationError(d.Name, "update where", err)
	}
	return c.exec(ctx, stmt, "update where")
}

// DeleteWhere deletes every row of T matching pred. A nil predicate deletes
// every row.
func DeleteWhere[T any](ctx context.Context, c *Client, pred predicate.Expr) (int64, error) {
	d, err := descriptor[T](c)
	if err != nil {
		return 0, strata.NewMutationError(label(new(T)), "delete where", err)
	}
	stmt, err := c.builder.DeleteWhere(d, pred)
	if err != nil {
		return 0, strata.NewMutationError(d.Name, "delete where", err)
	}
	return c.exec(ctx, stmt, "delete where")
}

// All returns every entity of type T.
func All[T any](ctx context.Context, c *Client) ([]*T, error) {
	return Query[T](ctx, c, nil)
}

// Query returns the entities of type T matching pred. When members are given
// only those columns are selected and the other members keep their zero
// values.
func Query[T any](ctx context.Context, c *Client, pred predicate.Expr, members ...string) ([]*T, error) {
	d, err := descriptor[T](c)
	if err != nil {
		return nil, strata.NewQueryError(label(new(T)), "query", err)
	}
	stmt, err := c.builder.Where(d, pred, members...)
	if err != nil {
		return nil, strata.NewQueryError(d.Name, "query", err)
	}
	rows, err := c.eq.Query(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, strata.NewQueryError(d.Name, "query", err)
	}
	ents, err := sqlscan.AllOf[T](ctx, c.scanner, stmt.Descriptor, rows)
	if err != nil {
		return nil, strata.NewQueryError(d.Name, "query", err)
	}
	return ents, nil
}

// First returns the first entity of T matching pred, or a NotFoundError.
func First[T any](ctx context.Context, c *Client, pred predicate.Expr) (*T, error) {
	ents, err := Query[T](ctx, c, pred)
	if err != nil {
		return nil, err
	}
	if len(ents) == 0 {
		d, _ := descriptor[T](c)
		return nil, strata.NewNotFoundError(d.Name)
	}
	return ents[0], nil
}

// Only returns the single entity of T matching pred. It fails with a
// NotFoundError on no match and a NotSingularError on several.
func Only[T any](ctx context.Context, c *Client, pred predicate.Expr) (*T, error) {
	ents, err := Query[T](ctx, c, pred)
	if err != nil {
		return nil, err
	}
	d, _ := descriptor[T](c)
	switch len(ents) {
	case 1:
		return ents[0], nil
	case 0:
		return nil, strata.NewNotFoundError(d.Name)
	default:
		return nil, strata.NewNotSingularError(d.Name, len(ents))
	}
}

// Count returns the number of rows of T matching pred.
func Count[T any](ctx context.Context, c *Client, pred predicate.Expr) (int64, error) {
	d, err := descriptor[T](c)
	if err != nil {
		return 0, strata.NewQueryError(label(new(T)), "count", err)
	}
	stmt, err := c.builder.WhereCount(d, pred)
	if err != nil {
		return 0, strata.NewQueryError(d.Name, "count", err)
	}
	rows, err := c.eq.Query(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return 0, strata.NewQueryError(d.Name, "count", err)
	}
	if len(rows) != 1 || len(rows[0]) != 1 {
		return 0, strata.NewQueryError(d.Name, "count", fmt.Errorf("client: count returned %d rows", len(rows)))
	}
	var n int64
	if err := entschema.Assign(reflect.ValueOf(&n).Elem(), rows[0][0]); err != nil {
		return 0, strata.NewQueryError(d.Name, "count", err)
	}
	return n, nil
}

// CreateTable drops and recreates the table of T.
func CreateTable[T any](ctx context.Context, c *Client) error {
	d, err := descriptor[T](c)
	if err != nil {
		return strata.NewMutationError(label(new(T)), "create table", err)
	}
	stmts, err := schema.CreateTable(c.Dialect(), d, c.engine)
	if err != nil {
		return strata.NewMutationError(d.Name, "create table", err)
	}
	for _, q := range stmts {
		if _, err := c.eq.Exec(ctx, q, nil); err != nil {
			return strata.NewMutationError(d.Name, "create table", err)
		}
	}
	return nil
}

// CreateTables drops and recreates the tables of the given entities. The
// tables are validated as one set before any statement runs, and warnings
// are logged.
func (c *Client) CreateTables(ctx context.Context, entities ...any) error {
	descs := make([]*entschema.Descriptor, len(entities))
	tables := make([]*schema.Table, len(entities))
	for i, e := range entities {
		d, err := c.registry.Descriptor(e)
		if err != nil {
			return strata.NewMutationError(label(e), "create tables", err)
		}
		t, err := schema.NewTable(c.Dialect(), d)
		if err != nil {
			return strata.NewMutationError(d.Name, "create tables", err)
		}
		descs[i], tables[i] = d, t
	}
	r := schema.ValidateSchema(tables)
	for _, w := range r.Warnings {
		c.logger.WarnContext(ctx, "client: table definition", "issue", w.Error())
	}
	if err := r.Err(); err != nil {
		return strata.NewMutationError(label(entities[0]), "create tables", err)
	}
	for i, t := range tables {
		stmts := []string{schema.DropTable(c.Dialect(), t.Name), t.Create(c.Dialect(), c.engine)}
		for _, q := range stmts {
			if _, err := c.eq.Exec(ctx, q, nil); err != nil {
				return strata.NewMutationError(descs[i].Name, "create tables", err)
			}
		}
	}
	return nil
}
