// Package sql runs built statements against database/sql backends.
//
// Statements produced by the query builder carry named parameters (@p1,
// @p2, ...). The Driver rewrites them into the placeholder style of its
// dialect before execution:
//
//	MySQL     WHERE (`Age` > ?)       args: 18
//	Postgres  WHERE ("Age" > $1)      args: 18
//	SQLite    WHERE ("Age" > @p1)     args: sql.Named("p1", 18)
//
// Query returns every row as a []any of raw column values in select order,
// ready for positional materialization:
//
//	drv, err := sql.Open("sqlite", "file:app.db")
//	if err != nil {
//	    return err
//	}
//	rows, err := drv.Query(ctx, stmt.SQL, stmt.Params)
//
// # Wrappers
//
// StatsDriver counts queries and reports slow ones, DebugDriver logs every
// statement, and CachedQuerier keeps query results in a strata.Cache until
// the next Exec.
//
// # Constraint errors
//
// Backend constraint violations (unique, foreign key, check, not null) are
// wrapped into a strata.ConstraintError, so callers can test them with
// strata.IsConstraintError regardless of the driver in use.
package sql
