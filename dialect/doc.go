// Package dialect holds the names of the supported SQL dialects, their
// identifier quoting and the interfaces statements are executed through.
//
// # Supported Dialects
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// MySQL quotes identifiers with backticks, Postgres and SQLite with double
// quotes.
//
// # Parameters
//
// Built statements refer to their values by name (@p1, @p2, ...). A Binder
// hands out the names and collects the values into Params; executors rewrite
// the names into the placeholder style of their backend.
//
//	b := dialect.NewBinder(0)
//	frag := dialect.Quote(dialect.MySQL, "Age") + " > " + b.Bind(18)
//	// frag == "`Age` > @p1", b.Params() == {"p1": 18}
//
// # Executors
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, params Params) (int64, error)
//	    Query(ctx context.Context, query string, params Params) ([][]any, error)
//	}
//
// dialect/sql implements ExecQuerier, Driver and Tx on top of database/sql.
package dialect
