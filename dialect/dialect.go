package dialect

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Dialect names for external usage.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Params holds the named parameters of a statement, keyed by name without
// the '@' prefix.
type Params map[string]any

// Execer executes a statement and reports the number of affected rows.
type Execer interface {
	Exec(ctx context.Context, query string, params Params) (int64, error)
}

// Querier runs a statement and returns its rows. Every row holds the raw
// column values in select order.
type Querier interface {
	Query(ctx context.Context, query string, params Params) ([][]any, error)
}

// ExecQuerier wraps the two database operations.
type ExecQuerier interface {
	Execer
	Querier
}

// Driver is the interface that wraps all necessary operations for a
// connection to a database.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	// The provided context is used until the transaction is committed or rolled back.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Valid reports whether name is a supported dialect.
func Valid(name string) bool {
	switch name {
	case MySQL, SQLite, Postgres:
		return true
	}
	return false
}

// Quote quotes an identifier using the template of the given dialect.
func Quote(dialect, ident string) string {
	if dialect == MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return pq.QuoteIdentifier(ident)
}

// Binder allocates unique parameter names (p1, p2, ...) for the values bound
// into one statement. The zero value is ready to use.
type Binder struct {
	n      int
	params Params
}

// NewBinder returns a binder whose first parameter is named p{start+1}.
func NewBinder(start int) *Binder {
	return &Binder{n: start}
}

// Bind records v and returns its placeholder, e.g. "@p3".
func (b *Binder) Bind(v any) string {
	if b.params == nil {
		b.params = make(Params)
	}
	b.n++
	name := "p" + strconv.Itoa(b.n)
	b.params[name] = v
	return "@" + name
}

// Len returns the number of bound parameters.
func (b *Binder) Len() int {
	return len(b.params)
}

// Next returns the placeholder text the next Bind call will produce.
func (b *Binder) Next() string {
	return "@p" + strconv.Itoa(b.n+1)
}

// Params returns the bound parameters. The map is never nil.
func (b *Binder) Params() Params {
	if b.params == nil {
		b.params = make(Params)
	}
	return b.params
}

// String implements fmt.Stringer for debugging.
func (p Params) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i := 1; i <= len(p); i++ {
		name := "p" + strconv.Itoa(i)
		v, ok := p[name]
		if !ok {
			return fmt.Sprint(map[string]any(p))
		}
		if i > 1 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", name, v)
	}
	b.WriteByte('}')
	return b.String()
}
