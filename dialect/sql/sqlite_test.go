package sql_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
)

func openSQLite(t *testing.T) *sql.Driver {
	t.Helper()
	drv, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { _ = drv.Close() })
	return drv
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)
	require.Equal(t, dialect.SQLite, drv.Dialect())
	require.NoError(t, drv.Ping(ctx))

	_, err := drv.Exec(ctx, `CREATE TABLE "Heroes" ("Id" INTEGER PRIMARY KEY AUTOINCREMENT, "Name" TEXT NOT NULL UNIQUE, "Age" INTEGER NOT NULL)`, nil)
	require.NoError(t, err)

	n, err := drv.Exec(ctx, `INSERT INTO "Heroes" ("Name", "Age") VALUES (@p1, @p2), (@p3, @p4)`,
		dialect.Params{"p1": "Bob", "p2": 30, "p3": "Ann", "p4": 17})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := drv.Query(ctx, `SELECT "Id", "Name", "Age" FROM "Heroes" WHERE ("Age" > @p1) AND ("Age" < @p2)`,
		dialect.Params{"p1": 18, "p2": 99})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{int64(1), "Bob", int64(30)}, rows[0])

	_, err = drv.Exec(ctx, `INSERT INTO "Heroes" ("Name", "Age") VALUES (@p1, @p2)`,
		dialect.Params{"p1": "Bob", "p2": 1})
	require.Error(t, err)
	assert.True(t, strata.IsConstraintError(err))
}

func TestSQLiteTx(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)
	_, err := drv.Exec(ctx, `CREATE TABLE "Toys" ("Id" INTEGER PRIMARY KEY)`, nil)
	require.NoError(t, err)

	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, `INSERT INTO "Toys" ("Id") VALUES (@p1)`, dialect.Params{"p1": 1})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	rows, err := drv.Query(ctx, `SELECT COUNT(*) FROM "Toys"`, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows[0][0])
}
