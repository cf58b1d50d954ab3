package sql_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/internal/testutil"
)

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, buf := testutil.NewCaptureLogger()
	drv := sql.NewStatsDriver(sql.OpenDB(dialect.Postgres, db), sql.WithSlowThreshold(-1), sql.WithSlowQueryLog(logger))

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("DELETE").WillReturnError(errors.New("boom"))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	_, err = drv.Query(ctx, "SELECT 1", nil)
	require.NoError(t, err)
	_, err = drv.Exec(ctx, "DELETE FROM t", nil)
	require.Error(t, err)
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, "INSERT INTO t VALUES (@p1)", dialect.Params{"p1": 1})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())

	s := drv.QueryStats().Snapshot()
	assert.Equal(t, int64(1), s.Queries)
	assert.Equal(t, int64(2), s.Execs)
	assert.Equal(t, int64(1), s.Errors)
	assert.Equal(t, int64(3), s.Slow)
	assert.Contains(t, s.String(), "queries=1 execs=2 errors=1 slow=3")
	assert.Equal(t, 3, strings.Count(buf.String(), "slow query"))
	assert.Contains(t, buf.String(), "p1=1")
}

func TestStatsDriverThreshold(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, buf := testutil.NewCaptureLogger()
	drv := sql.NewStatsDriver(sql.OpenDB(dialect.MySQL, db), sql.WithSlowQueryLog(logger))

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"1"}))
	_, err = drv.Query(context.Background(), "SELECT `Id` FROM `Heroes` WHERE (`Id` = @p1)", dialect.Params{"p1": 3})
	require.NoError(t, err)
	assert.Zero(t, drv.QueryStats().Snapshot().Slow)
	assert.Empty(t, buf.String())
}

func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, buf := testutil.NewCaptureLogger()
	drv := sql.NewDebugDriver(sql.OpenDB(dialect.Postgres, db), logger)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectRollback()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	_, err = tx.Query(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "msg=begin")
	assert.Contains(t, lines[1], "msg=query")
	assert.Contains(t, lines[1], `sql="SELECT 1"`)
	assert.Contains(t, lines[1], "tx=true")
	assert.Contains(t, lines[2], "msg=rollback tx=true")
}
