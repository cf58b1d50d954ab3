package sqlgraph_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
)

func TestConstraintErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		unique     bool
		foreignKey bool
		check      bool
		notNull    bool
	}{
		{name: "nil"},
		{name: "plain", err: errors.New("connection refused")},
		{name: "pq unique", err: &pq.Error{Code: "23505"}, unique: true},
		{name: "pq foreign key", err: &pq.Error{Code: "23503"}, foreignKey: true},
		{name: "pq not null", err: &pq.Error{Code: "23502"}, notNull: true},
		{name: "pgx check", err: &pgconn.PgError{Code: "23514"}, check: true},
		{name: "pgx other", err: &pgconn.PgError{Code: "42601"}},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062}, unique: true},
		{name: "mysql child row", err: &mysql.MySQLError{Number: 1452}, foreignKey: true},
		{name: "mysql null", err: &mysql.MySQLError{Number: 1048}, notNull: true},
		{name: "wrapped", err: fmt.Errorf("dialect/sql: exec: %w", &mysql.MySQLError{Number: 3819}), check: true},
		{name: "sqlite text", err: errors.New("constraint failed: UNIQUE constraint failed: Users.Email (2067)"), unique: true},
		{name: "sqlite not null text", err: errors.New("NOT NULL constraint failed: Users.Name"), notNull: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, sqlgraph.IsUniqueConstraintError(tt.err))
			assert.Equal(t, tt.foreignKey, sqlgraph.IsForeignKeyConstraintError(tt.err))
			assert.Equal(t, tt.check, sqlgraph.IsCheckConstraintError(tt.err))
			assert.Equal(t, tt.notNull, sqlgraph.IsNotNullConstraintError(tt.err))
			assert.Equal(t, tt.unique || tt.foreignKey || tt.check || tt.notNull, sqlgraph.IsConstraintError(tt.err))
		})
	}
}

func TestConstraintErrorWrapped(t *testing.T) {
	err := strata.NewConstraintError("duplicate", errors.New("x"))
	assert.True(t, sqlgraph.IsConstraintError(err))
}
