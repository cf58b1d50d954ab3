package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/syssam/strata"
)

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return strata.IsConstraintError(err) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err) ||
		IsNotNullConstraintError(err)
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlColumnCannotBeNull     = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// constraint describes how each backend reports one kind of violation.
type constraint struct {
	pgCode     string
	mysqlCodes []uint16
	sqliteCode []int
	messages   []string // fallback for drivers reporting text only
}

var (
	uniqueConstraint = constraint{
		pgCode:     pgUniqueViolation,
		mysqlCodes: []uint16{mysqlDuplicateEntry},
		sqliteCode: []int{sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY},
		messages:   []string{"Error 1062", "violates unique constraint", "UNIQUE constraint failed"},
	}
	foreignKeyConstraint = constraint{
		pgCode:     pgForeignKeyViolation,
		mysqlCodes: []uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		sqliteCode: []int{sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY},
		messages:   []string{"Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"},
	}
	checkConstraint = constraint{
		pgCode:     pgCheckViolation,
		mysqlCodes: []uint16{mysqlCheckConstraintViolate},
		sqliteCode: []int{sqlite3.SQLITE_CONSTRAINT_CHECK},
		messages:   []string{"Error 3819", "violates check constraint", "CHECK constraint failed"},
	}
	notNullConstraint = constraint{
		pgCode:     pgNotNullViolation,
		mysqlCodes: []uint16{mysqlColumnCannotBeNull},
		sqliteCode: []int{sqlite3.SQLITE_CONSTRAINT_NOTNULL},
		messages:   []string{"Error 1048", "violates not-null constraint", "NOT NULL constraint failed"},
	}
)

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	return uniqueConstraint.match(err)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	return foreignKeyConstraint.match(err)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
// e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	return checkConstraint.match(err)
}

// IsNotNullConstraintError reports if the error resulted from writing NULL
// into a NOT NULL column.
func IsNotNullConstraintError(err error) bool {
	return notNullConstraint.match(err)
}

func (c constraint) match(err error) bool {
	if err == nil {
		return false
	}
	var (
		pqErr     *pq.Error
		pgxErr    *pgconn.PgError
		mysqlErr  *mysql.MySQLError
		sqliteErr *sqlite.Error
	)
	switch {
	case errors.As(err, &pqErr):
		return string(pqErr.Code) == c.pgCode
	case errors.As(err, &pgxErr):
		return pgxErr.Code == c.pgCode
	case errors.As(err, &mysqlErr):
		for _, n := range c.mysqlCodes {
			if mysqlErr.Number == n {
				return true
			}
		}
		return false
	case errors.As(err, &sqliteErr):
		for _, n := range c.sqliteCode {
			if sqliteErr.Code() == n {
				return true
			}
		}
		return false
	}
	// Fallback to string matching for drivers without typed errors.
	return containsAny(err.Error(), c.messages...)
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
