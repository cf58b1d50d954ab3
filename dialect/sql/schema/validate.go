package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Issue is one problem found in a table definition.
type Issue struct {
	Table   string
	Column  string
	Message string
}

func (i *Issue) Error() string {
	if i.Column == "" {
		return i.Table + ": " + i.Message
	}
	return i.Table + "." + i.Column + ": " + i.Message
}

// Report collects the issues of one or more tables. Errors make a table
// unusable; warnings are emitted anyway.
type Report struct {
	Errors   []*Issue
	Warnings []*Issue
}

// HasErrors reports whether any error was found.
func (r *Report) HasErrors() bool { return len(r.Errors) > 0 }

// Err joins the errors of the report, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

func (r *Report) errorf(table, column, format string, args ...any) {
	r.Errors = append(r.Errors, &Issue{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warnf(table, column, format string, args ...any) {
	r.Warnings = append(r.Warnings, &Issue{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) merge(o *Report) {
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// String lists the issues one per line, errors first.
func (r *Report) String() string {
	if len(r.Errors)+len(r.Warnings) == 0 {
		return "ok"
	}
	var sb strings.Builder
	for _, e := range r.Errors {
		fmt.Fprintf(&sb, "error: %v\n", e)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "warning: %v\n", w)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// ValidateTable checks a table before its CREATE statement is emitted.
func ValidateTable(t *Table) *Report {
	r := &Report{}
	if len(t.Columns) == 0 {
		r.errorf(t.Name, "", "table has no columns")
	}
	if len(t.PrimaryKey) == 0 {
		r.warnf(t.Name, "", "table has no primary key")
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c.Name] {
			r.errorf(t.Name, c.Name, "duplicate column name")
		}
		seen[c.Name] = true
		if c.Increment && c.HasDefault {
			r.errorf(t.Name, c.Name, "auto-increment column cannot have a default value")
		}
		if c.Increment && len(t.PrimaryKey) > 1 {
			r.warnf(t.Name, c.Name, "auto-increment column in a composite primary key")
		}
	}
	for _, c := range t.PrimaryKey {
		if c.Nullable {
			r.errorf(t.Name, c.Name, "primary key column cannot be nullable")
		}
	}
	return r
}

// ValidateSchema checks a set of tables created together: every table on its
// own, and table names unique across the set.
func ValidateSchema(tables []*Table) *Report {
	r := &Report{}
	seen := make(map[string]bool, len(tables))
	for _, t := range tables {
		if seen[t.Name] {
			r.errorf(t.Name, "", "duplicate table name")
		}
		seen[t.Name] = true
		r.merge(ValidateTable(t))
	}
	return r
}
