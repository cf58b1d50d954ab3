// Package schema emits the DROP and CREATE TABLE statements of an entity
// descriptor and validates the resulting table definitions.
package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
)

// DefaultStringSize is the VARCHAR size of string columns without a size.
const DefaultStringSize = 255

// Column is one physical column of a table.
type Column struct {
	Name       string
	Type       string
	Size       int
	Nullable   bool
	Default    string
	HasDefault bool
	Increment  bool
}

// Table is the physical layout of one entity type.
type Table struct {
	Name       string
	Columns    []*Column
	PrimaryKey []*Column
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// NewTable maps the descriptor columns of d to their dialect types, in the
// same order the query builder selects and inserts them.
func NewTable(dialectName string, d *schema.Descriptor) (*Table, error) {
	if !dialect.Valid(dialectName) {
		return nil, fmt.Errorf("schema: unknown dialect %q", dialectName)
	}
	t := &Table{Name: d.Table}
	add := func(name string, f *schema.Field, elem reflect.Type, nullable bool) error {
		typ, err := columnType(dialectName, elem, f.Size)
		if err != nil {
			return fmt.Errorf("schema: %s.%s: %w", d.Name, f.Name, err)
		}
		c := &Column{
			Name:       name,
			Type:       typ,
			Size:       f.Size,
			Nullable:   nullable,
			Default:    f.Default,
			HasDefault: f.HasDefault,
			Increment:  f.AutoIncrement,
		}
		t.Columns = append(t.Columns, c)
		if f.PrimaryKey {
			t.PrimaryKey = append(t.PrimaryKey, c)
		}
		return nil
	}
	for _, f := range d.Fields {
		var err error
		switch f.Kind {
		case schema.KindScalar:
			err = add(f.Column, f, f.ElemType, f.Nullable)
		case schema.KindArray:
			for i := 0; i < f.Len && err == nil; i++ {
				err = add(schema.ElementColumn(f.Column, i), f, f.ElemType, elemNullable(f))
			}
		case schema.KindGroupedArray:
			for slot := 0; slot < f.Len && err == nil; slot++ {
				for _, m := range f.Members {
					if err = add(schema.ElementColumn(m.Column, slot), m, m.ElemType, elemNullable(m)); err != nil {
						break
					}
				}
			}
		case schema.KindValueObject:
			for _, sf := range f.SubFields {
				if err = add(f.Column+sf.Column, sf, sf.ElemType, sf.Nullable); err != nil {
					break
				}
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func elemNullable(f *schema.Field) bool {
	return f.Nullable || f.Type.Elem().Kind() == reflect.Pointer
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	uuidType  = reflect.TypeOf(uuid.UUID{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// columnType returns the SQL type template of the Go type t.
func columnType(dialectName string, t reflect.Type, size int) (string, error) {
	switch t {
	case timeType:
		if dialectName == dialect.Postgres {
			return "TIMESTAMP", nil
		}
		return "DATETIME", nil
	case uuidType:
		return "CHAR(36)", nil
	case bytesType:
		if dialectName == dialect.Postgres {
			return "BYTEA", nil
		}
		return "BLOB", nil
	}
	if dialectName == dialect.Postgres {
		return postgresType(t, size)
	}
	switch t.Kind() {
	case reflect.Bool:
		return "TINYINT(1)", nil
	case reflect.Int8:
		return "TINYINT", nil
	case reflect.Int16:
		return "SMALLINT", nil
	case reflect.Int32:
		return "INT", nil
	case reflect.Int, reflect.Int64:
		return "BIGINT", nil
	case reflect.Uint8:
		return "TINYINT UNSIGNED", nil
	case reflect.Uint16:
		return "SMALLINT UNSIGNED", nil
	case reflect.Uint32:
		return "INT UNSIGNED", nil
	case reflect.Uint, reflect.Uint64:
		// SQLite integers are signed; BLOB affinity keeps values above
		// math.MaxInt64 as exact decimal text.
		if dialectName == dialect.SQLite {
			return "BLOB", nil
		}
		return "BIGINT UNSIGNED", nil
	case reflect.Float32:
		return "FLOAT", nil
	case reflect.Float64:
		return "DOUBLE", nil
	case reflect.String:
		return stringType(size), nil
	}
	return "", fmt.Errorf("no column type for %s", t)
}

// postgresType has no unsigned integers; unsigned values take the next wider
// signed type.
func postgresType(t reflect.Type, size int) (string, error) {
	switch t.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Uint8:
		return "SMALLINT", nil
	case reflect.Int32, reflect.Uint16:
		return "INTEGER", nil
	case reflect.Int, reflect.Int64, reflect.Uint32:
		return "BIGINT", nil
	case reflect.Uint, reflect.Uint64:
		return "NUMERIC(20)", nil
	case reflect.Float32:
		return "REAL", nil
	case reflect.Float64:
		return "DOUBLE PRECISION", nil
	case reflect.String:
		return stringType(size), nil
	}
	return "", fmt.Errorf("no column type for %s", t)
}

func stringType(size int) string {
	if size <= 0 {
		size = DefaultStringSize
	}
	if size > DefaultStringSize {
		return "TEXT"
	}
	return fmt.Sprintf("VARCHAR(%d)", size)
}

// DropTable returns the DROP TABLE IF EXISTS statement of the named table.
func DropTable(dialectName, name string) string {
	return "DROP TABLE IF EXISTS " + dialect.Quote(dialectName, name)
}

// CreateTable returns the DROP and CREATE statements of the entity type d.
// The engine is appended as ENGINE=<engine> on MySQL and ignored elsewhere.
func CreateTable(dialectName string, d *schema.Descriptor, engine string) ([]string, error) {
	t, err := NewTable(dialectName, d)
	if err != nil {
		return nil, err
	}
	if err := ValidateTable(t).Err(); err != nil {
		return nil, fmt.Errorf("schema: %s: invalid table: %w", d.Name, err)
	}
	return []string{DropTable(dialectName, t.Name), t.Create(dialectName, engine)}, nil
}

// Create returns the CREATE TABLE statement of t.
func (t *Table) Create(dialectName, engine string) string {
	q := func(s string) string { return dialect.Quote(dialectName, s) }
	// SQLite only auto-increments a single INTEGER PRIMARY KEY column.
	var rowid *Column
	if dialectName == dialect.SQLite && len(t.PrimaryKey) == 1 && t.PrimaryKey[0].Increment {
		rowid = t.PrimaryKey[0]
	}
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		if c == rowid {
			defs = append(defs, q(c.Name)+" INTEGER PRIMARY KEY AUTOINCREMENT")
			continue
		}
		var b strings.Builder
		b.WriteString(q(c.Name))
		b.WriteByte(' ')
		b.WriteString(c.Type)
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		if c.HasDefault {
			b.WriteString(" DEFAULT ")
			b.WriteString(c.Default)
		}
		if c.Increment {
			switch dialectName {
			case dialect.MySQL:
				b.WriteString(" AUTO_INCREMENT")
			case dialect.Postgres:
				b.WriteString(" GENERATED BY DEFAULT AS IDENTITY")
			}
		}
		defs = append(defs, b.String())
	}
	if len(t.PrimaryKey) > 0 && rowid == nil {
		pks := make([]string, len(t.PrimaryKey))
		for i, c := range t.PrimaryKey {
			pks[i] = q(c.Name)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(pks, ", ")+")")
	}
	stmt := "CREATE TABLE " + q(t.Name) + " (" + strings.Join(defs, ", ") + ")"
	if engine != "" && dialectName == dialect.MySQL {
		stmt += " ENGINE=" + engine
	}
	return stmt
}
