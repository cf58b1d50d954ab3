package sqlbuild

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/syssam/strata/dialect")

// BulkInsert inserts a slice of entities. Tuples are appended to the current
// statement until the next one would push its text past the size limit or its
// parameter count past the parameter limit. A new statement is then started
// with its own parameters. Every entity lands in exactly one statement, and a
// tuple over either limit gets a statement of its own.
func (b *Builder) BulkInsert(entities any) ([]*Statement, error) {
	rv := reflect.ValueOf(entities)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("sqlbuild: bulk insert: expect a slice, got %T", entities)
	}
	if rv.Len() == 0 {
		return nil, nil
	}
	d, err := b.reg.Descriptor(entities)
	if err != nil {
		return nil, err
	}
	fields, cols := insertFields(d)
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqlbuild: bulk insert %s: no insertable columns", d.Name)
	}
	header := "INSERT INTO " + b.quote(d.Table) + " (" + b.columnList(cols) + ") VALUES "
	var (
		stmts  []*Statement
		sb     strings.Builder
		binder *dialect.Binder
		tuples int
	)
	flush := func() {
		stmts = append(stmts, &Statement{SQL: sb.String(), Params: binder.Params(), Descriptor: d})
		sb.Reset()
		tuples = 0
	}
	for i := 0; i < rv.Len(); i++ {
		v, err := d.Indirect(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("sqlbuild: bulk insert %s: entity %d: %w", d.Name, i, err)
		}
		if tuples > 0 && (sb.Len()+len(", ")+tupleLen(binder.Len(), len(cols)) > b.maxSize ||
			binder.Len()+len(cols) > b.maxParams) {
			flush()
		}
		if tuples == 0 {
			binder = dialect.NewBinder(0)
			sb.WriteString(header)
		} else {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		first := true
		for _, f := range fields {
			for _, val := range f.Values(v) {
				if !first {
					sb.WriteString(", ")
				}
				first = false
				sb.WriteString(binder.Bind(val))
			}
		}
		sb.WriteByte(')')
		tuples++
	}
	flush()
	return stmts, nil
}

// tupleLen returns the text length of a VALUES tuple of n placeholders whose
// numbering continues after bound.
func tupleLen(bound, n int) int {
	size := 2 + 2*(n-1)
	for i := bound + 1; i <= bound+n; i++ {
		size += len("@p") + len(strconv.Itoa(i))
	}
	return size
}
