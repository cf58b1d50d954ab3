package sql

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/strata/dialect"
)

// Bind rewrites the @name parameters of a built statement into the
// placeholder style of the dialect and returns the matching driver
// arguments. MySQL gets one '?' per occurrence, Postgres one $n per distinct
// name, and SQLite keeps the names and receives sql.Named arguments. Quoted
// text and identifiers are left untouched.
func Bind(dialectName, query string, params dialect.Params) (string, []any, error) {
	if !strings.Contains(query, "@") {
		return query, nil, nil
	}
	var (
		sb    strings.Builder
		args  []any
		index = make(map[string]int)
		quote byte
	)
	sb.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if quote != 0 {
			sb.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
			sb.WriteByte(c)
			continue
		case '@':
		default:
			sb.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(query) && isNameByte(query[j], j == i+1) {
			j++
		}
		// Not a parameter: a bare '@' or a MySQL '@@system' variable.
		if j == i+1 || (i > 0 && query[i-1] == '@') {
			sb.WriteByte(c)
			continue
		}
		name := query[i+1 : j]
		v, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("dialect/sql: missing value for parameter @%s", name)
		}
		switch dialectName {
		case dialect.MySQL:
			sb.WriteByte('?')
			args = append(args, v)
		case dialect.Postgres:
			n, seen := index[name]
			if !seen {
				args = append(args, v)
				n = len(args)
				index[name] = n
			}
			sb.WriteString("$" + strconv.Itoa(n))
		default:
			sb.WriteString(query[i:j])
			if _, seen := index[name]; !seen {
				index[name] = len(args)
				args = append(args, sql.Named(name, v))
			}
		}
		i = j - 1
	}
	return sb.String(), args, nil
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		return true
	case '0' <= c && c <= '9':
		return !first
	}
	return false
}
