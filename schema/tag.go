package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// tagName is the struct tag key holding entity metadata.
const tagName = "orm"

// tag is the parsed form of an `orm` struct tag.
type tag struct {
	ignore        bool
	pk            bool
	autoIncrement bool
	nullable      bool
	column        string
	size          int
	def           string
	hasDefault    bool
	group         string
	relation      bool
	relationName  string
}

// parseTag parses `orm:"pk;column=user_id;size=64"` style tags.
func parseTag(s string) (tag, error) {
	var t tag
	if strings.TrimSpace(s) == "-" {
		t.ignore = true
		return t, nil
	}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "pk", "primarykey":
			t.pk = true
		case "autoincrement", "auto_increment":
			t.autoIncrement = true
		case "nullable":
			t.nullable = true
		case "column":
			if value == "" {
				return t, fmt.Errorf("empty column name")
			}
			t.column = value
		case "size":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return t, fmt.Errorf("invalid size %q", value)
			}
			t.size = n
		case "default":
			t.def, t.hasDefault = value, true
		case "group":
			if value == "" {
				return t, fmt.Errorf("empty group tag")
			}
			t.group = value
		case "relation":
			t.relation = true
			if hasValue {
				t.relationName = value
			}
		default:
			return t, fmt.Errorf("unknown tag option %q", key)
		}
	}
	return t, nil
}
