package schema

import "github.com/go-openapi/inflect"

// Naming maps a Go member name to a physical column name. It is applied only
// to members without an explicit column tag.
type Naming func(member string) string

var (
	// MemberName uses the member name unchanged. It is the default.
	MemberName Naming = func(member string) string { return member }

	// SnakeCase maps member names to snake_case, e.g. OwnerId -> owner_id.
	SnakeCase Naming = inflect.Underscore
)
