package schema

import (
	"reflect"
	"strconv"
)

// Kind classifies how a member maps onto physical columns.
type Kind uint8

// Field kinds.
const (
	KindScalar Kind = iota
	KindArray
	KindGroupedArray
	KindValueObject
	KindRelationSingle
	KindRelationMany
)

var kindNames = [...]string{
	KindScalar:         "Scalar",
	KindArray:          "Array",
	KindGroupedArray:   "GroupedArray",
	KindValueObject:    "ValueObject",
	KindRelationSingle: "RelationSingle",
	KindRelationMany:   "RelationMany",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsRelation reports whether the kind describes a relation member.
func (k Kind) IsRelation() bool {
	return k == KindRelationSingle || k == KindRelationMany
}

// Field describes one member of an entity.
type Field struct {
	// Name is the Go member name. Grouped arrays carry their group tag.
	Name string
	// Column is the physical column name, or the column prefix for arrays
	// and value objects.
	Column string
	Kind   Kind
	// Type is the declared member type.
	Type reflect.Type
	// ElemType is the stored type: Type for scalars, the element type for
	// arrays, with pointers stripped.
	ElemType reflect.Type

	Size          int
	Nullable      bool
	Default       string
	HasDefault    bool
	PrimaryKey    bool
	AutoIncrement bool

	// Len is the element count of Array and GroupedArray fields.
	Len int
	// GroupTag and GroupSize describe a GroupedArray. Members holds the
	// array members of the group in declaration order.
	GroupTag  string
	GroupSize int
	Members   []*Field
	// SubFields are the scalar members of a ValueObject.
	SubFields []*Field

	// Relation is the explicit join column name of a relation member.
	Relation string
	// Target is the related entity struct type.
	Target reflect.Type

	index []int
}

// Value returns the member value inside the entity struct v. v must be
// addressable for the result to be settable. Grouped arrays have no value of
// their own; use their Members.
func (f *Field) Value(v reflect.Value) reflect.Value {
	return v.FieldByIndex(f.index)
}

// Columns returns the physical columns of the field in flattened order.
func (f *Field) Columns() []string {
	switch f.Kind {
	case KindScalar:
		return []string{f.Column}
	case KindArray:
		cols := make([]string, f.Len)
		for i := range cols {
			cols[i] = ElementColumn(f.Column, i)
		}
		return cols
	case KindGroupedArray:
		cols := make([]string, 0, f.Len*f.GroupSize)
		for slot := 0; slot < f.Len; slot++ {
			for _, m := range f.Members {
				cols = append(cols, ElementColumn(m.Column, slot))
			}
		}
		return cols
	case KindValueObject:
		cols := make([]string, len(f.SubFields))
		for i, sf := range f.SubFields {
			cols[i] = f.Column + sf.Column
		}
		return cols
	default:
		return nil
	}
}

// ColumnCount returns the number of physical columns the field occupies.
func (f *Field) ColumnCount() int {
	switch f.Kind {
	case KindScalar:
		return 1
	case KindArray:
		return f.Len
	case KindGroupedArray:
		return f.Len * f.GroupSize
	case KindValueObject:
		return len(f.SubFields)
	default:
		return 0
	}
}

// ElementColumn returns the column name of element i (zero based) of an
// array column: the 1-based element number appended to the base name.
func ElementColumn(base string, i int) string {
	return base + strconv.Itoa(i+1)
}
