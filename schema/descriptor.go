package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/strata"
)

// Descriptor is the cached metadata of one entity type. It is immutable once
// returned by a Registry and safe for concurrent use.
type Descriptor struct {
	// Name is the Go type name of the entity.
	Name string
	// Type is the entity struct type.
	Type reflect.Type
	// Table is the resolved table name.
	Table string
	// Fields are the physical (non-relation) fields in declaration order.
	Fields []*Field
	// PrimaryKeys is the primary-key subset of Fields.
	PrimaryKeys []*Field
	// Relations are the relation members, not backed by columns.
	Relations []*Field

	columns []string
	grouped bool
}

func (d *Descriptor) init() {
	d.columns = d.columns[:0]
	d.grouped = false
	for _, f := range d.Fields {
		d.columns = append(d.columns, f.Columns()...)
		if f.Kind == KindGroupedArray {
			d.grouped = true
		}
	}
}

// Columns returns the flattened physical column order. Statement builders
// emit columns in this order and the materializer consumes row values in it.
func (d *Descriptor) Columns() []string {
	return d.columns
}

// ColumnCount returns the number of physical columns.
func (d *Descriptor) ColumnCount() int {
	return len(d.columns)
}

// HasGroupedArray reports whether any field is a grouped array.
func (d *Descriptor) HasGroupedArray() bool {
	return d.grouped
}

// Field returns the physical field or relation with the given member name.
func (d *Descriptor) Field(name string) *Field {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	for _, f := range d.Relations {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Lookup resolves a member reference to the scalar field holding it and its
// physical column. The reference is a scalar member name, a value object
// sub-member written as "Member.Sub", or a physical column name.
func (d *Descriptor) Lookup(member string) (*Field, string, error) {
	if owner, sub, ok := strings.Cut(member, "."); ok {
		if f := d.Field(owner); f != nil && f.Kind == KindValueObject {
			for _, sf := range f.SubFields {
				if sf.Name == sub {
					return sf, f.Column + sf.Column, nil
				}
			}
		}
		return nil, "", &strata.UnknownMemberError{Entity: d.Name, Member: member}
	}
	for _, f := range d.Fields {
		if f.Kind == KindScalar && f.Name == member {
			return f, f.Column, nil
		}
	}
	for _, f := range d.Fields {
		switch f.Kind {
		case KindScalar:
			if f.Column == member {
				return f, f.Column, nil
			}
		case KindValueObject:
			for _, sf := range f.SubFields {
				if f.Column+sf.Column == member {
					return sf, member, nil
				}
			}
		}
	}
	return nil, "", &strata.UnknownMemberError{Entity: d.Name, Member: member}
}

// Project returns a descriptor restricted to the named physical members, in
// the given order. Relations are not carried over. With no members, d itself
// is returned.
func (d *Descriptor) Project(members ...string) (*Descriptor, error) {
	if len(members) == 0 {
		return d, nil
	}
	p := &Descriptor{Name: d.Name, Type: d.Type, Table: d.Table}
	seen := make(map[string]bool, len(members))
	for _, name := range members {
		if seen[name] {
			return nil, fmt.Errorf("schema: %s: duplicate projected member %q", d.Name, name)
		}
		seen[name] = true
		var found *Field
		for _, f := range d.Fields {
			if f.Name == name {
				found = f
				break
			}
		}
		if found == nil {
			return nil, &strata.UnknownMemberError{Entity: d.Name, Member: name}
		}
		p.Fields = append(p.Fields, found)
		if found.PrimaryKey {
			p.PrimaryKeys = append(p.PrimaryKeys, found)
		}
	}
	p.init()
	return p, nil
}

// New allocates a zero entity and returns a pointer to it.
func (d *Descriptor) New() reflect.Value {
	return reflect.New(d.Type)
}

// Indirect returns the addressable entity struct behind v, which must be a
// non-nil pointer to the entity type or an entity value (copied).
func (d *Descriptor) Indirect(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("schema: nil %s entity", d.Name)
		}
		rv = rv.Elem()
	}
	if rv.Type() != d.Type {
		return reflect.Value{}, fmt.Errorf("schema: expect %s entity, got %T", d.Name, v)
	}
	if !rv.CanAddr() {
		cp := reflect.New(d.Type).Elem()
		cp.Set(rv)
		rv = cp
	}
	return rv, nil
}
