// Package schema builds and caches entity descriptors.
//
// A Descriptor is computed once per Go struct type by a Registry and is
// immutable afterwards. It lists the physical fields of the entity in
// declaration order, the primary-key subset and the relation subset, and it
// defines the flattened column order shared by statement building and row
// materialization.
//
// # Struct Tags
//
// Entity metadata is read from `orm` struct tags. Entries are separated by
// semicolons and are either flags or key=value pairs:
//
//	pk                primary-key member
//	autoincrement     database generated value, omitted from INSERT
//	column=name       physical column name (default: member name)
//	size=n            column size (strings: VARCHAR(n) up to 255)
//	nullable          column accepts NULL (pointer members are nullable too)
//	default=literal   DEFAULT literal used by the schema generator
//	group=tag         links contiguous array members into one grouped array
//	relation[=col]    relation member, optionally naming the join column
//	-                 member is ignored
//
// # Field Kinds
//
//	Scalar        bool, integers, floats, string, time.Time, uuid.UUID, []byte
//	Array         fixed-size Go array of scalars: one column per element
//	GroupedArray  run of array members sharing a group tag, interleaved
//	ValueObject   nested struct of scalars: one column per sub-field
//	RelationSingle / RelationMany
//	              *T and []T / []*T members tagged relation, not stored
//
// # Registration
//
// Descriptors are built lazily on first lookup or eagerly through Register:
//
//	reg := schema.NewRegistry(schema.WithNaming(schema.SnakeCase))
//	reg.MustRegister(Character{}, schema.Table("characters"))
//	d := reg.MustDescriptor(&Character{})
package schema
