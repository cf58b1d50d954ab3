package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/syssam/strata"
	"github.com/syssam/strata/inflection"
)

// TableNamer can be implemented by an entity to name its table explicitly.
type TableNamer interface {
	TableName() string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithNaming sets the strategy mapping member names to column names.
func WithNaming(n Naming) RegistryOption {
	return func(r *Registry) {
		if n != nil {
			r.naming = n
		}
	}
}

// EntityOption configures the registration of a single entity type.
type EntityOption func(*entityConfig)

type entityConfig struct {
	table       string
	noPluralize bool
}

// Table sets the table name of the entity, overriding TableNamer and
// pluralization.
func Table(name string) EntityOption {
	return func(c *entityConfig) { c.table = name }
}

// NoPluralize uses the bare type name as table name.
func NoPluralize() EntityOption {
	return func(c *entityConfig) { c.noPluralize = true }
}

// Registry builds and caches entity descriptors. Each type is described at
// most once; concurrent first lookups block until the single build finishes
// and then share its result. A Registry is safe for concurrent use.
type Registry struct {
	naming  Naming
	entries sync.Map // reflect.Type -> *entry
}

type entry struct {
	once sync.Once
	cfg  entityConfig
	desc *Descriptor
	err  error
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{naming: MemberName}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register describes the entity type of v with the given options. Types need
// not be registered before use; registration is required only to pass
// options, and must happen before the first lookup of the type.
func (r *Registry) Register(v any, opts ...EntityOption) error {
	t, err := entityType(v)
	if err != nil {
		return err
	}
	e := &entry{}
	for _, opt := range opts {
		opt(&e.cfg)
	}
	if _, loaded := r.entries.LoadOrStore(t, e); loaded {
		return fmt.Errorf("schema: %s already registered or described", t.Name())
	}
	_, err = r.load(t, e)
	return err
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(v any, opts ...EntityOption) {
	if err := r.Register(v, opts...); err != nil {
		panic(err)
	}
}

// Descriptor returns the descriptor of the entity type of v. v may be an
// entity value, a pointer to one, a slice of either, or a reflect.Type.
func (r *Registry) Descriptor(v any) (*Descriptor, error) {
	t, err := entityType(v)
	if err != nil {
		return nil, err
	}
	return r.DescriptorOf(t)
}

// MustDescriptor is like Descriptor but panics on error.
func (r *Registry) MustDescriptor(v any) *Descriptor {
	d, err := r.Descriptor(v)
	if err != nil {
		panic(err)
	}
	return d
}

// DescriptorOf returns the descriptor of the struct type t.
func (r *Registry) DescriptorOf(t reflect.Type) (*Descriptor, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: entity must be a struct, got %s", t)
	}
	v, _ := r.entries.LoadOrStore(t, &entry{})
	return r.load(t, v.(*entry))
}

func (r *Registry) load(t reflect.Type, e *entry) (*Descriptor, error) {
	e.once.Do(func() {
		e.desc, e.err = r.build(t, e.cfg)
	})
	return e.desc, e.err
}

func entityType(v any) (reflect.Type, error) {
	if v == nil {
		return nil, fmt.Errorf("schema: nil entity")
	}
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: entity must be a struct, got %s", t)
	}
	return t, nil
}

func (r *Registry) build(t reflect.Type, cfg entityConfig) (*Descriptor, error) {
	d := &Descriptor{Name: t.Name(), Type: t}
	raw, err := r.members(t, nil)
	if err != nil {
		return nil, strata.NewValidationError(d.Name, err)
	}
	var (
		fields []*Field
		closed = make(map[string]bool)
	)
	for i := 0; i < len(raw); {
		f := raw[i]
		switch {
		case f.Kind.IsRelation():
			d.Relations = append(d.Relations, f)
			i++
		case f.GroupTag == "":
			fields = append(fields, f)
			i++
		default:
			if closed[f.GroupTag] {
				return nil, strata.NewValidationError(d.Name, fmt.Errorf("group %q is not contiguous", f.GroupTag))
			}
			j := i
			for j < len(raw) && raw[j].GroupTag == f.GroupTag && !raw[j].Kind.IsRelation() {
				j++
			}
			g, err := r.group(raw[i:j])
			if err != nil {
				return nil, strata.NewValidationError(d.Name, err)
			}
			closed[f.GroupTag] = true
			fields = append(fields, g)
			i = j
		}
	}
	d.Fields = fields
	for _, f := range d.Fields {
		if f.PrimaryKey {
			d.PrimaryKeys = append(d.PrimaryKeys, f)
		}
	}
	if len(d.PrimaryKeys) == 0 {
		if f := conventionKey(d, d.Fields); f != nil {
			f.PrimaryKey = true
			d.PrimaryKeys = append(d.PrimaryKeys, f)
		}
	}
	d.Table = tableName(t, cfg)
	d.init()
	seen := make(map[string]bool, len(d.columns))
	for _, c := range d.columns {
		if seen[c] {
			return nil, strata.NewValidationError(d.Name, fmt.Errorf("duplicate column %q", c))
		}
		seen[c] = true
	}
	return d, nil
}

func tableName(t reflect.Type, cfg entityConfig) string {
	switch {
	case cfg.table != "":
		return cfg.table
	case t.Implements(tableNamerType):
		return reflect.Zero(t).Interface().(TableNamer).TableName()
	case reflect.PointerTo(t).Implements(tableNamerType):
		return reflect.New(t).Interface().(TableNamer).TableName()
	case cfg.noPluralize:
		return t.Name()
	default:
		return inflection.Pluralize(t.Name())
	}
}

var tableNamerType = reflect.TypeOf((*TableNamer)(nil)).Elem()

// conventionKey finds a member named Id or {TypeName}Id, exact case first.
func conventionKey(d *Descriptor, fields []*Field) *Field {
	names := []string{"Id", d.Name + "Id"}
	for _, name := range names {
		for _, f := range fields {
			if f.Kind == KindScalar && f.Name == name {
				return f
			}
		}
	}
	for _, name := range names {
		for _, f := range fields {
			if f.Kind == KindScalar && strings.EqualFold(f.Name, name) {
				return f
			}
		}
	}
	return nil
}

// members enumerates the described members of t in declaration order,
// flattening embedded structs.
func (r *Registry) members(t reflect.Type, index []int) ([]*Field, error) {
	var fields []*Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		idx := append(append([]int(nil), index...), i)
		raw := sf.Tag.Get(tagName)
		if sf.Anonymous && raw == "" && sf.Type.Kind() == reflect.Struct && !isScalar(sf.Type) {
			embedded, err := r.members(sf.Type, idx)
			if err != nil {
				return nil, err
			}
			fields = append(fields, embedded...)
			continue
		}
		if !sf.IsExported() {
			continue
		}
		tg, err := parseTag(raw)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", sf.Name, err)
		}
		if tg.ignore {
			continue
		}
		f, err := r.member(sf, idx, tg)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", sf.Name, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (r *Registry) member(sf reflect.StructField, idx []int, tg tag) (*Field, error) {
	f := &Field{
		Name:          sf.Name,
		Column:        tg.column,
		Type:          sf.Type,
		Size:          tg.size,
		Nullable:      tg.nullable,
		Default:       tg.def,
		HasDefault:    tg.hasDefault,
		PrimaryKey:    tg.pk,
		AutoIncrement: tg.autoIncrement,
		GroupTag:      tg.group,
		index:         idx,
	}
	if f.Column == "" {
		f.Column = r.naming(sf.Name)
	}
	if tg.relation {
		return relationField(f, tg)
	}
	t := sf.Type
	switch {
	case isScalar(t):
		f.Kind = KindScalar
		f.ElemType = indirectType(t)
		if t.Kind() == reflect.Pointer {
			f.Nullable = true
		}
		if f.GroupTag != "" {
			return nil, fmt.Errorf("group tag %q requires an array member", f.GroupTag)
		}
	case t.Kind() == reflect.Array && isScalar(t.Elem()):
		f.Kind = KindArray
		f.ElemType = indirectType(t.Elem())
		f.Len = t.Len()
		if f.PrimaryKey || f.AutoIncrement {
			return nil, fmt.Errorf("array member cannot be a primary key")
		}
	case t.Kind() == reflect.Struct:
		if f.GroupTag != "" {
			return nil, fmt.Errorf("group tag %q requires an array member", f.GroupTag)
		}
		if f.PrimaryKey || f.AutoIncrement {
			return nil, fmt.Errorf("value object member cannot be a primary key")
		}
		f.Kind = KindValueObject
		f.ElemType = t
		subs, err := r.subFields(t)
		if err != nil {
			return nil, err
		}
		f.SubFields = subs
	default:
		return nil, fmt.Errorf("unsupported member type %s", t)
	}
	return f, nil
}

func relationField(f *Field, tg tag) (*Field, error) {
	t := f.Type
	switch {
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		f.Kind = KindRelationSingle
		f.Target = t.Elem()
	case t.Kind() == reflect.Slice && indirectType(t.Elem()).Kind() == reflect.Struct:
		f.Kind = KindRelationMany
		f.Target = indirectType(t.Elem())
	default:
		return nil, fmt.Errorf("relation member must be *T, []T or []*T, got %s", t)
	}
	f.Relation = tg.relationName
	f.Column = ""
	return f, nil
}

func (r *Registry) subFields(t reflect.Type) ([]*Field, error) {
	var subs []*Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tg, err := parseTag(sf.Tag.Get(tagName))
		if err != nil {
			return nil, fmt.Errorf("sub-member %s: %w", sf.Name, err)
		}
		if tg.ignore {
			continue
		}
		if !isScalar(sf.Type) {
			return nil, fmt.Errorf("sub-member %s: value object members must be scalars, got %s", sf.Name, sf.Type)
		}
		sub := &Field{
			Name:       sf.Name,
			Column:     tg.column,
			Kind:       KindScalar,
			Type:       sf.Type,
			ElemType:   indirectType(sf.Type),
			Size:       tg.size,
			Nullable:   tg.nullable || sf.Type.Kind() == reflect.Pointer,
			Default:    tg.def,
			HasDefault: tg.hasDefault,
			index:      []int{i},
		}
		if sub.Column == "" {
			sub.Column = r.naming(sf.Name)
		}
		subs = append(subs, sub)
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("value object %s has no members", t)
	}
	return subs, nil
}

// group collapses a contiguous run of array members sharing a group tag.
func (r *Registry) group(run []*Field) (*Field, error) {
	tag := run[0].GroupTag
	g := &Field{
		Name:      tag,
		Column:    r.naming(tag),
		Kind:      KindGroupedArray,
		GroupTag:  tag,
		GroupSize: len(run),
		Len:       run[0].Len,
		Members:   run,
	}
	for _, m := range run {
		if m.Kind != KindArray {
			return nil, fmt.Errorf("group %q: member %s is not an array", tag, m.Name)
		}
		if m.Len != g.Len {
			return nil, fmt.Errorf("group %q: member %s has %d elements, want %d", tag, m.Name, m.Len, g.Len)
		}
	}
	return g, nil
}

func indirectType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

// isScalar reports whether t maps onto a single column.
func isScalar(t reflect.Type) bool {
	if t == bytesType {
		return true
	}
	t = indirectType(t)
	switch t {
	case timeType, uuidType:
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String, reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}
