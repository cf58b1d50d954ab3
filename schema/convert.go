package schema

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	uuidType  = reflect.TypeOf(uuid.UUID{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// timeLayouts are tried in order when a backend returns times as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// StorageValue converts a Go value into the value bound as a statement
// parameter: booleans become 1/0, named integer (enum) types their underlying
// number, uuid.UUID its string form. Unsigned values above math.MaxInt64 are
// bound as decimal text. Nil pointers become nil.
func StorageValue(v any) any {
	if v == nil {
		return nil
	}
	switch v := v.(type) {
	case bool:
		return boolCode(v)
	case string, int64, float64, []byte, time.Time:
		return v
	case uuid.UUID:
		return v.String()
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Type() {
	case timeType:
		return rv.Interface()
	case uuidType:
		return rv.Interface().(uuid.UUID).String()
	}
	switch rv.Kind() {
	case reflect.Bool:
		return boolCode(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u <= math.MaxInt64 {
			return int64(u)
		}
		return strconv.FormatUint(u, 10)
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes()
		}
	}
	return rv.Interface()
}

func boolCode(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Values returns the storage values of the field inside entity struct v, in
// the order of f.Columns().
func (f *Field) Values(v reflect.Value) []any {
	switch f.Kind {
	case KindScalar:
		return []any{StorageValue(f.Value(v).Interface())}
	case KindArray:
		arr := f.Value(v)
		vals := make([]any, f.Len)
		for i := range vals {
			vals[i] = StorageValue(arr.Index(i).Interface())
		}
		return vals
	case KindGroupedArray:
		vals := make([]any, 0, f.Len*f.GroupSize)
		for slot := 0; slot < f.Len; slot++ {
			for _, m := range f.Members {
				vals = append(vals, StorageValue(m.Value(v).Index(slot).Interface()))
			}
		}
		return vals
	case KindValueObject:
		vo := f.Value(v)
		vals := make([]any, len(f.SubFields))
		for i, sf := range f.SubFields {
			vals[i] = StorageValue(sf.Value(vo).Interface())
		}
		return vals
	default:
		return nil
	}
}

// Assign stores a raw backend value into dst, converting it to the declared
// type of dst. NULL leaves pointers nil and other types at their zero value.
func Assign(dst reflect.Value, src any) error {
	if src == nil {
		dst.SetZero()
		return nil
	}
	if dst.Kind() == reflect.Pointer && dst.Type() != bytesType {
		elem := reflect.New(dst.Type().Elem())
		if err := Assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}
	sv := reflect.ValueOf(src)
	if sv.Type() == dst.Type() {
		if b, ok := src.([]byte); ok {
			src = append([]byte(nil), b...)
			sv = reflect.ValueOf(src)
		}
		dst.Set(sv)
		return nil
	}
	switch dst.Type() {
	case timeType:
		t, err := asTime(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	case uuidType:
		u, err := asUUID(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(u))
		return nil
	}
	switch dst.Kind() {
	case reflect.Bool:
		b, err := asBool(src)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := asInt(src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("schema: value %d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := asUint(src)
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return fmt.Errorf("schema: value %d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := asFloat(src)
		if err != nil {
			return err
		}
		dst.SetFloat(n)
	case reflect.String:
		switch s := src.(type) {
		case string:
			dst.SetString(s)
		case []byte:
			dst.SetString(string(s))
		case time.Time:
			dst.SetString(s.Format(time.RFC3339Nano))
		default:
			dst.SetString(fmt.Sprint(s))
		}
	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("schema: cannot assign %T to %s", src, dst.Type())
		}
		switch s := src.(type) {
		case []byte:
			dst.SetBytes(append([]byte(nil), s...))
		case string:
			dst.SetBytes([]byte(s))
		default:
			return fmt.Errorf("schema: cannot assign %T to %s", src, dst.Type())
		}
	default:
		if sv.Type().ConvertibleTo(dst.Type()) {
			dst.Set(sv.Convert(dst.Type()))
			return nil
		}
		return fmt.Errorf("schema: cannot assign %T to %s", src, dst.Type())
	}
	return nil
}

func asBool(src any) (bool, error) {
	switch s := src.(type) {
	case bool:
		return s, nil
	case []byte:
		return strconv.ParseBool(string(s))
	case string:
		return strconv.ParseBool(s)
	}
	n, err := asInt(src)
	if err != nil {
		return false, fmt.Errorf("schema: cannot assign %T to bool", src)
	}
	return n != 0, nil
}

func asInt(src any) (int64, error) {
	switch s := src.(type) {
	case []byte:
		return strconv.ParseInt(string(s), 10, 64)
	case string:
		return strconv.ParseInt(s, 10, 64)
	case bool:
		return boolCode(s), nil
	}
	sv := reflect.ValueOf(src)
	switch sv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return sv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := sv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("schema: value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := sv.Float()
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("schema: cannot assign fractional %v to an integer", f)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("schema: cannot assign %T to an integer", src)
}

func asUint(src any) (uint64, error) {
	switch s := src.(type) {
	case []byte:
		return strconv.ParseUint(string(s), 10, 64)
	case string:
		return strconv.ParseUint(s, 10, 64)
	case uint64:
		return s, nil
	case float64:
		if s >= 1<<63 && s < 1<<64 && s == math.Trunc(s) {
			return uint64(s), nil
		}
	}
	n, err := asInt(src)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("schema: negative value %d for an unsigned integer", n)
	}
	return uint64(n), nil
}

func asFloat(src any) (float64, error) {
	switch s := src.(type) {
	case []byte:
		return strconv.ParseFloat(string(s), 64)
	case string:
		return strconv.ParseFloat(s, 64)
	}
	sv := reflect.ValueOf(src)
	switch sv.Kind() {
	case reflect.Float32, reflect.Float64:
		return sv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(sv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(sv.Uint()), nil
	}
	return 0, fmt.Errorf("schema: cannot assign %T to a float", src)
}

func asTime(src any) (time.Time, error) {
	var s string
	switch v := src.(type) {
	case time.Time:
		return v, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}, fmt.Errorf("schema: cannot assign %T to time.Time", src)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("schema: cannot parse time %q", s)
}

func asUUID(src any) (uuid.UUID, error) {
	switch v := src.(type) {
	case string:
		return uuid.Parse(v)
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	}
	return uuid.UUID{}, fmt.Errorf("schema: cannot assign %T to uuid.UUID", src)
}
