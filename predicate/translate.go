package predicate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
)

// Translate renders e as a WHERE fragment over the entity described by d.
// Values are bound through b, so fragments of one statement built with the
// same binder never reuse a parameter name.
func Translate(dialectName string, d *schema.Descriptor, e Expr, b *dialect.Binder) (string, error) {
	t := &translator{dialect: dialectName, desc: d, binder: b}
	var sb strings.Builder
	if err := t.expr(&sb, e); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type translator struct {
	dialect string
	desc    *schema.Descriptor
	binder  *dialect.Binder
}

func (t *translator) expr(sb *strings.Builder, e Expr) error {
	switch e := e.(type) {
	case nil:
		return strata.NewUnsupportedExpressionError("nil", "empty predicate")
	case *Logical:
		return t.logical(sb, e)
	case *Compare:
		return t.compare(sb, e)
	case *Member:
		return t.boolMember(sb, e, true)
	case *Not:
		return t.not(sb, e)
	default:
		return strata.NewUnsupportedExpressionError(e.Kind(), "not a condition")
	}
}

func (t *translator) logical(sb *strings.Builder, e *Logical) error {
	op := strings.ToUpper(e.Op)
	if op != AndOp && op != OrOp {
		return strata.NewUnsupportedExpressionError(e.Kind(), fmt.Sprintf("operator %q", e.Op))
	}
	sb.WriteByte('(')
	if err := t.expr(sb, e.Left); err != nil {
		return err
	}
	sb.WriteString(" " + op + " ")
	if err := t.expr(sb, e.Right); err != nil {
		return err
	}
	sb.WriteByte(')')
	return nil
}

// not folds a run of negations over a boolean member into the compared
// literal. Negations of other conditions render as NOT.
func (t *translator) not(sb *strings.Builder, e *Not) error {
	want := false
	x := e.X
	for {
		n, ok := x.(*Not)
		if !ok {
			break
		}
		want = !want
		x = n.X
	}
	if m, ok := x.(*Member); ok {
		return t.boolMember(sb, m, want)
	}
	if want {
		return t.expr(sb, x)
	}
	sb.WriteString("(NOT ")
	if err := t.expr(sb, x); err != nil {
		return err
	}
	sb.WriteByte(')')
	return nil
}

func (t *translator) boolMember(sb *strings.Builder, m *Member, want bool) error {
	f, col, err := t.desc.Lookup(m.Name)
	if err != nil {
		return err
	}
	if f.ElemType.Kind() != reflect.Bool {
		return strata.NewUnsupportedExpressionError(m.Kind(), fmt.Sprintf("member %s of type %s used as a condition", m.Name, f.Type))
	}
	sb.WriteString("(" + dialect.Quote(t.dialect, col) + " = " + t.binder.Bind(schema.StorageValue(want)) + ")")
	return nil
}

func (t *translator) compare(sb *strings.Builder, e *Compare) error {
	if !e.Op.valid() {
		return strata.NewUnsupportedExpressionError(e.Kind(), fmt.Sprintf("operator %q", e.Op))
	}
	left, lok := e.Left.(*Member)
	right, rok := e.Right.(*Member)
	switch {
	case lok && rok:
		lcol, err := t.column(left)
		if err != nil {
			return err
		}
		rcol, err := t.column(right)
		if err != nil {
			return err
		}
		sb.WriteString("(" + lcol + " " + string(e.Op) + " " + rcol + ")")
		return nil
	case lok:
		return t.compareValue(sb, left, e.Op, e.Right)
	case rok:
		return t.compareValue(sb, right, e.Op.mirror(), e.Left)
	default:
		return strata.NewUnsupportedExpressionError(e.Kind(), "comparison without an entity member")
	}
}

func (t *translator) compareValue(sb *strings.Builder, m *Member, op Op, operand Expr) error {
	col, err := t.column(m)
	if err != nil {
		return err
	}
	v, err := resolve(operand)
	if err != nil {
		return err
	}
	v = schema.StorageValue(v)
	if v == nil {
		switch op {
		case OpEQ:
			sb.WriteString("(" + col + " IS NULL)")
		case OpNEQ:
			sb.WriteString("(" + col + " IS NOT NULL)")
		default:
			return strata.NewUnsupportedExpressionError("Compare", fmt.Sprintf("NULL with operator %s", op))
		}
		return nil
	}
	sb.WriteString("(" + col + " " + string(op) + " " + t.binder.Bind(v) + ")")
	return nil
}

func (t *translator) column(m *Member) (string, error) {
	_, col, err := t.desc.Lookup(m.Name)
	if err != nil {
		return "", err
	}
	return dialect.Quote(t.dialect, col), nil
}

// resolve evaluates a value operand.
func resolve(e Expr) (any, error) {
	switch e := e.(type) {
	case *Value:
		return e.V, nil
	case *Captured:
		return walk(e.Root, e.Path)
	case *Call:
		if e.Fn == nil {
			return nil, strata.NewUnsupportedExpressionError(e.Kind(), "nil function")
		}
		v, err := e.Fn()
		if err != nil {
			return nil, fmt.Errorf("predicate: evaluate operand: %w", err)
		}
		return v, nil
	case nil:
		return nil, strata.NewUnsupportedExpressionError("nil", "missing operand")
	default:
		return nil, strata.NewUnsupportedExpressionError(e.Kind(), "not a value")
	}
}

// walk follows path from root. It stops early once a value without members
// (a number, string, bool, ...) is reached.
func walk(root any, path []string) (any, error) {
	cur := reflect.ValueOf(root)
	for i, step := range path {
		for cur.Kind() == reflect.Pointer || cur.Kind() == reflect.Interface {
			if cur.IsNil() {
				return nil, fmt.Errorf("predicate: nil value at %q", strings.Join(path[:i], "."))
			}
			cur = cur.Elem()
		}
		switch cur.Kind() {
		case reflect.Struct:
			sf, ok := cur.Type().FieldByName(step)
			if !ok || !sf.IsExported() {
				return nil, fmt.Errorf("predicate: %s has no exported member %q", cur.Type(), step)
			}
			v, err := cur.FieldByIndexErr(sf.Index)
			if err != nil {
				return nil, fmt.Errorf("predicate: member %q: %w", step, err)
			}
			cur = v
		case reflect.Map:
			if cur.Type().Key().Kind() != reflect.String {
				return nil, fmt.Errorf("predicate: unsupported map key type %s", cur.Type().Key())
			}
			v := cur.MapIndex(reflect.ValueOf(step).Convert(cur.Type().Key()))
			if !v.IsValid() {
				return nil, fmt.Errorf("predicate: missing map key %q", step)
			}
			cur = v
		case reflect.Invalid:
			return nil, fmt.Errorf("predicate: nil value at %q", strings.Join(path[:i], "."))
		default:
			return cur.Interface(), nil
		}
	}
	if !cur.IsValid() {
		return nil, nil
	}
	return cur.Interface(), nil
}
