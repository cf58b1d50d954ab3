// Package predicate provides boolean expression trees over entity members and
// their translation into parameterized SQL fragments.
//
// Trees are usually built with the fluent helpers:
//
//	p := predicate.And(
//	    predicate.F("Age").GT(18),
//	    predicate.F("Name").EQ("Bob"),
//	)
//
// which translates, for MySQL, into "((`Age` > @p1) AND (`Name` = @p2))"
// with two bound parameters.
package predicate

// Expr is a node of a predicate tree. Kind names the node kind and is used in
// error messages for nodes the translator does not support.
type Expr interface {
	Kind() string
}

// Op is a comparison operator.
type Op string

// Comparison operators.
const (
	OpEQ  Op = "="
	OpNEQ Op = "<>"
	OpGT  Op = ">"
	OpGTE Op = ">="
	OpLT  Op = "<"
	OpLTE Op = "<="
)

// mirror returns the operator with its operands swapped: a < b == b > a.
func (o Op) mirror() Op {
	switch o {
	case OpGT:
		return OpLT
	case OpGTE:
		return OpLTE
	case OpLT:
		return OpGT
	case OpLTE:
		return OpGTE
	default:
		return o
	}
}

func (o Op) valid() bool {
	switch o {
	case OpEQ, OpNEQ, OpGT, OpGTE, OpLT, OpLTE:
		return true
	}
	return false
}

// Logical operators.
const (
	AndOp = "AND"
	OrOp  = "OR"
)

type (
	// Compare compares two operands. At least one side must be a Member.
	Compare struct {
		Op          Op
		Left, Right Expr
	}

	// Logical joins two predicates with AND or OR.
	Logical struct {
		Op          string
		Left, Right Expr
	}

	// Not negates a predicate.
	Not struct {
		X Expr
	}

	// Member references an entity member. Value object sub-members are
	// written as "Member.Sub".
	Member struct {
		Name string
	}

	// Value is a constant operand.
	Value struct {
		V any
	}

	// Captured references a value reachable from Root through a chain of
	// struct fields, map keys and pointers. The chain is resolved when the
	// predicate is translated, so later changes to Root are observed.
	Captured struct {
		Root any
		Path []string
	}

	// Call is an operand computed by calling Fn during translation.
	Call struct {
		Fn func() (any, error)
	}
)

func (*Compare) Kind() string  { return "Compare" }
func (*Logical) Kind() string  { return "Logical" }
func (*Not) Kind() string      { return "Not" }
func (*Member) Kind() string   { return "Member" }
func (*Value) Kind() string    { return "Value" }
func (*Captured) Kind() string { return "Captured" }
func (*Call) Kind() string     { return "Call" }

// F returns a member reference.
func F(name string) *Member {
	return &Member{Name: name}
}

// Bool returns a bare boolean member reference, true when the member is.
func Bool(name string) *Member {
	return F(name)
}

// EQ returns a predicate that the member is equal to v. A nil v matches NULL.
func (m *Member) EQ(v any) *Compare { return &Compare{Op: OpEQ, Left: m, Right: operand(v)} }

// NEQ returns a predicate that the member is not equal to v.
func (m *Member) NEQ(v any) *Compare { return &Compare{Op: OpNEQ, Left: m, Right: operand(v)} }

// GT returns a predicate that the member is greater than v.
func (m *Member) GT(v any) *Compare { return &Compare{Op: OpGT, Left: m, Right: operand(v)} }

// GTE returns a predicate that the member is greater than or equal to v.
func (m *Member) GTE(v any) *Compare { return &Compare{Op: OpGTE, Left: m, Right: operand(v)} }

// LT returns a predicate that the member is less than v.
func (m *Member) LT(v any) *Compare { return &Compare{Op: OpLT, Left: m, Right: operand(v)} }

// LTE returns a predicate that the member is less than or equal to v.
func (m *Member) LTE(v any) *Compare { return &Compare{Op: OpLTE, Left: m, Right: operand(v)} }

// operand wraps plain values; expressions are kept as is.
func operand(v any) Expr {
	if e, ok := v.(Expr); ok {
		return e
	}
	return &Value{V: v}
}

// And joins the predicates with AND, left to right.
func And(preds ...Expr) Expr {
	return join(AndOp, preds)
}

// Or joins the predicates with OR, left to right.
func Or(preds ...Expr) Expr {
	return join(OrOp, preds)
}

func join(op string, preds []Expr) Expr {
	if len(preds) == 0 {
		return nil
	}
	e := preds[0]
	for _, p := range preds[1:] {
		e = &Logical{Op: op, Left: e, Right: p}
	}
	return e
}

// Negate returns the negation of x.
func Negate(x Expr) *Not {
	return &Not{X: x}
}

// Ref returns a captured reference to the value at path inside root.
func Ref(root any, path ...string) *Captured {
	return &Captured{Root: root, Path: path}
}

// Eval returns an operand evaluated by calling fn during translation.
func Eval(fn func() (any, error)) *Call {
	return &Call{Fn: fn}
}

// Cmp returns a comparison of two arbitrary operands.
func Cmp(left Expr, op Op, right Expr) *Compare {
	return &Compare{Op: op, Left: left, Right: right}
}
