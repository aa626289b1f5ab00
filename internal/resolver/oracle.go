package resolver

import "github.com/funvibe/keysof/internal/typeexpr"

// Type is an oracle-specific handle for a resolved type.
type Type any

// Oracle answers member queries for type expressions.
type Oracle interface {
	// TypeOf resolves an expression to a type. Oracles that cannot
	// evaluate unions or intersections natively return false for them;
	// a false result for a Reference contributes no members.
	TypeOf(expr typeexpr.Expr) (Type, bool)

	// PropertiesOf returns the own and inherited members of t in
	// declaration order.
	PropertiesOf(t Type) []Member
}

// Member is one field or method as reported by an oracle. Members are
// identified by Name alone during resolution.
type Member struct {
	Name string

	// Method is true for method-shaped members; plain fields, including
	// fields of function type, are not methods.
	Method bool

	// Params, Result and Optional are only meaningful for methods.
	Params   []Param
	Result   *TypeTag
	Optional bool
}

// Param is one method parameter. Name may be empty and Type may be nil.
type Param struct {
	Name string
	Type *TypeTag
}

// TypeTag is the textual type of a parameter or result plus the oracle's
// numeric kind for it. The kind is passed through untouched.
type TypeTag struct {
	Text string
	Kind int
}

// Tag is a convenience constructor for *TypeTag.
func Tag(text string, kind int) *TypeTag {
	return &TypeTag{Text: text, Kind: kind}
}

// Func is an Oracle built from two functions, mostly useful in tests and
// for adapting foreign type systems.
type Func struct {
	TypeOfFunc       func(typeexpr.Expr) (Type, bool)
	PropertiesOfFunc func(Type) []Member
}

func (f Func) TypeOf(expr typeexpr.Expr) (Type, bool) {
	if f.TypeOfFunc == nil {
		return nil, false
	}
	return f.TypeOfFunc(expr)
}

func (f Func) PropertiesOf(t Type) []Member {
	if f.PropertiesOfFunc == nil {
		return nil
	}
	return f.PropertiesOfFunc(t)
}
