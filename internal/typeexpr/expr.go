// Package typeexpr models the type argument of a keysof call as a small
// closed tree: Wildcard, Reference, Union and Intersection.
//
// The tree is built from go/ast syntax by Classify. Classification is total:
// every node maps to exactly one shape, and anything not recognised as a
// wildcard or a composite is a Reference to be answered by a type oracle.
package typeexpr

import (
	"go/ast"
	"go/token"
	"strings"
)

// Shape is the tag of an Expr.
type Shape int

const (
	ShapeWildcard Shape = iota
	ShapeReference
	ShapeUnion
	ShapeIntersection
)

func (s Shape) String() string {
	switch s {
	case ShapeWildcard:
		return "wildcard"
	case ShapeReference:
		return "reference"
	case ShapeUnion:
		return "union"
	case ShapeIntersection:
		return "intersection"
	default:
		return "unknown"
	}
}

// Expr is a classified type expression. The set of implementations is
// closed: *Wildcard, *Reference, *Union and *Intersection.
type Expr interface {
	Shape() Shape
	String() string
	typeExpr()
}

// Composite is implemented by *Union and *Intersection.
type Composite interface {
	Expr
	Operands() []Expr
}

// Wildcard is the any / interface{} marker. It has no members.
type Wildcard struct {
	// Node is the source syntax, nil for synthesized wildcards.
	Node ast.Expr
}

// Reference is a single concrete type: a name, a selector, a generic
// instance or an inline struct/interface literal.
type Reference struct {
	// Node is the source syntax, nil when the reference was built from text.
	Node ast.Expr

	// Text is the printed form of Node (or the text it was built from).
	Text string
}

// Union is "A | B | ...". It always has at least one operand.
type Union struct {
	Node     ast.Expr
	operands []Expr
}

// Intersection is "A & B & ..." or interface{ A; B }. It always has at
// least one operand.
type Intersection struct {
	Node     ast.Expr
	operands []Expr
}

func (*Wildcard) typeExpr()     {}
func (*Reference) typeExpr()    {}
func (*Union) typeExpr()        {}
func (*Intersection) typeExpr() {}

func (*Wildcard) Shape() Shape     { return ShapeWildcard }
func (*Reference) Shape() Shape    { return ShapeReference }
func (*Union) Shape() Shape        { return ShapeUnion }
func (*Intersection) Shape() Shape { return ShapeIntersection }

func (*Wildcard) String() string { return "any" }

func (r *Reference) String() string { return r.Text }

func (u *Union) String() string { return joinOperands(u.operands, " | ") }

func (i *Intersection) String() string { return joinOperands(i.operands, " & ") }

// Operands returns the direct children in source order.
func (u *Union) Operands() []Expr { return u.operands }

// Operands returns the direct children in source order.
func (i *Intersection) Operands() []Expr { return i.operands }

// Pos returns the source position of the reference, or token.NoPos.
func (r *Reference) Pos() token.Pos {
	if r.Node == nil {
		return token.NoPos
	}
	return r.Node.Pos()
}

// Ref builds a Reference from its text alone.
func Ref(text string) *Reference {
	return &Reference{Text: text}
}

// Any builds a synthesized Wildcard.
func Any() *Wildcard {
	return &Wildcard{}
}

// NewUnion builds a Union. It panics when called without operands.
func NewUnion(operands ...Expr) *Union {
	if len(operands) == 0 {
		panic("typeexpr: union without operands")
	}
	return &Union{operands: operands}
}

// NewIntersection builds an Intersection. It panics when called without
// operands.
func NewIntersection(operands ...Expr) *Intersection {
	if len(operands) == 0 {
		panic("typeexpr: intersection without operands")
	}
	return &Intersection{operands: operands}
}

// IsComposite reports whether e is a Union or an Intersection.
func IsComposite(e Expr) bool {
	_, ok := e.(Composite)
	return ok
}

// HasWildcardOperand reports whether e is a composite with at least one
// direct Wildcard operand. Nested wildcards do not count.
func HasWildcardOperand(e Expr) bool {
	c, ok := e.(Composite)
	if !ok {
		return false
	}
	for _, op := range c.Operands() {
		if op.Shape() == ShapeWildcard {
			return true
		}
	}
	return false
}

// AllReferences reports whether every direct operand of the composite e is
// a Reference.
func AllReferences(e Expr) bool {
	c, ok := e.(Composite)
	if !ok {
		return false
	}
	for _, op := range c.Operands() {
		if op.Shape() != ShapeReference {
			return false
		}
	}
	return true
}

func joinOperands(ops []Expr, sep string) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		if IsComposite(op) {
			parts[i] = "(" + op.String() + ")"
		} else {
			parts[i] = op.String()
		}
	}
	return strings.Join(parts, sep)
}
