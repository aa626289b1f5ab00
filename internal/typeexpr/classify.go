package typeexpr

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
)

// Classify maps a type-argument syntax node to its shape. A nil node (no
// type argument at all) yields nil.
//
//	any, interface{}          Wildcard
//	A | B | C                 Union(A, B, C)
//	A & B & C                 Intersection(A, B, C)
//	interface{ A; B }         Intersection(A, B)
//	interface{ A | B }        Union(A, B)
//	(X), interface{ X }       shape of X
//	anything else             Reference
//
// Only unparenthesised chains of the same operator are flattened, so
// (A | B) | C is a union whose first operand is itself a union.
func Classify(node ast.Expr) Expr {
	if node == nil {
		return nil
	}
	switch n := node.(type) {
	case *ast.ParenExpr:
		return Classify(n.X)
	case *ast.Ident:
		if n.Name == "any" {
			return &Wildcard{Node: n}
		}
	case *ast.InterfaceType:
		if e := classifyInterface(n); e != nil {
			return e
		}
	case *ast.BinaryExpr:
		switch n.Op {
		case token.OR:
			return &Union{Node: n, operands: classifyChain(n, token.OR)}
		case token.AND:
			return &Intersection{Node: n, operands: classifyChain(n, token.AND)}
		}
	}
	return &Reference{Node: node, Text: types.ExprString(node)}
}

// Parse parses src as a Go type expression and classifies it. Blank input
// is an absent type argument and yields nil without error.
func Parse(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	node, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("parsing type expression %q: %w", src, err)
	}
	return Classify(node), nil
}

// classifyInterface returns nil for interfaces that declare methods; those
// are inline object types and therefore references.
func classifyInterface(n *ast.InterfaceType) Expr {
	if n.Methods == nil || len(n.Methods.List) == 0 {
		return &Wildcard{Node: n}
	}
	var elems []ast.Expr
	for _, field := range n.Methods.List {
		if len(field.Names) > 0 {
			return nil
		}
		elems = append(elems, field.Type)
	}
	if len(elems) == 1 {
		return Classify(elems[0])
	}
	ops := make([]Expr, len(elems))
	for i, elem := range elems {
		ops[i] = Classify(elem)
	}
	return &Intersection{Node: n, operands: ops}
}

func classifyChain(n *ast.BinaryExpr, op token.Token) []Expr {
	nodes := flatten(n, op, nil)
	ops := make([]Expr, len(nodes))
	for i, node := range nodes {
		ops[i] = Classify(node)
	}
	return ops
}

func flatten(node ast.Expr, op token.Token, out []ast.Expr) []ast.Expr {
	if b, ok := node.(*ast.BinaryExpr); ok && b.Op == op {
		out = flatten(b.X, op, out)
		return flatten(b.Y, op, out)
	}
	return append(out, node)
}
