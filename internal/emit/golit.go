package emit

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"strconv"
)

// GoExpr builds a Go composite literal for v against the runtime package
// types. qualifier is the local name of the runtime package in the target
// file; an empty qualifier leaves type names unqualified.
//
// Arrays become []string{...} or []<q>.Fun{...}; records inside arrays
// use elided composite literals, records stored under a key become
// pointers (&<q>.Type{...}) so that absent keys stay nil.
func GoExpr(v Value, qualifier string) ast.Expr {
	switch v := v.(type) {
	case String:
		return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(string(v))}
	case Int:
		if v < 0 {
			return &ast.UnaryExpr{Op: token.SUB, X: &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(int(-v))}}
		}
		return &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(int(v))}
	case Bool:
		return ast.NewIdent(strconv.FormatBool(bool(v)))
	case *Array:
		return arrayLit(v, qualifier)
	case *Record:
		return &ast.UnaryExpr{Op: token.AND, X: recordLit(v, qualifier, typeName(v.Type, qualifier))}
	}
	return ast.NewIdent("nil")
}

// FormatGo renders v as Go source text.
func FormatGo(v Value, qualifier string) (string, error) {
	var buf bytes.Buffer
	if err := format.Node(&buf, token.NewFileSet(), GoExpr(v, qualifier)); err != nil {
		return "", fmt.Errorf("formatting literal: %w", err)
	}
	return buf.String(), nil
}

func arrayLit(a *Array, qualifier string) *ast.CompositeLit {
	lit := &ast.CompositeLit{Type: &ast.ArrayType{Elt: typeName(a.Elem, qualifier)}}
	for _, item := range a.Items {
		if rec, ok := item.(*Record); ok {
			lit.Elts = append(lit.Elts, recordLit(rec, qualifier, nil))
			continue
		}
		lit.Elts = append(lit.Elts, GoExpr(item, qualifier))
	}
	return lit
}

func recordLit(r *Record, qualifier string, typ ast.Expr) *ast.CompositeLit {
	lit := &ast.CompositeLit{Type: typ}
	for _, f := range r.Fields {
		lit.Elts = append(lit.Elts, &ast.KeyValueExpr{
			Key:   ast.NewIdent(goFieldName(f.Key)),
			Value: GoExpr(f.Value, qualifier),
		})
	}
	return lit
}

func typeName(name, qualifier string) ast.Expr {
	if name == ElemString || qualifier == "" {
		return ast.NewIdent(name)
	}
	return &ast.SelectorExpr{X: ast.NewIdent(qualifier), Sel: ast.NewIdent(name)}
}

// goFieldName maps a record key to the exported runtime field name
// (returnType -> ReturnType).
func goFieldName(key string) string {
	if key == "" {
		return key
	}
	runes := []rune(key)
	if runes[0] >= 'a' && runes[0] <= 'z' {
		runes[0] -= 32
	}
	return string(runes)
}
