package rewrite

import (
	"go/ast"
	"go/types"
	"path"
	"strconv"
	"strings"

	"github.com/funvibe/keysof/internal/resolver"
)

// Entry point names in the runtime package.
const (
	KeysFunc = "Keys"
	FunsFunc = "Funs"
)

// MatchFunc reports whether call, found in f, is a keysof entry point. It
// returns the call's type argument, nil when the call has none, and the
// mode. resolver.None means the call is not an entry point.
type MatchFunc func(f *ast.File, call *ast.CallExpr) (ast.Expr, resolver.Mode)

// ImportMatcher matches calls of Keys and Funs from the package imported
// as runtimePath. When info is not nil the qualifier must resolve to that
// import, so local variables shadowing the package name are not matched.
func ImportMatcher(runtimePath string, info *types.Info) MatchFunc {
	return func(f *ast.File, call *ast.CallExpr) (ast.Expr, resolver.Mode) {
		local, ok := ImportName(f, runtimePath)
		if !ok {
			return nil, resolver.None
		}

		fun, typeArg := splitTypeArgs(call.Fun)
		var name *ast.Ident
		switch fn := fun.(type) {
		case *ast.SelectorExpr:
			x, ok := fn.X.(*ast.Ident)
			if !ok || local == "" || x.Name != local {
				return nil, resolver.None
			}
			if info != nil && !refersTo(info, x, runtimePath) {
				return nil, resolver.None
			}
			name = fn.Sel
		case *ast.Ident:
			// Dot import.
			if local != "" || fn.Obj != nil {
				return nil, resolver.None
			}
			if info != nil {
				if obj, ok := info.Uses[fn]; ok && (obj.Pkg() == nil || obj.Pkg().Path() != runtimePath) {
					return nil, resolver.None
				}
			} else if typeArg == nil {
				// A bare Keys() may be a package-local function.
				return nil, resolver.None
			}
			name = fn
		default:
			return nil, resolver.None
		}

		switch name.Name {
		case KeysFunc:
			return typeArg, resolver.NamesOnly
		case FunsFunc:
			return typeArg, resolver.Signatures
		}
		return nil, resolver.None
	}
}

// splitTypeArgs separates an instantiated function expression into the
// function and its first type argument.
func splitTypeArgs(fun ast.Expr) (ast.Expr, ast.Expr) {
	switch fn := fun.(type) {
	case *ast.IndexExpr:
		return fn.X, fn.Index
	case *ast.IndexListExpr:
		if len(fn.Indices) == 0 {
			return fn.X, nil
		}
		return fn.X, fn.Indices[0]
	case *ast.ParenExpr:
		return splitTypeArgs(fn.X)
	}
	return fun, nil
}

func refersTo(info *types.Info, id *ast.Ident, runtimePath string) bool {
	obj, ok := info.Uses[id]
	if !ok {
		// Unresolved qualifiers fall back to the name match.
		return true
	}
	pn, ok := obj.(*types.PkgName)
	return ok && pn.Imported().Path() == runtimePath
}

// ImportName returns the name f uses for the import of importPath: the
// explicit name, "" for a dot import, or the last path element. ok is
// false when f does not import importPath or imports it blank.
func ImportName(f *ast.File, importPath string) (name string, ok bool) {
	spec := importSpec(f, importPath)
	if spec == nil {
		return "", false
	}
	if spec.Name != nil {
		switch spec.Name.Name {
		case "_":
			return "", false
		case ".":
			return "", true
		}
		return spec.Name.Name, true
	}
	return defaultName(importPath), true
}

func importSpec(f *ast.File, importPath string) *ast.ImportSpec {
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err == nil && p == importPath {
			return imp
		}
	}
	return nil
}

// defaultName guesses the package name of an import path: its last
// element, skipping a major version suffix.
func defaultName(importPath string) string {
	base := path.Base(importPath)
	if len(base) > 1 && base[0] == 'v' && strings.Trim(base[1:], "0123456789") == "" {
		base = path.Base(path.Dir(importPath))
	}
	return strings.ReplaceAll(base, "-", "_")
}
