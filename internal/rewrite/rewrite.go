// Package rewrite replaces keysof.Keys and keysof.Funs call sites with
// the literals their type arguments resolve to.
package rewrite

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"go/types"
	"maps"
	"slices"
	"strconv"

	"github.com/funvibe/keysof/internal/emit"
	"github.com/funvibe/keysof/internal/resolver"
	"github.com/funvibe/keysof/internal/typeexpr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/ast/astutil"
)

// Options configures a rewrite.
type Options struct {
	// Runtime is the import path of the entry points. Emitted Fun literals
	// are qualified with the file's name for it, and the import is removed
	// from files that no longer use it.
	Runtime string

	// Match identifies call sites. Nil means ImportMatcher(Runtime, Info).
	Match MatchFunc

	// Info, when set, resolves import qualifiers exactly. Without it an
	// import is recognised by its local name.
	Info *types.Info
}

func (o Options) matcher() MatchFunc {
	if o.Match != nil {
		return o.Match
	}
	return ImportMatcher(o.Runtime, o.Info)
}

// FileResult describes the rewrite of one file.
type FileResult struct {
	// Name is the file name as recorded in the file set.
	Name string

	// Rewrites counts replaced call sites.
	Rewrites int

	// Source is the formatted rewritten file, nil when nothing changed.
	Source []byte

	// Warnings lists call sites that resolved to an empty literal because
	// they carry no type argument.
	Warnings []string
}

// File rewrites the call sites of f in place. The result carries the
// formatted source when at least one call was replaced.
func File(fset *token.FileSet, f *ast.File, oracle resolver.Oracle, opts Options) (*FileResult, error) {
	res := &FileResult{Name: fset.Position(f.Package).Filename}
	if opts.Runtime == "" {
		return nil, fmt.Errorf("%s: runtime import path is required", res.Name)
	}
	match := opts.matcher()
	qualifier, _ := ImportName(f, opts.Runtime)
	// Imports referenced by replaced type arguments may become unused.
	touched := map[string]bool{opts.Runtime: true}

	astutil.Apply(f, nil, func(c *astutil.Cursor) bool {
		call, ok := c.Node().(*ast.CallExpr)
		if !ok {
			return true
		}
		typeArg, mode := match(f, call)
		if mode == resolver.None {
			return true
		}

		var members []resolver.Member
		if typeArg == nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%s: %s call without type argument", fset.Position(call.Pos()), mode))
		} else {
			members = resolver.Resolve(typeexpr.Classify(typeArg), oracle, mode)
			for p := range importRefs(f, typeArg, opts.Info) {
				touched[p] = true
			}
		}
		c.Replace(emit.GoExpr(emit.Emit(members, mode), qualifier))
		res.Rewrites++
		return true
	})

	if res.Rewrites == 0 {
		return res, nil
	}
	dropUnusedImports(fset, f, touched, opts.Info)

	src, err := Format(fset, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", res.Name, err)
	}
	res.Source = src
	return res, nil
}

// dropUnusedImports deletes the imports among paths that f no longer
// refers to. Blank and dot imports are kept.
func dropUnusedImports(fset *token.FileSet, f *ast.File, paths map[string]bool, info *types.Info) {
	used := importRefs(f, f, info)
	for _, p := range slices.Sorted(maps.Keys(paths)) {
		spec := importSpec(f, p)
		if spec == nil || used[p] {
			continue
		}
		name := ""
		if spec.Name != nil {
			if spec.Name.Name == "_" || spec.Name.Name == "." {
				continue
			}
			name = spec.Name.Name
		}
		astutil.DeleteNamedImport(fset, f, name, p)
	}
}

// importRefs returns the import paths that qualified identifiers below n
// refer to.
func importRefs(f *ast.File, n ast.Node, info *types.Info) map[string]bool {
	refs := make(map[string]bool)
	ast.Inspect(n, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if x, ok := sel.X.(*ast.Ident); ok {
			if p, ok := importOf(f, x, info); ok {
				refs[p] = true
			}
		}
		return true
	})
	return refs
}

// importOf reports the import path the qualifier id denotes.
func importOf(f *ast.File, id *ast.Ident, info *types.Info) (string, bool) {
	if info != nil {
		if obj := info.Uses[id]; obj != nil {
			pn, ok := obj.(*types.PkgName)
			if !ok {
				return "", false
			}
			return pn.Imported().Path(), true
		}
	}
	if id.Obj != nil {
		// Declared in this file.
		return "", false
	}
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if name, ok := ImportName(f, p); ok && name != "" && name == id.Name {
			return p, true
		}
	}
	return "", false
}

// Format renders f as gofmt-formatted source.
func Format(fset *token.FileSet, f *ast.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, f); err != nil {
		return nil, fmt.Errorf("formatting: %w", err)
	}
	return buf.Bytes(), nil
}

// Unit is a set of files rewritten together, typically one package.
type Unit struct {
	Fset  *token.FileSet
	Files []*ast.File

	// Oracle returns the oracle used for the call sites of one file.
	Oracle func(f *ast.File) resolver.Oracle
}

// Package rewrites every file of u concurrently, at most limit at a time
// (limit <= 0 means no limit). Results are in file order. The oracles must
// be safe for concurrent use.
func Package(ctx context.Context, u Unit, opts Options, limit int) ([]*FileResult, error) {
	results := make([]*FileResult, len(u.Files))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, f := range u.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := File(u.Fset, f, u.Oracle(f), opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rewriting package: %w", err)
	}
	return results, nil
}

// Count returns the number of call sites replaced across results.
func Count(results []*FileResult) int {
	n := 0
	for _, r := range results {
		if r != nil {
			n += r.Rewrites
		}
	}
	return n
}
