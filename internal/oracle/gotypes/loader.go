package gotypes

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// LoadOptions controls package loading.
type LoadOptions struct {
	// Dir is the working directory for the go command. Empty means the
	// current directory.
	Dir string

	// BuildTags are passed as -tags.
	BuildTags []string

	// Env overrides the environment of the go command. Nil means os.Environ().
	Env []string
}

// LoadMode is the go/packages mode the oracle and the rewriter need.
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedSyntax |
	packages.NeedImports

// ListMode is the go/packages mode of List. Dependencies come with their
// files and modules so that callers can fingerprint them.
const ListMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedModule

// List lists the packages matching patterns with their Go files, without
// parsing or type-checking them.
func List(ctx context.Context, opts LoadOptions, patterns ...string) ([]*packages.Package, error) {
	pkgs, err := packages.Load(opts.config(ctx, ListMode), defaultPatterns(patterns)...)
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}
	var errs []string
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors:\n  %s", strings.Join(errs, "\n  "))
	}
	return pkgs, nil
}

// Deps returns the transitive imports of pkg ordered by import path.
func Deps(pkg *packages.Package) []*packages.Package {
	seen := make(map[string]*packages.Package)
	var visit func(p *packages.Package)
	visit = func(p *packages.Package) {
		for _, imp := range p.Imports {
			if _, ok := seen[imp.PkgPath]; ok {
				continue
			}
			seen[imp.PkgPath] = imp
			visit(imp)
		}
	}
	visit(pkg)

	deps := make([]*packages.Package, 0, len(seen))
	for _, dep := range seen {
		deps = append(deps, dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].PkgPath < deps[j].PkgPath })
	return deps
}

func defaultPatterns(patterns []string) []string {
	if len(patterns) == 0 {
		return []string{"."}
	}
	return patterns
}

func (opts LoadOptions) config(ctx context.Context, mode packages.LoadMode) *packages.Config {
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	cfg := &packages.Config{
		Context: ctx,
		Mode:    mode,
		Dir:     opts.Dir,
		Env:     env,
	}
	if len(opts.BuildTags) > 0 {
		cfg.BuildFlags = append(cfg.BuildFlags, "-tags="+strings.Join(opts.BuildTags, ","))
	}
	return cfg
}

// Load loads the packages matching patterns with syntax and type
// information.
//
// Type errors are tolerated: a file that still contains keysof calls with
// union or intersection type arguments does not type-check until it has
// been rewritten, but everything else in the package still gets types.
// Listing and parse errors are fatal.
func Load(ctx context.Context, opts LoadOptions, patterns ...string) ([]*packages.Package, error) {
	pkgs, err := packages.Load(opts.config(ctx, LoadMode), defaultPatterns(patterns)...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	var errs []string
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			if e.Kind == packages.TypeError {
				continue
			}
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
		if pkg.Types == nil {
			errs = append(errs, fmt.Sprintf("%s: no type information", pkg.PkgPath))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors:\n  %s", strings.Join(errs, "\n  "))
	}
	return pkgs, nil
}
