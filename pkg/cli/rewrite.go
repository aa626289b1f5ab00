package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/funvibe/keysof/internal/cache"
	"github.com/funvibe/keysof/internal/config"
	"github.com/funvibe/keysof/internal/oracle/gotypes"
	"github.com/funvibe/keysof/internal/rewrite"
	"github.com/spf13/cobra"
	"golang.org/x/tools/go/packages"
)

type rewriteFlags struct {
	write   bool
	outDir  string
	noCache bool
}

func (a *app) newRewriteCmd() *cobra.Command {
	var flags rewriteFlags
	cmd := &cobra.Command{
		Use:   "rewrite [packages]",
		Short: "Replace keysof calls with literals",
		Long: `Rewrite loads the named packages (default ".") and replaces every
keysof.Keys[T]() and keysof.Funs[T]() call. Without -w or -o the rewritten
files are printed to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRewrite(cmd.Context(), args, flags)
		},
	}
	cmd.Flags().BoolVarP(&flags.write, "write", "w", false, "write rewritten files in place")
	cmd.Flags().StringVarP(&flags.outDir, "out", "o", "", "write every file of the rewritten packages below `dir`")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "ignore the rewrite cache")
	cmd.MarkFlagsMutuallyExclusive("write", "out")
	return cmd
}

// packageRewrite is the outcome for one package. Entries cover every Go
// file; unchanged files have an empty source.
type packageRewrite struct {
	pkg     *packages.Package
	entries []cache.Entry
	cached  bool
}

func (a *app) runRewrite(ctx context.Context, patterns []string, flags rewriteFlags) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	loadOpts := gotypes.LoadOptions{BuildTags: cfg.BuildTags}

	listed, err := gotypes.List(ctx, loadOpts, patterns...)
	if err != nil {
		return err
	}

	var store *cache.Cache
	if cfg.CacheEnabled() && !flags.noCache {
		store, err = cache.Open(ctx, cfg.CacheDir())
		if err != nil {
			a.log.Warnf("cache disabled: %v", err)
		} else {
			defer store.Close()
		}
	}

	results := make([]*packageRewrite, 0, len(listed))
	keys := make(map[string]string)
	prints := make(depPrints)
	var misses []string
	for _, pkg := range listed {
		if len(pkg.GoFiles) == 0 {
			continue
		}
		pr := &packageRewrite{pkg: pkg}
		results = append(results, pr)
		if store == nil {
			misses = append(misses, pkg.PkgPath)
			continue
		}
		key, err := packageKey(pkg, cfg, prints)
		if err != nil {
			return err
		}
		keys[pkg.PkgPath] = key
		entries, ok, err := store.Lookup(ctx, key)
		if err != nil {
			a.log.Warnf("%v", err)
		}
		if ok {
			a.log.Infof("%s: using cached rewrite", pkg.PkgPath)
			pr.entries = entries
			pr.cached = true
			continue
		}
		misses = append(misses, pkg.PkgPath)
	}

	if len(misses) > 0 {
		a.log.Infof("type-checking %d package(s)", len(misses))
		loaded, err := gotypes.Load(ctx, loadOpts, misses...)
		if err != nil {
			return err
		}
		byPath := make(map[string]*packages.Package, len(loaded))
		for _, pkg := range loaded {
			byPath[pkg.PkgPath] = pkg
		}
		for _, pr := range results {
			if pr.cached {
				continue
			}
			pkg, ok := byPath[pr.pkg.PkgPath]
			if !ok {
				return fmt.Errorf("%s: not loaded", pr.pkg.PkgPath)
			}
			entries, err := a.rewritePackage(ctx, pkg, cfg)
			if err != nil {
				return err
			}
			pr.entries = entries
			if key, ok := keys[pkg.PkgPath]; ok && store != nil {
				if err := store.Store(ctx, key, entries); err != nil {
					a.log.Warnf("%v", err)
				}
			}
		}
	}

	calls, files := 0, 0
	for _, pr := range results {
		for _, e := range pr.entries {
			calls += e.Rewrites
			if e.Rewrites > 0 {
				files++
			}
		}
		if err := a.output(pr, flags); err != nil {
			return err
		}
	}
	a.log.Infof("rewrote %d call(s) in %d file(s)", calls, files)
	return nil
}

func (a *app) rewritePackage(ctx context.Context, pkg *packages.Package, cfg *config.Config) ([]cache.Entry, error) {
	oracle := gotypes.New(pkg, oracleOptions(cfg))
	unit := rewrite.Unit{Fset: pkg.Fset, Files: pkg.Syntax, Oracle: oracle.InFile}
	opts := rewrite.Options{
		Runtime: cfg.Runtime,
		Info:    pkg.TypesInfo,
	}
	results, err := rewrite.Package(ctx, unit, opts, parallelism(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pkg.PkgPath, err)
	}

	entries := make([]cache.Entry, 0, len(results))
	for _, r := range results {
		for _, w := range r.Warnings {
			a.log.Warnf("%s", w)
		}
		src := r.Source
		if src == nil {
			src = []byte{}
		}
		entries = append(entries, cache.Entry{File: r.Name, Source: src, Rewrites: r.Rewrites})
	}
	for _, w := range oracle.Warnings() {
		a.log.Warnf("%s: %s", pkg.PkgPath, w)
	}
	a.log.Infof("%s: %d call(s) rewritten", pkg.PkgPath, rewrite.Count(results))
	return entries, nil
}

// packageKey hashes the package's own files, the fingerprints of every
// package it imports, directly or not, and the config.
func packageKey(pkg *packages.Package, cfg *config.Config, prints depPrints) (string, error) {
	inputs := make([]cache.Input, 0, len(pkg.GoFiles))
	for _, name := range pkg.GoFiles {
		data, err := os.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", name, err)
		}
		inputs = append(inputs, cache.Input{Name: name, Content: data})
	}
	for _, dep := range gotypes.Deps(pkg) {
		fp, err := prints.of(dep)
		if err != nil {
			return "", err
		}
		inputs = append(inputs, cache.Input{Name: "import " + dep.PkgPath, Content: fp})
	}
	return cache.Key(pkg.PkgPath, cfg.Fingerprint(), inputs), nil
}

// depPrints memoises dependency fingerprints by import path.
type depPrints map[string][]byte

// of identifies the state of dep: module@version for a versioned module,
// otherwise the names, sizes and modification times of its files.
func (d depPrints) of(dep *packages.Package) ([]byte, error) {
	if fp, ok := d[dep.PkgPath]; ok {
		return fp, nil
	}
	var b strings.Builder
	if m := dep.Module; m != nil && m.Replace == nil && m.Version != "" {
		b.WriteString(m.Path + "@" + m.Version)
	} else {
		for _, name := range dep.GoFiles {
			fi, err := os.Stat(name)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", name, err)
			}
			fmt.Fprintf(&b, "%s %d %d\n", name, fi.Size(), fi.ModTime().UnixNano())
		}
	}
	fp := []byte(b.String())
	d[dep.PkgPath] = fp
	return fp, nil
}

func (a *app) output(pr *packageRewrite, flags rewriteFlags) error {
	for _, e := range pr.entries {
		switch {
		case flags.write:
			if e.Rewrites == 0 {
				continue
			}
			if err := writeFile(e.File, e.Source); err != nil {
				return err
			}
			a.log.Infof("wrote %s", e.File)
		case flags.outDir != "":
			src := e.Source
			if e.Rewrites == 0 {
				data, err := os.ReadFile(e.File)
				if err != nil {
					return fmt.Errorf("reading %s: %w", e.File, err)
				}
				src = data
			}
			dst := filepath.Join(flags.outDir, outputPath(pr.pkg.PkgPath), filepath.Base(e.File))
			if err := writeFile(dst, src); err != nil {
				return err
			}
		default:
			if e.Rewrites == 0 {
				continue
			}
			fmt.Fprintf(a.stdout, "// %s\n%s", e.File, e.Source)
			if !strings.HasSuffix(string(e.Source), "\n") {
				fmt.Fprintln(a.stdout)
			}
		}
	}
	return nil
}

// outputPath maps an import path to a relative directory.
func outputPath(pkgPath string) string {
	return filepath.FromSlash(strings.TrimPrefix(pkgPath, "/"))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
