// Package gotypes answers keysof member queries from go/types information.
//
// Structs contribute their fields in declaration order followed by the
// fields promoted from embedded structs (shallower names win), then their
// methods. Interfaces contribute their methods, explicitly declared ones
// first, then those of embedded interfaces in embedding order. Methods of
// one type are ordered by source position.
package gotypes

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"sort"
	"sync"

	"github.com/funvibe/keysof/internal/resolver"
	"github.com/funvibe/keysof/internal/typeexpr"
	"golang.org/x/tools/go/packages"
)

// Options selects which members are reported.
type Options struct {
	// Unexported includes unexported fields and methods.
	Unexported bool

	// Promoted includes fields and methods promoted from embedded fields.
	Promoted bool

	// PointerMethods includes methods declared on *T when T is referenced.
	PointerMethods bool
}

// DefaultOptions reports exported members, promoted members included,
// from the method set of *T.
func DefaultOptions() Options {
	return Options{Promoted: true, PointerMethods: true}
}

// Oracle is a resolver.Oracle over one type-checked package. It is safe for
// concurrent use.
type Oracle struct {
	fset  *token.FileSet
	pkg   *types.Package
	info  *types.Info
	files []*ast.File
	opts  Options

	mu       sync.Mutex
	members  map[types.Type][]resolver.Member
	warnings []string
	warned   map[string]bool
}

// New creates an Oracle for a package loaded with LoadMode.
func New(pkg *packages.Package, opts Options) *Oracle {
	return NewFromTypes(pkg.Fset, pkg.Types, pkg.TypesInfo, pkg.Syntax, opts)
}

// NewFromTypes creates an Oracle from raw go/types results. info and
// files may be nil; references are then evaluated in package scope only.
func NewFromTypes(fset *token.FileSet, pkg *types.Package, info *types.Info, files []*ast.File, opts Options) *Oracle {
	return &Oracle{
		fset:    fset,
		pkg:     pkg,
		info:    info,
		files:   files,
		opts:    opts,
		members: make(map[types.Type][]resolver.Member),
		warned:  make(map[string]bool),
	}
}

// Package returns the package the oracle answers for.
func (o *Oracle) Package() *types.Package {
	return o.pkg
}

// Warnings returns the references that could not be resolved, once each.
func (o *Oracle) Warnings() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.warnings...)
}

// InFile returns a view of the oracle that evaluates references at their
// own position inside f, so that f's imports are in scope.
func (o *Oracle) InFile(f *ast.File) resolver.Oracle {
	return &fileOracle{Oracle: o, file: f}
}

// TypeOf resolves a Reference. Unions and intersections are not Go types
// and are declined.
func (o *Oracle) TypeOf(expr typeexpr.Expr) (resolver.Type, bool) {
	ref, ok := expr.(*typeexpr.Reference)
	if !ok {
		return nil, false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resolveLocked(ref, token.NoPos)
}

// PropertiesOf returns the members of a type returned by TypeOf.
func (o *Oracle) PropertiesOf(t resolver.Type) []resolver.Member {
	typ, ok := t.(types.Type)
	if !ok || typ == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if cached, ok := o.members[typ]; ok {
		return cached
	}
	members := o.collect(typ)
	o.members[typ] = members
	return members
}

type fileOracle struct {
	*Oracle
	file *ast.File
}

func (fo *fileOracle) TypeOf(expr typeexpr.Expr) (resolver.Type, bool) {
	ref, ok := expr.(*typeexpr.Reference)
	if !ok {
		return nil, false
	}
	pos := ref.Pos()
	if pos < fo.file.FileStart || pos > fo.file.FileEnd {
		pos = token.NoPos
	}
	fo.mu.Lock()
	defer fo.mu.Unlock()
	return fo.resolveLocked(ref, pos)
}

func (o *Oracle) resolveLocked(ref *typeexpr.Reference, pos token.Pos) (resolver.Type, bool) {
	if ref.Node != nil && o.info != nil {
		if tv, ok := o.info.Types[ref.Node]; ok && tv.IsType() && valid(tv.Type) {
			return tv.Type, true
		}
	}
	if pos.IsValid() {
		if t, err := o.eval(pos, ref.Text); err == nil {
			return t, true
		}
	}
	// Try every file scope so imports of some file can qualify the name,
	// then the bare package scope.
	for _, f := range o.files {
		if t, err := o.eval(f.Name.Pos(), ref.Text); err == nil {
			return t, true
		}
	}
	t, err := o.eval(token.NoPos, ref.Text)
	if err == nil {
		return t, true
	}
	if !o.warned[ref.Text] {
		o.warned[ref.Text] = true
		o.warnings = append(o.warnings, fmt.Sprintf("cannot resolve type %s: %v", ref.Text, err))
	}
	return nil, false
}

func (o *Oracle) eval(pos token.Pos, text string) (types.Type, error) {
	tv, err := types.Eval(o.fset, o.pkg, pos, text)
	if err != nil {
		return nil, err
	}
	if !tv.IsType() || !valid(tv.Type) {
		return nil, fmt.Errorf("%s is not a type", text)
	}
	return tv.Type, nil
}

func valid(t types.Type) bool {
	return t != nil && t != types.Typ[types.Invalid]
}

func (o *Oracle) qualifier(p *types.Package) string {
	if p == o.pkg {
		return ""
	}
	return p.Name()
}

func (o *Oracle) visible(obj types.Object) bool {
	return o.opts.Unexported || obj.Exported()
}

// collect lists the members of t: fields first, then methods.
func (o *Oracle) collect(t types.Type) []resolver.Member {
	t = types.Unalias(t)
	if ptr, ok := t.(*types.Pointer); ok {
		t = types.Unalias(ptr.Elem())
	}

	seen := make(map[string]bool)
	var out []resolver.Member
	add := func(m resolver.Member) {
		if seen[m.Name] {
			return
		}
		seen[m.Name] = true
		out = append(out, m)
	}

	switch u := t.Underlying().(type) {
	case *types.Struct:
		for _, f := range o.structFields(u) {
			add(resolver.Member{Name: f.Name()})
		}
	case *types.Interface:
		for _, fn := range o.interfaceMethods(u) {
			add(o.methodMember(fn))
		}
		return out
	}

	for _, fn := range o.concreteMethods(t) {
		add(o.methodMember(fn))
	}
	return out
}

// structFields returns own fields, then promoted ones breadth-first.
func (o *Oracle) structFields(st *types.Struct) []*types.Var {
	var out []*types.Var
	seen := make(map[string]bool)
	visited := make(map[*types.Struct]bool)
	level := []*types.Struct{st}
	for len(level) > 0 {
		var next []*types.Struct
		for _, s := range level {
			if visited[s] {
				continue
			}
			visited[s] = true
			for i := 0; i < s.NumFields(); i++ {
				f := s.Field(i)
				if f.Embedded() && o.opts.Promoted {
					if es := embeddedStruct(f.Type()); es != nil {
						next = append(next, es)
					}
				}
				if seen[f.Name()] || !o.visible(f) {
					continue
				}
				seen[f.Name()] = true
				out = append(out, f)
			}
		}
		level = next
	}
	return out
}

func embeddedStruct(t types.Type) *types.Struct {
	t = types.Unalias(t)
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	st, _ := t.Underlying().(*types.Struct)
	return st
}

// interfaceMethods returns explicit methods by position, then the methods
// of embedded interfaces in embedding order.
func (o *Oracle) interfaceMethods(iface *types.Interface) []*types.Func {
	var out []*types.Func
	seen := make(map[string]bool)
	var walk func(it *types.Interface)
	walk = func(it *types.Interface) {
		explicit := make([]*types.Func, 0, it.NumExplicitMethods())
		for i := 0; i < it.NumExplicitMethods(); i++ {
			explicit = append(explicit, it.ExplicitMethod(i))
		}
		o.sortByPos(explicit)
		for _, fn := range explicit {
			if seen[fn.Name()] || !o.visible(fn) {
				continue
			}
			seen[fn.Name()] = true
			out = append(out, fn)
		}
		for i := 0; i < it.NumEmbeddeds(); i++ {
			if emb, ok := it.EmbeddedType(i).Underlying().(*types.Interface); ok {
				walk(emb)
			}
		}
	}
	walk(iface)
	return out
}

// concreteMethods returns the declared methods of a named type, then the
// promoted ones ordered by embedding path.
func (o *Oracle) concreteMethods(t types.Type) []*types.Func {
	named, _ := t.(*types.Named)
	var own []*types.Func
	if named != nil {
		for i := 0; i < named.NumMethods(); i++ {
			fn := named.Method(i)
			if !o.visible(fn) {
				continue
			}
			if !o.opts.PointerMethods && hasPointerReceiver(fn) {
				continue
			}
			own = append(own, fn)
		}
		o.sortByPos(own)
	}
	if !o.opts.Promoted {
		return own
	}

	recv := t
	if o.opts.PointerMethods {
		recv = types.NewPointer(t)
	}
	mset := types.NewMethodSet(recv)
	var promoted []*types.Selection
	for i := 0; i < mset.Len(); i++ {
		sel := mset.At(i)
		if len(sel.Index()) > 1 && o.visible(sel.Obj()) {
			promoted = append(promoted, sel)
		}
	}
	sort.SliceStable(promoted, func(i, j int) bool {
		return lessPath(promoted[i].Index(), promoted[j].Index())
	})
	for _, sel := range promoted {
		if fn, ok := sel.Obj().(*types.Func); ok {
			own = append(own, fn)
		}
	}
	return own
}

func hasPointerReceiver(fn *types.Func) bool {
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return false
	}
	_, ptr := sig.Recv().Type().(*types.Pointer)
	return ptr
}

func lessPath(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func (o *Oracle) sortByPos(fns []*types.Func) {
	sort.SliceStable(fns, func(i, j int) bool {
		pi, pj := o.fset.Position(fns[i].Pos()), o.fset.Position(fns[j].Pos())
		if pi.Filename != pj.Filename {
			return pi.Filename < pj.Filename
		}
		return pi.Offset < pj.Offset
	})
}

// methodMember converts a method to a resolver member. Go methods are
// never optional.
func (o *Oracle) methodMember(fn *types.Func) resolver.Member {
	m := resolver.Member{Name: fn.Name(), Method: true}
	sig, ok := fn.Type().(*types.Signature)
	if !ok {
		return m
	}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		pt := p.Type()
		text := types.TypeString(pt, o.qualifier)
		// For variadic, the last param is a slice; show the element type.
		if sig.Variadic() && i == params.Len()-1 {
			if slice, ok := pt.(*types.Slice); ok {
				text = "..." + types.TypeString(slice.Elem(), o.qualifier)
			}
		}
		m.Params = append(m.Params, resolver.Param{
			Name: p.Name(),
			Type: resolver.Tag(text, int(KindOf(pt))),
		})
	}

	results := sig.Results()
	switch results.Len() {
	case 0:
	case 1:
		rt := results.At(0).Type()
		m.Result = resolver.Tag(types.TypeString(rt, o.qualifier), int(KindOf(rt)))
	default:
		m.Result = resolver.Tag(types.TypeString(results, o.qualifier), int(KindTuple))
	}
	return m
}
