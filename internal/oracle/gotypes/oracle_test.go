package gotypes

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"reflect"
	"testing"

	"github.com/funvibe/keysof/internal/resolver"
	"github.com/funvibe/keysof/internal/typeexpr"
)

const testSrc = `package sample

type Base struct {
	ID   int
	note string
}

func (b *Base) Touch() {}

type User struct {
	Base
	Name  string
	Email string
	ID    string
}

func (u User) Greet(prefix string, n int) string { return prefix }
func (u *User) Save() error                       { return nil }
func (u User) hidden()                            {}
func (u User) Log(format string, args ...any)     {}
func (u User) Pair() (int, error)                 { return 0, nil }

type Reader interface {
	Read(p []byte) (int, error)
}

type ReadCloser interface {
	Close() error
	Reader
}

type Alias = User

type Number int
`

func checkSource(t *testing.T, src string) (*token.FileSet, *types.Package, *types.Info, []*ast.File) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "sample.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	info := &types.Info{
		Types:  make(map[ast.Expr]types.TypeAndValue),
		Defs:   make(map[*ast.Ident]types.Object),
		Uses:   make(map[*ast.Ident]types.Object),
		Scopes: make(map[ast.Node]*types.Scope),
	}
	conf := types.Config{}
	pkg, err := conf.Check("example.com/sample", fset, []*ast.File{f}, info)
	if err != nil {
		t.Fatalf("type check: %v", err)
	}
	return fset, pkg, info, []*ast.File{f}
}

func newTestOracle(t *testing.T, opts Options) *Oracle {
	t.Helper()
	fset, pkg, info, files := checkSource(t, testSrc)
	return NewFromTypes(fset, pkg, info, files, opts)
}

func names(members []resolver.Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Name)
	}
	return out
}

func TestTypeOf_DeclinesComposites(t *testing.T) {
	o := newTestOracle(t, DefaultOptions())
	for _, expr := range []typeexpr.Expr{
		typeexpr.NewUnion(typeexpr.Ref("User"), typeexpr.Ref("Base")),
		typeexpr.NewIntersection(typeexpr.Ref("User"), typeexpr.Ref("Base")),
		typeexpr.Any(),
	} {
		if _, ok := o.TypeOf(expr); ok {
			t.Errorf("TypeOf(%s) should decline", expr)
		}
	}
}

func TestTypeOf_UnknownIsWarning(t *testing.T) {
	o := newTestOracle(t, DefaultOptions())
	if _, ok := o.TypeOf(typeexpr.Ref("Missing")); ok {
		t.Fatal("expected Missing to be unresolved")
	}
	o.TypeOf(typeexpr.Ref("Missing"))
	if w := o.Warnings(); len(w) != 1 {
		t.Errorf("Warnings = %v; want exactly one", w)
	}
}

func TestPropertiesOf(t *testing.T) {
	tests := []struct {
		name string
		expr string
		opts Options
		want []string
	}{
		{"struct default", "User", DefaultOptions(), []string{"Base", "Name", "Email", "ID", "Greet", "Save", "Log", "Pair", "Touch"}},
		{"pointer", "*User", DefaultOptions(), []string{"Base", "Name", "Email", "ID", "Greet", "Save", "Log", "Pair", "Touch"}},
		{"alias", "Alias", DefaultOptions(), []string{"Base", "Name", "Email", "ID", "Greet", "Save", "Log", "Pair", "Touch"}},
		{"no promotion", "User", Options{PointerMethods: true}, []string{"Base", "Name", "Email", "ID", "Greet", "Save", "Log", "Pair"}},
		{"value methods", "User", Options{Promoted: true}, []string{"Base", "Name", "Email", "ID", "Greet", "Log", "Pair"}},
		{"unexported", "User", Options{Promoted: true, PointerMethods: true, Unexported: true},
			[]string{"Base", "Name", "Email", "ID", "note", "Greet", "Save", "hidden", "Log", "Pair", "Touch"}},
		{"interface", "ReadCloser", DefaultOptions(), []string{"Close", "Read"}},
		{"basic", "Number", DefaultOptions(), []string{}},
		{"anonymous struct", "struct{ A int; b bool }", DefaultOptions(), []string{"A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fset, pkg, info, files := checkSource(t, testSrc)
			o := NewFromTypes(fset, pkg, info, files, tt.opts)
			expr, err := typeexpr.Parse(tt.expr)
			if err != nil {
				t.Fatal(err)
			}
			typ, ok := o.TypeOf(expr)
			if !ok {
				t.Fatalf("TypeOf(%q) failed: %v", tt.expr, o.Warnings())
			}
			got := names(o.PropertiesOf(typ))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PropertiesOf(%q) = %v; want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestPropertiesOf_Signatures(t *testing.T) {
	o := newTestOracle(t, DefaultOptions())
	typ, ok := o.TypeOf(typeexpr.Ref("User"))
	if !ok {
		t.Fatal("User not resolved")
	}
	byName := make(map[string]resolver.Member)
	for _, m := range o.PropertiesOf(typ) {
		byName[m.Name] = m
	}

	if byName["Name"].Method {
		t.Error("field Name reported as method")
	}

	greet := byName["Greet"]
	wantParams := []resolver.Param{
		{Name: "prefix", Type: resolver.Tag("string", int(KindBasic))},
		{Name: "n", Type: resolver.Tag("int", int(KindBasic))},
	}
	if !greet.Method || !reflect.DeepEqual(greet.Params, wantParams) {
		t.Errorf("Greet = %+v", greet)
	}
	if greet.Result == nil || greet.Result.Text != "string" {
		t.Errorf("Greet result = %+v", greet.Result)
	}
	if greet.Optional {
		t.Error("Go methods are never optional")
	}

	if save := byName["Save"]; save.Result == nil || save.Result.Kind != int(KindError) {
		t.Errorf("Save result = %+v; want error kind", save.Result)
	}

	logm := byName["Log"]
	if len(logm.Params) != 2 || logm.Params[1].Type.Text != "...any" {
		t.Errorf("Log params = %+v", logm.Params)
	}
	if logm.Result != nil {
		t.Errorf("Log result = %+v; want none", logm.Result)
	}

	pair := byName["Pair"]
	if pair.Result == nil || pair.Result.Kind != int(KindTuple) || pair.Result.Text != "(int, error)" {
		t.Errorf("Pair result = %+v", pair.Result)
	}
}

func TestPropertiesOf_Cached(t *testing.T) {
	o := newTestOracle(t, DefaultOptions())
	typ, _ := o.TypeOf(typeexpr.Ref("User"))
	a := o.PropertiesOf(typ)
	b := o.PropertiesOf(typ)
	if len(a) == 0 || &a[0] != &b[0] {
		t.Error("expected memoized members")
	}
	if o.PropertiesOf("not a type") != nil {
		t.Error("foreign values have no members")
	}
}

func TestResolve_WithGoTypes(t *testing.T) {
	o := newTestOracle(t, DefaultOptions())
	tests := []struct {
		expr string
		mode resolver.Mode
		want []string
	}{
		{"User", resolver.NamesOnly, []string{"Base", "Name", "Email", "ID", "Greet", "Save", "Log", "Pair", "Touch"}},
		{"User | Base", resolver.NamesOnly, []string{"ID", "Touch"}},
		{"Reader & ReadCloser", resolver.NamesOnly, []string{"Read", "Close"}},
		{"Base | ReadCloser", resolver.NamesOnly, []string{}},
		{"User | any", resolver.NamesOnly, []string{"Base", "Name", "Email", "ID", "Greet", "Save", "Log", "Pair", "Touch"}},
		{"User", resolver.Signatures, []string{"Greet", "Save", "Log", "Pair", "Touch"}},
		{"Base | User", resolver.Signatures, []string{"Touch"}},
	}
	for _, tt := range tests {
		expr, err := typeexpr.Parse(tt.expr)
		if err != nil {
			t.Fatal(err)
		}
		got := names(resolver.Resolve(expr, o, tt.mode))
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Resolve(%q, %s) = %v; want %v", tt.expr, tt.mode, got, tt.want)
		}
	}
}

func TestInFile(t *testing.T) {
	fset, pkg, info, files := checkSource(t, testSrc)
	o := NewFromTypes(fset, pkg, info, files, DefaultOptions())
	view := o.InFile(files[0])

	// A reference whose node sits inside the file evaluates at that position.
	var node ast.Expr
	ast.Inspect(files[0], func(n ast.Node) bool {
		if ts, ok := n.(*ast.TypeSpec); ok && ts.Name.Name == "Alias" {
			node = ts.Type
			return false
		}
		return true
	})
	ref := typeexpr.Classify(node)
	typ, ok := view.TypeOf(ref)
	if !ok {
		t.Fatal("in-file reference not resolved")
	}
	if got := names(view.PropertiesOf(typ)); len(got) == 0 || got[0] != "Base" {
		t.Errorf("members = %v", got)
	}
}

func TestKindOf(t *testing.T) {
	fset, pkg, _, _ := checkSource(t, testSrc)
	tests := []struct {
		expr string
		want TypeKind
	}{
		{"int", KindBasic},
		{"any", KindBasic},
		{"error", KindError},
		{"User", KindStruct},
		{"Reader", KindInterface},
		{"Number", KindNamed},
		{"*User", KindPtr},
		{"[]User", KindSlice},
		{"[]byte", KindByteSlice},
		{"[3]int", KindArray},
		{"map[string]int", KindMap},
		{"func()", KindFunc},
		{"chan int", KindChan},
		{"Alias", KindStruct},
	}
	for _, tt := range tests {
		tv, err := types.Eval(fset, pkg, token.NoPos, tt.expr)
		if err != nil {
			t.Fatalf("Eval(%q): %v", tt.expr, err)
		}
		if got := KindOf(tv.Type); got != tt.want {
			t.Errorf("KindOf(%q) = %s; want %s", tt.expr, got, tt.want)
		}
	}
}
