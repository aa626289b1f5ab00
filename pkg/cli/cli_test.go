package cli

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/funvibe/keysof/internal/cache"
	"github.com/funvibe/keysof/internal/config"
	"golang.org/x/tools/go/packages"
)

const testSchema = `
types:
  Reader:
    - name: Read
      method: true
      params: [{name: p, type: "[]byte", kind: 6}]
      returns: {type: "(int, error)", kind: 14}
    - name: Timeout
  Closer:
    - name: Close
      method: true
      returns: {type: error, kind: 9}
    - name: Timeout
`

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// run executes the command line in a fresh command tree.
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd(&out, &errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

// projectDir creates an empty working directory with a schema file.
func projectDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	writeTestFile(t, filepath.Join(dir, "types.yaml"), testSchema)
	return dir
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "keysof "+Version) {
		t.Errorf("version output = %q", out)
	}
}

func TestResolve_Schema(t *testing.T) {
	projectDir(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"json keys", []string{"Reader | Closer"}, `["Timeout"]`},
		{"intersection", []string{"interface{ Reader; Closer }"}, `["Read","Timeout","Close"]`},
		{"wildcard", []string{"any"}, `[]`},
		{"yaml", []string{"Reader & Closer", "--format", "yaml"}, "- Read\n- Timeout\n- Close"},
		{"go", []string{"Closer", "--format", "go"}, `[]string{"Close", "Timeout"}`},
		{"funs json", []string{"Closer", "--mode", "funs"},
			`[{"name":"Close","args":[],"returnType":{"name":"error","kind":9},"isOptional":false}]`},
		{"funs go", []string{"Closer", "--mode", "funs", "--format", "go"},
			`[]keysof.Fun{{Name: "Close", Args: []keysof.Val{}, ReturnType: &keysof.Type{Name: "error", Kind: 9}, IsOptional: false}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"resolve", "--schema", "types.yaml"}, tt.args...)
			out, _, err := run(t, args...)
			if err != nil {
				t.Fatal(err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("resolve %v =\n%s\nwant\n%s", tt.args, got, tt.want)
			}
		})
	}
}

func TestResolve_ConfigSchemas(t *testing.T) {
	dir := projectDir(t)
	writeTestFile(t, filepath.Join(dir, "keysof.yaml"), "schemas: [types.yaml]\n")
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	out, stderr, err := run(t, "resolve", "Reader", "-v")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out); got != `["Read","Timeout"]` {
		t.Errorf("resolve = %s", got)
	}
	if !strings.Contains(stderr, "[keysof] ") {
		t.Errorf("verbose log missing prefix: %q", stderr)
	}
}

func TestResolve_Proto(t *testing.T) {
	dir := projectDir(t)
	writeTestFile(t, filepath.Join(dir, "svc.proto"), `
syntax = "proto3";
package demo;
message Ping { string id = 1; string note = 2; }
message Pong { string id = 1; }
service Echo { rpc Say(Ping) returns (stream Pong); }
`)
	out, _, err := run(t, "resolve", "Ping | Pong", "--proto", "svc.proto")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out); got != `["id"]` {
		t.Errorf("resolve = %s", got)
	}

	out, _, err = run(t, "resolve", "demo.Echo", "--proto", "svc.proto", "--mode", "funs")
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"name":"Say","args":[{"name":"request","type":{"name":"demo.Ping","kind":11}}],` +
		`"returnType":{"name":"stream demo.Pong","kind":11},"isOptional":false}]`
	if got := strings.TrimSpace(out); got != want {
		t.Errorf("resolve =\n%s\nwant\n%s", got, want)
	}
}

func TestResolve_Errors(t *testing.T) {
	projectDir(t)
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"mode", []string{"resolve", "Reader", "--schema", "types.yaml", "--mode", "all"}, "invalid --mode"},
		{"format", []string{"resolve", "Reader", "--schema", "types.yaml", "--format", "xml"}, "invalid --format"},
		{"syntax", []string{"resolve", "Reader |", "--schema", "types.yaml"}, "parsing type expression"},
		{"missing schema", []string{"resolve", "Reader", "--schema", "nope.yaml"}, "reading schema"},
		{"exclusive", []string{"resolve", "Reader", "--schema", "types.yaml", "--pkg", "."}, "none of the others"},
		{"no args", []string{"resolve"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	dir := projectDir(t)
	cfgPath := filepath.Join(dir, "keysof.yaml")
	writeTestFile(t, cfgPath, "schemas: [types.yaml]\nparallelism: 3\ncache:\n  enabled: false\n")

	out, _, err := run(t, "check", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Runtime: github.com/funvibe/keysof/pkg/keysof",
		"Parallelism: 3",
		"Cache: disabled",
		"Schemas: 1 file(s), 2 type(s)",
		"All checks passed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}

	writeTestFile(t, cfgPath, "parallelism: -2\n")
	if _, _, err := run(t, "check", "--config", cfgPath); err == nil || !strings.Contains(err.Error(), "parallelism") {
		t.Errorf("check error = %v", err)
	}
}

func TestCheck_CachedPackages(t *testing.T) {
	dir := projectDir(t)
	out, _, err := run(t, "check")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "(0 package(s))") {
		t.Errorf("missing empty cache count in\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, ".keysof")); !os.IsNotExist(err) {
		t.Errorf("check must not create the cache: %v", err)
	}

	ctx := context.Background()
	c, err := cache.Open(ctx, filepath.Join(dir, ".keysof"))
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"k1", "k2"} {
		if err := c.Store(ctx, key, []cache.Entry{{File: "a.go", Source: []byte{}}}); err != nil {
			t.Fatal(err)
		}
	}
	c.Close()

	out, _, err = run(t, "check")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "(2 package(s))") {
		t.Errorf("missing cache count in\n%s", out)
	}
}

func TestPackageKey_Dependencies(t *testing.T) {
	dir := t.TempDir()
	own := filepath.Join(dir, "app.go")
	local := filepath.Join(dir, "shapes", "shapes.go")
	writeTestFile(t, own, "package app\n")
	writeTestFile(t, local, "package shapes\n\ntype Point struct{ X int }\n")

	shapes := &packages.Package{PkgPath: "example.com/app/shapes", GoFiles: []string{local}}
	yaml := &packages.Package{
		PkgPath: "gopkg.in/yaml.v3",
		GoFiles: []string{filepath.Join(dir, "missing.go")},
		Module:  &packages.Module{Path: "gopkg.in/yaml.v3", Version: "v3.0.1"},
	}
	pkg := &packages.Package{
		PkgPath: "example.com/app",
		GoFiles: []string{own},
		Imports: map[string]*packages.Package{shapes.PkgPath: shapes, yaml.PkgPath: yaml},
	}
	cfg := config.Default(dir)

	key := func() string {
		t.Helper()
		k, err := packageKey(pkg, cfg, make(depPrints))
		if err != nil {
			t.Fatal(err)
		}
		return k
	}
	base := key()
	if key() != base {
		t.Fatal("key is not deterministic")
	}

	writeTestFile(t, local, "package shapes\n\ntype Point struct{ X, Y int }\n")
	changed := key()
	if changed == base {
		t.Error("editing an imported package must change the key")
	}

	yaml.Module.Version = "v3.0.2"
	if key() == changed {
		t.Error("upgrading a module must change the key")
	}
}

func TestCacheClean(t *testing.T) {
	dir := projectDir(t)
	cacheDir := filepath.Join(dir, ".keysof")
	writeTestFile(t, filepath.Join(cacheDir, "cache.db"), "x")

	out, _, err := run(t, "cache", "clean")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Removed") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(cacheDir); !os.IsNotExist(err) {
		t.Errorf("cache dir still exists: %v", err)
	}
}

const runtimeSrc = `package rt

func Keys[T any]() []string { return nil }
func Funs[T any]() []Fun    { return nil }

type Fun struct {
	Name       string
	Args       []Val
	ReturnType *Type
	IsOptional bool
}

type Val struct {
	Name string
	Type *Type
}

type Type struct {
	Name string
	Kind int
}
`

const shapesSrc = `package shapes

type Point struct{ X, Y int }
`

const appSrc = `package app

import (
	"example.com/app/rt"
	"example.com/app/shapes"
)

type A struct {
	Foo int
	Bar string
}

type B struct{ Bar string }

func (B) Close() error { return nil }

func Names() []string { return rt.Keys[A | B]() }

func All() []string { return rt.Keys[interface {
	A
	B
}]() }

func Sigs() []rt.Fun { return rt.Funs[B]() }

func Coords() []string { return rt.Keys[shapes.Point]() }
`

// The rewrite command drives the go command through go/packages.
func TestRewrite_Module(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping go/packages test in short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	t.Setenv("GOWORK", "off")
	t.Setenv("GOFLAGS", "")

	dir := t.TempDir()
	t.Chdir(dir)
	writeTestFile(t, filepath.Join(dir, "go.mod"), "module example.com/app\n\ngo 1.22\n")
	writeTestFile(t, filepath.Join(dir, "keysof.yaml"), "runtime: example.com/app/rt\ncache:\n  dir: .cache\n")
	writeTestFile(t, filepath.Join(dir, "rt", "rt.go"), runtimeSrc)
	shapesFile := filepath.Join(dir, "shapes", "shapes.go")
	writeTestFile(t, shapesFile, shapesSrc)
	appFile := filepath.Join(dir, "app", "app.go")
	writeTestFile(t, appFile, appSrc)

	out, stderr, err := run(t, "rewrite", "./app", "-v")
	if err != nil {
		t.Fatalf("rewrite: %v\n%s", err, stderr)
	}
	for _, want := range []string{
		`return []string{"Bar"}`,
		`return []string{"Foo", "Bar", "Close"}`,
		`[]rt.Fun{{Name: "Close"`,
		`return []string{"X", "Y"}`,
		`"example.com/app/rt"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, ".cache", "cache.db")); err != nil {
		t.Errorf("cache not written: %v", err)
	}

	again, stderr, err := run(t, "rewrite", "./app", "-v")
	if err != nil {
		t.Fatal(err)
	}
	if again != out {
		t.Errorf("cached output differs:\n%s\nvs\n%s", again, out)
	}
	if !strings.Contains(stderr, "using cached rewrite") {
		t.Errorf("expected a cache hit, stderr:\n%s", stderr)
	}
	if strings.Contains(out, "example.com/app/shapes") {
		t.Errorf("type-only import kept:\n%s", out)
	}

	// Only the imported package changes.
	writeTestFile(t, shapesFile, "package shapes\n\ntype Point struct{ X, Y, Z int }\n")
	out, stderr, err = run(t, "rewrite", "./app", "-v")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(stderr, "using cached rewrite") {
		t.Errorf("stale cache hit after a dependency change:\n%s", stderr)
	}
	if !strings.Contains(out, `return []string{"X", "Y", "Z"}`) {
		t.Errorf("dependency change not reflected:\n%s", out)
	}

	outDir := filepath.Join(dir, "out")
	if _, _, err := run(t, "rewrite", "./app", "-o", outDir, "--no-cache"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "example.com", "app", "app", "app.go")); err != nil {
		t.Errorf("-o output missing: %v", err)
	}

	if _, _, err := run(t, "rewrite", "./app", "-w"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(appFile)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "rt.Keys") || !strings.Contains(string(data), `[]string{"Bar"}`) {
		t.Errorf("file not rewritten in place:\n%s", data)
	}
}
