// Package config loads keysof.yaml, the project configuration of the keysof
// rewriter.
//
// The file is optional. When present it is found by walking up from the
// working directory, so a single keysof.yaml at the module root serves every
// package below it. Relative paths in the file are resolved against the
// directory that contains it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRuntime is the import path of the keysof entry points.
const DefaultRuntime = "github.com/funvibe/keysof/pkg/keysof"

// DefaultCacheDir is the cache directory, relative to the config directory.
const DefaultCacheDir = ".keysof"

// FileNames are the recognized config file names, in lookup order.
var FileNames = []string{"keysof.yaml", "keysof.yml"}

// Config represents keysof.yaml.
type Config struct {
	// Runtime is the import path whose Keys and Funs calls are rewritten.
	Runtime string `yaml:"runtime,omitempty"`

	// Unexported includes unexported fields and methods in results.
	Unexported bool `yaml:"unexported,omitempty"`

	// Promoted includes members promoted from embedded fields.
	// Defaults to true.
	Promoted *bool `yaml:"promoted,omitempty"`

	// PointerMethods includes methods with pointer receivers when a value
	// type is referenced. Defaults to true.
	PointerMethods *bool `yaml:"pointer_methods,omitempty"`

	// BuildTags are passed to the package loader.
	BuildTags []string `yaml:"build_tags,omitempty"`

	// Schemas lists YAML type declaration files for `keysof resolve --schema`.
	Schemas []string `yaml:"schemas,omitempty"`

	// Protos lists .proto files for `keysof resolve --proto`.
	Protos []string `yaml:"protos,omitempty"`

	// ImportPaths are the directories searched for proto imports.
	ImportPaths []string `yaml:"import_paths,omitempty"`

	// Cache configures the rewrite cache.
	Cache CacheConfig `yaml:"cache,omitempty"`

	// Parallelism bounds concurrent file rewrites. Zero means one per CPU.
	Parallelism int `yaml:"parallelism,omitempty"`

	dir  string
	data []byte
}

// CacheConfig configures the rewrite cache.
type CacheConfig struct {
	// Enabled turns the cache on. Defaults to true.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Dir holds cache.db. Defaults to .keysof.
	Dir string `yaml:"dir,omitempty"`
}

// Default returns the configuration used when no keysof.yaml exists.
func Default(dir string) *Config {
	cfg := &Config{dir: dir}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a keysof.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses keysof.yaml content from bytes. The path is used for
// error messages and as the base of relative paths.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	cfg.data = normalize(data)
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for keysof.yaml starting from dir and walking up to
// parent directories. It returns "" and a nil error when there is none.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Discover loads the config named by path, or the one found above dir when
// path is empty, or the defaults when there is none.
func Discover(path, dir string) (*Config, error) {
	if path == "" {
		found, err := FindConfig(dir)
		if err != nil {
			return nil, err
		}
		if found == "" {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return nil, fmt.Errorf("resolving directory: %w", err)
			}
			return Default(abs), nil
		}
		path = found
	}
	return LoadConfig(path)
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if c.Runtime != "" {
		if strings.ContainsAny(c.Runtime, " \t\\") || strings.HasPrefix(c.Runtime, "/") || strings.HasSuffix(c.Runtime, "/") {
			return fmt.Errorf("%s: runtime: %q is not an import path", path, c.Runtime)
		}
	}

	if c.Parallelism < 0 {
		return fmt.Errorf("%s: parallelism: must not be negative, got %d", path, c.Parallelism)
	}

	seen := make(map[string]string)
	for i, s := range c.Schemas {
		field := fmt.Sprintf("schemas[%d]", i)
		switch filepath.Ext(s) {
		case ".yaml", ".yml":
		default:
			return fmt.Errorf("%s: %s: %q is not a .yaml file", path, field, s)
		}
		if err := c.checkFile(path, field, s, seen); err != nil {
			return err
		}
	}
	for i, p := range c.Protos {
		field := fmt.Sprintf("protos[%d]", i)
		if filepath.Ext(p) != ".proto" {
			return fmt.Errorf("%s: %s: %q is not a .proto file", path, field, p)
		}
		if err := c.checkFile(path, field, p, seen); err != nil {
			return err
		}
	}

	for i, dir := range c.ImportPaths {
		info, err := os.Stat(c.Path(dir))
		if err != nil {
			return fmt.Errorf("%s: import_paths[%d]: %q not found: %w", path, i, dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s: import_paths[%d]: %q is not a directory", path, i, dir)
		}
	}

	for i, tag := range c.BuildTags {
		if tag == "" || strings.ContainsAny(tag, " ,\t") {
			return fmt.Errorf("%s: build_tags[%d]: invalid tag %q", path, i, tag)
		}
	}
	return nil
}

func (c *Config) checkFile(path, field, name string, seen map[string]string) error {
	if name == "" {
		return fmt.Errorf("%s: %s: path is required", path, field)
	}
	if prev, ok := seen[name]; ok {
		return fmt.Errorf("%s: %s: %q already listed as %s", path, field, name, prev)
	}
	seen[name] = field

	info, err := os.Stat(c.Path(name))
	if err != nil {
		return fmt.Errorf("%s: %s: %q not found: %w", path, field, name, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s: %s: %q is a directory", path, field, name)
	}
	return nil
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	if c.Runtime == "" {
		c.Runtime = DefaultRuntime
	}
	if c.Promoted == nil {
		c.Promoted = boolPtr(true)
	}
	if c.PointerMethods == nil {
		c.PointerMethods = boolPtr(true)
	}
	if c.Cache.Enabled == nil {
		c.Cache.Enabled = boolPtr(true)
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = DefaultCacheDir
	}
}

func boolPtr(b bool) *bool {
	return &b
}

// Dir returns the directory relative paths are resolved against.
func (c *Config) Dir() string {
	return c.dir
}

// Path resolves p against the config directory.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// PromotedMembers reports whether promoted members are included.
func (c *Config) PromotedMembers() bool {
	return c.Promoted == nil || *c.Promoted
}

// PointerReceiverMethods reports whether pointer-receiver methods are included.
func (c *Config) PointerReceiverMethods() bool {
	return c.PointerMethods == nil || *c.PointerMethods
}

// CacheEnabled reports whether the rewrite cache is used.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled == nil || *c.Cache.Enabled
}

// CacheDir returns the absolute cache directory.
func (c *Config) CacheDir() string {
	dir := c.Cache.Dir
	if dir == "" {
		dir = DefaultCacheDir
	}
	return c.Path(dir)
}

// SchemaPaths returns the schema files resolved against the config directory.
func (c *Config) SchemaPaths() []string {
	return c.paths(c.Schemas)
}

// ProtoPaths returns the proto files resolved against the config directory.
func (c *Config) ProtoPaths() []string {
	return c.paths(c.Protos)
}

// ImportDirs returns the proto import directories resolved against the
// config directory. The config directory itself is always last.
func (c *Config) ImportDirs() []string {
	dirs := c.paths(c.ImportPaths)
	if c.dir != "" {
		dirs = append(dirs, c.dir)
	}
	return dirs
}

func (c *Config) paths(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		out = append(out, c.Path(p))
	}
	return out
}

// Fingerprint returns the normalized config content for cache keys. It is
// empty for the default configuration.
func (c *Config) Fingerprint() []byte {
	return c.data
}

// normalize trims trailing whitespace on each line and trailing newlines, so
// trivial whitespace changes don't invalidate the cache.
func normalize(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(strings.TrimRight(line, " \t\r"))
		b.WriteString("\n")
	}
	return []byte(strings.TrimRight(b.String(), "\n"))
}
