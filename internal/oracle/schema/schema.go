// Package schema is a resolver.Oracle over types declared in YAML:
//
//	types:
//	  Reader:
//	    - name: Read
//	      method: true
//	      params:
//	        - {name: p, type: "[]byte", kind: 6}
//	      returns: {type: "(int, error)", kind: 14}
//	    - name: Timeout
//	      optional: true
//
// Member order in the file is the order reported to the resolver.
package schema

import (
	"fmt"
	"os"
	"strings"

	"github.com/funvibe/keysof/internal/resolver"
	"github.com/funvibe/keysof/internal/typeexpr"
	"gopkg.in/yaml.v3"
)

// File is the decoded form of a schema file.
type File struct {
	Types map[string][]MemberSpec `yaml:"types"`
}

// MemberSpec declares one member.
type MemberSpec struct {
	Name     string      `yaml:"name"`
	Method   bool        `yaml:"method,omitempty"`
	Optional bool        `yaml:"optional,omitempty"`
	Params   []ParamSpec `yaml:"params,omitempty"`
	Returns  *TypeSpec   `yaml:"returns,omitempty"`
}

// ParamSpec declares one method parameter. Name and type are optional.
type ParamSpec struct {
	Name string `yaml:"name,omitempty"`
	Type string `yaml:"type,omitempty"`
	Kind int    `yaml:"kind,omitempty"`
}

// TypeSpec declares a result type.
type TypeSpec struct {
	Type string `yaml:"type"`
	Kind int    `yaml:"kind,omitempty"`
}

// Oracle answers member queries from declared types.
type Oracle struct {
	types map[string][]resolver.Member
	order []string
}

// typeName is the resolver.Type of a declared type.
type typeName string

// Load reads and merges schema files. A type declared twice is an error.
func Load(paths ...string) (*Oracle, error) {
	o := &Oracle{types: make(map[string][]resolver.Member)}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", path, err)
		}
		if err := o.add(data, path); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Parse builds an oracle from schema content. The path is used only for
// error messages.
func Parse(data []byte, path string) (*Oracle, error) {
	o := &Oracle{types: make(map[string][]resolver.Member)}
	if err := o.add(data, path); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Oracle) add(data []byte, path string) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.Kind == 0 {
		return nil
	}
	var f File
	if err := doc.Decode(&f); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for _, name := range declarationOrder(&doc) {
		specs, ok := f.Types[name]
		if !ok {
			continue
		}
		if err := validateName(name); err != nil {
			return fmt.Errorf("%s: types.%s: %w", path, name, err)
		}
		if _, dup := o.types[name]; dup {
			return fmt.Errorf("%s: types.%s: declared more than once", path, name)
		}
		members, err := convert(specs)
		if err != nil {
			return fmt.Errorf("%s: types.%s%w", path, name, err)
		}
		o.types[name] = members
		o.order = append(o.order, name)
	}
	return nil
}

// declarationOrder returns the keys of the types mapping in file order.
func declarationOrder(doc *yaml.Node) []string {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "types" {
			continue
		}
		m := root.Content[i+1]
		var names []string
		for j := 0; j+1 < len(m.Content); j += 2 {
			names = append(names, m.Content[j].Value)
		}
		return names
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty type name")
	}
	if strings.ContainsAny(name, "|&") {
		return fmt.Errorf("type name %q must not contain | or &", name)
	}
	return nil
}

func convert(specs []MemberSpec) ([]resolver.Member, error) {
	members := make([]resolver.Member, 0, len(specs))
	seen := make(map[string]bool)
	for i, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("[%d]: name is required", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("[%d]: duplicate member %q", i, s.Name)
		}
		seen[s.Name] = true
		if !s.Method && (len(s.Params) > 0 || s.Returns != nil) {
			return nil, fmt.Errorf("[%d] (%s): params and returns require method: true", i, s.Name)
		}

		m := resolver.Member{Name: s.Name, Method: s.Method, Optional: s.Optional}
		for j, p := range s.Params {
			if p.Type == "" && p.Kind != 0 {
				return nil, fmt.Errorf("[%d].params[%d] (%s): kind without type", i, j, s.Name)
			}
			param := resolver.Param{Name: p.Name}
			if p.Type != "" {
				param.Type = resolver.Tag(p.Type, p.Kind)
			}
			m.Params = append(m.Params, param)
		}
		if s.Returns != nil {
			if s.Returns.Type == "" {
				return nil, fmt.Errorf("[%d].returns (%s): type is required", i, s.Name)
			}
			m.Result = resolver.Tag(s.Returns.Type, s.Returns.Kind)
		}
		members = append(members, m)
	}
	return members, nil
}

// Types returns the declared type names in declaration order.
func (o *Oracle) Types() []string {
	return append([]string(nil), o.order...)
}

// TypeOf looks a reference up by its text. Composites are declined.
func (o *Oracle) TypeOf(expr typeexpr.Expr) (resolver.Type, bool) {
	ref, ok := expr.(*typeexpr.Reference)
	if !ok {
		return nil, false
	}
	name := strings.TrimSpace(ref.Text)
	if _, ok := o.types[name]; !ok {
		return nil, false
	}
	return typeName(name), true
}

// PropertiesOf returns the declared members of t.
func (o *Oracle) PropertiesOf(t resolver.Type) []resolver.Member {
	name, ok := t.(typeName)
	if !ok {
		return nil
	}
	return o.types[string(name)]
}
