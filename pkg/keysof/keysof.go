// Package keysof is the runtime side of the keysof source rewriter.
//
// Calls to Keys and Funs are placeholders: `keysof rewrite` replaces every
// call site with a literal computed from the type argument at build time.
// The type argument may be a plain type, a union (A | B), an intersection
// (A & B or interface{ A; B }), any nesting of those, or any.
//
//	names := keysof.Keys[Foo & Bar]()   // becomes []string{"foo", "bar"}
//	sigs := keysof.Funs[Service]()      // becomes []keysof.Fun{...}
//
// A call that was never rewritten returns nil.
package keysof

// Keys returns the member names of T.
func Keys[T any]() []string {
	return nil
}

// Funs returns the method signatures of T.
func Funs[T any]() []Fun {
	return nil
}

// Fun describes one method.
type Fun struct {
	Name string `json:"name" yaml:"name"`
	Args []Val  `json:"args" yaml:"args"`

	// ReturnType is nil when the method declares no result.
	ReturnType *Type `json:"returnType,omitempty" yaml:"returnType,omitempty"`

	IsOptional bool `json:"isOptional" yaml:"isOptional"`
}

// Val describes one parameter. Name is empty for unnamed parameters
// and Type is nil when the parameter carries no type information.
type Val struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Type *Type  `json:"type,omitempty" yaml:"type,omitempty"`
}

// Type is the textual type of a parameter or result together with the
// kind tag reported by the type oracle that resolved it.
type Type struct {
	Name string `json:"name" yaml:"name"`
	Kind int    `json:"kind" yaml:"kind"`
}

// String returns the type text.
func (t *Type) String() string {
	if t == nil {
		return ""
	}
	return t.Name
}
