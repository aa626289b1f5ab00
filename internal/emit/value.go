// Package emit renders resolved members as literal values.
//
// Emit produces a small, ordered literal tree; the renderers in this
// package turn that tree into a Go composite literal, JSON or YAML. Keys
// that are absent in the tree are absent in every rendering: nothing is
// ever written as null or as an empty placeholder.
package emit

// Value is a literal. The set of implementations is closed: String, Int,
// Bool, *Array and *Record.
type Value interface {
	literal()
}

type String string

type Int int

type Bool bool

// Array is an ordered sequence. Elem names the element type for renderers
// that need one ("string" or a record type name).
type Array struct {
	Elem  string
	Items []Value
}

// Record is an object with ordered keys. Type names the record type
// ("Fun", "Val" or "Type").
type Record struct {
	Type   string
	Fields []Field
}

// Field is one key of a Record.
type Field struct {
	Key   string
	Value Value
}

func (String) literal()  {}
func (Int) literal()     {}
func (Bool) literal()    {}
func (*Array) literal()  {}
func (*Record) literal() {}

// Get returns the value stored under key.
func (r *Record) Get(key string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

func (r *Record) add(key string, v Value) {
	r.Fields = append(r.Fields, Field{Key: key, Value: v})
}
