// Package resolver turns a classified type expression into the ordered,
// duplicate-free list of members it implies.
//
// Members are identified by name only: a method called Close on two
// different interfaces is the same member once the interfaces are
// combined. Resolution never fails; degenerate input (no type argument,
// a bare wildcard, a reference the oracle cannot resolve) yields an empty
// result, because the result is spliced into source that must stay valid.
package resolver

import "github.com/funvibe/keysof/internal/typeexpr"

// Mode selects what a call site asks for.
type Mode int

const (
	// None means the call is not a keysof entry point.
	None Mode = iota
	// NamesOnly is Keys: member names.
	NamesOnly
	// Signatures is Funs: method signatures.
	Signatures
)

func (m Mode) String() string {
	switch m {
	case NamesOnly:
		return "keys"
	case Signatures:
		return "funs"
	default:
		return "none"
	}
}

// Resolve computes the members of root.
//
// A Reference is answered by the oracle directly. For a Union or an
// Intersection the oracle is first asked about the whole expression; its
// answer is used as-is only in NamesOnly mode and only when every operand
// is a plain Reference. An empty answer ends resolution unless the
// expression has a direct wildcard operand, in which case, and in every
// other case, the operands are resolved recursively and combined:
//
//   - under a union root, names seen at least twice in the left-to-right
//     scan are kept (common-elements);
//   - under an intersection root, the first member of every name is kept
//     (unique-elements);
//
// but only at composite nodes with more than one Reference operand. The
// kind of the root, not of the nested node, selects the reduction.
//
// In Signatures mode non-method members are dropped as soon as the oracle
// reports them.
func Resolve(root typeexpr.Expr, oracle Oracle, mode Mode) []Member {
	if root == nil || mode == None {
		return nil
	}
	var members []Member
	switch e := root.(type) {
	case *typeexpr.Wildcard:
		return nil
	case *typeexpr.Reference:
		members = leafMembers(oracle, e, mode)
	case *typeexpr.Union:
		members = resolveComposite(oracle, e, mode)
	case *typeexpr.Intersection:
		members = resolveComposite(oracle, e, mode)
	}
	return uniqueElements(members)
}

// Names returns the member names in order.
func Names(members []Member) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return names
}

func resolveComposite(oracle Oracle, root typeexpr.Composite, mode Mode) []Member {
	if t, ok := oracle.TypeOf(root); ok {
		props := oracle.PropertiesOf(t)
		if len(props) == 0 {
			// Combining with a wildcard can make the whole type look
			// memberless; only then is it worth looking at the operands.
			if !typeexpr.HasWildcardOperand(root) {
				return nil
			}
		} else if mode == NamesOnly && typeexpr.AllReferences(root) {
			return props
		}
	}
	return subMembers(oracle, root, root.Shape(), mode)
}

func subMembers(oracle Oracle, e typeexpr.Expr, rootShape typeexpr.Shape, mode Mode) []Member {
	switch e := e.(type) {
	case *typeexpr.Wildcard:
		return nil
	case *typeexpr.Reference:
		return leafMembers(oracle, e, mode)
	case *typeexpr.Union:
		return combine(oracle, e.Operands(), rootShape, mode)
	case *typeexpr.Intersection:
		return combine(oracle, e.Operands(), rootShape, mode)
	}
	return nil
}

func combine(oracle Oracle, operands []typeexpr.Expr, rootShape typeexpr.Shape, mode Mode) []Member {
	var props []Member
	refs := 0
	for _, op := range operands {
		if op.Shape() == typeexpr.ShapeReference {
			refs++
		}
		props = append(props, subMembers(oracle, op, rootShape, mode)...)
	}
	if refs <= 1 {
		return props
	}
	switch rootShape {
	case typeexpr.ShapeUnion:
		return commonElements(props)
	case typeexpr.ShapeIntersection:
		return uniqueElements(props)
	}
	return props
}

func leafMembers(oracle Oracle, ref *typeexpr.Reference, mode Mode) []Member {
	t, ok := oracle.TypeOf(ref)
	if !ok {
		return nil
	}
	props := oracle.PropertiesOf(t)
	if mode != Signatures {
		return props
	}
	methods := make([]Member, 0, len(props))
	for _, p := range props {
		if p.Method {
			methods = append(methods, p)
		}
	}
	return methods
}

// commonElements keeps every name that occurs at least twice in the scan.
// The kept member is the latest occurrence seen when the name repeats;
// output order is the order in which names were first found repeated.
func commonElements(in []Member) []Member {
	seen := make(map[string]bool, len(in))
	index := make(map[string]int)
	var out []Member
	for _, m := range in {
		if seen[m.Name] {
			if i, ok := index[m.Name]; ok {
				out[i] = m
			} else {
				index[m.Name] = len(out)
				out = append(out, m)
			}
		}
		seen[m.Name] = true
	}
	return out
}

// uniqueElements keeps the first member of every name.
func uniqueElements(in []Member) []Member {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]Member, 0, len(in))
	for _, m := range in {
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		out = append(out, m)
	}
	return out
}
