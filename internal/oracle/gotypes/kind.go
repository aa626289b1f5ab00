package gotypes

import "go/types"

// TypeKind categorizes Go types. Its numeric value is the kind tag carried
// by emitted type records, so existing values must never be renumbered.
type TypeKind int

const (
	KindBasic     TypeKind = iota // bool, int, float64, string, any, etc.
	KindStruct                    // struct types
	KindInterface                 // interface types
	KindPtr                       // *T
	KindSlice                     // []T
	KindArray                     // [N]T
	KindMap                       // map[K]V
	KindFunc                      // func types
	KindChan                      // channel types
	KindError                     // the error interface
	KindContext                   // context.Context
	KindByteSlice                 // []byte
	KindNamed                     // other named types
	KindTypeParam                 // type parameters
	KindTuple                     // multiple results
)

var kindNames = [...]string{
	KindBasic:     "basic",
	KindStruct:    "struct",
	KindInterface: "interface",
	KindPtr:       "pointer",
	KindSlice:     "slice",
	KindArray:     "array",
	KindMap:       "map",
	KindFunc:      "func",
	KindChan:      "chan",
	KindError:     "error",
	KindContext:   "context",
	KindByteSlice: "bytes",
	KindNamed:     "named",
	KindTypeParam: "typeparam",
	KindTuple:     "tuple",
}

func (k TypeKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindOf classifies t.
func KindOf(t types.Type) TypeKind {
	switch t := t.(type) {
	case *types.Basic:
		return KindBasic
	case *types.Alias:
		return KindOf(types.Unalias(t))
	case *types.Named:
		if isErrorType(t) {
			return KindError
		}
		if isContextType(t) {
			return KindContext
		}
		switch t.Underlying().(type) {
		case *types.Struct:
			return KindStruct
		case *types.Interface:
			return KindInterface
		}
		return KindNamed
	case *types.Pointer:
		return KindPtr
	case *types.Slice:
		if basic, ok := t.Elem().(*types.Basic); ok && basic.Kind() == types.Byte {
			return KindByteSlice
		}
		return KindSlice
	case *types.Array:
		return KindArray
	case *types.Map:
		return KindMap
	case *types.Signature:
		return KindFunc
	case *types.Chan:
		return KindChan
	case *types.Interface:
		// Unnamed empty interface (interface{} / any) behaves like a basic type.
		if t.NumMethods() == 0 {
			return KindBasic
		}
		return KindInterface
	case *types.Struct:
		return KindStruct
	case *types.TypeParam:
		return KindTypeParam
	case *types.Tuple:
		return KindTuple
	default:
		return KindNamed
	}
}

// isContextType checks if a type is context.Context.
func isContextType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "context" && obj.Name() == "Context"
}

// isErrorType checks if a type is the error interface.
func isErrorType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if ok {
		t = named.Underlying()
	}
	iface, ok := t.(*types.Interface)
	if !ok {
		return false
	}
	return iface.NumMethods() == 1 && iface.Method(0).Name() == "Error"
}
