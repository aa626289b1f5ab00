package emit

import "github.com/funvibe/keysof/internal/resolver"

// Element and record type names, matching the runtime package's types.
const (
	ElemString = "string"
	RecordFun  = "Fun"
	RecordVal  = "Val"
	RecordType = "Type"
)

// Emit renders members for mode. NamesOnly gives an array of names;
// Signatures gives an array of Fun records:
//
//	{name, args: [{name?, type?: {name, kind}}], returnType?: {name, kind}, isOptional}
//
// Any other mode gives an empty string array.
func Emit(members []resolver.Member, mode resolver.Mode) *Array {
	if mode != resolver.Signatures {
		arr := &Array{Elem: ElemString, Items: []Value{}}
		if mode != resolver.NamesOnly {
			return arr
		}
		for _, m := range members {
			arr.Items = append(arr.Items, String(m.Name))
		}
		return arr
	}

	arr := &Array{Elem: RecordFun, Items: []Value{}}
	for _, m := range members {
		arr.Items = append(arr.Items, funRecord(m))
	}
	return arr
}

// Empty returns the literal for a call site that resolved to nothing.
func Empty(mode resolver.Mode) *Array {
	return Emit(nil, mode)
}

func funRecord(m resolver.Member) *Record {
	rec := &Record{Type: RecordFun}
	rec.add("name", String(m.Name))

	args := &Array{Elem: RecordVal, Items: []Value{}}
	for _, p := range m.Params {
		arg := &Record{Type: RecordVal}
		if p.Name != "" {
			arg.add("name", String(p.Name))
		}
		if p.Type != nil {
			arg.add("type", typeRecord(p.Type))
		}
		args.Items = append(args.Items, arg)
	}
	rec.add("args", args)

	if m.Result != nil {
		rec.add("returnType", typeRecord(m.Result))
	}
	rec.add("isOptional", Bool(m.Optional))
	return rec
}

func typeRecord(tag *resolver.TypeTag) *Record {
	rec := &Record{Type: RecordType}
	rec.add("name", String(tag.Text))
	rec.add("kind", Int(tag.Kind))
	return rec
}
