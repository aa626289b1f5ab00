// Package protodesc is a resolver.Oracle over protobuf definitions.
//
// A message reference yields its fields, an enum reference its value names
// and a service reference its RPC methods. An RPC is reported as a method
// with a single "request" parameter of the input message type and the
// output message type as result; streaming sides carry a "stream " prefix.
// Both type tags use the message field kind from descriptorpb.
package protodesc

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/funvibe/keysof/internal/resolver"
	"github.com/funvibe/keysof/internal/typeexpr"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/types/descriptorpb"
)

// MessageKind is the kind tag of message-typed parameters and results.
const MessageKind = int(descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)

// Oracle answers member queries from parsed .proto files. It is safe for
// concurrent use.
type Oracle struct {
	files  []*desc.FileDescriptor
	byName map[string]desc.Descriptor

	mu      sync.Mutex
	members map[string][]resolver.Member
}

// Load parses the given .proto files. importPaths are searched for the
// files and their imports.
func Load(importPaths []string, files ...string) (*Oracle, error) {
	names, err := protoparse.ResolveFilenames(importPaths, files...)
	if err != nil {
		return nil, fmt.Errorf("resolving proto files: %w", err)
	}
	parser := protoparse.Parser{ImportPaths: importPaths}
	return parse(parser, names)
}

// Parse parses in-memory .proto sources keyed by file name.
func Parse(sources map[string]string, files ...string) (*Oracle, error) {
	parser := protoparse.Parser{Accessor: protoparse.FileContentsFromMap(sources)}
	return parse(parser, files)
}

func parse(parser protoparse.Parser, files []string) (*Oracle, error) {
	fds, err := parser.ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proto: %w", err)
	}
	o := &Oracle{
		files:   fds,
		byName:  make(map[string]desc.Descriptor),
		members: make(map[string][]resolver.Member),
	}
	for _, fd := range fds {
		o.index(fd)
	}
	return o, nil
}

// index registers every message, enum and service of fd under its fully
// qualified name, its package-relative name and its simple name. Earlier
// registrations win for the shorter names.
func (o *Oracle) index(fd *desc.FileDescriptor) {
	pkg := fd.GetPackage()
	register := func(d desc.Descriptor) {
		full := d.GetFullyQualifiedName()
		o.byName[full] = d
		rel := strings.TrimPrefix(full, pkg+".")
		for _, name := range []string{rel, d.GetName()} {
			if _, taken := o.byName[name]; !taken {
				o.byName[name] = d
			}
		}
	}

	var messages func(mds []*desc.MessageDescriptor)
	messages = func(mds []*desc.MessageDescriptor) {
		for _, md := range mds {
			if md.IsMapEntry() {
				continue
			}
			register(md)
			for _, ed := range md.GetNestedEnumTypes() {
				register(ed)
			}
			messages(md.GetNestedMessageTypes())
		}
	}
	messages(fd.GetMessageTypes())
	for _, ed := range fd.GetEnumTypes() {
		register(ed)
	}
	for _, sd := range fd.GetServices() {
		register(sd)
	}
}

// Names returns every registered fully qualified name, sorted.
func (o *Oracle) Names() []string {
	var names []string
	for name, d := range o.byName {
		if name == d.GetFullyQualifiedName() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// TypeOf looks a reference up by fully qualified, package-relative or
// simple name. A leading dot is accepted. Composites are declined.
func (o *Oracle) TypeOf(expr typeexpr.Expr) (resolver.Type, bool) {
	ref, ok := expr.(*typeexpr.Reference)
	if !ok {
		return nil, false
	}
	d, ok := o.byName[strings.TrimPrefix(strings.TrimSpace(ref.Text), ".")]
	if !ok {
		return nil, false
	}
	return d, true
}

// PropertiesOf returns the members of a descriptor returned by TypeOf.
func (o *Oracle) PropertiesOf(t resolver.Type) []resolver.Member {
	d, ok := t.(desc.Descriptor)
	if !ok {
		return nil
	}
	full := d.GetFullyQualifiedName()
	o.mu.Lock()
	defer o.mu.Unlock()
	if cached, ok := o.members[full]; ok {
		return cached
	}

	var members []resolver.Member
	switch d := d.(type) {
	case *desc.MessageDescriptor:
		proto3 := d.GetFile().IsProto3()
		for _, fld := range d.GetFields() {
			members = append(members, resolver.Member{
				Name:     fld.GetName(),
				Optional: optionalField(fld, proto3),
			})
		}
	case *desc.EnumDescriptor:
		for _, v := range d.GetValues() {
			members = append(members, resolver.Member{Name: v.GetName()})
		}
	case *desc.ServiceDescriptor:
		for _, m := range d.GetMethods() {
			members = append(members, rpcMember(m))
		}
	}
	o.members[full] = members
	return members
}

func optionalField(fld *desc.FieldDescriptor, proto3 bool) bool {
	if fld.IsProto3Optional() {
		return true
	}
	if fld.GetOneOf() != nil {
		return true
	}
	return !proto3 && fld.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
}

func rpcMember(m *desc.MethodDescriptor) resolver.Member {
	in := m.GetInputType().GetFullyQualifiedName()
	if m.IsClientStreaming() {
		in = "stream " + in
	}
	out := m.GetOutputType().GetFullyQualifiedName()
	if m.IsServerStreaming() {
		out = "stream " + out
	}
	return resolver.Member{
		Name:   m.GetName(),
		Method: true,
		Params: []resolver.Param{{Name: "request", Type: resolver.Tag(in, MessageKind)}},
		Result: resolver.Tag(out, MessageKind),
	}
}
