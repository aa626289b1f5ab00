package emit

import (
	"fmt"
	"strconv"

	"github.com/francoispqt/gojay"
	"gopkg.in/yaml.v3"
)

// MarshalJSONArray implements gojay.MarshalerJSONArray.
func (a *Array) MarshalJSONArray(enc *gojay.Encoder) {
	for _, item := range a.Items {
		switch v := item.(type) {
		case String:
			enc.String(string(v))
		case Int:
			enc.Int(int(v))
		case Bool:
			enc.Bool(bool(v))
		case *Array:
			enc.Array(v)
		case *Record:
			enc.Object(v)
		}
	}
}

// IsNil implements gojay.MarshalerJSONArray. Empty arrays still encode
// as [].
func (a *Array) IsNil() bool {
	return a == nil
}

// MarshalJSONObject implements gojay.MarshalerJSONObject. Keys are written
// in record order.
func (r *Record) MarshalJSONObject(enc *gojay.Encoder) {
	for _, f := range r.Fields {
		switch v := f.Value.(type) {
		case String:
			enc.StringKey(f.Key, string(v))
		case Int:
			enc.IntKey(f.Key, int(v))
		case Bool:
			enc.BoolKey(f.Key, bool(v))
		case *Array:
			enc.ArrayKey(f.Key, v)
		case *Record:
			enc.ObjectKey(f.Key, v)
		}
	}
}

// IsNil implements gojay.MarshalerJSONObject.
func (r *Record) IsNil() bool {
	return r == nil
}

// JSON encodes v with ordered keys.
func JSON(v Value) ([]byte, error) {
	switch v := v.(type) {
	case *Array:
		return gojay.MarshalJSONArray(v)
	case *Record:
		return gojay.MarshalJSONObject(v)
	case String:
		return gojay.Marshal(string(v))
	case Int:
		return gojay.Marshal(int(v))
	case Bool:
		return gojay.Marshal(bool(v))
	}
	return nil, fmt.Errorf("unsupported literal %T", v)
}

// YAML encodes v as a YAML document with ordered keys.
func YAML(v Value) ([]byte, error) {
	node := yamlNode(v)
	if node == nil {
		return nil, fmt.Errorf("unsupported literal %T", v)
	}
	return yaml.Marshal(node)
}

func yamlNode(v Value) *yaml.Node {
	switch v := v.(type) {
	case String:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(v)}
	case Int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(int(v))}
	case Bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(bool(v))}
	case *Array:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if len(v.Items) == 0 {
			seq.Style = yaml.FlowStyle
		}
		for _, item := range v.Items {
			seq.Content = append(seq.Content, yamlNode(item))
		}
		return seq
	case *Record:
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, f := range v.Fields {
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key},
				yamlNode(f.Value))
		}
		return m
	}
	return nil
}
