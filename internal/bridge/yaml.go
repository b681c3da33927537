// Package bridge converts values of the sdt data model to and from other
// document formats. YAML (and therefore JSON) keeps map key order; CBOR
// output uses core deterministic encoding.
package bridge

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	sdt "github.com/KimNorgaard/go-sdt"
	"github.com/KimNorgaard/go-sdt/internal/token"
)

const maxDepth = 1000

var errTooDeep = errors.New("bridge: document nests too deeply")

// FromYAML converts a YAML or JSON document into a Value. Mapping order is
// kept, null becomes None and every other scalar becomes a Scalar holding its
// source text. A mapping carrying the staf-map-class-name key becomes an
// Instance of that class. An empty document is None.
func FromYAML(data []byte) (sdt.Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("bridge: parse yaml: %w", err)
	}
	return fromNode(&doc, 0)
}

func fromNode(n *yaml.Node, depth int) (sdt.Value, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}
	switch n.Kind {
	case 0:
		return sdt.None{}, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return sdt.None{}, nil
		}
		return fromNode(n.Content[0], depth+1)
	case yaml.AliasNode:
		return fromNode(n.Alias, depth+1)
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return sdt.None{}, nil
		}
		return sdt.Scalar(n.Value), nil
	case yaml.SequenceNode:
		list := make(sdt.List, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromNode(c, depth+1)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.MappingNode:
		m := sdt.NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("bridge: line %d: mapping key must be a scalar", k.Line)
			}
			v, err := fromNode(n.Content[i+1], depth+1)
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, v)
		}
		return promote(m), nil
	default:
		return nil, fmt.Errorf("bridge: line %d: unsupported yaml node kind %d", n.Line, n.Kind)
	}
}

// ToYAML renders v as a YAML document. Instances are written as mappings
// with a trailing staf-map-class-name key.
func ToYAML(v sdt.Value) ([]byte, error) {
	n, err := toNode(v, 0)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return nil, fmt.Errorf("bridge: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("bridge: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func toNode(v sdt.Value, depth int) (*yaml.Node, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}
	switch x := v.(type) {
	case nil, sdt.None:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case sdt.Scalar:
		// The explicit tag makes the encoder quote text such as "true" or
		// "null" that would otherwise read back as another type.
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(x)}, nil
	case sdt.List:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range x {
			c, err := toNode(item, depth+1)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	case *sdt.Map:
		return mappingNode(x, "", depth)
	case *sdt.Instance:
		return mappingNode(&x.Map, x.Class, depth)
	default:
		return nil, fmt.Errorf("bridge: unsupported value %T", v)
	}
}

func mappingNode(m *sdt.Map, class string, depth int) (*yaml.Node, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	add := func(k string, v sdt.Value) error {
		c, err := toNode(v, depth+1)
		if err != nil {
			return err
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, c)
		return nil
	}
	for k, v := range m.All() {
		if class != "" && k == token.MapClassNameKey {
			continue
		}
		if err := add(k, v); err != nil {
			return nil, err
		}
	}
	if class != "" {
		if err := add(token.MapClassNameKey, sdt.Scalar(class)); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// promote returns the instance form of m, if it has one.
func promote(m *sdt.Map) sdt.Value {
	if inst, ok := m.AsInstance(); ok {
		return inst
	}
	return m
}
