package sdt

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/KimNorgaard/go-sdt/internal/token"
)

// Marshal returns the marshalled form of v.
//
// v may be a *Context, a Value, or any Go value accepted by ValueOf. A
// context without map classes is marshalled as its root alone; otherwise
// its map classes are written once, ahead of the root, and every instance
// of a registered class is written as values only, in class key order.
// Instances of classes that are not registered are written as plain maps
// carrying the class name under the staf-map-class-name key.
func Marshal(v any, opts ...Option) (string, error) {
	o := newOptions(opts)
	es := &encodeState{opts: o}

	switch x := v.(type) {
	case *Context:
		return es.marshalContext(x)
	case Value:
		return es.marshalValue(x, nil)
	default:
		val, err := valueOf(v, o.maxDepth)
		if err != nil {
			return "", err
		}
		return es.marshalValue(val, nil)
	}
}

// MarshalContext returns the marshalled form of c.
func MarshalContext(c *Context, opts ...Option) (string, error) {
	return Marshal(c, opts...)
}

// Encoder writes marshalled values to an output stream.
type Encoder struct {
	w    io.Writer
	opts []Option
}

// NewEncoder returns a new encoder that writes to w.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	return &Encoder{w: w, opts: opts}
}

// Encode writes the marshalled form of v to the stream.
func (e *Encoder) Encode(v any) error {
	s, err := Marshal(v, e.opts...)
	if err != nil {
		return err
	}
	_, err = io.WriteString(e.w, s)
	return err
}

type encodeState struct {
	opts  *options
	depth int
}

func (es *encodeState) marshalContext(c *Context) (string, error) {
	if c == nil {
		return token.NoneMarker, nil
	}
	if len(c.classes) == 0 {
		return es.marshalValue(c.Root(), c)
	}

	classMap := NewMap()
	for _, mc := range c.classes {
		classMap.Set(mc.Name, mapClassValue(mc))
	}
	header := NewMap()
	header.Set(token.MapClassMapKey, classMap)

	hs, err := es.marshalValue(header, nil)
	if err != nil {
		return "", err
	}
	rs, err := es.marshalValue(c.Root(), c)
	if err != nil {
		return "", err
	}
	return frame(token.ContextMarker+":", hs+rs), nil
}

// mapClassValue renders a class the way it travels in a map-class-map.
func mapClassValue(mc *MapClass) *Map {
	keys := make(List, 0, len(mc.Keys))
	for _, k := range mc.Keys {
		keys = append(keys, keyDefinition(k))
	}
	m := NewMap()
	m.Set(token.KeysKey, keys)
	m.Set(token.NameKey, Scalar(mc.Name))
	return m
}

// keyDefinition renders one class key with its entries sorted by name.
func keyDefinition(k MapClassKey) *Map {
	props := make([]KeyProperty, 0, len(k.Properties)+2)
	props = append(props, KeyProperty{Name: token.KeyKey, Value: k.Key})
	if k.DisplayName != "" {
		props = append(props, KeyProperty{Name: token.DisplayNameKey, Value: k.DisplayName})
	}
	props = append(props, k.Properties...)
	slices.SortStableFunc(props, func(a, b KeyProperty) int { return strings.Compare(a.Name, b.Name) })

	km := NewMap()
	for _, p := range props {
		km.Set(p.Name, Scalar(p.Value))
	}
	return km
}

func (es *encodeState) marshalValue(v Value, c *Context) (string, error) {
	es.depth++
	defer func() { es.depth-- }()
	if es.depth > es.opts.maxDepth {
		return "", &DepthError{Max: es.opts.maxDepth}
	}

	switch n := v.(type) {
	case nil, None:
		return token.NoneMarker, nil
	case Scalar:
		return frame(token.ScalarMarker+":", string(n)), nil
	case List:
		var body strings.Builder
		for _, item := range n {
			s, err := es.marshalValue(item, c)
			if err != nil {
				return "", err
			}
			body.WriteString(s)
		}
		return frame(token.ListMarker+strconv.Itoa(len(n))+":", body.String()), nil
	case *Map:
		body, err := es.marshalEntries(n, c, "")
		if err != nil {
			return "", err
		}
		return frame(token.MapMarker+":", body), nil
	case *Instance:
		return es.marshalInstance(n, c)
	default:
		return "", fmt.Errorf("sdt: unsupported value type %T", v)
	}
}

func (es *encodeState) marshalEntries(m *Map, c *Context, skip string) (string, error) {
	var body strings.Builder
	for k, item := range m.All() {
		if skip != "" && k == skip {
			continue
		}
		s, err := es.marshalValue(item, c)
		if err != nil {
			return "", err
		}
		body.WriteString(lengthPrefixed(k))
		body.WriteString(s)
	}
	return body.String(), nil
}

func (es *encodeState) marshalInstance(inst *Instance, c *Context) (string, error) {
	mc, ok := c.MapClass(inst.Class)
	if !ok {
		es.opts.logger.Debug().
			Str("class", inst.Class).
			Msg("sdt: map class not in context, marshalling instance as a map")
		body, err := es.marshalEntries(&inst.Map, c, token.MapClassNameKey)
		if err != nil {
			return "", err
		}
		body += lengthPrefixed(token.MapClassNameKey) + frame(token.ScalarMarker+":", inst.Class)
		return frame(token.MapMarker+":", body), nil
	}

	var body strings.Builder
	body.WriteString(lengthPrefixed(inst.Class))
	for _, k := range mc.Keys {
		item, _ := inst.Get(k.Key)
		s, err := es.marshalValue(item, c)
		if err != nil {
			return "", err
		}
		body.WriteString(s)
	}
	return frame(token.InstanceMarker+":", body.String()), nil
}

// frame writes prefix, the byte length of body, a colon and body.
func frame(prefix, body string) string {
	return prefix + strconv.Itoa(len(body)) + ":" + body
}

// lengthPrefixed writes ":<len>:<s>", the form used for keys and class names.
func lengthPrefixed(s string) string {
	return ":" + strconv.Itoa(len(s)) + ":" + s
}
