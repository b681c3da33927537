package sdt

import (
	"iter"
	"slices"

	"github.com/KimNorgaard/go-sdt/internal/token"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNone Kind = iota
	KindScalar
	KindList
	KindMap
	KindInstance
)

var kindNames = [...]string{
	KindNone:     "none",
	KindScalar:   "scalar",
	KindList:     "list",
	KindMap:      "map",
	KindInstance: "map-class instance",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Value is a node of the data model. The set of implementations is closed:
// None, Scalar, List, *Map and *Instance.
type Value interface {
	Kind() Kind
	isValue()
}

// None is the explicit absence of a value.
type None struct{}

func (None) Kind() Kind { return KindNone }
func (None) isValue()   {}

// Scalar is an opaque string leaf. Numbers and booleans travel as text.
type Scalar string

func (Scalar) Kind() Kind { return KindScalar }
func (Scalar) isValue()   {}

// List is an ordered sequence of values.
type List []Value

func (List) Kind() Kind { return KindList }
func (List) isValue()   {}

// Map is an ordered mapping of string keys to values. Keys keep the position
// of their first insertion; setting an existing key replaces its value.
// The zero Map is empty and ready to use.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

func (*Map) Kind() Kind { return KindMap }
func (*Map) isValue()   {}

// Set stores v under key. A nil v is stored as None.
func (m *Map) Set(key string, v Value) {
	if v == nil {
		v = None{}
	}
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Delete removes key, if present.
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string { return slices.Clone(m.keys) }

// All iterates over the entries in insertion order.
func (m *Map) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// AsInstance converts a map carrying a Scalar under the staf-map-class-name
// key, the form an instance takes when its class is not available to the
// encoder, into an instance of that class. The reserved key is not copied.
// It reports false and returns nil when m has no such key.
func (m *Map) AsInstance() (*Instance, bool) {
	v, ok := m.Get(token.MapClassNameKey)
	if !ok {
		return nil, false
	}
	name, ok := v.(Scalar)
	if !ok {
		return nil, false
	}
	inst := NewInstance(string(name))
	for k, item := range m.All() {
		if k != token.MapClassNameKey {
			inst.Set(k, item)
		}
	}
	return inst, true
}

// Instance is a map tagged with the name of its map class. Its entries are
// stored exactly like a Map; the class only matters for compact encoding and
// for display names when formatting.
type Instance struct {
	Class string
	Map
}

// NewInstance returns an empty instance of the named map class.
func NewInstance(class string) *Instance {
	return &Instance{Class: class, Map: Map{values: make(map[string]Value)}}
}

func (*Instance) Kind() Kind { return KindInstance }
func (*Instance) isValue()   {}

// Equal reports whether a and b hold the same structure and text. A nil
// Value is equal to None. Map entries must appear in the same order.
func Equal(a, b Value) bool {
	if a == nil {
		a = None{}
	}
	if b == nil {
		b = None{}
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case None:
		return true
	case Scalar:
		return av == b.(Scalar)
	case List:
		bv := b.(List)
		return slices.EqualFunc(av, bv, Equal)
	case *Map:
		return mapsEqual(av, b.(*Map))
	case *Instance:
		bv := b.(*Instance)
		return av.Class == bv.Class && mapsEqual(&av.Map, &bv.Map)
	default:
		return false
	}
}

func mapsEqual(a, b *Map) bool {
	if !slices.Equal(a.keys, b.keys) {
		return false
	}
	for _, k := range a.keys {
		if !Equal(a.values[k], b.values[k]) {
			return false
		}
	}
	return true
}

// entries returns the map behind a Map or Instance value.
func entries(v Value) (*Map, bool) {
	switch n := v.(type) {
	case *Map:
		return n, true
	case *Instance:
		return &n.Map, true
	default:
		return nil, false
	}
}
