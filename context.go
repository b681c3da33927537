package sdt

import (
	"slices"

	"github.com/KimNorgaard/go-sdt/internal/token"
)

// MapClassKey is one key of a map class together with the label used when
// formatting instances.
type MapClassKey struct {
	Key         string
	DisplayName string
	// Properties holds further settings of the key, such as
	// display-short-name, in the order they were first set.
	Properties []KeyProperty
}

// KeyProperty is a named setting attached to a map class key.
type KeyProperty struct {
	Name  string
	Value string
}

// Property returns the value of the named property.
func (k MapClassKey) Property(name string) (string, bool) {
	for _, p := range k.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Label returns the display name, or the key when no display name is set.
func (k MapClassKey) Label() string {
	if k.DisplayName != "" {
		return k.DisplayName
	}
	return k.Key
}

// MapClass is a named, ordered list of keys shared by instances of the same
// record type. By convention names look like "Namespace/Type".
type MapClass struct {
	Name string
	Keys []MapClassKey
}

// NewMapClass returns a map class with no keys.
func NewMapClass(name string) *MapClass {
	return &MapClass{Name: name}
}

// AddKey appends key to the class. Adding a key that already exists only
// updates its display name.
func (mc *MapClass) AddKey(key, displayName string) *MapClass {
	for i := range mc.Keys {
		if mc.Keys[i].Key == key {
			mc.Keys[i].DisplayName = displayName
			return mc
		}
	}
	mc.Keys = append(mc.Keys, MapClassKey{Key: key, DisplayName: displayName})
	return mc
}

// SetKeyProperty sets a property such as display-short-name on key. Setting
// display-name updates the display name and the key name itself cannot be
// changed. Unknown keys are ignored.
func (mc *MapClass) SetKeyProperty(key, property, value string) *MapClass {
	for i := range mc.Keys {
		k := &mc.Keys[i]
		if k.Key != key {
			continue
		}
		switch property {
		case token.KeyKey:
			// The key name is fixed.
		case token.DisplayNameKey:
			k.DisplayName = value
		default:
			k.setProperty(property, value)
		}
	}
	return mc
}

func (k *MapClassKey) setProperty(name, value string) {
	for i := range k.Properties {
		if k.Properties[i].Name == name {
			k.Properties[i].Value = value
			return
		}
	}
	k.Properties = append(k.Properties, KeyProperty{Name: name, Value: value})
}

// NewInstance returns an empty instance of the class.
func (mc *MapClass) NewInstance() *Instance {
	return NewInstance(mc.Name)
}

func (mc *MapClass) clone() *MapClass {
	keys := slices.Clone(mc.Keys)
	for i := range keys {
		keys[i].Properties = slices.Clone(keys[i].Properties)
	}
	return &MapClass{Name: mc.Name, Keys: keys}
}

// Context is the unit of marshalling: a root value plus the map classes its
// instances refer to. A Context is not safe for concurrent mutation.
type Context struct {
	root    Value
	classes []*MapClass
	index   map[string]int
}

// NewContext returns a context with no root and no map classes.
func NewContext() *Context {
	return &Context{index: make(map[string]int)}
}

// NewContextWithRoot returns a context holding root and no map classes.
func NewContextWithRoot(root Value) *Context {
	c := NewContext()
	c.SetRoot(root)
	return c
}

// SetRoot replaces the root value. A nil root or None clears it.
func (c *Context) SetRoot(v Value) {
	if _, isNone := v.(None); isNone {
		v = nil
	}
	c.root = v
}

// Root returns the root value, or None when the context has no root.
func (c *Context) Root() Value {
	if c.root == nil {
		return None{}
	}
	return c.root
}

// HasRoot reports whether a root value has been set.
func (c *Context) HasRoot() bool { return c.root != nil }

// SetMapClass registers mc, replacing any class with the same name in place.
func (c *Context) SetMapClass(mc *MapClass) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[mc.Name]; ok {
		c.classes[i] = mc
		return
	}
	c.index[mc.Name] = len(c.classes)
	c.classes = append(c.classes, mc)
}

// MapClass looks up a registered class by name.
func (c *Context) MapClass(name string) (*MapClass, bool) {
	if c == nil {
		return nil, false
	}
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.classes[i], true
}

// HasMapClass reports whether a class with the given name is registered.
func (c *Context) HasMapClass(name string) bool {
	_, ok := c.MapClass(name)
	return ok
}

// MapClasses returns the registered classes in registration order.
func (c *Context) MapClasses() []*MapClass {
	return slices.Clone(c.classes)
}

// WithoutMapClasses returns a copy of c sharing its root but holding no map
// classes. Formatting the copy shows raw keys instead of display names.
func (c *Context) WithoutMapClasses() *Context {
	return &Context{root: c.root, index: make(map[string]int)}
}

// Clone returns a copy of c with its own registry. The root is shared.
func (c *Context) Clone() *Context {
	out := &Context{root: c.root, index: make(map[string]int, len(c.classes))}
	for _, mc := range c.classes {
		out.SetMapClass(mc.clone())
	}
	return out
}

// String returns the formatted report of the context.
func (c *Context) String() string {
	return Format(c)
}
