package sdt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/KimNorgaard/go-sdt/internal/scanner"
	"github.com/KimNorgaard/go-sdt/internal/token"
)

// IsMarshalledData reports whether s starts with the marshalled data marker.
func IsMarshalledData(s string) bool {
	return strings.HasPrefix(s, token.Marker)
}

// Unmarshal decodes data and returns the resulting context. It never fails.
//
// Any unit that is not well formed decodes to its own text as a Scalar. When
// that unit is the whole input, the returned context's root is data itself.
// A unit nested inside a well-formed container falls back on its own and the
// container survives, because its boundaries come from its own length field.
// A container whose declared length or item count does not match its body
// falls back as a whole; partially decoded containers are never returned.
//
// Map classes of every context found in data are registered in the returned
// context. When data is not itself a context, instances are resolved against
// the context given with WithContext, if any, and its classes are registered
// in the returned context as well.
func Unmarshal(data string, opts ...Option) *Context {
	o := newOptions(opts)
	ds := &decodeState{opts: o}
	root := ds.value(data, o.base)

	c := NewContext()
	if o.base != nil {
		c = o.base.Clone()
	}
	c.SetRoot(root)
	for _, mc := range ds.found {
		c.SetMapClass(mc)
	}
	return c
}

// Decoder reads and decodes marshalled data from an input stream.
type Decoder struct {
	r    io.Reader
	opts []Option
}

// NewDecoder returns a new decoder that reads from r.
//
// Note: decoding is not streaming. Decode reads r to EOF before decoding.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	return &Decoder{r: r, opts: opts}
}

// Decode reads all of its input and unmarshals it. The only errors returned
// are errors reading the input.
func (d *Decoder) Decode() (*Context, error) {
	if d.r == nil {
		return nil, fmt.Errorf("sdt: Decode(nil reader)")
	}
	data, err := io.ReadAll(d.r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(string(data), d.opts...), nil
}

type decodeState struct {
	opts  *options
	depth int
	// found collects the map classes of decoded contexts, innermost first.
	found []*MapClass
}

// value decodes one unit, falling back to its literal text.
func (ds *decodeState) value(data string, scope *Context) Value {
	v, err := ds.unit(data, scope)
	if err != nil {
		ds.opts.logger.Debug().
			Err(err).
			Int("depth", ds.depth).
			Int("length", len(data)).
			Msg("sdt: unit is not well formed, keeping literal text")
		return Scalar(data)
	}
	return v
}

// unit decodes data, which must hold exactly one unit. Map classes collected
// while decoding a unit that fails are discarded.
func (ds *decodeState) unit(data string, scope *Context) (Value, error) {
	ds.depth++
	defer func() { ds.depth-- }()
	if ds.depth > ds.opts.maxDepth {
		return nil, &DepthError{Max: ds.opts.maxDepth}
	}

	mark := len(ds.found)
	v, err := ds.parse(data, scope)
	if err != nil {
		ds.found = ds.found[:mark]
		return nil, err
	}
	return v, nil
}

func (ds *decodeState) parse(data string, scope *Context) (Value, error) {
	if !IsMarshalledData(data) {
		return Scalar(data), nil
	}

	s := scanner.New(data)
	typ, err := s.Header()
	if err != nil {
		return nil, err
	}
	switch typ {
	case token.SCALAR:
		return ds.parseScalar(s, scope)
	case token.LIST:
		return ds.parseList(s, scope)
	case token.MAP:
		return ds.parseMap(s, scope)
	case token.INSTANCE:
		return ds.parseInstance(s, scope)
	case token.CONTEXT:
		return ds.parseContext(s, scope)
	default:
		return nil, fmt.Errorf("unhandled unit type %s", typ)
	}
}

// parseScalar handles @SDT/$S:<len>:<text> and the None unit @SDT/$0:0:.
func (ds *decodeState) parseScalar(s *scanner.Scanner, scope *Context) (Value, error) {
	if s.Rest() == "0:0:" {
		return None{}, nil
	}
	if err := s.Expect("S:"); err != nil {
		return nil, err
	}
	n, err := s.Length()
	if err != nil {
		return nil, err
	}
	if err := s.ExpectRemaining(n); err != nil {
		return nil, err
	}

	text := s.Rest()
	if IsMarshalledData(text) && !ds.opts.ignoreIndirect {
		// The text is itself marshalled data. If it does not decode, the
		// text is kept as is.
		return ds.value(text, scope), nil
	}
	return Scalar(text), nil
}

// parseList handles @SDT/[<count>:<len>:<item>...
func (ds *decodeState) parseList(s *scanner.Scanner, scope *Context) (Value, error) {
	count, err := s.Length()
	if err != nil {
		return nil, err
	}
	if err := readBody(s); err != nil {
		return nil, err
	}

	list := make(List, 0, min(count, s.Len()))
	for i := 0; i < count; i++ {
		if s.Done() {
			return nil, fmt.Errorf("list declares %d items but holds %d", count, i)
		}
		u, err := s.Unit()
		if err != nil {
			return nil, err
		}
		list = append(list, ds.value(u, scope))
	}
	if !s.Done() {
		return nil, fmt.Errorf("list holds %d trailing bytes after %d items", s.Len(), count)
	}
	return list, nil
}

// parseMap handles @SDT/{:<len>: followed by :<keyLen>:<key><value> entries.
// A repeated key keeps its first position and its last value.
func (ds *decodeState) parseMap(s *scanner.Scanner, scope *Context) (Value, error) {
	if err := readEmptyField(s); err != nil {
		return nil, err
	}
	if err := readBody(s); err != nil {
		return nil, err
	}

	m := NewMap()
	for !s.Done() {
		key, err := readLengthPrefixed(s)
		if err != nil {
			return nil, err
		}
		u, err := s.Unit()
		if err != nil {
			return nil, err
		}
		m.Set(key, ds.value(u, scope))
	}
	return promote(m), nil
}

// parseInstance handles @SDT/%:<len>::<nameLen>:<name><value>... Values are
// paired with the class keys in order and there must be one per key. Without
// a class in scope the values are keyed by position.
func (ds *decodeState) parseInstance(s *scanner.Scanner, scope *Context) (Value, error) {
	if err := readEmptyField(s); err != nil {
		return nil, err
	}
	if err := readBody(s); err != nil {
		return nil, err
	}
	name, err := readLengthPrefixed(s)
	if err != nil {
		return nil, err
	}

	mc, resolved := scope.MapClass(name)
	inst := NewInstance(name)
	i := 0
	for ; !s.Done(); i++ {
		u, err := s.Unit()
		if err != nil {
			return nil, err
		}
		key := strconv.Itoa(i)
		if resolved {
			if i >= len(mc.Keys) {
				return nil, fmt.Errorf("instance of %q holds more values than the %d keys of its class", name, len(mc.Keys))
			}
			key = mc.Keys[i].Key
		}
		inst.Set(key, ds.value(u, scope))
	}
	if resolved && i < len(mc.Keys) {
		return nil, fmt.Errorf("instance of %q holds %d values for the %d keys of its class", name, i, len(mc.Keys))
	}
	return inst, nil
}

// parseContext handles @SDT/*:<len>:<map-class-map><root>. The map classes
// are decoded first so that the root can refer to any of them.
func (ds *decodeState) parseContext(s *scanner.Scanner, scope *Context) (Value, error) {
	if err := readEmptyField(s); err != nil {
		return nil, err
	}
	if err := readBody(s); err != nil {
		return nil, err
	}

	hu, err := s.Unit()
	if err != nil {
		return nil, err
	}
	header, err := ds.unit(hu, scope)
	if err != nil {
		return nil, fmt.Errorf("map-class-map: %w", err)
	}
	local, err := mapClasses(header)
	if err != nil {
		return nil, err
	}

	ru, err := s.Unit()
	if err != nil {
		return nil, err
	}
	if !s.Done() {
		return nil, fmt.Errorf("context holds %d trailing bytes after its root", s.Len())
	}
	root := ds.value(ru, local)
	ds.found = append(ds.found, local.classes...)
	return root, nil
}

// readBody reads the byte length of a unit's body and checks that it matches.
func readBody(s *scanner.Scanner) error {
	n, err := s.Length()
	if err != nil {
		return err
	}
	return s.ExpectRemaining(n)
}

// readEmptyField consumes the empty field that follows the map, instance and
// context tags.
func readEmptyField(s *scanner.Scanner) error {
	start := s.Pos()
	f, err := s.Field()
	if err != nil {
		return err
	}
	if f != "" {
		return &scanner.Error{Offset: start, Msg: fmt.Sprintf("unexpected field %q", f)}
	}
	return nil
}

// readLengthPrefixed reads :<len>:<text>.
func readLengthPrefixed(s *scanner.Scanner) (string, error) {
	if err := s.Expect(":"); err != nil {
		return "", err
	}
	n, err := s.Length()
	if err != nil {
		return "", err
	}
	return s.Take(n)
}

// promote returns the instance form of m, if it has one.
func promote(m *Map) Value {
	if inst, ok := m.AsInstance(); ok {
		return inst
	}
	return m
}

// mapClasses reads the classes out of a decoded map-class-map header.
func mapClasses(header Value) (*Context, error) {
	hm, ok := entries(header)
	if !ok {
		return nil, fmt.Errorf("map-class-map: header is a %s, not a map", header.Kind())
	}
	v, ok := hm.Get(token.MapClassMapKey)
	if !ok {
		return nil, fmt.Errorf("map-class-map: missing %q key", token.MapClassMapKey)
	}
	defs, ok := entries(v)
	if !ok {
		return nil, fmt.Errorf("map-class-map: %q is a %s, not a map", token.MapClassMapKey, v.Kind())
	}

	local := NewContext()
	for name, def := range defs.All() {
		mc, err := mapClass(name, def)
		if err != nil {
			return nil, fmt.Errorf("map-class-map: class %q: %w", name, err)
		}
		local.SetMapClass(mc)
	}
	return local, nil
}

func mapClass(name string, def Value) (*MapClass, error) {
	dm, ok := entries(def)
	if !ok {
		return nil, fmt.Errorf("definition is a %s, not a map", def.Kind())
	}
	mc := NewMapClass(name)
	kv, ok := dm.Get(token.KeysKey)
	if !ok {
		return mc, nil
	}
	keys, ok := kv.(List)
	if !ok {
		return nil, fmt.Errorf("%q is a %s, not a list", token.KeysKey, kv.Kind())
	}
	for i, item := range keys {
		km, ok := entries(item)
		if !ok {
			return nil, fmt.Errorf("key %d is a %s, not a map", i, item.Kind())
		}
		k, _ := km.Get(token.KeyKey)
		key, ok := k.(Scalar)
		if !ok {
			return nil, fmt.Errorf("key %d has no %q scalar", i, token.KeyKey)
		}
		var display Scalar
		if d, ok := km.Get(token.DisplayNameKey); ok {
			display, _ = d.(Scalar)
		}
		mc.AddKey(string(key), string(display))
		for name, pv := range km.All() {
			if name == token.KeyKey || name == token.DisplayNameKey {
				continue
			}
			p, ok := pv.(Scalar)
			if !ok {
				return nil, fmt.Errorf("key %d property %q is a %s, not a scalar", i, name, pv.Kind())
			}
			mc.SetKeyProperty(string(key), name, string(p))
		}
	}
	return mc, nil
}
