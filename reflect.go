package sdt

import (
	"encoding"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Marshaler is the interface implemented by types that can convert
// themselves into a Value.
type Marshaler interface {
	MarshalSDT() (Value, error)
}

// Unmarshaler is the interface implemented by types that can populate
// themselves from a Value.
type Unmarshaler interface {
	UnmarshalSDT(Value) error
}

var (
	anyType             = reflect.TypeFor[any]()
	valueType           = reflect.TypeFor[Value]()
	marshalerType       = reflect.TypeFor[Marshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	unmarshalerType     = reflect.TypeFor[Unmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// ValueOf converts a Go value into the data model.
//
// Strings, booleans and numbers become Scalars in their strconv form, byte
// slices become Scalars, other slices and arrays become Lists, maps with
// string keys become Maps with sorted keys, and structs become Maps in field
// order. Struct fields honour `sdt:"name,omitempty"` tags and `sdt:"-"`;
// embedded structs without a tag name are flattened. Nil pointers, nil
// slices, nil maps and nil interfaces become None. Types implementing
// Marshaler or encoding.TextMarshaler are converted by those methods.
func ValueOf(v any, opts ...Option) (Value, error) {
	o := newOptions(opts)
	return valueOf(v, o.maxDepth)
}

func valueOf(v any, maxDepth int) (Value, error) {
	ps := &packState{depth: maxDepth, max: maxDepth}
	return ps.pack(reflect.ValueOf(v))
}

type packState struct {
	depth int
	max   int
}

func (ps *packState) pack(v reflect.Value) (Value, error) { //nolint:gocyclo
	ps.depth--
	defer func() { ps.depth++ }()
	if ps.depth < 0 {
		return nil, &DepthError{Max: ps.max}
	}

	if !v.IsValid() {
		return None{}, nil
	}
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			return None{}, nil
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return None{}, nil
	}

	if val, ok := modelValue(v); ok {
		return val, nil
	}
	if handled, val, err := ps.packCustom(v); handled {
		return val, err
	}

	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return None{}, nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		return Scalar(v.String()), nil
	case reflect.Bool:
		return Scalar(strconv.FormatBool(v.Bool())), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Scalar(strconv.FormatInt(v.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Scalar(strconv.FormatUint(v.Uint(), 10)), nil
	case reflect.Float32:
		return Scalar(strconv.FormatFloat(v.Float(), 'g', -1, 32)), nil
	case reflect.Float64:
		return Scalar(strconv.FormatFloat(v.Float(), 'g', -1, 64)), nil
	case reflect.Slice:
		if v.IsNil() {
			return None{}, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return Scalar(v.Bytes()), nil
		}
		return ps.packList(v)
	case reflect.Array:
		return ps.packList(v)
	case reflect.Map:
		if v.IsNil() {
			return None{}, nil
		}
		return ps.packMap(v)
	case reflect.Struct:
		return ps.packStruct(v)
	default:
		return nil, &UnsupportedTypeError{Type: v.Type()}
	}
}

// modelValue reports whether v already holds a value of the data model.
func modelValue(v reflect.Value) (Value, bool) {
	if !v.CanInterface() || !v.Type().Implements(valueType) {
		return nil, false
	}
	switch x := v.Interface().(type) {
	case None, Scalar, List, *Map, *Instance:
		return x.(Value), true
	}
	return nil, false
}

// packCustom converts v through Marshaler or encoding.TextMarshaler. Both
// the value and a pointer to it are checked, so pointer receivers work for
// non-addressable values as well.
func (ps *packState) packCustom(v reflect.Value) (bool, Value, error) {
	candidates := []reflect.Value{v}
	if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface && v.CanInterface() {
		pv := reflect.New(v.Type())
		pv.Elem().Set(v)
		if v.CanAddr() {
			pv = v.Addr()
		}
		candidates = append(candidates, pv)
	}

	for _, c := range candidates {
		if !c.CanInterface() {
			continue
		}
		if c.Type().Implements(marshalerType) {
			val, err := c.Interface().(Marshaler).MarshalSDT()
			if err != nil {
				return true, nil, &MarshalerError{Type: c.Type(), Err: err}
			}
			if val == nil {
				val = None{}
			}
			return true, val, nil
		}
		if c.Type().Implements(textMarshalerType) {
			b, err := c.Interface().(encoding.TextMarshaler).MarshalText()
			if err != nil {
				return true, nil, &MarshalerError{Type: c.Type(), Err: err}
			}
			return true, Scalar(b), nil
		}
	}
	return false, nil, nil
}

func (ps *packState) packList(v reflect.Value) (Value, error) {
	list := make(List, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		item, err := ps.pack(v.Index(i))
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, nil
}

func (ps *packState) packMap(v reflect.Value) (Value, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, &UnsupportedTypeError{Type: v.Type()}
	}
	keys := v.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int { return strings.Compare(a.String(), b.String()) })

	m := NewMap()
	for _, k := range keys {
		item, err := ps.pack(v.MapIndex(k))
		if err != nil {
			return nil, err
		}
		m.Set(k.String(), item)
	}
	return m, nil
}

func (ps *packState) packStruct(v reflect.Value) (Value, error) {
	m := NewMap()
	for _, f := range cachedFields(v.Type()).list {
		fv, ok := fieldByIndex(v, f.idx)
		if !ok {
			continue
		}
		if f.omitEmpty && isEmptyValue(fv) {
			continue
		}
		item, err := ps.pack(fv)
		if err != nil {
			return nil, err
		}
		m.Set(f.name, item)
	}
	return m, nil
}

// fieldByIndex is like reflect.Value.FieldByIndex but reports false instead
// of panicking on a nil embedded pointer.
func fieldByIndex(v reflect.Value, idx []int) (reflect.Value, bool) {
	for i, x := range idx {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

// isEmptyValue reports whether the value v is empty.
func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}

// Unpack stores the contents of v in the value pointed to by out.
//
// Scalars are parsed into string, boolean and numeric targets, with range
// checks; Lists fill slices and arrays; Maps and instances fill structs (a
// key matches a field tag or name exactly, then case-insensitively) and
// string-keyed maps. None zeroes the target. An empty interface receives a
// string, []any, map[string]any or nil. Types implementing Unmarshaler or,
// for Scalars, encoding.TextUnmarshaler populate themselves.
func Unpack(v Value, out any, opts ...Option) error {
	o := newOptions(opts)
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("sdt: Unpack(non-pointer %T or nil)", out)
	}
	us := &unpackState{depth: o.maxDepth, max: o.maxDepth}
	return us.unpack(v, rv.Elem())
}

// Unpack stores the root of c in the value pointed to by out.
func (c *Context) Unpack(out any, opts ...Option) error {
	return Unpack(c.Root(), out, opts...)
}

type unpackState struct {
	depth int
	max   int
}

func (us *unpackState) unpack(v Value, rv reflect.Value) error { //nolint:gocyclo
	us.depth--
	defer func() { us.depth++ }()
	if us.depth < 0 {
		return &DepthError{Max: us.max}
	}
	if v == nil {
		v = None{}
	}

	if _, isNone := v.(None); isNone {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}

	for {
		handled, err := us.unpackCustom(v, rv)
		if err != nil || handled {
			return err
		}
		// Targets of a data model type, such as a Value field, take v as is.
		if rv.Type() != anyType && reflect.TypeOf(v).AssignableTo(rv.Type()) {
			rv.Set(reflect.ValueOf(v))
			return nil
		}
		if rv.Kind() != reflect.Pointer {
			break
		}
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		rv = rv.Elem()
	}

	if rv.Kind() == reflect.Interface {
		return us.unpackInterface(v, rv)
	}
	if !rv.CanSet() {
		return fmt.Errorf("sdt: cannot set value of type %s", rv.Type())
	}

	switch n := v.(type) {
	case Scalar:
		return unpackScalar(n, rv)
	case List:
		switch rv.Kind() {
		case reflect.Slice:
			return us.unpackSlice(n, rv)
		case reflect.Array:
			return us.unpackArray(n, rv)
		}
	case *Map:
		return us.unpackEntries(n, rv)
	case *Instance:
		return us.unpackEntries(&n.Map, rv)
	}
	return fmt.Errorf("sdt: cannot unpack %s into Go value of type %s", v.Kind(), rv.Type())
}

// unpackCustom uses Unmarshaler or encoding.TextUnmarshaler when the target
// implements one of them. It reports whether the target was handled.
func (us *unpackState) unpackCustom(v Value, rv reflect.Value) (bool, error) {
	if !rv.CanAddr() {
		return false, nil
	}
	pv := rv.Addr()
	if !pv.CanInterface() {
		return false, nil
	}

	if pv.Type().Implements(unmarshalerType) {
		if err := pv.Interface().(Unmarshaler).UnmarshalSDT(v); err != nil {
			return true, &UnmarshalerError{Type: pv.Type(), Err: err}
		}
		return true, nil
	}
	if pv.Type().Implements(textUnmarshalerType) {
		s, isScalar := v.(Scalar)
		if !isScalar {
			// TextUnmarshaler only applies to scalars.
			return false, nil
		}
		if err := pv.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return true, &UnmarshalerError{Type: pv.Type(), Err: err}
		}
		return true, nil
	}
	return false, nil
}

func unpackScalar(s Scalar, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.String:
		rv.SetString(string(s))
		return nil
	case reflect.Bool:
		b, err := strconv.ParseBool(string(s))
		if err != nil {
			return fmt.Errorf("sdt: cannot unpack %q into Go value of type %s", s, rv.Type())
		}
		rv.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(string(s), 10, rv.Type().Bits())
		if err != nil {
			return scalarError(s, rv, err)
		}
		rv.SetInt(i)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := strconv.ParseUint(string(s), 10, rv.Type().Bits())
		if err != nil {
			return scalarError(s, rv, err)
		}
		rv.SetUint(u)
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(string(s), rv.Type().Bits())
		if err != nil {
			return scalarError(s, rv, err)
		}
		rv.SetFloat(f)
		return nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			rv.SetBytes([]byte(s))
			return nil
		}
	}
	return fmt.Errorf("sdt: cannot unpack scalar into Go value of type %s", rv.Type())
}

func scalarError(s Scalar, rv reflect.Value, err error) error {
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return fmt.Errorf("sdt: value %q overflows Go value of type %s", s, rv.Type())
	}
	return fmt.Errorf("sdt: cannot unpack %q into Go value of type %s", s, rv.Type())
}

func (us *unpackState) unpackSlice(l List, rv reflect.Value) error {
	out := reflect.MakeSlice(rv.Type(), len(l), len(l))
	for i, item := range l {
		if err := us.unpack(item, out.Index(i)); err != nil {
			return err
		}
	}
	rv.Set(out)
	return nil
}

func (us *unpackState) unpackArray(l List, rv reflect.Value) error {
	if rv.Len() != len(l) {
		return fmt.Errorf("sdt: cannot unpack list of length %d into Go array of length %d", len(l), rv.Len())
	}
	for i, item := range l {
		if err := us.unpack(item, rv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (us *unpackState) unpackEntries(m *Map, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Struct:
		return us.unpackStruct(m, rv)
	case reflect.Map:
		return us.unpackMap(m, rv)
	default:
		return fmt.Errorf("sdt: cannot unpack map into Go value of type %s", rv.Type())
	}
}

func (us *unpackState) unpackMap(m *Map, rv reflect.Value) error {
	mapType := rv.Type()
	if mapType.Key().Kind() != reflect.String {
		return fmt.Errorf("sdt: cannot unpack map into map with non-string key type %s", mapType.Key())
	}
	if rv.IsNil() {
		rv.Set(reflect.MakeMapWithSize(mapType, m.Len()))
	} else {
		rv.Clear()
	}
	for k, item := range m.All() {
		elem := reflect.New(mapType.Elem()).Elem()
		if err := us.unpack(item, elem); err != nil {
			return err
		}
		rv.SetMapIndex(reflect.ValueOf(k).Convert(mapType.Key()), elem)
	}
	return nil
}

func (us *unpackState) unpackStruct(m *Map, rv reflect.Value) error {
	info := cachedFields(rv.Type())
	for k, item := range m.All() {
		f := info.find(k)
		if f == nil {
			continue
		}
		fv, err := settableField(rv, f.idx)
		if err != nil {
			return err
		}
		if err := us.unpack(item, fv); err != nil {
			return err
		}
	}
	return nil
}

// settableField walks idx, allocating nil embedded pointers on the way.
func settableField(v reflect.Value, idx []int) (reflect.Value, error) {
	for i, x := range idx {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, fmt.Errorf("sdt: cannot set embedded pointer to unexported struct %s", v.Type().Elem())
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}

func (us *unpackState) unpackInterface(v Value, rv reflect.Value) error {
	if rv.NumMethod() != 0 {
		return fmt.Errorf("sdt: cannot unpack into non-empty interface %s", rv.Type())
	}
	var concrete reflect.Value
	switch v.(type) {
	case Scalar:
		var s string
		concrete = reflect.ValueOf(&s).Elem()
	case List:
		var a []any
		concrete = reflect.ValueOf(&a).Elem()
	case *Map, *Instance:
		var o map[string]any
		concrete = reflect.ValueOf(&o).Elem()
	default:
		return fmt.Errorf("sdt: cannot determine concrete type for %s", v.Kind())
	}
	if err := us.unpack(v, concrete); err != nil {
		return err
	}
	rv.Set(concrete)
	return nil
}

// A field represents a single exported struct field.
type field struct {
	name      string
	idx       []int
	omitEmpty bool
}

type structInfo struct {
	list   []field          // in declaration order, embedded fields inlined
	byName map[string]field // tag and field names, plus lower-cased variants
}

func (si *structInfo) find(key string) *field {
	if f, ok := si.byName[key]; ok {
		return &f
	}
	if f, ok := si.byName[strings.ToLower(key)]; ok {
		return &f
	}
	return nil
}

// fieldCache caches the fields of struct types.
var fieldCache sync.Map // map[reflect.Type]*structInfo

// cachedFields returns the fields of struct type t. The result is cached to
// avoid repeated reflection work.
func cachedFields(t reflect.Type) *structInfo { //nolint:gocognit
	if si, ok := fieldCache.Load(t); ok {
		return si.(*structInfo)
	}

	si := &structInfo{byName: make(map[string]field)}
	var walk func(t reflect.Type, idx []int)
	walk = func(t reflect.Type, idx []int) {
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			tag := sf.Tag.Get("sdt")
			if tag == "-" {
				continue
			}
			name, opts := parseTag(tag)
			index := append(slices.Clone(idx), i)

			if sf.Anonymous && name == "" {
				ft := sf.Type
				if ft.Kind() == reflect.Pointer {
					ft = ft.Elem()
				}
				if ft.Kind() == reflect.Struct {
					// Recurse into embedded structs.
					walk(ft, index)
					continue
				}
			}
			if !sf.IsExported() {
				continue
			}

			if name == "" {
				name = sf.Name
			}
			f := field{name: name, idx: index, omitEmpty: opts["omitempty"]}
			si.list = append(si.list, f)

			// Exact names first; lower-cased variants never overwrite them.
			si.byName[name] = f
			if _, ok := si.byName[sf.Name]; !ok {
				si.byName[sf.Name] = f
			}
			for _, n := range []string{strings.ToLower(name), strings.ToLower(sf.Name)} {
				if _, ok := si.byName[n]; !ok {
					si.byName[n] = f
				}
			}
		}
	}
	walk(t, nil)

	actual, _ := fieldCache.LoadOrStore(t, si)
	return actual.(*structInfo)
}

// parseTag splits an sdt struct tag into its name and options.
func parseTag(tag string) (string, map[string]bool) {
	parts := strings.Split(tag, ",")
	opts := make(map[string]bool)
	for _, part := range parts[1:] {
		opts[strings.TrimSpace(part)] = true
	}
	return parts[0], opts
}
