package sdt_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	sdt "github.com/KimNorgaard/go-sdt"
)

func TestMap(t *testing.T) {
	m := sdt.NewMap()
	m.Set("b", sdt.Scalar("1"))
	m.Set("a", nil)
	m.Set("b", sdt.Scalar("2"))

	require.Equal(t, 2, m.Len())
	require.Equal(t, []string{"b", "a"}, m.Keys())

	v, ok := m.Get("b")
	require.True(t, ok)
	require.Equal(t, sdt.Scalar("2"), v)

	v, ok = m.Get("a")
	require.True(t, ok)
	require.Equal(t, sdt.None{}, v)

	_, ok = m.Get("missing")
	require.False(t, ok)

	m.Delete("b")
	m.Delete("missing")
	require.False(t, m.Has("b"))
	require.Equal(t, []string{"a"}, m.Keys())

	var keys []string
	for k := range m.All() {
		keys = append(keys, k)
	}
	require.Equal(t, []string{"a"}, keys)
}

func TestMap_ZeroValue(t *testing.T) {
	var m sdt.Map
	require.Equal(t, 0, m.Len())
	m.Set("a", sdt.Scalar("1"))
	require.True(t, m.Has("a"))
}

func TestKind(t *testing.T) {
	testCases := []struct {
		value    sdt.Value
		kind     sdt.Kind
		expected string
	}{
		{sdt.None{}, sdt.KindNone, "none"},
		{sdt.Scalar("x"), sdt.KindScalar, "scalar"},
		{sdt.List{}, sdt.KindList, "list"},
		{sdt.NewMap(), sdt.KindMap, "map"},
		{sdt.NewInstance("X/Y"), sdt.KindInstance, "map-class instance"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			require.Equal(t, tc.kind, tc.value.Kind())
			require.Equal(t, tc.expected, tc.value.Kind().String())
		})
	}
	require.Equal(t, "unknown", sdt.Kind(42).String())
}

func TestEqual(t *testing.T) {
	inst := func(class string) sdt.Value {
		i := sdt.NewInstance(class)
		i.Set("a", sdt.Scalar("1"))
		return i
	}

	testCases := []struct {
		name  string
		a, b  sdt.Value
		equal bool
	}{
		{"nil and none", nil, sdt.None{}, true},
		{"scalars", sdt.Scalar("a"), sdt.Scalar("a"), true},
		{"different scalars", sdt.Scalar("a"), sdt.Scalar("b"), false},
		{"scalar and none", sdt.Scalar(""), sdt.None{}, false},
		{"lists", sdt.List{sdt.Scalar("a")}, sdt.List{sdt.Scalar("a")}, true},
		{"list lengths", sdt.List{sdt.Scalar("a")}, sdt.List{}, false},
		{"maps", newMap("a", sdt.Scalar("1")), newMap("a", sdt.Scalar("1")), true},
		{
			"map order matters",
			newMap("a", sdt.Scalar("1"), "b", sdt.Scalar("2")),
			newMap("b", sdt.Scalar("2"), "a", sdt.Scalar("1")),
			false,
		},
		{"instances", inst("X/Y"), inst("X/Y"), true},
		{"instance classes", inst("X/Y"), inst("X/Z"), false},
		{"instance and map", inst("X/Y"), newMap("a", sdt.Scalar("1")), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.equal, sdt.Equal(tc.a, tc.b))
			require.Equal(t, tc.equal, sdt.Equal(tc.b, tc.a))
		})
	}
}

func TestMap_AsInstance(t *testing.T) {
	m := newMap("name", sdt.Scalar("TestA"), "staf-map-class-name", sdt.Scalar("Test/MyMap"), "exec", sdt.Scalar("a.py"))
	inst, ok := m.AsInstance()
	require.True(t, ok)
	require.Equal(t, "Test/MyMap", inst.Class)
	require.Equal(t, []string{"name", "exec"}, inst.Keys())

	_, ok = newMap("name", sdt.Scalar("TestA")).AsInstance()
	require.False(t, ok)

	// The class name must be a scalar.
	_, ok = newMap("staf-map-class-name", sdt.List{}).AsInstance()
	require.False(t, ok)
}
