package sdt_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	sdt "github.com/KimNorgaard/go-sdt"
)

type testRecord struct {
	Name     string `sdt:"name"`
	Exec     string `sdt:"exec,omitempty"`
	Internal string `sdt:"-"`
}

type failingMarshaler struct{}

func (failingMarshaler) MarshalSDT() (sdt.Value, error) { return nil, errors.New("nope") }

// status marshals itself as a map-class instance.
type status struct {
	Code int
}

func (s status) MarshalSDT() (sdt.Value, error) {
	inst := sdt.NewInstance("Run/Status")
	inst.Set("code", sdt.Scalar(strings.Repeat("I", s.Code)))
	return inst, nil
}

func (s *status) UnmarshalSDT(v sdt.Value) error {
	inst, ok := v.(*sdt.Instance)
	if !ok {
		return errors.New("not an instance")
	}
	code, _ := inst.Get("code")
	s.Code = len(code.(sdt.Scalar))
	return nil
}

// upper is a text marshaler that stores its value in upper case.
type upper string

func (u upper) MarshalText() ([]byte, error) { return []byte(strings.ToUpper(string(u))), nil }

func (u *upper) UnmarshalText(b []byte) error {
	*u = upper(strings.ToLower(string(b)))
	return nil
}

type Base struct {
	ID string `sdt:"id"`
}

type embedding struct {
	Base
	Title string
	Tags  []string          `sdt:"tags,omitempty"`
	Attrs map[string]string `sdt:"attrs,omitempty"`
	Ptr   *int              `sdt:"ptr"`
	Raw   sdt.Value         `sdt:"raw"`
}

func TestValueOf(t *testing.T) {
	seven := 7
	testCases := []struct {
		name     string
		input    any
		expected sdt.Value
	}{
		{"nil", nil, sdt.None{}},
		{"nil pointer", (*int)(nil), sdt.None{}},
		{"pointer", &seven, sdt.Scalar("7")},
		{"bool", true, sdt.Scalar("true")},
		{"negative int", -42, sdt.Scalar("-42")},
		{"uint8", uint8(255), sdt.Scalar("255")},
		{"float64", 1.5, sdt.Scalar("1.5")},
		{"float32", float32(0.1), sdt.Scalar("0.1")},
		{"bytes", []byte("raw"), sdt.Scalar("raw")},
		{"nil slice", []string(nil), sdt.None{}},
		{"slice", []int{1, 2}, sdt.List{sdt.Scalar("1"), sdt.Scalar("2")}},
		{"array", [1]string{"a"}, sdt.List{sdt.Scalar("a")}},
		{"nil map", map[string]int(nil), sdt.None{}},
		{"value passes through", sdt.Scalar("x"), sdt.Scalar("x")},
		{"text marshaler", upper("abc"), sdt.Scalar("ABC")},
		{"marshaler", status{Code: 3}, func() sdt.Value {
			inst := sdt.NewInstance("Run/Status")
			inst.Set("code", sdt.Scalar("III"))
			return inst
		}()},
		{"struct", testRecord{Name: "TestA", Exec: "/x", Internal: "hidden"}, newMap(
			"name", sdt.Scalar("TestA"),
			"exec", sdt.Scalar("/x"),
		)},
		{"embedded struct", embedding{Base: Base{ID: "1"}, Title: "t"}, newMap(
			"id", sdt.Scalar("1"),
			"Title", sdt.Scalar("t"),
			"ptr", sdt.None{},
			"raw", sdt.None{},
		)},
		{"any slice", []any{"a", nil, []any{}}, sdt.List{sdt.Scalar("a"), sdt.None{}, sdt.List{}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := sdt.ValueOf(tc.input)
			require.NoError(t, err)
			requireValue(t, tc.expected, v)
		})
	}
}

func TestValueOf_Errors(t *testing.T) {
	_, err := sdt.ValueOf(complex(1, 2))
	require.EqualError(t, err, "sdt: unsupported type: complex128")

	_, err = sdt.ValueOf(func() {})
	require.EqualError(t, err, "sdt: unsupported type: func()")

	_, err = sdt.ValueOf([]any{[]any{"x"}}, sdt.MaxDepth(2))
	require.EqualError(t, err, "sdt: exceeded max depth of 2")

	var marshalerErr *sdt.MarshalerError
	_, err = sdt.ValueOf([]failingMarshaler{{}})
	require.True(t, errors.As(err, &marshalerErr))
	require.EqualError(t, marshalerErr.Unwrap(), "nope")
}

func TestUnpack(t *testing.T) {
	t.Run("struct", func(t *testing.T) {
		var r testRecord
		err := sdt.Unpack(newMap("name", sdt.Scalar("TestA"), "EXEC", sdt.Scalar("/x"), "other", sdt.Scalar("y")), &r)
		require.NoError(t, err)
		require.Equal(t, testRecord{Name: "TestA", Exec: "/x"}, r)
	})

	t.Run("instance into struct", func(t *testing.T) {
		var r testRecord
		require.NoError(t, sdt.Unpack(myMapInstance("TestA", "/tests/TestA.py"), &r))
		require.Equal(t, testRecord{Name: "TestA", Exec: "/tests/TestA.py"}, r)
	})

	t.Run("embedded struct and pointers", func(t *testing.T) {
		var e embedding
		err := sdt.Unpack(newMap(
			"id", sdt.Scalar("1"),
			"title", sdt.Scalar("t"),
			"tags", sdt.List{sdt.Scalar("a")},
			"attrs", newMap("k", sdt.Scalar("v")),
			"ptr", sdt.Scalar("7"),
			"raw", sdt.List{},
		), &e)
		require.NoError(t, err)
		require.Equal(t, "1", e.ID)
		require.Equal(t, "t", e.Title)
		require.Equal(t, []string{"a"}, e.Tags)
		require.Equal(t, map[string]string{"k": "v"}, e.Attrs)
		require.NotNil(t, e.Ptr)
		require.Equal(t, 7, *e.Ptr)
		require.Equal(t, sdt.List{}, e.Raw)
	})

	t.Run("scalars", func(t *testing.T) {
		var (
			b  bool
			i  int64
			u  uint16
			f  float32
			bs []byte
		)
		require.NoError(t, sdt.Unpack(sdt.Scalar("true"), &b))
		require.NoError(t, sdt.Unpack(sdt.Scalar("-9"), &i))
		require.NoError(t, sdt.Unpack(sdt.Scalar("65535"), &u))
		require.NoError(t, sdt.Unpack(sdt.Scalar("2.5"), &f))
		require.NoError(t, sdt.Unpack(sdt.Scalar("raw"), &bs))
		require.True(t, b)
		require.Equal(t, int64(-9), i)
		require.Equal(t, uint16(65535), u)
		require.Equal(t, float32(2.5), f)
		require.Equal(t, []byte("raw"), bs)
	})

	t.Run("none zeroes", func(t *testing.T) {
		s := "keep"
		require.NoError(t, sdt.Unpack(sdt.None{}, &s))
		require.Equal(t, "", s)

		m := map[string]int{"a": 1}
		require.NoError(t, sdt.Unpack(sdt.None{}, &m))
		require.Nil(t, m)
	})

	t.Run("existing map is replaced", func(t *testing.T) {
		m := map[string]string{"old": "x"}
		require.NoError(t, sdt.Unpack(newMap("new", sdt.Scalar("y")), &m))
		require.Equal(t, map[string]string{"new": "y"}, m)
	})

	t.Run("array", func(t *testing.T) {
		var a [2]string
		require.NoError(t, sdt.Unpack(sdt.List{sdt.Scalar("a"), sdt.Scalar("b")}, &a))
		require.Equal(t, [2]string{"a", "b"}, a)
	})

	t.Run("interface", func(t *testing.T) {
		var v any
		require.NoError(t, sdt.Unpack(sdt.Unmarshal(myMapContext).Root(), &v))
		require.Equal(t, []any{
			map[string]any{"name": "TestA", "exec": "/tests/TestA.py"},
			map[string]any{"name": "TestB", "exec": "/tests/TestB.sh"},
		}, v)

		require.NoError(t, sdt.Unpack(sdt.None{}, &v))
		require.Nil(t, v)
	})

	t.Run("custom unmarshalers", func(t *testing.T) {
		var s status
		v, err := sdt.ValueOf(status{Code: 2})
		require.NoError(t, err)
		require.NoError(t, sdt.Unpack(v, &s))
		require.Equal(t, 2, s.Code)

		var u upper
		require.NoError(t, sdt.Unpack(sdt.Scalar("ABC"), &u))
		require.Equal(t, upper("abc"), u)
	})

	t.Run("context", func(t *testing.T) {
		var records []testRecord
		require.NoError(t, sdt.Unmarshal(myMapContext).Unpack(&records))
		require.Equal(t, []testRecord{
			{Name: "TestA", Exec: "/tests/TestA.py"},
			{Name: "TestB", Exec: "/tests/TestB.sh"},
		}, records)
	})
}

func TestUnpack_Errors(t *testing.T) {
	testCases := []struct {
		name        string
		input       sdt.Value
		target      func() any
		expectedErr string
	}{
		{
			name:        "list into string",
			input:       sdt.List{},
			target:      func() any { return new(string) },
			expectedErr: "sdt: cannot unpack list into Go value of type string",
		},
		{
			name:        "map into slice",
			input:       sdt.NewMap(),
			target:      func() any { return new([]string) },
			expectedErr: "sdt: cannot unpack map into Go value of type []string",
		},
		{
			name:        "scalar into struct",
			input:       sdt.Scalar("x"),
			target:      func() any { return new(testRecord) },
			expectedErr: "sdt: cannot unpack scalar into Go value of type sdt_test.testRecord",
		},
		{
			name:        "text into int",
			input:       sdt.Scalar("abc"),
			target:      func() any { return new(int) },
			expectedErr: `sdt: cannot unpack "abc" into Go value of type int`,
		},
		{
			name:        "text into bool",
			input:       sdt.Scalar("yes"),
			target:      func() any { return new(bool) },
			expectedErr: `sdt: cannot unpack "yes" into Go value of type bool`,
		},
		{
			name:        "overflow",
			input:       sdt.Scalar("300"),
			target:      func() any { return new(int8) },
			expectedErr: `sdt: value "300" overflows Go value of type int8`,
		},
		{
			name:        "negative into unsigned",
			input:       sdt.Scalar("-1"),
			target:      func() any { return new(uint) },
			expectedErr: `sdt: cannot unpack "-1" into Go value of type uint`,
		},
		{
			name:        "array length",
			input:       sdt.List{sdt.Scalar("a")},
			target:      func() any { return new([2]string) },
			expectedErr: "sdt: cannot unpack list of length 1 into Go array of length 2",
		},
		{
			name:        "non-string map key",
			input:       sdt.NewMap(),
			target:      func() any { return new(map[int]string) },
			expectedErr: "sdt: cannot unpack map into map with non-string key type int",
		},
		{
			name:        "failing unmarshaler",
			input:       sdt.Scalar("x"),
			target:      func() any { return new(status) },
			expectedErr: "sdt: error calling unmarshaler for type *sdt_test.status: not an instance",
		},
		{
			name:        "non-pointer",
			input:       sdt.Scalar("x"),
			target:      func() any { return "x" },
			expectedErr: "sdt: Unpack(non-pointer string or nil)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := sdt.Unpack(tc.input, tc.target())
			require.EqualError(t, err, tc.expectedErr)
		})
	}
}

func TestGoRoundTrip(t *testing.T) {
	in := []testRecord{
		{Name: "TestA", Exec: "/tests/TestA.py"},
		{Name: "TestB"},
	}

	data, err := sdt.Marshal(in)
	require.NoError(t, err)

	var out []testRecord
	require.NoError(t, sdt.Unmarshal(data).Unpack(&out))
	require.Equal(t, in, out)
}
