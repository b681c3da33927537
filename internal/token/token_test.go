package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		input    byte
		expected Type
	}{
		{'$', SCALAR},
		{'[', LIST},
		{'{', MAP},
		{'%', INSTANCE},
		{'*', CONTEXT},
		{'S', ILLEGAL},
		{']', ILLEGAL},
		{0, ILLEGAL},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			actual := Lookup(tt.input)
			require.Equal(t, tt.expected, actual)
		})
	}
}

func TestMarkers(t *testing.T) {
	require.Equal(t, "@SDT/$0:0:", NoneMarker)
	require.Equal(t, "@SDT/$S", ScalarMarker)
	require.Equal(t, "@SDT/*", ContextMarker)
	require.Equal(t, "map", MAP.String())
	require.Equal(t, "illegal", Type('x').String())
}
