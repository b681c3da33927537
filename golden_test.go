package sdt_test

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	sdt "github.com/KimNorgaard/go-sdt"
)

var update = flag.Bool("update", false, "update golden files")

// TestGolden decodes every testdata/*.sdt file and compares its formatted
// report with the matching .golden file.
func TestGolden(t *testing.T) {
	files, err := filepath.Glob("testdata/*.sdt")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(file, func(t *testing.T) {
			src, err := os.ReadFile(file)
			require.NoError(t, err)

			c := sdt.Unmarshal(string(src))
			actual := sdt.Format(c)

			goldenFile := strings.Replace(file, ".sdt", ".golden", 1)
			if *update {
				err := os.WriteFile(goldenFile, []byte(actual), 0o644)
				require.NoError(t, err)
			}

			expected, err := os.ReadFile(goldenFile)
			require.NoError(t, err, "Golden file not found. Run with -update to create it.")
			expected = bytes.TrimSuffix(expected, []byte("\n"))
			require.Equal(t, string(expected), actual, "Formatted output does not match golden file.")

			// Re-marshalling must not change the report.
			out, err := sdt.Marshal(c)
			require.NoError(t, err)
			require.Equal(t, actual, sdt.Format(sdt.Unmarshal(out)))
		})
	}
}

// TestGoldenCanonical checks that well-formed inputs re-marshal byte for byte.
func TestGoldenCanonical(t *testing.T) {
	for _, name := range []string{"mymap", "nested", "mixed", "unresolved"} {
		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join("testdata", name+".sdt"))
			require.NoError(t, err)

			out, err := sdt.Marshal(sdt.Unmarshal(string(src)))
			require.NoError(t, err)
			require.Equal(t, string(src), out)
		})
	}
}
