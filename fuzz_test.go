//go:build go1.18

package sdt_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	sdt "github.com/KimNorgaard/go-sdt"
)

func FuzzRoundTrip(f *testing.F) {
	seedFiles, err := filepath.Glob("testdata/*.sdt")
	if err != nil {
		f.Fatalf("failed to find seed files: %v", err)
	}
	for _, file := range seedFiles {
		data, err := os.ReadFile(file)
		if err != nil {
			f.Fatalf("failed to read seed file %s: %v", file, err)
		}
		f.Add(string(data))
	}

	f.Add("")
	f.Add("@SDT/$0:0:")
	f.Add("@SDT/$S:3:abc")
	f.Add("@SDT/[1:13:@SDT/$S:3:XXX")
	f.Add("@SDT/{:17::1:A@SDT/$S:3:abc")
	f.Add("@SDT/%:28::3:X/Y@SDT/$S:1:1@SDT/$S:1:2")
	f.Add("@SDT/$S:24:@SDT/[1:13:@SDT/$S:3:XXX")
	f.Add("@SDT/{:17::1.:A@SDT/$S:3:abc")

	f.Fuzz(func(t *testing.T, input string) {
		// Decoding never fails; any panic is a bug.
		c := sdt.Unmarshal(input)
		_ = sdt.Format(c)

		// Whatever was decoded must marshal.
		out, err := sdt.Marshal(c)
		require.NoError(t, err, "Marshal failed for a decoded context")

		// Our own output must decode to the same value and marshal to the
		// same bytes again.
		again := sdt.Unmarshal(out)
		out2, err := sdt.Marshal(again)
		require.NoError(t, err)
		require.Equal(t, out, out2, "marshalled data is not stable across a round trip")
		require.Equal(t, sdt.Format(again), sdt.Format(sdt.Unmarshal(out2)))
	})
}
