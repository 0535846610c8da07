package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		a    string
		b    string
	}{
		{"accents", "José María", "jose maria"},
		{"whitespace", "  Gabriel   Barbosa ", "gabriel barbosa"},
		{"cedilla", "Gonçalves", "goncalves"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, NormalizeName(tc.b), NormalizeName(tc.a))
		})
	}
	require.NotEqual(t, NormalizeName("Pedro"), NormalizeName("Paulo"))
}
