package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brstats/statshub/internal/scrape"
)

func TestParseValue(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want any
	}{
		{"dash is nil", "-", nil},
		{"empty is nil", "  ", nil},
		{"integer", "12", int64(12)},
		{"decimal comma", "1,45", 1.45},
		{"decimal point", "0.82", 0.82},
		{"percentage", "60%", 60.0},
		{"ratio with percentage", "12/20 (60%)", scrape.Ratio{Count: 12, Attempts: 20, Percentage: 60}},
		{"ratio without percentage", "3/4", scrape.Ratio{Count: 3, Attempts: 4, Percentage: 75}},
		{"plain string", "alto", "alto"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ParseValue(tc.in))
		})
	}
}

func TestParseMinute(t *testing.T) {
	t.Parallel()
	minute, stoppage, ok := ParseMinute("45+2'")
	require.True(t, ok)
	require.Equal(t, 45, minute)
	require.Equal(t, 2, stoppage)

	minute, stoppage, ok = ParseMinute("90'")
	require.True(t, ok)
	require.Equal(t, 90, minute)
	require.Equal(t, 0, stoppage)

	_, _, ok = ParseMinute("HT")
	require.False(t, ok)
}

func TestParseOptionalInt(t *testing.T) {
	t.Parallel()
	require.Nil(t, ParseOptionalInt("-"))
	require.Nil(t, ParseOptionalInt("n/d"))

	n := ParseOptionalInt("42.158")
	require.NotNil(t, n)
	require.Equal(t, 42158, *n)
}

func TestParseRating(t *testing.T) {
	t.Parallel()
	score, grade := ParseRating("7,5")
	require.NotNil(t, score)
	require.Equal(t, 7.5, *score)
	require.Empty(t, grade)

	score, grade = ParseRating("MVP")
	require.Nil(t, score)
	require.Equal(t, "MVP", grade)

	score, grade = ParseRating("-")
	require.Nil(t, score)
	require.Empty(t, grade)
}
