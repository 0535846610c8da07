package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseKickoff(t *testing.T) {
	t.Parallel()
	got := ParseKickoff("02/11/2025 16:00")
	require.NotNil(t, got)
	require.Equal(t, time.Date(2025, time.November, 2, 16, 0, 0, 0, time.UTC), *got)

	got = ParseKickoff("2 de novembro de 2025 16:00")
	require.NotNil(t, got)
	require.Equal(t, time.Date(2025, time.November, 2, 16, 0, 0, 0, time.UTC), *got)

	require.Nil(t, ParseKickoff(""))
	require.Nil(t, ParseKickoff("amanhã"))
}

func TestStripLabel(t *testing.T) {
	t.Parallel()
	require.Equal(t, "Maracanã", StripLabel("Estádio: Maracanã"))
	require.Equal(t, "Maracanã", StripLabel("Maracanã"))
}
