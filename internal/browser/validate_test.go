package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brstats/statshub/internal/scrape"
)

type staticEvaluator struct {
	result any
	err    error
}

func (s *staticEvaluator) Evaluate(_ context.Context, _ string, out any) error {
	if s.err != nil {
		return s.err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(s.result)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func TestValidateStructure_AllPresent(t *testing.T) {
	t.Parallel()
	ev := &staticEvaluator{result: structureProbe{Identity: true, Score: true, Stats: true}}
	require.NoError(t, ValidateStructure(context.Background(), ev, "https://example.test/m/1"))
}

func TestValidateStructure_ReportsEveryMissingAnchor(t *testing.T) {
	t.Parallel()
	ev := &staticEvaluator{result: structureProbe{Identity: true}}

	err := ValidateStructure(context.Background(), ev, "https://example.test/m/1")
	require.True(t, scrape.IsInvalidStructure(err))

	var ise *scrape.InvalidStructureError
	require.ErrorAs(t, err, &ise)
	require.Equal(t, "https://example.test/m/1", ise.URL)
	require.Equal(t, []string{"score", "statistics container"}, ise.Missing)

	diag := ise.Diagnostic()
	require.Contains(t, diag["actual"], "score")
	require.NotEmpty(t, diag["hint"])
}

func TestResolveReport_ToleratesVendorMentionOnRealPage(t *testing.T) {
	t.Parallel()
	ev := &staticEvaluator{result: structureProbe{Identity: true, Score: true, Stats: true}}

	navErr := fmt.Errorf("navigate https://example.test/m/1: %w", scrape.ErrChallengeTimeout)
	require.NoError(t, resolveReport(context.Background(), ev, "https://example.test/m/1", navErr))
}

func TestResolveReport_EscalatesWhenStructureAbsent(t *testing.T) {
	t.Parallel()
	ev := &staticEvaluator{result: structureProbe{}}

	navErr := fmt.Errorf("navigate https://example.test/m/1: %w", scrape.ErrChallengeTimeout)
	err := resolveReport(context.Background(), ev, "https://example.test/m/1", navErr)
	require.ErrorIs(t, err, scrape.ErrChallengeTimeout)
}

func TestResolveReport_PassesThroughOtherOutcomes(t *testing.T) {
	t.Parallel()

	boom := fmt.Errorf("navigate https://example.test/m/1: %w", scrape.ErrNavigationTimeout)
	err := resolveReport(context.Background(), &staticEvaluator{}, "https://example.test/m/1", boom)
	require.ErrorIs(t, err, scrape.ErrNavigationTimeout)

	ev := &staticEvaluator{result: structureProbe{Identity: true}}
	err = resolveReport(context.Background(), ev, "https://example.test/m/1", nil)
	require.True(t, scrape.IsInvalidStructure(err))
}
