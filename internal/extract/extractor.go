package extract

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/brstats/statshub/internal/scrape"
)

// errFacetMiss marks a strategy that ran but found nothing usable, so the
// chain moves to the next variant instead of surfacing an error.
var errFacetMiss = errors.New("strategy found no usable data")

type strategy struct {
	name string
	run  func(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error
}

type facet struct {
	name       string
	required   bool
	strategies []strategy
}

// Extractor walks every facet of a loaded report page and fills a
// MatchRecord. Identity and score are mandatory; the remaining facets degrade
// to whatever their strategy chains can recover.
type Extractor struct {
	logger *zap.Logger
	facets []facet
}

func New(logger *zap.Logger) *Extractor {
	return &Extractor{
		logger: logger,
		facets: []facet{
			{name: "matchinfo", required: true, strategies: matchInfoStrategies()},
			{name: "statistics", strategies: statisticsStrategies()},
			{name: "events", strategies: eventStrategies()},
			{name: "lineups", strategies: lineupStrategies()},
			{name: "ratings", strategies: ratingStrategies()},
			{name: "playerstats", strategies: playerStatStrategies()},
		},
	}
}

// Extract runs every facet chain against the page and reconciles the
// player-level facets into the lineups. The record keeps per-facet provenance
// in Extra so persisted rows show which variant produced them.
func (x *Extractor) Extract(ctx context.Context, ev scrape.Evaluator, rec *scrape.MatchRecord) error {
	provenance := map[string]string{}

	for _, f := range x.facets {
		won, err := x.runFacet(ctx, ev, f, rec)
		if err != nil {
			return err
		}
		if won == "" {
			if f.required {
				return &scrape.InvalidStructureError{
					URL:     rec.SourceURL,
					Missing: []string{f.name},
					Hint:    "no extraction variant matched this facet",
				}
			}
			x.logger.Warn("facet unavailable on page",
				zap.String("facet", f.name),
				zap.String("url", rec.SourceURL),
			)
			continue
		}
		provenance[f.name] = won
	}

	reconcilePlayers(rec)

	if rec.Extra == nil {
		rec.Extra = map[string]any{}
	}
	rec.Extra["extraction_strategies"] = provenance
	return nil
}

// runFacet tries strategies in order, returning the name of the first that
// produced data. Context errors abort the whole extraction.
func (x *Extractor) runFacet(ctx context.Context, ev scrape.Evaluator, f facet, rec *scrape.MatchRecord) (string, error) {
	for _, s := range f.strategies {
		err := s.run(ctx, ev, rec)
		if err == nil {
			return s.name, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !errors.Is(err, errFacetMiss) {
			x.logger.Debug("extraction strategy failed",
				zap.String("facet", f.name),
				zap.String("strategy", s.name),
				zap.Error(err),
			)
		}
	}
	return "", nil
}

func decodePayload(ctx context.Context, ev scrape.Evaluator, js string, out any) error {
	if err := ev.Evaluate(ctx, js, out); err != nil {
		return fmt.Errorf("%w: %w", errFacetMiss, err)
	}
	return nil
}
