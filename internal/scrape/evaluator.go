package scrape

import "context"

// Evaluator runs a JavaScript expression in a live page and decodes the
// result into out. Extraction strategies depend on this instead of a browser
// handle so they can be exercised against canned page fixtures.
type Evaluator interface {
	Evaluate(ctx context.Context, js string, out any) error
}
