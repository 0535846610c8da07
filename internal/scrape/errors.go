package scrape

import (
	"errors"
	"fmt"
	"strings"
)

// ErrChallengeTimeout signals that the anti-automation challenge did not clear
// within its budget and the page never exposed the required structure.
var ErrChallengeTimeout = errors.New("challenge page did not resolve")

// ErrNavigationTimeout signals that a page load exhausted its own navigation
// budget while the caller was still waiting. It is distinct from the caller's
// context expiring: the slow page is worth another attempt, an abandoned job
// is not.
var ErrNavigationTimeout = errors.New("page navigation timed out")

// InvalidStructureError is raised when a loaded page is missing elements the
// extractor depends on. It is distinct from a timeout: both are retryable (a
// partial load often resolves on retry), but a persistent structure failure
// surfaces to the operator with a diagnostic instead of a bare trace.
type InvalidStructureError struct {
	URL     string
	Missing []string
	Hint    string
}

func (e *InvalidStructureError) Error() string {
	return fmt.Sprintf("invalid page structure at %s: missing %s", e.URL, strings.Join(e.Missing, ", "))
}

// Diagnostic renders the operator-facing expected/actual/hint payload.
func (e *InvalidStructureError) Diagnostic() map[string]string {
	return map[string]string{
		"expected": "match identity, score and statistics container present",
		"actual":   "missing: " + strings.Join(e.Missing, ", "),
		"hint":     e.Hint,
	}
}

// IsInvalidStructure reports whether err wraps an InvalidStructureError.
func IsInvalidStructure(err error) bool {
	var ise *InvalidStructureError
	return errors.As(err, &ise)
}
