// Package archive stores raw page snapshots so extraction bugs can be
// replayed against the HTML that produced them.
package archive

import (
	"context"
	"fmt"
)

// Archiver persists one rendered page and returns its storage URI.
type Archiver interface {
	Save(ctx context.Context, key string, html []byte) (string, error)
}

// SnapshotKey builds the canonical object path for a match page.
func SnapshotKey(league string, year, round int, matchID string) string {
	return fmt.Sprintf("snapshots/%s/%d/round-%d/%s.html", league, year, round, matchID)
}
