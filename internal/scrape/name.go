package scrape

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nameTransformer = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeName folds a player name into a stable comparison key: accents
// stripped, lowercased, inner whitespace collapsed. Two sources spelling the
// same player differently ("José María" vs "jose maria") land on one key.
func NormalizeName(name string) string {
	folded, _, err := transform.String(nameTransformer, name)
	if err != nil {
		folded = name
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
