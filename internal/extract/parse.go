// Package extract pulls structured match data out of rendered report pages.
// Every facet runs an ordered chain of strategies so a layout change in one
// page variant degrades to the next known variant instead of failing.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/brstats/statshub/internal/scrape"
)

var (
	ratioRe   = regexp.MustCompile(`^(\d+)\s*/\s*(\d+)(?:\s*\((\d+(?:[.,]\d+)?)%\))?$`)
	percentRe = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*%$`)
	minuteRe  = regexp.MustCompile(`^(\d+)(?:\s*\+\s*(\d+))?\s*'?$`)
)

// ParseValue converts a raw cell string into a typed value: nil for the
// placeholder dash, Ratio for "12/20 (60%)" shapes, float64 for percentages
// and decimal-comma numbers, int64 for integers. Anything else comes back as
// the trimmed string.
func ParseValue(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" || s == "–" {
		return nil
	}

	if m := ratioRe.FindStringSubmatch(s); m != nil {
		count, _ := strconv.Atoi(m[1])
		attempts, _ := strconv.Atoi(m[2])
		pct := 0.0
		if m[3] != "" {
			pct, _ = strconv.ParseFloat(strings.ReplaceAll(m[3], ",", "."), 64)
		} else if attempts > 0 {
			pct = float64(count) / float64(attempts) * 100
		}
		return scrape.Ratio{Count: count, Attempts: attempts, Percentage: pct}
	}

	if m := percentRe.FindStringSubmatch(s); m != nil {
		pct, _ := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		return pct
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}

	decimal := strings.ReplaceAll(s, ",", ".")
	if strings.Count(decimal, ".") == 1 {
		if f, err := strconv.ParseFloat(decimal, 64); err == nil {
			return f
		}
	}

	return s
}

// ParseMinute splits a raw minute marker like "45+2'" into the regulation
// minute and stoppage component. Unparseable input reports ok=false.
func ParseMinute(raw string) (minute, stoppage int, ok bool) {
	m := minuteRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, 0, false
	}
	minute, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		stoppage, _ = strconv.Atoi(m[2])
	}
	return minute, stoppage, true
}

// ParseOptionalInt returns a pointer for a plain integer string, nil for the
// dash placeholder or anything non-numeric.
func ParseOptionalInt(raw string) *int {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// ParseRating reads a decimal-comma rating like "7,5". Grades such as "MVP"
// come back in grade with a nil score.
func ParseRating(raw string) (score *float64, grade string) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" {
		return nil, ""
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil, s
	}
	return &f, ""
}
