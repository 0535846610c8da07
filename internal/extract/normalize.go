package extract

import (
	"strings"
	"time"
)

var ptMonths = map[string]time.Month{
	"janeiro":   time.January,
	"fevereiro": time.February,
	"março":     time.March,
	"marco":     time.March,
	"abril":     time.April,
	"maio":      time.May,
	"junho":     time.June,
	"julho":     time.July,
	"agosto":    time.August,
	"setembro":  time.September,
	"outubro":   time.October,
	"novembro":  time.November,
	"dezembro":  time.December,
}

// ParseKickoff reads the kickoff formats the report pages use, numeric
// "02/11/2025 16:00" first, then the written-out "2 de novembro de 2025 16:00".
func ParseKickoff(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, layout := range []string{"02/01/2006 15:04", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return parseWrittenKickoff(s)
}

func parseWrittenKickoff(s string) *time.Time {
	fields := strings.Fields(strings.ToLower(s))
	var parts []string
	for _, f := range fields {
		if f != "de" {
			parts = append(parts, strings.Trim(f, ","))
		}
	}
	if len(parts) < 3 {
		return nil
	}
	day, ok1 := atoi(parts[0])
	month, ok2 := ptMonths[parts[1]]
	year, ok3 := atoi(parts[2])
	if !ok1 || !ok2 || !ok3 {
		return nil
	}
	hour, minute := 0, 0
	if len(parts) >= 4 {
		if hm := strings.SplitN(strings.ReplaceAll(parts[3], "h", ":"), ":", 2); len(hm) == 2 {
			if h, ok := atoi(hm[0]); ok {
				if m, ok := atoi(hm[1]); ok {
					hour, minute = h, m
				}
			}
		}
	}
	t := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	return &t
}

func atoi(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// StripLabel removes a leading "Label:" prefix commonly attached to venue and
// referee lines.
func StripLabel(raw string) string {
	if idx := strings.Index(raw, ":"); idx >= 0 {
		return strings.TrimSpace(raw[idx+1:])
	}
	return strings.TrimSpace(raw)
}
