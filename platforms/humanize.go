package platforms

import (
	"strconv"
	"strings"
	"time"
)

// ParseViewerCount parses human-formatted viewer-count text scraped from an
// HTML-scrape adapter's page ("1.2k", "3M", "1,234"). Any parse failure
// yields 0, per spec: strip commas and whitespace, lowercase, then scale by
// the k/m suffix if present, else parse as a plain integer.
func ParseViewerCount(text string) uint32 {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "m")
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		return 0
	}
	return uint32(n * multiplier)
}

var relativeUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"year":   365 * 24 * time.Hour,
}

// ParseRelativeTime parses scraped "N units ago" text ("3 days ago",
// "streamed 1 week ago") into an absolute time relative to now. The second
// return is false if text doesn't match the pattern, so callers can leave
// the field at its zero value rather than report a bogus time.
func ParseRelativeTime(text string) (time.Time, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimSuffix(s, ".")
	idx := strings.Index(s, "ago")
	if idx == -1 {
		return time.Time{}, false
	}
	fields := strings.Fields(s[:idx])
	if len(fields) < 2 {
		return time.Time{}, false
	}
	amount, err := strconv.ParseFloat(fields[len(fields)-2], 64)
	if err != nil {
		return time.Time{}, false
	}
	unit := strings.TrimSuffix(fields[len(fields)-1], "s")
	d, ok := relativeUnits[unit]
	if !ok {
		return time.Time{}, false
	}
	return time.Now().Add(-time.Duration(amount * float64(d))), true
}
