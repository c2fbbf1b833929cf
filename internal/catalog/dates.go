package catalog

import (
	"strings"
	"time"
)

// dateLayouts are the release date forms seen in catalog documents and
// EmulationStation gamelists.
var dateLayouts = []string{
	"01/02/2006",
	"2006-01-02",
	"20060102T150405",
	"2006",
}

// ParseDate parses a catalog release date. The zero time and false are
// returned for empty or unrecognized values.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseYear returns the year of a catalog release date, or 0.
func ParseYear(s string) int {
	t, ok := ParseDate(s)
	if !ok {
		return 0
	}
	return t.Year()
}
