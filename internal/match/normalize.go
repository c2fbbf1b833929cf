// Package match resolves local titles to catalog records by comparing
// normalized name keys and release years.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	noiseChars  = "\"'!`?"
	spacerChars = "/,.:;\\(){}[]+-_=–*"
)

// romanSuffixes is checked longest first so " viii" is not read as " iii".
var romanSuffixes = []struct {
	roman  string
	arabic string
}{
	{" viii", " 8"},
	{" vii", " 7"},
	{" iii", " 3"},
	{" ix", " 9"},
	{" iv", " 4"},
	{" vi", " 6"},
	{" ii", " 2"},
	{" x", " 10"},
	{" v", " 5"},
	{" i", " 1"},
}

// Normalize returns the comparison key for a title. It is case, diacritic
// and punctuation insensitive, maps a trailing Roman numeral to Arabic and
// strips every "the" substring (including inside words such as "mother").
//
// The single pass is repeated until the key stops changing so that
// Normalize(Normalize(x)) == Normalize(x) holds even for titles like
// "Godfather II, The" where removing "the" exposes a new numeral suffix.
func Normalize(title string) string {
	key := normalizeOnce(title)
	for {
		next := normalizeOnce(key)
		if next == key {
			return key
		}
		key = next
	}
}

func normalizeOnce(title string) string {
	s := norm.NFKD.String(strings.ToLower(title))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Mn, r):
		case strings.ContainsRune(noiseChars, r):
		case strings.ContainsRune(spacerChars, r):
			b.WriteByte(' ')
		case r == '&':
			b.WriteString(" and ")
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()

	for _, rs := range romanSuffixes {
		if strings.HasSuffix(s, rs.roman) {
			s = strings.TrimSuffix(s, rs.roman) + rs.arabic
			break
		}
	}

	s = strings.ReplaceAll(s, "the", "")
	s = strings.ReplaceAll(s, " - ", ": ")

	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}
