package match

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ryanm101/romcatalog/internal/catalog"
)

// yearTolerance is the accepted distance between the local year and the
// catalog's release year.
const yearTolerance = 1

var yearPattern = regexp.MustCompile(`\((\d{4})\)`)

// CleanQueryName drops release tags: everything from the first '[' and then
// from the first '('. If that leaves nothing, the original name is kept.
func CleanQueryName(name string) string {
	cleaned := name
	if i := strings.IndexByte(cleaned, '['); i >= 0 {
		cleaned = cleaned[:i]
	}
	if i := strings.IndexByte(cleaned, '('); i >= 0 {
		cleaned = cleaned[:i]
	}
	if strings.TrimSpace(cleaned) == "" {
		return name
	}
	return cleaned
}

// ExtractYear parses a "(YYYY)" tag out of a raw title. It returns 0 when
// there is none.
func ExtractYear(title string) int {
	m := yearPattern.FindStringSubmatch(title)
	if m == nil {
		return 0
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return year
}

// QueryYear picks the year used for matching: a "(YYYY)" tag in the raw
// title wins over the entity's known production year.
func QueryYear(rawTitle string, knownYear int) int {
	if y := ExtractYear(rawTitle); y != 0 {
		return y
	}
	return knownYear
}

// Match returns the remote id of the first candidate whose normalized
// title equals the normalized query and whose release year is within one
// year of queryYear. Year 0 means unknown and disables the year check.
// Candidates are taken in the order given; there is no re-ranking.
func Match(queryName string, queryYear int, candidates []catalog.SearchResult) (string, bool) {
	key := Normalize(CleanQueryName(queryName))

	for _, c := range candidates {
		if Normalize(c.Title) != key {
			continue
		}
		if queryYear != 0 && c.ReleaseYear != 0 && abs(c.ReleaseYear-queryYear) > yearTolerance {
			continue
		}
		return c.RemoteID, true
	}
	return "", false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
