package jobs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Page dump filenames follow <search_id>-<query>-page<N>.json, where the
// search id is a concatenated timestamp: YYYYMMDDHHMMSS plus one to six
// fractional-second digits.
var searchFilenamePattern = regexp.MustCompile(`^(.+?)-(.+?)-page(\d+)\.json$`)

// SearchMeta is the provenance extracted from a page dump filename.
type SearchMeta struct {
	SearchID       string
	QueryTimestamp time.Time
	Query          string
	Page           int
}

// ParseSearchFilename extracts search metadata from a dump filename. A
// filename that does not match the convention, or whose search id is not a
// parseable timestamp, returns an error; callers skip such files rather
// than aborting the batch.
func ParseSearchFilename(name string) (SearchMeta, error) {
	m := searchFilenamePattern.FindStringSubmatch(name)
	if m == nil {
		return SearchMeta{}, fmt.Errorf("filename %q does not match <search_id>-<query>-page<N>.json", name)
	}

	ts, err := parseSearchID(m[1])
	if err != nil {
		return SearchMeta{}, fmt.Errorf("filename %q: %w", name, err)
	}

	page, err := strconv.Atoi(m[3])
	if err != nil {
		return SearchMeta{}, fmt.Errorf("filename %q: parse page: %w", name, err)
	}

	return SearchMeta{
		SearchID:       m[1],
		QueryTimestamp: ts,
		Query:          m[2],
		Page:           page,
	}, nil
}

func parseSearchID(id string) (time.Time, error) {
	if len(id) < 15 || len(id) > 20 {
		return time.Time{}, fmt.Errorf("search id %q is not a timestamp", id)
	}
	base, err := time.Parse("20060102150405", id[:14])
	if err != nil {
		return time.Time{}, fmt.Errorf("search id %q is not a timestamp: %w", id, err)
	}
	frac := id[14:]
	if len(frac) > 6 || strings.Trim(frac, "0123456789") != "" {
		return time.Time{}, fmt.Errorf("search id %q has a malformed fractional part", id)
	}
	micros, err := strconv.Atoi(frac + strings.Repeat("0", 6-len(frac)))
	if err != nil {
		return time.Time{}, fmt.Errorf("search id %q has a malformed fractional part: %w", id, err)
	}
	return base.Add(time.Duration(micros) * time.Microsecond), nil
}
