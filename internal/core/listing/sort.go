package listing

import (
	"fmt"

	"Mosaic/internal/core/content"
)

// SortMode selects an ordering strategy and the cursor shape that goes with it
type SortMode string

const (
	SortLatest       SortMode = "latest"
	SortOldest       SortMode = "oldest"
	SortPopular      SortMode = "popular"
	SortPopularToday SortMode = "popular_today"
	SortFollowing    SortMode = "following"
	SortSaved        SortMode = "saved"
	SortSearch       SortMode = "search"
)

// KeyKind is the type of sort key a mode paginates on
type KeyKind int

const (
	KeyTimestamp KeyKind = iota
	KeyCount
	KeyOffset
)

// keyKinds maps each mode to the key its cursors encode.
// Timestamp and count keys never share a mode.
var keyKinds = map[SortMode]KeyKind{
	SortLatest:       KeyTimestamp,
	SortOldest:       KeyTimestamp,
	SortFollowing:    KeyTimestamp,
	SortSaved:        KeyTimestamp,
	SortPopular:      KeyCount,
	SortPopularToday: KeyCount,
	SortSearch:       KeyOffset,
}

// KeyKind returns the sort key type for the mode
func (m SortMode) KeyKind() (KeyKind, bool) {
	k, ok := keyKinds[m]
	return k, ok
}

// ParseSortMode validates a mode string
func ParseSortMode(s string) (SortMode, error) {
	m := SortMode(s)
	if _, ok := keyKinds[m]; !ok {
		return "", content.NewValidationError("sort", fmt.Sprintf("unknown sort mode %q", s))
	}
	return m, nil
}

// SearchSort orders search hits
type SearchSort string

const (
	SearchByRelevance SearchSort = "relevance"
	SearchByLatest    SearchSort = "latest"
	SearchByPopular   SearchSort = "popular"
)

// ParseSearchSort validates a search sort, defaulting to relevance
func ParseSearchSort(s string) (SearchSort, error) {
	switch SearchSort(s) {
	case "":
		return SearchByRelevance, nil
	case SearchByRelevance, SearchByLatest, SearchByPopular:
		return SearchSort(s), nil
	default:
		return "", content.NewValidationError("sort", "sort must be one of: relevance, latest, popular")
	}
}
