package listing

import (
	"time"

	"Mosaic/internal/core/content"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 15
	MaxLimit     = 50
)

// Request is the generic per-request dispatch input
type Request struct {
	Cursor     *string
	ViewerID   *uuid.UUID
	AuthorID   *uuid.UUID
	Mode       SortMode
	Keyword    string
	SearchSort SearchSort
	Limit      int
}

// ListRequest carries the pagination input shared by every listing
type ListRequest struct {
	Cursor   *string    `json:"cursor,omitempty"`
	ViewerID *uuid.UUID `json:"-"` // from auth, never from query params
	Limit    int        `json:"limit"`
}

// SearchRequest is a keyword search over the text index
type SearchRequest struct {
	Cursor   *string    `json:"cursor,omitempty"`
	ViewerID *uuid.UUID `json:"-"`
	Keyword  string     `json:"q"`
	Sort     SearchSort `json:"sort"`
	Limit    int        `json:"limit"`
}

// Page is one page of a listing. Cursor is nil when no further page exists.
// TotalCount is only set for search listings.
type Page struct {
	Cursor     *string         `json:"cursor,omitempty"`
	TotalCount *int            `json:"totalCount,omitempty"`
	Items      []*content.Item `json:"items"`
}

// Filters narrow a range query
type Filters struct {
	AuthorID *uuid.UUID
	ViewerID *uuid.UUID // following / saved scope
	Since    *time.Time
}

// PageQuery is the input of a single QueryEngine.Page call
type PageQuery struct {
	After    *Position
	Filters  Filters
	Strategy SortMode
	Size     int
}

// EnginePage is the QueryEngine result. Last is the sort position of the final
// item (its sort key may not be an item field, e.g. save time).
type EnginePage struct {
	Last    *Position
	Items   []*content.Item
	HasMore bool
}

// RankedEntry is one id of a precomputed ranking with the score it was ranked by
type RankedEntry struct {
	ID    uuid.UUID `json:"id"`
	Score int64     `json:"score"`
}

// RankedIDList is the cache entry of a precomputed ranking. It is never
// updated in place; a miss recomputes and replaces it whole.
type RankedIDList struct {
	ComputedAt time.Time     `json:"computedAt"`
	Key        string        `json:"key"`
	Entries    []RankedEntry `json:"entries"`
}

// SearchQuery is one call against the text index
type SearchQuery struct {
	Kind   content.Kind
	Text   string
	Sort   SearchSort
	Offset int
	Size   int
}

// SearchHit is one ranked id returned by the index
type SearchHit struct {
	ID    uuid.UUID
	Score float64
}

// SearchResult holds ordered hits and the index's approximate total
type SearchResult struct {
	Hits       []SearchHit
	TotalCount int
}
