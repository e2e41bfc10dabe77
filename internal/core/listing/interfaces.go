package listing

import (
	"context"
	"time"

	"Mosaic/internal/core/content"

	"github.com/google/uuid"
)

// Service is the public listing surface for one content kind
type Service interface {
	// Request dispatches a listing request: keyword search when Keyword is set,
	// cached ranking for windowed popularity, otherwise a direct range query.
	Request(ctx context.Context, req Request) (*Page, error)

	ListLatest(ctx context.Context, req ListRequest) (*Page, error)
	ListOldest(ctx context.Context, req ListRequest) (*Page, error)
	ListPopular(ctx context.Context, req ListRequest, windowed bool) (*Page, error)
	ListFollowing(ctx context.Context, req ListRequest) (*Page, error)
	ListSaved(ctx context.Context, req ListRequest) (*Page, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID, req ListRequest) (*Page, error)
	Search(ctx context.Context, req SearchRequest) (*Page, error)
}

// QueryEngine executes ordered, cursor-bounded range queries against the primary store
type QueryEngine interface {
	// Page returns at most q.Size items strictly after q.After in the strategy's order
	Page(ctx context.Context, q PageQuery) (*EnginePage, error)

	// TopLikedSince returns up to limit entries created at or after since,
	// ordered by like count desc then id desc
	TopLikedSince(ctx context.Context, since time.Time, limit int) ([]RankedEntry, error)
}

// ItemFetcher is the batch-read side of the primary store used by hydration
type ItemFetcher interface {
	// FetchByIDs returns the items that still exist, in no particular order
	FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]*content.Item, error)

	// ViewerState returns the viewer's like/save relations for the given ids
	ViewerState(ctx context.Context, viewerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]content.ViewerState, error)
}

// Repository is the primary-store port of the listing engine
type Repository interface {
	QueryEngine
	ItemFetcher
}

// RankingStore is the cache service: opaque bytes under a key with a TTL.
// Get returns ErrCacheMiss for absent or expired keys.
type RankingStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SearchIndex is the eventually-consistent external text index
type SearchIndex interface {
	Index(ctx context.Context, doc content.Document) error
	Update(ctx context.Context, kind content.Kind, id uuid.UUID, fields content.DocumentFields) error
	Delete(ctx context.Context, kind content.Kind, id uuid.UUID) error
	Search(ctx context.Context, q SearchQuery) (*SearchResult, error)
}
