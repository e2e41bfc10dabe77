package listing

import "errors"

var (
	// ErrInvalidCursor is returned for malformed, tampered or mode-mismatched cursors.
	// Callers restart pagination from the first page.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrSearchUnavailable marks a failed or timed-out search index call.
	// It never reaches callers; search degrades to an empty page.
	ErrSearchUnavailable = errors.New("search index unavailable")

	// ErrCacheUnavailable marks a failed cache service call.
	// It never reaches callers; rankings are recomputed from the primary store.
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrCacheMiss is returned by a RankingStore when the key is absent or expired
	ErrCacheMiss = errors.New("cache miss")
)
