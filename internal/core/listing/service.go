package listing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"Mosaic/internal/core/content"

	"github.com/google/uuid"
)

// Config tunes one listing service instance
type Config struct {
	Kind                content.Kind
	SearchTimeout       time.Duration // short budget for index calls
	ReadTimeout         time.Duration // budget for primary-store reads
	RankingTTL          time.Duration
	PopularWindow       time.Duration
	RankingLimit        int
	BreakerThreshold    int
	BreakerOpenDuration time.Duration
}

func (c *Config) applyDefaults() {
	if c.Kind == "" {
		c.Kind = content.KindFeed
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 500 * time.Millisecond
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.RankingTTL <= 0 {
		c.RankingTTL = time.Minute
	}
	if c.PopularWindow <= 0 {
		c.PopularWindow = 24 * time.Hour
	}
	if c.RankingLimit <= 0 {
		c.RankingLimit = 500
	}
}

type listingService struct {
	repo     Repository
	index    SearchIndex
	cache    *RankingCache
	hydrator *Hydrator
	codec    *Codec
	breaker  *circuitBreaker
	logger   *slog.Logger
	now      func() time.Time
	cfg      Config
}

// NewService creates the listing facade for one content kind.
// index and cache may be nil: search then always degrades to an empty page and
// rankings are computed on every request.
func NewService(cfg Config, repo Repository, index SearchIndex, cache *RankingCache, codec *Codec, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	if cache == nil {
		cache = NewRankingCache(nil, logger)
	}
	logger = logger.With("kind", string(cfg.Kind))
	return &listingService{
		cfg:      cfg,
		repo:     repo,
		index:    index,
		cache:    cache,
		hydrator: NewHydrator(repo, logger),
		codec:    codec,
		breaker:  newCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerOpenDuration, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// ListLatest lists items newest first
func (s *listingService) ListLatest(ctx context.Context, req ListRequest) (*Page, error) {
	return s.Request(ctx, Request{Mode: SortLatest, Cursor: req.Cursor, ViewerID: req.ViewerID, Limit: req.Limit})
}

// ListOldest lists items oldest first
func (s *listingService) ListOldest(ctx context.Context, req ListRequest) (*Page, error) {
	return s.Request(ctx, Request{Mode: SortOldest, Cursor: req.Cursor, ViewerID: req.ViewerID, Limit: req.Limit})
}

// ListPopular lists items by like count, all-time or restricted to the popular window
func (s *listingService) ListPopular(ctx context.Context, req ListRequest, windowed bool) (*Page, error) {
	mode := SortPopular
	if windowed {
		mode = SortPopularToday
	}
	return s.Request(ctx, Request{Mode: mode, Cursor: req.Cursor, ViewerID: req.ViewerID, Limit: req.Limit})
}

// ListFollowing lists items by authors the viewer follows, newest first
func (s *listingService) ListFollowing(ctx context.Context, req ListRequest) (*Page, error) {
	return s.Request(ctx, Request{Mode: SortFollowing, Cursor: req.Cursor, ViewerID: req.ViewerID, Limit: req.Limit})
}

// ListSaved lists items the viewer saved, most recently saved first
func (s *listingService) ListSaved(ctx context.Context, req ListRequest) (*Page, error) {
	return s.Request(ctx, Request{Mode: SortSaved, Cursor: req.Cursor, ViewerID: req.ViewerID, Limit: req.Limit})
}

// ListByAuthor lists one author's items newest first
func (s *listingService) ListByAuthor(ctx context.Context, authorID uuid.UUID, req ListRequest) (*Page, error) {
	return s.Request(ctx, Request{Mode: SortLatest, AuthorID: &authorID, Cursor: req.Cursor, ViewerID: req.ViewerID, Limit: req.Limit})
}

// Search runs a keyword search
func (s *listingService) Search(ctx context.Context, req SearchRequest) (*Page, error) {
	if strings.TrimSpace(req.Keyword) == "" {
		return nil, content.NewValidationError("q", "search keyword is required")
	}
	return s.Request(ctx, Request{
		Mode:       SortSearch,
		Keyword:    req.Keyword,
		SearchSort: req.Sort,
		Cursor:     req.Cursor,
		ViewerID:   req.ViewerID,
		Limit:      req.Limit,
	})
}

// Request dispatches one listing request
func (s *listingService) Request(ctx context.Context, req Request) (*Page, error) {
	limit, err := validateLimit(req.Limit)
	if err != nil {
		return nil, err
	}

	keyword := strings.TrimSpace(req.Keyword)
	if keyword != "" {
		return s.search(ctx, req, keyword, limit)
	}

	switch req.Mode {
	case SortSearch:
		return nil, content.NewValidationError("q", "search keyword is required")
	case SortFollowing, SortSaved:
		if req.ViewerID == nil {
			return nil, content.ErrUnauthorized
		}
	case SortPopularToday:
		return s.cachedRanking(ctx, req, limit)
	case SortLatest, SortOldest, SortPopular:
	default:
		return nil, content.NewValidationError("sort", fmt.Sprintf("unknown sort mode %q", req.Mode))
	}

	return s.rangePage(ctx, req, limit)
}

func validateLimit(limit int) (int, error) {
	if limit <= 0 {
		return DefaultLimit, nil
	}
	if limit > MaxLimit {
		return 0, content.NewValidationError("limit", fmt.Sprintf("limit must not exceed %d", MaxLimit))
	}
	return limit, nil
}

func (s *listingService) decodeCursor(mode SortMode, scope string, cursor *string) (*Position, error) {
	if cursor == nil || *cursor == "" {
		return nil, nil
	}
	pos, err := s.codec.DecodeScoped(mode, scope, *cursor)
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

func (s *listingService) nextCursor(mode SortMode, scope string, pos Position) (*string, error) {
	c, err := s.codec.EncodeScoped(mode, scope, pos)
	if err != nil {
		return nil, fmt.Errorf("failed to build cursor: %w", err)
	}
	return &c, nil
}

// rangePage serves DB-native orderings straight from the query engine
func (s *listingService) rangePage(ctx context.Context, req Request, limit int) (*Page, error) {
	after, err := s.decodeCursor(req.Mode, "", req.Cursor)
	if err != nil {
		return nil, err
	}

	filters := Filters{AuthorID: req.AuthorID}
	if req.Mode == SortFollowing || req.Mode == SortSaved {
		filters.ViewerID = req.ViewerID
	}

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	res, err := s.repo.Page(readCtx, PageQuery{
		Strategy: req.Mode,
		After:    after,
		Size:     limit,
		Filters:  filters,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s %s: %w", s.cfg.Kind, req.Mode, err)
	}

	s.hydrator.ApplyViewerState(readCtx, res.Items, req.ViewerID)

	page := &Page{Items: nonNil(res.Items)}
	if res.HasMore && res.Last != nil {
		if page.Cursor, err = s.nextCursor(req.Mode, "", *res.Last); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// rankingKey names the cache entry of the windowed popularity ranking
func (s *listingService) rankingKey() string {
	return fmt.Sprintf("ranking:%s:popular:%s", s.cfg.Kind, s.cfg.PopularWindow)
}

// cachedRanking serves windowed popularity from a precomputed ranking and
// hydrates the page slice from the primary store
func (s *listingService) cachedRanking(ctx context.Context, req Request, limit int) (*Page, error) {
	after, err := s.decodeCursor(req.Mode, "", req.Cursor)
	if err != nil {
		return nil, err
	}

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	since := s.now().Add(-s.cfg.PopularWindow)
	entries, err := s.cache.GetOrCompute(readCtx, s.rankingKey(), s.cfg.RankingTTL, func(ctx context.Context) ([]RankedEntry, error) {
		return s.repo.TopLikedSince(ctx, since, s.cfg.RankingLimit)
	})
	if err != nil {
		return nil, err
	}

	start := 0
	if after != nil {
		start = sort.Search(len(entries), func(i int) bool {
			return entryAfter(entries[i], *after)
		})
	}
	end := start + limit
	if end > len(entries) {
		end = len(entries)
	}
	slice := entries[start:end]

	ids := make([]uuid.UUID, 0, len(slice))
	for _, e := range slice {
		ids = append(ids, e.ID)
	}

	items, err := s.hydrator.Hydrate(readCtx, ids, req.ViewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate ranking: %w", err)
	}

	// A cached entry may outlive the window by up to one TTL
	inWindow := items[:0]
	for _, item := range items {
		if !item.CreatedAt.Before(since) {
			inWindow = append(inWindow, item)
		}
	}

	page := &Page{Items: nonNil(inWindow)}
	if end < len(entries) && len(slice) > 0 {
		last := slice[len(slice)-1]
		if page.Cursor, err = s.nextCursor(req.Mode, "", Position{Count: last.Score, ID: last.ID}); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// entryAfter reports whether e sorts strictly after pos in (score desc, id desc) order
func entryAfter(e RankedEntry, pos Position) bool {
	if e.Score != pos.Count {
		return e.Score < pos.Count
	}
	return bytes.Compare(e.ID[:], pos.ID[:]) < 0
}

// search queries the text index and hydrates the hits. Index failures never
// propagate: the caller gets an empty page with a zero total.
func (s *listingService) search(ctx context.Context, req Request, keyword string, limit int) (*Page, error) {
	searchSort := req.SearchSort
	if searchSort == "" {
		searchSort = SearchByRelevance
	}

	scope := searchScope(searchSort, keyword)
	after, err := s.decodeCursor(SortSearch, scope, req.Cursor)
	if err != nil {
		return nil, err
	}
	offset := 0
	if after != nil {
		offset = int(after.Count)
	}

	if s.index == nil {
		return emptySearchPage(), nil
	}
	if ok, err := s.breaker.canAttempt(); !ok {
		s.logger.Debug("skipping search, index circuit open", "error", err)
		return emptySearchPage(), nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	res, err := s.index.Search(searchCtx, SearchQuery{
		Kind:   s.cfg.Kind,
		Text:   keyword,
		Sort:   searchSort,
		Offset: offset,
		Size:   limit,
	})
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			s.breaker.recordFailure(err)
		}
		s.logger.Warn("search degraded to empty result",
			"query", keyword,
			"error", fmt.Errorf("%w: %v", ErrSearchUnavailable, err))
		return emptySearchPage(), nil
	}
	s.breaker.recordSuccess()

	if res == nil || len(res.Hits) == 0 {
		return emptySearchPage(), nil
	}

	ids := make([]uuid.UUID, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}

	readCtx, cancelRead := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancelRead()

	items, err := s.hydrator.Hydrate(readCtx, ids, req.ViewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate search hits: %w", err)
	}

	total := res.TotalCount
	page := &Page{Items: items, TotalCount: &total}
	if next := offset + len(res.Hits); next < total {
		if page.Cursor, err = s.nextCursor(SortSearch, scope, Position{Count: int64(next), ID: uuid.Nil}); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// searchScope binds search offsets to the ordering they index into.
// Keywords compare the way the index matches them: case and spacing are ignored.
func searchScope(order SearchSort, keyword string) string {
	return string(order) + "\n" + strings.ToLower(strings.Join(strings.Fields(keyword), " "))
}

func emptySearchPage() *Page {
	zero := 0
	return &Page{Items: []*content.Item{}, TotalCount: &zero}
}

func nonNil(items []*content.Item) []*content.Item {
	if items == nil {
		return []*content.Item{}
	}
	return items
}

// IsRequestError reports whether err should be surfaced to the caller as a bad request
func IsRequestError(err error) bool {
	return errors.Is(err, ErrInvalidCursor) || content.IsValidationError(err)
}
