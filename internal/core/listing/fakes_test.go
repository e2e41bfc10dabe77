package listing

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"Mosaic/internal/core/content"

	"github.com/google/uuid"
)

// memoryRepository is an in-memory primary store with the same ordering rules
// as the SQL engine
type memoryRepository struct {
	items        map[uuid.UUID]*content.Item
	follows      map[uuid.UUID]map[uuid.UUID]bool
	saves        map[uuid.UUID]map[uuid.UUID]time.Time
	likes        map[uuid.UUID]map[uuid.UUID]bool
	pageErr      error
	viewerErr    error
	pageCalls    int
	rankingCalls int
	mu           sync.Mutex
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		items:   make(map[uuid.UUID]*content.Item),
		follows: make(map[uuid.UUID]map[uuid.UUID]bool),
		saves:   make(map[uuid.UUID]map[uuid.UUID]time.Time),
		likes:   make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (r *memoryRepository) add(item *content.Item) *content.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item
	return item
}

func (r *memoryRepository) follow(follower, followee uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.follows[follower] == nil {
		r.follows[follower] = make(map[uuid.UUID]bool)
	}
	r.follows[follower][followee] = true
}

func (r *memoryRepository) like(user, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.likes[user] == nil {
		r.likes[user] = make(map[uuid.UUID]bool)
	}
	r.likes[user][id] = true
}

func (r *memoryRepository) save(user, id uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saves[user] == nil {
		r.saves[user] = make(map[uuid.UUID]time.Time)
	}
	r.saves[user][id] = at
}

func (r *memoryRepository) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

func idLess(a, b uuid.UUID) bool { return bytes.Compare(a[:], b[:]) < 0 }

type ranked struct {
	item *content.Item
	at   time.Time
}

func (r *memoryRepository) Page(_ context.Context, q PageQuery) (*EnginePage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pageCalls++
	if r.pageErr != nil {
		return nil, r.pageErr
	}

	var rows []ranked
	for _, item := range r.items {
		at := item.CreatedAt
		switch q.Strategy {
		case SortFollowing:
			if !r.follows[*q.Filters.ViewerID][item.AuthorID] {
				continue
			}
		case SortSaved:
			savedAt, ok := r.saves[*q.Filters.ViewerID][item.ID]
			if !ok {
				continue
			}
			at = savedAt
		}
		if q.Filters.AuthorID != nil && item.AuthorID != *q.Filters.AuthorID {
			continue
		}
		if q.Filters.Since != nil && item.CreatedAt.Before(*q.Filters.Since) {
			continue
		}
		cp := *item
		rows = append(rows, ranked{item: &cp, at: at})
	}

	// before reports whether a sorts ahead of b; ties always break on id desc
	before := func(a, b ranked) bool {
		switch q.Strategy {
		case SortPopular:
			if a.item.LikeCount != b.item.LikeCount {
				return a.item.LikeCount > b.item.LikeCount
			}
		case SortOldest:
			if !a.at.Equal(b.at) {
				return a.at.Before(b.at)
			}
		default:
			if !a.at.Equal(b.at) {
				return a.at.After(b.at)
			}
		}
		return idLess(b.item.ID, a.item.ID)
	}
	sort.Slice(rows, func(i, j int) bool { return before(rows[i], rows[j]) })

	if q.After != nil {
		pivot := ranked{
			item: &content.Item{ID: q.After.ID, LikeCount: q.After.Count},
			at:   q.After.Time,
		}
		kept := rows[:0]
		for _, row := range rows {
			if before(pivot, row) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	page := &EnginePage{}
	if len(rows) > q.Size {
		rows = rows[:q.Size]
		page.HasMore = true
	}
	for _, row := range rows {
		page.Items = append(page.Items, row.item)
	}
	if n := len(rows); n > 0 {
		last := rows[n-1]
		page.Last = &Position{Time: last.at, Count: last.item.LikeCount, ID: last.item.ID}
	}
	return page, nil
}

func (r *memoryRepository) TopLikedSince(_ context.Context, since time.Time, limit int) ([]RankedEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rankingCalls++

	var entries []RankedEntry
	for _, item := range r.items {
		if item.CreatedAt.Before(since) {
			continue
		}
		entries = append(entries, RankedEntry{ID: item.ID, Score: item.LikeCount})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return idLess(entries[j].ID, entries[i].ID)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *memoryRepository) FetchByIDs(_ context.Context, ids []uuid.UUID) ([]*content.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*content.Item
	seen := make(map[uuid.UUID]bool)
	// Reverse order so callers cannot rely on input order
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		if seen[id] {
			continue
		}
		seen[id] = true
		if item, ok := r.items[id]; ok {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryRepository) ViewerState(_ context.Context, viewerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]content.ViewerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.viewerErr != nil {
		return nil, r.viewerErr
	}

	state := make(map[uuid.UUID]content.ViewerState, len(ids))
	for _, id := range ids {
		_, saved := r.saves[viewerID][id]
		state[id] = content.ViewerState{Liked: r.likes[viewerID][id], Saved: saved}
	}
	return state, nil
}

// memoryStore is a RankingStore backed by a map; expiry is not modeled
type memoryStore struct {
	data    map[string][]byte
	getErr  error
	setErr  error
	gets    int
	sets    int
	lastTTL time.Duration
	mu      sync.Mutex
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	raw, ok := s.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return raw, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	s.lastTTL = ttl
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

// stubIndex returns canned search results
type stubIndex struct {
	result  *SearchResult
	err     error
	block   bool
	queries []SearchQuery
	mu      sync.Mutex
}

func (s *stubIndex) Index(context.Context, content.Document) error { return nil }

func (s *stubIndex) Update(context.Context, content.Kind, uuid.UUID, content.DocumentFields) error {
	return nil
}

func (s *stubIndex) Delete(context.Context, content.Kind, uuid.UUID) error { return nil }

func (s *stubIndex) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubIndex) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

var errBoom = errors.New("boom")
