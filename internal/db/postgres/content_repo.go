package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"Mosaic/internal/core/content"
	"Mosaic/internal/core/listing"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// postgresContentRepo is the listing query engine for one content kind.
//
// DATABASE INDEXES REQUIRED (migration 001_create_content_tables.sql), per kind:
//
// 1. idx_<items>_created ON <items>(created_at DESC, id DESC)
//   - latest / oldest range walks
//
// 2. idx_<items>_likes ON <items>(like_count DESC, id DESC)
//   - popular range walk
//
// 3. idx_<items>_author_created ON <items>(author_id, created_at DESC, id DESC)
//   - author listing and the follows JOIN of the following listing
//
// 4. idx_<saves>_user_created ON <saves>(user_id, created_at DESC, content_id DESC)
//   - saved listing
//
// All listings use the LIMIT n+1 probe to detect a further page without a count query.
type postgresContentRepo struct {
	db     *sql.DB
	kind   content.Kind
	tables content.Tables
}

// NewContentRepository creates the PostgreSQL listing repository for a kind
func NewContentRepository(db *sql.DB, kind content.Kind) listing.Repository {
	return newContentRepo(db, kind)
}

// NewDocumentSource exposes the kind's rows as index documents for reindexing
func NewDocumentSource(db *sql.DB, kind content.Kind) content.DocumentSource {
	return newContentRepo(db, kind)
}

func newContentRepo(db *sql.DB, kind content.Kind) *postgresContentRepo {
	return &postgresContentRepo{db: db, kind: kind, tables: kind.Tables()}
}

// sortClauses maps strategies to safe ORDER BY clauses.
// Whitelist only; nothing user-supplied reaches ORDER BY.
var sortClauses = map[listing.SortMode]string{
	listing.SortLatest:    `i.created_at DESC, i.id DESC`,
	listing.SortFollowing: `i.created_at DESC, i.id DESC`,
	listing.SortOldest:    `i.created_at ASC, i.id DESC`,
	listing.SortPopular:   `i.like_count DESC, i.id DESC`,
	listing.SortSaved:     `s.created_at DESC, i.id DESC`,
}

const itemColumns = `i.id, i.author_id, i.title, i.body, i.created_at,
			i.like_count, i.view_count, i.comment_count, i.save_count`

// queryArgs accumulates positional parameters
type queryArgs []interface{}

func (a *queryArgs) add(v interface{}) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// buildPageQuery renders the range query for a page request
func (r *postgresContentRepo) buildPageQuery(q listing.PageQuery) (string, []interface{}, error) {
	orderBy, ok := sortClauses[q.Strategy]
	if !ok {
		return "", nil, fmt.Errorf("unsupported listing strategy %q", q.Strategy)
	}

	var (
		args  queryArgs
		joins []string
		where = []string{"TRUE"}
	)

	sortTime := "i.created_at"
	switch q.Strategy {
	case listing.SortFollowing:
		if q.Filters.ViewerID == nil {
			return "", nil, fmt.Errorf("following listing requires a viewer")
		}
		joins = append(joins, "INNER JOIN follows f ON f.followee_id = i.author_id")
		where = append(where, "f.follower_id = "+args.add(*q.Filters.ViewerID))
	case listing.SortSaved:
		if q.Filters.ViewerID == nil {
			return "", nil, fmt.Errorf("saved listing requires a viewer")
		}
		joins = append(joins, fmt.Sprintf("INNER JOIN %s s ON s.content_id = i.id", r.tables.Saves))
		where = append(where, "s.user_id = "+args.add(*q.Filters.ViewerID))
		sortTime = "s.created_at"
	}

	if q.Filters.AuthorID != nil {
		where = append(where, "i.author_id = "+args.add(*q.Filters.AuthorID))
	}
	if q.Filters.Since != nil {
		where = append(where, "i.created_at >= "+args.add(*q.Filters.Since))
	}

	if q.After != nil {
		id := args.add(q.After.ID)
		switch q.Strategy {
		case listing.SortPopular:
			key := args.add(q.After.Count)
			where = append(where, fmt.Sprintf("(i.like_count < %s OR (i.like_count = %s AND i.id < %s))", key, key, id))
		case listing.SortOldest:
			key := args.add(q.After.Time)
			where = append(where, fmt.Sprintf("(%s > %s OR (%s = %s AND i.id < %s))", sortTime, key, sortTime, key, id))
		default:
			key := args.add(q.After.Time)
			where = append(where, fmt.Sprintf("(%s < %s OR (%s = %s AND i.id < %s))", sortTime, key, sortTime, key, id))
		}
	}

	limit := args.add(q.Size + 1) // +1 to check for next page

	query := fmt.Sprintf(`
		SELECT
			%s,
			%s AS sort_time
		FROM %s i
		%s
		WHERE %s
		ORDER BY %s
		LIMIT %s
	`, itemColumns, sortTime, r.tables.Items, strings.Join(joins, "\n\t\t"), strings.Join(where, "\n\t\t\tAND "), orderBy, limit)

	return query, args, nil
}

// Page returns one forward-only page of the strategy's ordering
func (r *postgresContentRepo) Page(ctx context.Context, q listing.PageQuery) (*listing.EnginePage, error) {
	if q.Size <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", q.Size)
	}

	query, args, err := r.buildPageQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s page: %w", r.kind, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", "error", err)
		}
	}()

	var (
		items     []*content.Item
		sortTimes []time.Time
	)
	for rows.Next() {
		item := &content.Item{Kind: r.kind}
		var sortTime time.Time
		if err := rows.Scan(
			&item.ID, &item.AuthorID, &item.Title, &item.Body, &item.CreatedAt,
			&item.LikeCount, &item.ViewCount, &item.CommentCount, &item.SaveCount,
			&sortTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.kind, err)
		}
		items = append(items, item)
		sortTimes = append(sortTimes, sortTime)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s page: %w", r.kind, err)
	}

	page := &listing.EnginePage{Items: items}
	if len(items) > q.Size {
		page.Items = items[:q.Size]
		page.HasMore = true
	}
	if n := len(page.Items); n > 0 {
		last := page.Items[n-1]
		page.Last = &listing.Position{
			Time:  sortTimes[n-1],
			Count: last.LikeCount,
			ID:    last.ID,
		}
	}

	return page, nil
}

// TopLikedSince computes the windowed popularity ranking
func (r *postgresContentRepo) TopLikedSince(ctx context.Context, since time.Time, limit int) ([]listing.RankedEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, like_count
		FROM %s
		WHERE created_at >= $1
		ORDER BY like_count DESC, id DESC
		LIMIT $2
	`, r.tables.Items)

	rows, err := r.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank %s: %w", r.kind, err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]listing.RankedEntry, 0, limit)
	for rows.Next() {
		var e listing.RankedEntry
		if err := rows.Scan(&e.ID, &e.Score); err != nil {
			return nil, fmt.Errorf("failed to scan ranking entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking: %w", err)
	}

	return entries, nil
}

// FetchByIDs batch-loads items. Result order is unspecified.
func (r *postgresContentRepo) FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]*content.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s i
		WHERE i.id = ANY($1::uuid[])
	`, itemColumns, r.tables.Items)

	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s batch: %w", r.kind, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*content.Item, 0, len(ids))
	for rows.Next() {
		item := &content.Item{Kind: r.kind}
		if err := rows.Scan(
			&item.ID, &item.AuthorID, &item.Title, &item.Body, &item.CreatedAt,
			&item.LikeCount, &item.ViewCount, &item.CommentCount, &item.SaveCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.kind, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s batch: %w", r.kind, err)
	}

	return items, nil
}

// ViewerState reports which of ids the viewer has liked and saved
func (r *postgresContentRepo) ViewerState(ctx context.Context, viewerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]content.ViewerState, error) {
	state := make(map[uuid.UUID]content.ViewerState, len(ids))
	if len(ids) == 0 {
		return state, nil
	}

	query := fmt.Sprintf(`
		SELECT
			c.id,
			EXISTS (SELECT 1 FROM %s l WHERE l.user_id = $1 AND l.content_id = c.id),
			EXISTS (SELECT 1 FROM %s s WHERE s.user_id = $1 AND s.content_id = c.id)
		FROM unnest($2::uuid[]) AS c(id)
	`, r.tables.Likes, r.tables.Saves)

	rows, err := r.db.QueryContext(ctx, query, viewerID, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to query viewer state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id uuid.UUID
			vs content.ViewerState
		)
		if err := rows.Scan(&id, &vs.Liked, &vs.Saved); err != nil {
			return nil, fmt.Errorf("failed to scan viewer state: %w", err)
		}
		state[id] = vs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating viewer state: %w", err)
	}

	return state, nil
}

// ScanDocuments walks the kind's rows in id order for reindexing
func (r *postgresContentRepo) ScanDocuments(ctx context.Context, after uuid.UUID, limit int) ([]content.Document, error) {
	query := fmt.Sprintf(`
		SELECT id, author_id, title, body, created_at, like_count
		FROM %s
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, r.tables.Items)

	rows, err := r.db.QueryContext(ctx, query, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s documents: %w", r.kind, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []content.Document
	for rows.Next() {
		doc := content.Document{Kind: r.kind}
		if err := rows.Scan(&doc.ID, &doc.AuthorID, &doc.Title, &doc.Body, &doc.CreatedAt, &doc.LikeCount); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
