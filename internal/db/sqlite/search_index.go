package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"Mosaic/internal/core/content"
	"Mosaic/internal/core/listing"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrIndexClosed = errors.New("search index closed")

// SearchIndex is the text index over feed and post documents.
// Documents live in a plain table; an external-content FTS5 table mirrors
// title and body through triggers so counter updates never touch FTS.
type SearchIndex struct {
	db *sql.DB
}

var _ listing.SearchIndex = (*SearchIndex)(nil)

// Open creates or opens the index at path. ":memory:" is accepted for tests.
func Open(path string) (*SearchIndex, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	ix := &SearchIndex{db: db}
	if err := ix.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *SearchIndex) Close() error {
	if ix.db == nil {
		return nil
	}
	err := ix.db.Close()
	ix.db = nil
	return err
}

func (ix *SearchIndex) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			rowid INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			like_count INTEGER NOT NULL DEFAULT 0,
			UNIQUE (kind, id)
		);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			title, body,
			content='documents', content_rowid='rowid',
			tokenize='unicode61'
		);`,
		`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO documents_fts(rowid, title, body) VALUES (new.rowid, new.title, new.body);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, title, body) VALUES ('delete', old.rowid, old.title, old.body);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE OF title, body ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, title, body) VALUES ('delete', old.rowid, old.title, old.body);
			INSERT INTO documents_fts(rowid, title, body) VALUES (new.rowid, new.title, new.body);
		END;`,
		`CREATE INDEX IF NOT EXISTS idx_documents_kind_created ON documents(kind, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := ix.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate search index: %w", err)
		}
	}
	return nil
}

// Index inserts or replaces a document
func (ix *SearchIndex) Index(ctx context.Context, doc content.Document) error {
	if ix.db == nil {
		return ErrIndexClosed
	}

	_, err := ix.db.ExecContext(ctx, `
		INSERT INTO documents (kind, id, author_id, title, body, created_at, like_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET
			author_id = excluded.author_id,
			title = excluded.title,
			body = excluded.body,
			created_at = excluded.created_at,
			like_count = excluded.like_count`,
		string(doc.Kind), doc.ID.String(), doc.AuthorID.String(),
		doc.Title, doc.Body, doc.CreatedAt.UTC().UnixMicro(), doc.LikeCount,
	)
	if err != nil {
		return fmt.Errorf("index %s %s: %w", doc.Kind, doc.ID, err)
	}
	return nil
}

// Update applies a partial update. Updating an unknown document is a no-op;
// it arrives with its full projection on the next upsert or reindex.
func (ix *SearchIndex) Update(ctx context.Context, kind content.Kind, id uuid.UUID, fields content.DocumentFields) error {
	if ix.db == nil {
		return ErrIndexClosed
	}

	var (
		sets []string
		args []interface{}
	)
	if fields.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *fields.Title)
	}
	if fields.Body != nil {
		sets = append(sets, "body = ?")
		args = append(args, *fields.Body)
	}
	if fields.LikeCount != nil {
		sets = append(sets, "like_count = ?")
		args = append(args, *fields.LikeCount)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, string(kind), id.String())
	query := "UPDATE documents SET " + strings.Join(sets, ", ") + " WHERE kind = ? AND id = ?"
	if _, err := ix.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	return nil
}

func (ix *SearchIndex) Delete(ctx context.Context, kind content.Kind, id uuid.UUID) error {
	if ix.db == nil {
		return ErrIndexClosed
	}

	if _, err := ix.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = ? AND id = ?`, string(kind), id.String()); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return nil
}

var searchOrder = map[listing.SearchSort]string{
	listing.SearchByRelevance: "rank ASC, d.created_at DESC, d.id DESC",
	listing.SearchByLatest:    "d.created_at DESC, d.id DESC",
	listing.SearchByPopular:   "d.like_count DESC, d.id DESC",
}

// Search returns hits for q.Text at q.Offset with the total match count
func (ix *SearchIndex) Search(ctx context.Context, q listing.SearchQuery) (*listing.SearchResult, error) {
	if ix.db == nil {
		return nil, ErrIndexClosed
	}

	match := matchExpression(q.Text)
	if match == "" {
		return &listing.SearchResult{}, nil
	}

	orderBy, ok := searchOrder[q.Sort]
	if !ok {
		orderBy = searchOrder[listing.SearchByRelevance]
	}

	var total int
	if err := ix.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM documents_fts
		JOIN documents d ON d.rowid = documents_fts.rowid
		WHERE documents_fts MATCH ? AND d.kind = ?`,
		match, string(q.Kind),
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count search hits: %w", err)
	}
	if total == 0 || q.Offset >= total {
		return &listing.SearchResult{TotalCount: total}, nil
	}

	rows, err := ix.db.QueryContext(ctx, `
		SELECT d.id, bm25(documents_fts) AS rank
		FROM documents_fts
		JOIN documents d ON d.rowid = documents_fts.rowid
		WHERE documents_fts MATCH ? AND d.kind = ?
		ORDER BY `+orderBy+`
		LIMIT ? OFFSET ?`,
		match, string(q.Kind), q.Size, q.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	res := &listing.SearchResult{TotalCount: total, Hits: make([]listing.SearchHit, 0, q.Size)}
	for rows.Next() {
		var (
			rawID string
			rank  float64
		)
		if err := rows.Scan(&rawID, &rank); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			continue
		}
		// bm25 is lower-is-better
		res.Hits = append(res.Hits, listing.SearchHit{ID: id, Score: -rank})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}

	return res, nil
}

// Count returns the number of indexed documents of a kind
func (ix *SearchIndex) Count(ctx context.Context, kind content.Kind) (int, error) {
	if ix.db == nil {
		return 0, ErrIndexClosed
	}
	var n int
	err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE kind = ?`, string(kind)).Scan(&n)
	return n, err
}

// PruneMissing removes a kind's documents whose ids are not in live.
// Reindexing calls it after upserting every row of the primary store.
func (ix *SearchIndex) PruneMissing(ctx context.Context, kind content.Kind, live map[uuid.UUID]struct{}) (int, error) {
	if ix.db == nil {
		return 0, ErrIndexClosed
	}

	rows, err := ix.db.QueryContext(ctx, `SELECT id FROM documents WHERE kind = ?`, string(kind))
	if err != nil {
		return 0, fmt.Errorf("list indexed ids: %w", err)
	}
	var stale []string
	for rows.Next() {
		var rawID string
		if err := rows.Scan(&rawID); err != nil {
			_ = rows.Close()
			return 0, err
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			stale = append(stale, rawID)
			continue
		}
		if _, ok := live[id]; !ok {
			stale = append(stale, rawID)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	for _, rawID := range stale {
		if _, err := ix.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = ? AND id = ?`, string(kind), rawID); err != nil {
			return 0, fmt.Errorf("prune %s: %w", rawID, err)
		}
	}
	return len(stale), nil
}

// matchExpression turns free text into an FTS5 query of quoted terms.
// Operators and column filters in user input are never interpreted.
func matchExpression(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		return ""
	}
	terms := make([]string, len(words))
	for i, w := range words {
		terms[i] = `"` + strings.ToLower(w) + `"`
	}
	return strings.Join(terms, " ")
}
