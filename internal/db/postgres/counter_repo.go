package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"Mosaic/internal/core/content"
	"Mosaic/internal/core/counters"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgreSQL error codes surfaced by relation inserts
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

type postgresCounterRepo struct {
	db     *sql.DB
	kind   content.Kind
	tables content.Tables
}

// NewCounterRepository creates the PostgreSQL counter store for a kind.
// The relation table's unique (user_id, content_id) constraint is the
// concurrency guard; counters only move as relative updates.
func NewCounterRepository(db *sql.DB, kind content.Kind) counters.Repository {
	return &postgresCounterRepo{db: db, kind: kind, tables: kind.Tables()}
}

func (r *postgresCounterRepo) Like(ctx context.Context, userID, contentID uuid.UUID) (int64, error) {
	return r.addRelation(ctx, r.tables.Likes, "like_count", userID, contentID)
}

func (r *postgresCounterRepo) Unlike(ctx context.Context, userID, contentID uuid.UUID) (int64, error) {
	return r.removeRelation(ctx, r.tables.Likes, "like_count", userID, contentID)
}

func (r *postgresCounterRepo) Save(ctx context.Context, userID, contentID uuid.UUID) (int64, error) {
	return r.addRelation(ctx, r.tables.Saves, "save_count", userID, contentID)
}

func (r *postgresCounterRepo) Unsave(ctx context.Context, userID, contentID uuid.UUID) (int64, error) {
	return r.removeRelation(ctx, r.tables.Saves, "save_count", userID, contentID)
}

// addRelation inserts the relation and increments its counter atomically
func (r *postgresCounterRepo) addRelation(ctx context.Context, relTable, counter string, userID, contentID uuid.UUID) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			slog.Warn("failed to rollback transaction", "error", rollbackErr)
		}
	}()

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (user_id, content_id, created_at)
		VALUES ($1, $2, NOW())
	`, relTable)

	if _, err := tx.ExecContext(ctx, insertQuery, userID, contentID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqUniqueViolation:
				return 0, content.ErrConflict
			case pqForeignKeyViolation:
				return 0, content.ErrNotFound
			}
		}
		return 0, fmt.Errorf("failed to insert %s relation: %w", relTable, err)
	}

	updateQuery := fmt.Sprintf(`
		UPDATE %s
		SET %s = %s + 1
		WHERE id = $1
		RETURNING %s
	`, r.tables.Items, counter, counter, counter)

	var count int64
	if err := tx.QueryRowContext(ctx, updateQuery, contentID).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, content.ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment %s: %w", counter, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return count, nil
}

// removeRelation deletes the relation and decrements only when a row was removed
func (r *postgresCounterRepo) removeRelation(ctx context.Context, relTable, counter string, userID, contentID uuid.UUID) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			slog.Warn("failed to rollback transaction", "error", rollbackErr)
		}
	}()

	deleteQuery := fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = $1 AND content_id = $2
	`, relTable)

	result, err := tx.ExecContext(ctx, deleteQuery, userID, contentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s relation: %w", relTable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check delete result: %w", err)
	}
	if rowsAffected == 0 {
		return 0, content.ErrNotFound
	}

	// GREATEST guards against a counter already drifted to zero
	updateQuery := fmt.Sprintf(`
		UPDATE %s
		SET %s = GREATEST(0, %s - 1)
		WHERE id = $1
		RETURNING %s
	`, r.tables.Items, counter, counter, counter)

	var count int64
	if err := tx.QueryRowContext(ctx, updateQuery, contentID).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, content.ErrNotFound
		}
		return 0, fmt.Errorf("failed to decrement %s: %w", counter, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return count, nil
}

func (r *postgresCounterRepo) IncrementView(ctx context.Context, contentID uuid.UUID) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET view_count = view_count + 1 WHERE id = $1`, r.tables.Items)

	result, err := r.db.ExecContext(ctx, query, contentID)
	if err != nil {
		return false, fmt.Errorf("failed to increment view count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check update result: %w", err)
	}

	return rowsAffected > 0, nil
}

// Reconcile rewrites like_count and save_count wherever they disagree with the relation tables.
// The relation tables are locked in SHARE mode for the duration: relation writers
// already in flight commit first, new ones wait, so the recount never overwrites
// an increment it did not see.
func (r *postgresCounterRepo) Reconcile(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			slog.Warn("failed to rollback transaction", "error", rollbackErr)
		}
	}()

	lock := fmt.Sprintf(`LOCK TABLE %s, %s IN SHARE MODE`, r.tables.Likes, r.tables.Saves)
	if _, err := tx.ExecContext(ctx, lock); err != nil {
		return 0, fmt.Errorf("failed to lock %s relations: %w", r.kind, err)
	}

	query := fmt.Sprintf(`
		UPDATE %[1]s i
		SET like_count = c.likes,
			save_count = c.saves
		FROM (
			SELECT
				x.id,
				(SELECT COUNT(*) FROM %[2]s l WHERE l.content_id = x.id) AS likes,
				(SELECT COUNT(*) FROM %[3]s s WHERE s.content_id = x.id) AS saves
			FROM %[1]s x
		) c
		WHERE c.id = i.id
			AND (i.like_count <> c.likes OR i.save_count <> c.saves)
	`, r.tables.Items, r.tables.Likes, r.tables.Saves)

	result, err := tx.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile %s counters: %w", r.kind, err)
	}

	fixed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check reconcile result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return fixed, nil
}
