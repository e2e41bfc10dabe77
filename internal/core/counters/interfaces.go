package counters

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the counter mutation interface for one content kind
type Service interface {
	// Like records the user's like and returns the new like count.
	// Returns content.ErrConflict when already liked, content.ErrNotFound when the item is absent.
	Like(ctx context.Context, userID, contentID uuid.UUID) (int64, error)

	// Unlike removes the user's like and returns the new like count.
	// Returns content.ErrNotFound when no like existed; the counter is then untouched.
	Unlike(ctx context.Context, userID, contentID uuid.UUID) (int64, error)

	// Save and Unsave follow the Like/Unlike contract against the save relation
	Save(ctx context.Context, userID, contentID uuid.UUID) (int64, error)
	Unsave(ctx context.Context, userID, contentID uuid.UUID) (int64, error)

	// RecordView increments the view counter in the background and never fails the caller
	RecordView(ctx context.Context, contentID uuid.UUID)
}

// Repository defines the transactional counter store
// Each relation mutation and its counter change commit in one transaction
type Repository interface {
	Like(ctx context.Context, userID, contentID uuid.UUID) (int64, error)
	Unlike(ctx context.Context, userID, contentID uuid.UUID) (int64, error)
	Save(ctx context.Context, userID, contentID uuid.UUID) (int64, error)
	Unsave(ctx context.Context, userID, contentID uuid.UUID) (int64, error)

	// IncrementView returns (false, nil) when the item does not exist
	IncrementView(ctx context.Context, contentID uuid.UUID) (bool, error)

	// Reconcile recomputes like and save counters from the relation tables
	// and returns the number of rows corrected
	Reconcile(ctx context.Context) (int64, error)
}
