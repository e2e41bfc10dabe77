package counters

import (
	"context"
	"log/slog"
	"time"

	"Mosaic/internal/core/content"

	"github.com/google/uuid"
)

const defaultViewTimeout = 2 * time.Second

type counterService struct {
	repo        Repository
	publisher   content.IndexPublisher
	logger      *slog.Logger
	kind        content.Kind
	viewTimeout time.Duration
}

// NewService creates the counter service for a kind.
// publisher may be nil when the search index is not maintained.
func NewService(kind content.Kind, repo Repository, publisher content.IndexPublisher, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &counterService{
		repo:        repo,
		publisher:   publisher,
		logger:      logger,
		kind:        kind,
		viewTimeout: defaultViewTimeout,
	}
}

func (s *counterService) Like(ctx context.Context, userID, contentID uuid.UUID) (int64, error) {
	count, err := s.repo.Like(ctx, userID, contentID)
	if err != nil {
		return 0, err
	}
	s.publishLikeCount(ctx, contentID, count)
	return count, nil
}

func (s *counterService) Unlike(ctx context.Context, userID, contentID uuid.UUID) (int64, error) {
	count, err := s.repo.Unlike(ctx, userID, contentID)
	if err != nil {
		return 0, err
	}
	s.publishLikeCount(ctx, contentID, count)
	return count, nil
}

func (s *counterService) Save(ctx context.Context, userID, contentID uuid.UUID) (int64, error) {
	return s.repo.Save(ctx, userID, contentID)
}

func (s *counterService) Unsave(ctx context.Context, userID, contentID uuid.UUID) (int64, error) {
	return s.repo.Unsave(ctx, userID, contentID)
}

// RecordView detaches from the request so a client disconnect does not drop the increment
func (s *counterService) RecordView(ctx context.Context, contentID uuid.UUID) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.viewTimeout)
	go func() {
		defer cancel()
		found, err := s.repo.IncrementView(bg, contentID)
		if err != nil {
			s.logger.Warn("failed to record view",
				"kind", s.kind, "content_id", contentID, "error", err)
			return
		}
		if !found {
			s.logger.Debug("view on missing content ignored",
				"kind", s.kind, "content_id", contentID)
		}
	}()
}

// publishLikeCount pushes the new counter to the search index.
// Failures are logged only; the index converges on the next reindex.
func (s *counterService) publishLikeCount(ctx context.Context, contentID uuid.UUID, count int64) {
	if s.publisher == nil {
		return
	}
	event := content.IndexEvent{
		Op:     content.IndexOpUpdate,
		Kind:   s.kind,
		ID:     contentID,
		Fields: &content.DocumentFields{LikeCount: &count},
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish index update",
			"kind", s.kind, "content_id", contentID, "error", err)
	}
}
