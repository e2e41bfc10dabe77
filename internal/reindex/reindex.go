package reindex

import (
	"context"
	"fmt"

	"Mosaic/internal/core/content"

	"github.com/google/uuid"
)

// Target is the index being rebuilt
type Target interface {
	Index(ctx context.Context, doc content.Document) error
	PruneMissing(ctx context.Context, kind content.Kind, live map[uuid.UUID]struct{}) (int, error)
}

// Stats summarizes one rebuild
type Stats struct {
	Indexed int
	Pruned  int
}

// Rebuild upserts every document of kind from src into target, then removes
// indexed documents that no longer exist in the primary store.
func Rebuild(ctx context.Context, kind content.Kind, src content.DocumentSource, target Target, batchSize int) (Stats, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	var (
		stats Stats
		after uuid.UUID
	)
	live := make(map[uuid.UUID]struct{})

	for {
		docs, err := src.ScanDocuments(ctx, after, batchSize)
		if err != nil {
			return stats, fmt.Errorf("scan %s after %s: %w", kind, after, err)
		}
		for _, doc := range docs {
			if err := target.Index(ctx, doc); err != nil {
				return stats, fmt.Errorf("index %s %s: %w", kind, doc.ID, err)
			}
			live[doc.ID] = struct{}{}
			stats.Indexed++
		}
		if len(docs) < batchSize {
			break
		}
		after = docs[len(docs)-1].ID
	}

	pruned, err := target.PruneMissing(ctx, kind, live)
	if err != nil {
		return stats, fmt.Errorf("prune %s: %w", kind, err)
	}
	stats.Pruned = pruned

	return stats, nil
}
