package listing

import (
	"context"
	"fmt"
	"log/slog"

	"Mosaic/internal/core/content"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Hydrator reconstitutes full items for an externally ordered id list.
// It never writes and never talks to the search index.
type Hydrator struct {
	fetcher ItemFetcher
	logger  *slog.Logger
}

// NewHydrator creates a hydrator over the primary store
func NewHydrator(fetcher ItemFetcher, logger *slog.Logger) *Hydrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hydrator{fetcher: fetcher, logger: logger}
}

// Hydrate fetches orderedIDs in one batch and returns them in exactly that order.
// Ids missing from the store are dropped; repeated ids keep their first position.
// When viewerID is set, the viewer's like/save state is attached.
func (h *Hydrator) Hydrate(ctx context.Context, orderedIDs []uuid.UUID, viewerID *uuid.UUID) ([]*content.Item, error) {
	if len(orderedIDs) == 0 {
		return []*content.Item{}, nil
	}

	var (
		fetched []*content.Item
		viewer  map[uuid.UUID]content.ViewerState
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := h.fetcher.FetchByIDs(gctx, orderedIDs)
		if err != nil {
			return fmt.Errorf("failed to fetch items: %w", err)
		}
		fetched = items
		return nil
	})
	if viewerID != nil {
		g.Go(func() error {
			state, err := h.fetcher.ViewerState(gctx, *viewerID, orderedIDs)
			if err != nil {
				// Viewer state is optional enrichment
				h.logger.Warn("failed to load viewer state", "viewer", viewerID.String(), "error", err)
				return nil
			}
			viewer = state
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*content.Item, len(fetched))
	for _, item := range fetched {
		byID[item.ID] = item
	}

	out := make([]*content.Item, 0, len(orderedIDs))
	seen := make(map[uuid.UUID]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		item, ok := byID[id]
		if !ok {
			continue
		}
		if viewerID != nil {
			state := viewer[id]
			item.Viewer = &state
		}
		out = append(out, item)
	}

	if dropped := len(seen) - len(out); dropped > 0 {
		h.logger.Debug("hydration dropped ids missing from primary store", "dropped", dropped)
	}

	return out, nil
}

// ApplyViewerState attaches the viewer's like/save state to already loaded items
func (h *Hydrator) ApplyViewerState(ctx context.Context, items []*content.Item, viewerID *uuid.UUID) {
	if viewerID == nil || len(items) == 0 {
		return
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	state, err := h.fetcher.ViewerState(ctx, *viewerID, ids)
	if err != nil {
		h.logger.Warn("failed to load viewer state", "viewer", viewerID.String(), "error", err)
		return
	}

	for _, item := range items {
		s := state[item.ID]
		item.Viewer = &s
	}
}
