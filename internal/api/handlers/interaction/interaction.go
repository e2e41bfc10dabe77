package interaction

import (
	"context"
	"net/http"

	"Mosaic/internal/api/handlers"
	"Mosaic/internal/api/middleware"
	"Mosaic/internal/core/content"
	"Mosaic/internal/core/counters"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// LikeResponse is returned by like and unlike
type LikeResponse struct {
	LikeCount int64 `json:"likeCount"`
}

// SaveResponse is returned by save and unsave
type SaveResponse struct {
	SaveCount int64 `json:"saveCount"`
}

// Handler serves like, save and view endpoints of one content kind
type Handler struct {
	service counters.Service
}

// NewHandler creates a new interaction handler
func NewHandler(service counters.Service) *Handler {
	return &Handler{service: service}
}

type mutation func(ctx context.Context, userID, contentID uuid.UUID) (int64, error)

// HandleLike POST /v1/{kind}/{id}/like
func (h *Handler) HandleLike(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Like, func(n int64) interface{} { return LikeResponse{LikeCount: n} })
}

// HandleUnlike DELETE /v1/{kind}/{id}/like
func (h *Handler) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Unlike, func(n int64) interface{} { return LikeResponse{LikeCount: n} })
}

// HandleSave POST /v1/{kind}/{id}/save
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Save, func(n int64) interface{} { return SaveResponse{SaveCount: n} })
}

// HandleUnsave DELETE /v1/{kind}/{id}/save
func (h *Handler) HandleUnsave(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Unsave, func(n int64) interface{} { return SaveResponse{SaveCount: n} })
}

// HandleView POST /v1/{kind}/{id}/view
// Always 202: view tracking is best-effort and never reports missing content.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	contentID, err := contentIDParam(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.service.RecordView(r.Context(), contentID)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op mutation, body func(int64) interface{}) {
	userID := middleware.GetUserID(r)
	if userID == nil {
		handleServiceError(w, content.ErrUnauthorized)
		return
	}

	contentID, err := contentIDParam(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	count, err := op(r.Context(), *userID, contentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, body(count))
}

func contentIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, content.NewValidationError("id", "id must be a UUID")
	}
	return id, nil
}
