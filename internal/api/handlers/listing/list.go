package listing

import (
	"net/http"
	"strconv"

	"Mosaic/internal/api/handlers"
	"Mosaic/internal/api/middleware"
	"Mosaic/internal/core/content"
	"Mosaic/internal/core/listing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler serves the listing endpoints of one content kind
type Handler struct {
	service listing.Service
}

// NewHandler creates a new listing handler
func NewHandler(service listing.Service) *Handler {
	return &Handler{service: service}
}

// HandleLatest lists newest first
// GET /v1/{kind}/latest?limit=15&cursor=...
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.respond(w)(h.service.ListLatest(r.Context(), req))
}

// HandleOldest lists oldest first
// GET /v1/{kind}/oldest?limit=15&cursor=...
func (h *Handler) HandleOldest(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.respond(w)(h.service.ListOldest(r.Context(), req))
}

// HandlePopular lists by like count
// GET /v1/{kind}/popular?window=all|today&limit=15&cursor=...
func (h *Handler) HandlePopular(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var windowed bool
	switch r.URL.Query().Get("window") {
	case "", "all":
	case "today":
		windowed = true
	default:
		handleServiceError(w, content.NewValidationError("window", "window must be 'all' or 'today'"))
		return
	}

	h.respond(w)(h.service.ListPopular(r.Context(), req, windowed))
}

// HandleFollowing lists items by followed authors
// GET /v1/{kind}/following. Requires authentication.
func (h *Handler) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.respond(w)(h.service.ListFollowing(r.Context(), req))
}

// HandleSaved lists the viewer's saved items
// GET /v1/{kind}/saved. Requires authentication.
func (h *Handler) HandleSaved(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.respond(w)(h.service.ListSaved(r.Context(), req))
}

// HandleByAuthor lists one author's items newest first
// GET /v1/{kind}/authors/{authorId}
func (h *Handler) HandleByAuthor(w http.ResponseWriter, r *http.Request) {
	authorID, err := uuid.Parse(chi.URLParam(r, "authorId"))
	if err != nil {
		handleServiceError(w, content.NewValidationError("authorId", "authorId must be a UUID"))
		return
	}

	req, err := parseListRequest(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.respond(w)(h.service.ListByAuthor(r.Context(), authorID, req))
}

// HandleSearch runs a keyword search
// GET /v1/{kind}/search?q=...&sort=relevance|latest|popular&limit=15&cursor=...
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	base, err := parseListRequest(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	sort, err := listing.ParseSearchSort(r.URL.Query().Get("sort"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.respond(w)(h.service.Search(r.Context(), listing.SearchRequest{
		Keyword:  r.URL.Query().Get("q"),
		Sort:     sort,
		Cursor:   base.Cursor,
		ViewerID: base.ViewerID,
		Limit:    base.Limit,
	}))
}

func (h *Handler) respond(w http.ResponseWriter) func(*listing.Page, error) {
	return func(page *listing.Page, err error) {
		if err != nil {
			handleServiceError(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, page)
	}
}

// parseListRequest reads limit and cursor; the viewer comes from auth only
func parseListRequest(r *http.Request) (listing.ListRequest, error) {
	req := listing.ListRequest{
		ViewerID: middleware.GetUserID(r),
		Limit:    listing.DefaultLimit,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return req, content.NewValidationError("limit", "limit must be a positive integer")
		}
		req.Limit = limit
	}

	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		req.Cursor = &cursor
	}

	return req, nil
}
