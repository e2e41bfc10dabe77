package listing

import (
	"errors"
	"log/slog"
	"net/http"

	"Mosaic/internal/api/handlers"
	"Mosaic/internal/core/content"
	"Mosaic/internal/core/listing"
)

// handleServiceError maps service errors to HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case content.IsValidationError(err):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	case errors.Is(err, listing.ErrInvalidCursor):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidCursor", "The provided cursor is invalid")
	case errors.Is(err, content.ErrUnauthorized):
		handlers.WriteError(w, http.StatusUnauthorized, "AuthenticationRequired", "User must be authenticated")
	case errors.Is(err, content.ErrNotFound):
		handlers.WriteError(w, http.StatusNotFound, "NotFound", "Content not found")
	default:
		slog.Error("listing service error", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalServerError", "An error occurred while fetching content")
	}
}
