package interaction

import (
	"errors"
	"log/slog"
	"net/http"

	"Mosaic/internal/api/handlers"
	"Mosaic/internal/core/content"
)

// handleServiceError maps counter errors to HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case content.IsValidationError(err):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	case errors.Is(err, content.ErrNotFound):
		handlers.WriteError(w, http.StatusNotFound, "NotFound", "Content or relation not found")
	case errors.Is(err, content.ErrConflict):
		handlers.WriteError(w, http.StatusConflict, "AlreadyExists", "Already applied to this content")
	case errors.Is(err, content.ErrUnauthorized):
		handlers.WriteError(w, http.StatusUnauthorized, "AuthenticationRequired", "User must be authenticated")
	default:
		slog.Error("counter service error", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
	}
}
