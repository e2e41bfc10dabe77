package routes

import (
	"net/http"

	"Mosaic/internal/api/handlers/interaction"
	"Mosaic/internal/api/handlers/listing"
	"Mosaic/internal/api/middleware"
	"Mosaic/internal/core/content"
	"Mosaic/internal/core/counters"
	listingCore "Mosaic/internal/core/listing"

	"github.com/go-chi/chi/v5"
)

// RegisterContentRoutes mounts the listing and interaction endpoints of one kind under /v1/{kind}.
// rateLimit runs after authentication so authenticated viewers are limited per user;
// nil disables it.
func RegisterContentRoutes(
	r chi.Router,
	kind content.Kind,
	listingService listingCore.Service,
	counterService counters.Service,
	authMiddleware *middleware.JWTAuthMiddleware,
	rateLimit func(http.Handler) http.Handler,
) {
	listHandler := listing.NewHandler(listingService)
	interactionHandler := interaction.NewHandler(counterService)

	r.Route("/v1/"+string(kind), func(r chi.Router) {
		// Public listings; a valid token adds viewer state
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.OptionalAuth)
			if rateLimit != nil {
				r.Use(rateLimit)
			}
			r.Get("/latest", listHandler.HandleLatest)
			r.Get("/oldest", listHandler.HandleOldest)
			r.Get("/popular", listHandler.HandlePopular)
			r.Get("/search", listHandler.HandleSearch)
			r.Get("/authors/{authorId}", listHandler.HandleByAuthor)
			r.Post("/{id}/view", interactionHandler.HandleView)
		})

		// Viewer-scoped listings and mutations
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			if rateLimit != nil {
				r.Use(rateLimit)
			}
			r.Get("/following", listHandler.HandleFollowing)
			r.Get("/saved", listHandler.HandleSaved)
			r.Post("/{id}/like", interactionHandler.HandleLike)
			r.Delete("/{id}/like", interactionHandler.HandleUnlike)
			r.Post("/{id}/save", interactionHandler.HandleSave)
			r.Delete("/{id}/save", interactionHandler.HandleUnsave)
		})
	})
}
