package api

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/reconcile"
	"github.com/starford/ansuz/internal/recordservice"
	"github.com/starford/ansuz/internal/search"
	"github.com/starford/ansuz/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, is mounted at GET /events inside the auth group and
// receives record change events from the mutation handlers.
// vaultRoot is used to resolve the attachments directory.
func NewRouter(records *recordservice.Service, searcher *search.Service, runPass func(ctx context.Context) (reconcile.Stats, error), broker *sse.Broker, authEnabled bool, token string, vaultRoot string) chi.Router {
	h := NewHandler(records, searcher, runPass, broker)
	ah := NewAttachmentHandler(vaultRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Records CRUD.
	r.Get("/records", h.ListRecords)
	r.Post("/records", h.CreateRecord)
	r.Get("/records/{id}", h.GetRecord)
	r.Patch("/records/{id}", h.UpdateRecord)
	r.Delete("/records/{id}", h.DeleteRecord)
	r.Get("/records/{id}/related", h.Related)

	// Search.
	r.Get("/search", h.Search)

	// Reconciliation trigger.
	r.Post("/reconcile", h.Reconcile)

	// Attachments.
	r.Post("/attachments", ah.Upload)
	r.Get("/attachments/{filename}", ah.ServeFile)

	// SSE endpoint (protected by same auth middleware).
	if broker != nil {
		r.Get("/events", broker.ServeHTTP)
	}

	return r
}
