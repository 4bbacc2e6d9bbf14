/*
server.go - HTTP router and middleware configuration

PURPOSE:
  A read-only diagnostics surface over one store: current schema, partition
  cursors, and registry refcounts. This is deliberately not a transacting
  API — callers that want to write embed this module directly and call
  fact/tx.Driver.Transact in-process; exposing writes over HTTP is outside
  this core's scope.

ROUTER: chi, the same as the rest of this codebase's HTTP surfaces.

MIDDLEWARE STACK:
  1. Logger:    request logging
  2. Recoverer: panic recovery (500 instead of crash)
  3. RequestID: unique id per request for tracing
  4. CORS:      cross-origin requests for a local diagnostics UI

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/factdb/main.go: server startup
*/
package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router exposing h's read-only diagnostic routes.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/schema", func(r chi.Router) {
			r.Get("/", h.ListAttributes)
			r.Get("/{ident}", h.GetAttribute)
		})
		r.Route("/partitions", func(r chi.Router) {
			r.Get("/", h.ListPartitions)
		})
		r.Route("/entities", func(r chi.Router) {
			r.Get("/{entid}", h.GetEntity)
		})
		r.Get("/registry", h.RegistryStatus)
	})

	return r
}
