// internal/api/routes/routes.go
package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fawad-mazhar/helios/internal/api/handlers"
	"github.com/fawad-mazhar/helios/internal/config"
	"github.com/fawad-mazhar/helios/internal/lifecycle"
	"github.com/fawad-mazhar/helios/internal/registry"
	"github.com/fawad-mazhar/helios/internal/storage/leveldb"
	"github.com/fawad-mazhar/helios/internal/storage/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SetupRouter wires the status server. archive may be nil, in which
// case the archive endpoint is not registered.
func SetupRouter(cfg *config.Config, reg *registry.Registry, controller *lifecycle.Controller, store *leveldb.Client, archive *postgres.Client) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Initialize handlers
	statusHandler := handlers.NewStatusHandler(reg)
	runHandler := handlers.NewRunHandler(controller, reg, store)

	jsonContentType := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, r)
		})
	}

	// Read endpoints
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Get("/summary", statusHandler.GetSummary)
		r.Get("/runs/{port}", statusHandler.GetRun)

		if archive != nil {
			archiveHandler := handlers.NewArchiveHandler(archive)
			r.Get("/archive", archiveHandler.ListRuns)
		}
	})

	// One-shot command endpoints
	r.Group(func(r chi.Router) {
		r.Use(jsonContentType)

		r.Post("/start_all", runHandler.CommandAll(lifecycle.CommandStart))
		r.Post("/pause_all", runHandler.CommandAll(lifecycle.CommandPause))
		r.Post("/end_all", runHandler.CommandAll(lifecycle.CommandEnd))

		r.Get("/start_sim/{port}", runHandler.CommandSim(lifecycle.CommandStart))
		r.Get("/pause_sim/{port}", runHandler.CommandSim(lifecycle.CommandPause))
		r.Get("/end_sim/{port}", runHandler.CommandSim(lifecycle.CommandEnd))
	})

	r.Get("/fetch_sim/{port}", runHandler.FetchSim)

	// Dashboard page, polls /api/v1/summary once per second
	r.Get("/", serveDashboard)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	return r
}
