package router

import (
	"net/http"

	"appproft-buybox-sync/internal/handler"
	"appproft-buybox-sync/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler       *handler.Handler
	SyncHandler   *handler.SyncHandler
	BuyBoxHandler *handler.BuyBoxHandler
	AlertHandler  *handler.AlertHandler
	AdminKey      string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Admin-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Monitoring endpoint kept outside /api/v1 for uptime checkers
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.SyncHandler != nil {
			r.Get("/sync/status", cfg.SyncHandler.Status)
			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminKey(cfg.AdminKey))
				r.Post("/sync", cfg.SyncHandler.Trigger)
			})
		}

		if cfg.BuyBoxHandler != nil {
			r.Get("/buybox", cfg.BuyBoxHandler.List)
			r.Get("/buybox/{asin}", cfg.BuyBoxHandler.Get)
			r.Get("/buybox/{asin}/history", cfg.BuyBoxHandler.History)
		}

		if cfg.AlertHandler != nil {
			r.Get("/alerts", cfg.AlertHandler.List)
			r.Get("/alerts/summary", cfg.AlertHandler.Summary)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":{"code":"NOT_FOUND","message":"route not found"}}`))
	})

	return r
}
