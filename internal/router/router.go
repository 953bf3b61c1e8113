package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"repricer-api/internal/handler"
	"repricer-api/internal/middleware"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler          *handler.Handler
	ListingHandler   *handler.ListingHandler
	StrategyHandler  *handler.StrategyHandler
	SyncHandler      *handler.SyncHandler
	ReductionHandler *handler.ReductionHandler
	OAuthHandler     *handler.OAuthHandler
	SettingsHandler  *handler.SettingsHandler
	AdminHandler     *handler.AdminHandler
	AuthMiddleware   func(http.Handler) http.Handler
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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}
	r.Handle("/metrics", promhttp.Handler())
	if cfg.OAuthHandler != nil {
		// The marketplace redirects the user's browser here; the single-use
		// state token authenticates the request.
		r.Get("/api/v1/marketplace/callback", cfg.OAuthHandler.Callback)
	}

	// AUTHENTICATED routes (use Group to apply auth middleware only to these)
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			// Health check endpoints
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			// Listing endpoints
			if cfg.ListingHandler != nil {
				r.Route("/listings", func(r chi.Router) {
					r.Get("/", cfg.ListingHandler.List)
					r.Post("/from-catalog", cfg.ListingHandler.CreateFromCatalog)
					r.Route("/{listing_id}", func(r chi.Router) {
						r.Get("/", cfg.ListingHandler.Get)
						r.Put("/monitoring", cfg.ListingHandler.UpdateMonitoringConfig)
						r.Get("/history", cfg.ListingHandler.History)
						r.Get("/preview", cfg.ListingHandler.Preview)
						r.Post("/reduce", cfg.ListingHandler.ReduceNow)
					})
				})
			}

			// Strategy endpoints
			if cfg.StrategyHandler != nil {
				r.Route("/strategies", func(r chi.Router) {
					r.Post("/", cfg.StrategyHandler.Create)
					r.Get("/", cfg.StrategyHandler.List)
					r.Route("/{strategy_id}", func(r chi.Router) {
						r.Get("/", cfg.StrategyHandler.Get)
						r.Put("/", cfg.StrategyHandler.Update)
						r.Delete("/", cfg.StrategyHandler.Delete)
					})
				})
			}

			// Marketplace sync and reduction triggers
			if cfg.SyncHandler != nil {
				r.Post("/sync", cfg.SyncHandler.Reconcile)
			}
			if cfg.ReductionHandler != nil {
				r.Post("/reductions/run", cfg.ReductionHandler.Run)
			}

			// Marketplace connection lifecycle
			if cfg.OAuthHandler != nil {
				r.Route("/marketplace", func(r chi.Router) {
					r.Put("/credentials", cfg.OAuthHandler.SetCredentials)
					r.Post("/connect", cfg.OAuthHandler.Connect)
					r.Get("/connection", cfg.OAuthHandler.Status)
					r.Delete("/connection", cfg.OAuthHandler.Disconnect)
				})
			}

			// Per-user settings
			if cfg.SettingsHandler != nil {
				r.Route("/settings", func(r chi.Router) {
					r.Get("/", cfg.SettingsHandler.Get)
					r.Put("/vacation", cfg.SettingsHandler.SetVacation)
				})
			}

			// Admin endpoints
			if cfg.AdminHandler != nil {
				r.Get("/admin/stats", cfg.AdminHandler.Stats)
			}
		})
	})

	return r
}
