package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Frida144/site-segnorito/pkg/health"
	"github.com/Frida144/site-segnorito/pkg/middleware"
)

// RouterConfig holds the request-scoping settings of the router.
type RouterConfig struct {
	Session     SessionConfig
	CORSOrigins []string
}

// NewRouter creates a chi router with all cart routes registered.
func NewRouter(
	cartHandler *CartHandler,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("cart"))
	r.Use(middleware.Tracing("cart"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Session(cfg.Session))
		r.Use(middleware.RequestLogger(logger))
		r.Use(middleware.NoStore)

		// Storefront pages and form actions
		r.Get("/cart", cartHandler.CartPage)
		r.Post("/cart/items", cartHandler.AddItemForm)
		r.Post("/cart/items/{id}/{action}", cartHandler.ItemActionForm)
		r.Get("/cart/buttons/{id}", cartHandler.ButtonLabel)

		// Cart API endpoints
		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
			r.Use(ContentTypeJSON)

			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Post("/items", cartHandler.AddItem)
			r.Patch("/items/{id}", cartHandler.ChangeQuantity)
			r.Put("/items/{id}", cartHandler.SetQuantity)
			r.Delete("/items/{id}", cartHandler.RemoveItem)
		})
	})

	return r
}
