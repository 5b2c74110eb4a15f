package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/playontable/backend/internal/handlers"
	"github.com/playontable/backend/internal/metrics"
)

// NewRouter wires the HTTP surface: the websocket endpoint, liveness
// checks, metrics and the QR join-code helper. The timeout middleware
// is deliberately absent — it would sever long-lived websocket streams.
func NewRouter(h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(metrics.Middleware("relay"))

	r.Head("/", h.Health)
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/websocket", h.RelayWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/room/{code}/qr", h.RoomQR)
	})

	return r
}
