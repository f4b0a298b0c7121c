package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.Handler())

	// Bearer auth when a token is configured; the default bind is loopback
	// so an unset token leaves these open locally.
	r.Group(func(r chi.Router) {
		if g.authToken != "" {
			r.Use(authMiddleware(g.authToken))
		}
		r.Get("/status", g.handleStatus())
		r.Get("/ws/events", g.hub.ServeHTTP)
	})

	return r
}
