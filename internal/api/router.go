package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Default mount points when the configuration leaves them empty.
const (
	defaultWSPath      = "/ws"
	defaultWebhookPath = "/webhook"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(middleware.RequestSize(maxRequestBodySize))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	// SwitchBot cloud cannot present a token, so the webhook stays public.
	if s.webhookCfg.Enabled {
		r.Post(pathOrDefault(s.webhookCfg.Path, defaultWebhookPath), s.handleWebhook)
	}

	r.Get("/api/v1/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/api/v1/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Put("/state", s.handleSetDeviceState)
				r.Post("/refresh", s.handleRefreshDevice)
				r.Get("/history", s.handleGetDeviceHistory)
			})
		})

		r.Get(pathOrDefault(s.wsCfg.Path, defaultWSPath), s.handleWebSocket)
	})

	return r
}

// handleHealth returns the bridge health as last published on MQTT.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.bridge.Health()
	if health.Version == "" {
		health.Version = s.version
	}
	writeJSON(w, http.StatusOK, health)
}

func pathOrDefault(path, def string) string {
	if path == "" {
		return def
	}
	return path
}
