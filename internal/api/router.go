package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Security state
		r.Route("/state", func(r chi.Router) {
			r.Get("/", s.handleGetState)
			r.Post("/arm", s.handleArm)
			r.Post("/disarm", s.handleDisarm)
			r.Post("/panic", s.handlePanic)
		})

		// Boot mode
		r.Route("/boot-mode", func(r chi.Router) {
			r.Get("/", s.handleGetBootMode)
			r.Put("/", s.handleSetBootMode)
		})

		// Sensor registry
		r.Route("/sensors", func(r chi.Router) {
			r.Get("/", s.handleListSensors)
			r.Delete("/{id}", s.handleUnregisterSensor)
		})

		// Pairing
		r.Route("/pairing", func(r chi.Router) {
			r.Get("/", s.handleGetPairing)
			r.Post("/link-code", s.handleLinkCode)
			r.Delete("/", s.handleUnpair)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	current, _ := s.controller.State()
	resp := map[string]any{
		"status":    "ok",
		"version":   s.version,
		"device_id": s.identity.DeviceID(),
		"state":     current.Name(),
	}
	if s.frames != nil {
		resp["dropped_frames"] = s.frames.DroppedFrames()
		resp["decode_errors"] = s.frames.DecodeErrors()
	}
	writeJSON(w, http.StatusOK, resp)
}
