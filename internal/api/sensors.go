package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListSensors returns a snapshot of the sensor registry.
func (s *Server) handleListSensors(w http.ResponseWriter, _ *http.Request) {
	sensors := s.controller.Sensors()
	writeJSON(w, http.StatusOK, map[string]any{
		"sensors": sensors,
		"count":   len(sensors),
	})
}

// handleUnregisterSensor deactivates a sensor by device ID.
//
// The slot is retained so history stays attributable; the sensor just
// stops counting as active. Registering happens implicitly when the
// sensor next reports.
func (s *Server) handleUnregisterSensor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeBadRequest(w, "sensor id is required")
		return
	}

	if !s.controller.Unregister(id) {
		writeNotFound(w, "sensor not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"active":    false,
	})
}
