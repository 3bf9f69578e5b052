package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/ghost-gateway/internal/controller"
	"github.com/nerrad567/ghost-gateway/internal/message"
)

// StateResponse reports the current and previous security state.
type StateResponse struct {
	State           string `json:"state"`
	StateCode       int    `json:"state_code"`
	Previous        string `json:"previous"`
	PreviousCode    int    `json:"previous_code"`
	DroppedMessages uint64 `json:"dropped_messages"`
}

// handleGetState returns the controller state.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	current, previous := s.controller.State()
	writeJSON(w, http.StatusOK, StateResponse{
		State:           current.Name(),
		StateCode:       int(current),
		Previous:        previous.Name(),
		PreviousCode:    int(previous),
		DroppedMessages: s.controller.DroppedMessages(),
	})
}

// handleArm arms the system.
//
// Arming is only permitted from the disarmed state; attempts from
// alarm or tamper return 409 so panels can surface a meaningful
// message instead of silently failing.
func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	err := s.controller.Arm(r.Context())
	switch {
	case errors.Is(err, controller.ErrAlreadyArmed):
		writeConflict(w, "system is already armed")
		return
	case errors.Is(err, controller.ErrNotArmable):
		writeConflict(w, "system cannot be armed from an alarm state")
		return
	case err != nil:
		writeInternalError(w, "arm failed")
		return
	}
	s.writeStateChanged(w)
}

// handleDisarm disarms the system. Always permitted.
func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Disarm(r.Context()); err != nil {
		writeInternalError(w, "disarm failed")
		return
	}
	s.writeStateChanged(w)
}

// handlePanic triggers the alarm regardless of current state.
func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.TriggerAlarm(r.Context()); err != nil {
		writeInternalError(w, "panic failed")
		return
	}
	s.writeStateChanged(w)
}

// writeStateChanged responds with the post-transition state.
func (s *Server) writeStateChanged(w http.ResponseWriter) {
	current, previous := s.controller.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":    current.Name(),
		"previous": previous.Name(),
	})
}

// bootModeNames maps boot modes to their API labels.
var bootModeNames = map[message.BootMode]string{
	message.BootRestoreLast:   "restore_last",
	message.BootForceDisarmed: "force_disarmed",
	message.BootForceArmed:    "force_armed",
}

// BootModeRequest selects the startup state policy.
type BootModeRequest struct {
	Mode string `json:"mode"`
}

// handleGetBootMode returns the configured boot mode.
func (s *Server) handleGetBootMode(w http.ResponseWriter, _ *http.Request) {
	mode := s.controller.BootMode()
	writeJSON(w, http.StatusOK, map[string]any{
		"mode": bootModeNames[mode],
		"code": int(mode),
	})
}

// handleSetBootMode persists a new boot mode.
func (s *Server) handleSetBootMode(w http.ResponseWriter, r *http.Request) {
	var req BootModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var mode message.BootMode
	found := false
	for m, name := range bootModeNames {
		if name == req.Mode {
			mode = m
			found = true
			break
		}
	}
	if !found {
		writeBadRequest(w, "mode must be one of: restore_last, force_disarmed, force_armed")
		return
	}

	if err := s.controller.SetBootMode(r.Context(), mode); err != nil {
		if errors.Is(err, controller.ErrInvalidBootMode) {
			writeBadRequest(w, "invalid boot mode")
			return
		}
		writeInternalError(w, "failed to persist boot mode")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode": bootModeNames[mode],
		"code": int(mode),
	})
}
