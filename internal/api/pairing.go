package api

import (
	"net/http"
)

// PairingResponse reports the gateway's pairing status.
type PairingResponse struct {
	DeviceID    string `json:"device_id"`
	Provisioned bool   `json:"provisioned"`
	UserID      string `json:"user_id,omitempty"`
}

// handleGetPairing returns the current pairing status.
func (s *Server) handleGetPairing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PairingResponse{
		DeviceID:    s.identity.DeviceID(),
		Provisioned: s.identity.IsProvisioned(),
		UserID:      s.identity.UserID(),
	})
}

// handleLinkCode requests a fresh pairing link code from the cloud.
//
// The code is displayed to the user, who enters it in the mobile app
// to claim this gateway.
func (s *Server) handleLinkCode(w http.ResponseWriter, r *http.Request) {
	if s.cloud == nil {
		writeUnavailable(w, "cloud client is not configured")
		return
	}

	code, err := s.cloud.RequestLinkCode(r.Context())
	if err != nil {
		s.logger.Error("link code request failed", "error", err)
		writeUnavailable(w, "cloud did not issue a link code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"link_code": code,
		"device_id": s.identity.DeviceID(),
	})
}

// handleUnpair clears the stored user association.
func (s *Server) handleUnpair(w http.ResponseWriter, r *http.Request) {
	if err := s.identity.SetUserID(r.Context(), ""); err != nil {
		writeInternalError(w, "failed to clear pairing")
		return
	}

	writeJSON(w, http.StatusOK, PairingResponse{
		DeviceID:    s.identity.DeviceID(),
		Provisioned: false,
	})
}
