package channel

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the gateway can learn from its API key without the
// signing secret. The key is validated server-side; this is a local
// preflight so a mispasted key fails loudly at startup instead of as a
// silent join rejection.
type TokenInfo struct {
	// Role is the claimed access role, e.g. "anon".
	Role string

	// ProjectRef identifies the cloud project the key belongs to.
	ProjectRef string

	// ExpiresAt is the key's expiry, zero if absent.
	ExpiresAt time.Time
}

// Expired reports whether the key has already expired.
func (t TokenInfo) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// InspectToken parses the API key as a JWT without verifying its signature
// and extracts the claims the gateway cares about.
//
// Returns ErrInvalidToken for anything that is not a structurally valid JWT.
func InspectToken(token string) (TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var info TokenInfo
	if role, ok := claims["role"].(string); ok {
		info.Role = role
	}
	if ref, ok := claims["ref"].(string); ok {
		info.ProjectRef = ref
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}

	return info, nil
}
