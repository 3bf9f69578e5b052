// Package identity manages the gateway's device identity and pairing state.
//
// The identity is a short stable string (e.g. "GW-1A2B3C4D") generated on
// first boot and persisted; it tags every outbound cloud event and is used
// by the command router to discard state echoes the gateway itself produced.
// Pairing associates the gateway with a user account via a link code
// obtained from the cloud.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/ghost-gateway/internal/infrastructure/database"
)

// Settings keys used by the identity provider.
const (
	settingsNamespace = "identity"
	keyDeviceID       = "device_id"
	keyUserID         = "user_id"
)

// devicePrefix is prepended to generated device ids.
const devicePrefix = "GW-"

// Provider resolves and persists the gateway's identity.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Provider struct {
	settings *database.Settings

	mu       sync.RWMutex
	deviceID string
	userID   string
}

// New creates an identity provider over the given settings store.
//
// If cfgDeviceID is non-empty it takes precedence over any persisted id and
// is written back to the store. Otherwise the persisted id is used, or a new
// one is generated and persisted on first boot.
//
// Parameters:
//   - ctx: Context for the initial settings reads
//   - settings: Persistent key/value store
//   - cfgDeviceID: Device id from configuration, may be empty
//
// Returns:
//   - *Provider: Ready identity provider
//   - error: If the settings store fails
func New(ctx context.Context, settings *database.Settings, cfgDeviceID string) (*Provider, error) {
	p := &Provider{settings: settings}

	deviceID, err := p.resolveDeviceID(ctx, cfgDeviceID)
	if err != nil {
		return nil, err
	}
	p.deviceID = deviceID

	// A missing user id just means the gateway is unpaired.
	userID, err := settings.Load(ctx, settingsNamespace, keyUserID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("identity: loading user id: %w", err)
	}
	p.userID = string(userID)

	return p, nil
}

// resolveDeviceID picks the device id per precedence: config, persisted,
// freshly generated.
func (p *Provider) resolveDeviceID(ctx context.Context, cfgDeviceID string) (string, error) {
	if cfgDeviceID != "" {
		if err := p.settings.Save(ctx, settingsNamespace, keyDeviceID, []byte(cfgDeviceID)); err != nil {
			return "", fmt.Errorf("identity: persisting configured device id: %w", err)
		}
		return cfgDeviceID, nil
	}

	stored, err := p.settings.Load(ctx, settingsNamespace, keyDeviceID)
	if err == nil {
		return string(stored), nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return "", fmt.Errorf("identity: loading device id: %w", err)
	}

	generated := generateDeviceID()
	if err := p.settings.Save(ctx, settingsNamespace, keyDeviceID, []byte(generated)); err != nil {
		return "", fmt.Errorf("identity: persisting generated device id: %w", err)
	}
	return generated, nil
}

// generateDeviceID builds a short, human-readable device id from a UUID.
func generateDeviceID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return devicePrefix + strings.ToUpper(raw[:8])
}

// DeviceID returns the gateway's stable device identifier.
func (p *Provider) DeviceID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.deviceID
}

// IsProvisioned reports whether the gateway has been paired with a user.
func (p *Provider) IsProvisioned() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.userID != ""
}

// UserID returns the paired user's id, or "" if unpaired.
func (p *Provider) UserID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.userID
}

// SetUserID records a pairing and persists it.
// Passing "" clears the pairing.
func (p *Provider) SetUserID(ctx context.Context, userID string) error {
	if err := p.settings.Save(ctx, settingsNamespace, keyUserID, []byte(userID)); err != nil {
		return fmt.Errorf("identity: persisting user id: %w", err)
	}

	p.mu.Lock()
	p.userID = userID
	p.mu.Unlock()
	return nil
}
