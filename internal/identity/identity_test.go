package identity

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/ghost-gateway/internal/infrastructure/database"
)

// =============================================================================
// Test Helpers
// =============================================================================

func openTestSettings(t *testing.T) *database.Settings {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(database.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	return database.NewSettings(db)
}

// =============================================================================
// Device ID Resolution
// =============================================================================

func TestNew_GeneratesDeviceID(t *testing.T) {
	settings := openTestSettings(t)

	p, err := New(context.Background(), settings, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	id := p.DeviceID()
	if !strings.HasPrefix(id, "GW-") {
		t.Errorf("expected GW- prefix, got %q", id)
	}
	if len(id) != len("GW-")+8 {
		t.Errorf("expected 8 hex chars after prefix, got %q", id)
	}
}

func TestNew_PersistsGeneratedID(t *testing.T) {
	settings := openTestSettings(t)

	first, err := New(context.Background(), settings, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// A second provider over the same store must see the same id.
	second, err := New(context.Background(), settings, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if first.DeviceID() != second.DeviceID() {
		t.Errorf("device id not stable across restarts: %q vs %q",
			first.DeviceID(), second.DeviceID())
	}
}

func TestNew_ConfigOverridesPersisted(t *testing.T) {
	settings := openTestSettings(t)
	ctx := context.Background()

	if _, err := New(ctx, settings, ""); err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p, err := New(ctx, settings, "GW-CONFIGURED")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := p.DeviceID(); got != "GW-CONFIGURED" {
		t.Errorf("expected configured id, got %q", got)
	}

	// Configured id must also be written back.
	again, err := New(ctx, settings, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := again.DeviceID(); got != "GW-CONFIGURED" {
		t.Errorf("configured id not persisted, got %q", got)
	}
}

// =============================================================================
// Pairing State
// =============================================================================

func TestProvider_Unprovisioned(t *testing.T) {
	settings := openTestSettings(t)

	p, err := New(context.Background(), settings, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if p.IsProvisioned() {
		t.Error("fresh gateway should not report provisioned")
	}
	if p.UserID() != "" {
		t.Errorf("expected empty user id, got %q", p.UserID())
	}
}

func TestProvider_SetUserID(t *testing.T) {
	settings := openTestSettings(t)
	ctx := context.Background()

	p, err := New(ctx, settings, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := p.SetUserID(ctx, "user-123"); err != nil {
		t.Fatalf("SetUserID failed: %v", err)
	}
	if !p.IsProvisioned() {
		t.Error("expected provisioned after SetUserID")
	}
	if got := p.UserID(); got != "user-123" {
		t.Errorf("expected user-123, got %q", got)
	}

	// Pairing survives a restart.
	restarted, err := New(ctx, settings, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !restarted.IsProvisioned() {
		t.Error("pairing did not survive restart")
	}
}

func TestProvider_ClearUserID(t *testing.T) {
	settings := openTestSettings(t)
	ctx := context.Background()

	p, err := New(ctx, settings, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := p.SetUserID(ctx, "user-123"); err != nil {
		t.Fatalf("SetUserID failed: %v", err)
	}
	if err := p.SetUserID(ctx, ""); err != nil {
		t.Fatalf("SetUserID failed: %v", err)
	}

	if p.IsProvisioned() {
		t.Error("expected unprovisioned after clearing user id")
	}
}
