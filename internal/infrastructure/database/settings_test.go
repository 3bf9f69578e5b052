package database

import (
	"context"
	"errors"
	"testing"
)

// openTestSettings creates a schema-initialised settings store.
func openTestSettings(t *testing.T) *Settings {
	t.Helper()

	db := openTestDB(t)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return NewSettings(db)
}

func TestSettings_SaveLoad(t *testing.T) {
	s := openTestSettings(t)
	ctx := context.Background()

	if err := s.Save(ctx, "sys_cfg", "boot_mode", []byte{2}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	value, err := s.Load(ctx, "sys_cfg", "boot_mode")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(value) != 1 || value[0] != 2 {
		t.Errorf("Load() = %v, want [2]", value)
	}
}

func TestSettings_Overwrite(t *testing.T) {
	s := openTestSettings(t)
	ctx := context.Background()

	if err := s.Save(ctx, "sys_cfg", "last_state", []byte{0}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, "sys_cfg", "last_state", []byte{1}); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}

	value, err := s.Load(ctx, "sys_cfg", "last_state")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(value) != 1 || value[0] != 1 {
		t.Errorf("Load() = %v, want [1]", value)
	}
}

func TestSettings_Loadabsent(t *testing.T) {
	s := openTestSettings(t)

	_, err := s.Load(context.Background(), "sys_cfg", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestSettings_Delete(t *testing.T) {
	s := openTestSettings(t)
	ctx := context.Background()

	if err := s.Save(ctx, "identity", "device_id", []byte("GW-ABC123")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Delete(ctx, "identity", "device_id"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := s.Load(ctx, "identity", "device_id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after Delete error = %v, want ErrNotFound", err)
	}

	// Deleting again is not an error.
	if err := s.Delete(ctx, "identity", "device_id"); err != nil {
		t.Errorf("Delete() absent key error = %v", err)
	}
}

func TestSettings_NamespaceIsolation(t *testing.T) {
	s := openTestSettings(t)
	ctx := context.Background()

	if err := s.Save(ctx, "ns_a", "key", []byte("a")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, "ns_b", "key", []byte("b")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	value, err := s.Load(ctx, "ns_a", "key")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(value) != "a" {
		t.Errorf("Load(ns_a) = %q, want %q", value, "a")
	}
}
