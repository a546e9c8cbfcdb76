package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"schemeaccess/pkg/db"
)

// setupTestStore creates a test database and store for each test.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	d, err := db.Init(dbPath)
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	return NewSQLiteStore(d)
}

func TestSQLiteStore_State(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	if _, ok := store.GetState(ctx, "missing"); ok {
		t.Error("GetState on missing key should report not found")
	}

	if err := store.SetState(ctx, "accessibility-settings", `{"fontScale":120}`); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	val, ok := store.GetState(ctx, "accessibility-settings")
	if !ok || val != `{"fontScale":120}` {
		t.Errorf("GetState = %q, %v", val, ok)
	}

	// Overwrite keeps a single record
	if err := store.SetState(ctx, "accessibility-settings", `{"fontScale":90}`); err != nil {
		t.Fatalf("SetState overwrite failed: %v", err)
	}
	val, _ = store.GetState(ctx, "accessibility-settings")
	if val != `{"fontScale":90}` {
		t.Errorf("expected overwritten value, got %q", val)
	}
	if ts, ok := store.UpdatedAt(ctx, "accessibility-settings"); !ok || time.Since(ts) > time.Minute {
		t.Errorf("UpdatedAt = %v, %v", ts, ok)
	}

	if err := store.DeleteState(ctx, "accessibility-settings"); err != nil {
		t.Fatalf("DeleteState failed: %v", err)
	}
	if _, ok := store.GetState(ctx, "accessibility-settings"); ok {
		t.Error("state should be gone after DeleteState")
	}
}

func TestSQLiteStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	for _, k := range []string{"accessibility-settings", "accessibility-settings.kiosk"} {
		if err := store.SetState(ctx, k, k); err != nil {
			t.Fatalf("SetState(%s) failed: %v", k, err)
		}
	}
	if err := store.DeleteState(ctx, "accessibility-settings"); err != nil {
		t.Fatalf("DeleteState failed: %v", err)
	}
	if val, ok := store.GetState(ctx, "accessibility-settings.kiosk"); !ok || val != "accessibility-settings.kiosk" {
		t.Errorf("sibling record affected: %q, %v", val, ok)
	}
	if _, ok := store.UpdatedAt(ctx, "accessibility-settings"); ok {
		t.Error("UpdatedAt should miss a deleted record")
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	d1, err := db.Init(path)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := NewSQLiteStore(d1).SetState(ctx, "k", "v"); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	d1.Close()

	d2, err := db.Init(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer d2.Close()

	if val, ok := NewSQLiteStore(d2).GetState(ctx, "k"); !ok || val != "v" {
		t.Errorf("GetState after reopen = %q, %v", val, ok)
	}
}

func TestSQLiteStore_Close(t *testing.T) {
	ctx := context.Background()
	d, err := db.Init(filepath.Join(t.TempDir(), "close.db"))
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	store := NewSQLiteStore(d)

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.SetState(ctx, "k", "v"); err == nil {
		t.Error("SetState after Close should fail")
	}
}
