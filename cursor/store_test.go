package cursor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/polylake/goldsky-mirror/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logging.NewComponentLogger("cursor-test", "test")
	store, err := NewStore(logger, filepath.Join(t.TempDir(), "state", "cursor_state.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestStoreLoadMissing(t *testing.T) {
	store := newTestStore(t)

	cur, found, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if found {
		t.Error("found = true for missing checkpoint")
	}
	if cur.LastTimestamp != 0 || cur.Pinned() {
		t.Errorf("missing checkpoint returned non-zero cursor: %+v", cur)
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	saved := Advancing(1700000000).WithPin(1700000050, "fill-123")
	if err := store.Save(saved); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, found, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !found {
		t.Fatal("found = false after Save")
	}
	if loaded != saved {
		t.Errorf("loaded cursor = %+v, want %+v", loaded, saved)
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	cur, found, err := store.Load()
	if err != nil {
		t.Fatalf("Load of corrupt file should not error, got: %v", err)
	}
	if found {
		t.Error("found = true for corrupt checkpoint")
	}
	if cur != (Cursor{}) {
		t.Errorf("corrupt checkpoint returned %+v, want zero cursor", cur)
	}
}

func TestStoreClear(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save(Advancing(5)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Errorf("checkpoint file still exists after Clear")
	}

	// Clearing an already-missing checkpoint is fine.
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear failed: %v", err)
	}
}
