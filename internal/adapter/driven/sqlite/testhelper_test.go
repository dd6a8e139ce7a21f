package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore opens a vault store backed by a fresh file in a per-test
// temporary directory. The store is closed on cleanup.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vault.db")
	store, err := Open(context.Background(), path, time.Second)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })

	return store
}
