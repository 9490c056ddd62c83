package testsupport

import (
	"testing"

	"subtide/internal/config"
	"subtide/internal/queue"
)

// MustOpenStore opens the queue store for the test config and registers
// cleanup to close it.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open queue store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close queue store: %v", err)
		}
	})
	return store
}
