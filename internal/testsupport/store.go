package testsupport

import (
	"context"
	"testing"

	"finpod/internal/config"
	"finpod/internal/state"
)

// MustOpenStore opens a state.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *state.Store {
	t.Helper()

	store, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustLoadUnit loads a unit or fails the test.
func MustLoadUnit(t testing.TB, store *state.Store, company, period string) *state.EpisodeUnit {
	t.Helper()

	unit, err := store.LoadUnit(context.Background(), company, period)
	if err != nil {
		t.Fatalf("store.LoadUnit: %v", err)
	}
	return unit
}
