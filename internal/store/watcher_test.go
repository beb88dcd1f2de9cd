package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newWatchedStores(t *testing.T) (*OrderStore, *BundleStore, *ResetWatcher) {
	t.Helper()
	dir := t.TempDir()
	orders, err := NewOrderStore(filepath.Join(dir, "orders_db.json"))
	if err != nil {
		t.Fatalf("orders store: %v", err)
	}
	bundles, err := NewBundleStore(filepath.Join(dir, "bundles_db.json"))
	if err != nil {
		t.Fatalf("bundles store: %v", err)
	}
	w, err := NewResetWatcher(orders, bundles)
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(w.Stop)
	return orders, bundles, w
}

// waitFor polls cond for up to 5s; file events arrive asynchronously and
// behind a debounce window.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWatcherReloadsOrdersOnExternalWrite(t *testing.T) {
	orders, _, _ := newWatchedStores(t)

	if _, err := orders.Create("ct-1", "b-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if orders.Len() != 1 {
		t.Fatalf("want 1 order, got %d", orders.Len())
	}

	// Reset the file out-of-band, the way an operator would. No settling
	// pause first: the reset lands in the same burst as the store's own
	// write, and the reload must still happen once the burst goes quiet.
	reset, _ := json.Marshal(map[string]interface{}{"counter": 0, "orders": map[string]interface{}{}})
	if err := os.WriteFile(orders.path, reset, 0o644); err != nil {
		t.Fatalf("external write: %v", err)
	}

	waitFor(t, func() bool { return orders.Len() == 0 }, "store did not reload after external reset")
	waitFor(t, func() bool { return orders.Counter() == 0 }, "counter did not reset")
}

func TestWatcherReloadsBundlesOnExternalDelete(t *testing.T) {
	_, bundles, _ := newWatchedStores(t)

	if err := bundles.Put("b-1", json.RawMessage(`{"k":"v"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.Remove(bundles.path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	waitFor(t, func() bool { return bundles.Len() == 0 }, "bundle store did not reset after delete")
}

func TestWatcherReloadsFinalContentOfWriteBurst(t *testing.T) {
	orders, _, _ := newWatchedStores(t)

	// A rewrite in flight is not valid JSON; only the final content of
	// the burst matters.
	if err := os.WriteFile(orders.path, []byte(`{"counter": 7, "or`), 0o644); err != nil {
		t.Fatalf("partial write: %v", err)
	}
	final, _ := json.Marshal(map[string]interface{}{"counter": 7, "orders": map[string]interface{}{}})
	if err := os.WriteFile(orders.path, final, 0o644); err != nil {
		t.Fatalf("final write: %v", err)
	}

	waitFor(t, func() bool { return orders.Counter() == 7 }, "store did not pick up the final write of the burst")
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	_, _, w := newWatchedStores(t)
	w.Stop()
	w.Stop() // second stop must not panic or block
}
