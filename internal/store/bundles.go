package store

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"sort"
	"sync"

	"floragent/internal/logging"
	"floragent/internal/types"
)

// BundleStore persists decryption bundles keyed by bundle id. The backing
// file is a flat id-to-material JSON object, independently resettable from
// the orders file. An order whose bundle is gone surfaces a
// BundleMissingError downstream; that is the designed failure mode for an
// out-of-band reset, never a crash.
type BundleStore struct {
	mu      sync.Mutex
	path    string
	bundles map[string]json.RawMessage
}

// NewBundleStore loads (or creates) the bundle store backed by the given
// JSON file.
func NewBundleStore(path string) (*BundleStore, error) {
	s := &BundleStore{
		path:    path,
		bundles: make(map[string]json.RawMessage),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	logging.Store("Bundle store ready: %d bundles (%s)", len(s.bundles), path)
	return s, nil
}

// Reload re-reads the backing file, replacing in-memory state. A missing
// file resets the store to empty.
func (s *BundleStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.bundles = make(map[string]json.RawMessage)
			logging.Store("Bundles file %s not found, starting empty", s.path)
			return nil
		}
		return fmt.Errorf("failed to read bundles file: %w", err)
	}

	bundles := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &bundles); err != nil {
		return fmt.Errorf("failed to parse bundles file %s: %w", s.path, err)
	}
	s.bundles = bundles
	return nil
}

// Put stores or overwrites a bundle and durably persists the whole store
// before returning.
func (s *BundleStore) Put(bundleID string, material json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.bundles[bundleID]
	s.bundles[bundleID] = material
	if err := s.persistLocked(); err != nil {
		// Roll back to what is on disk: the previous material for an
		// overwrite, nothing for a fresh insert.
		if existed {
			s.bundles[bundleID] = prev
		} else {
			delete(s.bundles, bundleID)
		}
		return err
	}
	logging.Store("Bundle %s saved", bundleID)
	return nil
}

// Get returns the bundle material or a BundleMissingError. The caller
// fills in the owning order id for the diagnostic.
func (s *BundleStore) Get(bundleID string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	material, ok := s.bundles[bundleID]
	if !ok {
		return nil, &types.BundleMissingError{BundleID: bundleID}
	}
	return material, nil
}

// All returns a restartable sequence of stored bundle ids.
func (s *BundleStore) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, id := range s.IDs() {
			if !yield(id) {
				return
			}
		}
	}
}

// IDs returns all bundle ids, sorted for stable output.
func (s *BundleStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.bundles))
	for id := range s.bundles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of stored bundles.
func (s *BundleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bundles)
}

// persistLocked writes the whole store atomically. Caller holds the mutex.
func (s *BundleStore) persistLocked() error {
	data, err := json.MarshalIndent(s.bundles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bundles: %w", err)
	}
	return writeFileAtomic(s.path, data)
}
