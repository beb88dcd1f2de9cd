// Package store persists orders and decryption bundles as flat,
// human-inspectable JSON files. Each store serializes its
// read-modify-write cycle behind a single mutex and replaces the whole
// file atomically on every mutation, so a crash immediately after a call
// never loses that call's effect.
package store

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"floragent/internal/logging"
	"floragent/internal/types"
)

// ordersFile is the on-disk shape of the order store: the id counter and
// the orders keyed by id, written together in one file replace so a
// persisted counter can never exceed the orders it implies.
type ordersFile struct {
	Counter int                    `json:"counter"`
	Orders  map[string]types.Order `json:"orders"`
}

// OrderStore persists orders plus the monotonically increasing counter
// that mints their identifiers.
type OrderStore struct {
	mu      sync.Mutex
	path    string
	counter int
	orders  map[string]types.Order
}

// NewOrderStore loads (or creates) the order store backed by the given
// JSON file.
func NewOrderStore(path string) (*OrderStore, error) {
	s := &OrderStore{
		path:   path,
		orders: make(map[string]types.Order),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	logging.Store("Order store ready: %d orders, counter=%d (%s)", len(s.orders), s.counter, path)
	return s, nil
}

// Reload re-reads the backing file, replacing in-memory state. A missing
// file resets the store to empty; this is the supported out-of-band reset
// mechanism.
func (s *OrderStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.counter = 0
			s.orders = make(map[string]types.Order)
			logging.Store("Orders file %s not found, starting empty", s.path)
			return nil
		}
		return fmt.Errorf("failed to read orders file: %w", err)
	}

	var f ordersFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse orders file %s: %w", s.path, err)
	}
	s.counter = f.Counter
	s.orders = f.Orders
	if s.orders == nil {
		s.orders = make(map[string]types.Order)
	}
	return nil
}

// Create atomically increments the counter, mints the next identifier,
// persists counter and orders together, and returns the new Order.
// Identifiers are never reused; near-identical payloads get distinct ids.
func (s *OrderStore) Create(ciphertext, bundleID string) (types.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.counter + 1
	order := types.Order{
		ID:         fmt.Sprintf("ORD-%04d", next),
		Ciphertext: ciphertext,
		BundleID:   bundleID,
		Status:     types.StatusCreated,
		CreatedAt:  time.Now(),
	}

	s.counter = next
	s.orders[order.ID] = order
	if err := s.persistLocked(); err != nil {
		// Roll back so a failed write cannot leave a minted id unpersisted.
		s.counter = next - 1
		delete(s.orders, order.ID)
		return types.Order{}, err
	}

	logging.Store("Order %s created (bundle %s)", order.ID, bundleID)
	return order, nil
}

// Get returns the order or an OrderNotFoundError.
func (s *OrderStore) Get(orderID string) (types.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return types.Order{}, &types.OrderNotFoundError{OrderID: orderID}
	}
	return order, nil
}

// MarkDecrypted flips the order's status to decrypted and persists. It is
// a no-op when the order is already decrypted.
func (s *OrderStore) MarkDecrypted(orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return &types.OrderNotFoundError{OrderID: orderID}
	}
	if order.Status == types.StatusDecrypted {
		return nil
	}
	order.Status = types.StatusDecrypted
	s.orders[orderID] = order
	return s.persistLocked()
}

// All returns a restartable sequence of orders in creation order.
func (s *OrderStore) All() iter.Seq[types.Order] {
	return func(yield func(types.Order) bool) {
		for _, o := range s.List() {
			if !yield(o) {
				return
			}
		}
	}
}

// List returns all orders in creation order.
func (s *OrderStore) List() []types.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		return orderSeq(out[i].ID) < orderSeq(out[j].ID)
	})
	return out
}

// Len returns the number of persisted orders.
func (s *OrderStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// Counter returns the current identifier counter.
func (s *OrderStore) Counter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// persistLocked writes the whole store via temp-file-then-rename. Caller
// holds the mutex.
func (s *OrderStore) persistLocked() error {
	f := ordersFile{Counter: s.counter, Orders: s.orders}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal orders: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// orderSeq extracts the numeric suffix of an order id for sorting.
// Lexical order breaks past ORD-9999.
func orderSeq(id string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(id, "ORD-"))
	return n
}

// writeFileAtomic replaces path with data via a same-directory temp file
// and rename, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
