package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	internalErrors "github.com/tumbleweedd/two_services_system/saga_service/internal/lib/errors"
)

// InventoryStore holds per-product counters behind a per-row exclusive lock.
// Locks are scoped per product, never per saga, so two sagas touching
// different products never contend.
type InventoryStore struct {
	mu   sync.RWMutex
	rows map[string]*inventoryRow
}

type inventoryRow struct {
	mu  sync.Mutex
	inv models.Inventory
}

func NewInventoryStore() *InventoryStore {
	return &InventoryStore{
		rows: make(map[string]*inventoryRow),
	}
}

func (s *InventoryStore) Put(_ context.Context, inv models.Inventory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.Version == 0 {
		inv.Version = 1
	}
	inv.LastUpdated = time.Now()
	s.rows[inv.ProductID] = &inventoryRow{inv: inv}

	return nil
}

// Inventory is a dirty read: the returned snapshot may be stale by the time
// the caller acts on it. Mutation goes through WithLock.
func (s *InventoryStore) Inventory(_ context.Context, productID string) (*models.Inventory, error) {
	s.mu.RLock()
	row, ok := s.rows[productID]
	s.mu.RUnlock()

	if !ok {
		return nil, internalErrors.ErrProductNotFound
	}

	row.mu.Lock()
	inv := row.inv
	row.mu.Unlock()

	return &inv, nil
}

// WithLock runs fn against a fresh read of the product row while holding its
// exclusive lock, and persists the mutated counters under the same hold when
// fn returns nil. The lock covers only read-check-write; callers must not do
// external I/O inside fn.
func (s *InventoryStore) WithLock(_ context.Context, productID string, fn func(inv *models.Inventory) error) error {
	s.mu.RLock()
	row, ok := s.rows[productID]
	s.mu.RUnlock()

	if !ok {
		return internalErrors.ErrProductNotFound
	}

	row.mu.Lock()
	defer row.mu.Unlock()

	inv := row.inv
	if err := fn(&inv); err != nil {
		return err
	}

	inv.Version++
	inv.LastUpdated = time.Now()
	row.inv = inv

	return nil
}
