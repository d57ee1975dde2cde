package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	internalErrors "github.com/tumbleweedd/two_services_system/saga_service/internal/lib/errors"
)

// OrderStore keeps orders in memory with the same optimistic-concurrency
// contract as the Postgres repository: Update succeeds only when the passed
// entity carries the stored version, and bumps it by one.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]models.Order
	bySaga map[string]string
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]models.Order),
		bySaga: make(map[string]string),
	}
}

func (s *OrderStore) Insert(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.OrderID]; ok {
		return internalErrors.ErrOrderExists
	}

	now := time.Now()
	order.Version = 1
	order.CreatedAt = now
	order.UpdatedAt = now

	s.orders[order.OrderID] = *order
	s.bySaga[order.SagaID] = order.OrderID

	return nil
}

func (s *OrderStore) Order(_ context.Context, orderID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, internalErrors.ErrOrderNotFound
	}

	return &order, nil
}

func (s *OrderStore) OrderBySagaID(ctx context.Context, sagaID string) (*models.Order, error) {
	s.mu.RLock()
	orderID, ok := s.bySaga[sagaID]
	s.mu.RUnlock()

	if !ok {
		return nil, internalErrors.ErrOrderNotFound
	}

	return s.Order(ctx, orderID)
}

// Update writes the order back if its version still matches the stored one.
// A stale version fails with ErrOptimisticConflict so the caller can re-read
// and retry, which is distinct from any business-rule failure.
func (s *OrderStore) Update(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[order.OrderID]
	if !ok {
		return internalErrors.ErrOrderNotFound
	}

	if current.Version != order.Version {
		return internalErrors.ErrOptimisticConflict
	}

	order.Version++
	order.UpdatedAt = time.Now()
	s.orders[order.OrderID] = *order

	return nil
}
