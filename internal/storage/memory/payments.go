package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	internalErrors "github.com/tumbleweedd/two_services_system/saga_service/internal/lib/errors"
)

type PaymentStore struct {
	mu       sync.RWMutex
	payments map[string]models.Payment
	byOrder  map[string]string
	bySaga   map[string]string
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		payments: make(map[string]models.Payment),
		byOrder:  make(map[string]string),
		bySaga:   make(map[string]string),
	}
}

// Insert rejects a second payment for the same order, whatever its status.
// This is the entity-level guard behind the one-payment-per-order invariant.
func (s *PaymentStore) Insert(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byOrder[payment.OrderID]; ok {
		return internalErrors.ErrPaymentExists
	}

	now := time.Now()
	payment.Version = 1
	payment.CreatedAt = now
	payment.UpdatedAt = now

	s.payments[payment.PaymentID] = *payment
	s.byOrder[payment.OrderID] = payment.PaymentID
	s.bySaga[payment.SagaID] = payment.PaymentID

	return nil
}

func (s *PaymentStore) Payment(_ context.Context, paymentID string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, ok := s.payments[paymentID]
	if !ok {
		return nil, internalErrors.ErrPaymentNotFound
	}

	return &payment, nil
}

func (s *PaymentStore) PaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	s.mu.RLock()
	paymentID, ok := s.byOrder[orderID]
	s.mu.RUnlock()

	if !ok {
		return nil, internalErrors.ErrPaymentNotFound
	}

	return s.Payment(ctx, paymentID)
}

func (s *PaymentStore) PaymentBySagaID(ctx context.Context, sagaID string) (*models.Payment, error) {
	s.mu.RLock()
	paymentID, ok := s.bySaga[sagaID]
	s.mu.RUnlock()

	if !ok {
		return nil, internalErrors.ErrPaymentNotFound
	}

	return s.Payment(ctx, paymentID)
}

func (s *PaymentStore) Update(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.payments[payment.PaymentID]
	if !ok {
		return internalErrors.ErrPaymentNotFound
	}

	if current.Version != payment.Version {
		return internalErrors.ErrOptimisticConflict
	}

	payment.Version++
	payment.UpdatedAt = time.Now()
	s.payments[payment.PaymentID] = *payment

	return nil
}
