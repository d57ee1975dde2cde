package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	internalErrors "github.com/tumbleweedd/two_services_system/saga_service/internal/lib/errors"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

type inventoryStore interface {
	Inventory(ctx context.Context, productID string) (*models.Inventory, error)
	Put(ctx context.Context, inv models.Inventory) error
	WithLock(ctx context.Context, productID string, fn func(inv *models.Inventory) error) error
}

// Service is the inventory ledger: per-product available/reserved counters
// with a reservation protocol that is safe under concurrent writers.
type Service struct {
	log   logger.Logger
	store inventoryStore
}

func New(log logger.Logger, store inventoryStore) *Service {
	return &Service{
		log:   log,
		store: store,
	}
}

// IsAvailable is advisory only. The answer can be stale the moment it is
// returned; Reserve re-validates under the row lock, so a passed check
// followed by a failed reservation is an expected race, not a bug.
func (s *Service) IsAvailable(ctx context.Context, productID string, quantity int) (bool, error) {
	inv, err := s.store.Inventory(ctx, productID)
	if err != nil {
		if errors.Is(err, internalErrors.ErrProductNotFound) {
			return false, nil
		}
		return false, err
	}

	return inv.CanReserve(quantity), nil
}

// Reserve takes the product's exclusive lock, re-checks availability under
// it, and moves quantity from available to reserved in the same hold.
func (s *Service) Reserve(ctx context.Context, productID string, quantity int, sagaID string) error {
	const op = "services.inventory.Reserve"

	err := s.store.WithLock(ctx, productID, func(inv *models.Inventory) error {
		if !inv.CanReserve(quantity) {
			return fmt.Errorf("%w: product %s has %d available, requested %d",
				internalErrors.ErrInsufficientInventory, productID, inv.AvailableQuantity, quantity)
		}

		inv.AvailableQuantity -= quantity
		inv.ReservedQuantity += quantity
		return nil
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, op,
		logger.String("product_id", productID),
		logger.Int("quantity", quantity),
		logger.String("saga_id", sagaID),
	)

	return nil
}

// Release moves quantity back from reserved to available. Releasing more
// than is reserved signals a saga bookkeeping defect upstream and fails with
// ErrInvalidReservationState; it is not retried.
func (s *Service) Release(ctx context.Context, productID string, quantity int, sagaID string) error {
	const op = "services.inventory.Release"

	err := s.store.WithLock(ctx, productID, func(inv *models.Inventory) error {
		if inv.ReservedQuantity < quantity {
			return fmt.Errorf("%w: product %s has %d reserved, release of %d requested",
				internalErrors.ErrInvalidReservationState, productID, inv.ReservedQuantity, quantity)
		}

		inv.ReservedQuantity -= quantity
		inv.AvailableQuantity += quantity
		return nil
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, op,
		logger.String("product_id", productID),
		logger.Int("quantity", quantity),
		logger.String("saga_id", sagaID),
	)

	return nil
}

func (s *Service) Inventory(ctx context.Context, productID string) (*models.Inventory, error) {
	return s.store.Inventory(ctx, productID)
}

// Seed creates missing product rows at startup. Existing rows are left
// untouched so a restart does not reset live counters.
func (s *Service) Seed(ctx context.Context, productID string, quantity int) error {
	const op = "services.inventory.Seed"

	if _, err := s.store.Inventory(ctx, productID); err == nil {
		return nil
	} else if !errors.Is(err, internalErrors.ErrProductNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.Put(ctx, models.Inventory{
		ProductID:         productID,
		AvailableQuantity: quantity,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info(op, logger.String("product_id", productID), logger.Int("quantity", quantity))

	return nil
}
