package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/cache"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	internalErrors "github.com/tumbleweedd/two_services_system/saga_service/internal/lib/errors"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

const serviceName = "order-service"

// conflictRetries bounds re-read-and-retry on optimistic conflicts. Handlers
// are idempotent, so retrying the whole transition is safe.
const conflictRetries = 3

type orderStore interface {
	Insert(ctx context.Context, order *models.Order) error
	Order(ctx context.Context, orderID string) (*models.Order, error)
	OrderBySagaID(ctx context.Context, sagaID string) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
}

type inventoryLedger interface {
	IsAvailable(ctx context.Context, productID string, quantity int) (bool, error)
	Reserve(ctx context.Context, productID string, quantity int, sagaID string) error
	Release(ctx context.Context, productID string, quantity int, sagaID string) error
}

type idempotencyLedger interface {
	IsProcessed(ctx context.Context, eventID, sagaID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, sagaID, eventType, serviceName, orderID, correlationID string) error
}

type publisher interface {
	Publish(ctx context.Context, channel string, event models.Event) error
}

// Service is the order participant. It owns the order lifecycle, initiates
// the saga and drives compensation when the payment leg fails.
type Service struct {
	log         logger.Logger
	orders      orderStore
	inventory   inventoryLedger
	idempotency idempotencyLedger
	bus         publisher
	cache       cache.Cache[string, *models.Order]
}

func New(
	log logger.Logger,
	orders orderStore,
	inventory inventoryLedger,
	idempotency idempotencyLedger,
	bus publisher,
	orderCache cache.Cache[string, *models.Order],
) *Service {
	return &Service{
		log:         log,
		orders:      orders,
		inventory:   inventory,
		idempotency: idempotency,
		bus:         bus,
		cache:       orderCache,
	}
}

// CreateOrder starts a saga: advisory availability check, reservation,
// order persisted as PENDING, OrderCreated published. Each step runs only if
// the prior one succeeded, so a reservation failure leaves no order row.
// The orderID is returned immediately; the rest of the saga is asynchronous.
func (s *Service) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (string, error) {
	const op = "services.order.CreateOrder"

	orderID := uuid.New().String()
	sagaID := models.NewSagaID()
	correlationID := models.NewCorrelationID()

	s.log.InfoContext(ctx, op,
		logger.String("order_id", orderID),
		logger.String("saga_id", sagaID),
		logger.String("customer_id", req.CustomerID),
		logger.Float64("amount", req.Amount),
	)

	available, err := s.inventory.IsAvailable(ctx, req.ProductID, req.Quantity)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !available {
		s.log.WarnContext(ctx, op,
			logger.String("order_id", orderID),
			logger.String("product_id", req.ProductID),
			logger.Int("quantity", req.Quantity),
			logger.String("error", "insufficient inventory"),
		)
		return "", internalErrors.ErrInsufficientInventory
	}

	if err = s.inventory.Reserve(ctx, req.ProductID, req.Quantity, sagaID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	order := &models.Order{
		OrderID:       orderID,
		CustomerID:    req.CustomerID,
		Amount:        req.Amount,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		Status:        models.OrderStatusPending,
		SagaID:        sagaID,
		CorrelationID: correlationID,
	}

	if err = s.orders.Insert(ctx, order); err != nil {
		// Undo the reservation so a failed insert leaves no trace.
		if releaseErr := s.inventory.Release(ctx, req.ProductID, req.Quantity, sagaID); releaseErr != nil {
			s.log.Error(op, logger.String("release error", releaseErr.Error()))
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.cache.Add(orderID, order)

	event := &models.OrderCreatedEvent{
		EventID:      models.NewEventID(),
		SagaID:       sagaID,
		OrderID:      orderID,
		CustomerID:   req.CustomerID,
		Amount:       req.Amount,
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		OrderVersion: order.Version,
		Timestamp:    time.Now(),
	}

	if err = s.bus.Publish(ctx, models.ChannelOrderCreated, event); err != nil {
		s.log.Error(op, logger.String("publish error", err.Error()))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.InfoContext(ctx, op,
		logger.String("order_id", orderID),
		logger.String("saga_id", sagaID),
		logger.String("status", "OrderCreated published"),
	)

	return orderID, nil
}

// HandlePaymentProcessed completes the order. Redelivered or out-of-order
// events find the order already terminal and reduce to a mark-only no-op.
func (s *Service) HandlePaymentProcessed(ctx context.Context, event *models.PaymentProcessedEvent) error {
	const op = "services.order.HandlePaymentProcessed"

	processed, err := s.idempotency.IsProcessed(ctx, event.EventID, event.SagaID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if processed {
		s.log.InfoContext(ctx, op,
			logger.String("event_id", event.EventID),
			logger.String("saga_id", event.SagaID),
			logger.String("status", "already processed"),
		)
		return nil
	}

	for attempt := 0; attempt < conflictRetries; attempt++ {
		order, err := s.orders.Order(ctx, event.OrderID)
		if err != nil {
			if errors.Is(err, internalErrors.ErrOrderNotFound) {
				// The order should have been created earlier in this saga;
				// treat as permanent for this event.
				s.log.Error(op,
					logger.String("order_id", event.OrderID),
					logger.String("saga_id", event.SagaID),
					logger.String("error", "order not found"),
				)
				return nil
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		if order.Status.Terminal() {
			return s.markProcessed(ctx, event.EventID, event.SagaID, "PaymentProcessedEvent", order)
		}

		order.Status = models.OrderStatusCompleted
		if err = s.orders.Update(ctx, order); err != nil {
			if errors.Is(err, internalErrors.ErrOptimisticConflict) {
				continue
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		s.cache.Add(order.OrderID, order)

		if err = s.markProcessed(ctx, event.EventID, event.SagaID, "PaymentProcessedEvent", order); err != nil {
			return err
		}

		completed := &models.OrderCompletedEvent{
			EventID:    models.NewEventID(),
			SagaID:     event.SagaID,
			OrderID:    event.OrderID,
			CustomerID: order.CustomerID,
			Timestamp:  time.Now(),
		}
		if err = s.bus.Publish(ctx, models.ChannelOrderCompleted, completed); err != nil {
			s.log.Error(op, logger.String("publish error", err.Error()))
		}

		s.log.InfoContext(ctx, op,
			logger.String("order_id", event.OrderID),
			logger.String("saga_id", event.SagaID),
			logger.String("status", "order completed"),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", op, internalErrors.ErrOptimisticConflict)
}

// HandlePaymentFailed runs the compensation protocol: cancel the order with
// the supplied reason, release exactly what was reserved for the saga, and
// publish OrderCancelled plus InventoryRestocked. If the order is already
// CANCELLED only the idempotency marker is written, which keeps a redelivery
// from releasing inventory twice.
func (s *Service) HandlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	const op = "services.order.HandlePaymentFailed"

	processed, err := s.idempotency.IsProcessed(ctx, event.EventID, event.SagaID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if processed {
		s.log.InfoContext(ctx, op,
			logger.String("event_id", event.EventID),
			logger.String("saga_id", event.SagaID),
			logger.String("status", "already processed"),
		)
		return nil
	}

	for attempt := 0; attempt < conflictRetries; attempt++ {
		order, err := s.orders.Order(ctx, event.OrderID)
		if err != nil {
			if errors.Is(err, internalErrors.ErrOrderNotFound) {
				s.log.Error(op,
					logger.String("order_id", event.OrderID),
					logger.String("saga_id", event.SagaID),
					logger.String("error", "order not found"),
				)
				return nil
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		if order.Status.Terminal() {
			return s.markProcessed(ctx, event.EventID, event.SagaID, "PaymentFailedEvent", order)
		}

		order.Status = models.OrderStatusCancelled
		order.CancelledReason = event.Reason
		if err = s.orders.Update(ctx, order); err != nil {
			if errors.Is(err, internalErrors.ErrOptimisticConflict) {
				continue
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		s.cache.Add(order.OrderID, order)

		released := true
		if err = s.inventory.Release(ctx, order.ProductID, order.Quantity, order.SagaID); err != nil {
			if !errors.Is(err, internalErrors.ErrInvalidReservationState) {
				return fmt.Errorf("%s: %w", op, err)
			}
			// Bookkeeping defect upstream; log loudly, do not retry.
			s.log.Error(op,
				logger.String("order_id", order.OrderID),
				logger.String("saga_id", order.SagaID),
				logger.String("error", err.Error()),
			)
			released = false
		}

		if err = s.markProcessed(ctx, event.EventID, event.SagaID, "PaymentFailedEvent", order); err != nil {
			return err
		}

		cancelled := &models.OrderCancelledEvent{
			EventID:    models.NewEventID(),
			SagaID:     event.SagaID,
			OrderID:    order.OrderID,
			CustomerID: order.CustomerID,
			Reason:     event.Reason,
			Timestamp:  time.Now(),
		}
		if err = s.bus.Publish(ctx, models.ChannelOrderCancelled, cancelled); err != nil {
			s.log.Error(op, logger.String("publish error", err.Error()))
		}

		if released {
			restocked := &models.InventoryRestockedEvent{
				EventID:   models.NewEventID(),
				SagaID:    event.SagaID,
				OrderID:   order.OrderID,
				ProductID: order.ProductID,
				Quantity:  order.Quantity,
				Timestamp: time.Now(),
			}
			if err = s.bus.Publish(ctx, models.ChannelInventoryRestocked, restocked); err != nil {
				s.log.Error(op, logger.String("publish error", err.Error()))
			}
		}

		s.log.InfoContext(ctx, op,
			logger.String("order_id", order.OrderID),
			logger.String("saga_id", event.SagaID),
			logger.String("reason", event.Reason),
			logger.String("status", "order compensated"),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", op, internalErrors.ErrOptimisticConflict)
}

func (s *Service) Order(ctx context.Context, orderID string) (*models.Order, error) {
	if order, ok := s.cache.Get(orderID); ok && order != nil {
		return order, nil
	}

	order, err := s.orders.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.cache.Add(orderID, order)

	return order, nil
}

func (s *Service) OrderBySagaID(ctx context.Context, sagaID string) (*models.Order, error) {
	return s.orders.OrderBySagaID(ctx, sagaID)
}

func (s *Service) markProcessed(ctx context.Context, eventID, sagaID, eventType string, order *models.Order) error {
	if err := s.idempotency.MarkProcessed(ctx, eventID, sagaID, eventType, serviceName, order.OrderID, order.CorrelationID); err != nil {
		return err
	}
	return nil
}
