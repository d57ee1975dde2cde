package services

import (
	"context"
	"fmt"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/eventbus"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/services/idempotency"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/services/inventory"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/services/order"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/services/payment"
)

type subscriber interface {
	Subscribe(channel string, handler eventbus.Handler)
}

// Service bundles the saga participants behind one wiring point.
type Service struct {
	Order       *order.Service
	Payment     *payment.Service
	Inventory   *inventory.Service
	Idempotency *idempotency.Service
}

func New(
	orderService *order.Service,
	paymentService *payment.Service,
	inventoryService *inventory.Service,
	idempotencyService *idempotency.Service,
) *Service {
	return &Service{
		Order:       orderService,
		Payment:     paymentService,
		Inventory:   inventoryService,
		Idempotency: idempotencyService,
	}
}

// RegisterHandlers subscribes each participant to the channels it reacts to.
// This table is the whole choreography: there is no central coordinator, the
// saga advances because participants listen to each other's outcomes.
func (s *Service) RegisterHandlers(bus subscriber) {
	bus.Subscribe(models.ChannelOrderCreated, func(ctx context.Context, event models.Event) error {
		created, ok := event.(*models.OrderCreatedEvent)
		if !ok {
			return fmt.Errorf("unexpected event type %T on %s", event, models.ChannelOrderCreated)
		}
		return s.Payment.HandleOrderCreated(ctx, created)
	})

	bus.Subscribe(models.ChannelPaymentProcessed, func(ctx context.Context, event models.Event) error {
		processed, ok := event.(*models.PaymentProcessedEvent)
		if !ok {
			return fmt.Errorf("unexpected event type %T on %s", event, models.ChannelPaymentProcessed)
		}
		return s.Order.HandlePaymentProcessed(ctx, processed)
	})

	bus.Subscribe(models.ChannelPaymentFailed, func(ctx context.Context, event models.Event) error {
		failed, ok := event.(*models.PaymentFailedEvent)
		if !ok {
			return fmt.Errorf("unexpected event type %T on %s", event, models.ChannelPaymentFailed)
		}
		return s.Order.HandlePaymentFailed(ctx, failed)
	})

	bus.Subscribe(models.ChannelOrderCancelled, func(ctx context.Context, event models.Event) error {
		cancelled, ok := event.(*models.OrderCancelledEvent)
		if !ok {
			return fmt.Errorf("unexpected event type %T on %s", event, models.ChannelOrderCancelled)
		}
		return s.Payment.HandleOrderCancelled(ctx, cancelled)
	})
}
