package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stretchr/testify/require"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/cache"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	internalErrors "github.com/tumbleweedd/two_services_system/saga_service/internal/lib/errors"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/services/idempotency"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/services/inventory"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/storage/memory"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

type capturingBus struct {
	mu     sync.Mutex
	events map[string][]models.Event
}

func newCapturingBus() *capturingBus {
	return &capturingBus{events: make(map[string][]models.Event)}
}

func (b *capturingBus) Publish(_ context.Context, channel string, event models.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[channel] = append(b.events[channel], event)
	return nil
}

func (b *capturingBus) published(channel string) []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Event(nil), b.events[channel]...)
}

type fixture struct {
	svc       *Service
	orders    *memory.OrderStore
	inventory *inventory.Service
	stock     *memory.InventoryStore
	bus       *capturingBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewSlogLogger(logger.EnvLocal)
	orders := memory.NewOrderStore()
	stock := memory.NewInventoryStore()
	inventorySvc := inventory.New(log, stock)
	ledger := idempotency.New(log, memory.NewProcessedEventStore())
	bus := newCapturingBus()
	orderCache := cache.NewLRU(expirable.NewLRU[string, *models.Order](128, nil, time.Minute))

	require.NoError(t, inventorySvc.Seed(context.Background(), "PROD-001", 100))

	return &fixture{
		svc:       New(log, orders, inventorySvc, ledger, bus, orderCache),
		orders:    orders,
		inventory: inventorySvc,
		stock:     stock,
		bus:       bus,
	}
}

func (f *fixture) createOrder(t *testing.T) (string, *models.OrderCreatedEvent) {
	t.Helper()

	orderID, err := f.svc.CreateOrder(context.Background(), models.CreateOrderRequest{
		CustomerID: "customer-1",
		Amount:     49.95,
		ProductID:  "PROD-001",
		Quantity:   10,
	})
	require.NoError(t, err)

	created := f.bus.published(models.ChannelOrderCreated)
	require.Len(t, created, 1)
	return orderID, created[0].(*models.OrderCreatedEvent)
}

func TestCreateOrder_Success(t *testing.T) {
	f := newFixture(t)

	orderID, event := f.createOrder(t)

	order, err := f.svc.Order(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPending, order.Status)
	require.NotEmpty(t, order.SagaID)
	require.Equal(t, order.SagaID, event.SagaID)

	inv, err := f.inventory.Inventory(context.Background(), "PROD-001")
	require.NoError(t, err)
	require.Equal(t, 90, inv.AvailableQuantity)
	require.Equal(t, 10, inv.ReservedQuantity)
}

func TestCreateOrder_InsufficientInventory(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), models.CreateOrderRequest{
		CustomerID: "customer-1",
		Amount:     10,
		ProductID:  "PROD-001",
		Quantity:   500,
	})
	require.ErrorIs(t, err, internalErrors.ErrInsufficientInventory)

	// Rejection happens before anything is persisted or published.
	require.Empty(t, f.bus.published(models.ChannelOrderCreated))

	inv, err := f.inventory.Inventory(context.Background(), "PROD-001")
	require.NoError(t, err)
	require.Equal(t, 100, inv.AvailableQuantity)
	require.Zero(t, inv.ReservedQuantity)
}

func TestHandlePaymentProcessed_CompletesOrder(t *testing.T) {
	f := newFixture(t)
	orderID, created := f.createOrder(t)

	event := &models.PaymentProcessedEvent{
		EventID:   models.NewEventID(),
		SagaID:    created.SagaID,
		OrderID:   orderID,
		PaymentID: "payment-1",
		Amount:    created.Amount,
		Timestamp: time.Now(),
	}
	require.NoError(t, f.svc.HandlePaymentProcessed(context.Background(), event))

	order, err := f.svc.Order(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, order.Status)

	completed := f.bus.published(models.ChannelOrderCompleted)
	require.Len(t, completed, 1)
	require.Equal(t, orderID, completed[0].(*models.OrderCompletedEvent).OrderID)
}

func TestHandlePaymentProcessed_DuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	orderID, created := f.createOrder(t)

	event := &models.PaymentProcessedEvent{
		EventID:   models.NewEventID(),
		SagaID:    created.SagaID,
		OrderID:   orderID,
		PaymentID: "payment-1",
		Timestamp: time.Now(),
	}
	require.NoError(t, f.svc.HandlePaymentProcessed(context.Background(), event))
	require.NoError(t, f.svc.HandlePaymentProcessed(context.Background(), event))

	require.Len(t, f.bus.published(models.ChannelOrderCompleted), 1)
}

func TestHandlePaymentFailed_CompensatesOnce(t *testing.T) {
	f := newFixture(t)
	orderID, created := f.createOrder(t)

	failed := &models.PaymentFailedEvent{
		EventID:   models.NewEventID(),
		SagaID:    created.SagaID,
		OrderID:   orderID,
		Amount:    created.Amount,
		Reason:    "simulated payment failure",
		ErrorCode: models.ErrorCodeProcessingFailed,
		Timestamp: time.Now(),
	}
	require.NoError(t, f.svc.HandlePaymentFailed(context.Background(), failed))

	order, err := f.svc.Order(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCancelled, order.Status)
	require.Equal(t, "simulated payment failure", order.CancelledReason)

	inv, err := f.inventory.Inventory(context.Background(), "PROD-001")
	require.NoError(t, err)
	require.Equal(t, 100, inv.AvailableQuantity)
	require.Zero(t, inv.ReservedQuantity)

	require.Len(t, f.bus.published(models.ChannelOrderCancelled), 1)
	require.Len(t, f.bus.published(models.ChannelInventoryRestocked), 1)

	// A second delivery with a fresh event id hits the terminal-state guard
	// and must not release the reservation again.
	redelivered := *failed
	redelivered.EventID = models.NewEventID()
	require.NoError(t, f.svc.HandlePaymentFailed(context.Background(), &redelivered))

	inv, err = f.inventory.Inventory(context.Background(), "PROD-001")
	require.NoError(t, err)
	require.Equal(t, 100, inv.AvailableQuantity)
	require.Len(t, f.bus.published(models.ChannelOrderCancelled), 1)
	require.Len(t, f.bus.published(models.ChannelInventoryRestocked), 1)
}

func TestHandlePaymentFailed_AfterCompletionIsNoOp(t *testing.T) {
	f := newFixture(t)
	orderID, created := f.createOrder(t)

	require.NoError(t, f.svc.HandlePaymentProcessed(context.Background(), &models.PaymentProcessedEvent{
		EventID:   models.NewEventID(),
		SagaID:    created.SagaID,
		OrderID:   orderID,
		PaymentID: "payment-1",
		Timestamp: time.Now(),
	}))

	// A stale failure arriving after completion must not cancel the order.
	require.NoError(t, f.svc.HandlePaymentFailed(context.Background(), &models.PaymentFailedEvent{
		EventID:   models.NewEventID(),
		SagaID:    created.SagaID,
		OrderID:   orderID,
		Reason:    "stale failure",
		ErrorCode: models.ErrorCodeProcessingFailed,
		Timestamp: time.Now(),
	}))

	order, err := f.svc.Order(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, order.Status)
	require.Empty(t, f.bus.published(models.ChannelOrderCancelled))
}

func TestHandlePaymentProcessed_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	// The order row is gone; redelivering the event forever would not help.
	require.NoError(t, f.svc.HandlePaymentProcessed(context.Background(), &models.PaymentProcessedEvent{
		EventID:   models.NewEventID(),
		SagaID:    models.NewSagaID(),
		OrderID:   "order-missing",
		PaymentID: "payment-1",
		Timestamp: time.Now(),
	}))

	require.Empty(t, f.bus.published(models.ChannelOrderCompleted))
}

func TestOrderBySagaID(t *testing.T) {
	f := newFixture(t)
	orderID, created := f.createOrder(t)

	order, err := f.svc.OrderBySagaID(context.Background(), created.SagaID)
	require.NoError(t, err)
	require.Equal(t, orderID, order.OrderID)

	_, err = f.svc.OrderBySagaID(context.Background(), "saga-missing")
	require.ErrorIs(t, err, internalErrors.ErrOrderNotFound)
}
