package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	internalErrors "github.com/tumbleweedd/two_services_system/saga_service/internal/lib/errors"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/services/idempotency"
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

func newTestService(t *testing.T, cfg Config) (*Service, *memory.PaymentStore, *capturingBus) {
	t.Helper()

	log := logger.NewSlogLogger(logger.EnvLocal)
	payments := memory.NewPaymentStore()
	ledger := idempotency.New(log, memory.NewProcessedEventStore())
	bus := newCapturingBus()

	return New(log, payments, ledger, bus, cfg), payments, bus
}

func orderCreated() *models.OrderCreatedEvent {
	return &models.OrderCreatedEvent{
		EventID:    models.NewEventID(),
		SagaID:     models.NewSagaID(),
		OrderID:    "order-1",
		CustomerID: "customer-1",
		Amount:     99.90,
		ProductID:  "PROD-001",
		Quantity:   2,
		Timestamp:  time.Now(),
	}
}

func TestHandleOrderCreated_Success(t *testing.T) {
	svc, payments, bus := newTestService(t, Config{FailureRate: 0})

	event := orderCreated()
	require.NoError(t, svc.HandleOrderCreated(context.Background(), event))
	svc.Wait()

	payment, err := payments.PaymentByOrderID(context.Background(), event.OrderID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusCompleted, payment.Status)
	require.Equal(t, event.SagaID, payment.SagaID)
	require.NotEmpty(t, payment.TransactionID)

	processed := bus.published(models.ChannelPaymentProcessed)
	require.Len(t, processed, 1)
	got := processed[0].(*models.PaymentProcessedEvent)
	require.Equal(t, event.OrderID, got.OrderID)
	require.Equal(t, payment.PaymentID, got.PaymentID)
	require.Empty(t, bus.published(models.ChannelPaymentFailed))
}

func TestHandleOrderCreated_InjectedFailure(t *testing.T) {
	svc, payments, bus := newTestService(t, Config{FailureRate: 1})

	event := orderCreated()
	require.NoError(t, svc.HandleOrderCreated(context.Background(), event))
	svc.Wait()

	payment, err := payments.PaymentByOrderID(context.Background(), event.OrderID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusFailed, payment.Status)
	require.Equal(t, "simulated payment failure", payment.FailureReason)

	failed := bus.published(models.ChannelPaymentFailed)
	require.Len(t, failed, 1)
	got := failed[0].(*models.PaymentFailedEvent)
	require.Equal(t, models.ErrorCodeProcessingFailed, got.ErrorCode)
	require.Equal(t, event.SagaID, got.SagaID)
	require.Empty(t, bus.published(models.ChannelPaymentProcessed))
}

func TestHandleOrderCreated_Timeout(t *testing.T) {
	svc, payments, bus := newTestService(t, Config{
		ProcessingDelay:  200 * time.Millisecond,
		TimeoutThreshold: 20 * time.Millisecond,
		EnableTimeout:    true,
		FailureRate:      0,
	})

	event := orderCreated()
	require.NoError(t, svc.HandleOrderCreated(context.Background(), event))

	failed := bus.published(models.ChannelPaymentFailed)
	require.Len(t, failed, 1)
	got := failed[0].(*models.PaymentFailedEvent)
	require.Equal(t, models.ErrorCodeTimeout, got.ErrorCode)

	// The abandoned attempt eventually succeeds, but the terminal row wins.
	svc.Wait()

	payment, err := payments.PaymentByOrderID(context.Background(), event.OrderID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusTimeout, payment.Status)
	require.Empty(t, bus.published(models.ChannelPaymentProcessed))
}

func TestHandleOrderCreated_DuplicateDelivery(t *testing.T) {
	svc, payments, bus := newTestService(t, Config{FailureRate: 0})

	event := orderCreated()
	require.NoError(t, svc.HandleOrderCreated(context.Background(), event))
	require.NoError(t, svc.HandleOrderCreated(context.Background(), event))
	svc.Wait()

	payment, err := payments.PaymentByOrderID(context.Background(), event.OrderID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusCompleted, payment.Status)

	require.Len(t, bus.published(models.ChannelPaymentProcessed), 1)
	require.Empty(t, bus.published(models.ChannelPaymentFailed))
}

func TestHandleOrderCreated_ExistingPaymentRow(t *testing.T) {
	svc, payments, bus := newTestService(t, Config{FailureRate: 0})

	event := orderCreated()
	require.NoError(t, payments.Insert(context.Background(), &models.Payment{
		PaymentID: "payment-preexisting",
		OrderID:   event.OrderID,
		SagaID:    event.SagaID,
		Status:    models.PaymentStatusCompleted,
	}))

	// A redelivery that raced past the ledger finds the row and backs off.
	require.NoError(t, svc.HandleOrderCreated(context.Background(), event))
	svc.Wait()

	require.Empty(t, bus.published(models.ChannelPaymentProcessed))
	require.Empty(t, bus.published(models.ChannelPaymentFailed))
}

func TestProcessRefund(t *testing.T) {
	svc, payments, bus := newTestService(t, Config{FailureRate: 0})

	event := orderCreated()
	require.NoError(t, svc.HandleOrderCreated(context.Background(), event))
	svc.Wait()

	require.NoError(t, svc.ProcessRefund(context.Background(), event.OrderID, event.SagaID, event.Amount))

	payment, err := payments.PaymentByOrderID(context.Background(), event.OrderID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusRefunded, payment.Status)
	require.NotNil(t, payment.RefundedAt)

	refunds := bus.published(models.ChannelRefundProcessed)
	require.Len(t, refunds, 1)
	got := refunds[0].(*models.RefundProcessedEvent)
	require.Equal(t, event.Amount, got.RefundAmount)

	// Refunding again is a no-op.
	require.NoError(t, svc.ProcessRefund(context.Background(), event.OrderID, event.SagaID, event.Amount))
	require.Len(t, bus.published(models.ChannelRefundProcessed), 1)
}

func TestHandleOrderCancelled_RefundsCompletedPayment(t *testing.T) {
	svc, payments, bus := newTestService(t, Config{FailureRate: 0})

	event := orderCreated()
	require.NoError(t, svc.HandleOrderCreated(context.Background(), event))
	svc.Wait()

	cancelled := &models.OrderCancelledEvent{
		EventID:   models.NewEventID(),
		SagaID:    event.SagaID,
		OrderID:   event.OrderID,
		Reason:    "cancelled after completion",
		Timestamp: time.Now(),
	}
	require.NoError(t, svc.HandleOrderCancelled(context.Background(), cancelled))

	payment, err := payments.PaymentByOrderID(context.Background(), event.OrderID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusRefunded, payment.Status)
	require.Len(t, bus.published(models.ChannelRefundProcessed), 1)

	// Redelivery hits the idempotency ledger and refunds nothing further.
	require.NoError(t, svc.HandleOrderCancelled(context.Background(), cancelled))
	require.Len(t, bus.published(models.ChannelRefundProcessed), 1)
}

func TestHandleOrderCancelled_NothingToRefund(t *testing.T) {
	svc, payments, bus := newTestService(t, Config{FailureRate: 1})

	event := orderCreated()
	require.NoError(t, svc.HandleOrderCreated(context.Background(), event))
	svc.Wait()

	require.NoError(t, svc.HandleOrderCancelled(context.Background(), &models.OrderCancelledEvent{
		EventID:   models.NewEventID(),
		SagaID:    event.SagaID,
		OrderID:   event.OrderID,
		Reason:    "simulated payment failure",
		Timestamp: time.Now(),
	}))

	payment, err := payments.PaymentByOrderID(context.Background(), event.OrderID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusFailed, payment.Status)
	require.Empty(t, bus.published(models.ChannelRefundProcessed))
}

func TestProcessRefund_PaymentNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, Config{FailureRate: 0})

	err := svc.ProcessRefund(context.Background(), "order-missing", "saga-missing", 10)
	require.ErrorIs(t, err, internalErrors.ErrPaymentNotFound)
}
