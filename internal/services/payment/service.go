package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	internalErrors "github.com/tumbleweedd/two_services_system/saga_service/internal/lib/errors"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

const serviceName = "payment-service"

const conflictRetries = 3

const timeoutReason = "payment processing exceeded timeout threshold"

type paymentStore interface {
	Insert(ctx context.Context, payment *models.Payment) error
	Payment(ctx context.Context, paymentID string) (*models.Payment, error)
	PaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	PaymentBySagaID(ctx context.Context, sagaID string) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
}

type idempotencyLedger interface {
	IsProcessed(ctx context.Context, eventID, sagaID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, sagaID, eventType, serviceName, orderID, correlationID string) error
}

type publisher interface {
	Publish(ctx context.Context, channel string, event models.Event) error
}

// Config parameterizes the simulated payment attempt: an artificial
// processing delay, a failure probability and an optional timeout threshold.
// All knobs are injected so tests can run deterministic scenarios.
type Config struct {
	ProcessingDelay  time.Duration
	TimeoutThreshold time.Duration
	EnableTimeout    bool
	FailureRate      float64
	MaxConcurrent    int64
}

// Service is the payment participant. It reacts to OrderCreated, runs the
// attempt off the consuming goroutine on a bounded worker pool, and races it
// against the timeout deadline when enforcement is enabled.
type Service struct {
	log         logger.Logger
	payments    paymentStore
	idempotency idempotencyLedger
	bus         publisher
	cfg         Config

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func New(
	log logger.Logger,
	payments paymentStore,
	idempotency idempotencyLedger,
	bus publisher,
	cfg Config,
) *Service {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 16
	}

	return &Service{
		log:         log,
		payments:    payments,
		idempotency: idempotency,
		bus:         bus,
		cfg:         cfg,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

type attemptResult struct {
	ok      bool
	elapsed time.Duration
	reason  string
}

// HandleOrderCreated starts payment processing for a new saga. The attempt
// has three terminal sub-outcomes: success, simulated failure, and timeout.
// Whatever happens past the idempotency and duplicate-row gates is converted
// into an outcome event rather than propagated to the transport.
func (s *Service) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	const op = "services.payment.HandleOrderCreated"

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

	// Entity-level guard: one payment per order even when a redelivery
	// slips past the ledger check before the original handler marks.
	if _, err = s.payments.PaymentByOrderID(ctx, event.OrderID); err == nil {
		s.log.WarnContext(ctx, op,
			logger.String("order_id", event.OrderID),
			logger.String("saga_id", event.SagaID),
			logger.String("status", "payment already exists, skipping"),
		)
		return nil
	} else if !errors.Is(err, internalErrors.ErrPaymentNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	payment := &models.Payment{
		PaymentID:     uuid.New().String(),
		OrderID:       event.OrderID,
		CustomerID:    event.CustomerID,
		Amount:        event.Amount,
		Status:        models.PaymentStatusProcessing,
		SagaID:        event.SagaID,
		PaymentMethod: "CREDIT_CARD",
		TransactionID: models.NewTransactionID(),
	}

	if err = s.payments.Insert(ctx, payment); err != nil {
		if errors.Is(err, internalErrors.ErrPaymentExists) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.InfoContext(ctx, op,
		logger.String("payment_id", payment.PaymentID),
		logger.String("order_id", event.OrderID),
		logger.Float64("amount", event.Amount),
	)

	start := time.Now()
	resultCh := make(chan attemptResult, 1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		resultCh <- s.attempt(start)
	}()

	detached := context.WithoutCancel(ctx)

	if s.cfg.EnableTimeout && s.cfg.TimeoutThreshold > 0 {
		timer := time.NewTimer(s.cfg.TimeoutThreshold)
		defer timer.Stop()

		select {
		case result := <-resultCh:
			s.applyResult(ctx, payment.PaymentID, event, result)
		case <-timer.C:
			s.log.WarnContext(ctx, op,
				logger.String("payment_id", payment.PaymentID),
				logger.String("order_id", event.OrderID),
				logger.String("error", timeoutReason),
			)
			s.handleTimeout(ctx, payment.PaymentID, event)

			// The abandoned attempt keeps running; its eventual result goes
			// through the same guarded path and is discarded because the
			// payment row is already terminal.
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.applyResult(detached, payment.PaymentID, event, <-resultCh)
			}()
		}
	} else {
		s.applyResult(ctx, payment.PaymentID, event, <-resultCh)
	}

	if err = s.idempotency.MarkProcessed(
		ctx, event.EventID, event.SagaID, "OrderCreatedEvent", serviceName, event.OrderID, "",
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// attempt simulates the external payment call on a worker-pool slot. It is
// never cancelled; the timeout branch abandons it instead.
func (s *Service) attempt(start time.Time) attemptResult {
	if err := s.sem.Acquire(context.Background(), 1); err != nil {
		return attemptResult{reason: err.Error()}
	}
	defer s.sem.Release(1)

	if s.cfg.ProcessingDelay > 0 {
		time.Sleep(s.cfg.ProcessingDelay)
	}

	if rand.Float64() < s.cfg.FailureRate {
		return attemptResult{reason: "simulated payment failure"}
	}

	return attemptResult{ok: true, elapsed: time.Since(start)}
}

// applyResult writes the attempt's terminal state. The fresh read plus
// status guard makes a late result of an abandoned attempt a no-op: a row
// that already left PROCESSING is never overwritten.
func (s *Service) applyResult(ctx context.Context, paymentID string, event *models.OrderCreatedEvent, result attemptResult) {
	const op = "services.payment.applyResult"

	for attempt := 0; attempt < conflictRetries; attempt++ {
		payment, err := s.payments.Payment(ctx, paymentID)
		if err != nil {
			s.log.Error(op, logger.String("payment_id", paymentID), logger.String("error", err.Error()))
			s.publishFailed(ctx, event, models.ErrorCodeProcessingError, err.Error())
			return
		}

		if payment.Status != models.PaymentStatusProcessing {
			s.log.InfoContext(ctx, op,
				logger.String("payment_id", paymentID),
				logger.String("status", string(payment.Status)),
				logger.String("result", "late result discarded"),
			)
			return
		}

		if result.ok {
			payment.Status = models.PaymentStatusCompleted
			payment.ProcessingTimeMs = result.elapsed.Milliseconds()
		} else {
			payment.Status = models.PaymentStatusFailed
			payment.FailureReason = result.reason
		}

		if err = s.payments.Update(ctx, payment); err != nil {
			if errors.Is(err, internalErrors.ErrOptimisticConflict) {
				continue
			}
			s.log.Error(op, logger.String("payment_id", paymentID), logger.String("error", err.Error()))
			s.publishFailed(ctx, event, models.ErrorCodeProcessingError, err.Error())
			return
		}

		if result.ok {
			processedEvent := &models.PaymentProcessedEvent{
				EventID:   models.NewEventID(),
				SagaID:    payment.SagaID,
				OrderID:   payment.OrderID,
				PaymentID: payment.PaymentID,
				Amount:    payment.Amount,
				Status:    string(models.PaymentStatusCompleted),
				Timestamp: time.Now(),
			}
			if err = s.bus.Publish(ctx, models.ChannelPaymentProcessed, processedEvent); err != nil {
				s.log.Error(op, logger.String("publish error", err.Error()))
			}

			s.log.InfoContext(ctx, op,
				logger.String("payment_id", payment.PaymentID),
				logger.String("order_id", payment.OrderID),
				logger.Int("processing_time_ms", int(payment.ProcessingTimeMs)),
				logger.String("status", "payment completed"),
			)
			return
		}

		s.publishFailed(ctx, event, models.ErrorCodeProcessingFailed, result.reason)

		s.log.WarnContext(ctx, op,
			logger.String("payment_id", payment.PaymentID),
			logger.String("order_id", payment.OrderID),
			logger.String("reason", result.reason),
			logger.String("status", "payment failed"),
		)
		return
	}

	s.log.Error(op, logger.String("payment_id", paymentID), logger.String("error", "optimistic conflict retries exhausted"))
}

func (s *Service) handleTimeout(ctx context.Context, paymentID string, event *models.OrderCreatedEvent) {
	const op = "services.payment.handleTimeout"

	for attempt := 0; attempt < conflictRetries; attempt++ {
		payment, err := s.payments.Payment(ctx, paymentID)
		if err != nil {
			s.log.Error(op, logger.String("payment_id", paymentID), logger.String("error", err.Error()))
			return
		}

		if payment.Status != models.PaymentStatusProcessing {
			return
		}

		payment.Status = models.PaymentStatusTimeout
		payment.FailureReason = timeoutReason

		if err = s.payments.Update(ctx, payment); err != nil {
			if errors.Is(err, internalErrors.ErrOptimisticConflict) {
				continue
			}
			s.log.Error(op, logger.String("payment_id", paymentID), logger.String("error", err.Error()))
			return
		}

		s.publishFailed(ctx, event, models.ErrorCodeTimeout, timeoutReason)
		return
	}
}

func (s *Service) publishFailed(ctx context.Context, event *models.OrderCreatedEvent, errorCode, reason string) {
	const op = "services.payment.publishFailed"

	failed := &models.PaymentFailedEvent{
		EventID:   models.NewEventID(),
		SagaID:    event.SagaID,
		OrderID:   event.OrderID,
		Amount:    event.Amount,
		Reason:    reason,
		ErrorCode: errorCode,
		Timestamp: time.Now(),
	}

	if err := s.bus.Publish(ctx, models.ChannelPaymentFailed, failed); err != nil {
		s.log.Error(op, logger.String("publish error", err.Error()))
	}
}

// HandleOrderCancelled refunds the payment when an order is cancelled after
// the payment already completed, e.g. a cancellation that crossed a success
// in flight. Cancellations caused by a failed or timed out attempt have
// nothing to refund.
func (s *Service) HandleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	const op = "services.payment.HandleOrderCancelled"

	processed, err := s.idempotency.IsProcessed(ctx, event.EventID, event.SagaID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if processed {
		return nil
	}

	payment, err := s.payments.PaymentByOrderID(ctx, event.OrderID)
	if err != nil && !errors.Is(err, internalErrors.ErrPaymentNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if payment != nil && payment.Status == models.PaymentStatusCompleted {
		if err = s.ProcessRefund(ctx, event.OrderID, event.SagaID, payment.Amount); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = s.idempotency.MarkProcessed(
		ctx, event.EventID, event.SagaID, "OrderCancelledEvent", serviceName, event.OrderID, "",
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ProcessRefund reverses a completed payment when a later saga step requires
// it. Refunding an already refunded payment is a no-op.
func (s *Service) ProcessRefund(ctx context.Context, orderID, sagaID string, amount float64) error {
	const op = "services.payment.ProcessRefund"

	for attempt := 0; attempt < conflictRetries; attempt++ {
		payment, err := s.payments.PaymentByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if payment.Status == models.PaymentStatusRefunded {
			return nil
		}

		now := time.Now()
		payment.Status = models.PaymentStatusRefunded
		payment.RefundedAt = &now

		if err = s.payments.Update(ctx, payment); err != nil {
			if errors.Is(err, internalErrors.ErrOptimisticConflict) {
				continue
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		refund := &models.RefundProcessedEvent{
			EventID:      models.NewEventID(),
			SagaID:       sagaID,
			OrderID:      orderID,
			PaymentID:    payment.PaymentID,
			RefundAmount: amount,
			Timestamp:    time.Now(),
		}
		if err = s.bus.Publish(ctx, models.ChannelRefundProcessed, refund); err != nil {
			s.log.Error(op, logger.String("publish error", err.Error()))
		}

		s.log.InfoContext(ctx, op,
			logger.String("order_id", orderID),
			logger.String("payment_id", payment.PaymentID),
			logger.Float64("amount", amount),
			logger.String("status", "refund processed"),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", op, internalErrors.ErrOptimisticConflict)
}

func (s *Service) PaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return s.payments.PaymentByOrderID(ctx, orderID)
}

func (s *Service) PaymentBySagaID(ctx context.Context, sagaID string) (*models.Payment, error) {
	return s.payments.PaymentBySagaID(ctx, sagaID)
}

// Wait blocks until all spawned attempts, including abandoned ones, have
// resolved. Shutdown and tests use it to drain the worker pool.
func (s *Service) Wait() {
	s.wg.Wait()
}
