package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

type processedEventStore interface {
	Exists(ctx context.Context, eventID, sagaID string) (bool, error)
	Insert(ctx context.Context, record models.ProcessedEvent) error
}

// Service is the idempotency ledger. Every event handler asks IsProcessed
// before doing any side effect and calls MarkProcessed only after all side
// effects of the event are committed. A handler that crashes in between will
// reprocess the event, which is safe because side effects re-check entity
// state before transitioning.
type Service struct {
	log   logger.Logger
	store processedEventStore
}

func New(log logger.Logger, store processedEventStore) *Service {
	return &Service{
		log:   log,
		store: store,
	}
}

func (s *Service) IsProcessed(ctx context.Context, eventID, sagaID string) (bool, error) {
	const op = "services.idempotency.IsProcessed"

	processed, err := s.store.Exists(ctx, eventID, sagaID)
	if err != nil {
		s.log.Error(op, logger.String("error", err.Error()))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return processed, nil
}

// MarkProcessed inserts the ledger record. A record that already exists for
// the (eventID, sagaID) pair makes this a no-op success, so it is safe to
// call defensively after a completed handler.
func (s *Service) MarkProcessed(
	ctx context.Context,
	eventID, sagaID, eventType, serviceName, orderID, correlationID string,
) error {
	const op = "services.idempotency.MarkProcessed"

	record := models.ProcessedEvent{
		EventID:       eventID,
		SagaID:        sagaID,
		EventType:     eventType,
		ServiceName:   serviceName,
		OrderID:       orderID,
		CorrelationID: correlationID,
		ProcessedAt:   time.Now(),
	}

	if err := s.store.Insert(ctx, record); err != nil {
		s.log.Error(op,
			logger.String("event_id", eventID),
			logger.String("saga_id", sagaID),
			logger.String("error", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug(op,
		logger.String("event_id", eventID),
		logger.String("saga_id", sagaID),
		logger.String("event_type", eventType),
	)

	return nil
}
