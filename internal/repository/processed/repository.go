package processed

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

type Repository struct {
	log logger.Logger
	db  *sqlx.DB
}

func New(log logger.Logger, db *sqlx.DB) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) Exists(ctx context.Context, eventID, sagaID string) (bool, error) {
	const op = "repository.processed.Exists"

	const query = `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1 AND saga_id = $2)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, eventID, sagaID); err != nil {
		r.log.Error(op, logger.String("error", err.Error()))
		return false, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return exists, nil
}

// Insert is write-once: a concurrent duplicate lands on the unique pair
// (event_id, saga_id) and falls through DO NOTHING.
func (r *Repository) Insert(ctx context.Context, record models.ProcessedEvent) error {
	const op = "repository.processed.Insert"

	const query = `
		INSERT INTO processed_events (event_id, saga_id, event_type, service_name, order_id, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, saga_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query,
		record.EventID, record.SagaID, record.EventType, record.ServiceName, record.OrderID, record.CorrelationID,
	); err != nil {
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return nil
}
