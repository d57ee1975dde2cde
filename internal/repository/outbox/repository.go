package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

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

func (r *Repository) Insert(ctx context.Context, channel string, event models.Event) error {
	const op = "repository.outbox.Insert"

	payload, err := json.Marshal(event)
	if err != nil {
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: marshal event: %w", op, err)
	}

	const query = `INSERT INTO outbox (event_id, saga_id, channel, payload) VALUES ($1, $2, $3, $4)`

	if _, err = r.db.ExecContext(ctx, query, event.ID(), event.Saga(), channel, payload); err != nil {
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return nil
}

func (r *Repository) FetchUnprocessedMessages(ctx context.Context, limit int) ([]models.OutBoxMessage, error) {
	const op = "repository.outbox.FetchUnprocessedMessages"

	const query = `SELECT * FROM outbox ORDER BY id LIMIT $1`

	var messages []models.OutBoxMessage
	if err := r.db.SelectContext(ctx, &messages, query, limit); err != nil {
		r.log.Error(op, logger.String("error", err.Error()))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return messages, nil
}

func (r *Repository) Delete(ctx context.Context, ids []int64) error {
	const op = "repository.outbox.Delete"

	if len(ids) == 0 {
		return nil
	}

	const query = `DELETE FROM outbox WHERE id = ANY($1)`

	if _, err := r.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return nil
}
