package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	internalErrors "github.com/tumbleweedd/two_services_system/saga_service/internal/lib/errors"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

const pgUniqueViolation = "23505"

type Repository struct {
	log logger.Logger
	db  *sqlx.DB
}

func New(log logger.Logger, db *sqlx.DB) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) Insert(ctx context.Context, order *models.Order) error {
	const op = "repository.order.Insert"

	const query = `
		INSERT INTO orders
			(order_id, customer_id, amount, product_id, quantity, status, saga_id, correlation_id, version, cancelled_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9)
		RETURNING version, created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, query,
		order.OrderID, order.CustomerID, order.Amount, order.ProductID, order.Quantity,
		order.Status, order.SagaID, order.CorrelationID, order.CancelledReason,
	)
	if err := row.Scan(&order.Version, &order.CreatedAt, &order.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return internalErrors.ErrOrderExists
		}
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return nil
}

func (r *Repository) Order(ctx context.Context, orderID string) (*models.Order, error) {
	const op = "repository.order.Order"

	const query = `SELECT * FROM orders WHERE order_id = $1`

	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internalErrors.ErrOrderNotFound
		}
		r.log.Error(op, logger.String("error", err.Error()))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return &order, nil
}

func (r *Repository) OrderBySagaID(ctx context.Context, sagaID string) (*models.Order, error) {
	const op = "repository.order.OrderBySagaID"

	const query = `SELECT * FROM orders WHERE saga_id = $1`

	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, sagaID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internalErrors.ErrOrderNotFound
		}
		r.log.Error(op, logger.String("error", err.Error()))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return &order, nil
}

// Update applies an optimistic write: the row is touched only when the
// stored version still matches the one the caller read. A zero-row result
// is disambiguated into conflict or missing row.
func (r *Repository) Update(ctx context.Context, order *models.Order) error {
	const op = "repository.order.Update"

	const query = `
		UPDATE orders
		SET status = $1, cancelled_reason = $2, version = version + 1, updated_at = now()
		WHERE order_id = $3 AND version = $4`

	result, err := r.db.ExecContext(ctx, query, order.Status, order.CancelledReason, order.OrderID, order.Version)
	if err != nil {
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}

	if affected == 0 {
		if _, err = r.Order(ctx, order.OrderID); err != nil {
			return err
		}
		return internalErrors.ErrOptimisticConflict
	}

	order.Version++

	return nil
}
