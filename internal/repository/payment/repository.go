package payment

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

// Insert relies on the unique index over order_id: a second payment row for
// the same order is rejected whatever its status.
func (r *Repository) Insert(ctx context.Context, payment *models.Payment) error {
	const op = "repository.payment.Insert"

	const query = `
		INSERT INTO payments
			(payment_id, order_id, customer_id, amount, status, saga_id, payment_method, transaction_id, failure_reason, processing_time_ms, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
		RETURNING version, created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, query,
		payment.PaymentID, payment.OrderID, payment.CustomerID, payment.Amount, payment.Status,
		payment.SagaID, payment.PaymentMethod, payment.TransactionID, payment.FailureReason, payment.ProcessingTimeMs,
	)
	if err := row.Scan(&payment.Version, &payment.CreatedAt, &payment.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return internalErrors.ErrPaymentExists
		}
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return nil
}

func (r *Repository) Payment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return r.get(ctx, "repository.payment.Payment", `SELECT * FROM payments WHERE payment_id = $1`, paymentID)
}

func (r *Repository) PaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return r.get(ctx, "repository.payment.PaymentByOrderID", `SELECT * FROM payments WHERE order_id = $1`, orderID)
}

func (r *Repository) PaymentBySagaID(ctx context.Context, sagaID string) (*models.Payment, error) {
	return r.get(ctx, "repository.payment.PaymentBySagaID", `SELECT * FROM payments WHERE saga_id = $1`, sagaID)
}

func (r *Repository) get(ctx context.Context, op, query, arg string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internalErrors.ErrPaymentNotFound
		}
		r.log.Error(op, logger.String("error", err.Error()))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return &payment, nil
}

func (r *Repository) Update(ctx context.Context, payment *models.Payment) error {
	const op = "repository.payment.Update"

	const query = `
		UPDATE payments
		SET status = $1, failure_reason = $2, processing_time_ms = $3, refunded_at = $4, version = version + 1, updated_at = now()
		WHERE payment_id = $5 AND version = $6`

	result, err := r.db.ExecContext(ctx, query,
		payment.Status, payment.FailureReason, payment.ProcessingTimeMs, payment.RefundedAt,
		payment.PaymentID, payment.Version,
	)
	if err != nil {
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}

	if affected == 0 {
		if _, err = r.Payment(ctx, payment.PaymentID); err != nil {
			return err
		}
		return internalErrors.ErrOptimisticConflict
	}

	payment.Version++

	return nil
}
