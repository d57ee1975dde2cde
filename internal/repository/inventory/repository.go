package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	internalErrors "github.com/tumbleweedd/two_services_system/saga_service/internal/lib/errors"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

type Repository struct {
	log logger.Logger
	db  *sqlx.DB
}

func New(log logger.Logger, db *sqlx.DB) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) Put(ctx context.Context, inv models.Inventory) error {
	const op = "repository.inventory.Put"

	const query = `
		INSERT INTO inventory (product_id, available_quantity, reserved_quantity, version)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (product_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, inv.ProductID, inv.AvailableQuantity, inv.ReservedQuantity); err != nil {
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return nil
}

// Inventory is an advisory read: nothing stops a concurrent saga from
// changing the counters right after it returns.
func (r *Repository) Inventory(ctx context.Context, productID string) (*models.Inventory, error) {
	const op = "repository.inventory.Inventory"

	const query = `SELECT * FROM inventory WHERE product_id = $1`

	var inv models.Inventory
	if err := r.db.GetContext(ctx, &inv, query, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internalErrors.ErrProductNotFound
		}
		r.log.Error(op, logger.String("error", err.Error()))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return &inv, nil
}

// WithLock runs fn against a row read under SELECT FOR UPDATE and persists
// the mutated counters in the same transaction when fn returns nil. The row
// lock lasts exactly as long as the transaction; fn must not reach out to
// anything slower than memory.
func (r *Repository) WithLock(ctx context.Context, productID string, fn func(inv *models.Inventory) error) (err error) {
	const op = "repository.inventory.WithLock"

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}

	defer func() {
		if err != nil {
			if rollBackErr := tx.Rollback(); rollBackErr != nil {
				err = errors.Join(err, fmt.Errorf("%s: rollback transaction: %w", op, rollBackErr))
			}
		}
	}()

	const selectQuery = `SELECT * FROM inventory WHERE product_id = $1 FOR UPDATE`

	var inv models.Inventory
	if err = tx.GetContext(ctx, &inv, selectQuery, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return internalErrors.ErrProductNotFound
		}
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	if err = fn(&inv); err != nil {
		return err
	}

	const updateQuery = `
		UPDATE inventory
		SET available_quantity = $1, reserved_quantity = $2, version = version + 1, last_updated = now()
		WHERE product_id = $3`

	if _, err = tx.ExecContext(ctx, updateQuery, inv.AvailableQuantity, inv.ReservedQuantity, productID); err != nil {
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		r.log.Error(op, logger.String("error", err.Error()))
		return fmt.Errorf("%s: commit transaction: %w", op, err)
	}

	return nil
}
