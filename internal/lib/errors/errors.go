package errors

import "errors"

var (
	// ErrInsufficientInventory is a business rejection: the reservation asked
	// for more units than are available. Surfaced to the order creator, no
	// compensation needed because nothing was committed.
	ErrInsufficientInventory = errors.New("insufficient inventory")

	// ErrInvalidReservationState signals a release of more units than were
	// reserved. This is a saga bookkeeping defect, not a transient failure.
	ErrInvalidReservationState = errors.New("release exceeds reserved quantity")

	// ErrOptimisticConflict means the entity version changed between read and
	// write. Callers re-read and retry the handler, which is idempotent.
	ErrOptimisticConflict = errors.New("stale version on write")

	ErrOrderNotFound   = errors.New("order not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrProductNotFound = errors.New("product not found")

	// ErrPaymentExists guards the one-payment-per-order invariant when a
	// redelivered OrderCreated races the original handler past the
	// idempotency gate.
	ErrPaymentExists = errors.New("payment already exists for order")

	ErrOrderExists = errors.New("order already exists")
)
