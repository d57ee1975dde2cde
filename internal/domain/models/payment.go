package models

import "time"

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusTimeout    PaymentStatus = "TIMEOUT"
)

// Terminal reports whether the payment reached an end state. An abandoned
// attempt that resolves after the timeout branch already ran must not
// overwrite a terminal status.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusTimeout:
		return true
	}
	return false
}

type Payment struct {
	PaymentID        string        `json:"payment_id" db:"payment_id"`
	OrderID          string        `json:"order_id" db:"order_id"`
	CustomerID       string        `json:"customer_id" db:"customer_id"`
	Amount           float64       `json:"amount" db:"amount"`
	Status           PaymentStatus `json:"status" db:"status"`
	SagaID           string        `json:"saga_id" db:"saga_id"`
	PaymentMethod    string        `json:"payment_method" db:"payment_method"`
	TransactionID    string        `json:"transaction_id" db:"transaction_id"`
	FailureReason    string        `json:"failure_reason,omitempty" db:"failure_reason"`
	ProcessingTimeMs int64         `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	Version          int64         `json:"version" db:"version"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
	RefundedAt       *time.Time    `json:"refunded_at,omitempty" db:"refunded_at"`
}
