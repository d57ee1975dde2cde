package models

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transition is defined for the status.
// PENDING -> COMPLETED and PENDING -> CANCELLED are the only legal moves;
// handlers treat a transition attempt out of a terminal state as a no-op
// because redelivery is expected.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

type Order struct {
	OrderID         string      `json:"order_id" db:"order_id"`
	CustomerID      string      `json:"customer_id" db:"customer_id"`
	Amount          float64     `json:"amount" db:"amount"`
	ProductID       string      `json:"product_id" db:"product_id"`
	Quantity        int         `json:"quantity" db:"quantity"`
	Status          OrderStatus `json:"status" db:"status"`
	SagaID          string      `json:"saga_id" db:"saga_id"`
	CorrelationID   string      `json:"correlation_id" db:"correlation_id"`
	Version         int64       `json:"version" db:"version"`
	CancelledReason string      `json:"cancelled_reason,omitempty" db:"cancelled_reason"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

type CreateOrderRequest struct {
	CustomerID string  `json:"customer_id"`
	Amount     float64 `json:"amount"`
	ProductID  string  `json:"product_id"`
	Quantity   int     `json:"quantity"`
}
