package models

import "time"

// ProcessedEvent is the idempotency record for one applied event. The
// (EventID, SagaID) pair is unique; a row is written once when a handler
// commits its side effects and is never updated or deleted afterwards.
type ProcessedEvent struct {
	EventID       string    `json:"event_id" db:"event_id"`
	SagaID        string    `json:"saga_id" db:"saga_id"`
	EventType     string    `json:"event_type" db:"event_type"`
	ServiceName   string    `json:"service_name" db:"service_name"`
	OrderID       string    `json:"order_id" db:"order_id"`
	CorrelationID string    `json:"correlation_id" db:"correlation_id"`
	ProcessedAt   time.Time `json:"processed_at" db:"processed_at"`
}
