package models

import (
	"encoding/json"
	"time"
)

// OutBoxMessage is a bus event persisted alongside the state change that
// produced it. The relay drains the table and forwards payloads to Kafka.
type OutBoxMessage struct {
	ID        int64           `json:"id" db:"id"`
	EventID   string          `json:"event_id" db:"event_id"`
	SagaID    string          `json:"saga_id" db:"saga_id"`
	Channel   string          `json:"channel" db:"channel"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
