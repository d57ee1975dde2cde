package models

import "github.com/google/uuid"

func NewEventID() string {
	return uuid.New().String()
}

func NewSagaID() string {
	return "saga-" + uuid.New().String()
}

func NewCorrelationID() string {
	return "corr-" + uuid.New().String()
}

func NewTransactionID() string {
	return "TXN-" + uuid.New().String()
}
