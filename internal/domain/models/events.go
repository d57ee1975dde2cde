package models

import "time"

// Channel names connect producers and consumers, one per event type. The
// transport behind them guarantees at-least-once, unordered delivery.
const (
	ChannelOrderCreated       = "order.created"
	ChannelOrderCompleted     = "order.completed"
	ChannelOrderCancelled     = "order.cancelled"
	ChannelPaymentProcessed   = "payment.processed"
	ChannelPaymentFailed      = "payment.failed"
	ChannelInventoryRestocked = "inventory.restocked"
	ChannelRefundProcessed    = "refund.processed"
)

// Error codes carried by PaymentFailedEvent.
const (
	ErrorCodeProcessingFailed = "PROCESSING_FAILED"
	ErrorCodeProcessingError  = "PROCESSING_ERROR"
	ErrorCodeTimeout          = "TIMEOUT"
)

// Event is what the bus moves around. Every event carries a globally unique
// id and the saga it belongs to; together they form the idempotency key.
type Event interface {
	ID() string
	Saga() string
}

type OrderCreatedEvent struct {
	EventID      string    `json:"event_id"`
	SagaID       string    `json:"saga_id"`
	OrderID      string    `json:"order_id"`
	CustomerID   string    `json:"customer_id"`
	Amount       float64   `json:"amount"`
	ProductID    string    `json:"product_id"`
	Quantity     int       `json:"quantity"`
	OrderVersion int64     `json:"order_version"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e *OrderCreatedEvent) ID() string   { return e.EventID }
func (e *OrderCreatedEvent) Saga() string { return e.SagaID }

type PaymentProcessedEvent struct {
	EventID   string    `json:"event_id"`
	SagaID    string    `json:"saga_id"`
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *PaymentProcessedEvent) ID() string   { return e.EventID }
func (e *PaymentProcessedEvent) Saga() string { return e.SagaID }

type PaymentFailedEvent struct {
	EventID   string    `json:"event_id"`
	SagaID    string    `json:"saga_id"`
	OrderID   string    `json:"order_id"`
	Amount    float64   `json:"amount"`
	Reason    string    `json:"reason"`
	ErrorCode string    `json:"error_code"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *PaymentFailedEvent) ID() string   { return e.EventID }
func (e *PaymentFailedEvent) Saga() string { return e.SagaID }

type OrderCompletedEvent struct {
	EventID    string    `json:"event_id"`
	SagaID     string    `json:"saga_id"`
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *OrderCompletedEvent) ID() string   { return e.EventID }
func (e *OrderCompletedEvent) Saga() string { return e.SagaID }

type OrderCancelledEvent struct {
	EventID    string    `json:"event_id"`
	SagaID     string    `json:"saga_id"`
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *OrderCancelledEvent) ID() string   { return e.EventID }
func (e *OrderCancelledEvent) Saga() string { return e.SagaID }

type InventoryRestockedEvent struct {
	EventID   string    `json:"event_id"`
	SagaID    string    `json:"saga_id"`
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *InventoryRestockedEvent) ID() string   { return e.EventID }
func (e *InventoryRestockedEvent) Saga() string { return e.SagaID }

type RefundProcessedEvent struct {
	EventID      string    `json:"event_id"`
	SagaID       string    `json:"saga_id"`
	OrderID      string    `json:"order_id"`
	PaymentID    string    `json:"payment_id"`
	RefundAmount float64   `json:"refund_amount"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e *RefundProcessedEvent) ID() string   { return e.EventID }
func (e *RefundProcessedEvent) Saga() string { return e.SagaID }
