package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

// Handler consumes one event. A non-nil error asks the bus to redeliver;
// handlers are expected to be idempotency-gated, so redelivery is safe.
type Handler func(ctx context.Context, event models.Event) error

// Mirror observes every published event, e.g. to copy it into an outbox
// table or a Kafka topic for external consumers. Mirrors must not block.
type Mirror func(channel string, event models.Event)

// Bus is an in-process pub/sub fabric with at-least-once semantics: every
// delivery runs on its own goroutine, deliveries are unordered across
// channels, and a failed handler gets the event again up to the configured
// number of attempts. There is no ordering guarantee even within a channel.
type Bus struct {
	log logger.Logger

	attempts int
	delay    time.Duration

	mu       sync.RWMutex
	handlers map[string][]Handler
	mirrors  []Mirror

	wg sync.WaitGroup
}

func New(log logger.Logger, attempts int, delay time.Duration) *Bus {
	if attempts < 1 {
		attempts = 1
	}

	return &Bus{
		log:      log,
		attempts: attempts,
		delay:    delay,
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for a channel. Registration happens at
// startup, before any Publish; there is no implicit discovery.
func (b *Bus) Subscribe(channel string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[channel] = append(b.handlers[channel], handler)
}

func (b *Bus) AddMirror(mirror Mirror) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mirrors = append(b.mirrors, mirror)
}

// Publish hands the event to every subscriber of the channel and returns
// immediately. Delivery outlives the publisher's request context.
func (b *Bus) Publish(ctx context.Context, channel string, event models.Event) error {
	b.mu.RLock()
	handlers := b.handlers[channel]
	mirrors := b.mirrors
	b.mu.RUnlock()

	for _, mirror := range mirrors {
		mirror(channel, event)
	}

	deliveryCtx := context.WithoutCancel(ctx)

	for _, handler := range handlers {
		b.wg.Add(1)
		go b.deliver(deliveryCtx, channel, event, handler)
	}

	return nil
}

// Wait blocks until all in-flight deliveries, including redeliveries, have
// finished. Used by graceful shutdown and by tests.
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) deliver(ctx context.Context, channel string, event models.Event, handler Handler) {
	const op = "eventbus.deliver"

	defer b.wg.Done()

	var err error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		if err = handler(ctx, event); err == nil {
			return
		}

		b.log.Warn(op,
			logger.String("channel", channel),
			logger.String("event_id", event.ID()),
			logger.Int("attempt", attempt),
			logger.String("error", err.Error()),
		)

		if attempt < b.attempts && b.delay > 0 {
			time.Sleep(b.delay)
		}
	}

	b.log.Error(op,
		logger.String("channel", channel),
		logger.String("event_id", event.ID()),
		logger.String("saga_id", event.Saga()),
		logger.String("error", "event dropped after redelivery attempts exhausted"),
	)
}
