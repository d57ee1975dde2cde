package idempotency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/storage/memory"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

func TestMarkThenIsProcessed(t *testing.T) {
	ctx := context.Background()
	svc := New(logger.NewSlogLogger(logger.EnvLocal), memory.NewProcessedEventStore())

	processed, err := svc.IsProcessed(ctx, "evt-1", "saga-1")
	require.NoError(t, err)
	require.False(t, processed)

	err = svc.MarkProcessed(ctx, "evt-1", "saga-1", "OrderCreatedEvent", "payment-service", "order-1", "corr-1")
	require.NoError(t, err)

	processed, err = svc.IsProcessed(ctx, "evt-1", "saga-1")
	require.NoError(t, err)
	require.True(t, processed)
}

func TestMarkProcessedDuplicateIsNoop(t *testing.T) {
	ctx := context.Background()
	svc := New(logger.NewSlogLogger(logger.EnvLocal), memory.NewProcessedEventStore())

	require.NoError(t, svc.MarkProcessed(ctx, "evt-1", "saga-1", "OrderCreatedEvent", "payment-service", "order-1", ""))
	require.NoError(t, svc.MarkProcessed(ctx, "evt-1", "saga-1", "OrderCreatedEvent", "payment-service", "order-1", ""))
}

type failingStore struct{}

func (failingStore) Exists(context.Context, string, string) (bool, error) {
	return false, errors.New("ledger unavailable")
}

func (failingStore) Insert(context.Context, models.ProcessedEvent) error {
	return errors.New("ledger unavailable")
}

func TestLedgerUnavailabilityPropagates(t *testing.T) {
	ctx := context.Background()
	svc := New(logger.NewSlogLogger(logger.EnvLocal), failingStore{})

	_, err := svc.IsProcessed(ctx, "evt-1", "saga-1")
	require.Error(t, err)

	err = svc.MarkProcessed(ctx, "evt-1", "saga-1", "OrderCreatedEvent", "payment-service", "order-1", "")
	require.Error(t, err)
}
