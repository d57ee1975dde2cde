package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
)

// ProcessedEventStore is the write-once dedup store keyed by
// (eventID, sagaID). A second insert for the same pair is silently ignored,
// never an error, so handlers can mark defensively.
type ProcessedEventStore struct {
	mu     sync.RWMutex
	events map[processedKey]models.ProcessedEvent
}

type processedKey struct {
	eventID string
	sagaID  string
}

func NewProcessedEventStore() *ProcessedEventStore {
	return &ProcessedEventStore{
		events: make(map[processedKey]models.ProcessedEvent),
	}
}

func (s *ProcessedEventStore) Exists(_ context.Context, eventID, sagaID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.events[processedKey{eventID: eventID, sagaID: sagaID}]
	return ok, nil
}

func (s *ProcessedEventStore) Insert(_ context.Context, record models.ProcessedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := processedKey{eventID: record.EventID, sagaID: record.SagaID}
	if _, ok := s.events[key]; ok {
		return nil
	}

	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now()
	}
	s.events[key] = record

	return nil
}
