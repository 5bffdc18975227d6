package memory

import (
	"fmt"
	"sync"

	"github.com/adstack-labs/fraud-oracle-go/pkg/persistence"
	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

// MemoryStore is an in-memory implementation of IPredictionStore.
// All data is lost when the process exits, so it is intended for tests
// and local development.
//
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryStore struct {
	mu sync.RWMutex

	// Prediction storage: predictionID -> PredictionRecord
	predictions map[string]*types.PredictionRecord

	// Closed flag
	closed bool
}

// NewMemoryStore creates a new in-memory prediction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		predictions: make(map[string]*types.PredictionRecord),
	}
}

// SavePrediction persists a prediction record.
func (m *MemoryStore) SavePrediction(record *types.PredictionRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil PredictionRecord")
	}
	if record.PredictionID == "" {
		return fmt.Errorf("cannot save PredictionRecord without a prediction ID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("prediction store is closed")
	}

	// Deep copy to prevent external mutation
	m.predictions[record.PredictionID] = persistence.CopyPredictionRecord(record)

	return nil
}

// GetPrediction retrieves a prediction record by ID.
func (m *MemoryStore) GetPrediction(predictionID string) (*types.PredictionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("prediction store is closed")
	}

	record, exists := m.predictions[predictionID]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return persistence.CopyPredictionRecord(record), nil
}

// ListPredictions returns predictions sorted by creation time, newest first.
func (m *MemoryStore) ListPredictions(limit int) ([]*types.PredictionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("prediction store is closed")
	}

	result := make([]*types.PredictionRecord, 0, len(m.predictions))
	for _, record := range m.predictions {
		result = append(result, persistence.CopyPredictionRecord(record))
	}
	persistence.SortNewestFirst(result)

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// ListPredictionsByPublisher returns the publisher's predictions, newest first.
func (m *MemoryStore) ListPredictionsByPublisher(publisherID string) ([]*types.PredictionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("prediction store is closed")
	}

	result := make([]*types.PredictionRecord, 0)
	for _, record := range m.predictions {
		if record.PublisherID == publisherID {
			result = append(result, persistence.CopyPredictionRecord(record))
		}
	}
	persistence.SortNewestFirst(result)

	return result, nil
}

// PublisherHistory aggregates the publisher's stored predictions.
func (m *MemoryStore) PublisherHistory(publisherID string) (*types.PublisherHistory, error) {
	records, err := m.ListPredictionsByPublisher(publisherID)
	if err != nil {
		return nil, err
	}

	return persistence.AggregateHistory(publisherID, records), nil
}

// Close shuts down the store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the store is operational.
func (m *MemoryStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("prediction store is closed")
	}

	return nil
}

var _ persistence.IPredictionStore = (*MemoryStore)(nil)
