package persistence

import (
	"sort"

	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

// IPredictionStore defines the interface for persisting predictions across
// restarts. All implementations must be thread-safe as the HTTP layer is
// concurrent.
//
// The interface supports:
// - Prediction storage keyed by prediction ID (save, load, list)
// - Publisher-scoped listing and fraud history aggregation
// - Lifecycle management (close, health check)
type IPredictionStore interface {
	// SavePrediction persists a prediction record keyed by its prediction ID.
	// Saving an existing ID overwrites the record (used to record chain
	// submission state after the fact).
	SavePrediction(record *types.PredictionRecord) error

	// GetPrediction retrieves a prediction record by ID.
	// Returns nil if the record doesn't exist, error only on storage failure.
	GetPrediction(predictionID string) (*types.PredictionRecord, error)

	// ListPredictions returns persisted predictions sorted by creation time
	// (newest first). A limit <= 0 returns all records.
	// Returns empty slice if no records exist, error only on storage failure.
	ListPredictions(limit int) ([]*types.PredictionRecord, error)

	// ListPredictionsByPublisher returns the publisher's predictions sorted
	// by creation time (newest first).
	// Returns empty slice if none exist, error only on storage failure.
	ListPredictionsByPublisher(publisherID string) ([]*types.PredictionRecord, error)

	// PublisherHistory aggregates the publisher's stored predictions into
	// fraud history (total flags, confirmed fraud, mean score).
	// Returns a zero-valued history if the publisher has no records.
	PublisherHistory(publisherID string) (*types.PublisherHistory, error)

	// Lifecycle Management

	// Close cleanly shuts down the store.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the store is operational.
	// Returns nil if healthy, error describing the problem if not.
	// Should be called during server startup to fail fast.
	HealthCheck() error
}

// AggregateHistory folds a publisher's records into their fraud history.
// Shared by store implementations so the aggregation rules stay uniform.
func AggregateHistory(publisherID string, records []*types.PredictionRecord) *types.PublisherHistory {
	history := &types.PublisherHistory{PublisherID: publisherID}
	if len(records) == 0 {
		return history
	}

	var scoreSum float64
	for _, record := range records {
		history.TotalFlags++
		scoreSum += record.FraudScore
		if record.IsFraud {
			history.ConfirmedFraud++
		}
		if record.Timestamp > history.LastFlaggedAt {
			history.LastFlaggedAt = record.Timestamp
		}
	}
	history.AvgFraudScore = scoreSum / float64(history.TotalFlags)

	return history
}

// SortNewestFirst orders records by creation time descending, breaking ties
// by prediction ID so listings are deterministic across backends.
func SortNewestFirst(records []*types.PredictionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt > records[j].CreatedAt
		}
		return records[i].PredictionID < records[j].PredictionID
	})
}
