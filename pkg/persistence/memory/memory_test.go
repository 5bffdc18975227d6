package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

func testRecord(id string, publisherID string, score float64, createdAt int64) *types.PredictionRecord {
	return &types.PredictionRecord{
		PredictionResult: types.PredictionResult{
			PredictionID: id,
			CampaignID:   42,
			PublisherID:  publisherID,
			IsFraud:      score >= 0.85,
			FraudScore:   score,
			Confidence:   0.9,
			MerkleProof:  []string{"aa", "bb", "cc"},
			Timestamp:    createdAt,
		},
		CreatedAt: createdAt,
	}
}

func TestSaveAndGetPrediction(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	record := testRecord("pred-1", "SP1ABC", 0.91, 1700000000)
	require.NoError(t, store.SavePrediction(record))

	loaded, err := store.GetPrediction("pred-1")
	require.NoError(t, err)
	require.Equal(t, record, loaded)

	missing, err := store.GetPrediction("pred-nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestSaveOverwrites(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	record := testRecord("pred-1", "SP1ABC", 0.91, 1700000000)
	require.NoError(t, store.SavePrediction(record))

	record.Submitted = true
	record.TxID = "0xabc"
	require.NoError(t, store.SavePrediction(record))

	loaded, err := store.GetPrediction("pred-1")
	require.NoError(t, err)
	require.True(t, loaded.Submitted)
	require.Equal(t, "0xabc", loaded.TxID)
}

func TestSaveRejectsInvalid(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	require.Error(t, store.SavePrediction(nil))
	require.Error(t, store.SavePrediction(&types.PredictionRecord{}))
}

func TestListPredictionsOrderAndLimit(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	for i := 0; i < 5; i++ {
		record := testRecord(fmt.Sprintf("pred-%d", i), "SP1ABC", 0.5, int64(1700000000+i))
		require.NoError(t, store.SavePrediction(record))
	}

	all, err := store.ListPredictions(0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, "pred-4", all[0].PredictionID) // newest first
	require.Equal(t, "pred-0", all[4].PredictionID)

	limited, err := store.ListPredictions(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, "pred-4", limited[0].PredictionID)
}

func TestListPredictionsByPublisher(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.SavePrediction(testRecord("pred-1", "SP1ABC", 0.9, 100)))
	require.NoError(t, store.SavePrediction(testRecord("pred-2", "SPOTHER", 0.2, 200)))
	require.NoError(t, store.SavePrediction(testRecord("pred-3", "SP1ABC", 0.4, 300)))

	records, err := store.ListPredictionsByPublisher("SP1ABC")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "pred-3", records[0].PredictionID)

	none, err := store.ListPredictionsByPublisher("SPNOBODY")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestPublisherHistory(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.SavePrediction(testRecord("pred-1", "SP1ABC", 0.9, 100)))
	require.NoError(t, store.SavePrediction(testRecord("pred-2", "SP1ABC", 0.3, 200)))

	history, err := store.PublisherHistory("SP1ABC")
	require.NoError(t, err)
	require.Equal(t, 2, history.TotalFlags)
	require.Equal(t, 1, history.ConfirmedFraud)
	require.InDelta(t, 0.6, history.AvgFraudScore, 1e-9)
}

func TestStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	record := testRecord("pred-1", "SP1ABC", 0.9, 100)
	require.NoError(t, store.SavePrediction(record))

	// Mutating the saved record must not affect the stored copy
	record.MerkleProof[0] = "mutated"

	loaded, err := store.GetPrediction("pred-1")
	require.NoError(t, err)
	require.Equal(t, "aa", loaded.MerkleProof[0])

	// Mutating a loaded record must not affect subsequent reads
	loaded.FraudScore = 0.0
	again, err := store.GetPrediction("pred-1")
	require.NoError(t, err)
	require.Equal(t, 0.9, again.FraudScore)
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close()) // idempotent

	require.Error(t, store.SavePrediction(testRecord("pred-1", "SP1ABC", 0.9, 100)))
	_, err := store.GetPrediction("pred-1")
	require.Error(t, err)
	_, err = store.ListPredictions(0)
	require.Error(t, err)
	require.Error(t, store.HealthCheck())
}
