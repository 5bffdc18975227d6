package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adstack-labs/fraud-oracle-go/pkg/chain"
	"github.com/adstack-labs/fraud-oracle-go/pkg/config"
	"github.com/adstack-labs/fraud-oracle-go/pkg/detector"
	"github.com/adstack-labs/fraud-oracle-go/pkg/inference"
	"github.com/adstack-labs/fraud-oracle-go/pkg/logger"
	"github.com/adstack-labs/fraud-oracle-go/pkg/persistence/memory"
	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

// fixedClassifier returns a preset score and confidence for every input
type fixedClassifier struct {
	score      float64
	confidence float64
}

func (f *fixedClassifier) Predict(_ *detector.FeatureVector) (float64, float64, error) {
	return f.score, f.confidence, nil
}

func (f *fixedClassifier) FeatureImportance() []types.FeatureImportance { return nil }

func (f *fixedClassifier) Metrics() *types.ModelMetrics {
	return &types.ModelMetrics{ModelVersion: "fixed-test"}
}

func (f *fixedClassifier) Reload() error { return nil }

func (f *fixedClassifier) Version() string { return "fixed-test" }

var _ detector.Classifier = (*fixedClassifier)(nil)

func newTestOracle(t *testing.T, classifier detector.Classifier) (*Oracle, *chain.StubClient) {
	t.Helper()

	testLogger, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	cfg := &config.OracleServerConfig{
		Port:                config.DefaultPort,
		FraudThreshold:      config.DefaultFraudThreshold,
		ConfidenceThreshold: config.DefaultConfidenceThreshold,
		StoreBackend:        config.StoreBackend_Memory,
	}
	require.NoError(t, cfg.Validate())

	store := memory.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	stub := chain.NewStubClient()
	oracle := NewOracle(cfg, inference.NewService(classifier, cfg.FraudThreshold, testLogger), store, stub, testLogger)

	return oracle, stub
}

func TestProcessPredictionSubmitsConfidentFraud(t *testing.T) {
	oracle, stub := newTestOracle(t, &fixedClassifier{score: 0.92, confidence: 0.95})

	record, err := oracle.ProcessPrediction(context.Background(), legitTraffic())
	require.NoError(t, err)

	require.True(t, record.IsFraud)
	require.True(t, record.Submitted)
	require.NotEmpty(t, record.TxID)
	require.NotZero(t, record.SubmittedAt)

	// The stub registry saw the submission
	onChain, err := stub.GetPrediction(context.Background(), record.CampaignID, record.PublisherID)
	require.NoError(t, err)
	require.NotNil(t, onChain)
	require.Equal(t, record.MerkleRoot, onChain.MerkleRoot)

	// The persisted record carries the submission state
	stored, err := oracle.store.GetPrediction(record.PredictionID)
	require.NoError(t, err)
	require.True(t, stored.Submitted)
	require.Equal(t, record.TxID, stored.TxID)
}

func TestProcessPredictionSkipsLowConfidence(t *testing.T) {
	// Fraudulent but below the confidence gate: persisted, never submitted
	oracle, stub := newTestOracle(t, &fixedClassifier{score: 0.92, confidence: 0.80})

	record, err := oracle.ProcessPrediction(context.Background(), legitTraffic())
	require.NoError(t, err)

	require.True(t, record.IsFraud)
	require.False(t, record.Submitted)
	require.Empty(t, record.TxID)

	onChain, err := stub.GetPrediction(context.Background(), record.CampaignID, record.PublisherID)
	require.NoError(t, err)
	require.Nil(t, onChain)
}

func TestProcessPredictionSkipsNonFraud(t *testing.T) {
	oracle, stub := newTestOracle(t, &fixedClassifier{score: 0.20, confidence: 0.99})

	record, err := oracle.ProcessPrediction(context.Background(), legitTraffic())
	require.NoError(t, err)

	require.False(t, record.IsFraud)
	require.False(t, record.Submitted)

	onChain, err := stub.GetPrediction(context.Background(), record.CampaignID, record.PublisherID)
	require.NoError(t, err)
	require.Nil(t, onChain)
}

func TestProcessPredictionRejectsInvalidInput(t *testing.T) {
	oracle, _ := newTestOracle(t, &fixedClassifier{score: 0.5, confidence: 0.5})

	_, err := oracle.ProcessPrediction(context.Background(), nil)
	require.Error(t, err)

	bad := legitTraffic()
	bad.PublisherID = ""
	_, err = oracle.ProcessPrediction(context.Background(), bad)
	require.Error(t, err)
}

func TestProcessBatchOrder(t *testing.T) {
	oracle, _ := newTestOracle(t, &fixedClassifier{score: 0.3, confidence: 0.9})

	first := legitTraffic()
	second := botTraffic()

	records, err := oracle.ProcessBatch(context.Background(), []*types.TrafficData{first, second})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, first.PublisherID, records[0].PublisherID)
	require.Equal(t, second.PublisherID, records[1].PublisherID)

	_, err = oracle.ProcessBatch(context.Background(), nil)
	require.Error(t, err)
}
