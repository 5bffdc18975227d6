package oracle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adstack-labs/fraud-oracle-go/pkg/chain"
	"github.com/adstack-labs/fraud-oracle-go/pkg/config"
	"github.com/adstack-labs/fraud-oracle-go/pkg/inference"
	"github.com/adstack-labs/fraud-oracle-go/pkg/merkle"
	"github.com/adstack-labs/fraud-oracle-go/pkg/persistence"
	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

const (
	ServiceName    = "ad-fraud-oracle"
	ServiceVersion = "1.0.0"
)

// Oracle wires the inference service, the prediction store and the chain
// client into the prediction pipeline the HTTP layer exposes.
type Oracle struct {
	cfg         *config.OracleServerConfig
	inference   *inference.Service
	store       persistence.IPredictionStore
	chainClient chain.Client
	logger      *zap.Logger

	// now is swappable for deterministic tests
	now func() time.Time
}

// NewOracle assembles the prediction pipeline
func NewOracle(
	cfg *config.OracleServerConfig,
	inferenceService *inference.Service,
	store persistence.IPredictionStore,
	chainClient chain.Client,
	logger *zap.Logger,
) *Oracle {
	return &Oracle{
		cfg:         cfg,
		inference:   inferenceService,
		store:       store,
		chainClient: chainClient,
		logger:      logger,
		now:         time.Now,
	}
}

// ProcessPrediction runs the full pipeline for one observation: validate,
// score, persist, and submit to the registry when the prediction is fraud
// with confidence at or above the configured threshold.
//
// Chain submission failures do not fail the prediction: the record is
// persisted as unsubmitted and the error is logged.
func (o *Oracle) ProcessPrediction(ctx context.Context, td *types.TrafficData) (*types.PredictionRecord, error) {
	if td == nil {
		return nil, fmt.Errorf("traffic data cannot be nil")
	}
	if err := td.Validate(); err != nil {
		return nil, err
	}

	result, err := o.inference.Predict(ctx, td)
	if err != nil {
		return nil, err
	}

	record := &types.PredictionRecord{
		PredictionResult: *result,
		CreatedAt:        o.now().Unix(),
	}

	if result.IsFraud && result.Confidence >= o.cfg.ConfidenceThreshold {
		submitResult, err := o.chainClient.SubmitPrediction(ctx, record)
		if err != nil {
			o.logger.Sugar().Errorw("Chain submission failed, keeping prediction unsubmitted",
				"prediction_id", record.PredictionID,
				"publisher_id", record.PublisherID,
				"error", err,
			)
		} else {
			record.Submitted = true
			record.TxID = submitResult.TxID
			record.SubmittedAt = o.now().Unix()
		}
	}

	if err := o.store.SavePrediction(record); err != nil {
		return nil, fmt.Errorf("failed to persist prediction %s: %w", record.PredictionID, err)
	}

	return record, nil
}

// ProcessBatch scores a batch of observations in request order.
// The first invalid observation aborts the batch.
func (o *Oracle) ProcessBatch(ctx context.Context, batch []*types.TrafficData) ([]*types.PredictionRecord, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("batch cannot be empty")
	}

	records := make([]*types.PredictionRecord, 0, len(batch))
	for i, td := range batch {
		record, err := o.ProcessPrediction(ctx, td)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		records = append(records, record)
	}

	return records, nil
}

// VerifyFraudProof checks a fraud-score inclusion proof against a published
// root. A failed verification returns (false, nil); errors are reserved for
// malformed requests.
func (o *Oracle) VerifyFraudProof(req *types.VerifyProofRequest) (bool, error) {
	if req == nil {
		return false, fmt.Errorf("verify request cannot be nil")
	}
	return merkle.VerifyFraudProof(req.FraudScoreLeaf, req.Proof, req.ExpectedRoot)
}

// Health reports readiness of the model, the store and the chain client
func (o *Oracle) Health(ctx context.Context) *types.HealthResponse {
	resp := &types.HealthResponse{
		ModelLoaded:  o.inference.Ready(),
		StoreHealthy: o.store.HealthCheck() == nil,
		Timestamp:    o.now().UTC().Format(time.RFC3339),
	}

	if status, err := o.chainClient.Status(ctx); err == nil {
		resp.BlockchainConnected = status.Connected
	}

	if resp.ModelLoaded && resp.StoreHealthy {
		resp.Status = "healthy"
	} else {
		resp.Status = "unhealthy"
	}

	return resp
}

// Healthy reports whether the service should accept prediction traffic
func (o *Oracle) Healthy(ctx context.Context) bool {
	return o.Health(ctx).Status == "healthy"
}
