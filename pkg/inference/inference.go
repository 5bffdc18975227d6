package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adstack-labs/fraud-oracle-go/pkg/detector"
	"github.com/adstack-labs/fraud-oracle-go/pkg/merkle"
	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

// Service scores traffic observations and produces the merkle commitment
// for each prediction. All state is read-only after construction except the
// classifier, which manages its own locking.
type Service struct {
	classifier     detector.Classifier
	fraudThreshold float64
	logger         *zap.Logger

	// now is swappable for deterministic tests
	now func() time.Time
}

// NewService creates an inference service around a classifier.
// fraudThreshold is the fraud-score cutoff for the binary is_fraud flag.
func NewService(classifier detector.Classifier, fraudThreshold float64, logger *zap.Logger) *Service {
	return &Service{
		classifier:     classifier,
		fraudThreshold: fraudThreshold,
		logger:         logger,
		now:            time.Now,
	}
}

// Ready reports whether the service can score traffic
func (s *Service) Ready() bool {
	return s.classifier != nil
}

// Predict scores one traffic observation. The returned result carries the
// features hash, the merkle root committing to the prediction's fields, and
// the inclusion proof for the fraud_score leaf. The committed timestamp is
// taken once per prediction; everything else is a pure function of the
// input and the loaded model.
func (s *Service) Predict(ctx context.Context, td *types.TrafficData) (*types.PredictionResult, error) {
	if !s.Ready() {
		return nil, fmt.Errorf("inference service not ready")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fv := detector.ExtractFeatures(td)

	fraudScore, confidence, err := s.classifier.Predict(fv)
	if err != nil {
		return nil, fmt.Errorf("classifier prediction failed: %w", err)
	}

	isFraud := fraudScore >= s.fraudThreshold
	riskLevel := CalculateRiskLevel(fraudScore, confidence)
	timestamp := s.now().Unix()

	root, proof, err := merkle.CreateFraudProof(
		td.CampaignID, td.PublisherID, td.Impressions, td.Clicks, fraudScore, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to build fraud proof: %w", err)
	}

	result := &types.PredictionResult{
		PredictionID: uuid.New().String(),
		CampaignID:   td.CampaignID,
		PublisherID:  td.PublisherID,
		IsFraud:      isFraud,
		FraudScore:   fraudScore,
		Confidence:   confidence,
		RiskLevel:    riskLevel,
		FeaturesHash: fv.Hash(),
		MerkleRoot:   root,
		MerkleProof:  proof,
		Timestamp:    timestamp,
		ModelVersion: s.classifier.Version(),
	}

	s.logger.Sugar().Infow("Prediction complete",
		"prediction_id", result.PredictionID,
		"campaign_id", td.CampaignID,
		"publisher_id", td.PublisherID,
		"is_fraud", isFraud,
		"fraud_score", fmt.Sprintf("%.4f", fraudScore),
		"confidence", fmt.Sprintf("%.4f", confidence),
		"risk_level", riskLevel,
	)

	return result, nil
}

// Metrics returns the loaded model's evaluation metrics
func (s *Service) Metrics() *types.ModelMetrics {
	return s.classifier.Metrics()
}

// FeatureImportance returns the loaded model's feature rankings
func (s *Service) FeatureImportance() []types.FeatureImportance {
	return s.classifier.FeatureImportance()
}

// ReloadModel reloads classifier parameters from the backing store
func (s *Service) ReloadModel() error {
	if err := s.classifier.Reload(); err != nil {
		return fmt.Errorf("model reload failed: %w", err)
	}
	s.logger.Sugar().Infow("Model reloaded", "version", s.classifier.Version())
	return nil
}

// CalculateRiskLevel buckets a prediction by fraud score and confidence.
// Both thresholds must be met for the higher bucket.
func CalculateRiskLevel(fraudScore, confidence float64) types.RiskLevel {
	switch {
	case fraudScore >= 0.85 && confidence >= 0.90:
		return types.RiskLevelCritical
	case fraudScore >= 0.70 && confidence >= 0.80:
		return types.RiskLevelHigh
	case fraudScore >= 0.50 && confidence >= 0.70:
		return types.RiskLevelMedium
	default:
		return types.RiskLevelLow
	}
}
