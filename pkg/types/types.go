package types

import "fmt"

// RiskLevel classifies a prediction by fraud score and confidence
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// TrafficData is a single traffic observation submitted for scoring
type TrafficData struct {
	CampaignID      int64   `json:"campaign_id"`
	PublisherID     string  `json:"publisher_id"`
	Impressions     int64   `json:"impressions"`
	Clicks          int64   `json:"clicks"`
	SessionDuration int64   `json:"session_duration"` // seconds
	BounceRate      float64 `json:"bounce_rate"`      // 0-1
	TimeOfDay       int     `json:"time_of_day"`      // hour 0-23
	DayOfWeek       int     `json:"day_of_week"`      // 0-6
	DeviceType      string  `json:"device_type,omitempty"`
	ReferrerType    string  `json:"referrer_type,omitempty"`
}

// Validate checks the field-level constraints on incoming traffic data
func (td *TrafficData) Validate() error {
	if td.PublisherID == "" {
		return fmt.Errorf("publisher_id is required")
	}
	if td.Impressions < 0 {
		return fmt.Errorf("impressions must be non-negative, got %d", td.Impressions)
	}
	if td.Clicks < 0 {
		return fmt.Errorf("clicks must be non-negative, got %d", td.Clicks)
	}
	if td.SessionDuration < 0 {
		return fmt.Errorf("session_duration must be non-negative, got %d", td.SessionDuration)
	}
	if td.BounceRate < 0 || td.BounceRate > 1 {
		return fmt.Errorf("bounce_rate must be in [0,1], got %f", td.BounceRate)
	}
	if td.TimeOfDay < 0 || td.TimeOfDay > 23 {
		return fmt.Errorf("time_of_day must be in [0,23], got %d", td.TimeOfDay)
	}
	if td.DayOfWeek < 0 || td.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be in [0,6], got %d", td.DayOfWeek)
	}
	return nil
}

// PredictionResult is the outcome of scoring one traffic observation.
// MerkleRoot commits to the prediction's input/output fields; MerkleProof
// is the inclusion proof for the fraud_score leaf.
type PredictionResult struct {
	PredictionID string    `json:"prediction_id"`
	CampaignID   int64     `json:"campaign_id"`
	PublisherID  string    `json:"publisher_id"`
	IsFraud      bool      `json:"is_fraud"`
	FraudScore   float64   `json:"fraud_score"` // 0-1
	Confidence   float64   `json:"confidence"`  // 0-1
	RiskLevel    RiskLevel `json:"risk_level"`
	FeaturesHash string    `json:"features_hash"`
	MerkleRoot   string    `json:"merkle_root"`
	MerkleProof  []string  `json:"merkle_proof"`
	Timestamp    int64     `json:"timestamp"` // unix seconds, committed in the tree
	ModelVersion string    `json:"model_version"`
}

// PredictionRecord is a prediction as persisted by the oracle, including
// chain submission state.
type PredictionRecord struct {
	PredictionResult

	CreatedAt   int64  `json:"created_at"`
	Submitted   bool   `json:"submitted"`
	TxID        string `json:"tx_id,omitempty"`
	SubmittedAt int64  `json:"submitted_at,omitempty"`
}

// ModelMetrics holds classifier performance metrics reported by /model/metrics
type ModelMetrics struct {
	ModelVersion   string  `json:"model_version"`
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1Score        float64 `json:"f1_score"`
	ROCAUC         float64 `json:"roc_auc,omitempty"`
	DeploymentTime string  `json:"deployment_time"`
}

// FeatureImportance is a single feature's contribution to the model output
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// PublisherHistory aggregates persisted fraud flags for one publisher
type PublisherHistory struct {
	PublisherID    string  `json:"publisher_id"`
	TotalFlags     int     `json:"total_flags"`
	ConfirmedFraud int     `json:"confirmed_fraud"`
	AvgFraudScore  float64 `json:"avg_fraud_score"`
	LastFlaggedAt  int64   `json:"last_flagged_at,omitempty"`
}
