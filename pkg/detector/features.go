package detector

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

// FeatureVector is the engineered feature set fed to a Classifier.
// Field order is fixed because the canonical JSON encoding of the vector is
// hashed into the prediction's features_hash.
type FeatureVector struct {
	Impressions        float64 `json:"impressions"`
	Clicks             float64 `json:"clicks"`
	CTR                float64 `json:"ctr"`
	SessionDuration    float64 `json:"session_duration"`
	BounceRate         float64 `json:"bounce_rate"`
	TimeOfDay          float64 `json:"time_of_day"`
	DayOfWeek          float64 `json:"day_of_week"`
	IsWeekend          float64 `json:"is_weekend"`
	ImpressionVelocity float64 `json:"impression_velocity"`
	ClickVelocity      float64 `json:"click_velocity"`
	HighCTR            float64 `json:"high_ctr"`
	LowBounce          float64 `json:"low_bounce"`
	ShortSession       float64 `json:"short_session"`
}

// Anomaly indicator thresholds
const (
	highCTRThreshold      = 0.10 // CTR above 10% is suspicious for display traffic
	lowBounceThreshold    = 0.20
	shortSessionThreshold = 5 // seconds
)

// ExtractFeatures engineers a feature vector from raw traffic data.
// CTR is clipped to [0,1]; velocity features divide by session duration + 1
// to avoid a zero denominator.
func ExtractFeatures(td *types.TrafficData) *FeatureVector {
	fv := &FeatureVector{
		Impressions:     float64(td.Impressions),
		Clicks:          float64(td.Clicks),
		SessionDuration: float64(td.SessionDuration),
		BounceRate:      td.BounceRate,
		TimeOfDay:       float64(td.TimeOfDay),
		DayOfWeek:       float64(td.DayOfWeek),
	}

	if td.Impressions > 0 {
		fv.CTR = float64(td.Clicks) / float64(td.Impressions)
	}
	if fv.CTR > 1 {
		fv.CTR = 1
	}

	fv.ImpressionVelocity = float64(td.Impressions) / (float64(td.SessionDuration) + 1)
	fv.ClickVelocity = float64(td.Clicks) / (float64(td.SessionDuration) + 1)

	if td.DayOfWeek == 5 || td.DayOfWeek == 6 {
		fv.IsWeekend = 1
	}
	if fv.CTR > highCTRThreshold {
		fv.HighCTR = 1
	}
	if td.BounceRate < lowBounceThreshold {
		fv.LowBounce = 1
	}
	if td.SessionDuration < shortSessionThreshold {
		fv.ShortSession = 1
	}

	return fv
}

// Hash returns the SHA-256 digest of the vector's canonical JSON encoding
// as lowercase hex. Identical feature vectors always hash identically.
func (fv *FeatureVector) Hash() string {
	data, _ := json.Marshal(fv) // fixed struct, cannot fail
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
