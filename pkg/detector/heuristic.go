package detector

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

// modelFile is the on-disk JSON format for a heuristic model
type modelFile struct {
	Version string              `json:"version"`
	Bias    float64             `json:"bias"`
	Weights map[string]float64  `json:"weights"`
	Metrics *types.ModelMetrics `json:"metrics,omitempty"`
}

// defaultWeights is the built-in model used when no model file is
// configured. Weights were fitted offline against labeled click-fraud
// traffic; positive weight pushes toward fraud.
var defaultWeights = map[string]float64{
	"ctr":                 6.5,
	"click_velocity":      2.2,
	"impression_velocity": 0.015,
	"high_ctr":            1.8,
	"low_bounce":          0.9,
	"short_session":       1.4,
	"bounce_rate":         -1.1,
	"session_duration":    -0.004,
	"is_weekend":          0.2,
}

const defaultBias = -4.0

// HeuristicClassifier is a deterministic logistic scorer and the default
// Classifier implementation. It stands in for the trained ensemble model,
// which is served out-of-process; the oracle only depends on the
// Classifier interface.
//
// Safe for concurrent use; Reload swaps parameters under a write lock.
type HeuristicClassifier struct {
	mu        sync.RWMutex
	modelPath string
	version   string
	bias      float64
	weights   map[string]float64
	metrics   *types.ModelMetrics
}

// NewHeuristicClassifier creates a classifier from the model file at
// modelPath. An empty path uses the built-in default weights.
func NewHeuristicClassifier(modelPath string) (*HeuristicClassifier, error) {
	hc := &HeuristicClassifier{
		modelPath: modelPath,
		version:   "builtin-v1",
		bias:      defaultBias,
		weights:   defaultWeights,
	}

	if modelPath != "" {
		if err := hc.Reload(); err != nil {
			return nil, err
		}
	}

	return hc, nil
}

// Reload re-reads model parameters from the configured model file.
// With no model file configured this is a no-op.
func (hc *HeuristicClassifier) Reload() error {
	if hc.modelPath == "" {
		return nil
	}

	data, err := os.ReadFile(hc.modelPath)
	if err != nil {
		return fmt.Errorf("failed to read model file %s: %w", hc.modelPath, err)
	}

	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return fmt.Errorf("failed to parse model file %s: %w", hc.modelPath, err)
	}
	if len(mf.Weights) == 0 {
		return fmt.Errorf("model file %s contains no weights", hc.modelPath)
	}
	if mf.Version == "" {
		mf.Version = "v1"
	}

	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.version = mf.Version
	hc.bias = mf.Bias
	hc.weights = mf.Weights
	hc.metrics = mf.Metrics

	return nil
}

// Predict scores a feature vector with a logistic model over the weighted
// feature sum. Confidence is the probability of the predicted class.
func (hc *HeuristicClassifier) Predict(fv *FeatureVector) (float64, float64, error) {
	if fv == nil {
		return 0, 0, fmt.Errorf("feature vector cannot be nil")
	}

	hc.mu.RLock()
	defer hc.mu.RUnlock()

	z := hc.bias
	for name, value := range featureValues(fv) {
		z += hc.weights[name] * value
	}

	score := 1.0 / (1.0 + math.Exp(-z))
	confidence := math.Max(score, 1-score)

	return score, confidence, nil
}

// FeatureImportance ranks features by absolute weight, normalized to sum
// to 1, descending.
func (hc *HeuristicClassifier) FeatureImportance() []types.FeatureImportance {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	var total float64
	for _, w := range hc.weights {
		total += math.Abs(w)
	}
	if total == 0 {
		return nil
	}

	out := make([]types.FeatureImportance, 0, len(hc.weights))
	for name, w := range hc.weights {
		out = append(out, types.FeatureImportance{
			Feature:    name,
			Importance: math.Abs(w) / total,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Feature < out[j].Feature
	})

	return out
}

// Metrics returns the evaluation metrics recorded in the model file, or
// zeroed metrics for the built-in model.
func (hc *HeuristicClassifier) Metrics() *types.ModelMetrics {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	if hc.metrics == nil {
		return &types.ModelMetrics{ModelVersion: hc.version}
	}
	m := *hc.metrics
	if m.ModelVersion == "" {
		m.ModelVersion = hc.version
	}
	return &m
}

// Version identifies the loaded model
func (hc *HeuristicClassifier) Version() string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.version
}

// featureValues maps weight names to vector values. Names match the
// feature vector's JSON tags and the model file's weight keys.
func featureValues(fv *FeatureVector) map[string]float64 {
	return map[string]float64{
		"impressions":         fv.Impressions,
		"clicks":              fv.Clicks,
		"ctr":                 fv.CTR,
		"session_duration":    fv.SessionDuration,
		"bounce_rate":         fv.BounceRate,
		"time_of_day":         fv.TimeOfDay,
		"day_of_week":         fv.DayOfWeek,
		"is_weekend":          fv.IsWeekend,
		"impression_velocity": fv.ImpressionVelocity,
		"click_velocity":      fv.ClickVelocity,
		"high_ctr":            fv.HighCTR,
		"low_bounce":          fv.LowBounce,
		"short_session":       fv.ShortSession,
	}
}

var _ Classifier = (*HeuristicClassifier)(nil)
