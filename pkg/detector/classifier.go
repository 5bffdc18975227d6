package detector

import "github.com/adstack-labs/fraud-oracle-go/pkg/types"

// Classifier produces a fraud score and confidence, both in [0,1], for an
// engineered feature vector. The oracle treats the classifier as a black
// box; any model that satisfies this interface can back the service.
type Classifier interface {
	// Predict scores one feature vector. fraudScore is the probability the
	// traffic is fraudulent; confidence is the model's certainty in its own
	// output.
	Predict(fv *FeatureVector) (fraudScore, confidence float64, err error)

	// FeatureImportance returns per-feature contribution rankings,
	// sorted by importance descending.
	FeatureImportance() []types.FeatureImportance

	// Metrics returns the model's recorded evaluation metrics.
	Metrics() *types.ModelMetrics

	// Reload re-reads model parameters from the backing store.
	Reload() error

	// Version identifies the loaded model
	Version() string
}
