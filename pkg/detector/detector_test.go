package detector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

func legitTraffic() *types.TrafficData {
	return &types.TrafficData{
		CampaignID:      42,
		PublisherID:     "SP1ABC",
		Impressions:     1000,
		Clicks:          12,
		SessionDuration: 180,
		BounceRate:      0.45,
		TimeOfDay:       14,
		DayOfWeek:       2,
	}
}

func botTraffic() *types.TrafficData {
	return &types.TrafficData{
		CampaignID:      42,
		PublisherID:     "SPBOT",
		Impressions:     1000,
		Clicks:          400,
		SessionDuration: 2,
		BounceRate:      0.05,
		TimeOfDay:       3,
		DayOfWeek:       6,
	}
}

// TestExtractFeatures tests the engineered feature values
func TestExtractFeatures(t *testing.T) {
	fv := ExtractFeatures(legitTraffic())

	require.InDelta(t, 0.012, fv.CTR, 1e-9)
	require.InDelta(t, 1000.0/181.0, fv.ImpressionVelocity, 1e-9)
	require.InDelta(t, 12.0/181.0, fv.ClickVelocity, 1e-9)
	require.Equal(t, 0.0, fv.IsWeekend)
	require.Equal(t, 0.0, fv.HighCTR)
	require.Equal(t, 0.0, fv.LowBounce)
	require.Equal(t, 0.0, fv.ShortSession)

	t.Run("Anomaly indicators fire for bot traffic", func(t *testing.T) {
		bot := ExtractFeatures(botTraffic())
		require.Equal(t, 1.0, bot.HighCTR)
		require.Equal(t, 1.0, bot.LowBounce)
		require.Equal(t, 1.0, bot.ShortSession)
		require.Equal(t, 1.0, bot.IsWeekend)
	})

	t.Run("CTR clipped and zero-impression safe", func(t *testing.T) {
		td := legitTraffic()
		td.Impressions = 0
		td.Clicks = 0
		require.Equal(t, 0.0, ExtractFeatures(td).CTR)

		td.Impressions = 10
		td.Clicks = 50
		require.Equal(t, 1.0, ExtractFeatures(td).CTR)
	})
}

// TestFeatureVectorHash tests the canonical hash used as features_hash
func TestFeatureVectorHash(t *testing.T) {
	a := ExtractFeatures(legitTraffic())
	b := ExtractFeatures(legitTraffic())
	require.Equal(t, a.Hash(), b.Hash())
	require.Len(t, a.Hash(), 64)

	c := ExtractFeatures(botTraffic())
	require.NotEqual(t, a.Hash(), c.Hash())
}

// TestHeuristicClassifierPredict tests score and confidence bounds and ordering
func TestHeuristicClassifierPredict(t *testing.T) {
	hc, err := NewHeuristicClassifier("")
	require.NoError(t, err)

	legitScore, legitConf, err := hc.Predict(ExtractFeatures(legitTraffic()))
	require.NoError(t, err)
	botScore, botConf, err := hc.Predict(ExtractFeatures(botTraffic()))
	require.NoError(t, err)

	for _, v := range []float64{legitScore, legitConf, botScore, botConf} {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
	}
	require.GreaterOrEqual(t, legitConf, 0.5)
	require.GreaterOrEqual(t, botConf, 0.5)

	require.Greater(t, botScore, legitScore,
		"bot-like traffic must score higher than organic traffic")

	t.Run("Deterministic", func(t *testing.T) {
		again, _, err := hc.Predict(ExtractFeatures(botTraffic()))
		require.NoError(t, err)
		require.Equal(t, botScore, again)
	})

	t.Run("Nil vector rejected", func(t *testing.T) {
		_, _, err := hc.Predict(nil)
		require.Error(t, err)
	})
}

// TestHeuristicClassifierModelFile tests loading and reloading a model file
func TestHeuristicClassifierModelFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")

	model := `{
		"version": "v2",
		"bias": -1.0,
		"weights": {"ctr": 10.0},
		"metrics": {"accuracy": 0.97, "precision": 0.95, "recall": 0.91, "f1_score": 0.93, "deployment_time": "2026-08-01T00:00:00Z"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(model), 0o644))

	hc, err := NewHeuristicClassifier(path)
	require.NoError(t, err)
	require.Equal(t, "v2", hc.Version())

	metrics := hc.Metrics()
	require.Equal(t, 0.97, metrics.Accuracy)
	require.Equal(t, "v2", metrics.ModelVersion)

	// Only ctr is weighted, so it carries all importance
	importance := hc.FeatureImportance()
	require.Len(t, importance, 1)
	require.Equal(t, "ctr", importance[0].Feature)
	require.InDelta(t, 1.0, importance[0].Importance, 1e-9)

	t.Run("Reload picks up new weights", func(t *testing.T) {
		updated := `{"version": "v3", "bias": 0.0, "weights": {"ctr": 1.0, "click_velocity": 3.0}}`
		require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
		require.NoError(t, hc.Reload())
		require.Equal(t, "v3", hc.Version())
		require.Len(t, hc.FeatureImportance(), 2)
	})

	t.Run("Missing file fails", func(t *testing.T) {
		_, err := NewHeuristicClassifier(filepath.Join(dir, "nope.json"))
		require.Error(t, err)
	})

	t.Run("Empty weights rejected", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"version":"x","weights":{}}`), 0o644))
		_, err := NewHeuristicClassifier(bad)
		require.Error(t, err)
	})
}

// TestDefaultFeatureImportance tests the built-in model's importance ranking
func TestDefaultFeatureImportance(t *testing.T) {
	hc, err := NewHeuristicClassifier("")
	require.NoError(t, err)

	importance := hc.FeatureImportance()
	require.NotEmpty(t, importance)
	require.Equal(t, "ctr", importance[0].Feature)

	var total float64
	for i, fi := range importance {
		total += fi.Importance
		if i > 0 {
			require.LessOrEqual(t, fi.Importance, importance[i-1].Importance)
		}
	}
	require.InDelta(t, 1.0, total, 1e-9)
}
