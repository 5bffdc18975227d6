package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adstack-labs/fraud-oracle-go/pkg/chain"
	"github.com/adstack-labs/fraud-oracle-go/pkg/config"
	"github.com/adstack-labs/fraud-oracle-go/pkg/detector"
	"github.com/adstack-labs/fraud-oracle-go/pkg/inference"
	"github.com/adstack-labs/fraud-oracle-go/pkg/logger"
	"github.com/adstack-labs/fraud-oracle-go/pkg/merkle"
	"github.com/adstack-labs/fraud-oracle-go/pkg/persistence/memory"
	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	testLogger, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	classifier, err := detector.NewHeuristicClassifier("")
	require.NoError(t, err)

	cfg := &config.OracleServerConfig{
		Port:                config.DefaultPort,
		FraudThreshold:      config.DefaultFraudThreshold,
		ConfidenceThreshold: config.DefaultConfidenceThreshold,
		StoreBackend:        config.StoreBackend_Memory,
	}
	require.NoError(t, cfg.Validate())

	inferenceService := inference.NewService(classifier, cfg.FraudThreshold, testLogger)
	store := memory.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	oracle := NewOracle(cfg, inferenceService, store, chain.NewStubClient(), testLogger)

	return NewServer(oracle, cfg.Port, cfg.RateLimit, cfg.RateBurst)
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	return w
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	return w
}

func legitTraffic() *types.TrafficData {
	return &types.TrafficData{
		CampaignID:      42,
		PublisherID:     "SP1ABC",
		Impressions:     10000,
		Clicks:          150,
		SessionDuration: 120,
		BounceRate:      0.45,
		TimeOfDay:       14,
		DayOfWeek:       2,
	}
}

func botTraffic() *types.TrafficData {
	return &types.TrafficData{
		CampaignID:      43,
		PublisherID:     "SP1BOT",
		Impressions:     500,
		Clicks:          400,
		SessionDuration: 1,
		BounceRate:      0.99,
		TimeOfDay:       3,
		DayOfWeek:       2,
	}
}

func TestHandleRoot(t *testing.T) {
	server := newTestServer(t)

	w := get(t, server.GetHandler(), "/")
	require.Equal(t, http.StatusOK, w.Code)

	var info types.ServiceInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Equal(t, ServiceName, info.Service)
	require.Equal(t, "operational", info.Status)
}

func TestHandleRootUnknownPath(t *testing.T) {
	server := newTestServer(t)

	w := get(t, server.GetHandler(), "/nope")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(t)

	w := get(t, server.GetHandler(), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var health types.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	require.Equal(t, "healthy", health.Status)
	require.True(t, health.ModelLoaded)
	require.True(t, health.StoreHealthy)
}

func TestHandlePredict(t *testing.T) {
	server := newTestServer(t)

	w := postJSON(t, server.GetHandler(), "/predict", legitTraffic())
	require.Equal(t, http.StatusOK, w.Code)

	var record types.PredictionRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))

	require.NotEmpty(t, record.PredictionID)
	require.Equal(t, "SP1ABC", record.PublisherID)
	require.GreaterOrEqual(t, record.FraudScore, 0.0)
	require.LessOrEqual(t, record.FraudScore, 1.0)
	require.Regexp(t, "^[0-9a-f]{64}$", record.MerkleRoot)
	require.Len(t, record.MerkleProof, 3)

	// The published commitment must verify
	valid, err := merkle.VerifyFraudProof(merkle.FraudScoreLeaf(record.FraudScore), record.MerkleProof, record.MerkleRoot)
	require.NoError(t, err)
	require.True(t, valid)
}

func TestHandlePredictValidation(t *testing.T) {
	server := newTestServer(t)
	handler := server.GetHandler()

	t.Run("method not allowed", func(t *testing.T) {
		w := get(t, handler, "/predict")
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader([]byte("not json")))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing publisher", func(t *testing.T) {
		td := legitTraffic()
		td.PublisherID = ""
		w := postJSON(t, handler, "/predict", td)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid bounce rate", func(t *testing.T) {
		td := legitTraffic()
		td.BounceRate = 1.5
		w := postJSON(t, handler, "/predict", td)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandlePredictPersists(t *testing.T) {
	server := newTestServer(t)

	w := postJSON(t, server.GetHandler(), "/predict", legitTraffic())
	require.Equal(t, http.StatusOK, w.Code)

	var record types.PredictionRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))

	stored, err := server.oracle.store.GetPrediction(record.PredictionID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, record.MerkleRoot, stored.MerkleRoot)
}

func TestHandlePredictBatch(t *testing.T) {
	server := newTestServer(t)

	req := types.BatchPredictionRequest{
		TrafficData: []*types.TrafficData{legitTraffic(), botTraffic()},
	}

	w := postJSON(t, server.GetHandler(), "/predict/batch", req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Predictions []*types.PredictionRecord `json:"predictions"`
		Count       int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	require.Len(t, resp.Predictions, 2)
	require.Equal(t, "SP1ABC", resp.Predictions[0].PublisherID)
	require.Equal(t, "SP1BOT", resp.Predictions[1].PublisherID)
}

func TestHandlePredictBatchValidation(t *testing.T) {
	server := newTestServer(t)
	handler := server.GetHandler()

	t.Run("empty batch", func(t *testing.T) {
		w := postJSON(t, handler, "/predict/batch", types.BatchPredictionRequest{})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid item", func(t *testing.T) {
		bad := legitTraffic()
		bad.Impressions = -1
		req := types.BatchPredictionRequest{TrafficData: []*types.TrafficData{legitTraffic(), bad}}
		w := postJSON(t, handler, "/predict/batch", req)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), "traffic_data[1]")
	})
}

func TestHandleVerify(t *testing.T) {
	server := newTestServer(t)
	handler := server.GetHandler()

	root, proof, err := merkle.CreateFraudProof(42, "SP1ABC", 1000, 50, 0.8734, 1700000000)
	require.NoError(t, err)

	t.Run("valid proof", func(t *testing.T) {
		w := postJSON(t, handler, "/verify", types.VerifyProofRequest{
			FraudScoreLeaf: merkle.FraudScoreLeaf(0.8734),
			Proof:          proof,
			ExpectedRoot:   root,
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp types.VerifyProofResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.True(t, resp.Valid)
	})

	t.Run("mismatched root is valid=false not an error", func(t *testing.T) {
		w := postJSON(t, handler, "/verify", types.VerifyProofRequest{
			FraudScoreLeaf: merkle.FraudScoreLeaf(0.8734),
			Proof:          proof,
			ExpectedRoot:   "0000000000000000000000000000000000000000000000000000000000000000",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp types.VerifyProofResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.False(t, resp.Valid)
	})

	t.Run("wrong score is valid=false", func(t *testing.T) {
		w := postJSON(t, handler, "/verify", types.VerifyProofRequest{
			FraudScoreLeaf: merkle.FraudScoreLeaf(0.8735),
			Proof:          proof,
			ExpectedRoot:   root,
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp types.VerifyProofResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.False(t, resp.Valid)
	})

	t.Run("empty proof is a client error", func(t *testing.T) {
		w := postJSON(t, handler, "/verify", types.VerifyProofRequest{
			FraudScoreLeaf: merkle.FraudScoreLeaf(0.8734),
			Proof:          []string{},
			ExpectedRoot:   root,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing leaf", func(t *testing.T) {
		w := postJSON(t, handler, "/verify", types.VerifyProofRequest{
			Proof:        proof,
			ExpectedRoot: root,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleListPredictions(t *testing.T) {
	server := newTestServer(t)
	handler := server.GetHandler()

	for i := 0; i < 3; i++ {
		td := legitTraffic()
		td.CampaignID = int64(100 + i)
		w := postJSON(t, handler, "/predict", td)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := postJSON(t, handler, "/predict", botTraffic())
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("all", func(t *testing.T) {
		w := get(t, handler, "/predictions")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 4, resp.Count)
	})

	t.Run("by publisher", func(t *testing.T) {
		w := get(t, handler, "/predictions?publisher_id=SP1BOT")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Predictions []*types.PredictionRecord `json:"predictions"`
			Count       int                       `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Count)
		require.Equal(t, "SP1BOT", resp.Predictions[0].PublisherID)
	})

	t.Run("with limit", func(t *testing.T) {
		w := get(t, handler, "/predictions?limit=2")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 2, resp.Count)
	})

	t.Run("bad limit", func(t *testing.T) {
		w := get(t, handler, "/predictions?limit=abc")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleModelEndpoints(t *testing.T) {
	server := newTestServer(t)
	handler := server.GetHandler()

	t.Run("metrics", func(t *testing.T) {
		w := get(t, handler, "/model/metrics")
		require.Equal(t, http.StatusOK, w.Code)

		var metrics types.ModelMetrics
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metrics))
		require.NotEmpty(t, metrics.ModelVersion)
	})

	t.Run("features", func(t *testing.T) {
		w := get(t, handler, "/model/features")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Features []types.FeatureImportance `json:"features"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Features)
	})

	t.Run("reload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/model/reload", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "reloaded")
	})

	t.Run("reload requires POST", func(t *testing.T) {
		w := get(t, handler, "/model/reload")
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestHandleBlockchainStatus(t *testing.T) {
	server := newTestServer(t)

	w := get(t, server.GetHandler(), "/blockchain/status")
	require.Equal(t, http.StatusOK, w.Code)

	var status chain.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.True(t, status.Connected)
}

func TestRateLimit(t *testing.T) {
	server := newTestServer(t)
	// Shrink the bucket so the limit is hit quickly
	server.limiter.SetBurst(2)
	server.limiter.SetLimit(0)
	handler := server.GetHandler()

	var limited bool
	for i := 0; i < 5; i++ {
		w := get(t, handler, fmt.Sprintf("/predictions?limit=%d", i+1))
		if w.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	require.True(t, limited)
}
