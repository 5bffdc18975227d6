package oracle

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

// handleRoot handles the service banner endpoint
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, types.ServiceInfo{
		Service: ServiceName,
		Version: ServiceVersion,
		Status:  "operational",
	})
}

// handleHealth handles the readiness endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := s.oracle.Health(r.Context())

	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handlePredict handles single-observation scoring
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var td types.TrafficData
	if err := json.NewDecoder(r.Body).Decode(&td); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	if err := td.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := s.oracle.ProcessPrediction(r.Context(), &td)
	if err != nil {
		s.oracle.logger.Sugar().Errorw("Prediction failed",
			"publisher_id", td.PublisherID, "error", err)
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// handlePredictBatch handles batch scoring
func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.BatchPredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	if len(req.TrafficData) == 0 {
		http.Error(w, "traffic_data is required", http.StatusBadRequest)
		return
	}

	for i, td := range req.TrafficData {
		if td == nil {
			http.Error(w, fmt.Sprintf("traffic_data[%d] is null", i), http.StatusBadRequest)
			return
		}
		if err := td.Validate(); err != nil {
			http.Error(w, fmt.Sprintf("traffic_data[%d]: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	records, err := s.oracle.ProcessBatch(r.Context(), req.TrafficData)
	if err != nil {
		s.oracle.logger.Sugar().Errorw("Batch prediction failed", "size", len(req.TrafficData), "error", err)
		http.Error(w, "Batch prediction failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": records,
		"count":       len(records),
	})
}

// handleVerify handles fraud-score proof verification.
// A proof that fails verification is a 200 with valid=false; only malformed
// requests (missing leaf, empty proof) are client errors.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.VerifyProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	if req.FraudScoreLeaf == "" {
		http.Error(w, "fraud_score_leaf is required", http.StatusBadRequest)
		return
	}
	if req.ExpectedRoot == "" {
		http.Error(w, "expected_root is required", http.StatusBadRequest)
		return
	}

	valid, err := s.oracle.VerifyFraudProof(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, types.VerifyProofResponse{Valid: valid})
}

// handleListPredictions handles prediction listing with optional publisher
// filtering (?publisher_id=) and result capping (?limit=)
func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var records []*types.PredictionRecord
	var err error

	if publisherID := r.URL.Query().Get("publisher_id"); publisherID != "" {
		records, err = s.oracle.store.ListPredictionsByPublisher(publisherID)
		if err == nil && limit > 0 && len(records) > limit {
			records = records[:limit]
		}
	} else {
		records, err = s.oracle.store.ListPredictions(limit)
	}

	if err != nil {
		s.oracle.logger.Sugar().Errorw("Failed to list predictions", "error", err)
		http.Error(w, "Failed to list predictions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": records,
		"count":       len(records),
	})
}

// handleModelMetrics handles the model evaluation metrics endpoint
func (s *Server) handleModelMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.oracle.inference.Metrics())
}

// handleModelFeatures handles the feature importance endpoint
func (s *Server) handleModelFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model_version": s.oracle.inference.Metrics().ModelVersion,
		"features":      s.oracle.inference.FeatureImportance(),
	})
}

// handleModelReload handles model hot-reload
func (s *Server) handleModelReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.oracle.inference.ReloadModel(); err != nil {
		s.oracle.logger.Sugar().Errorw("Model reload failed", "error", err)
		http.Error(w, "Model reload failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "reloaded",
		"model_version": s.oracle.inference.Metrics().ModelVersion,
	})
}

// handleBlockchainStatus handles the chain connectivity endpoint
func (s *Server) handleBlockchainStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := s.oracle.chainClient.Status(r.Context())
	if err != nil {
		s.oracle.logger.Sugar().Errorw("Failed to query chain status", "error", err)
		http.Error(w, "Failed to query chain status", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
