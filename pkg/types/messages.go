package types

// BatchPredictionRequest carries multiple traffic observations for scoring
type BatchPredictionRequest struct {
	TrafficData []*TrafficData `json:"traffic_data"`
}

// VerifyProofRequest asks the oracle to check a fraud-score inclusion proof
// against a previously published merkle root.
type VerifyProofRequest struct {
	FraudScoreLeaf string   `json:"fraud_score_leaf"` // e.g. "fraud_score:0.8734"
	Proof          []string `json:"proof"`            // 64-char hex sibling hashes
	ExpectedRoot   string   `json:"expected_root"`    // 64-char hex root
}

// VerifyProofResponse reports the boolean verification outcome.
// An invalid proof is a valid response, not an error.
type VerifyProofResponse struct {
	Valid bool `json:"valid"`
}

// HealthResponse reports service readiness
type HealthResponse struct {
	Status              string `json:"status"`
	ModelLoaded         bool   `json:"model_loaded"`
	BlockchainConnected bool   `json:"blockchain_connected"`
	StoreHealthy        bool   `json:"store_healthy"`
	Timestamp           string `json:"timestamp"`
}

// ServiceInfo is the root endpoint banner
type ServiceInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}
