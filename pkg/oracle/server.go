package oracle

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// Server handles HTTP requests for the fraud oracle.
//
// Request Flow:
//
//	POST /predict:
//	  - Request: traffic observation (campaign, publisher, counters, session stats)
//	  - Scores the observation, persists the record, and submits flagged
//	    predictions to the registry contract when confidence clears the
//	    configured threshold
//	  - Response: prediction record including merkle root + fraud-score proof
//
//	POST /predict/batch:
//	  - Same pipeline over a list of observations, results in request order
//
//	POST /verify:
//	  - Request: { fraud_score_leaf, proof, expected_root }
//	  - Recomputes the root from the leaf and proof; responds { valid: bool }
//	  - A proof that fails verification is a 200 with valid=false, not an error
//
//	GET /predictions:
//	  - Lists persisted predictions, newest first
//	  - ?publisher_id= filters to one publisher, ?limit= caps the result
//
//	Model management: GET /model/metrics, GET /model/features, POST /model/reload
//	Chain: GET /blockchain/status
//	Liveness: GET /, GET /health
//
// All endpoints share a token-bucket rate limit; beyond-burst requests get 429.
type Server struct {
	oracle     *Oracle
	httpServer *http.Server
	limiter    *rate.Limiter
}

// NewServer creates a new server instance
func NewServer(oracle *Oracle, port int, rateLimit float64, rateBurst int) *Server {
	s := &Server{
		oracle:  oracle,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), rateBurst),
	}

	mux := http.NewServeMux()

	// Prediction endpoints
	mux.HandleFunc("/predict", s.withRateLimit(s.handlePredict))
	mux.HandleFunc("/predict/batch", s.withRateLimit(s.handlePredictBatch))
	mux.HandleFunc("/predictions", s.withRateLimit(s.handleListPredictions))

	// Proof verification endpoint
	mux.HandleFunc("/verify", s.withRateLimit(s.handleVerify))

	// Model management endpoints
	mux.HandleFunc("/model/metrics", s.withRateLimit(s.handleModelMetrics))
	mux.HandleFunc("/model/features", s.withRateLimit(s.handleModelFeatures))
	mux.HandleFunc("/model/reload", s.withRateLimit(s.handleModelReload))

	// Chain endpoint
	mux.HandleFunc("/blockchain/status", s.withRateLimit(s.handleBlockchainStatus))

	// Service endpoints
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.oracle.logger.Sugar().Infow("Starting HTTP server", "service", ServiceName, "port", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.oracle.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}

// withRateLimit rejects requests beyond the configured token bucket
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
