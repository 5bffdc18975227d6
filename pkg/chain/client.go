package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

// SubmitResult describes a prediction submission accepted by the chain
type SubmitResult struct {
	TxID        string `json:"tx_id"`
	Status      string `json:"status"`
	BlockNumber uint64 `json:"block_number,omitempty"`
}

// Status reports chain client connectivity
type Status struct {
	Connected       bool   `json:"connected"`
	Endpoint        string `json:"endpoint"`
	ContractAddress string `json:"contract_address"`
	Network         string `json:"network"`
	ChainID         uint64 `json:"chain_id,omitempty"`
}

// Client is the oracle's view of the fraud-registry contract. The contract
// is the external verifier of merkle commitments: it receives the published
// root with each flagged prediction and checks inclusion proofs on demand.
type Client interface {
	// SubmitPrediction publishes a flagged prediction (including its merkle
	// root) to the registry contract.
	SubmitPrediction(ctx context.Context, record *types.PredictionRecord) (*SubmitResult, error)

	// GetPrediction reads a previously submitted prediction back from the
	// registry. Returns nil if none exists.
	GetPrediction(ctx context.Context, campaignID int64, publisherID string) (*types.PredictionRecord, error)

	// GetPublisherHistory reads the registry's aggregate fraud history for
	// a publisher.
	GetPublisherHistory(ctx context.Context, publisherID string) (*types.PublisherHistory, error)

	// Status reports connectivity and target network
	Status(ctx context.Context) (*Status, error)
}

// StubClient is an in-memory Client used when no contract address is
// configured and in tests. Submissions are recorded locally so reads and
// history aggregation behave like the real registry.
type StubClient struct {
	mu          sync.RWMutex
	predictions map[string]*types.PredictionRecord
	nextTx      int
}

// NewStubClient creates an empty stub registry client
func NewStubClient() *StubClient {
	return &StubClient{
		predictions: make(map[string]*types.PredictionRecord),
	}
}

func stubKey(campaignID int64, publisherID string) string {
	return fmt.Sprintf("%d:%s", campaignID, publisherID)
}

// SubmitPrediction records the prediction locally and fabricates a tx id
func (c *StubClient) SubmitPrediction(_ context.Context, record *types.PredictionRecord) (*SubmitResult, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot submit nil prediction")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextTx++
	txID := fmt.Sprintf("0xstub%060d", c.nextTx)

	stored := *record
	stored.TxID = txID
	c.predictions[stubKey(record.CampaignID, record.PublisherID)] = &stored

	return &SubmitResult{TxID: txID, Status: "confirmed"}, nil
}

// GetPrediction returns the most recent stub submission for the pair
func (c *StubClient) GetPrediction(_ context.Context, campaignID int64, publisherID string) (*types.PredictionRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	record, ok := c.predictions[stubKey(campaignID, publisherID)]
	if !ok {
		return nil, nil
	}
	out := *record
	return &out, nil
}

// GetPublisherHistory aggregates stub submissions for the publisher
func (c *StubClient) GetPublisherHistory(_ context.Context, publisherID string) (*types.PublisherHistory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := &types.PublisherHistory{PublisherID: publisherID}
	var scoreSum float64

	for _, record := range c.predictions {
		if record.PublisherID != publisherID {
			continue
		}
		history.TotalFlags++
		scoreSum += record.FraudScore
		if record.IsFraud {
			history.ConfirmedFraud++
		}
		if record.Timestamp > history.LastFlaggedAt {
			history.LastFlaggedAt = record.Timestamp
		}
	}

	if history.TotalFlags > 0 {
		history.AvgFraudScore = scoreSum / float64(history.TotalFlags)
	}

	return history, nil
}

// Status always reports connected for the stub
func (c *StubClient) Status(_ context.Context) (*Status, error) {
	return &Status{
		Connected: true,
		Endpoint:  "stub",
		Network:   "stub",
	}, nil
}

var _ Client = (*StubClient)(nil)
