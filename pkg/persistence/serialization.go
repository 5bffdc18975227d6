package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

// MarshalPredictionRecord serializes a PredictionRecord to JSON bytes.
func MarshalPredictionRecord(record *types.PredictionRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil PredictionRecord")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PredictionRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalPredictionRecord deserializes a PredictionRecord from JSON bytes.
func UnmarshalPredictionRecord(data []byte) (*types.PredictionRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record types.PredictionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to PredictionRecord: %w", err)
	}

	return &record, nil
}

// CopyPredictionRecord deep copies a record so store implementations can
// hand out values without exposing internal state to mutation.
func CopyPredictionRecord(record *types.PredictionRecord) *types.PredictionRecord {
	if record == nil {
		return nil
	}

	out := *record
	if record.MerkleProof != nil {
		out.MerkleProof = make([]string, len(record.MerkleProof))
		copy(out.MerkleProof, record.MerkleProof)
	}

	return &out
}
