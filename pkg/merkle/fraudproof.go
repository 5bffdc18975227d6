package merkle

import "fmt"

// Fraud prediction commitments use a fixed 6-leaf layout. The leaf order is
// part of the commitment: changing it changes every root.
const (
	// FraudLeafCount is the number of leaves in a fraud prediction tree
	FraudLeafCount = 6

	// FraudScoreLeafIndex is the canonical index of the fraud_score leaf
	FraudScoreLeafIndex = 4
)

// FraudScoreLeaf formats a fraud score as its canonical leaf text.
// The 4-decimal formatting is part of the commitment: a score that differs
// by less than 0.0001 from the committed value formats identically and
// verifies, anything else does not.
func FraudScoreLeaf(fraudScore float64) string {
	return fmt.Sprintf("fraud_score:%.4f", fraudScore)
}

// fraudLeaves lays out the fixed leaf sequence for a fraud prediction
func fraudLeaves(campaignID int64, publisherID string, impressions, clicks int64, fraudScore float64, timestamp int64) []string {
	return []string{
		fmt.Sprintf("campaign:%d", campaignID),
		fmt.Sprintf("publisher:%s", publisherID),
		fmt.Sprintf("impressions:%d", impressions),
		fmt.Sprintf("clicks:%d", clicks),
		FraudScoreLeaf(fraudScore),
		fmt.Sprintf("timestamp:%d", timestamp),
	}
}

// CreateFraudProof builds the commitment tree for a fraud prediction and
// returns the root plus the inclusion proof for the fraud_score leaf.
//
// The proof is returned as bare hex digests (3 elements for the 6-leaf
// layout); side information is reconstructed by VerifyFraudProof from the
// fixed layout. CreateFraudProof is a pure function of its arguments:
// identical inputs always produce byte-identical output.
func CreateFraudProof(campaignID int64, publisherID string, impressions, clicks int64, fraudScore float64, timestamp int64) (string, []string, error) {
	tree, err := BuildTree(fraudLeaves(campaignID, publisherID, impressions, clicks, fraudScore, timestamp))
	if err != nil {
		return "", nil, err
	}

	proof, err := tree.ProofHashes(FraudScoreLeafIndex)
	if err != nil {
		return "", nil, err
	}

	return tree.Root(), proof, nil
}

// fraudProofSides reconstructs the side tags for a bare-hash fraud proof.
//
// Because the leaf layout is fixed (6 leaves, proven index 4), the path
// shape is fully determined: the side at each level is given by the parity
// of the path index, including the self-duplication step at the odd level.
// This replaces an earlier alternating left/right reconstruction that did
// not match the true path for this layout and rejected valid proofs.
func fraudProofSides(proofLen int) []Side {
	sides := make([]Side, proofLen)
	index := FraudScoreLeafIndex
	for i := 0; i < proofLen; i++ {
		if index%2 == 1 {
			sides[i] = SideLeft
		} else {
			sides[i] = SideRight
		}
		index = index / 2
	}
	return sides
}

// VerifyFraudProof checks a fraud_score leaf against a published root.
//
// fraudScoreLeaf must be the exact leaf text used at commitment time
// (see FraudScoreLeaf). An empty proof is structurally invalid and returns
// ErrEmptyLeaves; a proof that simply does not match the root returns
// (false, nil), which callers must treat as a valid outcome rather than an
// error.
func VerifyFraudProof(fraudScoreLeaf string, proof []string, expectedRoot string) (bool, error) {
	if len(proof) == 0 {
		return false, ErrEmptyLeaves
	}

	sides := fraudProofSides(len(proof))

	elements := make([]ProofElement, len(proof))
	for i, hash := range proof {
		elements[i] = ProofElement{Hash: hash, Side: sides[i]}
	}

	return VerifyProof(fraudScoreLeaf, elements, expectedRoot), nil
}
