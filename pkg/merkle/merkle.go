package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrEmptyLeaves is returned when a tree is built from zero leaves
	ErrEmptyLeaves = errors.New("cannot build merkle tree from empty leaves")

	// ErrIndexOutOfRange is returned when a proof is requested for a leaf
	// index outside [0, leafCount)
	ErrIndexOutOfRange = errors.New("leaf index out of range")
)

// hashLeaf computes the SHA-256 digest of the raw leaf bytes, rendered as
// lowercase hex. The same digest form is used for every node in the tree.
func hashLeaf(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// hashPair combines two node hashes into a parent hash.
//
// The two hex-encoded digest strings are concatenated as text and hashed;
// the hash does NOT operate on the decoded binary digests. Any verifier of
// published roots encodes this textual rule, so it must not be changed to
// binary concatenation.
func hashPair(left, right string) string {
	return hashLeaf(left + right)
}

// BuildTree creates a merkle tree from ordered leaf data.
//
// Level 0 holds the leaf hashes in input order. Each subsequent level is
// derived by hashing adjacent pairs; if a level has an odd number of nodes
// the last node is paired with itself. Construction terminates when a level
// of length 1 remains, which is the root.
//
// The returned Tree is an immutable value: the input slice is copied and
// never mutated, and the tree may be queried concurrently.
func BuildTree(leaves []string) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyLeaves
	}

	leafCopy := make([]string, len(leaves))
	copy(leafCopy, leaves)

	// Hash all leaves, preserving input order
	leafHashes := make([]string, len(leafCopy))
	for i, leaf := range leafCopy {
		leafHashes[i] = hashLeaf(leaf)
	}

	// Build tree levels bottom-up
	levels := make([][]string, 0)
	levels = append(levels, leafHashes)

	currentLevel := leafHashes
	for len(currentLevel) > 1 {
		nextLevel := make([]string, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]

			// If odd number of nodes, duplicate the last one
			right := left
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}

			nextLevel = append(nextLevel, hashPair(left, right))
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &Tree{
		leaves: leafCopy,
		levels: levels,
	}, nil
}

// Root returns the merkle root as a 64-char lowercase hex digest.
// The root is a deterministic function of leaf order and content only.
func (t *Tree) Root() string {
	return t.levels[len(t.levels)-1][0]
}

// LeafCount returns the number of leaves the tree was built from
func (t *Tree) LeafCount() int {
	return len(t.leaves)
}

// Depth returns the number of levels in the tree, including the root level
func (t *Tree) Depth() int {
	return len(t.levels)
}

// Leaves returns a copy of the original leaf data in input order
func (t *Tree) Leaves() []string {
	out := make([]string, len(t.leaves))
	copy(out, t.leaves)
	return out
}

// Proof generates the inclusion proof for the leaf at the given index.
// The proof is the ordered list of sibling entries from the leaf level up
// to the level below the root, each tagged with the side the sibling
// occupies. When the path node is the last node of an odd-length level its
// sibling is the node itself, recorded on the right, mirroring the
// duplication rule used during construction.
func (t *Tree) Proof(index int) ([]ProofElement, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves): %w",
			index, len(t.leaves), ErrIndexOutOfRange)
	}

	proof := make([]ProofElement, 0, len(t.levels)-1)
	current := index

	for level := 0; level < len(t.levels)-1; level++ {
		currentLevel := t.levels[level]

		if current%2 == 1 {
			// Sibling is on the left
			proof = append(proof, ProofElement{
				Hash: currentLevel[current-1],
				Side: SideLeft,
			})
		} else {
			// Sibling is on the right; the last node of an odd-length
			// level is its own sibling
			sibling := current
			if current+1 < len(currentLevel) {
				sibling = current + 1
			}
			proof = append(proof, ProofElement{
				Hash: currentLevel[sibling],
				Side: SideRight,
			})
		}

		// Parent index in the next level
		current = current / 2
	}

	return proof, nil
}

// ProofHashes returns the proof for the given leaf index as bare hex
// digests, dropping the side tags. Used at boundaries where the consumer
// reconstructs sides by convention (e.g. contract calldata).
func (t *Tree) ProofHashes(index int) ([]string, error) {
	proof, err := t.Proof(index)
	if err != nil {
		return nil, err
	}

	hashes := make([]string, len(proof))
	for i, elem := range proof {
		hashes[i] = elem.Hash
	}
	return hashes, nil
}

// VerifyProof checks that leafData is included under root via the given
// proof. It folds the proof from the leaf hash upward, placing each sibling
// on its tagged side, and compares the result to root.
//
// A mismatched or malformed proof yields false; verification failure is an
// expected outcome, never an error.
func VerifyProof(leafData string, proof []ProofElement, root string) bool {
	current := hashLeaf(leafData)

	for _, elem := range proof {
		if elem.Side == SideLeft {
			current = hashPair(elem.Hash, current)
		} else {
			current = hashPair(current, elem.Hash)
		}
	}

	return current == root
}
