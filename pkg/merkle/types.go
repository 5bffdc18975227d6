package merkle

// Side indicates which side of the path node a proof sibling occupies.
type Side int

const (
	// SideLeft means the sibling hash is the left input to the pair hash
	SideLeft Side = iota
	// SideRight means the sibling hash is the right input to the pair hash
	SideRight
)

// String returns the wire representation of the side tag
func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// ProofElement is one step of an inclusion proof: the sibling hash at a
// tree level and the side it occupies relative to the path node.
type ProofElement struct {
	// Hash is the sibling hash as a 64-char lowercase hex digest
	Hash string `json:"hash"`

	// Side is the position of the sibling in the pair hash
	Side Side `json:"side"`
}

// Tree is an immutable binary hash tree over an ordered set of leaves.
// Leaf order is significant: it determines both the tree shape and the
// canonical index of every leaf. A Tree is safe for concurrent reads.
//
// All node hashes are SHA-256 digests rendered as lowercase hex, and
// internal nodes hash the concatenation of the two child hex strings.
type Tree struct {
	// leaves holds the original leaf data in input order
	leaves []string

	// levels[0] = leaf hashes, levels[len-1] = [root]
	levels [][]string
}
