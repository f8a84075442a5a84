package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultHeight uint8 = 32
)

type Leaf struct {
	Index uint32
	Hash  common.Hash
}

type Proof [DefaultHeight]common.Hash

// NewProof builds a Proof from a slice of siblings. The number of siblings
// must match the tree height, anything else is a malformed proof.
func NewProof(siblings []common.Hash) (Proof, error) {
	if len(siblings) != int(DefaultHeight) {
		return Proof{}, fmt.Errorf("unexpected number of siblings: expected %d, actual %d",
			DefaultHeight, len(siblings))
	}
	var proof Proof
	copy(proof[:], siblings)
	return proof, nil
}
