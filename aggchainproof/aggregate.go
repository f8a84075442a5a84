package aggchainproof

import (
	"fmt"

	"github.com/agglayer/aggkit-prover/tree"
	treetypes "github.com/agglayer/aggkit-prover/tree/types"
	"github.com/ethereum/go-ethereum/common"
)

// AggregateLocalExitRoot computes the local exit root over the validated
// exit set: the root of the exit tree built over the exit leaves in
// request order. Ordering is part of the commitment, so the caller must
// pass the exits exactly as presented.
func AggregateLocalExitRoot(exits []*ImportedBridgeExit) (common.Hash, error) {
	exitTree := tree.NewAppendOnlyTree()
	for i, exit := range exits {
		if err := exitTree.AddLeaf(treetypes.Leaf{
			Index: uint32(i),
			Hash:  exit.Hash(),
		}); err != nil {
			return common.Hash{}, fmt.Errorf("failed to add exit %d to the exit tree: %w", i, err)
		}
	}
	return exitTree.GetRoot(), nil
}
