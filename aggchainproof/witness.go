package aggchainproof

import (
	"sort"

	cdkcommon "github.com/agglayer/aggkit-prover/common"
	treetypes "github.com/agglayer/aggkit-prover/tree/types"
	"github.com/ethereum/go-ethereum/common"
)

// Witness is the full input bundle committed to the proof program: the
// request data plus the chain parameters the program needs to re-run every
// check on its own. It is a pure value object, never mutated after
// construction.
type Witness struct {
	// NetworkID is the rollup network this prover serves, imported exits
	// must be destined to it
	NetworkID uint32
	// AggchainVKeySelector identifies the aggchain verification key,
	// forwarded through custom chain data
	AggchainVKeySelector [2]byte
	// StartBlock and EndBlock delimit the proven range (inclusive). The
	// range is resolved by the caller-side indexer and accepted as is.
	StartBlock uint64
	EndBlock   uint64
	// L1InfoTreeRoot is the root all GER claims are verified against
	L1InfoTreeRoot common.Hash
	// L1InfoTreeLeaf is the snapshot the requested range was built on,
	// proven by L1InfoTreeProof against L1InfoTreeRoot
	L1InfoTreeLeaf  L1InfoTreeLeaf
	L1InfoTreeProof treetypes.Proof
	// GerLeaves maps base64 GER digests to the proof that the GER was
	// committed on the L1 info tree
	GerLeaves map[string]*ClaimFromMainnet
	// ImportedBridgeExits is the ordered exit set, order is part of the
	// commitment
	ImportedBridgeExits []*ImportedBridgeExit
	// OutputRoot is the chain's claimed output commitment at EndBlock,
	// opaque pass-through into custom chain data
	OutputRoot common.Hash
}

// Fingerprint returns a digest of the whole bundle. Two requests with the
// same fingerprint are the same proving work; the service relies on this
// for dedup, so every field that influences the public values is hashed
// through a fixed-width, order-stable encoding.
func (w *Witness) Fingerprint() common.Hash {
	parts := [][]byte{
		cdkcommon.Uint32ToBytes(w.NetworkID),
		w.AggchainVKeySelector[:],
		cdkcommon.Uint64ToBytes(w.StartBlock),
		cdkcommon.Uint64ToBytes(w.EndBlock),
		w.L1InfoTreeRoot.Bytes(),
		cdkcommon.Uint32ToBytes(w.L1InfoTreeLeaf.L1InfoTreeIndex),
		w.L1InfoTreeLeaf.RollupExitRoot.Bytes(),
		w.L1InfoTreeLeaf.MainnetExitRoot.Bytes(),
		w.L1InfoTreeLeaf.Hash().Bytes(),
	}
	for _, sibling := range w.L1InfoTreeProof {
		parts = append(parts, sibling.Bytes())
	}

	// map iteration order is not deterministic, the keys are
	gerKeys := make([]string, 0, len(w.GerLeaves))
	for key := range w.GerLeaves {
		gerKeys = append(gerKeys, key)
	}
	sort.Strings(gerKeys)
	for _, key := range gerKeys {
		claim := w.GerLeaves[key]
		parts = append(parts,
			[]byte(key),
			cdkcommon.Uint32ToBytes(claim.L1Leaf.L1InfoTreeIndex),
			claim.L1Leaf.RollupExitRoot.Bytes(),
			claim.L1Leaf.MainnetExitRoot.Bytes(),
			claim.L1Leaf.Hash().Bytes(),
		)
		for _, sibling := range claim.InclusionProof {
			parts = append(parts, sibling.Bytes())
		}
	}

	for _, exit := range w.ImportedBridgeExits {
		parts = append(parts,
			exit.Hash().Bytes(),
			exit.GlobalIndex.Bytes(),
			exit.ClaimedGlobalExitRoot.Bytes(),
			exit.ImportedLocalExitRoot.Bytes(),
		)
		for _, sibling := range exit.InclusionProof {
			parts = append(parts, sibling.Bytes())
		}
		for _, sibling := range exit.InclusionProofRER {
			parts = append(parts, sibling.Bytes())
		}
	}

	parts = append(parts, w.OutputRoot.Bytes())
	return cdkcommon.Keccak256Combine(parts...)
}
