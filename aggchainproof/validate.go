package aggchainproof

import (
	"fmt"
	"sort"

	"github.com/agglayer/aggkit-prover/tree"
	"github.com/ethereum/go-ethereum/common"
)

// Validate runs every check short of proving: structural sanity, the L1
// info tree leaf of the request, all GER claims and all imported bridge
// exits. The same function runs as the service's fast pre-check and inside
// the proof program, so the two can never drift. It is deterministic: the
// same witness always yields the same verdict and the same error.
func (w *Witness) Validate() error {
	if w.StartBlock > w.EndBlock {
		return fmt.Errorf("start block %d above end block %d: %w",
			w.StartBlock, w.EndBlock, ErrMalformedInput)
	}
	if err := w.checkRequestLeaf(); err != nil {
		return err
	}
	if err := w.checkGerClaims(); err != nil {
		return err
	}
	return w.checkImportedBridgeExits()
}

// checkRequestLeaf verifies the snapshot leaf the request itself is built
// on is committed under the claimed L1 info tree root
func (w *Witness) checkRequestLeaf() error {
	if !tree.Verify(w.L1InfoTreeLeaf.Hash(), w.L1InfoTreeLeaf.L1InfoTreeIndex,
		w.L1InfoTreeProof, w.L1InfoTreeRoot) {
		return fmt.Errorf("l1 info tree leaf %d not included under root %s: %w",
			w.L1InfoTreeLeaf.L1InfoTreeIndex, w.L1InfoTreeRoot, ErrInclusionVerificationFailed)
	}
	return nil
}

// checkGerClaims verifies every entry of the GER map: the key must be the
// digest of the leaf it carries (a key that does not re-derive from the
// leaf is a spoofing attempt), the leaf's GER must be consistent with its
// exit roots, and the leaf must be included under the request's L1 info
// tree root. Any failing entry rejects the whole request.
func (w *Witness) checkGerClaims() error {
	// sorted so that a request with several bad entries always reports
	// the same one
	keys := make([]string, 0, len(w.GerLeaves))
	for key := range w.GerLeaves {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		claim := w.GerLeaves[key]
		if claim == nil {
			return fmt.Errorf("ger %s carries no claim: %w", key, ErrMalformedInput)
		}
		if expected := GerKey(claim.L1Leaf.Inner.GlobalExitRoot); key != expected {
			return fmt.Errorf("ger key %s does not match the ger %s of its leaf: %w",
				key, claim.L1Leaf.Inner.GlobalExitRoot, ErrMalformedInput)
		}
		if derived := claim.L1Leaf.GlobalExitRoot(); claim.L1Leaf.Inner.GlobalExitRoot != derived {
			return fmt.Errorf("ger %s is not the digest of the leaf exit roots (expected %s): %w",
				claim.L1Leaf.Inner.GlobalExitRoot, derived, ErrMalformedInput)
		}
		if !tree.Verify(claim.L1Leaf.Hash(), claim.L1Leaf.L1InfoTreeIndex,
			claim.InclusionProof, w.L1InfoTreeRoot) {
			return fmt.Errorf("ger %s leaf %d not included under l1 info tree root %s: %w",
				key, claim.L1Leaf.L1InfoTreeIndex, w.L1InfoTreeRoot, ErrInclusionVerificationFailed)
		}
	}
	return nil
}

// checkImportedBridgeExits validates routing, structure and inclusion of
// every imported exit. Any failure rejects the whole batch: a proof over a
// subset of the claimed exits is meaningless.
func (w *Witness) checkImportedBridgeExits() error {
	seen := make(map[[globalIndexMaxSize]byte]struct{}, len(w.ImportedBridgeExits))
	for i, exit := range w.ImportedBridgeExits {
		if exit == nil || exit.BridgeExit == nil || exit.GlobalIndex == nil ||
			exit.BridgeExit.TokenInfo == nil {
			return fmt.Errorf("imported exit %d is incomplete: %w", i, ErrMalformedInput)
		}
		if exit.BridgeExit.IsMetadataHashed && len(exit.BridgeExit.Metadata) != common.HashLength {
			return fmt.Errorf("imported exit %d declares hashed metadata of %d bytes: %w",
				i, len(exit.BridgeExit.Metadata), ErrMalformedInput)
		}
		if exit.BridgeExit.DestinationNetwork != w.NetworkID {
			return fmt.Errorf("imported exit %d is destined to network %d, this network is %d: %w",
				i, exit.BridgeExit.DestinationNetwork, w.NetworkID, ErrRoutingMismatch)
		}
		if exit.GlobalIndex.MainnetFlag && exit.GlobalIndex.RollupIndex != 0 {
			return fmt.Errorf("imported exit %d sets a rollup index %d on a mainnet global index: %w",
				i, exit.GlobalIndex.RollupIndex, ErrMalformedInput)
		}

		var key [globalIndexMaxSize]byte
		copy(key[:], exit.GlobalIndex.Bytes())
		if _, ok := seen[key]; ok {
			return fmt.Errorf("duplicate global index %s: %w", exit.GlobalIndex, ErrMalformedInput)
		}
		seen[key] = struct{}{}

		claim, ok := w.GerLeaves[GerKey(exit.ClaimedGlobalExitRoot)]
		if !ok {
			return fmt.Errorf("imported exit %d references ger %s absent from ger leaves: %w",
				i, exit.ClaimedGlobalExitRoot, ErrMalformedInput)
		}
		if exit.GlobalIndex.MainnetFlag {
			if !tree.Verify(exit.Hash(), exit.GlobalIndex.LeafIndex, exit.InclusionProof,
				claim.L1Leaf.MainnetExitRoot) {
				return fmt.Errorf("imported exit %d (%s) not included under mainnet exit root %s: %w",
					i, exit.GlobalIndex, claim.L1Leaf.MainnetExitRoot, ErrInclusionVerificationFailed)
			}
			continue
		}

		// rollup exits resolve in two stages: the leaf sits in the origin
		// rollup's local exit root, which in turn sits at the rollup index
		// inside the rollup exit root
		if !tree.Verify(exit.Hash(), exit.GlobalIndex.LeafIndex, exit.InclusionProof,
			exit.ImportedLocalExitRoot) {
			return fmt.Errorf("imported exit %d (%s) not included under local exit root %s: %w",
				i, exit.GlobalIndex, exit.ImportedLocalExitRoot, ErrInclusionVerificationFailed)
		}
		if !tree.Verify(exit.ImportedLocalExitRoot, exit.GlobalIndex.RollupIndex,
			exit.InclusionProofRER, claim.L1Leaf.RollupExitRoot) {
			return fmt.Errorf("imported exit %d local exit root %s not at rollup index %d under rollup exit root %s: %w",
				i, exit.ImportedLocalExitRoot, exit.GlobalIndex.RollupIndex,
				claim.L1Leaf.RollupExitRoot, ErrInclusionVerificationFailed)
		}
	}
	return nil
}
