package types

import (
	"fmt"
	"math/big"

	"github.com/agglayer/aggkit-prover/aggchainproof"
	treetypes "github.com/agglayer/aggkit-prover/tree/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// GenerateAggchainProofRequest is the wire form of a proof request. Merkle
// proofs travel as sibling lists so a wrong length is caught at decode time
// instead of silently zero padding.
type GenerateAggchainProofRequest struct {
	StartBlock            uint64                      `json:"start_block"`
	MaxEndBlock           uint64                      `json:"max_end_block"`
	L1InfoTreeRootHash    common.Hash                 `json:"l1_info_tree_root_hash"`
	L1InfoTreeLeaf        L1InfoTreeLeaf              `json:"l1_info_tree_leaf"`
	L1InfoTreeMerkleProof []common.Hash               `json:"l1_info_tree_merkle_proof"`
	GerLeaves             map[string]ClaimFromMainnet `json:"ger_leaves"`
	ImportedBridgeExits   []ImportedBridgeExit        `json:"imported_bridge_exits"`
	OutputRoot            common.Hash                 `json:"output_root"`
}

// L1InfoTreeLeaf is the wire form of one L1 info tree snapshot
type L1InfoTreeLeaf struct {
	L1InfoTreeIndex uint32      `json:"l1_info_tree_index"`
	RollupExitRoot  common.Hash `json:"rollup_exit_root"`
	MainnetExitRoot common.Hash `json:"mainnet_exit_root"`
	GlobalExitRoot  common.Hash `json:"global_exit_root"`
	BlockHash       common.Hash `json:"block_hash"`
	Timestamp       uint64      `json:"timestamp"`
}

// ClaimFromMainnet proves one GER was committed on the L1 info tree
type ClaimFromMainnet struct {
	InclusionProof []common.Hash  `json:"inclusion_proof"`
	L1Leaf         L1InfoTreeLeaf `json:"l1_leaf"`
}

// TokenInfo identifies a token on its origin network
type TokenInfo struct {
	OriginNetwork      uint32         `json:"origin_network"`
	OriginTokenAddress common.Address `json:"origin_token_address"`
}

// BridgeExit is the wire form of one exit leaf. Amount travels as a decimal
// string to survive JSON number precision limits.
type BridgeExit struct {
	LeafType           uint8          `json:"leaf_type"`
	TokenInfo          TokenInfo      `json:"token_info"`
	DestinationNetwork uint32         `json:"destination_network"`
	DestinationAddress common.Address `json:"destination_address"`
	Amount             string         `json:"amount"`
	IsMetadataHashed   bool           `json:"is_metadata_hashed"`
	Metadata           hexutil.Bytes  `json:"metadata"`
}

// GlobalIndex locates an exit leaf on the mainnet or a rollup exit tree
type GlobalIndex struct {
	MainnetFlag bool   `json:"mainnet_flag"`
	RollupIndex uint32 `json:"rollup_index"`
	LeafIndex   uint32 `json:"leaf_index"`
}

// ImportedBridgeExit is the wire form of one claimed exit. Rollup exits
// additionally carry the origin rollup's local exit root and the proof that
// places it inside the rollup exit root; mainnet exits leave those empty.
type ImportedBridgeExit struct {
	BridgeExit            BridgeExit    `json:"bridge_exit"`
	GlobalIndex           GlobalIndex   `json:"global_index"`
	ClaimedGlobalExitRoot common.Hash   `json:"claimed_global_exit_root"`
	ImportedLocalExitRoot common.Hash   `json:"imported_local_exit_root,omitempty"`
	InclusionProof        []common.Hash `json:"inclusion_proof"`
	InclusionProofRER     []common.Hash `json:"inclusion_proof_rer,omitempty"`
}

// GenerateAggchainProofResponse is the wire form of a completed proof
type GenerateAggchainProofResponse struct {
	Proof           hexutil.Bytes `json:"proof"`
	StartBlock      uint64        `json:"start_block"`
	EndBlock        uint64        `json:"end_block"`
	LocalExitRoot   common.Hash   `json:"local_exit_root"`
	CustomChainData hexutil.Bytes `json:"custom_chain_data"`
	Fingerprint     common.Hash   `json:"fingerprint"`
}

// AggchainProofStatusResponse is the wire form of a stored request verdict
type AggchainProofStatusResponse struct {
	Fingerprint  common.Hash `json:"fingerprint"`
	Status       string      `json:"status"`
	StartBlock   uint64      `json:"start_block"`
	EndBlock     uint64      `json:"end_block"`
	ErrorCode    string      `json:"error_code,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// ToWitness decodes the request into a witness, rejecting malformed fields
// before any cryptographic work happens
func (r *GenerateAggchainProofRequest) ToWitness() (*aggchainproof.Witness, error) {
	if r.StartBlock > r.MaxEndBlock {
		return nil, fmt.Errorf("start block %d above max end block %d: %w",
			r.StartBlock, r.MaxEndBlock, aggchainproof.ErrMalformedInput)
	}

	l1InfoTreeProof, err := decodeProof(r.L1InfoTreeMerkleProof)
	if err != nil {
		return nil, fmt.Errorf("l1 info tree merkle proof: %w", err)
	}

	gerLeaves := make(map[string]*aggchainproof.ClaimFromMainnet, len(r.GerLeaves))
	for key, claim := range r.GerLeaves {
		if _, err := aggchainproof.DecodeGerKey(key); err != nil {
			return nil, fmt.Errorf("ger leaves: %v: %w", err, aggchainproof.ErrMalformedInput)
		}
		claimProof, err := decodeProof(claim.InclusionProof)
		if err != nil {
			return nil, fmt.Errorf("ger %s inclusion proof: %w", key, err)
		}
		gerLeaves[key] = &aggchainproof.ClaimFromMainnet{
			InclusionProof: claimProof,
			L1Leaf:         claim.L1Leaf.toWitnessLeaf(),
		}
	}

	exits := make([]*aggchainproof.ImportedBridgeExit, 0, len(r.ImportedBridgeExits))
	for i, exit := range r.ImportedBridgeExits {
		decoded, err := exit.toWitnessExit()
		if err != nil {
			return nil, fmt.Errorf("imported exit %d: %w", i, err)
		}
		exits = append(exits, decoded)
	}

	return &aggchainproof.Witness{
		StartBlock:          r.StartBlock,
		EndBlock:            r.MaxEndBlock,
		L1InfoTreeRoot:      r.L1InfoTreeRootHash,
		L1InfoTreeLeaf:      r.L1InfoTreeLeaf.toWitnessLeaf(),
		L1InfoTreeProof:     l1InfoTreeProof,
		GerLeaves:           gerLeaves,
		ImportedBridgeExits: exits,
		OutputRoot:          r.OutputRoot,
	}, nil
}

func (l L1InfoTreeLeaf) toWitnessLeaf() aggchainproof.L1InfoTreeLeaf {
	return aggchainproof.L1InfoTreeLeaf{
		L1InfoTreeIndex: l.L1InfoTreeIndex,
		RollupExitRoot:  l.RollupExitRoot,
		MainnetExitRoot: l.MainnetExitRoot,
		Inner: aggchainproof.L1InfoTreeLeafInner{
			GlobalExitRoot: l.GlobalExitRoot,
			BlockHash:      l.BlockHash,
			Timestamp:      l.Timestamp,
		},
	}
}

func (e ImportedBridgeExit) toWitnessExit() (*aggchainproof.ImportedBridgeExit, error) {
	amount := new(big.Int)
	if e.BridgeExit.Amount != "" {
		var ok bool
		amount, ok = amount.SetString(e.BridgeExit.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("amount %q is not a decimal integer: %w",
				e.BridgeExit.Amount, aggchainproof.ErrMalformedInput)
		}
	}

	proof, err := decodeProof(e.InclusionProof)
	if err != nil {
		return nil, fmt.Errorf("inclusion proof: %w", err)
	}

	var proofRER treetypes.Proof
	if !e.GlobalIndex.MainnetFlag {
		proofRER, err = decodeProof(e.InclusionProofRER)
		if err != nil {
			return nil, fmt.Errorf("rollup exit root inclusion proof: %w", err)
		}
	}

	return &aggchainproof.ImportedBridgeExit{
		BridgeExit: &aggchainproof.BridgeExit{
			LeafType: aggchainproof.LeafType(e.BridgeExit.LeafType),
			TokenInfo: &aggchainproof.TokenInfo{
				OriginNetwork:      e.BridgeExit.TokenInfo.OriginNetwork,
				OriginTokenAddress: e.BridgeExit.TokenInfo.OriginTokenAddress,
			},
			DestinationNetwork: e.BridgeExit.DestinationNetwork,
			DestinationAddress: e.BridgeExit.DestinationAddress,
			Amount:             amount,
			IsMetadataHashed:   e.BridgeExit.IsMetadataHashed,
			Metadata:           e.BridgeExit.Metadata,
		},
		GlobalIndex: &aggchainproof.GlobalIndex{
			MainnetFlag: e.GlobalIndex.MainnetFlag,
			RollupIndex: e.GlobalIndex.RollupIndex,
			LeafIndex:   e.GlobalIndex.LeafIndex,
		},
		ClaimedGlobalExitRoot: e.ClaimedGlobalExitRoot,
		ImportedLocalExitRoot: e.ImportedLocalExitRoot,
		InclusionProof:        proof,
		InclusionProofRER:     proofRER,
	}, nil
}

func decodeProof(siblings []common.Hash) (treetypes.Proof, error) {
	proof, err := treetypes.NewProof(siblings)
	if err != nil {
		return treetypes.Proof{}, fmt.Errorf("%v: %w", err, aggchainproof.ErrMalformedInput)
	}

	return proof, nil
}
