package aggchainproof

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	cdkcommon "github.com/agglayer/aggkit-prover/common"
	treetypes "github.com/agglayer/aggkit-prover/tree/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/keccak256"
	"golang.org/x/crypto/sha3"
)

type LeafType uint8

func (l LeafType) Uint8() uint8 {
	return uint8(l)
}

const (
	LeafTypeAsset   LeafType = 0
	LeafTypeMessage LeafType = 1
)

// the on-chain global index packs [1 byte mainnet flag][4 bytes rollup index][4 bytes leaf index]
const globalIndexMaxSize = 9

// TokenInfo encapsulates the information to uniquely identify a token on the origin network.
type TokenInfo struct {
	OriginNetwork      uint32         `json:"origin_network"`
	OriginTokenAddress common.Address `json:"origin_token_address"`
}

// GlobalIndex locates an exit leaf within either the mainnet exit tree or a
// specific rollup's exit tree.
type GlobalIndex struct {
	MainnetFlag bool   `json:"mainnet_flag"`
	RollupIndex uint32 `json:"rollup_index"`
	LeafIndex   uint32 `json:"leaf_index"`
}

// Bytes returns the fixed width on-chain encoding of the global index
func (g *GlobalIndex) Bytes() []byte {
	var buf [globalIndexMaxSize]byte
	if g.MainnetFlag {
		buf[0] = 1
	}
	binary.BigEndian.PutUint32(buf[1:5], g.RollupIndex)
	binary.BigEndian.PutUint32(buf[5:9], g.LeafIndex)
	return buf[:]
}

// Encode returns the 256-bit integer form of the global index used by the
// bridge contract
func (g *GlobalIndex) Encode() *big.Int {
	return new(big.Int).SetBytes(g.Bytes())
}

func (g *GlobalIndex) String() string {
	return fmt.Sprintf("GlobalIndex{mainnet: %t, rollup: %d, leaf: %d}",
		g.MainnetFlag, g.RollupIndex, g.LeafIndex)
}

// DecodeGlobalIndex rebuilds a GlobalIndex from its 256-bit integer form
func DecodeGlobalIndex(globalIndex *big.Int) (*GlobalIndex, error) {
	globalIndexBytes := globalIndex.Bytes()
	if len(globalIndexBytes) > globalIndexMaxSize {
		return nil, errors.New("invalid global index length")
	}
	var buf [globalIndexMaxSize]byte
	copy(buf[globalIndexMaxSize-len(globalIndexBytes):], globalIndexBytes)
	return &GlobalIndex{
		MainnetFlag: buf[0] == 1,
		RollupIndex: binary.BigEndian.Uint32(buf[1:5]),
		LeafIndex:   binary.BigEndian.Uint32(buf[5:9]),
	}, nil
}

// BridgeExit represents a token or message exit committed on a bridge exit tree
type BridgeExit struct {
	LeafType           LeafType       `json:"leaf_type"`
	TokenInfo          *TokenInfo     `json:"token_info"`
	DestinationNetwork uint32         `json:"destination_network"`
	DestinationAddress common.Address `json:"destination_address"`
	Amount             *big.Int       `json:"amount"`
	IsMetadataHashed   bool           `json:"is_metadata_hashed"`
	Metadata           []byte         `json:"metadata"`
}

// Hash returns the canonical leaf hash of the bridge exit, matching the
// encoding used by the bridge contract
func (b *BridgeExit) Hash() common.Hash {
	if b.Amount == nil {
		b.Amount = big.NewInt(0)
	}
	metaHash := b.Metadata
	if !b.IsMetadataHashed {
		metaHash = keccak256.Hash(b.Metadata)
	}

	var buf [32]byte
	hash := common.Hash{}
	copy(
		hash[:],
		keccak256.Hash(
			[]byte{b.LeafType.Uint8()},
			cdkcommon.Uint32ToBytes(b.TokenInfo.OriginNetwork),
			b.TokenInfo.OriginTokenAddress.Bytes(),
			cdkcommon.Uint32ToBytes(b.DestinationNetwork),
			b.DestinationAddress.Bytes(),
			b.Amount.FillBytes(buf[:]),
			metaHash,
		),
	)
	return hash
}

// ImportedBridgeExit is an exit originating on another network claimed on
// the current network. ClaimedGlobalExitRoot names the GER whose committed
// exit roots the inclusion proofs are checked against; that GER must have
// its own verified entry in the request's ger leaves.
//
// Mainnet exits carry a single proof: the leaf against the mainnet exit
// root. Rollup exits carry two: InclusionProof places the leaf inside
// ImportedLocalExitRoot, InclusionProofRER places ImportedLocalExitRoot at
// the rollup index of the global index inside the rollup exit root.
type ImportedBridgeExit struct {
	BridgeExit            *BridgeExit     `json:"bridge_exit"`
	GlobalIndex           *GlobalIndex    `json:"global_index"`
	ClaimedGlobalExitRoot common.Hash     `json:"claimed_global_exit_root"`
	ImportedLocalExitRoot common.Hash     `json:"imported_local_exit_root"`
	InclusionProof        treetypes.Proof `json:"inclusion_proof"`
	InclusionProofRER     treetypes.Proof `json:"inclusion_proof_rer"`
}

// Hash returns a hash that uniquely identifies the imported bridge exit
func (c *ImportedBridgeExit) Hash() common.Hash {
	return c.BridgeExit.Hash()
}

// L1InfoTreeLeafInner is the snapshot committed on every L1 info tree update
type L1InfoTreeLeafInner struct {
	GlobalExitRoot common.Hash `json:"global_exit_root"`
	BlockHash      common.Hash `json:"block_hash"`
	Timestamp      uint64      `json:"timestamp"`
}

// Hash returns the leaf hash committed into the L1 info tree
func (l *L1InfoTreeLeafInner) Hash() common.Hash {
	var res common.Hash
	t := make([]byte, 8) //nolint:gomnd
	binary.BigEndian.PutUint64(t, l.Timestamp)
	copy(res[:], keccak256.Hash(l.GlobalExitRoot.Bytes(), l.BlockHash.Bytes(), t))
	return res
}

// L1InfoTreeLeaf is one committed snapshot of global bridge state
type L1InfoTreeLeaf struct {
	L1InfoTreeIndex uint32              `json:"l1_info_tree_index"`
	RollupExitRoot  common.Hash         `json:"rollup_exit_root"`
	MainnetExitRoot common.Hash         `json:"mainnet_exit_root"`
	Inner           L1InfoTreeLeafInner `json:"inner"`
}

// Hash returns the leaf hash of the snapshot
func (l *L1InfoTreeLeaf) Hash() common.Hash {
	return l.Inner.Hash()
}

// GlobalExitRoot derives the GER committed by this leaf from its exit roots
func (l *L1InfoTreeLeaf) GlobalExitRoot() common.Hash {
	var ger common.Hash
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(l.MainnetExitRoot[:])
	hasher.Write(l.RollupExitRoot[:])
	copy(ger[:], hasher.Sum(nil))
	return ger
}

// ClaimFromMainnet asserts that L1Leaf is included, at its index, under the
// request's L1 info tree root
type ClaimFromMainnet struct {
	InclusionProof treetypes.Proof `json:"inclusion_proof"`
	L1Leaf         L1InfoTreeLeaf  `json:"l1_leaf"`
}

// GerKey returns the wire form of a GER digest: base64 of its 32 bytes
func GerKey(ger common.Hash) string {
	return base64.StdEncoding.EncodeToString(ger.Bytes())
}

// DecodeGerKey parses the wire form of a GER digest
func DecodeGerKey(key string) (common.Hash, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("ger key is not valid base64: %w", err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("ger key decodes to %d bytes, expected %d", len(raw), common.HashLength)
	}
	return common.BytesToHash(raw), nil
}
