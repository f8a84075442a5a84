package tree

import (
	"errors"
	"fmt"

	"github.com/agglayer/aggkit-prover/tree/types"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

var (
	EmptyProof  = types.Proof{}
	ErrNotFound = errors.New("not found")
)

type treeNode struct {
	left  common.Hash
	right common.Hash
}

func (n treeNode) hash() common.Hash {
	var hash common.Hash
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(n.left[:])
	hasher.Write(n.right[:])
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// CalculateRoot recomputes the root implied by a leaf hash and its sibling
// path. The siblings are ordered leaf to root and the side of the running
// hash at depth h is given by bit h of the leaf index: bit = 0 means the
// running hash is the left child, bit = 1 the right one.
func CalculateRoot(leafHash common.Hash, proof types.Proof, index uint32) common.Hash {
	node := leafHash
	for h := uint8(0); h < types.DefaultHeight; h++ {
		if index&(1<<h) > 0 {
			node = treeNode{left: proof[h], right: node}.hash()
		} else {
			node = treeNode{left: node, right: proof[h]}.hash()
		}
	}
	return node
}

// Verify checks that proof reconstructs root from leafHash at index. It is a
// pure function, safe to call concurrently.
func Verify(leafHash common.Hash, index uint32, proof types.Proof, root common.Hash) bool {
	return CalculateRoot(leafHash, proof, index) == root
}

func generateZeroHashes(height uint8) []common.Hash {
	var zeroHashes = []common.Hash{
		{},
	}
	// This generates a leaf = HashZero in position 0. In the rest of the positions that are equivalent to the ascending levels,
	// we set the hashes of the nodes. So all nodes from level i=5 will have the same value and same children nodes.
	for i := 1; i <= int(height); i++ {
		zeroHashes = append(zeroHashes, treeNode{
			left:  zeroHashes[i-1],
			right: zeroHashes[i-1],
		}.hash())
	}
	return zeroHashes
}

// AppendOnlyTree is an in-memory merkle tree of fixed height where leaves
// are added sequentially by index. The intermediate nodes are kept on a
// reverse hash table so sibling paths can be generated for any leaf. It is
// request scoped: built, queried and discarded, never shared across
// goroutines.
type AppendOnlyTree struct {
	zeroHashes    []common.Hash
	rht           map[common.Hash]treeNode
	lastLeftCache [types.DefaultHeight]common.Hash
	lastRoot      common.Hash
	count         uint32
}

// NewAppendOnlyTree creates an empty AppendOnlyTree
func NewAppendOnlyTree() *AppendOnlyTree {
	zeroHashes := generateZeroHashes(types.DefaultHeight)
	return &AppendOnlyTree{
		zeroHashes: zeroHashes,
		rht:        map[common.Hash]treeNode{},
		lastRoot:   zeroHashes[types.DefaultHeight],
	}
}

// AddLeaves adds a list of leaves into the tree. The indexes of the leaves
// must be consecutive, starting by the index of the last leaf added +1
func (t *AppendOnlyTree) AddLeaves(leaves []types.Leaf) error {
	for _, leaf := range leaves {
		if err := t.AddLeaf(leaf); err != nil {
			return err
		}
	}
	return nil
}

// AddLeaf adds a leaf at the next free index
func (t *AppendOnlyTree) AddLeaf(leaf types.Leaf) error {
	if leaf.Index != t.count {
		return fmt.Errorf(
			"mismatched index. Expected: %d, actual: %d",
			t.count, leaf.Index,
		)
	}
	currentChildHash := leaf.Hash
	for h := uint8(0); h < types.DefaultHeight; h++ {
		var parent treeNode
		if leaf.Index&(1<<h) > 0 {
			// Add child to the right
			parent = treeNode{
				left:  t.lastLeftCache[h],
				right: currentChildHash,
			}
		} else {
			// Add child to the left
			parent = treeNode{
				left:  currentChildHash,
				right: t.zeroHashes[h],
			}
			t.lastLeftCache[h] = currentChildHash
		}
		currentChildHash = parent.hash()
		t.rht[currentChildHash] = parent
	}
	t.lastRoot = currentChildHash
	t.count++
	return nil
}

// GetRoot returns the root after the last added leaf. For an empty tree it
// is the zero hash of the tree height.
func (t *AppendOnlyTree) GetRoot() common.Hash {
	return t.lastRoot
}

// Count returns the number of leaves added so far
func (t *AppendOnlyTree) Count() uint32 {
	return t.count
}

// GetProof returns the sibling path of the leaf at index against the
// current root, ordered leaf to root
func (t *AppendOnlyTree) GetProof(index uint32) (types.Proof, error) {
	if index >= t.count {
		return EmptyProof, ErrNotFound
	}
	siblings := types.Proof{}
	currentNodeHash := t.lastRoot
	// It starts in height-1 because 0 is the level of the leafs
	for h := int(types.DefaultHeight - 1); h >= 0; h-- {
		currentNode, ok := t.rht[currentNodeHash]
		if !ok {
			return EmptyProof, fmt.Errorf(
				"height: %d, currentNode: %s, error: %w",
				h, currentNodeHash.Hex(), ErrNotFound,
			)
		}
		if index&(1<<h) > 0 {
			siblings[h] = currentNode.left
			currentNodeHash = currentNode.right
		} else {
			siblings[h] = currentNode.right
			currentNodeHash = currentNode.left
		}
	}
	return siblings, nil
}
