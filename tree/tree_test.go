package tree

import (
	"fmt"
	"testing"

	"github.com/agglayer/aggkit-prover/tree/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func testLeaves(n int) []types.Leaf {
	leaves := make([]types.Leaf, n)
	for i := 0; i < n; i++ {
		leaves[i] = types.Leaf{
			Index: uint32(i),
			Hash:  crypto.Keccak256Hash([]byte(fmt.Sprintf("leaf %d", i))),
		}
	}
	return leaves
}

func TestVerifyGeneratedProofs(t *testing.T) {
	for _, nLeaves := range []int{1, 2, 3, 8, 21} {
		t.Run(fmt.Sprintf("%d leaves", nLeaves), func(t *testing.T) {
			tree := NewAppendOnlyTree()
			require.NoError(t, tree.AddLeaves(testLeaves(nLeaves)))
			root := tree.GetRoot()

			for i := 0; i < nLeaves; i++ {
				leafHash := crypto.Keccak256Hash([]byte(fmt.Sprintf("leaf %d", i)))
				proof, err := tree.GetProof(uint32(i))
				require.NoError(t, err)
				require.True(t, Verify(leafHash, uint32(i), proof, root))
			}
		})
	}
}

func TestVerifyRejectsMutations(t *testing.T) {
	tree := NewAppendOnlyTree()
	require.NoError(t, tree.AddLeaves(testLeaves(5)))
	root := tree.GetRoot()
	index := uint32(3)
	leafHash := crypto.Keccak256Hash([]byte("leaf 3"))
	proof, err := tree.GetProof(index)
	require.NoError(t, err)
	require.True(t, Verify(leafHash, index, proof, root))

	t.Run("mutated leaf", func(t *testing.T) {
		mutated := leafHash
		mutated[0] ^= 0x01
		require.False(t, Verify(mutated, index, proof, root))
	})

	t.Run("mutated sibling", func(t *testing.T) {
		for h := 0; h < int(types.DefaultHeight); h++ {
			mutated := proof
			mutated[h][31] ^= 0x80
			require.False(t, Verify(leafHash, index, mutated, root))
		}
	})

	t.Run("mutated root", func(t *testing.T) {
		mutated := root
		mutated[16] ^= 0x01
		require.False(t, Verify(leafHash, index, proof, mutated))
	})

	t.Run("wrong index", func(t *testing.T) {
		require.False(t, Verify(leafHash, index+1, proof, root))
	})
}

func TestAddLeafChecksIndex(t *testing.T) {
	tree := NewAppendOnlyTree()
	require.NoError(t, tree.AddLeaf(types.Leaf{Index: 0, Hash: common.HexToHash("0x01")}))
	err := tree.AddLeaf(types.Leaf{Index: 2, Hash: common.HexToHash("0x02")})
	require.ErrorContains(t, err, "mismatched index")
	require.Equal(t, uint32(1), tree.Count())
}

func TestGetProofUnknownIndex(t *testing.T) {
	tree := NewAppendOnlyTree()
	_, err := tree.GetProof(0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNewProofLength(t *testing.T) {
	_, err := types.NewProof(make([]common.Hash, types.DefaultHeight-1))
	require.ErrorContains(t, err, "unexpected number of siblings")

	_, err = types.NewProof(make([]common.Hash, types.DefaultHeight+1))
	require.ErrorContains(t, err, "unexpected number of siblings")

	proof, err := types.NewProof(make([]common.Hash, types.DefaultHeight))
	require.NoError(t, err)
	require.Equal(t, EmptyProof, proof)
}

func TestRootDeterminism(t *testing.T) {
	build := func() common.Hash {
		tree := NewAppendOnlyTree()
		require.NoError(t, tree.AddLeaves(testLeaves(13)))
		return tree.GetRoot()
	}
	require.Equal(t, build(), build())
}

func TestEmptyTreeRoot(t *testing.T) {
	tree := NewAppendOnlyTree()
	require.Equal(t, generateZeroHashes(types.DefaultHeight)[types.DefaultHeight], tree.GetRoot())
}
