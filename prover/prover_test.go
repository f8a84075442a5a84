package prover

import (
	"context"
	"testing"

	"github.com/agglayer/aggkit-prover/aggchainproof"
	"github.com/agglayer/aggkit-prover/log"
	"github.com/agglayer/aggkit-prover/tree"
	treetypes "github.com/agglayer/aggkit-prover/tree/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// minimalWitness carries no exits, only the snapshot leaf the request is
// built on, proven against a genuine single leaf tree
func minimalWitness(t *testing.T) *aggchainproof.Witness {
	t.Helper()

	l1Leaf := aggchainproof.L1InfoTreeLeaf{
		L1InfoTreeIndex: 0,
		RollupExitRoot:  common.HexToHash("0x01"),
		MainnetExitRoot: common.HexToHash("0x02"),
	}
	l1Leaf.Inner = aggchainproof.L1InfoTreeLeafInner{
		GlobalExitRoot: l1Leaf.GlobalExitRoot(),
		BlockHash:      common.HexToHash("0x03"),
		Timestamp:      1714000000,
	}

	l1InfoTree := tree.NewAppendOnlyTree()
	require.NoError(t, l1InfoTree.AddLeaf(treetypes.Leaf{Index: 0, Hash: l1Leaf.Hash()}))
	proof, err := l1InfoTree.GetProof(0)
	require.NoError(t, err)

	return &aggchainproof.Witness{
		NetworkID:            1,
		AggchainVKeySelector: [2]byte{0x00, 0x01},
		StartBlock:           100,
		EndBlock:             110,
		L1InfoTreeRoot:       l1InfoTree.GetRoot(),
		L1InfoTreeLeaf:       l1Leaf,
		L1InfoTreeProof:      proof,
		OutputRoot:           common.HexToHash("0x0137"),
	}
}

func TestExecutorProduceAndVerify(t *testing.T) {
	executor := NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, 1)

	bundle, err := executor.Execute(context.Background(), minimalWitness(t))
	require.NoError(t, err)
	require.Len(t, bundle.Proof, proofSize)
	require.Equal(t, uint64(100), bundle.PublicValues.StartBlock)
	require.Equal(t, uint64(110), bundle.PublicValues.EndBlock)

	require.NoError(t, executor.Verify(bundle))
}

func TestExecutorVerifyRejectsTampering(t *testing.T) {
	executor := NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, 1)

	bundle, err := executor.Execute(context.Background(), minimalWitness(t))
	require.NoError(t, err)

	tampered := *bundle
	tamperedPublics := *bundle.PublicValues
	tamperedPublics.EndBlock++
	tampered.PublicValues = &tamperedPublics
	require.ErrorIs(t, executor.Verify(&tampered), ErrProofVerificationFailed)

	tampered = *bundle
	tampered.Fingerprint[0] ^= 0x01
	require.ErrorIs(t, executor.Verify(&tampered), ErrProofVerificationFailed)

	tampered = *bundle
	tampered.Proof = bundle.Proof[:proofSize-1]
	require.ErrorIs(t, executor.Verify(&tampered), ErrBadProof)

	require.ErrorIs(t, executor.Verify(nil), ErrBadProof)
}

func TestExecutorVerifyRejectsForeignVKey(t *testing.T) {
	executor := NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, 1)
	other := NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x02}, 1)
	require.NotEqual(t, executor.VKeyHash(), other.VKeyHash())

	bundle, err := other.Execute(context.Background(), minimalWitness(t))
	require.NoError(t, err)
	require.ErrorIs(t, executor.Verify(bundle), ErrVKeyMismatch)
}

func TestExecutorRespectsContext(t *testing.T) {
	executor := NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := executor.Execute(ctx, minimalWitness(t))
	require.ErrorIs(t, err, aggchainproof.ErrCancelled)
}

func TestExecutorPropagatesProgramErrors(t *testing.T) {
	executor := NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, 1)

	witness := minimalWitness(t)
	witness.L1InfoTreeProof[0][0] ^= 0x01
	_, err := executor.Execute(context.Background(), witness)
	require.ErrorIs(t, err, aggchainproof.ErrInclusionVerificationFailed)
}
