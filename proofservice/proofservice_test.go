package proofservice

import (
	"context"
	"math/big"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/agglayer/aggkit-prover/aggchainproof"
	"github.com/agglayer/aggkit-prover/config/types"
	"github.com/agglayer/aggkit-prover/log"
	prooftypes "github.com/agglayer/aggkit-prover/proofservice/types"
	"github.com/agglayer/aggkit-prover/prover"
	"github.com/agglayer/aggkit-prover/tree"
	treetypes "github.com/agglayer/aggkit-prover/tree/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const testNetworkID = uint32(1)

func testConfig(t *testing.T) Config {
	t.Helper()

	return Config{
		NetworkID:            testNetworkID,
		DBPath:               path.Join(t.TempDir(), "proofservice_test.sqlite"),
		AggchainVKeySelector: "0x0001",
		MaxConcurrentProofs:  4,
		ProvingTimeout:       types.NewDuration(time.Minute),
	}
}

// countingProver wraps the native executor and counts proving runs, failing
// the first failures calls with a retryable error
type countingProver struct {
	inner *prover.Executor

	mu       sync.Mutex
	calls    int
	failures int
	delay    time.Duration
}

func (c *countingProver) Name() string { return "counting-" + c.inner.Name() }

func (c *countingProver) Execute(ctx context.Context,
	witness *aggchainproof.Witness) (*prover.ProofBundle, error) {
	c.mu.Lock()
	c.calls++
	fail := c.failures > 0
	if fail {
		c.failures--
	}
	c.mu.Unlock()

	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if fail {
		return nil, aggchainproof.ErrProvingFailure
	}

	return c.inner.Execute(ctx, witness)
}

func (c *countingProver) Verify(bundle *prover.ProofBundle) error {
	return c.inner.Verify(bundle)
}

func (c *countingProver) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

func newTestService(t *testing.T, cfg Config, proofProver prover.Prover) *ProofService {
	t.Helper()

	service, err := New(log.WithFields("test", t.Name()), cfg, proofProver)
	require.NoError(t, err)

	return service
}

// serviceWitness builds a witness with a single imported exit whose
// inclusion evidence is genuine end to end
func serviceWitness(t *testing.T) *aggchainproof.Witness {
	t.Helper()

	exit := &aggchainproof.ImportedBridgeExit{
		BridgeExit: &aggchainproof.BridgeExit{
			LeafType: aggchainproof.LeafTypeAsset,
			TokenInfo: &aggchainproof.TokenInfo{
				OriginNetwork:      0,
				OriginTokenAddress: common.HexToAddress("0x1111"),
			},
			DestinationNetwork: testNetworkID,
			DestinationAddress: common.HexToAddress("0x2222"),
			Amount:             big.NewInt(1000),
			Metadata:           []byte("bridged token"),
		},
		GlobalIndex: &aggchainproof.GlobalIndex{MainnetFlag: true, LeafIndex: 0},
	}

	mainnetExitTree := tree.NewAppendOnlyTree()
	require.NoError(t, mainnetExitTree.AddLeaf(treetypes.Leaf{Index: 0, Hash: exit.Hash()}))
	exitProof, err := mainnetExitTree.GetProof(0)
	require.NoError(t, err)
	exit.InclusionProof = exitProof

	l1Leaf := aggchainproof.L1InfoTreeLeaf{
		L1InfoTreeIndex: 0,
		RollupExitRoot:  common.HexToHash("0xbeef"),
		MainnetExitRoot: mainnetExitTree.GetRoot(),
	}
	l1Leaf.Inner = aggchainproof.L1InfoTreeLeafInner{
		GlobalExitRoot: l1Leaf.GlobalExitRoot(),
		BlockHash:      common.HexToHash("0xb10c"),
		Timestamp:      1714000000,
	}
	exit.ClaimedGlobalExitRoot = l1Leaf.Inner.GlobalExitRoot

	l1InfoTree := tree.NewAppendOnlyTree()
	require.NoError(t, l1InfoTree.AddLeaf(treetypes.Leaf{Index: 0, Hash: l1Leaf.Hash()}))
	l1LeafProof, err := l1InfoTree.GetProof(0)
	require.NoError(t, err)

	return &aggchainproof.Witness{
		StartBlock:      100,
		EndBlock:        110,
		L1InfoTreeRoot:  l1InfoTree.GetRoot(),
		L1InfoTreeLeaf:  l1Leaf,
		L1InfoTreeProof: l1LeafProof,
		GerLeaves: map[string]*aggchainproof.ClaimFromMainnet{
			aggchainproof.GerKey(l1Leaf.Inner.GlobalExitRoot): {
				InclusionProof: l1LeafProof,
				L1Leaf:         l1Leaf,
			},
		},
		ImportedBridgeExits: []*aggchainproof.ImportedBridgeExit{exit},
		OutputRoot:          common.HexToHash("0x0137"),
	}
}

func TestGenerateProofEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	executor := prover.NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, cfg.NetworkID)
	counting := &countingProver{inner: executor}
	service := newTestService(t, cfg, counting)

	witness := serviceWitness(t)
	result, err := service.GenerateProof(context.Background(), witness)
	require.NoError(t, err)
	require.Equal(t, prooftypes.StatusCompleted, result.Status)
	require.Equal(t, uint64(100), result.PublicValues.StartBlock)
	require.Equal(t, uint64(110), result.PublicValues.EndBlock)
	require.NotEmpty(t, result.Proof)

	// the local exit root matches an independently built exit tree
	expectedTree := tree.NewAppendOnlyTree()
	require.NoError(t, expectedTree.AddLeaf(treetypes.Leaf{
		Index: 0,
		Hash:  witness.ImportedBridgeExits[0].Hash(),
	}))
	require.Equal(t, expectedTree.GetRoot(), result.PublicValues.LocalExitRoot)
	require.Equal(t, 1, counting.callCount())
}

func TestGenerateProofReplaysCompleted(t *testing.T) {
	cfg := testConfig(t)
	executor := prover.NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, cfg.NetworkID)
	counting := &countingProver{inner: executor}
	service := newTestService(t, cfg, counting)

	first, err := service.GenerateProof(context.Background(), serviceWitness(t))
	require.NoError(t, err)

	second, err := service.GenerateProof(context.Background(), serviceWitness(t))
	require.NoError(t, err)
	require.Equal(t, first.Proof, second.Proof)
	require.Equal(t, first.Fingerprint, second.Fingerprint)
	require.Equal(t, 1, counting.callCount())
}

func TestGenerateProofDeduplicatesConcurrentRequests(t *testing.T) {
	cfg := testConfig(t)
	executor := prover.NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, cfg.NetworkID)
	counting := &countingProver{inner: executor, delay: 200 * time.Millisecond}
	service := newTestService(t, cfg, counting)

	const requesters = 4
	var (
		wg      sync.WaitGroup
		results [requesters]*ProofResult
		errs    [requesters]error
	)
	for i := 0; i < requesters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = service.GenerateProof(context.Background(), serviceWitness(t))
		}(i)
	}
	wg.Wait()

	for i := 0; i < requesters; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, results[0].Proof, results[i].Proof)
	}
	require.Equal(t, 1, counting.callCount())
}

func TestGenerateProofPersistsRejection(t *testing.T) {
	cfg := testConfig(t)
	executor := prover.NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, cfg.NetworkID)
	counting := &countingProver{inner: executor}
	service := newTestService(t, cfg, counting)

	witness := serviceWitness(t)
	witness.ImportedBridgeExits[0].BridgeExit.DestinationNetwork = testNetworkID + 5
	_, err := service.GenerateProof(context.Background(), witness)
	require.ErrorIs(t, err, aggchainproof.ErrRoutingMismatch)

	// the verdict replays without another validation or proving run
	witness = serviceWitness(t)
	witness.ImportedBridgeExits[0].BridgeExit.DestinationNetwork = testNetworkID + 5
	_, err = service.GenerateProof(context.Background(), witness)
	require.ErrorIs(t, err, aggchainproof.ErrRoutingMismatch)
	require.Equal(t, 0, counting.callCount())
}

func TestGenerateProofRetriesAfterProvingFailure(t *testing.T) {
	cfg := testConfig(t)
	executor := prover.NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, cfg.NetworkID)
	counting := &countingProver{inner: executor, failures: 1}
	service := newTestService(t, cfg, counting)

	_, err := service.GenerateProof(context.Background(), serviceWitness(t))
	require.ErrorIs(t, err, aggchainproof.ErrProvingFailure)
	require.True(t, aggchainproof.IsRetryable(err))

	// no verdict was persisted, the retry gets a fresh run
	result, err := service.GenerateProof(context.Background(), serviceWitness(t))
	require.NoError(t, err)
	require.Equal(t, prooftypes.StatusCompleted, result.Status)
	require.Equal(t, 2, counting.callCount())
}

func TestGenerateProofLeavesWitnessUntouched(t *testing.T) {
	cfg := testConfig(t)
	executor := prover.NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, cfg.NetworkID)
	service := newTestService(t, cfg, &countingProver{inner: executor})

	witness := serviceWitness(t)
	result, err := service.GenerateProof(context.Background(), witness)
	require.NoError(t, err)
	require.Equal(t, prooftypes.StatusCompleted, result.Status)

	// the service proves with its configured network id and vkey selector
	// but the caller's witness keeps whatever it was built with
	require.Zero(t, witness.NetworkID)
	require.Equal(t, [2]byte{}, witness.AggchainVKeySelector)
}

func TestGenerateProofSurvivesCallerCancellation(t *testing.T) {
	cfg := testConfig(t)
	executor := prover.NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, cfg.NetworkID)
	counting := &countingProver{inner: executor}
	service := newTestService(t, cfg, counting)

	// the run a cancelled caller started must still finish so identical
	// requests are served its outcome instead of a spurious cancellation
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	first, err := service.GenerateProof(cancelled, serviceWitness(t))
	require.NoError(t, err)
	require.Equal(t, prooftypes.StatusCompleted, first.Status)

	second, err := service.GenerateProof(context.Background(), serviceWitness(t))
	require.NoError(t, err)
	require.Equal(t, first.Proof, second.Proof)
	require.Equal(t, 1, counting.callCount())
}

func TestGenerateProofNilWitness(t *testing.T) {
	cfg := testConfig(t)
	executor := prover.NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, cfg.NetworkID)
	service := newTestService(t, cfg, &countingProver{inner: executor})

	_, err := service.GenerateProof(context.Background(), nil)
	require.ErrorIs(t, err, aggchainproof.ErrMalformedInput)
}

func TestConfigVKeySelector(t *testing.T) {
	cfg := Config{AggchainVKeySelector: "0x0001"}
	selector, err := cfg.VKeySelector()
	require.NoError(t, err)
	require.Equal(t, [2]byte{0x00, 0x01}, selector)

	cfg.AggchainVKeySelector = "0001"
	selector, err = cfg.VKeySelector()
	require.NoError(t, err)
	require.Equal(t, [2]byte{0x00, 0x01}, selector)

	cfg.AggchainVKeySelector = "0x000102"
	_, err = cfg.VKeySelector()
	require.ErrorContains(t, err, "expected 2")

	cfg.AggchainVKeySelector = "0xzz"
	_, err = cfg.VKeySelector()
	require.ErrorContains(t, err, "invalid aggchain vkey selector")
}

func TestServiceRejectsZeroWorkers(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxConcurrentProofs = 0
	executor := prover.NewExecutor(log.WithFields("test", t.Name()), [2]byte{0x00, 0x01}, cfg.NetworkID)

	_, err := New(log.WithFields("test", t.Name()), cfg, &countingProver{inner: executor})
	require.ErrorContains(t, err, "MaxConcurrentProofs")
}
