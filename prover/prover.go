package prover

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/agglayer/aggkit-prover/aggchainproof"
	cdkcommon "github.com/agglayer/aggkit-prover/common"
	"github.com/agglayer/aggkit-prover/log"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrBadProof                = errors.New("prover returned a malformed proof")         //nolint:revive
	ErrProofVerificationFailed = errors.New("proof does not verify against its publics") //nolint:revive
	ErrVKeyMismatch            = errors.New("proof was produced under a different vkey") //nolint:revive
)

// domain tag bound into the verification key so proofs from other programs
// can never be replayed against this one
var vkeyDomainTag = []byte("aggkit-prover/aggchain-proof/v1")

// proofSize is vkey hash plus commitment
const proofSize = 2 * common.HashLength

// ProofBundle is the result of one proving run: the proof bytes, the public
// values they commit to and the witness fingerprint that identifies the run.
type ProofBundle struct {
	Proof        []byte
	PublicValues *aggchainproof.PublicValues
	Fingerprint  common.Hash
}

// Prover computes an aggchain proof from a fully assembled witness and can
// check a proof it produced.
type Prover interface {
	Name() string
	Execute(ctx context.Context, witness *aggchainproof.Witness) (*ProofBundle, error)
	Verify(bundle *ProofBundle) error
}

// Executor is the native prover backend: it runs the proof program directly
// and emits a binding commitment in place of a zk proof. The commitment ties
// the verification key, the public values and the witness fingerprint
// together, so Verify rejects any tampering with the bundle.
type Executor struct {
	logger   *log.Logger
	vkeyHash common.Hash
}

// NewExecutor builds an Executor whose verification key commits to the
// aggchain vkey selector and the served network.
func NewExecutor(logger *log.Logger, aggchainVKeySelector [2]byte, networkID uint32) *Executor {
	return &Executor{
		logger: logger,
		vkeyHash: cdkcommon.Keccak256Combine(
			vkeyDomainTag,
			aggchainVKeySelector[:],
			cdkcommon.Uint32ToBytes(networkID),
		),
	}
}

func (e *Executor) Name() string { return "native-executor" }

// VKeyHash returns the verification key digest every proof of this executor
// is bound to.
func (e *Executor) VKeyHash() common.Hash { return e.vkeyHash }

// Execute runs the proof program over the witness. Validation failures
// surface with the program's own error taxonomy so the caller can tell a
// rejected request from an interrupted run.
func (e *Executor) Execute(ctx context.Context, witness *aggchainproof.Witness) (*ProofBundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("proving interrupted before start: %w", aggchainproof.ErrCancelled)
	}

	publics, err := witness.Execute()
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("proving interrupted: %w", aggchainproof.ErrCancelled)
	}

	fingerprint := witness.Fingerprint()
	bundle := &ProofBundle{
		Proof:        e.proofBytes(publics, fingerprint),
		PublicValues: publics,
		Fingerprint:  fingerprint,
	}
	e.logger.Debugf("executed proof program for witness %s, range %d-%d",
		fingerprint, publics.StartBlock, publics.EndBlock)

	return bundle, nil
}

// Verify checks that the bundle's proof bytes commit to its public values
// and fingerprint under this executor's vkey.
func (e *Executor) Verify(bundle *ProofBundle) error {
	if bundle == nil || bundle.PublicValues == nil {
		return fmt.Errorf("empty bundle: %w", ErrBadProof)
	}
	if len(bundle.Proof) != proofSize {
		return fmt.Errorf("proof is %d bytes, expected %d: %w", len(bundle.Proof), proofSize, ErrBadProof)
	}
	if !bytes.Equal(bundle.Proof[:common.HashLength], e.vkeyHash.Bytes()) {
		return fmt.Errorf("proof vkey %x, this executor runs %s: %w",
			bundle.Proof[:common.HashLength], e.vkeyHash, ErrVKeyMismatch)
	}
	expected := e.proofBytes(bundle.PublicValues, bundle.Fingerprint)
	if !bytes.Equal(bundle.Proof, expected) {
		return ErrProofVerificationFailed
	}

	return nil
}

func (e *Executor) proofBytes(publics *aggchainproof.PublicValues, fingerprint common.Hash) []byte {
	commitment := cdkcommon.Keccak256Combine(
		e.vkeyHash.Bytes(),
		publics.Marshal(),
		fingerprint.Bytes(),
	)
	proof := make([]byte, 0, proofSize)
	proof = append(proof, e.vkeyHash.Bytes()...)
	proof = append(proof, commitment.Bytes()...)

	return proof
}
