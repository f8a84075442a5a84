package proofservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/agglayer/aggkit-prover/aggchainproof"
	"github.com/agglayer/aggkit-prover/db"
	"github.com/agglayer/aggkit-prover/log"
	storage "github.com/agglayer/aggkit-prover/proofservice/db"
	"github.com/agglayer/aggkit-prover/proofservice/types"
	"github.com/agglayer/aggkit-prover/prover"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// ProofResult is the outcome of a completed proof request
type ProofResult struct {
	Fingerprint  common.Hash
	Status       types.ProofStatus
	Proof        []byte
	PublicValues *aggchainproof.PublicValues
}

// ProofService drives proof requests through their lifecycle:
// Received, PreValidating, Proving, then Completed or Rejected. Identical
// in-flight requests are deduplicated on the witness fingerprint and share
// one proving run; completed and rejected verdicts are persisted and
// replayed on repeat requests.
type ProofService struct {
	logger   *log.Logger
	cfg      Config
	selector [2]byte
	prover   prover.Prover
	storage  storage.ProofStorage

	requests singleflight.Group
	workers  *semaphore.Weighted
}

// New opens the proof storage on cfg.DBPath and builds the service. Entries
// left in flight by a previous run are dropped: their witnesses were never
// persisted, so the caller has to resubmit.
func New(logger *log.Logger, cfg Config, proofProver prover.Prover) (*ProofService, error) {
	proofStorage, err := storage.NewProofSQLStorage(logger, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open proof storage: %w", err)
	}

	return newService(logger, cfg, proofProver, proofStorage)
}

func newService(logger *log.Logger, cfg Config,
	proofProver prover.Prover, proofStorage storage.ProofStorage) (*ProofService, error) {
	selector, err := cfg.VKeySelector()
	if err != nil {
		return nil, err
	}
	if cfg.MaxConcurrentProofs == 0 {
		return nil, errors.New("MaxConcurrentProofs must be positive")
	}

	s := &ProofService{
		logger:   logger,
		cfg:      cfg,
		selector: selector,
		prover:   proofProver,
		storage:  proofStorage,
		workers:  semaphore.NewWeighted(int64(cfg.MaxConcurrentProofs)),
	}
	if err := s.dropInFlightEntries(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// dropInFlightEntries removes entries a previous run left unfinished
func (s *ProofService) dropInFlightEntries(ctx context.Context) error {
	stale, err := s.storage.GetProofsByStatus([]types.ProofStatus{
		types.StatusReceived, types.StatusPreValidating, types.StatusProving,
	})
	if err != nil {
		return fmt.Errorf("failed to list unfinished proof entries: %w", err)
	}
	for _, entry := range stale {
		s.logger.Warnf("dropping unfinished proof entry %s (was %s), the request must be resubmitted",
			entry.Fingerprint, entry.Status)
		if err := s.storage.DeleteProofEntry(ctx, entry.Fingerprint); err != nil {
			return err
		}
	}

	return nil
}

// NetworkID returns the rollup network the service generates proofs for
func (s *ProofService) NetworkID() uint32 {
	return s.cfg.NetworkID
}

// GetProofStatus returns the stored entry of a request, db.ErrNotFound if
// the fingerprint was never seen
func (s *ProofService) GetProofStatus(fingerprint common.Hash) (types.AggchainProofEntry, error) {
	return s.storage.GetProofByFingerprint(fingerprint)
}

// GenerateProof runs one request end to end. The witness network id and
// vkey selector are taken from the service configuration, so the
// fingerprint is computed over exactly what will be proven; the caller's
// witness is left untouched. Concurrent identical requests collapse into a
// single run and all receive its outcome.
func (s *ProofService) GenerateProof(ctx context.Context,
	witness *aggchainproof.Witness) (*ProofResult, error) {
	if witness == nil {
		return nil, fmt.Errorf("empty witness: %w", aggchainproof.ErrMalformedInput)
	}
	run := *witness
	run.NetworkID = s.cfg.NetworkID
	run.AggchainVKeySelector = s.selector
	fingerprint := run.Fingerprint()

	result, err, shared := s.requests.Do(fingerprint.Hex(), func() (interface{}, error) {
		// the run may be shared with identical requests arriving later,
		// so its lifetime cannot be tied to whichever caller came first.
		// ProvingTimeout still bounds the proving stage.
		return s.process(context.WithoutCancel(ctx), fingerprint, &run)
	})
	if shared {
		s.logger.Debugf("request %s joined an in-flight identical request", fingerprint)
	}
	if err != nil {
		return nil, err
	}

	proofResult, ok := result.(*ProofResult)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}

	return proofResult, nil
}

func (s *ProofService) process(ctx context.Context,
	fingerprint common.Hash, witness *aggchainproof.Witness) (*ProofResult, error) {
	if replay, done, err := s.replayStoredVerdict(ctx, fingerprint); done {
		return replay, err
	}

	entry := types.AggchainProofEntry{
		Fingerprint: fingerprint,
		NetworkID:   witness.NetworkID,
		StartBlock:  witness.StartBlock,
		EndBlock:    witness.EndBlock,
		Status:      types.StatusReceived,
	}
	if err := s.storage.SaveProofEntry(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.preValidate(ctx, &entry, witness); err != nil {
		return nil, err
	}

	return s.prove(ctx, &entry, witness)
}

// replayStoredVerdict returns the persisted outcome of a finished identical
// request, if there is one. done is false when the request is new.
func (s *ProofService) replayStoredVerdict(ctx context.Context,
	fingerprint common.Hash) (*ProofResult, bool, error) {
	entry, err := s.storage.GetProofByFingerprint(fingerprint)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, false, nil
		}
		return nil, true, err
	}

	switch entry.Status {
	case types.StatusCompleted:
		publics, err := aggchainproof.UnmarshalPublicValues(entry.PublicValues)
		if err != nil {
			return nil, true, fmt.Errorf("stored public values for %s are corrupt: %w", fingerprint, err)
		}
		s.logger.Infof("request %s already completed, replaying stored proof", fingerprint)
		return &ProofResult{
			Fingerprint:  fingerprint,
			Status:       types.StatusCompleted,
			Proof:        entry.Proof,
			PublicValues: publics,
		}, true, nil
	case types.StatusRejected:
		s.logger.Infof("request %s already rejected with %s, replaying verdict", fingerprint, entry.ErrorCode)
		return nil, true, fmt.Errorf("%s: %w", entry.ErrorMessage, codeToErr(entry.ErrorCode))
	default:
		// unfinished leftovers are cleaned at startup, and unfinished
		// in-process entries never reach here thanks to singleflight
		if err := s.storage.DeleteProofEntry(ctx, fingerprint); err != nil {
			return nil, true, err
		}
		return nil, false, nil
	}
}

func (s *ProofService) preValidate(ctx context.Context,
	entry *types.AggchainProofEntry, witness *aggchainproof.Witness) error {
	entry.Status = types.StatusPreValidating
	if err := s.storage.UpdateProofEntry(ctx, *entry); err != nil {
		return err
	}

	if err := witness.Validate(); err != nil {
		s.logger.Infof("request %s rejected during validation: %v", entry.Fingerprint, err)
		return s.reject(ctx, entry, err)
	}

	return nil
}

func (s *ProofService) prove(ctx context.Context,
	entry *types.AggchainProofEntry, witness *aggchainproof.Witness) (*ProofResult, error) {
	entry.Status = types.StatusProving
	if err := s.storage.UpdateProofEntry(ctx, *entry); err != nil {
		return nil, err
	}

	if err := s.workers.Acquire(ctx, 1); err != nil {
		return nil, s.abandon(ctx, entry,
			fmt.Errorf("request %s gave up waiting for a proving slot: %w",
				entry.Fingerprint, aggchainproof.ErrCancelled))
	}
	defer s.workers.Release(1)

	provingCtx, cancel := context.WithTimeout(ctx, s.cfg.ProvingTimeout.Duration)
	defer cancel()

	bundle, err := s.prover.Execute(provingCtx, witness)
	if err != nil {
		if aggchainproof.IsRetryable(err) || errors.Is(err, aggchainproof.ErrCancelled) {
			// leave no verdict behind, a resubmission gets a fresh run
			return nil, s.abandon(ctx, entry, err)
		}
		s.logger.Infof("request %s rejected by the proof program: %v", entry.Fingerprint, err)
		return nil, s.reject(ctx, entry, err)
	}

	if err := s.prover.Verify(bundle); err != nil {
		return nil, s.abandon(ctx, entry,
			fmt.Errorf("proof for %s failed self verification: %v: %w",
				entry.Fingerprint, err, aggchainproof.ErrProvingFailure))
	}

	entry.Status = types.StatusCompleted
	entry.Proof = bundle.Proof
	entry.PublicValues = bundle.PublicValues.Marshal()
	if err := s.storage.UpdateProofEntry(ctx, *entry); err != nil {
		return nil, err
	}
	s.logger.Infof("request %s completed, range %d-%d, local exit root %s",
		entry.Fingerprint, bundle.PublicValues.StartBlock,
		bundle.PublicValues.EndBlock, bundle.PublicValues.LocalExitRoot)

	return &ProofResult{
		Fingerprint:  entry.Fingerprint,
		Status:       types.StatusCompleted,
		Proof:        bundle.Proof,
		PublicValues: bundle.PublicValues,
	}, nil
}

// reject persists a final negative verdict and returns the causing error
func (s *ProofService) reject(ctx context.Context,
	entry *types.AggchainProofEntry, cause error) error {
	entry.Status = types.StatusRejected
	entry.ErrorCode = aggchainproof.Code(cause)
	entry.ErrorMessage = cause.Error()
	if err := s.storage.UpdateProofEntry(ctx, *entry); err != nil {
		return err
	}

	return cause
}

// abandon removes the entry so the same request can be retried, and
// returns the causing error
func (s *ProofService) abandon(ctx context.Context,
	entry *types.AggchainProofEntry, cause error) error {
	if err := s.storage.DeleteProofEntry(ctx, entry.Fingerprint); err != nil {
		s.logger.Errorf("failed to drop abandoned proof entry %s: %v", entry.Fingerprint, err)
	}

	return cause
}

func codeToErr(code string) error {
	switch code {
	case aggchainproof.CodeMalformedInput:
		return aggchainproof.ErrMalformedInput
	case aggchainproof.CodeInclusionVerificationFailed:
		return aggchainproof.ErrInclusionVerificationFailed
	case aggchainproof.CodeRoutingMismatch:
		return aggchainproof.ErrRoutingMismatch
	case aggchainproof.CodeProvingFailure:
		return aggchainproof.ErrProvingFailure
	case aggchainproof.CodeCancelled:
		return aggchainproof.ErrCancelled
	default:
		return errors.New("unknown rejection")
	}
}
