package aggchainproof

import "errors"

// Validation and proving failures fall into a fixed taxonomy. Every error
// returned by this package wraps exactly one of these sentinels, so callers
// can classify with errors.Is and map to a wire code.
var (
	// ErrMalformedInput covers wrong proof lengths, missing GER references,
	// duplicate global indexes and structurally invalid leaf encodings.
	// Non-retryable, the caller must fix the request.
	ErrMalformedInput = errors.New("malformed input")
	// ErrInclusionVerificationFailed means a merkle proof did not
	// reconstruct the expected root: stale data or an attempted forgery.
	ErrInclusionVerificationFailed = errors.New("inclusion verification failed")
	// ErrRoutingMismatch means an exit's destination network is not the
	// network this prover serves.
	ErrRoutingMismatch = errors.New("routing mismatch")
	// ErrProvingFailure means the proving backend failed to execute.
	// Retryable by the caller with backoff.
	ErrProvingFailure = errors.New("proving failure")
	// ErrCancelled means the request was cancelled before completion.
	ErrCancelled = errors.New("cancelled")
)

const (
	CodeMalformedInput              = "MalformedInput"
	CodeInclusionVerificationFailed = "InclusionVerificationFailed"
	CodeRoutingMismatch             = "RoutingMismatch"
	CodeProvingFailure              = "ProvingFailure"
	CodeCancelled                   = "Cancelled"
	CodeUnknown                     = "Unknown"
)

// Code returns the taxonomy bucket of err
func Code(err error) string {
	switch {
	case errors.Is(err, ErrMalformedInput):
		return CodeMalformedInput
	case errors.Is(err, ErrInclusionVerificationFailed):
		return CodeInclusionVerificationFailed
	case errors.Is(err, ErrRoutingMismatch):
		return CodeRoutingMismatch
	case errors.Is(err, ErrProvingFailure):
		return CodeProvingFailure
	case errors.Is(err, ErrCancelled):
		return CodeCancelled
	default:
		return CodeUnknown
	}
}

// IsRetryable reports whether the caller may retry the same request. Only
// backend faults are retryable, validation verdicts are final.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProvingFailure)
}
