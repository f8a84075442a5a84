package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// ProofStatus is the lifecycle state of a proof request
type ProofStatus int

const (
	// StatusReceived means the request is recorded but no work has started
	StatusReceived ProofStatus = iota
	// StatusPreValidating means the fast validation pass is running
	StatusPreValidating
	// StatusProving means the proof computation is in flight
	StatusProving
	// StatusCompleted means the proof was produced and verified
	StatusCompleted
	// StatusRejected means validation or proving failed for good; the
	// stored error code says why
	StatusRejected
)

func (s ProofStatus) String() string {
	switch s {
	case StatusReceived:
		return "Received"
	case StatusPreValidating:
		return "PreValidating"
	case StatusProving:
		return "Proving"
	case StatusCompleted:
		return "Completed"
	case StatusRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// IsFinal reports whether the status can never change again
func (s ProofStatus) IsFinal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// AggchainProofEntry is one proof request as persisted, keyed by the
// witness fingerprint
type AggchainProofEntry struct {
	Fingerprint  common.Hash `meddler:"fingerprint,hash"`
	NetworkID    uint32      `meddler:"network_id"`
	StartBlock   uint64      `meddler:"start_block"`
	EndBlock     uint64      `meddler:"end_block"`
	Status       ProofStatus `meddler:"status"`
	Proof        []byte      `meddler:"proof"`
	PublicValues []byte      `meddler:"public_values"`
	ErrorCode    string      `meddler:"error_code"`
	ErrorMessage string      `meddler:"error_message"`
	CreatedAt    int64       `meddler:"created_at"`
	UpdatedAt    int64       `meddler:"updated_at"`
}
