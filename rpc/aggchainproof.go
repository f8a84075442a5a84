package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xPolygon/cdk-rpc/rpc"
	"github.com/agglayer/aggkit-prover/aggchainproof"
	"github.com/agglayer/aggkit-prover/db"
	"github.com/agglayer/aggkit-prover/log"
	"github.com/agglayer/aggkit-prover/proofservice"
	prooftypes "github.com/agglayer/aggkit-prover/proofservice/types"
	"github.com/agglayer/aggkit-prover/rpc/types"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	// AGGKIT is the namespace of the aggkit prover service
	AGGKIT    = "aggkit"
	meterName = "github.com/agglayer/aggkit-prover/rpc"

	zeroHex = "0x0"
)

// ProofService is the part of the proof service the endpoints rely on
type ProofService interface {
	NetworkID() uint32
	GenerateProof(ctx context.Context, witness *aggchainproof.Witness) (*proofservice.ProofResult, error)
	GetProofStatus(fingerprint common.Hash) (prooftypes.AggchainProofEntry, error)
}

// AggchainProofEndpoints contains implementations for the "aggkit" RPC endpoints
type AggchainProofEndpoints struct {
	logger      *log.Logger
	meter       metric.Meter
	readTimeout time.Duration
	service     ProofService
}

// NewAggchainProofEndpoints returns AggchainProofEndpoints
func NewAggchainProofEndpoints(
	logger *log.Logger,
	readTimeout time.Duration,
	service ProofService,
) *AggchainProofEndpoints {
	meter := otel.Meter(meterName)
	return &AggchainProofEndpoints{
		logger:      logger,
		meter:       meter,
		readTimeout: readTimeout,
		service:     service,
	}
}

// GenerateAggchainProof decodes the request, runs it through the proof
// service and returns the proof with its public values. The call blocks for
// the full run; proving time is bounded by the service, not by the RPC read
// timeout.
func (a *AggchainProofEndpoints) GenerateAggchainProof(
	request types.GenerateAggchainProofRequest,
) (interface{}, rpc.Error) {
	ctx := context.Background()

	c, merr := a.meter.Int64Counter("generate_aggchain_proof")
	if merr != nil {
		a.logger.Warnf("failed to create generate_aggchain_proof counter: %s", merr)
	}
	c.Add(ctx, 1)

	witness, err := request.ToWitness()
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode,
			fmt.Sprintf("%s: invalid request: %s", aggchainproof.Code(err), err))
	}

	result, err := a.service.GenerateProof(ctx, witness)
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode,
			fmt.Sprintf("%s: %s", aggchainproof.Code(err), err))
	}

	return types.GenerateAggchainProofResponse{
		Proof:           result.Proof,
		StartBlock:      result.PublicValues.StartBlock,
		EndBlock:        result.PublicValues.EndBlock,
		LocalExitRoot:   result.PublicValues.LocalExitRoot,
		CustomChainData: result.PublicValues.CustomChainData,
		Fingerprint:     result.Fingerprint,
	}, nil
}

// GetAggchainProofStatus returns the stored verdict of a previously
// submitted request
func (a *AggchainProofEndpoints) GetAggchainProofStatus(fingerprint common.Hash) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.readTimeout)
	defer cancel()

	c, merr := a.meter.Int64Counter("get_aggchain_proof_status")
	if merr != nil {
		a.logger.Warnf("failed to create get_aggchain_proof_status counter: %s", merr)
	}
	c.Add(ctx, 1)

	entry, err := a.service.GetProofStatus(fingerprint)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode,
				fmt.Sprintf("no proof request with fingerprint %s", fingerprint))
		}
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode,
			fmt.Sprintf("failed to get proof status, error: %s", err))
	}

	return types.AggchainProofStatusResponse{
		Fingerprint:  entry.Fingerprint,
		Status:       entry.Status.String(),
		StartBlock:   entry.StartBlock,
		EndBlock:     entry.EndBlock,
		ErrorCode:    entry.ErrorCode,
		ErrorMessage: entry.ErrorMessage,
	}, nil
}
