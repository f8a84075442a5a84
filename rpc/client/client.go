package client

import (
	"encoding/json"
	"fmt"

	"github.com/0xPolygon/cdk-rpc/rpc"
	"github.com/agglayer/aggkit-prover/rpc/types"
	"github.com/ethereum/go-ethereum/common"
)

// ClientInterface is the interface that defines the implementation of all the endpoints
type ClientInterface interface {
	GenerateAggchainProof(request types.GenerateAggchainProofRequest) (*types.GenerateAggchainProofResponse, error)
	GetAggchainProofStatus(fingerprint common.Hash) (*types.AggchainProofStatusResponse, error)
}

// ClientFactoryInterface interface for the client factory
type ClientFactoryInterface interface {
	NewClient(url string) ClientInterface
}

// ClientFactory is the implementation of the aggkit prover client factory
type ClientFactory struct{}

// NewClient returns an implementation of the aggkit prover client
func (f *ClientFactory) NewClient(url string) ClientInterface {
	return NewClient(url)
}

// Client wraps all the available endpoints of the aggkit prover server
type Client struct {
	url string
}

// NewClient returns a client ready to be used
func NewClient(url string) *Client {
	return &Client{
		url: url,
	}
}

// GenerateAggchainProof submits a proof request and blocks until the proof
// is produced or the request is rejected
func (c *Client) GenerateAggchainProof(
	request types.GenerateAggchainProofRequest,
) (*types.GenerateAggchainProofResponse, error) {
	response, err := rpc.JSONRPCCall(c.url, "aggkit_generateAggchainProof", request)
	if err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}
	var result types.GenerateAggchainProofResponse
	return &result, json.Unmarshal(response.Result, &result)
}

// GetAggchainProofStatus returns the stored verdict of a previously
// submitted request
func (c *Client) GetAggchainProofStatus(fingerprint common.Hash) (*types.AggchainProofStatusResponse, error) {
	response, err := rpc.JSONRPCCall(c.url, "aggkit_getAggchainProofStatus", fingerprint)
	if err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}
	var result types.AggchainProofStatusResponse
	return &result, json.Unmarshal(response.Result, &result)
}
