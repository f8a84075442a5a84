package proofservice

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/agglayer/aggkit-prover/config/types"
)

// Config is the proof service configuration
type Config struct {
	// NetworkID is the rollup network the service generates proofs for
	NetworkID uint32 `mapstructure:"NetworkID"`
	// DBPath is the file path of the sqlite db storing proof requests
	DBPath string `mapstructure:"DBPath"`
	// AggchainVKeySelector is the hex encoded 2 byte selector of the
	// aggchain verification key, e.g. "0x0001"
	AggchainVKeySelector string `mapstructure:"AggchainVKeySelector"`
	// MaxConcurrentProofs bounds the number of proving runs in flight
	MaxConcurrentProofs uint64 `mapstructure:"MaxConcurrentProofs"`
	// ProvingTimeout bounds the duration of a single proving run
	ProvingTimeout types.Duration `mapstructure:"ProvingTimeout"`
}

// VKeySelector parses the configured selector into its wire form
func (c Config) VKeySelector() ([2]byte, error) {
	var selector [2]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(c.AggchainVKeySelector, "0x"))
	if err != nil {
		return selector, fmt.Errorf("invalid aggchain vkey selector %q: %w", c.AggchainVKeySelector, err)
	}
	if len(raw) != len(selector) {
		return selector, fmt.Errorf("aggchain vkey selector %q is %d bytes, expected %d",
			c.AggchainVKeySelector, len(raw), len(selector))
	}
	copy(selector[:], raw)

	return selector, nil
}
