package aggchainproof

import (
	"fmt"

	cdkcommon "github.com/agglayer/aggkit-prover/common"
	"github.com/ethereum/go-ethereum/common"
)

const (
	aggchainSelectorSize  = 2
	customChainDataSize   = aggchainSelectorSize + common.HashLength + 8
	publicValuesFixedSize = 8 + 8 + common.HashLength
)

// PublicValues is the fixed output set the proof program commits to. A
// verifier checks the proof against exactly these values.
type PublicValues struct {
	StartBlock    uint64
	EndBlock      uint64
	LocalExitRoot common.Hash
	// CustomChainData is the chain specific pass-through: two bytes of
	// aggchain selector, 32 bytes of output root, 8 bytes of end block
	CustomChainData []byte
}

// Marshal returns the canonical byte encoding of the public values
func (p *PublicValues) Marshal() []byte {
	out := make([]byte, 0, publicValuesFixedSize+len(p.CustomChainData))
	out = append(out, cdkcommon.Uint64ToBytes(p.StartBlock)...)
	out = append(out, cdkcommon.Uint64ToBytes(p.EndBlock)...)
	out = append(out, p.LocalExitRoot.Bytes()...)
	out = append(out, p.CustomChainData...)
	return out
}

// UnmarshalPublicValues parses the canonical encoding produced by Marshal
func UnmarshalPublicValues(data []byte) (*PublicValues, error) {
	if len(data) < publicValuesFixedSize {
		return nil, fmt.Errorf("public values too short: %d bytes", len(data))
	}
	return &PublicValues{
		StartBlock:      cdkcommon.BytesToUint64(data[:8]),
		EndBlock:        cdkcommon.BytesToUint64(data[8:16]),
		LocalExitRoot:   common.BytesToHash(data[16 : 16+common.HashLength]),
		CustomChainData: append([]byte{}, data[publicValuesFixedSize:]...),
	}, nil
}

// Execute is the proof program: it re-runs the full validation over the
// committed witness and derives the public values. It trusts nothing done
// outside of it; the guarantee of the final proof is that this computation
// accepted the witness. Pure and deterministic, identical witnesses always
// produce identical public values.
func (w *Witness) Execute() (*PublicValues, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	localExitRoot, err := AggregateLocalExitRoot(w.ImportedBridgeExits)
	if err != nil {
		return nil, err
	}
	return &PublicValues{
		StartBlock:      w.StartBlock,
		EndBlock:        w.EndBlock,
		LocalExitRoot:   localExitRoot,
		CustomChainData: w.customChainData(),
	}, nil
}

func (w *Witness) customChainData() []byte {
	data := make([]byte, 0, customChainDataSize)
	data = append(data, w.AggchainVKeySelector[:]...)
	data = append(data, w.OutputRoot.Bytes()...)
	data = append(data, cdkcommon.Uint64ToBytes(w.EndBlock)...)
	return data
}
