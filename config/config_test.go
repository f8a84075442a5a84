package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile(nil, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, uint32(1), cfg.ProofService.NetworkID)
	require.Equal(t, uint64(4), cfg.ProofService.MaxConcurrentProofs)
	require.Equal(t, time.Hour, cfg.ProofService.ProvingTimeout.Duration)
	require.Equal(t, "/tmp/aggkit-prover/aggchainproofs.sqlite", cfg.ProofService.DBPath)
	require.Equal(t, 5576, cfg.RPC.Port)
	require.Equal(t, "0.0.0.0:5577", cfg.Health.Address)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	custom := `
PathRWData = "/data/prover"

[ProofService]
MaxConcurrentProofs = 16

[Log]
Level = "warn"
`
	cfg, err := LoadFile([]FileData{{Name: "custom", Content: custom}}, "")
	require.NoError(t, err)

	require.Equal(t, uint64(16), cfg.ProofService.MaxConcurrentProofs)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, "/data/prover/aggchainproofs.sqlite", cfg.ProofService.DBPath)
}

func TestLoadFileSavesRenderedConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFile(nil, dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	saved, err := os.ReadFile(filepath.Join(dir, SaveConfigFileName))
	require.NoError(t, err)
	require.Contains(t, string(saved), "[ProofService]")
}
