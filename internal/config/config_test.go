package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEDGER_MINTS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "devnet", cfg.Ledger.Cluster)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoadMintsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mints.yaml")
	data := []byte("mints:\n  devnet: DevMint111\n  testnet: TestMint111\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("LEDGER_MINTS_FILE", path)
	t.Setenv("LEDGER_CLUSTER", "testnet")

	cfg, err := Load()
	require.NoError(t, err)

	mint, ok := cfg.Ledger.Mint("testnet")
	assert.True(t, ok)
	assert.Equal(t, "TestMint111", mint)

	_, ok = cfg.Ledger.Mint("mainnet")
	assert.False(t, ok)
}

func TestMintEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mints.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mints:\n  devnet: FileMint111\n"), 0o600))

	t.Setenv("LEDGER_MINTS_FILE", path)
	t.Setenv("LEDGER_MINT_DEVNET", "EnvMint111")

	cfg, err := Load()
	require.NoError(t, err)

	mint, ok := cfg.Ledger.Mint("devnet")
	assert.True(t, ok)
	assert.Equal(t, "EnvMint111", mint)
}

func TestEmptyMintIsNotConfigured(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mints.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mints:\n  mainnet: \"\"\n"), 0o600))
	t.Setenv("LEDGER_MINTS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	_, ok := cfg.Ledger.Mint("mainnet")
	assert.False(t, ok)
}
