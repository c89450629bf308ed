package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, "loans-local", cfg.NetworkName)
	require.Empty(t, cfg.Owner)
	require.FileExists(t, path)
}

func TestLoadExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
RPCAddress = ":9090"
DataDir = "/tmp/loans"
Owner = "0x1111111111111111111111111111111111111111"
LoanExpirationPeriod = 5184000

[[Assets]]
Contract = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
Symbol = "DAI"
MinLoanAmount = "100000000000000000000"
MaxLoanAmount = "10000000000000000000000"
BaseRatePerYear = "55000000000000000"
MultiplierPerYear = "1000000000000000000"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.RPCAddress)
	require.EqualValues(t, 5_184_000, cfg.LoanExpirationPeriod)
	require.Len(t, cfg.Assets, 1)
	require.Equal(t, "DAI", cfg.Assets[0].Symbol)

	owner := cfg.OwnerAddress()
	require.Equal(t, byte(0x11), owner[0])
	require.Equal(t, byte(0x11), owner[19])
}

func TestLoadRejectsMissingOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`RPCAddress = ":8080"`), 0o644))
	_, err := Load(path)
	require.ErrorContains(t, err, "Owner")
}

func TestLoadRejectsBadAddresses(t *testing.T) {
	dir := t.TempDir()

	badOwner := filepath.Join(dir, "owner.toml")
	require.NoError(t, os.WriteFile(badOwner, []byte(`Owner = "not-an-address"`), 0o644))
	_, err := Load(badOwner)
	require.ErrorContains(t, err, "invalid Owner address")

	badAsset := filepath.Join(dir, "asset.toml")
	body := `
Owner = "0x1111111111111111111111111111111111111111"

[[Assets]]
Contract = "bogus"
`
	require.NoError(t, os.WriteFile(badAsset, []byte(body), 0o644))
	_, err = Load(badAsset)
	require.ErrorContains(t, err, "invalid asset contract")
}

func TestCustodyFallback(t *testing.T) {
	cfg := &Config{}
	def := cfg.Custody()
	require.NotEqual(t, [20]byte{}, def)

	cfg.CustodyAddress = "0x2222222222222222222222222222222222222222"
	custom := cfg.Custody()
	require.Equal(t, byte(0x22), custom[0])
}
