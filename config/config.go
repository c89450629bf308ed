package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Asset seeds one asset type at startup. Amounts and rates are decimal
// strings so config files stay precise beyond float range.
type Asset struct {
	Contract          string `toml:"Contract"`
	Symbol            string `toml:"Symbol"`
	MinLoanAmount     string `toml:"MinLoanAmount"`
	MaxLoanAmount     string `toml:"MaxLoanAmount"`
	BaseRatePerYear   string `toml:"BaseRatePerYear"`
	MultiplierPerYear string `toml:"MultiplierPerYear"`
}

type Config struct {
	RPCAddress             string  `toml:"RPCAddress"`
	DataDir                string  `toml:"DataDir"`
	Owner                  string  `toml:"Owner"`
	CustodyAddress         string  `toml:"CustodyAddress"`
	NetworkName            string  `toml:"NetworkName"`
	LoanExpirationPeriod   uint64  `toml:"LoanExpirationPeriod,omitempty"`
	AcceptExpirationPeriod uint64  `toml:"AcceptExpirationPeriod,omitempty"`
	Assets                 []Asset `toml:"Assets"`
}

// Load loads the configuration from the given path. A missing file is
// replaced with a persisted default so a fresh node starts without manual
// setup.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Owner) == "" {
		return nil, fmt.Errorf("config file %s is missing the Owner address", path)
	}
	if !common.IsHexAddress(cfg.Owner) {
		return nil, fmt.Errorf("config file %s has invalid Owner address %q", path, cfg.Owner)
	}
	if cfg.CustodyAddress != "" && !common.IsHexAddress(cfg.CustodyAddress) {
		return nil, fmt.Errorf("config file %s has invalid CustodyAddress %q", path, cfg.CustodyAddress)
	}
	for i, asset := range cfg.Assets {
		if !common.IsHexAddress(asset.Contract) {
			return nil, fmt.Errorf("config file %s has invalid asset contract %q at index %d", path, asset.Contract, i)
		}
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "loans-local"
	}
	if cfg.Assets == nil {
		cfg.Assets = []Asset{}
	}

	return cfg, nil
}

// ParseAddress parses a 0x-prefixed hex account address.
func ParseAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(trimmed), nil
}

// OwnerAddress returns the parsed owner address.
func (c *Config) OwnerAddress() [20]byte {
	return common.HexToAddress(c.Owner)
}

// Custody returns the parsed custody address, falling back to a fixed module
// address when unset.
func (c *Config) Custody() [20]byte {
	if strings.TrimSpace(c.CustodyAddress) == "" {
		return common.HexToAddress("0x000000000000000000000000000000004c6f616e")
	}
	return common.HexToAddress(c.CustodyAddress)
}

// createDefault creates and saves a default configuration file. The owner is
// left blank on purpose: a node refuses to start until one is set.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  ":8080",
		DataDir:     "./loans-data",
		NetworkName: "loans-local",
		Assets:      []Asset{},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
