package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"crosschainloans/config"
	"crosschainloans/core/events"
	"crosschainloans/core/state"
	"crosschainloans/native/loans"
	"crosschainloans/native/token"
	"crosschainloans/observability/logging"
	"crosschainloans/rpc"
	"crosschainloans/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LOANS_ENV"))
	logger := logging.Setup("loansd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if strings.TrimSpace(cfg.Owner) == "" {
		logger.Error("Config is missing the Owner address; edit the config file and restart", slog.String("config", *configFile))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	log := events.NewLog()

	engine := loans.NewEngine(cfg.Custody())
	engine.SetState(manager)
	engine.SetEmitter(log)

	owner := cfg.OwnerAddress()
	if err := engine.Bootstrap(owner); err != nil {
		panic(fmt.Sprintf("Failed to bootstrap loans state: %v", err))
	}
	if cfg.LoanExpirationPeriod != 0 {
		if err := engine.ModifyLoanParameters(owner, loans.ParamLoanExpirationPeriod, cfg.LoanExpirationPeriod); err != nil {
			panic(fmt.Sprintf("Failed to apply loan expiration period: %v", err))
		}
	}
	if cfg.AcceptExpirationPeriod != 0 {
		if err := engine.ModifyLoanParameters(owner, loans.ParamAcceptExpirationPeriod, cfg.AcceptExpirationPeriod); err != nil {
			panic(fmt.Sprintf("Failed to apply accept expiration period: %v", err))
		}
	}

	if err := seedAssets(cfg, manager, engine, owner, logger); err != nil {
		panic(fmt.Sprintf("Failed to seed assets: %v", err))
	}

	logger.Info("Loans node ready",
		slog.String("rpc", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName),
		slog.Int("assets", len(cfg.Assets)),
	)

	server := rpc.NewServer(engine, log)
	if err := server.Start(cfg.RPCAddress); err != nil {
		panic(fmt.Sprintf("RPC server stopped: %v", err))
	}
}

// seedAssets registers the configured asset ledgers and ensures each asset
// type exists. Registration runs on every start; the asset-type write is
// skipped when the registry already has the contract so restarts do not
// clobber parameter changes made over RPC.
func seedAssets(cfg *config.Config, manager *state.Manager, engine *loans.Engine, owner [20]byte, logger *slog.Logger) error {
	for _, asset := range cfg.Assets {
		contract, err := config.ParseAddress(asset.Contract)
		if err != nil {
			return err
		}
		symbol := strings.TrimSpace(asset.Symbol)
		if symbol == "" {
			symbol = asset.Contract
		}
		manager.RegisterToken(contract, token.NewToken(symbol))

		if _, err := engine.GetAssetType(contract); err == nil {
			continue
		}
		maxAmount, err := parseConfigAmount(asset.MaxLoanAmount)
		if err != nil {
			return fmt.Errorf("asset %s: %w", asset.Contract, err)
		}
		minAmount, err := parseConfigAmount(asset.MinLoanAmount)
		if err != nil {
			return fmt.Errorf("asset %s: %w", asset.Contract, err)
		}
		base, err := parseConfigAmount(asset.BaseRatePerYear)
		if err != nil {
			return fmt.Errorf("asset %s: %w", asset.Contract, err)
		}
		mult, err := parseConfigAmount(asset.MultiplierPerYear)
		if err != nil {
			return fmt.Errorf("asset %s: %w", asset.Contract, err)
		}
		if _, err := engine.AddAssetType(owner, contract, maxAmount, minAmount, base, mult); err != nil {
			return fmt.Errorf("asset %s: %w", asset.Contract, err)
		}
		logger.Info("Registered asset type", slog.String("contract", asset.Contract), slog.String("symbol", symbol))
	}
	return nil
}

func parseConfigAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}
