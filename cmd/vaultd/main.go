package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yieldvault/adapters/evm"
	"yieldvault/adapters/sim"
	"yieldvault/config"
	"yieldvault/core/state"
	"yieldvault/crypto"
	"yieldvault/native/vault"
	"yieldvault/observability/logging"
	"yieldvault/rpc"
	"yieldvault/storage"
)

const keystorePassphraseEnv = "VAULT_KEYSTORE_PASSPHRASE"

// simFaucetAmount seeds the operator with a working balance in sim mode so a
// local instance is usable straight away.
var simFaucetAmount = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML config file")
	env := flag.String("env", "dev", "deployment environment label for logs")
	flag.Parse()

	logger := logging.Setup("vaultd", *env)

	if err := run(*configPath, logger); err != nil {
		logger.Error("vaultd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	operatorKey, err := loadOrCreateOperatorKey(cfg, logger)
	if err != nil {
		return fmt.Errorf("operator key: %w", err)
	}
	operatorAddr := operatorKey.PubKey().Address()
	logger.Info("operator identity loaded", "address", operatorAddr.String())

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "vault"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	manager := state.NewManager(db)

	var (
		token      vault.Token
		venue      vault.Venue
		engineAddr crypto.Address
		venueAddr  crypto.Address
	)
	switch cfg.Mode {
	case config.ModeSim:
		// The engine's module account doubles as the protocol-fee identity,
		// so it must be stable across restarts and distinct from the
		// operator's faucet balance.
		engineAddr = crypto.ModuleAddress("vault")
		venueAddr = crypto.ModuleAddress("vault/sim-venue")
		simToken := sim.NewToken()
		simToken.Mint(operatorAddr, simFaucetAmount)
		simToken.ApproveFor(operatorAddr, engineAddr, simFaucetAmount)
		token = simToken.Ledger(engineAddr)
		venue = sim.NewVenue(simToken, venueAddr, engineAddr, big.NewInt(0))
		logger.Info("sim collaborators wired", "venue", venueAddr.String())
	case config.ModeEVM:
		// On chain the operator account holds the float and signs every
		// engine transaction, so it is the engine identity.
		engineAddr = operatorAddr
		assetAddr, aerr := crypto.DecodeAddress(cfg.AssetAddress)
		if aerr != nil {
			return fmt.Errorf("asset address: %w", aerr)
		}
		venueAddr, err = crypto.DecodeAddress(cfg.VenueAddress)
		if err != nil {
			return fmt.Errorf("venue address: %w", err)
		}
		dialCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		client, derr := evm.Dial(dialCtx, cfg.ChainRPCURL, operatorKey)
		cancel()
		if derr != nil {
			return fmt.Errorf("dial chain: %w", derr)
		}
		defer client.Close()
		token, err = evm.NewERC20(client, assetAddr)
		if err != nil {
			return fmt.Errorf("erc20 adapter: %w", err)
		}
		venue, err = evm.NewVenue(client, venueAddr)
		if err != nil {
			return fmt.Errorf("venue adapter: %w", err)
		}
		logger.Info("evm collaborators wired", "chain", cfg.ChainRPCURL, "asset", cfg.AssetAddress, "venue", cfg.VenueAddress)
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	engine := vault.NewEngine(engineAddr, venueAddr)
	engine.SetState(manager)
	engine.SetCollaborators(token, venue)
	engine.SetAuthorizer(vault.NewStaticAuthorizer(operatorAddr))
	engine.SetEmitter(manager)

	if err := applyEngineParams(engine, cfg, operatorAddr, logger); err != nil {
		return fmt.Errorf("apply engine params: %w", err)
	}

	server := rpc.NewServer(engine, manager, logger)

	rpcSrv := &http.Server{Addr: cfg.RPCAddress, Handler: server.Router()}
	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("starting JSON-RPC server", "addr", cfg.RPCAddress)
		if err := rpcSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("rpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("starting metrics server", "addr", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rpcSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", "error", err)
	}
	return nil
}

// loadOrCreateOperatorKey opens the configured keystore, generating and
// persisting a fresh operator key when none exists yet.
func loadOrCreateOperatorKey(cfg *config.Config, logger *slog.Logger) (*crypto.PrivateKey, error) {
	passphrase := os.Getenv(keystorePassphraseEnv)
	path := cfg.OperatorKeystorePath
	if path == "" {
		path = "./operator.keystore"
	}
	if _, err := os.Stat(path); err == nil {
		return crypto.LoadFromKeystore(path, passphrase)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	if err := crypto.SaveToKeystore(path, key, passphrase); err != nil {
		return nil, err
	}
	logger.Info("generated new operator keystore", "path", path)
	return key, nil
}

// applyEngineParams pushes the configured delays and fixed rate into a fresh
// engine. A vault that already has a harvest delay keeps its stored
// parameters; operators change them over RPC afterwards.
func applyEngineParams(engine *vault.Engine, cfg *config.Config, operator crypto.Address, logger *slog.Logger) error {
	st, err := engine.State()
	if err != nil {
		return err
	}
	if st.HarvestDelaySeconds != 0 {
		return nil
	}

	if err := engine.SetHarvestDelay(operator, cfg.HarvestDelaySeconds); err != nil {
		return err
	}
	if cfg.WithdrawalDelaySeconds != 0 {
		if err := engine.SetWithdrawalDelay(operator, cfg.WithdrawalDelaySeconds); err != nil {
			return err
		}
	}
	rate, ok := new(big.Int).SetString(cfg.FixedRatePerSecond, 10)
	if !ok {
		return fmt.Errorf("invalid FixedRatePerSecond %q", cfg.FixedRatePerSecond)
	}
	if rate.Sign() > 0 {
		if err := engine.SetFixedRate(operator, rate); err != nil {
			return err
		}
	}
	logger.Info("engine parameters applied",
		"withdrawalDelaySeconds", cfg.WithdrawalDelaySeconds,
		"harvestDelaySeconds", cfg.HarvestDelaySeconds,
		"fixedRatePerSecond", cfg.FixedRatePerSecond)
	return nil
}
