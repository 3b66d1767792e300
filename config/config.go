package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"yieldvault/crypto"
)

// Mode selects how the token and venue collaborators are wired.
const (
	ModeSim = "sim"
	ModeEVM = "evm"
)

type Config struct {
	RPCAddress           string `toml:"RPCAddress"`
	MetricsAddress       string `toml:"MetricsAddress"`
	DataDir              string `toml:"DataDir"`
	Mode                 string `toml:"Mode"`
	OperatorKeystorePath string `toml:"OperatorKeystorePath"`

	// EVM wiring, ignored in sim mode.
	ChainRPCURL  string `toml:"ChainRPCURL"`
	AssetAddress string `toml:"AssetAddress"`
	VenueAddress string `toml:"VenueAddress"`

	// Engine parameters applied at first start.
	WithdrawalDelaySeconds uint64 `toml:"WithdrawalDelaySeconds"`
	HarvestDelaySeconds    uint64 `toml:"HarvestDelaySeconds"`
	// FixedRatePerSecond is the ray-scaled (1e27) per-second growth target
	// guaranteed to depositors, as a decimal string.
	FixedRatePerSecond string `toml:"FixedRatePerSecond"`
}

// Load loads the configuration from the given path, creating a commented
// default when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = "127.0.0.1:9465"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./vaultdata"
	}
	if strings.TrimSpace(cfg.Mode) == "" {
		cfg.Mode = ModeSim
	}
	if strings.TrimSpace(cfg.FixedRatePerSecond) == "" {
		cfg.FixedRatePerSecond = "0"
	}
	if cfg.HarvestDelaySeconds == 0 {
		cfg.HarvestDelaySeconds = 86_400
	}
}

// Validate rejects configurations the daemon could not start with.
func Validate(cfg *Config) error {
	switch cfg.Mode {
	case ModeSim:
	case ModeEVM:
		if strings.TrimSpace(cfg.ChainRPCURL) == "" {
			return fmt.Errorf("config: ChainRPCURL required in evm mode")
		}
		if _, err := crypto.DecodeAddress(cfg.AssetAddress); err != nil {
			return fmt.Errorf("config: invalid AssetAddress: %w", err)
		}
		if _, err := crypto.DecodeAddress(cfg.VenueAddress); err != nil {
			return fmt.Errorf("config: invalid VenueAddress: %w", err)
		}
	default:
		return fmt.Errorf("config: unknown mode %q", cfg.Mode)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.OperatorKeystorePath = defaultKeystorePath(path)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "operator.keystore")
}

func persist(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
