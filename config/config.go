package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"

	"fuji-cli/pkg/logging"
)

// Config holds the application configuration
type Config struct {
	APIURL        string            `mapstructure:"api_url"`
	PrivateKey    string            `mapstructure:"private_key"`
	SlippageBps   uint32            `mapstructure:"slippage_bps"`
	HistoryPath   string            `mapstructure:"history_path"`
	PollInterval  time.Duration     `mapstructure:"poll_interval"`
	Confirmations uint64            `mapstructure:"confirmations"`
	MaxRetries    int               `mapstructure:"max_retries"`
	Networks      []Network         `mapstructure:"networks"`
	Logging       logging.LogConfig `mapstructure:"logging"`
}

// Network is the RPC configuration of one EVM chain
type Network struct {
	Name     string  `mapstructure:"name"`
	ChainID  int64   `mapstructure:"chain_id"`
	RPCURL   string  `mapstructure:"rpc_url"`
	GasLimit *uint64 `mapstructure:"gas_limit"`
	GasPrice *int64  `mapstructure:"gas_price"`
}

var globalConfig *Config

// SetDefaults registers default values on a viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "https://api.fuji.finance")
	v.SetDefault("slippage_bps", 30)
	v.SetDefault("history_path", defaultHistoryPath())
	v.SetDefault("poll_interval", 30*time.Second)
	v.SetDefault("confirmations", 1)
	v.SetDefault("max_retries", 3)
	v.SetDefault("logging.level", logging.DefaultLogConfig.Level)
	v.SetDefault("logging.format", logging.DefaultLogConfig.Format)
	v.SetDefault("logging.output", logging.DefaultLogConfig.Output)
	v.SetDefault("networks", []map[string]any{
		{"name": "ethereum", "chain_id": 1, "rpc_url": "https://eth.llamarpc.com"},
		{"name": "optimism", "chain_id": 10, "rpc_url": "https://mainnet.optimism.io"},
		{"name": "polygon", "chain_id": 137, "rpc_url": "https://polygon-rpc.com"},
		{"name": "arbitrum", "chain_id": 42161, "rpc_url": "https://arb1.arbitrum.io/rpc"},
	})
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fuji.db"
	}
	return filepath.Join(home, ".fuji", "fuji.db")
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".fuji")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	SetDefaults(viper.GetViper())

	// Read from environment variables
	viper.SetEnvPrefix("FUJI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("private_key")

	// Read config file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := Decode(viper.GetViper())
	if err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Decode unmarshals and validates the settings held by v
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings every command relies on
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is not set. Please set FUJI_API_URL or add it to .fuji.yaml")
	}
	if c.SlippageBps > 10_000 {
		return fmt.Errorf("slippage_bps must be at most 10000, got %d", c.SlippageBps)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	seen := make(map[int64]bool)
	for _, n := range c.Networks {
		if n.ChainID == 0 {
			return fmt.Errorf("network %s has no chain_id", n.Name)
		}
		if n.RPCURL == "" {
			return fmt.Errorf("RPC URL not configured for network %s", n.Name)
		}
		if seen[n.ChainID] {
			return fmt.Errorf("chain %d configured twice", n.ChainID)
		}
		seen[n.ChainID] = true
	}
	return nil
}

// RequireKey checks that a usable private key is configured. Only commands
// that sign need it.
func (c *Config) RequireKey() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("private key not found. Please set FUJI_PRIVATE_KEY or add private_key to .fuji.yaml")
	}
	if _, err := crypto.HexToECDSA(strings.TrimPrefix(c.PrivateKey, "0x")); err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	return nil
}

// Network looks up a configured chain
func (c *Config) Network(chainID int64) (Network, bool) {
	for _, n := range c.Networks {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return Network{}, false
}

// NetworkByName looks up a configured chain by name or numeric id
func (c *Config) NetworkByName(name string) (Network, bool) {
	for _, n := range c.Networks {
		if strings.EqualFold(n.Name, name) || fmt.Sprint(n.ChainID) == name {
			return n, true
		}
	}
	return Network{}, false
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
