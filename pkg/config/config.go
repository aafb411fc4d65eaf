package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig           `mapstructure:"server"`
	Database    DatabaseConfig         `mapstructure:"database"`
	Chains      map[string]ChainConfig `mapstructure:"chains"`
	Relay       RelayConfig            `mapstructure:"relay"`
	Asset       AssetConfig            `mapstructure:"asset"`
	Attestation AttestationConfig      `mapstructure:"attestation"`
	Monitoring  MonitoringConfig       `mapstructure:"monitoring"`
	Logging     LoggingConfig          `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ChainConfig contains per-chain client settings. Each configured chain gets
// its own RPC endpoint, token contract and bridge contract addresses.
type ChainConfig struct {
	RPCURL             string        `mapstructure:"rpc_url"`
	ChainID            int64         `mapstructure:"chain_id"`
	TokenContract      string        `mapstructure:"token_contract"`
	TokenMessenger     string        `mapstructure:"token_messenger"`
	MessageTransmitter string        `mapstructure:"message_transmitter"`
	CCTPDomain         uint32        `mapstructure:"cctp_domain"`
	GasLimit           uint64        `mapstructure:"gas_limit"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	DepositTimeout     time.Duration `mapstructure:"deposit_timeout"`
}

// RelayConfig contains the relay identity settings. The private key signs
// every on-chain action the service performs; user keys are never handled.
type RelayConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

// AssetConfig describes the bridged asset. Decimals are fixed here and never
// inferred from the chain at runtime.
type AssetConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Decimals int32  `mapstructure:"decimals"`
}

// AttestationConfig contains settings for the attestation service client
type AttestationConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyChainDefaults(&config)

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "transfers")

	// Asset defaults
	viper.SetDefault("asset.symbol", "USDC")
	viper.SetDefault("asset.decimals", 6)

	// Attestation defaults
	viper.SetDefault("attestation.poll_interval", "5s")
	viper.SetDefault("attestation.timeout", "10m")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

// applyChainDefaults fills per-chain zero values. Viper defaults do not reach
// into map entries, so these are applied after unmarshal.
func applyChainDefaults(config *Config) {
	for name, chain := range config.Chains {
		if chain.PollInterval <= 0 {
			chain.PollInterval = 5 * time.Second
		}
		if chain.DepositTimeout <= 0 {
			chain.DepositTimeout = 10 * time.Minute
		}
		if chain.GasLimit == 0 {
			chain.GasLimit = 300000
		}
		config.Chains[name] = chain
	}
}

// Validate checks that every setting required at startup is present. A config
// that fails here is a fatal startup error, never a per-request error.
func Validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Relay.PrivateKey == "" {
		return fmt.Errorf("relay.private_key is required")
	}
	if len(config.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	for name, chain := range config.Chains {
		if chain.RPCURL == "" {
			return fmt.Errorf("chains.%s.rpc_url is required", name)
		}
		if chain.TokenContract == "" {
			return fmt.Errorf("chains.%s.token_contract is required", name)
		}
	}
	if config.Asset.Decimals < 0 {
		return fmt.Errorf("asset.decimals must not be negative")
	}
	if config.Attestation.BaseURL == "" {
		return fmt.Errorf("attestation.base_url is required")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
