// Package config loads the immutable process configuration. Everything the
// services need (server key, RPC endpoint, mint map) is resolved here once
// and injected at startup; there are no ambient globals.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Ledger   LedgerConfig
	Auth     AuthConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string `env:"SERVER_HOST,default=0.0.0.0"`
	Port         int    `env:"SERVER_PORT,default=8080"`
	ReadTimeout  int    `env:"SERVER_READ_TIMEOUT,default=15"`
	WriteTimeout int    `env:"SERVER_WRITE_TIMEOUT,default=30"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=text"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=player_layer"`
}

// DatabaseConfig configures the profile store connection. An empty DSN
// selects the in-memory store.
type DatabaseConfig struct {
	Driver          string `env:"DB_DRIVER,default=postgres"`
	DSN             string `env:"DB_DSN"`
	MaxOpenConns    int    `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int    `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `env:"DB_CONN_MAX_LIFETIME,default=300"`
}

// LedgerConfig configures ledger access and the player program binding.
type LedgerConfig struct {
	RPCURL    string `env:"LEDGER_RPC_URL,default=http://localhost:8899"`
	Cluster   string `env:"LEDGER_CLUSTER,default=devnet"`
	ProgramID string `env:"PLAYER_PROGRAM_ID"`
	// ServerKeySeed is the base58-encoded 32-byte seed of the server
	// signing key.
	ServerKeySeed string `env:"SERVER_KEY_SEED"`
	// MintsFile points at a YAML file mapping cluster name to cobx mint
	// address.
	MintsFile string `env:"LEDGER_MINTS_FILE,default=config/mints.yaml"`

	Mints map[string]string
}

// Mint returns the cobx mint address configured for a cluster.
func (c LedgerConfig) Mint(cluster string) (string, bool) {
	mint, ok := c.Mints[cluster]
	return mint, ok && mint != ""
}

// AuthConfig configures credential verification.
type AuthConfig struct {
	JWTSecret  string `env:"AUTH_JWT_SECRET"`
	AdminToken string `env:"ADMIN_API_TOKEN"`
}

// Load reads configuration from the environment plus the mint map file.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	mints, err := loadMints(cfg.Ledger.MintsFile)
	if err != nil {
		return nil, err
	}
	cfg.Ledger.Mints = mints

	return &cfg, nil
}

func loadMints(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Mint map may also arrive via LEDGER_MINT_<CLUSTER> variables.
			return mintsFromEnv(), nil
		}
		return nil, fmt.Errorf("read mints file: %w", err)
	}

	var parsed struct {
		Mints map[string]string `yaml:"mints"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse mints file: %w", err)
	}

	mints := parsed.Mints
	if mints == nil {
		mints = make(map[string]string)
	}
	for cluster, mint := range mintsFromEnv() {
		mints[cluster] = mint
	}
	return mints, nil
}

var mintEnvClusters = []string{"devnet", "testnet", "mainnet"}

func mintsFromEnv() map[string]string {
	mints := make(map[string]string)
	for _, cluster := range mintEnvClusters {
		if v := os.Getenv("LEDGER_MINT_" + strings.ToUpper(cluster)); v != "" {
			mints[cluster] = v
		}
	}
	return mints
}
