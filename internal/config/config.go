// Package config defines the top-level configuration for the limit-order
// signing service and provides validation helpers.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LIMITORDER_* environment variables.
type Config struct {
	Protocol ProtocolConfig `toml:"protocol"`
	Wallet   WalletConfig   `toml:"wallet"`
	Signer   SignerConfig   `toml:"signer"`
	Salt     SaltConfig     `toml:"salt"`
	Redis    RedisConfig    `toml:"redis"`
	Database DatabaseConfig `toml:"database"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Batch    BatchConfig    `toml:"batch"`
	Log      LogConfig      `toml:"log"`
	Mode     string         `toml:"mode"`
}

// ProtocolConfig identifies the limit order protocol deployment. Name and
// Version only need changing for forks of the protocol.
type ProtocolConfig struct {
	ContractAddress string `toml:"contract_address"`
	ChainID         int64  `toml:"chain_id"`
	Name            string `toml:"name"`
	Version         string `toml:"version"`
}

// WalletConfig holds the maker key sources. Address is only used with the
// rpc signer, where the key lives in the wallet.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	Mnemonic         string `toml:"mnemonic"`
	DerivationPath   string `toml:"derivation_path"`
	Address          string `toml:"address"`
}

// SignerConfig selects how signatures are produced: "local" signs with the
// wallet key, "rpc" calls eth_signTypedData_v4 on RPCURL.
type SignerConfig struct {
	Kind   string `toml:"kind"`
	RPCURL string `toml:"rpc_url"`
}

// SaltConfig controls the Redis-backed salt uniqueness registry.
type SaltConfig struct {
	Registry    bool     `toml:"registry"`
	TTL         duration `toml:"ttl"`
	MaxAttempts int      `toml:"max_attempts"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the audit log.
type DatabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters. An empty APIKeys list and an
// empty HMACSecret disable authentication.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKeys     []string `toml:"api_keys"`
	HMACSecret  string   `toml:"hmac_secret"`
	HMACMaxSkew duration `toml:"hmac_max_skew"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`

	// TrustedProxies lists CIDRs or addresses whose X-Forwarded-For is
	// believed. Empty means the peer address is always used.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// BatchConfig holds parameters for batch mode.
type BatchConfig struct {
	InputPath   string `toml:"input_path"`
	OutputPath  string `toml:"output_path"`
	Concurrency int    `toml:"concurrency"`
}

// LogConfig holds log level and rotation settings.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Protocol: ProtocolConfig{
			ChainID: 1,
		},
		Signer: SignerConfig{
			Kind: "local",
		},
		Salt: SaltConfig{
			Registry:    false,
			TTL:         duration{24 * time.Hour},
			MaxAttempts: 5,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "limitorder-archive",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			HMACMaxSkew: duration{30 * time.Second},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Batch: BatchConfig{
			Concurrency: 8,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Mode: "server",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"batch":  true,
}

// validLogLevels enumerates the accepted values for LogConfig.Level.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, batch)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log: unknown level %q (valid: debug, info, warn, error)", c.Log.Level))
	}

	// Protocol
	if !common.IsHexAddress(c.Protocol.ContractAddress) {
		errs = append(errs, fmt.Sprintf("protocol: contract_address %q is not a hex address", c.Protocol.ContractAddress))
	}
	if c.Protocol.ChainID <= 0 {
		errs = append(errs, "protocol: chain_id must be positive")
	}

	// Signer and wallet
	switch c.Signer.Kind {
	case "local":
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" && c.Wallet.Mnemonic == "" {
			errs = append(errs, "wallet: one of private_key, encrypted_key_path or mnemonic must be set for the local signer")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	case "rpc":
		if c.Signer.RPCURL == "" {
			errs = append(errs, "signer: rpc_url is required for the rpc signer")
		}
		if !common.IsHexAddress(c.Wallet.Address) {
			errs = append(errs, "wallet: address is required for the rpc signer")
		}
	default:
		errs = append(errs, fmt.Sprintf("signer: unknown kind %q (valid: local, rpc)", c.Signer.Kind))
	}

	// Salt registry
	if c.Salt.Registry {
		if !c.Redis.Enabled {
			errs = append(errs, "salt: registry requires redis.enabled")
		}
		if c.Salt.MaxAttempts < 1 {
			errs = append(errs, "salt: max_attempts must be >= 1")
		}
		if c.Salt.TTL.Duration <= 0 {
			errs = append(errs, "salt: ttl must be > 0")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Database
	if c.Database.Enabled {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
			if c.Database.Database == "" {
				errs = append(errs, "database: database must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 || c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && !c.Redis.Enabled {
			errs = append(errs, "server: rate_limit requires redis.enabled (set rate_limit = 0 to disable)")
		}
		for _, p := range c.Server.TrustedProxies {
			if _, err := netip.ParsePrefix(p); err == nil {
				continue
			}
			if _, err := netip.ParseAddr(p); err != nil {
				errs = append(errs, fmt.Sprintf("server: trusted_proxies entry %q is not an address or CIDR", p))
			}
		}
	}

	// Batch
	if c.Mode == "batch" {
		if c.Batch.InputPath == "" {
			errs = append(errs, "batch: input_path is required in batch mode")
		}
		if c.Batch.Concurrency < 1 {
			errs = append(errs, "batch: concurrency must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
