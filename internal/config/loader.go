package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "LIMITORDER_"

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LIMITORDER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LIMITORDER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. Secrets
// are usually injected this way rather than written to the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Protocol ──
	setStr(&cfg.Protocol.ContractAddress, "PROTOCOL_CONTRACT_ADDRESS")
	setInt64(&cfg.Protocol.ChainID, "PROTOCOL_CHAIN_ID")
	setStr(&cfg.Protocol.Name, "PROTOCOL_NAME")
	setStr(&cfg.Protocol.Version, "PROTOCOL_VERSION")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.Mnemonic, "WALLET_MNEMONIC")
	setStr(&cfg.Wallet.DerivationPath, "WALLET_DERIVATION_PATH")
	setStr(&cfg.Wallet.Address, "WALLET_ADDRESS")

	// ── Signer ──
	setStr(&cfg.Signer.Kind, "SIGNER_KIND")
	setStr(&cfg.Signer.RPCURL, "SIGNER_RPC_URL")

	// ── Salt ──
	setBool(&cfg.Salt.Registry, "SALT_REGISTRY")
	setDuration(&cfg.Salt.TTL, "SALT_TTL")
	setInt(&cfg.Salt.MaxAttempts, "SALT_MAX_ATTEMPTS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")

	// ── Database ──
	setBool(&cfg.Database.Enabled, "DATABASE_ENABLED")
	setStr(&cfg.Database.DSN, "DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "DATABASE_HOST")
	setInt(&cfg.Database.Port, "DATABASE_PORT")
	setStr(&cfg.Database.Database, "DATABASE_DATABASE")
	setStr(&cfg.Database.User, "DATABASE_USER")
	setStr(&cfg.Database.Password, "DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "DATABASE_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")
	setStringSlice(&cfg.Server.APIKeys, "SERVER_API_KEYS")
	setStringSlice(&cfg.Server.TrustedProxies, "SERVER_TRUSTED_PROXIES")
	setStr(&cfg.Server.HMACSecret, "SERVER_HMAC_SECRET")
	setDuration(&cfg.Server.HMACMaxSkew, "SERVER_HMAC_MAX_SKEW")
	setInt(&cfg.Server.RateLimit, "SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SERVER_RATE_WINDOW")

	// ── Batch ──
	setStr(&cfg.Batch.InputPath, "BATCH_INPUT_PATH")
	setStr(&cfg.Batch.OutputPath, "BATCH_OUTPUT_PATH")
	setInt(&cfg.Batch.Concurrency, "BATCH_CONCURRENCY")

	// ── Log ──
	setStr(&cfg.Log.Level, "LOG_LEVEL")
	setStr(&cfg.Log.File, "LOG_FILE")
	setInt(&cfg.Log.MaxSizeMB, "LOG_MAX_SIZE_MB")
	setInt(&cfg.Log.MaxBackups, "LOG_MAX_BACKUPS")
	setInt(&cfg.Log.MaxAgeDays, "LOG_MAX_AGE_DAYS")
	setBool(&cfg.Log.Compress, "LOG_COMPRESS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MODE")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the prefixed
// environment variable is present and non-empty.
// ---------------------------------------------------------------------------

func getenv(key string) string {
	return os.Getenv(envPrefix + key)
}

func setStr(dst *string, key string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
