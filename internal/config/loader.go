package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies environment variable overrides, and returns the
// final Config. A missing config file is not an error; the server then runs on
// defaults plus environment. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYMCP_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file. The short KEY / FUNDER / CLOB_HOST names used by existing
// MCP client configurations are honoured as aliases.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "CLOB_HOST") // legacy alias
	setStr(&cfg.Polymarket.ClobHost, "POLYMCP_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYMCP_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYMCP_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYMCP_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "POLYMCP_POLYMARKET_SIGNATURE_TYPE")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "KEY") // legacy alias
	setStr(&cfg.Wallet.PrivateKey, "POLYMCP_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.FunderAddress, "FUNDER") // legacy alias
	setStr(&cfg.Wallet.FunderAddress, "POLYMCP_WALLET_FUNDER_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYMCP_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYMCP_WALLET_KEY_PASSWORD")

	// ── Upstream ──
	setDuration(&cfg.Upstream.Timeout, "POLYMCP_UPSTREAM_TIMEOUT")
	setDuration(&cfg.Upstream.RetryBase, "POLYMCP_UPSTREAM_RETRY_BASE")
	setInt(&cfg.Upstream.RetryMaxAttempts, "POLYMCP_UPSTREAM_RETRY_MAX_ATTEMPTS")
	setInt(&cfg.Upstream.RateLimitPerSec, "POLYMCP_UPSTREAM_RATE_LIMIT_PER_SEC")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYMCP_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYMCP_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYMCP_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYMCP_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYMCP_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYMCP_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYMCP_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "POLYMCP_REDIS_CACHE_TTL")

	// ── Audit ──
	setBool(&cfg.Audit.Enabled, "POLYMCP_AUDIT_ENABLED")
	setStr(&cfg.Audit.DSN, "POLYMCP_AUDIT_DSN")
	setStr(&cfg.Audit.Host, "POLYMCP_AUDIT_HOST")
	setInt(&cfg.Audit.Port, "POLYMCP_AUDIT_PORT")
	setStr(&cfg.Audit.Database, "POLYMCP_AUDIT_DATABASE")
	setStr(&cfg.Audit.User, "POLYMCP_AUDIT_USER")
	setStr(&cfg.Audit.Password, "POLYMCP_AUDIT_PASSWORD")
	setStr(&cfg.Audit.SSLMode, "POLYMCP_AUDIT_SSL_MODE")
	setInt(&cfg.Audit.PoolMaxConns, "POLYMCP_AUDIT_POOL_MAX_CONNS")
	setInt(&cfg.Audit.PoolMinConns, "POLYMCP_AUDIT_POOL_MIN_CONNS")
	setBool(&cfg.Audit.RunMigrations, "POLYMCP_AUDIT_RUN_MIGRATIONS")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "POLYMCP_FEED_ENABLED")
	setStringSlice(&cfg.Feed.AssetIDs, "POLYMCP_FEED_ASSET_IDS")

	// ── Server ──
	setInt(&cfg.Server.Port, "POLYMCP_SERVER_PORT")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYMCP_MODE")
	setStr(&cfg.LogLevel, "POLYMCP_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
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
