// Package config defines the top-level configuration for the polymarket MCP
// server and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYMCP_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Wallet     WalletConfig     `toml:"wallet"`
	Upstream   UpstreamConfig   `toml:"upstream"`
	Redis      RedisConfig      `toml:"redis"`
	Audit      AuditConfig      `toml:"audit"`
	Feed       FeedConfig       `toml:"feed"`
	Server     ServerConfig     `toml:"server"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	WsHost        string `toml:"ws_host"`
	ChainID       int    `toml:"chain_id"`
	SignatureType int    `toml:"signature_type"`
}

// WalletConfig holds the CLOB credentials: the private key exported from the
// Polymarket UI and the funder (proxy wallet) address. Both are only required
// when the authenticated CLOB flow is enabled.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	FunderAddress    string `toml:"funder_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// UpstreamConfig holds HTTP behaviour for outbound Gamma/CLOB requests.
type UpstreamConfig struct {
	Timeout          duration `toml:"timeout"`
	RetryBase        duration `toml:"retry_base"`
	RetryMaxAttempts int      `toml:"retry_max_attempts"`
	// RateLimitPerSec caps outbound requests per second when Redis is
	// enabled; 0 disables proactive limiting.
	RateLimitPerSec int `toml:"rate_limit_per_sec"`
}

// RedisConfig holds Redis connection parameters for the optional market and
// price caches.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// CacheTTL bounds how long a market snapshot may be served from cache.
	CacheTTL duration `toml:"cache_ttl"`
}

// AuditConfig holds PostgreSQL connection parameters for the optional
// tool-invocation audit log.
type AuditConfig struct {
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

// FeedConfig holds parameters for the optional live price feed that keeps the
// Redis price cache warm. Requires redis.enabled.
type FeedConfig struct {
	Enabled  bool     `toml:"enabled"`
	AssetIDs []string `toml:"asset_ids"`
}

// ServerConfig holds parameters for the streamable HTTP transport (http mode).
type ServerConfig struct {
	Port int `toml:"port"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "30s", "1s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "30s".
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
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			GammaHost:     "https://gamma-api.polymarket.com",
			WsHost:        "wss://ws-subscriptions-clob.polymarket.com",
			ChainID:       137,
			SignatureType: 1,
		},
		Upstream: UpstreamConfig{
			Timeout:          duration{30 * time.Second},
			RetryBase:        duration{time.Second},
			RetryMaxAttempts: 3,
			RateLimitPerSec:  10,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
			TLSEnabled: false,
			CacheTTL:   duration{5 * time.Minute},
		},
		Audit: AuditConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Server: ServerConfig{
			Port: 8765,
		},
		Mode:     "stdio",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"stdio": true,
	"http":  true,
	"check": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
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
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: stdio, http, check)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType < 0 || c.Polymarket.SignatureType > 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 0 (EOA), 1 (proxy), or 2 (Safe), got %d", c.Polymarket.SignatureType))
	}

	// Wallet: the key and funder must come together when either is set.
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}
	if c.HasWallet() && c.Wallet.FunderAddress == "" {
		errs = append(errs, "wallet: funder_address is required when a private key is configured")
	}

	// Upstream
	if c.Upstream.Timeout.Duration <= 0 {
		errs = append(errs, "upstream: timeout must be > 0")
	}
	if c.Upstream.RetryBase.Duration <= 0 {
		errs = append(errs, "upstream: retry_base must be > 0")
	}
	if c.Upstream.RetryMaxAttempts < 1 {
		errs = append(errs, "upstream: retry_max_attempts must be >= 1")
	}
	if c.Upstream.RateLimitPerSec < 0 {
		errs = append(errs, "upstream: rate_limit_per_sec must be >= 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if strings.TrimSpace(c.Audit.DSN) == "" {
			if c.Audit.Host == "" {
				errs = append(errs, "audit: host must not be empty (or set audit.dsn)")
			}
			if c.Audit.Port <= 0 || c.Audit.Port > 65535 {
				errs = append(errs, fmt.Sprintf("audit: port must be 1-65535, got %d", c.Audit.Port))
			}
			if c.Audit.Database == "" {
				errs = append(errs, "audit: database must not be empty")
			}
		}
		if c.Audit.PoolMaxConns < 1 {
			errs = append(errs, "audit: pool_max_conns must be >= 1")
		}
		if c.Audit.PoolMinConns < 0 || c.Audit.PoolMinConns > c.Audit.PoolMaxConns {
			errs = append(errs, "audit: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Feed
	if c.Feed.Enabled {
		if !c.Redis.Enabled {
			errs = append(errs, "feed: requires redis.enabled = true")
		}
		if c.Polymarket.WsHost == "" {
			errs = append(errs, "feed: polymarket.ws_host must not be empty")
		}
		if len(c.Feed.AssetIDs) == 0 {
			errs = append(errs, "feed: asset_ids must not be empty when enabled")
		}
	}

	// Server
	if strings.ToLower(c.Mode) == "http" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// HasWallet reports whether a CLOB credential source is configured.
func (c *Config) HasWallet() bool {
	return c.Wallet.PrivateKey != "" || c.Wallet.EncryptedKeyPath != ""
}
