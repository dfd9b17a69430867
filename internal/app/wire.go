package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polyquery/polymarket-mcp/internal/cache/redis"
	"github.com/polyquery/polymarket-mcp/internal/config"
	"github.com/polyquery/polymarket-mcp/internal/crypto"
	"github.com/polyquery/polymarket-mcp/internal/domain"
	"github.com/polyquery/polymarket-mcp/internal/mcpserver"
	"github.com/polyquery/polymarket-mcp/internal/platform/polymarket"
	"github.com/polyquery/polymarket-mcp/internal/service"
	"github.com/polyquery/polymarket-mcp/internal/store/postgres"
)

// Dependencies bundles everything the operating modes need. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Gamma *polymarket.GammaClient
	Clob  *polymarket.ClobClient

	// Optional; nil when the corresponding backend is disabled.
	Redis       *redis.Client
	Postgres    *postgres.Client
	MarketCache domain.MarketCache
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	Invocations domain.InvocationStore

	Service    *service.MarketService
	Dispatcher *mcpserver.Dispatcher
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (optional: market/price caches and upstream rate limiting) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Redis.CacheTTL.Duration)
		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- PostgreSQL (optional: tool-invocation audit log) ---
	if cfg.Audit.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Audit.DSN,
			Host:     cfg.Audit.Host,
			Port:     cfg.Audit.Port,
			Database: cfg.Audit.Database,
			User:     cfg.Audit.User,
			Password: cfg.Audit.Password,
			SSLMode:  cfg.Audit.SSLMode,
			MaxConns: cfg.Audit.PoolMaxConns,
			MinConns: cfg.Audit.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Audit.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.Postgres = pgClient
		deps.Invocations = postgres.NewInvocationStore(pgClient.Pool())
	}

	// --- Upstream clients ---
	opts := polymarket.Options{
		Timeout:          cfg.Upstream.Timeout.Duration,
		RetryBase:        cfg.Upstream.RetryBase.Duration,
		RetryMaxAttempts: cfg.Upstream.RetryMaxAttempts,
		Limiter:          deps.RateLimiter,
		LimitPerSec:      cfg.Upstream.RateLimitPerSec,
		Logger:           logger,
	}

	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost, opts)

	var signer *crypto.Signer
	if cfg.HasWallet() {
		key, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load key: %w", err)
		}
		signer, err = crypto.NewSigner(key, cfg.Polymarket.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
	}

	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer, cfg.Wallet.FunderAddress, opts)

	// Per-key rate limits beat anonymous ones. Unauthenticated access still
	// works, so a failed derive is a warning, not a startup error.
	if signer != nil {
		if err := deps.Clob.DeriveAPIKey(ctx); err != nil {
			logger.WarnContext(ctx, "wire: derive api key failed, continuing unauthenticated",
				slog.String("error", err.Error()),
			)
		}
	}

	// --- Service and dispatcher ---
	deps.Service = service.NewMarketService(deps.Gamma, deps.Clob, deps.MarketCache, deps.PriceCache, logger)
	deps.Dispatcher = mcpserver.NewDispatcher(deps.Service, deps.Invocations, logger)

	return deps, cleanup, nil
}
