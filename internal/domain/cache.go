package domain

import (
	"context"
	"time"
)

// MarketCache provides fast market metadata lookups in front of the Gamma API.
// Implementations must return ErrNotFound on a miss so callers can fall
// through to upstream.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	GetBySlug(ctx context.Context, slug string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// PriceCache provides fast access to the latest outcome-token prices.
type PriceCache interface {
	SetPrice(ctx context.Context, tokenID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, tokenID string) (float64, time.Time, error)
}

// RateLimiter provides distributed rate limiting for outbound upstream calls.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}
