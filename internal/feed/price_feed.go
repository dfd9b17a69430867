// Package feed streams live outcome-token prices from the CLOB market
// WebSocket into the price cache, so get-market-prices can serve values
// fresher than the Gamma snapshot.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/polyquery/polymarket-mcp/internal/domain"
	"github.com/polyquery/polymarket-mcp/internal/platform/polymarket"
)

// PriceFeed subscribes to the market channel for a fixed set of outcome
// tokens and writes every price event into the price cache. The WebSocket
// client reconnects on its own; the feed just owns its lifetime.
type PriceFeed struct {
	wsURL    string
	assetIDs []string
	prices   domain.PriceCache
	logger   *slog.Logger
}

// NewPriceFeed creates a feed for the given outcome-token IDs.
func NewPriceFeed(wsURL string, assetIDs []string, prices domain.PriceCache, logger *slog.Logger) *PriceFeed {
	return &PriceFeed{
		wsURL:    wsURL,
		assetIDs: assetIDs,
		prices:   prices,
		logger:   logger.With(slog.String("component", "price_feed")),
	}
}

// Run connects and streams until ctx is cancelled. With no configured assets
// it returns immediately; the server then serves snapshot prices only.
func (f *PriceFeed) Run(ctx context.Context) error {
	if len(f.assetIDs) == 0 {
		f.logger.InfoContext(ctx, "no asset ids configured, feed disabled")
		return nil
	}

	client := polymarket.NewWSClient(f.wsURL, f.assetIDs)
	defer client.Close()

	client.OnPriceUpdate(func(tokenID string, price float64, ts time.Time) {
		writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := f.prices.SetPrice(writeCtx, tokenID, price, ts); err != nil {
			f.logger.WarnContext(writeCtx, "price cache write failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	})

	connCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}

	f.logger.InfoContext(ctx, "subscribed to market channel",
		slog.Int("assets", len(f.assetIDs)),
	)

	<-ctx.Done()
	return ctx.Err()
}
