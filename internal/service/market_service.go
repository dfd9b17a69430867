// Package service implements the query logic behind the MCP tools: market
// resolution, status filtering, price assembly, and history windowing. It
// talks to the upstream APIs through narrow interfaces so tests can swap in
// fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/polyquery/polymarket-mcp/internal/domain"
	"github.com/polyquery/polymarket-mcp/internal/platform/polymarket"
)

// maxListWindow caps how many markets are fetched upstream when a status
// filter forces client-side refinement.
const maxListWindow = 500

// MarketSource is the Gamma API surface the service needs.
type MarketSource interface {
	ListMarkets(ctx context.Context, q polymarket.ListQuery) ([]domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	GetMarketBySlug(ctx context.Context, slug string) (domain.Market, error)
}

// HistorySource is the CLOB API surface the service needs.
type HistorySource interface {
	GetPricesHistory(ctx context.Context, tokenID string, tf domain.Timeframe) ([]domain.HistoryPoint, error)
}

// MarketService answers the market queries exposed as MCP tools. The upstream
// APIs stay authoritative; the Redis caches are a read-through optimization
// and both may be nil.
type MarketService struct {
	source  MarketSource
	history HistorySource
	cache   domain.MarketCache
	prices  domain.PriceCache
	logger  *slog.Logger

	now func() time.Time
}

// NewMarketService creates a MarketService. cache and prices may be nil to
// run without Redis.
func NewMarketService(
	source MarketSource,
	history HistorySource,
	cache domain.MarketCache,
	prices domain.PriceCache,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		source:  source,
		history: history,
		cache:   cache,
		prices:  prices,
		logger:  logger,
		now:     time.Now,
	}
}

// ListMarkets returns a page of markets, optionally narrowed to one status.
// Gamma cannot distinguish closed from resolved server-side, so those filters
// over-fetch and refine client-side before applying the requested page.
func (s *MarketService) ListMarkets(ctx context.Context, status domain.MarketStatus, limit, offset int) ([]domain.Market, error) {
	refine := status == domain.MarketStatusClosed || status == domain.MarketStatusResolved
	if !refine {
		markets, err := s.source.ListMarkets(ctx, polymarket.ListQuery{
			Status: status,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("market_service: list markets: %w", err)
		}
		return markets, nil
	}

	// The raw closed=true page mixes closed and resolved markets, so a page
	// worth of rows is not enough to fill a page after filtering. Pull the
	// whole refinement window before slicing.
	fetched, err := s.source.ListMarkets(ctx, polymarket.ListQuery{
		Status: status,
		Limit:  maxListWindow,
		Offset: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("market_service: list markets: %w", err)
	}

	filtered := make([]domain.Market, 0, limit)
	for _, m := range fetched {
		if m.Status == status {
			filtered = append(filtered, m)
		}
	}

	if offset >= len(filtered) {
		return []domain.Market{}, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], nil
}

// GetMarket resolves a market reference, which may be a numeric Gamma ID or a
// URL slug. Numeric references are tried as an ID first and fall back to a
// slug lookup on not-found; everything else goes straight to the slug lookup.
func (s *MarketService) GetMarket(ctx context.Context, ref string) (domain.Market, error) {
	if m, ok := s.cachedMarket(ctx, ref); ok {
		return m, nil
	}

	m, err := s.fetchMarket(ctx, ref)
	if err != nil {
		return domain.Market{}, err
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
			s.logger.WarnContext(ctx, "market_service: cache set failed",
				slog.String("market_id", m.ID),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	return m, nil
}

// GetMarketPrices returns the market and the current price of each outcome.
// Prices come from the market snapshot; a fresher value from the live-feed
// price cache wins when present.
func (s *MarketService) GetMarketPrices(ctx context.Context, ref string) (domain.Market, []domain.PricePoint, error) {
	m, err := s.GetMarket(ctx, ref)
	if err != nil {
		return domain.Market{}, nil, err
	}

	n := len(m.Outcomes)
	if len(m.OutcomePrices) < n {
		n = len(m.OutcomePrices)
	}

	points := make([]domain.PricePoint, 0, n)
	for i := 0; i < n; i++ {
		price := m.OutcomePrices[i]
		if s.prices != nil && i < len(m.TokenIDs) {
			if live, _, liveErr := s.prices.GetPrice(ctx, m.TokenIDs[i]); liveErr == nil {
				price = live
			}
		}
		points = append(points, domain.PricePoint{Outcome: m.Outcomes[i], Price: price})
	}

	return m, points, nil
}

// GetMarketHistory returns the market and its sampled price history over the
// timeframe, newest first. History tracks the primary outcome token.
func (s *MarketService) GetMarketHistory(ctx context.Context, ref string, tf domain.Timeframe) (domain.Market, []domain.HistoryPoint, error) {
	m, err := s.GetMarket(ctx, ref)
	if err != nil {
		return domain.Market{}, nil, err
	}

	if len(m.TokenIDs) == 0 {
		return domain.Market{}, nil, fmt.Errorf("market_service: %w: market %s has no outcome tokens", domain.ErrNotFound, m.ID)
	}

	points, err := s.history.GetPricesHistory(ctx, m.TokenIDs[0], tf)
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("market_service: history for %s: %w", m.ID, err)
	}

	if window := tf.Window(); window > 0 {
		cutoff := s.now().Add(-window)
		kept := points[:0]
		for _, p := range points {
			if !p.Timestamp.Before(cutoff) {
				kept = append(kept, p)
			}
		}
		points = kept
	}

	// Upstream delivers oldest first.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}

	return m, points, nil
}

func (s *MarketService) cachedMarket(ctx context.Context, ref string) (domain.Market, bool) {
	if s.cache == nil {
		return domain.Market{}, false
	}
	if m, err := s.cache.Get(ctx, ref); err == nil {
		return m, true
	}
	if m, err := s.cache.GetBySlug(ctx, ref); err == nil {
		return m, true
	}
	return domain.Market{}, false
}

func (s *MarketService) fetchMarket(ctx context.Context, ref string) (domain.Market, error) {
	if isNumeric(ref) {
		m, err := s.source.GetMarket(ctx, ref)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Market{}, fmt.Errorf("market_service: get market %q: %w", ref, err)
		}
		// Numeric slugs exist; fall through.
	}

	m, err := s.source.GetMarketBySlug(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Market{}, fmt.Errorf("market_service: %w", &domain.NotFoundError{Ref: ref})
		}
		return domain.Market{}, fmt.Errorf("market_service: resolve market %q: %w", ref, err)
	}
	return m, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
