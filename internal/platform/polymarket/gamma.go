package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/polyquery/polymarket-mcp/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which provides
// market discovery and metadata. All endpoints are unauthenticated.
type GammaClient struct {
	baseURL string
	core    core
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, opts Options) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		core:    newCore(opts, "gamma"),
	}
}

// ListQuery narrows a ListMarkets call. Status is a server-side hint only:
// Gamma distinguishes active from closed, so resolved-vs-closed refinement is
// left to the caller.
type ListQuery struct {
	Status domain.MarketStatus // empty means no filter
	Limit  int
	Offset int
}

// ListMarkets returns a page of markets.
func (g *GammaClient) ListMarkets(ctx context.Context, q ListQuery) ([]domain.Market, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	switch q.Status {
	case domain.MarketStatusOpen:
		params.Set("active", "true")
		params.Set("closed", "false")
	case domain.MarketStatusClosed, domain.MarketStatusResolved:
		params.Set("closed", "true")
	}

	body, err := g.core.get(ctx, g.baseURL+"/markets?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w: %v", domain.ErrMalformedResponse, err)
	}

	markets := make([]domain.Market, 0, len(apiMarkets))
	for i := range apiMarkets {
		markets = append(markets, apiMarkets[i].ToDomainMarket())
	}

	return markets, nil
}

// GetMarket returns a single market by its numeric Gamma ID.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	body, err := g.core.get(ctx, g.baseURL+"/markets/"+url.PathEscape(id), nil)
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: decode market: %w: %v", domain.ErrMalformedResponse, err)
	}
	if apiMarket.ID == "" {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: %w: id=%s", domain.ErrNotFound, id)
	}

	return apiMarket.ToDomainMarket(), nil
}

// GetMarketBySlug returns a single market looked up by its URL slug.
func (g *GammaClient) GetMarketBySlug(ctx context.Context, slug string) (domain.Market, error) {
	params := url.Values{}
	params.Set("slug", slug)

	body, err := g.core.get(ctx, g.baseURL+"/markets?"+params.Encode(), nil)
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: get market by slug %s: %w", slug, err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: decode markets: %w: %v", domain.ErrMalformedResponse, err)
	}

	if len(apiMarkets) == 0 {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: %w: slug=%s", domain.ErrNotFound, slug)
	}

	return apiMarkets[0].ToDomainMarket(), nil
}
