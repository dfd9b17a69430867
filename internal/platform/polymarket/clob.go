package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/polyquery/polymarket-mcp/internal/crypto"
	"github.com/polyquery/polymarket-mcp/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit Order
// Book) API. The server is read-only, so only market data endpoints are
// exposed; authentication is still needed for per-key rate limits.
type ClobClient struct {
	baseURL  string
	core     core
	signer   *crypto.Signer
	funder   string
	hmacAuth *crypto.HMACAuth
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
// signer may be nil, in which case all requests go out unauthenticated and
// DeriveAPIKey fails.
func NewClobClient(baseURL string, signer *crypto.Signer, funder string, opts Options) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		core:    newCore(opts, "clob"),
		signer:  signer,
		funder:  funder,
	}
}

// Authenticated reports whether the client has completed DeriveAPIKey.
func (c *ClobClient) Authenticated() bool {
	return c.hmacAuth != nil
}

// DeriveAPIKey performs the CLOB auth flow to obtain an HMAC API key. It
// signs a ClobAuth EIP-712 message and sends it with L1 headers to the
// derive-api-key endpoint. Per Polymarket docs, L1 requires POLY_ADDRESS,
// POLY_SIGNATURE, POLY_TIMESTAMP, POLY_NONCE. On success it populates the
// client's hmacAuth field; subsequent requests carry L2 headers.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	if c.signer == nil {
		return fmt.Errorf("polymarket/clob: %w: no signing key configured", domain.ErrUnauthorized)
	}

	timestamp := time.Now().Unix()
	nonce := int64(0)

	sig, err := c.signer.SignAuthMessage(timestamp, nonce)
	if err != nil {
		return fmt.Errorf("polymarket/clob: %w: %v", domain.ErrSigningFailed, err)
	}

	headers := map[string]string{
		"POLY_ADDRESS":   c.signer.Address().Hex(),
		"POLY_SIGNATURE": sig,
		"POLY_TIMESTAMP": strconv.FormatInt(timestamp, 10),
		"POLY_NONCE":     strconv.FormatInt(nonce, 10),
	}

	body, err := c.core.get(ctx, c.baseURL+"/auth/derive-api-key", headers)
	if err != nil {
		return fmt.Errorf("polymarket/clob: derive api key: %w", err)
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(body, &authResp); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w: %v", domain.ErrMalformedResponse, err)
	}

	c.hmacAuth = &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}

	return nil
}

// clobIntervals maps a domain timeframe to the CLOB interval parameter and a
// sampling fidelity in minutes.
var clobIntervals = map[domain.Timeframe]struct {
	interval string
	fidelity int
}{
	domain.Timeframe1D:  {"1d", 10},
	domain.Timeframe7D:  {"1w", 60},
	domain.Timeframe30D: {"1m", 180},
	domain.TimeframeAll: {"max", 720},
}

// GetPricesHistory returns the sampled price history of an outcome token over
// the given timeframe, oldest first (upstream order).
func (c *ClobClient) GetPricesHistory(ctx context.Context, tokenID string, tf domain.Timeframe) ([]domain.HistoryPoint, error) {
	iv, ok := clobIntervals[tf]
	if !ok {
		iv = clobIntervals[domain.Timeframe7D]
	}

	params := url.Values{}
	params.Set("market", tokenID)
	params.Set("interval", iv.interval)
	params.Set("fidelity", strconv.Itoa(iv.fidelity))

	body, err := c.core.get(ctx, c.baseURL+"/prices-history?"+params.Encode(), c.authHeaders("/prices-history"))
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: prices history %s: %w", tokenID, err)
	}

	var resp APIPricesHistory
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode prices history: %w: %v", domain.ErrMalformedResponse, err)
	}

	points := make([]domain.HistoryPoint, 0, len(resp.History))
	for i := range resp.History {
		points = append(points, resp.History[i].ToDomainHistoryPoint())
	}

	return points, nil
}

// GetMidpoint returns the current midpoint price of an outcome token.
func (c *ClobClient) GetMidpoint(ctx context.Context, tokenID string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.core.get(ctx, c.baseURL+"/midpoint?"+params.Encode(), c.authHeaders("/midpoint"))
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: midpoint %s: %w", tokenID, err)
	}

	var resp struct {
		Mid string `json:"mid"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode midpoint: %w: %v", domain.ErrMalformedResponse, err)
	}

	mid, err := strconv.ParseFloat(resp.Mid, 64)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: parse midpoint %q: %w", resp.Mid, domain.ErrMalformedResponse)
	}

	return mid, nil
}

// authHeaders returns L2 HMAC headers when the auth flow has completed, or
// nil for unauthenticated access.
func (c *ClobClient) authHeaders(path string) map[string]string {
	if c.hmacAuth == nil || c.signer == nil {
		return nil
	}
	return c.hmacAuth.L2Headers(c.signer.Address().Hex(), "GET", path, "")
}
