package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/polyquery/polymarket-mcp/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string. Gamma sends
// volume and liquidity both ways depending on the endpoint.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID                  string    `json:"id"`
	Question            string    `json:"question"`
	ConditionID         string    `json:"conditionId"`
	Slug                string    `json:"slug"`
	Category            string    `json:"category"`
	Description         string    `json:"description"`
	Active              flexBool  `json:"active"` // API may send bool or "true"/"false" string
	Closed              flexBool  `json:"closed"`
	Outcomes            string    `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices       string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.65\",\"0.35\"]"
	ClobTokenIDs        string    `json:"clobTokenIds"`  // JSON-encoded: e.g. "[\"123\",\"456\"]"
	Volume              flexFloat `json:"volume"`
	Liquidity           flexFloat `json:"liquidity"`
	EndDateISO          string    `json:"endDate"`
	UMAResolutionStatus string    `json:"umaResolutionStatus"`
	CreatedAt           string    `json:"createdAt"`
	UpdatedAt           string    `json:"updatedAt"`
}

// ToDomainMarket converts a Gamma market DTO to the domain model. JSON-encoded
// array fields are decoded here; a field that fails to decode is left empty
// rather than failing the whole market.
func (m *APIMarket) ToDomainMarket() domain.Market {
	market := domain.Market{
		ID:          m.ID,
		Question:    m.Question,
		Slug:        m.Slug,
		Category:    m.Category,
		Description: m.Description,
		Volume:      float64(m.Volume),
		Liquidity:   float64(m.Liquidity),
		Status:      m.status(),
		FetchedAt:   time.Now().UTC(),
	}

	_ = json.Unmarshal([]byte(m.Outcomes), &market.Outcomes)
	_ = json.Unmarshal([]byte(m.ClobTokenIDs), &market.TokenIDs)

	var priceStrs []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &priceStrs); err == nil {
		market.OutcomePrices = make([]float64, 0, len(priceStrs))
		for _, s := range priceStrs {
			p, _ := strconv.ParseFloat(s, 64)
			market.OutcomePrices = append(market.OutcomePrices, p)
		}
	}

	if t, err := time.Parse(time.RFC3339, m.EndDateISO); err == nil {
		t = t.UTC()
		market.ResolutionDate = &t
	}

	return market
}

// status derives the three-state lifecycle from the Gamma flags: a market is
// open until closed, and resolved once UMA has settled it.
func (m *APIMarket) status() domain.MarketStatus {
	if !bool(m.Closed) {
		return domain.MarketStatusOpen
	}
	if strings.EqualFold(m.UMAResolutionStatus, "resolved") {
		return domain.MarketStatusResolved
	}
	return domain.MarketStatusClosed
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIPricesHistory is the response of the CLOB /prices-history endpoint.
type APIPricesHistory struct {
	History []APIHistoryPoint `json:"history"`
}

// APIHistoryPoint is one sample in a prices-history response. The volume
// field is not present at all fidelity levels.
type APIHistoryPoint struct {
	T int64     `json:"t"` // Unix seconds
	P float64   `json:"p"`
	V flexFloat `json:"v,omitempty"`
}

// ToDomainHistoryPoint converts a CLOB history sample to the domain model.
func (p *APIHistoryPoint) ToDomainHistoryPoint() domain.HistoryPoint {
	return domain.HistoryPoint{
		Timestamp: time.Unix(p.T, 0).UTC(),
		Price:     p.P,
		Volume:    float64(p.V),
	}
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSCommand is a subscription command sent to the CLOB market WebSocket.
type WSCommand struct {
	Type      string   `json:"type"`
	AssetsIDs []string `json:"assets_ids"`
}

// WSPriceChange is an incremental price update from the market channel.
type WSPriceChange struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"` // Unix milliseconds as string
}

// WSLastTradePrice is a trade-price message from the market channel.
type WSLastTradePrice struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"`
}
