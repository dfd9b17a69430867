package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusOpen     MarketStatus = "open"
	MarketStatusClosed   MarketStatus = "closed"
	MarketStatusResolved MarketStatus = "resolved"
)

// ValidStatus reports whether s is one of the three known market states.
func ValidStatus(s string) bool {
	switch MarketStatus(s) {
	case MarketStatusOpen, MarketStatusClosed, MarketStatusResolved:
		return true
	}
	return false
}

// Market is an immutable snapshot of a Polymarket prediction market as of the
// moment it was fetched. The upstream API is authoritative; nothing here is
// persisted locally.
type Market struct {
	ID             string
	Question       string
	Slug           string
	Category       string
	Status         MarketStatus
	ResolutionDate *time.Time
	Volume         float64 // USD
	Liquidity      float64 // USD
	Description    string
	Outcomes       []string // e.g. ["Yes","No"], parallel to OutcomePrices
	OutcomePrices  []float64
	TokenIDs       []string // ERC-1155 token IDs, parallel to Outcomes
	FetchedAt      time.Time
}

// PricePoint is the current price of one outcome of a market.
type PricePoint struct {
	Outcome string
	Price   float64 // in [0,1]
}

// Probability returns the implied probability in percent.
func (p PricePoint) Probability() float64 {
	return p.Price * 100
}

// HistoryPoint is one sample of a market's price/volume history.
type HistoryPoint struct {
	Timestamp time.Time
	Price     float64
	Volume    float64 // USD traded around this sample; 0 when upstream omits it
}

// Timeframe is a bounded historical window for history queries.
type Timeframe string

const (
	Timeframe1D  Timeframe = "1d"
	Timeframe7D  Timeframe = "7d"
	Timeframe30D Timeframe = "30d"
	TimeframeAll Timeframe = "all"
)

// ValidTimeframe reports whether s is a known timeframe value.
func ValidTimeframe(s string) bool {
	switch Timeframe(s) {
	case Timeframe1D, Timeframe7D, Timeframe30D, TimeframeAll:
		return true
	}
	return false
}

// Window returns the duration covered by the timeframe, or 0 for "all".
func (t Timeframe) Window() time.Duration {
	switch t {
	case Timeframe1D:
		return 24 * time.Hour
	case Timeframe7D:
		return 7 * 24 * time.Hour
	case Timeframe30D:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}
