package format

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyquery/polymarket-mcp/internal/domain"
)

func electionMarket() domain.Market {
	end := time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)
	return domain.Market{
		ID:             "253591",
		Question:       "US Presidential Election 2024",
		Slug:           "us-presidential-election-2024",
		Category:       "Politics",
		Status:         domain.MarketStatusOpen,
		ResolutionDate: &end,
		Volume:         1234567.891,
		Liquidity:      98765.4,
		Description:    "Which party wins the 2024 US presidential election?",
		Outcomes:       []string{"Democratic", "Republican"},
		OutcomePrices:  []float64{0.65, 0.35},
	}
}

func TestMarketList(t *testing.T) {
	out := MarketList([]domain.Market{electionMarket()})

	want := strings.Join([]string{
		"Available Markets:",
		"",
		"ID: 253591",
		"Title: US Presidential Election 2024",
		"Status: open",
		"Volume: $1,234,567.89",
		"---",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestMarketListEmpty(t *testing.T) {
	assert.Equal(t, "No markets available", MarketList(nil))
}

func TestMarketListMissingFields(t *testing.T) {
	out := MarketList([]domain.Market{{Status: domain.MarketStatusClosed}})

	assert.Contains(t, out, "ID: N/A")
	assert.Contains(t, out, "Title: N/A")
	assert.Contains(t, out, "Volume: $0.00")
}

func TestMarketInfo(t *testing.T) {
	out := MarketInfo(electionMarket())

	want := strings.Join([]string{
		"Title: US Presidential Election 2024",
		"Category: Politics",
		"Status: open",
		"Resolution Date: 2024-11-05T12:00:00Z",
		"Volume: $1,234,567.89",
		"Liquidity: $98,765.40",
		"Description: Which party wins the 2024 US presidential election?",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestMarketInfoNoResolutionDate(t *testing.T) {
	m := electionMarket()
	m.ResolutionDate = nil

	assert.Contains(t, MarketInfo(m), "Resolution Date: N/A")
}

func TestMarketPrices(t *testing.T) {
	m := electionMarket()
	prices := []domain.PricePoint{
		{Outcome: "Democratic", Price: 0.65},
		{Outcome: "Republican", Price: 0.35},
	}

	out := MarketPrices(m, prices)

	want := strings.Join([]string{
		"Current Market Prices for US Presidential Election 2024",
		"",
		"Outcome: Democratic",
		"Price: $0.6500",
		"Probability: 65.0%",
		"---",
		"",
		"Outcome: Republican",
		"Price: $0.3500",
		"Probability: 35.0%",
		"---",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestMarketPricesEmpty(t *testing.T) {
	assert.Equal(t, "No price data available", MarketPrices(electionMarket(), nil))
}

func TestMarketPricesProbabilityRounding(t *testing.T) {
	out := MarketPrices(electionMarket(), []domain.PricePoint{{Outcome: "Yes", Price: 0.6549}})

	assert.Contains(t, out, "Price: $0.6549")
	assert.Contains(t, out, "Probability: 65.5%")
}

func TestMarketHistory(t *testing.T) {
	points := []domain.HistoryPoint{
		{Timestamp: time.Date(2024, 10, 2, 18, 30, 0, 0, time.UTC), Price: 0.66, Volume: 5400.5},
		{Timestamp: time.Date(2024, 10, 1, 18, 30, 0, 0, time.UTC), Price: 0.64, Volume: 0},
	}

	out := MarketHistory(electionMarket(), points)

	want := strings.Join([]string{
		"Historical Data for US Presidential Election 2024",
		"",
		"Time: 2024-10-02T18:30:00Z",
		"Price: $0.6600",
		"Volume: $5,400.50",
		"---",
		"",
		"Time: 2024-10-01T18:30:00Z",
		"Price: $0.6400",
		"Volume: $0.00",
		"---",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestMarketHistoryEmpty(t *testing.T) {
	assert.Equal(t, "No historical data available", MarketHistory(electionMarket(), nil))
}

func TestTimesRenderedInUTC(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	points := []domain.HistoryPoint{
		{Timestamp: time.Date(2024, 10, 2, 14, 30, 0, 0, loc), Price: 0.5},
	}
	out := MarketHistory(electionMarket(), points)

	assert.Contains(t, out, "Time: 2024-10-02T18:30:00Z")
}
