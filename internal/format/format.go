// Package format renders upstream market data into the fixed text blocks
// returned to MCP clients. Field order, separators, and number formatting are
// a presentation contract consumed by LLMs; changing them breaks downstream
// prompts, so treat everything here as frozen output format.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/polyquery/polymarket-mcp/internal/domain"
)

// separator terminates every repeated record.
const separator = "---"

// notAvailable substitutes for missing upstream fields.
const notAvailable = "N/A"

// MarketList renders the list-markets response: one ID/Title/Status/Volume
// block per market, each terminated by the separator.
func MarketList(markets []domain.Market) string {
	if len(markets) == 0 {
		return "No markets available"
	}

	var b strings.Builder
	b.WriteString("Available Markets:\n")
	for _, m := range markets {
		b.WriteString("\n")
		writeField(&b, "ID", orNA(m.ID))
		writeField(&b, "Title", orNA(m.Question))
		writeField(&b, "Status", string(m.Status))
		writeField(&b, "Volume", money(m.Volume))
		b.WriteString(separator)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// MarketInfo renders the get-market-info response.
func MarketInfo(m domain.Market) string {
	resolution := notAvailable
	if m.ResolutionDate != nil {
		resolution = isoUTC(*m.ResolutionDate)
	}

	var b strings.Builder
	writeField(&b, "Title", orNA(m.Question))
	writeField(&b, "Category", orNA(m.Category))
	writeField(&b, "Status", string(m.Status))
	writeField(&b, "Resolution Date", resolution)
	writeField(&b, "Volume", money(m.Volume))
	writeField(&b, "Liquidity", money(m.Liquidity))
	writeField(&b, "Description", orNA(m.Description))
	return strings.TrimSuffix(b.String(), "\n")
}

// MarketPrices renders the get-market-prices response: a title line followed
// by one Outcome/Price/Probability block per outcome.
func MarketPrices(m domain.Market, prices []domain.PricePoint) string {
	if len(prices) == 0 {
		return "No price data available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current Market Prices for %s\n", orNA(m.Question))
	for _, p := range prices {
		b.WriteString("\n")
		writeField(&b, "Outcome", p.Outcome)
		writeField(&b, "Price", fmt.Sprintf("$%.4f", p.Price))
		writeField(&b, "Probability", fmt.Sprintf("%.1f%%", p.Probability()))
		b.WriteString(separator)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// MarketHistory renders the get-market-history response: a title line
// followed by one Time/Price/Volume block per sample, newest first.
func MarketHistory(m domain.Market, points []domain.HistoryPoint) string {
	if len(points) == 0 {
		return "No historical data available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Historical Data for %s\n", orNA(m.Question))
	for _, p := range points {
		b.WriteString("\n")
		writeField(&b, "Time", isoUTC(p.Timestamp))
		writeField(&b, "Price", fmt.Sprintf("$%.4f", p.Price))
		writeField(&b, "Volume", money(p.Volume))
		b.WriteString(separator)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// writeField writes one "Name: value" line.
func writeField(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

// money formats a USD amount with comma grouping and exactly two decimals.
func money(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// isoUTC formats a timestamp as ISO-8601 in UTC with second precision.
func isoUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
