// Package tools defines the MCP tool surface: the tool names, their
// JSON-Schema descriptors, and the argument parsing that turns raw call
// arguments into validated, default-filled values.
package tools

import (
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/polyquery/polymarket-mcp/internal/domain"
)

// Tool names as exposed over MCP.
const (
	NameListMarkets      = "list-markets"
	NameGetMarketInfo    = "get-market-info"
	NameGetMarketPrices  = "get-market-prices"
	NameGetMarketHistory = "get-market-history"
)

// Argument defaults and bounds.
const (
	DefaultLimit     = 10
	MaxLimit         = 100
	DefaultTimeframe = domain.Timeframe7D
)

// Definitions returns the MCP tool descriptors in registration order.
func Definitions() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(NameListMarkets,
			mcp.WithDescription("List prediction markets with optional status filtering and pagination."),
			mcp.WithString("status",
				mcp.Description("Filter markets by lifecycle status."),
				mcp.Enum("open", "closed", "resolved"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of markets to return."),
				mcp.DefaultNumber(DefaultLimit),
				mcp.Min(1),
				mcp.Max(MaxLimit),
			),
			mcp.WithNumber("offset",
				mcp.Description("Number of markets to skip for pagination."),
				mcp.DefaultNumber(0),
				mcp.Min(0),
			),
		),
		mcp.NewTool(NameGetMarketInfo,
			mcp.WithDescription("Get detailed information about a specific market, looked up by ID or slug."),
			mcp.WithString("market_id",
				mcp.Required(),
				mcp.Description("Market ID or URL slug."),
			),
		),
		mcp.NewTool(NameGetMarketPrices,
			mcp.WithDescription("Get current outcome prices and implied probabilities for a market."),
			mcp.WithString("market_id",
				mcp.Required(),
				mcp.Description("Market ID or URL slug."),
			),
		),
		mcp.NewTool(NameGetMarketHistory,
			mcp.WithDescription("Get historical price data for a market over a timeframe."),
			mcp.WithString("market_id",
				mcp.Required(),
				mcp.Description("Market ID or URL slug."),
			),
			mcp.WithString("timeframe",
				mcp.Description("History window."),
				mcp.Enum("1d", "7d", "30d", "all"),
				mcp.DefaultString(string(DefaultTimeframe)),
			),
		),
	}
}

// ListMarketsArgs are the validated arguments of the list-markets tool.
type ListMarketsArgs struct {
	Status domain.MarketStatus // empty means all statuses
	Limit  int
	Offset int
}

// MarketArgs are the validated arguments of the single-market tools.
type MarketArgs struct {
	MarketID string
}

// HistoryArgs are the validated arguments of the get-market-history tool.
type HistoryArgs struct {
	MarketID  string
	Timeframe domain.Timeframe
}

// ParseListMarkets validates list-markets arguments and fills defaults.
func ParseListMarkets(args map[string]any) (ListMarketsArgs, error) {
	out := ListMarketsArgs{Limit: DefaultLimit}

	if raw, ok := args["status"]; ok {
		s, err := stringArg("status", raw)
		if err != nil {
			return ListMarketsArgs{}, err
		}
		if s != "" {
			if !domain.ValidStatus(s) {
				return ListMarketsArgs{}, domain.NewValidationError("status",
					"must be one of open, closed, resolved; got %q", s)
			}
			out.Status = domain.MarketStatus(s)
		}
	}

	if raw, ok := args["limit"]; ok {
		n, err := intArg("limit", raw)
		if err != nil {
			return ListMarketsArgs{}, err
		}
		if n < 1 || n > MaxLimit {
			return ListMarketsArgs{}, domain.NewValidationError("limit",
				"must be between 1 and %d; got %d", MaxLimit, n)
		}
		out.Limit = n
	}

	if raw, ok := args["offset"]; ok {
		n, err := intArg("offset", raw)
		if err != nil {
			return ListMarketsArgs{}, err
		}
		if n < 0 {
			return ListMarketsArgs{}, domain.NewValidationError("offset",
				"must be non-negative; got %d", n)
		}
		out.Offset = n
	}

	return out, nil
}

// ParseMarket validates the market_id argument shared by get-market-info and
// get-market-prices.
func ParseMarket(args map[string]any) (MarketArgs, error) {
	id, err := requiredString(args, "market_id")
	if err != nil {
		return MarketArgs{}, err
	}
	return MarketArgs{MarketID: id}, nil
}

// ParseHistory validates get-market-history arguments and fills defaults.
func ParseHistory(args map[string]any) (HistoryArgs, error) {
	id, err := requiredString(args, "market_id")
	if err != nil {
		return HistoryArgs{}, err
	}

	out := HistoryArgs{MarketID: id, Timeframe: DefaultTimeframe}

	if raw, ok := args["timeframe"]; ok {
		s, err := stringArg("timeframe", raw)
		if err != nil {
			return HistoryArgs{}, err
		}
		if s != "" {
			if !domain.ValidTimeframe(s) {
				return HistoryArgs{}, domain.NewValidationError("timeframe",
					"must be one of 1d, 7d, 30d, all; got %q", s)
			}
			out.Timeframe = domain.Timeframe(s)
		}
	}

	return out, nil
}

func requiredString(args map[string]any, name string) (string, error) {
	raw, ok := args[name]
	if !ok {
		return "", domain.NewValidationError(name, "is required")
	}
	s, err := stringArg(name, raw)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", domain.NewValidationError(name, "must not be empty")
	}
	return s, nil
}

func stringArg(name string, raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", domain.NewValidationError(name, "must be a string; got %T", raw)
	}
	return s, nil
}

// intArg accepts JSON numbers, which arrive as float64, and rejects
// fractional values.
func intArg(name string, raw any) (int, error) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, domain.NewValidationError(name, "must be an integer; got %v", v)
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, domain.NewValidationError(name, "must be an integer; got %T", raw)
	}
}
