// Package mcpserver exposes the market queries over the Model Context
// Protocol. The Dispatcher routes tool calls to the service layer, turns
// errors into stable user-facing messages, and writes best-effort audit
// records; server.go adapts it onto the MCP transports.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/polyquery/polymarket-mcp/internal/domain"
	"github.com/polyquery/polymarket-mcp/internal/format"
	"github.com/polyquery/polymarket-mcp/internal/tools"
)

// MarketQueries is the service surface the dispatcher routes to.
type MarketQueries interface {
	ListMarkets(ctx context.Context, status domain.MarketStatus, limit, offset int) ([]domain.Market, error)
	GetMarket(ctx context.Context, ref string) (domain.Market, error)
	GetMarketPrices(ctx context.Context, ref string) (domain.Market, []domain.PricePoint, error)
	GetMarketHistory(ctx context.Context, ref string, tf domain.Timeframe) (domain.Market, []domain.HistoryPoint, error)
}

// Dispatcher routes MCP tool calls to the market service. Arguments are
// validated before any upstream work happens, so a bad call costs nothing
// upstream.
type Dispatcher struct {
	svc    MarketQueries
	audit  domain.InvocationStore // may be nil
	logger *slog.Logger

	now func() time.Time
}

// NewDispatcher creates a Dispatcher. audit may be nil to disable the
// invocation log.
func NewDispatcher(svc MarketQueries, audit domain.InvocationStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		svc:    svc,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// Invoke executes one tool call and returns the formatted response text. The
// returned error is a domain error; Message turns it into the text sent back
// to the MCP client.
func (d *Dispatcher) Invoke(ctx context.Context, tool string, args map[string]any) (string, error) {
	start := d.now()

	text, err := d.dispatch(ctx, tool, args)
	elapsed := d.now().Sub(start)

	outcome := classify(err)
	d.logger.InfoContext(ctx, "mcpserver: tool call",
		slog.String("tool", tool),
		slog.String("outcome", string(outcome)),
		slog.Duration("duration", elapsed),
	)
	d.record(ctx, tool, args, outcome, elapsed)

	return text, err
}

func (d *Dispatcher) dispatch(ctx context.Context, tool string, args map[string]any) (string, error) {
	switch tool {
	case tools.NameListMarkets:
		parsed, err := tools.ParseListMarkets(args)
		if err != nil {
			return "", err
		}
		markets, err := d.svc.ListMarkets(ctx, parsed.Status, parsed.Limit, parsed.Offset)
		if err != nil {
			return "", err
		}
		return format.MarketList(markets), nil

	case tools.NameGetMarketInfo:
		parsed, err := tools.ParseMarket(args)
		if err != nil {
			return "", err
		}
		m, err := d.svc.GetMarket(ctx, parsed.MarketID)
		if err != nil {
			return "", err
		}
		return format.MarketInfo(m), nil

	case tools.NameGetMarketPrices:
		parsed, err := tools.ParseMarket(args)
		if err != nil {
			return "", err
		}
		m, prices, err := d.svc.GetMarketPrices(ctx, parsed.MarketID)
		if err != nil {
			return "", err
		}
		return format.MarketPrices(m, prices), nil

	case tools.NameGetMarketHistory:
		parsed, err := tools.ParseHistory(args)
		if err != nil {
			return "", err
		}
		m, points, err := d.svc.GetMarketHistory(ctx, parsed.MarketID, parsed.Timeframe)
		if err != nil {
			return "", err
		}
		return format.MarketHistory(m, points), nil

	default:
		return "", fmt.Errorf("mcpserver: %w: %s", domain.ErrUnknownTool, tool)
	}
}

// record writes the audit row. Failures are logged and swallowed; the audit
// log never affects a tool response.
func (d *Dispatcher) record(ctx context.Context, tool string, args map[string]any, outcome domain.InvocationOutcome, elapsed time.Duration) {
	if d.audit == nil {
		return
	}

	rawArgs, err := json.Marshal(args)
	if err != nil {
		rawArgs = []byte("{}")
	}

	inv := domain.Invocation{
		ID:        uuid.NewString(),
		Tool:      tool,
		Arguments: rawArgs,
		Outcome:   outcome,
		Duration:  elapsed,
		CreatedAt: d.now().UTC(),
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := d.audit.Record(recordCtx, inv); err != nil {
		d.logger.WarnContext(ctx, "mcpserver: audit record failed",
			slog.String("tool", tool),
			slog.String("error", err.Error()),
		)
	}
}

// classify maps a dispatch error to the audit outcome.
func classify(err error) domain.InvocationOutcome {
	if err == nil {
		return domain.InvocationOK
	}

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return domain.InvocationInvalid
	case errors.Is(err, domain.ErrNotFound):
		return domain.InvocationNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return domain.InvocationAuthError
	case errors.Is(err, domain.ErrRateLimited):
		return domain.InvocationRateLimit
	case errors.Is(err, domain.ErrTimeout):
		return domain.InvocationTimeout
	case errors.Is(err, domain.ErrMalformedResponse):
		return domain.InvocationParseError
	case errors.Is(err, domain.ErrUnknownTool):
		return domain.InvocationUnknown
	default:
		return domain.InvocationError
	}
}

// Message renders a dispatch error as the text returned to the MCP client.
// Wording is stable; clients and prompts key off these strings.
func Message(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, domain.ErrNotFound):
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return fmt.Sprintf("Market %q not found. Check the market ID or slug and try again.", nf.Ref)
		}
		return "Market not found. Check the market ID or slug and try again."
	case errors.Is(err, domain.ErrRateLimited):
		return "Polymarket is rate limiting requests. Please retry in a few seconds."
	case errors.Is(err, domain.ErrUnauthorized):
		return "Polymarket rejected the request credentials."
	case errors.Is(err, domain.ErrTimeout):
		return "The Polymarket API did not respond in time. Please retry."
	case errors.Is(err, domain.ErrMalformedResponse):
		return "Polymarket returned data that could not be parsed."
	case errors.Is(err, domain.ErrUnknownTool):
		return err.Error()
	default:
		return "Internal error while handling the request."
	}
}
