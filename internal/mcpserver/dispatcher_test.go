package mcpserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyquery/polymarket-mcp/internal/domain"
	"github.com/polyquery/polymarket-mcp/internal/tools"
)

type fakeQueries struct {
	calls int

	markets []domain.Market
	market  domain.Market
	prices  []domain.PricePoint
	history []domain.HistoryPoint
	err     error
}

func (f *fakeQueries) ListMarkets(context.Context, domain.MarketStatus, int, int) ([]domain.Market, error) {
	f.calls++
	return f.markets, f.err
}

func (f *fakeQueries) GetMarket(context.Context, string) (domain.Market, error) {
	f.calls++
	return f.market, f.err
}

func (f *fakeQueries) GetMarketPrices(context.Context, string) (domain.Market, []domain.PricePoint, error) {
	f.calls++
	return f.market, f.prices, f.err
}

func (f *fakeQueries) GetMarketHistory(context.Context, string, domain.Timeframe) (domain.Market, []domain.HistoryPoint, error) {
	f.calls++
	return f.market, f.history, f.err
}

type fakeAudit struct {
	records []domain.Invocation
}

func (f *fakeAudit) Record(_ context.Context, inv domain.Invocation) error {
	f.records = append(f.records, inv)
	return nil
}

func (f *fakeAudit) Recent(context.Context, int) ([]domain.Invocation, error) {
	return f.records, nil
}

func testDispatcher(svc *fakeQueries, audit domain.InvocationStore) *Dispatcher {
	return NewDispatcher(svc, audit, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInvokeListMarkets(t *testing.T) {
	svc := &fakeQueries{markets: []domain.Market{{
		ID:       "1",
		Question: "Will it rain tomorrow?",
		Status:   domain.MarketStatusOpen,
	}}}
	d := testDispatcher(svc, nil)

	text, err := d.Invoke(context.Background(), tools.NameListMarkets, map[string]any{})
	require.NoError(t, err)

	assert.Contains(t, text, "Available Markets:")
	assert.Contains(t, text, "Title: Will it rain tomorrow?")
	assert.Equal(t, 1, svc.calls)
}

func TestInvokeValidationErrorSkipsService(t *testing.T) {
	svc := &fakeQueries{}
	audit := &fakeAudit{}
	d := testDispatcher(svc, audit)

	_, err := d.Invoke(context.Background(), tools.NameGetMarketInfo, map[string]any{})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "market_id", verr.Field)
	assert.Zero(t, svc.calls)

	require.Len(t, audit.records, 1)
	assert.Equal(t, domain.InvocationInvalid, audit.records[0].Outcome)
}

func TestInvokeUnknownTool(t *testing.T) {
	d := testDispatcher(&fakeQueries{}, nil)

	_, err := d.Invoke(context.Background(), "get-weather", map[string]any{})
	assert.ErrorIs(t, err, domain.ErrUnknownTool)
}

func TestInvokeRecordsAudit(t *testing.T) {
	svc := &fakeQueries{market: domain.Market{ID: "1", Question: "Q"}}
	audit := &fakeAudit{}
	d := testDispatcher(svc, audit)

	_, err := d.Invoke(context.Background(), tools.NameGetMarketInfo, map[string]any{"market_id": "1"})
	require.NoError(t, err)

	require.Len(t, audit.records, 1)
	rec := audit.records[0]
	assert.Equal(t, tools.NameGetMarketInfo, rec.Tool)
	assert.Equal(t, domain.InvocationOK, rec.Outcome)
	assert.NotEmpty(t, rec.ID)
	assert.JSONEq(t, `{"market_id":"1"}`, string(rec.Arguments))
}

func TestInvokePropagatesServiceError(t *testing.T) {
	svc := &fakeQueries{err: fmt.Errorf("market_service: %w", domain.ErrRateLimited)}
	audit := &fakeAudit{}
	d := testDispatcher(svc, audit)

	_, err := d.Invoke(context.Background(), tools.NameGetMarketPrices, map[string]any{"market_id": "1"})

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	require.Len(t, audit.records, 1)
	assert.Equal(t, domain.InvocationRateLimit, audit.records[0].Outcome)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want domain.InvocationOutcome
	}{
		{nil, domain.InvocationOK},
		{domain.NewValidationError("limit", "too big"), domain.InvocationInvalid},
		{fmt.Errorf("x: %w", domain.ErrNotFound), domain.InvocationNotFound},
		{fmt.Errorf("x: %w", domain.ErrUnauthorized), domain.InvocationAuthError},
		{fmt.Errorf("x: %w", domain.ErrRateLimited), domain.InvocationRateLimit},
		{fmt.Errorf("x: %w", domain.ErrTimeout), domain.InvocationTimeout},
		{fmt.Errorf("x: %w", domain.ErrMalformedResponse), domain.InvocationParseError},
		{fmt.Errorf("x: %w", domain.ErrUnknownTool), domain.InvocationUnknown},
		{fmt.Errorf("boom"), domain.InvocationError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, classify(tc.err))
	}
}

func TestMessage(t *testing.T) {
	assert.Contains(t, Message(fmt.Errorf("x: %w", domain.ErrNotFound)), "Market not found")
	assert.Contains(t,
		Message(fmt.Errorf("x: %w", &domain.NotFoundError{Ref: "us-election"})),
		`Market "us-election" not found`,
	)
	assert.Contains(t, Message(fmt.Errorf("x: %w", domain.ErrRateLimited)), "rate limiting")
	assert.Contains(t, Message(fmt.Errorf("x: %w", domain.ErrTimeout)), "did not respond in time")
	assert.Contains(t, Message(domain.NewValidationError("limit", "must be between 1 and 100")), "limit")
	assert.Equal(t, "Internal error while handling the request.", Message(fmt.Errorf("boom")))
}
