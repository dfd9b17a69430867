package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyquery/polymarket-mcp/internal/domain"
	"github.com/polyquery/polymarket-mcp/internal/platform/polymarket"
)

type fakeSource struct {
	listResult []domain.Market
	lastQuery  polymarket.ListQuery
	listCalls  int

	byID   map[string]domain.Market
	bySlug map[string]domain.Market

	idCalls   int
	slugCalls int
}

func (f *fakeSource) ListMarkets(_ context.Context, q polymarket.ListQuery) ([]domain.Market, error) {
	f.listCalls++
	f.lastQuery = q
	return f.listResult, nil
}

func (f *fakeSource) GetMarket(_ context.Context, id string) (domain.Market, error) {
	f.idCalls++
	m, ok := f.byID[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("fake: %w", domain.ErrNotFound)
	}
	return m, nil
}

func (f *fakeSource) GetMarketBySlug(_ context.Context, slug string) (domain.Market, error) {
	f.slugCalls++
	m, ok := f.bySlug[slug]
	if !ok {
		return domain.Market{}, fmt.Errorf("fake: %w", domain.ErrNotFound)
	}
	return m, nil
}

type fakeHistory struct {
	points []domain.HistoryPoint
	calls  int
	token  string
}

func (f *fakeHistory) GetPricesHistory(_ context.Context, tokenID string, _ domain.Timeframe) ([]domain.HistoryPoint, error) {
	f.calls++
	f.token = tokenID
	out := make([]domain.HistoryPoint, len(f.points))
	copy(out, f.points)
	return out, nil
}

type fakeMarketCache struct {
	byID    map[string]domain.Market
	sets    int
	lastSet domain.Market
}

func (f *fakeMarketCache) Set(_ context.Context, m domain.Market) error {
	f.sets++
	f.lastSet = m
	return nil
}

func (f *fakeMarketCache) Get(_ context.Context, id string) (domain.Market, error) {
	m, ok := f.byID[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarketCache) GetBySlug(_ context.Context, slug string) (domain.Market, error) {
	for _, m := range f.byID {
		if m.Slug == slug {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarketCache) Invalidate(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

type fakePriceCache struct {
	prices map[string]float64
}

func (f *fakePriceCache) SetPrice(_ context.Context, tokenID string, price float64, _ time.Time) error {
	f.prices[tokenID] = price
	return nil
}

func (f *fakePriceCache) GetPrice(_ context.Context, tokenID string) (float64, time.Time, error) {
	p, ok := f.prices[tokenID]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, time.Now(), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func market(id, slug string, status domain.MarketStatus) domain.Market {
	return domain.Market{
		ID:            id,
		Question:      "Question " + id,
		Slug:          slug,
		Status:        status,
		Outcomes:      []string{"Yes", "No"},
		OutcomePrices: []float64{0.65, 0.35},
		TokenIDs:      []string{"tok-" + id + "-yes", "tok-" + id + "-no"},
	}
}

func TestListMarketsPassesPageThrough(t *testing.T) {
	src := &fakeSource{listResult: []domain.Market{market("1", "m-1", domain.MarketStatusOpen)}}
	svc := NewMarketService(src, &fakeHistory{}, nil, nil, testLogger())

	got, err := svc.ListMarkets(context.Background(), domain.MarketStatusOpen, 10, 20)
	require.NoError(t, err)

	assert.Len(t, got, 1)
	assert.Equal(t, polymarket.ListQuery{
		Status: domain.MarketStatusOpen,
		Limit:  10,
		Offset: 20,
	}, src.lastQuery)
}

func TestListMarketsRefinesResolved(t *testing.T) {
	src := &fakeSource{listResult: []domain.Market{
		market("1", "m-1", domain.MarketStatusClosed),
		market("2", "m-2", domain.MarketStatusResolved),
		market("3", "m-3", domain.MarketStatusClosed),
		market("4", "m-4", domain.MarketStatusResolved),
	}}
	svc := NewMarketService(src, &fakeHistory{}, nil, nil, testLogger())

	got, err := svc.ListMarkets(context.Background(), domain.MarketStatusResolved, 10, 0)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "4", got[1].ID)
	// Refinement over-fetches the whole window from offset zero.
	assert.Equal(t, 0, src.lastQuery.Offset)
	assert.Equal(t, maxListWindow, src.lastQuery.Limit)
}

// pagingSource honors Limit and Offset the way the real Gamma API does.
type pagingSource struct {
	fakeSource
	all []domain.Market
}

func (f *pagingSource) ListMarkets(_ context.Context, q polymarket.ListQuery) ([]domain.Market, error) {
	f.listCalls++
	f.lastQuery = q

	out := f.all
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func TestListMarketsRefinementFillsPage(t *testing.T) {
	src := &pagingSource{}
	for i := 1; i <= 20; i++ {
		status := domain.MarketStatusClosed
		if i%2 == 0 {
			status = domain.MarketStatusResolved
		}
		id := fmt.Sprintf("%d", i)
		src.all = append(src.all, market(id, "m-"+id, status))
	}
	svc := NewMarketService(src, &fakeHistory{}, nil, nil, testLogger())

	got, err := svc.ListMarkets(context.Background(), domain.MarketStatusResolved, 10, 0)
	require.NoError(t, err)

	// 10 resolved markets exist upstream; a page-sized upstream fetch would
	// surface only half of them.
	require.Len(t, got, 10)
	for _, m := range got {
		assert.Equal(t, domain.MarketStatusResolved, m.Status)
	}
	assert.Equal(t, maxListWindow, src.lastQuery.Limit)
	assert.Equal(t, 0, src.lastQuery.Offset)
}

func TestListMarketsOffsetBeyondFiltered(t *testing.T) {
	src := &fakeSource{listResult: []domain.Market{
		market("1", "m-1", domain.MarketStatusClosed),
	}}
	svc := NewMarketService(src, &fakeHistory{}, nil, nil, testLogger())

	got, err := svc.ListMarkets(context.Background(), domain.MarketStatusClosed, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetMarketByID(t *testing.T) {
	m := market("253591", "us-election", domain.MarketStatusOpen)
	src := &fakeSource{byID: map[string]domain.Market{"253591": m}}
	svc := NewMarketService(src, &fakeHistory{}, nil, nil, testLogger())

	got, err := svc.GetMarket(context.Background(), "253591")
	require.NoError(t, err)

	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, 1, src.idCalls)
	assert.Equal(t, 0, src.slugCalls)
}

func TestGetMarketNumericFallsBackToSlug(t *testing.T) {
	m := market("9", "2024", domain.MarketStatusOpen)
	src := &fakeSource{
		byID:   map[string]domain.Market{},
		bySlug: map[string]domain.Market{"2024": m},
	}
	svc := NewMarketService(src, &fakeHistory{}, nil, nil, testLogger())

	got, err := svc.GetMarket(context.Background(), "2024")
	require.NoError(t, err)

	assert.Equal(t, "9", got.ID)
	assert.Equal(t, 1, src.idCalls)
	assert.Equal(t, 1, src.slugCalls)
}

func TestGetMarketSlugSkipsIDLookup(t *testing.T) {
	m := market("9", "us-election", domain.MarketStatusOpen)
	src := &fakeSource{bySlug: map[string]domain.Market{"us-election": m}}
	svc := NewMarketService(src, &fakeHistory{}, nil, nil, testLogger())

	got, err := svc.GetMarket(context.Background(), "us-election")
	require.NoError(t, err)

	assert.Equal(t, "9", got.ID)
	assert.Equal(t, 0, src.idCalls)
	assert.Equal(t, 1, src.slugCalls)
}

func TestGetMarketNotFound(t *testing.T) {
	src := &fakeSource{}
	svc := NewMarketService(src, &fakeHistory{}, nil, nil, testLogger())

	_, err := svc.GetMarket(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The failed reference travels with the error.
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.Ref)
}

func TestGetMarketUsesCache(t *testing.T) {
	m := market("253591", "us-election", domain.MarketStatusOpen)
	cache := &fakeMarketCache{byID: map[string]domain.Market{"253591": m}}
	src := &fakeSource{}
	svc := NewMarketService(src, &fakeHistory{}, cache, nil, testLogger())

	got, err := svc.GetMarket(context.Background(), "253591")
	require.NoError(t, err)

	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, 0, src.idCalls)
	assert.Equal(t, 0, src.slugCalls)
}

func TestGetMarketBackfillsCache(t *testing.T) {
	m := market("253591", "us-election", domain.MarketStatusOpen)
	cache := &fakeMarketCache{byID: map[string]domain.Market{}}
	src := &fakeSource{byID: map[string]domain.Market{"253591": m}}
	svc := NewMarketService(src, &fakeHistory{}, cache, nil, testLogger())

	_, err := svc.GetMarket(context.Background(), "253591")
	require.NoError(t, err)

	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, "253591", cache.lastSet.ID)
}

func TestGetMarketPrices(t *testing.T) {
	m := market("1", "m-1", domain.MarketStatusOpen)
	src := &fakeSource{byID: map[string]domain.Market{"1": m}}
	svc := NewMarketService(src, &fakeHistory{}, nil, nil, testLogger())

	_, points, err := svc.GetMarketPrices(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, []domain.PricePoint{
		{Outcome: "Yes", Price: 0.65},
		{Outcome: "No", Price: 0.35},
	}, points)
}

func TestGetMarketPricesPrefersLiveFeed(t *testing.T) {
	m := market("1", "m-1", domain.MarketStatusOpen)
	src := &fakeSource{byID: map[string]domain.Market{"1": m}}
	prices := &fakePriceCache{prices: map[string]float64{"tok-1-yes": 0.71}}
	svc := NewMarketService(src, &fakeHistory{}, nil, prices, testLogger())

	_, points, err := svc.GetMarketPrices(context.Background(), "1")
	require.NoError(t, err)

	assert.InDelta(t, 0.71, points[0].Price, 1e-9)
	assert.InDelta(t, 0.35, points[1].Price, 1e-9)
}

func TestGetMarketPricesTruncatesMismatchedArrays(t *testing.T) {
	m := market("1", "m-1", domain.MarketStatusOpen)
	m.OutcomePrices = []float64{0.65}
	src := &fakeSource{byID: map[string]domain.Market{"1": m}}
	svc := NewMarketService(src, &fakeHistory{}, nil, nil, testLogger())

	_, points, err := svc.GetMarketPrices(context.Background(), "1")
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestGetMarketHistoryNewestFirst(t *testing.T) {
	m := market("1", "m-1", domain.MarketStatusOpen)
	src := &fakeSource{byID: map[string]domain.Market{"1": m}}
	now := time.Date(2024, 10, 3, 12, 0, 0, 0, time.UTC)
	hist := &fakeHistory{points: []domain.HistoryPoint{
		{Timestamp: now.Add(-3 * time.Hour), Price: 0.60},
		{Timestamp: now.Add(-2 * time.Hour), Price: 0.62},
		{Timestamp: now.Add(-1 * time.Hour), Price: 0.64},
	}}
	svc := NewMarketService(src, hist, nil, nil, testLogger())
	svc.now = func() time.Time { return now }

	_, points, err := svc.GetMarketHistory(context.Background(), "1", domain.Timeframe7D)
	require.NoError(t, err)

	require.Len(t, points, 3)
	assert.InDelta(t, 0.64, points[0].Price, 1e-9)
	assert.InDelta(t, 0.60, points[2].Price, 1e-9)
	assert.Equal(t, "tok-1-yes", hist.token)
}

func TestGetMarketHistoryDropsPointsOutsideWindow(t *testing.T) {
	m := market("1", "m-1", domain.MarketStatusOpen)
	src := &fakeSource{byID: map[string]domain.Market{"1": m}}
	now := time.Date(2024, 10, 3, 12, 0, 0, 0, time.UTC)
	hist := &fakeHistory{points: []domain.HistoryPoint{
		{Timestamp: now.Add(-30 * time.Hour), Price: 0.50},
		{Timestamp: now.Add(-2 * time.Hour), Price: 0.62},
	}}
	svc := NewMarketService(src, hist, nil, nil, testLogger())
	svc.now = func() time.Time { return now }

	_, points, err := svc.GetMarketHistory(context.Background(), "1", domain.Timeframe1D)
	require.NoError(t, err)

	require.Len(t, points, 1)
	assert.InDelta(t, 0.62, points[0].Price, 1e-9)
}

func TestGetMarketHistoryNoTokens(t *testing.T) {
	m := market("1", "m-1", domain.MarketStatusOpen)
	m.TokenIDs = nil
	src := &fakeSource{byID: map[string]domain.Market{"1": m}}
	svc := NewMarketService(src, &fakeHistory{}, nil, nil, testLogger())

	_, _, err := svc.GetMarketHistory(context.Background(), "1", domain.Timeframe7D)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
