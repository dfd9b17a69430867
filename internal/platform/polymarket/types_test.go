package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyquery/polymarket-mcp/internal/domain"
)

func TestFlexBool(t *testing.T) {
	var v struct {
		A flexBool `json:"a"`
		B flexBool `json:"b"`
		C flexBool `json:"c"`
	}
	err := json.Unmarshal([]byte(`{"a":true,"b":"true","c":"false"}`), &v)
	require.NoError(t, err)

	assert.True(t, bool(v.A))
	assert.True(t, bool(v.B))
	assert.False(t, bool(v.C))
}

func TestFlexFloat(t *testing.T) {
	var v struct {
		A flexFloat `json:"a"`
		B flexFloat `json:"b"`
		C flexFloat `json:"c"`
	}
	err := json.Unmarshal([]byte(`{"a":1.5,"b":"2.5","c":""}`), &v)
	require.NoError(t, err)

	assert.InDelta(t, 1.5, float64(v.A), 1e-9)
	assert.InDelta(t, 2.5, float64(v.B), 1e-9)
	assert.InDelta(t, 0, float64(v.C), 1e-9)
}

func TestMarketStatusDerivation(t *testing.T) {
	cases := []struct {
		name string
		m    APIMarket
		want domain.MarketStatus
	}{
		{"open", APIMarket{Closed: false}, domain.MarketStatusOpen},
		{"closed unresolved", APIMarket{Closed: true}, domain.MarketStatusClosed},
		{"resolved", APIMarket{Closed: true, UMAResolutionStatus: "resolved"}, domain.MarketStatusResolved},
		{"resolved mixed case", APIMarket{Closed: true, UMAResolutionStatus: "Resolved"}, domain.MarketStatusResolved},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.m.ToDomainMarket().Status)
		})
	}
}

func TestToDomainMarketToleratesBadArrays(t *testing.T) {
	m := APIMarket{
		ID:            "1",
		Outcomes:      "not json",
		OutcomePrices: "also not json",
		ClobTokenIDs:  "",
	}

	got := m.ToDomainMarket()
	assert.Empty(t, got.Outcomes)
	assert.Empty(t, got.OutcomePrices)
	assert.Empty(t, got.TokenIDs)
}
