package domain_test

import (
	"encoding/json"
	"testing"

	"adlens/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// undefined ratios must serialize as explicit nulls so consumers can
// tell "zero" apart from "undefined"
func TestUndefinedMetricsSerializeAsNull(t *testing.T) {
	t.Run("direct totals", func(t *testing.T) {
		data, err := json.Marshal(domain.DirectTotals{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"impressions":0,"clicks":0,"cost_rub":0,"ctr":null,"cpc":null,"cpm":null}`, string(data))
	})

	t.Run("metrica totals", func(t *testing.T) {
		data, err := json.Marshal(domain.MetricaTotals{})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"bounce_rate":null`)
		assert.Contains(t, string(data), `"page_depth":null`)
		assert.Contains(t, string(data), `"avg_duration_sec":null`)
	})

	t.Run("traffic totals", func(t *testing.T) {
		data, err := json.Marshal(domain.TrafficTotals{})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"bounce_rate":null`)
	})

	t.Run("join meta", func(t *testing.T) {
		data, err := json.Marshal(domain.JoinMeta{})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"classified_share_pct":null`)
		assert.Contains(t, string(data), `"classified_leads_share_pct":null`)
		assert.Contains(t, string(data), `"total_direct_visits":null`)
	})

	t.Run("coverage", func(t *testing.T) {
		data, err := json.Marshal(domain.Coverage{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"visits_classified_pct":null,"leads_classified_pct":null}`, string(data))
	})

	t.Run("compare totals", func(t *testing.T) {
		data, err := json.Marshal(domain.CompareTotals{})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"ctr":null`)
		assert.Contains(t, string(data), `"cpc":null`)
	})
}

// defined ratios serialize as plain numbers
func TestDefinedMetricsSerializeAsNumbers(t *testing.T) {
	ctr := 5.0
	data, err := json.Marshal(domain.DirectTotals{Impressions: 200, Clicks: 10, CTR: &ctr})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ctr":5`)
}

// an infinite trend carries no percentage at all
func TestInfiniteTrendOmitsPct(t *testing.T) {
	data, err := json.Marshal(domain.Trend{Kind: domain.TrendInfinite})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"inf"}`, string(data))
}
