package usecase_test

import (
	"testing"

	"adlens/internal/domain"
	"adlens/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatio(t *testing.T) {
	assert.Nil(t, usecase.Ratio(5, 0))
	assert.Nil(t, usecase.Ratio(0, 0))

	v := usecase.Ratio(10, 4)
	require.NotNil(t, v)
	assert.Equal(t, 2.5, *v)
}

func TestDerivedRates(t *testing.T) {
	ctr := usecase.CTR(3, 30)
	require.NotNil(t, ctr)
	assert.InDelta(t, 10.0, *ctr, 1e-9)
	assert.Nil(t, usecase.CTR(3, 0))

	cpc := usecase.CPC(300, 3)
	require.NotNil(t, cpc)
	assert.InDelta(t, 100.0, *cpc, 1e-9)
	assert.Nil(t, usecase.CPC(300, 0))

	cpm := usecase.CPM(300, 30)
	require.NotNil(t, cpm)
	assert.InDelta(t, 10000.0, *cpm, 1e-9)
	assert.Nil(t, usecase.CPM(300, 0))
}

func TestComputeTrend(t *testing.T) {
	zero := usecase.ComputeTrend([]float64{0, 0})
	assert.Equal(t, domain.TrendZero, zero.Kind)
	require.NotNil(t, zero.Pct)
	assert.Equal(t, 0.0, *zero.Pct)

	inf := usecase.ComputeTrend([]float64{0, 5})
	assert.Equal(t, domain.TrendInfinite, inf.Kind)
	assert.Nil(t, inf.Pct)

	down := usecase.ComputeTrend([]float64{4, 2})
	assert.Equal(t, domain.TrendPercent, down.Kind)
	require.NotNil(t, down.Pct)
	assert.InDelta(t, -50.0, *down.Pct, 1e-9)

	empty := usecase.ComputeTrend(nil)
	assert.Equal(t, domain.TrendZero, empty.Kind)
}

func TestBuildKPI(t *testing.T) {
	kpi := usecase.BuildKPI(150, 100)
	assert.Equal(t, 150.0, kpi.Current)
	assert.Equal(t, 100.0, kpi.Previous)
	assert.Equal(t, domain.TrendPercent, kpi.Trend.Kind)
	require.NotNil(t, kpi.Trend.Pct)
	assert.InDelta(t, 50.0, *kpi.Trend.Pct, 1e-9)
}
