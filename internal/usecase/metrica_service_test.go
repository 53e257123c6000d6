package usecase_test

import (
	"context"
	"testing"

	"adlens/internal/domain"
	"adlens/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dayRow(day string, metrics ...float64) domain.StatsRow {
	return domain.StatsRow{Dimensions: []domain.Dimension{{Name: day}}, Metrics: metrics}
}

func TestRegroupByPeriodDayPassthrough(t *testing.T) {
	rows := []domain.StatsRow{
		dayRow("2024-06-01 00:00:00", 5),
		dayRow("2024-06-02", 7),
	}

	points := usecase.RegroupByPeriod(rows, usecase.GranularityDay)

	require.Len(t, points, 2)
	assert.Equal(t, "2024-06-01", points[0].Period)
	assert.Equal(t, []float64{5}, points[0].Metrics)
}

func TestRegroupByPeriodWeek(t *testing.T) {
	rows := []domain.StatsRow{
		dayRow("2024-01-01", 5, 1), // ISO week 2024-W01
		dayRow("2024-01-07", 7, 2), // same ISO week
		dayRow("2024-01-08", 3, 1), // next week
	}

	points := usecase.RegroupByPeriod(rows, usecase.GranularityWeek)

	require.Len(t, points, 2)
	assert.Equal(t, "2024-W01", points[0].Period)
	assert.Equal(t, []float64{12, 3}, points[0].Metrics)
	assert.Equal(t, "2024-W02", points[1].Period)
}

func TestRegroupByPeriodMonthQuarterYear(t *testing.T) {
	rows := []domain.StatsRow{
		dayRow("2024-01-15", 5),
		dayRow("2024-02-15", 7),
		dayRow("2024-04-01", 2),
		dayRow("2025-01-01", 1),
	}

	months := usecase.RegroupByPeriod(rows, usecase.GranularityMonth)
	require.Len(t, months, 4)
	assert.Equal(t, "2024-01", months[0].Period)

	quarters := usecase.RegroupByPeriod(rows, usecase.GranularityQuarter)
	require.Len(t, quarters, 3)
	assert.Equal(t, "2024-Q1", quarters[0].Period)
	assert.Equal(t, []float64{12}, quarters[0].Metrics)
	assert.Equal(t, "2024-Q2", quarters[1].Period)

	years := usecase.RegroupByPeriod(rows, usecase.GranularityYear)
	require.Len(t, years, 2)
	assert.Equal(t, "2024", years[0].Period)
	assert.Equal(t, []float64{14}, years[0].Metrics)
}

func TestRegroupByPeriodSkipsBadDates(t *testing.T) {
	rows := []domain.StatsRow{
		dayRow("not a date", 5),
		dayRow("2024-01-15", 7),
	}
	points := usecase.RegroupByPeriod(rows, usecase.GranularityMonth)
	require.Len(t, points, 1)
}

func TestMetricaServiceTimeSeriesDefaults(t *testing.T) {
	metrica := &fakeMetrica{
		stats: func(q domain.StatsQuery) (*domain.StatsResponse, error) {
			return &domain.StatsResponse{Data: []domain.StatsRow{dayRow("2024-06-01", 5)}}, nil
		},
	}
	svc := usecase.NewMetricaService(metrica, testLogger, testMetrics)

	out, err := svc.TimeSeries(context.Background(), "100", "2024-06-01", "2024-06-02", "", "")
	require.NoError(t, err)

	assert.Equal(t, "ym:s:visits", out.Metric)
	assert.Equal(t, usecase.GranularityDay, out.Granularity)
	require.Len(t, out.Data, 1)

	require.Len(t, metrica.statsSeen, 1)
	assert.Equal(t, "ym:s:visits", metrica.statsSeen[0].Metrics)
	assert.Equal(t, "ym:s:date", metrica.statsSeen[0].Dimensions)
}

func TestMetricaServiceTopReport(t *testing.T) {
	metrica := &fakeMetrica{
		stats: func(q domain.StatsQuery) (*domain.StatsResponse, error) {
			return &domain.StatsResponse{Data: []domain.StatsRow{
				{
					Dimensions: []domain.Dimension{{Name: "summer", ID: "utm1"}, {Name: "banner-a"}},
					Metrics:    []float64{42, 75},
				},
			}}, nil
		},
	}
	svc := usecase.NewMetricaService(metrica, testLogger, testMetrics)

	out, err := svc.UTMCampaigns(context.Background(), "100", "2024-06-01", "2024-06-02", 0)
	require.NoError(t, err)

	require.Len(t, out.Rows, 1)
	assert.Equal(t, "summer / banner-a", out.Rows[0].Name)
	assert.Equal(t, "utm1", out.Rows[0].ID)
	assert.Equal(t, 42.0, out.Rows[0].Visits)
	assert.Equal(t, 75.0, out.Rows[0].AvgDurationSec)

	// the default limit applies when none is given
	require.Len(t, metrica.statsSeen, 1)
	assert.Equal(t, 50, metrica.statsSeen[0].Limit)
	assert.Equal(t, "-ym:s:visits", metrica.statsSeen[0].Sort)
}

func TestMetricaServiceGeoLevels(t *testing.T) {
	metrica := &fakeMetrica{}
	svc := usecase.NewMetricaService(metrica, testLogger, testMetrics)

	_, err := svc.Geo(context.Background(), "100", "2024-06-01", "2024-06-02", "city", 10)
	require.NoError(t, err)
	_, err = svc.Geo(context.Background(), "100", "2024-06-01", "2024-06-02", "", 10)
	require.NoError(t, err)

	require.Len(t, metrica.statsSeen, 2)
	assert.Equal(t, "ym:s:geoCity", metrica.statsSeen[0].Dimensions)
	assert.Equal(t, "ym:s:geoCountry", metrica.statsSeen[1].Dimensions)
}

func TestMetricaServiceCounterSummary(t *testing.T) {
	metrica := &fakeMetrica{
		counters: []domain.Counter{{ID: 100, Name: "Site"}},
		goals:    map[string][]domain.Goal{"100": {{ID: 101, Name: "Order"}}},
	}
	svc := usecase.NewMetricaService(metrica, testLogger, testMetrics)

	out, err := svc.CounterSummary(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "Site", out.Counter.Name)
	require.Len(t, out.Goals, 1)

	_, err = svc.CounterSummary(context.Background(), "200")
	assert.Error(t, err)
}
