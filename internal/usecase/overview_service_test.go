package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"adlens/internal/domain"
	"adlens/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(value string) func() time.Time {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return ts }
}

func overviewFixture() (*fakeDirect, *fakeMetrica) {
	direct := &fakeDirect{
		campaigns: []domain.CampaignItem{{ID: 123456, Name: "Brand - Поиск"}},
		report: func(req domain.ReportRequest) (*domain.ReportPayload, error) {
			return &domain.ReportPayload{
				Raw: "Date\tCampaignId\tImpressions\tClicks\tCost\n" +
					"2024-05-30\t123456\t5\t1\t50\n" +
					"2024-06-01\t123456\t10\t1\t100\n" +
					"2024-06-02\t123456\t20\t2\t200\n",
				Ready: true,
			}, nil
		},
	}

	baseRow := func(day string, metrics ...float64) domain.StatsRow {
		return domain.StatsRow{Dimensions: []domain.Dimension{{Name: day}}, Metrics: metrics}
	}
	goalRow := func(day, goalID, goalName string, reaches float64) domain.StatsRow {
		return domain.StatsRow{
			Dimensions: []domain.Dimension{{Name: day}, {ID: goalID, Name: goalName}},
			Metrics:    []float64{reaches},
		}
	}
	utmRow := func(day, utm, engine string, metrics ...float64) domain.StatsRow {
		return domain.StatsRow{
			Dimensions: []domain.Dimension{{Name: day}, {Name: utm}, {Name: engine}},
			Metrics:    metrics,
		}
	}

	metrica := &fakeMetrica{}
	metrica.stats = func(q domain.StatsQuery) (*domain.StatsResponse, error) {
		switch {
		case q.Dimensions == "ym:s:date":
			return &domain.StatsResponse{Data: []domain.StatsRow{
				baseRow("2024-05-31", 4, 3, 50, 2, 60),
				baseRow("2024-06-01", 5, 4, 40, 2, 60),
				baseRow("2024-06-02", 7, 6, 20, 3, 80),
			}}, nil
		case q.Dimensions == "ym:s:date,ym:s:goal":
			return &domain.StatsResponse{Data: []domain.StatsRow{
				goalRow("2024-06-01", "101", "Lead form", 2),
				goalRow("2024-06-02", "101", "Lead form", 1),
			}}, nil
		case strings.Contains(q.Dimensions, "lastsignTrafficSource"):
			if q.Metrics == "ym:s:visits" {
				return &domain.StatsResponse{Data: []domain.StatsRow{
					sourceRow("2024-06-01", "ad", "", "Яндекс.Директ", 6),
					sourceRow("2024-06-01", "organic", "", "Яндекс", 10),
				}}, nil
			}
			return &domain.StatsResponse{Data: []domain.StatsRow{
				sourceRow("2024-06-01", "ad", "", "Яндекс.Директ", 6, 50, 1),
			}}, nil
		case strings.Contains(q.Dimensions, "UTMCampaign"):
			return &domain.StatsResponse{Data: []domain.StatsRow{
				utmRow("2024-06-01", "campaign-123456", "Яндекс.Директ", 5, 40, 1),
				utmRow("2024-06-02", "campaign-123456", "Яндекс.Директ", 6, 20, 1),
				utmRow("2024-06-01", "unknown", "Яндекс.Директ", 1, 0, 0),
			}}, nil
		}
		return &domain.StatsResponse{}, nil
	}
	return direct, metrica
}

func TestOverviewBuild(t *testing.T) {
	direct, metrica := overviewFixture()
	svc := usecase.NewOverviewService(direct, metrica, nil, testLogger, testMetrics).
		WithClock(fixedClock("2024-07-01T12:00:00Z"))

	ov, err := svc.Build(context.Background(), usecase.OverviewRequest{
		DateFrom:    "2024-06-01",
		DateTo:      "2024-06-02",
		CounterID:   "100",
		ClientLogin: "client-login",
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-06-01", ov.Meta.DateFrom)
	assert.Equal(t, "2024-06-02", ov.Meta.DateTo)
	assert.Equal(t, "2024-05-30", ov.Meta.PrevDateFrom)
	assert.Equal(t, "2024-05-31", ov.Meta.PrevDateTo)
	assert.Equal(t, usecase.GoalsModeAll, ov.Meta.GoalsMode)

	// Direct side, one report covering both periods
	require.Len(t, direct.reportRequests, 1)
	assert.Equal(t, "2024-05-30", direct.reportRequests[0].DateFrom)
	assert.Equal(t, "2024-06-02", direct.reportRequests[0].DateTo)
	require.Len(t, ov.Direct.Daily, 2)
	assert.Equal(t, 30.0, ov.Direct.Totals.Impressions)
	assert.Equal(t, 300.0, ov.Direct.Totals.CostRub)
	assert.Equal(t, 5.0, ov.DirectPrev.Totals.Impressions)

	// Metrica side with merged all-goals leads
	assert.Equal(t, 12.0, ov.Metrica.Totals.Visits)
	assert.Equal(t, 3.0, ov.Metrica.Totals.Leads)
	assert.Equal(t, 4.0, ov.MetricaPrev.Totals.Visits)

	// KPI trends against the comparison period
	assert.Equal(t, 30.0, ov.KPIs.Impressions.Current)
	assert.Equal(t, 5.0, ov.KPIs.Impressions.Previous)
	require.NotNil(t, ov.KPIs.Impressions.Trend.Pct)
	assert.InDelta(t, 500.0, *ov.KPIs.Impressions.Trend.Pct, 1e-9)
	assert.Equal(t, domain.TrendInfinite, ov.KPIs.Leads.Trend.Kind)

	// Goals block
	require.NotNil(t, ov.Goals)
	assert.Equal(t, usecase.GoalsModeAll, ov.Goals.Mode)
	assert.Equal(t, 3.0, ov.Goals.TotalReaches)
	require.Len(t, ov.Goals.Goals, 1)
	assert.Equal(t, "Lead form", ov.Goals.Goals[0].Name)

	// Sources block with the Direct-attributed slice
	require.NotNil(t, ov.Sources)
	assert.True(t, ov.Sources.Available)
	require.NotNil(t, ov.Sources.DirectAttributed)
	assert.Equal(t, 6.0, ov.Sources.DirectAttributed.Totals.Visits)

	// UTMCampaign split with remainder accounting
	require.NotNil(t, ov.Split)
	assert.True(t, ov.Split.Meta.ReportIsDirectOnly)
	assert.Equal(t, 11.0, ov.Split.Meta.ClassifiedVisits)
	require.NotNil(t, ov.Split.Meta.TotalDirectVisits)
	assert.Equal(t, 12.0, *ov.Split.Meta.TotalDirectVisits)
	require.Len(t, ov.Split.Meta.TopUnclassifiedUTM, 1)
	assert.Equal(t, "unknown", ov.Split.Meta.TopUnclassifiedUTM[0].UTMCampaign)

	require.NotNil(t, ov.Coverage.VisitsClassifiedPct)
	assert.InDelta(t, 100*11.0/12.0, *ov.Coverage.VisitsClassifiedPct, 1e-9)

	// Campaign breakdown carries both sides
	require.Len(t, ov.Campaigns, 1)
	c := ov.Campaigns[0]
	assert.Equal(t, "123456", c.ID)
	assert.Equal(t, "Brand - Поиск", c.Name)
	assert.Equal(t, domain.CampaignTypeSearch, c.Type)
	assert.Equal(t, 30.0, c.Direct.Totals.Impressions)
	require.NotNil(t, c.Traffic)
	assert.Equal(t, 11.0, c.Traffic.Totals.Visits)

	assert.Empty(t, ov.Warnings)
}

func TestOverviewBuildClampsCurrentDay(t *testing.T) {
	direct, metrica := overviewFixture()
	svc := usecase.NewOverviewService(direct, metrica, nil, testLogger, testMetrics).
		WithClock(fixedClock("2024-06-10T15:00:00Z"))

	ov, err := svc.Build(context.Background(), usecase.OverviewRequest{
		DateFrom:  "2024-06-01",
		DateTo:    "2024-06-15",
		CounterID: "100",
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-06-09", ov.Meta.DateTo)
	require.NotEmpty(t, ov.Warnings)
	assert.Contains(t, ov.Warnings[0], "date_to adjusted")
}

func TestOverviewBuildRejectsEmptyRangeAfterClamp(t *testing.T) {
	direct, metrica := overviewFixture()
	svc := usecase.NewOverviewService(direct, metrica, nil, testLogger, testMetrics).
		WithClock(fixedClock("2024-06-10T15:00:00Z"))

	_, err := svc.Build(context.Background(), usecase.OverviewRequest{
		DateFrom:  "2024-06-10",
		DateTo:    "2024-06-12",
		CounterID: "100",
	})
	require.Error(t, err)
}

func TestOverviewBuildValidation(t *testing.T) {
	direct, metrica := overviewFixture()
	svc := usecase.NewOverviewService(direct, metrica, nil, testLogger, testMetrics)

	_, err := svc.Build(context.Background(), usecase.OverviewRequest{DateTo: "2024-06-02"})
	assert.Error(t, err)

	_, err = svc.Build(context.Background(), usecase.OverviewRequest{DateFrom: "June 1", DateTo: "2024-06-02"})
	assert.Error(t, err)
}

func TestOverviewBuildSelectedGoals(t *testing.T) {
	direct := &fakeDirect{
		report: func(req domain.ReportRequest) (*domain.ReportPayload, error) {
			return &domain.ReportPayload{Ready: true}, nil
		},
	}
	metrica := &fakeMetrica{
		goals: map[string][]domain.Goal{"100": {{ID: 101, Name: "Order"}}},
		stats: func(q domain.StatsQuery) (*domain.StatsResponse, error) {
			if q.Dimensions == "ym:s:date" {
				// visits, users, bounce, depth, duration, goal101
				return &domain.StatsResponse{Data: []domain.StatsRow{
					{Dimensions: []domain.Dimension{{Name: "2024-06-01"}}, Metrics: []float64{10, 8, 30, 2, 45, 4}},
				}}, nil
			}
			return &domain.StatsResponse{}, nil
		},
	}
	svc := usecase.NewOverviewService(direct, metrica, nil, testLogger, testMetrics).
		WithClock(fixedClock("2024-07-01T12:00:00Z"))

	ov, err := svc.Build(context.Background(), usecase.OverviewRequest{
		DateFrom:  "2024-06-01",
		DateTo:    "2024-06-01",
		CounterID: "100",
		GoalIDs:   []string{"101"},
	})
	require.NoError(t, err)

	assert.Equal(t, usecase.GoalsModeSelected, ov.Meta.GoalsMode)
	assert.Equal(t, 4.0, ov.Metrica.Totals.Leads)
	require.NotNil(t, ov.Goals)
	require.Len(t, ov.Goals.Goals, 1)
	assert.Equal(t, "Order", ov.Goals.Goals[0].Name)
	assert.Equal(t, 4.0, ov.Goals.Goals[0].Reaches)

	// the base report must request the goal metric explicitly
	require.NotEmpty(t, metrica.statsSeen)
	assert.Contains(t, metrica.statsSeen[0].Metrics, "ym:s:goal101reaches")
}

func TestOverviewBuildMergesDuplicateDateRows(t *testing.T) {
	direct := &fakeDirect{
		report: func(req domain.ReportRequest) (*domain.ReportPayload, error) {
			return &domain.ReportPayload{Ready: true}, nil
		},
	}
	metrica := &fakeMetrica{
		stats: func(q domain.StatsQuery) (*domain.StatsResponse, error) {
			if q.Dimensions == "ym:s:date" {
				// same date twice: visits, users, bounce, depth, duration
				return &domain.StatsResponse{Data: []domain.StatsRow{
					{Dimensions: []domain.Dimension{{Name: "2024-06-01"}}, Metrics: []float64{10, 8, 50, 2, 60}},
					{Dimensions: []domain.Dimension{{Name: "2024-06-01"}}, Metrics: []float64{5, 4, 20, 3, 30}},
				}}, nil
			}
			return &domain.StatsResponse{}, nil
		},
	}
	svc := usecase.NewOverviewService(direct, metrica, nil, testLogger, testMetrics).
		WithClock(fixedClock("2024-07-01T12:00:00Z"))

	ov, err := svc.Build(context.Background(), usecase.OverviewRequest{
		DateFrom:  "2024-06-01",
		DateTo:    "2024-06-01",
		CounterID: "100",
	})
	require.NoError(t, err)

	require.Len(t, ov.Metrica.Daily, 1)
	day := ov.Metrica.Daily[0]
	assert.Equal(t, 15.0, day.Visits)
	assert.Equal(t, 12.0, day.Users)
	// rates merge visit-weighted: (50*10 + 20*5) / 15, (60*10 + 30*5) / 15
	assert.InDelta(t, 40.0, day.BounceRate, 1e-9)
	assert.InDelta(t, 50.0, day.AvgDurationSec, 1e-9)
}

func TestOverviewBuildWithoutCounter(t *testing.T) {
	direct, _ := overviewFixture()
	svc := usecase.NewOverviewService(direct, &fakeMetrica{}, nil, testLogger, testMetrics).
		WithClock(fixedClock("2024-07-01T12:00:00Z"))

	ov, err := svc.Build(context.Background(), usecase.OverviewRequest{
		DateFrom: "2024-06-01",
		DateTo:   "2024-06-02",
	})
	require.NoError(t, err)

	assert.False(t, ov.Metrica.Available)
	assert.Nil(t, ov.Split)

	var skipped bool
	for _, w := range ov.Warnings {
		if strings.Contains(w, "counter_id not set") {
			skipped = true
		}
	}
	assert.True(t, skipped)
}
