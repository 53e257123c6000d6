package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"adlens/internal/domain"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"
)

// report granularities
const (
	GranularityDay     = "day"
	GranularityWeek    = "week"
	GranularityMonth   = "month"
	GranularityQuarter = "quarter"
	GranularityYear    = "year"
)

// MetricaService exposes the convenience Metrica reports: counters,
// counter summary, time series with regrouping and a few fixed top-N
// breakdowns.
type MetricaService struct {
	metrica domain.MetricaClient
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// creates a new Metrica report service
func NewMetricaService(metrica domain.MetricaClient, log *logger.Logger, m *metrics.Metrics) *MetricaService {
	return &MetricaService{metrica: metrica, logger: log, metrics: m}
}

func (s *MetricaService) Counters(ctx context.Context) ([]domain.Counter, error) {
	return s.metrica.Counters(ctx)
}

// CounterSummary returns one counter with its goals. Goals are best
// effort: a failed goals call leaves them empty instead of failing the
// summary.
func (s *MetricaService) CounterSummary(ctx context.Context, counterID string) (*domain.CounterSummary, error) {
	if counterID == "" {
		return nil, fmt.Errorf("counter_id is required")
	}
	counters, err := s.metrica.Counters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list counters: %w", err)
	}
	out := &domain.CounterSummary{}
	found := false
	for _, c := range counters {
		if fmt.Sprintf("%d", c.ID) == counterID {
			out.Counter = c
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("counter %s is not accessible", counterID)
	}
	if goals, err := s.metrica.Goals(ctx, counterID); err == nil {
		out.Goals = goals
	}
	return out, nil
}

// TimeSeries fetches one metric per day and regroups it to the
// requested granularity.
func (s *MetricaService) TimeSeries(ctx context.Context, counterID, dateFrom, dateTo, metric, granularity string) (*domain.TimeSeriesResult, error) {
	if counterID == "" || dateFrom == "" || dateTo == "" {
		return nil, fmt.Errorf("counter_id, date_from and date_to are required")
	}
	if metric == "" {
		metric = "ym:s:visits"
	}
	if granularity == "" {
		granularity = GranularityDay
	}
	resp, err := s.metrica.Stats(ctx, domain.StatsQuery{
		CounterID:  counterID,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Metrics:    metric,
		Dimensions: "ym:s:date",
		Sort:       "ym:s:date",
		Limit:      100000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time series: %w", err)
	}
	return &domain.TimeSeriesResult{
		CounterID:   counterID,
		Metric:      metric,
		Granularity: granularity,
		Data:        RegroupByPeriod(resp.Data, granularity),
	}, nil
}

// LandingPages returns the top landing pages by visits.
func (s *MetricaService) LandingPages(ctx context.Context, counterID, dateFrom, dateTo string, limit int) (*domain.TopReport, error) {
	return s.topReport(ctx, counterID, dateFrom, dateTo, []string{"ym:s:startURL"}, limit)
}

// UTMCampaigns returns the top UTM campaign/content pairs by visits.
func (s *MetricaService) UTMCampaigns(ctx context.Context, counterID, dateFrom, dateTo string, limit int) (*domain.TopReport, error) {
	return s.topReport(ctx, counterID, dateFrom, dateTo, []string{"ym:s:UTMCampaign", "ym:s:UTMContent"}, limit)
}

// Geo returns the top countries or cities by visits.
func (s *MetricaService) Geo(ctx context.Context, counterID, dateFrom, dateTo, level string, limit int) (*domain.TopReport, error) {
	dim := "ym:s:geoCountry"
	if level == "city" {
		dim = "ym:s:geoCity"
	}
	return s.topReport(ctx, counterID, dateFrom, dateTo, []string{dim}, limit)
}

// Devices returns visits by device category.
func (s *MetricaService) Devices(ctx context.Context, counterID, dateFrom, dateTo string, limit int) (*domain.TopReport, error) {
	return s.topReport(ctx, counterID, dateFrom, dateTo, []string{"ym:s:deviceCategory"}, limit)
}

func (s *MetricaService) topReport(ctx context.Context, counterID, dateFrom, dateTo string, dims []string, limit int) (*domain.TopReport, error) {
	if counterID == "" || dateFrom == "" || dateTo == "" {
		return nil, fmt.Errorf("counter_id, date_from and date_to are required")
	}
	if limit <= 0 {
		limit = 50
	}
	resp, err := s.metrica.Stats(ctx, domain.StatsQuery{
		CounterID:  counterID,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Metrics:    "ym:s:visits,ym:s:avgVisitDurationSeconds",
		Dimensions: strings.Join(dims, ","),
		Sort:       "-ym:s:visits",
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}
	out := &domain.TopReport{CounterID: counterID, Dimensions: dims}
	for _, row := range resp.Data {
		if len(row.Dimensions) == 0 || len(row.Metrics) == 0 {
			continue
		}
		parts := make([]string, 0, len(row.Dimensions))
		for _, d := range row.Dimensions {
			if d.Name != "" {
				parts = append(parts, d.Name)
			}
		}
		r := domain.TopRow{
			Name:   strings.Join(parts, " / "),
			ID:     row.Dimensions[0].ID,
			Visits: row.Metrics[0],
		}
		if len(row.Metrics) > 1 {
			r.AvgDurationSec = row.Metrics[1]
		}
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

// RegroupByPeriod sums daily rows into the requested period keys: ISO
// weeks as YYYY-Www, months as YYYY-MM, quarters as YYYY-Qn, years as
// YYYY. Day granularity passes rows through unchanged.
func RegroupByPeriod(rows []domain.StatsRow, granularity string) []domain.PeriodPoint {
	points := make([]domain.PeriodPoint, 0, len(rows))
	if granularity == GranularityDay {
		for _, row := range rows {
			if len(row.Dimensions) == 0 {
				continue
			}
			points = append(points, domain.PeriodPoint{
				Period:  DayKey(row.Dimensions[0].Name),
				Metrics: append([]float64{}, row.Metrics...),
			})
		}
		return points
	}

	buckets := map[string][]float64{}
	for _, row := range rows {
		if len(row.Dimensions) == 0 {
			continue
		}
		day := DayKey(row.Dimensions[0].Name)
		d, err := time.Parse(dayFormat, day)
		if err != nil {
			continue
		}
		key := periodKey(d, granularity)
		b := buckets[key]
		for i, v := range row.Metrics {
			if i < len(b) {
				b[i] += v
			} else {
				b = append(b, v)
			}
		}
		buckets[key] = b
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		points = append(points, domain.PeriodPoint{Period: k, Metrics: buckets[k]})
	}
	return points
}

func periodKey(d time.Time, granularity string) string {
	switch granularity {
	case GranularityWeek:
		year, week := d.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case GranularityMonth:
		return d.Format("2006-01")
	case GranularityQuarter:
		return fmt.Sprintf("%d-Q%d", d.Year(), (int(d.Month())-1)/3+1)
	case GranularityYear:
		return fmt.Sprintf("%d", d.Year())
	}
	return d.Format(dayFormat)
}
