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

// Metrica Stat API metric names used by the overview
var baseMetricaMetrics = []string{
	"ym:s:visits",
	"ym:s:users",
	"ym:s:bounceRate",
	"ym:s:pageDepth",
	"ym:s:avgVisitDurationSeconds",
}

// per-goal breakdown in the all-goals mode is capped to bound the size
// of a single stats request
const maxGoalBreakdown = 7

// OverviewRequest selects the account, counter and date range of one
// reconciliation run.
type OverviewRequest struct {
	DateFrom    string
	DateTo      string
	CounterID   string
	ClientLogin string
	GoalIDs     []string
}

// OverviewService builds the full Direct vs Metrica reconciliation
// dataset for one request. Everything is computed in memory from
// freshly fetched reports; nothing is persisted.
type OverviewService struct {
	direct   domain.DirectClient
	metrica  domain.MetricaClient
	classify TypeClassifier
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// creates a new overview service
func NewOverviewService(
	direct domain.DirectClient,
	metrica domain.MetricaClient,
	classify TypeClassifier,
	log *logger.Logger,
	m *metrics.Metrics,
) *OverviewService {
	if classify == nil {
		classify = DefaultTypeClassifier
	}
	return &OverviewService{
		direct:   direct,
		metrica:  metrica,
		classify: classify,
		logger:   log,
		metrics:  m,
		now:      time.Now,
	}
}

// replaces the clock, used in tests
func (s *OverviewService) WithClock(now func() time.Time) *OverviewService {
	s.now = now
	return s
}

// per-day accumulator for the base Metrica report
type metricaDayAccum struct {
	Visits      float64
	Users       float64
	BounceRate  float64
	PageDepth   float64
	AvgDuration float64
	Leads       float64
	GoalReaches map[string]float64
}

// Build fetches both sides over the current and comparison periods and
// assembles the overview. Individual Metrica report failures degrade to
// warnings; only caller contract violations and a failed Direct report
// fetch are hard errors.
func (s *OverviewService) Build(ctx context.Context, req OverviewRequest) (*domain.Overview, error) {
	start := s.now()
	log := s.logger.WithContext(ctx)

	if strings.TrimSpace(req.DateFrom) == "" || strings.TrimSpace(req.DateTo) == "" {
		return nil, fmt.Errorf("date_from and date_to are required (YYYY-MM-DD)")
	}
	from, err := time.Parse(dayFormat, req.DateFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid date_from %q: %w", req.DateFrom, err)
	}
	to, err := time.Parse(dayFormat, req.DateTo)
	if err != nil {
		return nil, fmt.Errorf("invalid date_to %q: %w", req.DateTo, err)
	}

	var warnings []string
	today := s.now().UTC().Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)
	if !to.Before(today) {
		warnings = append(warnings, fmt.Sprintf(
			"date_to adjusted from %s to %s (current day data is often incomplete for Direct/Metrica)",
			to.Format(dayFormat), yesterday.Format(dayFormat)))
		to = yesterday
	}
	if to.Before(from) {
		return nil, fmt.Errorf("date_to must be >= date_from (after excluding the current day)")
	}

	dayCount := int(to.Sub(from).Hours()/24) + 1
	prevTo := from.AddDate(0, 0, -1)
	prevFrom := prevTo.AddDate(0, 0, -(dayCount - 1))

	dateFrom := from.Format(dayFormat)
	dateTo := to.Format(dayFormat)
	prevDateFrom := prevFrom.Format(dayFormat)
	prevDateTo := prevTo.Format(dayFormat)

	currentDays, err := EnumerateDays(dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	prevDays, _ := EnumerateDays(prevDateFrom, prevDateTo)

	goalIDs := cleanGoalIDs(req.GoalIDs)
	goalsMode := GoalsModeAll
	if len(goalIDs) > 0 {
		goalsMode = GoalsModeSelected
	}

	ov := &domain.Overview{
		Meta: domain.OverviewMeta{
			DateFrom:     dateFrom,
			DateTo:       dateTo,
			PrevDateFrom: prevDateFrom,
			PrevDateTo:   prevDateTo,
			CounterID:    req.CounterID,
			ClientLogin:  req.ClientLogin,
			GoalsMode:    goalsMode,
			GeneratedAt:  s.now().UTC().Format(time.RFC3339),
		},
		Warnings: []string{},
	}
	ov.Warnings = append(ov.Warnings, warnings...)

	// One Direct report covers both periods.
	directByDate, directByCampaign, campaigns, err := s.fetchDirect(ctx, req.ClientLogin, prevDateFrom, dateTo, &ov.Warnings)
	if err != nil {
		s.metrics.RecordOverviewBuilt("error")
		return nil, err
	}
	ov.Direct = BuildDirectSeries(directByDate, currentDays)
	ov.DirectPrev = BuildDirectSeries(directByDate, prevDays)

	// Metrica base series.
	metricaByDate := s.fetchMetricaBase(ctx, req.CounterID, prevDateFrom, dateTo, goalsMode, goalIDs, &ov.Warnings)

	// All-goals conversions when no explicit goals were requested.
	var goalNames map[string]string
	goalIDsEffective := goalIDs
	if goalsMode == GoalsModeAll && req.CounterID != "" {
		var reachesByDate map[string]map[string]float64
		goalNames, reachesByDate = s.fetchAllGoals(ctx, req.CounterID, prevDateFrom, dateTo, &ov.Warnings)
		mergeGoalReaches(metricaByDate, reachesByDate)
		goalIDsEffective = sortedGoalIDs(goalNames)
	}
	if goalsMode == GoalsModeSelected && req.CounterID != "" {
		goalNames = s.fetchGoalNames(ctx, req.CounterID)
	}

	ov.Metrica = buildMetricaSeries(metricaByDate, currentDays)
	ov.MetricaPrev = buildMetricaSeries(metricaByDate, prevDays)
	ov.Goals = buildGoalsBlock(metricaByDate, currentDays, goalsMode, goalIDsEffective, goalNames)

	// Traffic sources and Direct-attributed traffic.
	pickedEngine := ""
	if req.CounterID != "" {
		pickedEngine = s.buildSources(ctx, req.CounterID, prevDateFrom, dateTo, currentDays, goalsMode, goalIDs, goalIDsEffective, metricaByDate, ov)
	}

	// UTMCampaign split: per-type and per-campaign attribution.
	if req.CounterID != "" && len(campaigns) > 0 {
		s.buildSplit(ctx, req.CounterID, prevDateFrom, dateTo, currentDays, pickedEngine, goalsMode, goalIDs, campaigns, ov)
	}

	ov.Campaigns = buildCampaignOverviews(directByCampaign, campaigns, currentDays, ov.Split)
	ov.KPIs = domain.OverviewKPIs{
		Impressions: BuildKPI(ov.Direct.Totals.Impressions, ov.DirectPrev.Totals.Impressions),
		Clicks:      BuildKPI(ov.Direct.Totals.Clicks, ov.DirectPrev.Totals.Clicks),
		CostRub:     BuildKPI(ov.Direct.Totals.CostRub, ov.DirectPrev.Totals.CostRub),
		Visits:      BuildKPI(ov.Metrica.Totals.Visits, ov.MetricaPrev.Totals.Visits),
		Leads:       BuildKPI(ov.Metrica.Totals.Leads, ov.MetricaPrev.Totals.Leads),
	}
	if ov.Split != nil && ov.Split.Available {
		ov.Coverage = domain.Coverage{
			VisitsClassifiedPct: ov.Split.Meta.ClassifiedSharePct,
			LeadsClassifiedPct:  ov.Split.Meta.ClassifiedLeadsSharePct,
		}
		if ov.Split.Meta.ClassifiedSharePct != nil {
			s.metrics.RecordJoinCoverage(domain.MethodUTMCampaign, *ov.Split.Meta.ClassifiedSharePct)
		}
	}

	s.metrics.RecordOverviewBuilt("ok")
	log.WithFields(map[string]any{
		"date_from": dateFrom,
		"date_to":   dateTo,
		"campaigns": len(campaigns),
		"warnings":  len(ov.Warnings),
		"duration":  s.now().Sub(start),
	}).Info("Overview built")
	return ov, nil
}

func (s *OverviewService) fetchDirect(ctx context.Context, login, dateFrom, dateTo string, warnings *[]string) (map[string]Bucket, map[string]map[string]Bucket, map[string]domain.Campaign, error) {
	fetchStart := s.now()
	payload, err := s.direct.Report(ctx, login, domain.ReportRequest{
		ReportType: "CAMPAIGN_PERFORMANCE_REPORT",
		ReportName: fmt.Sprintf("overview_%s_%s", dateFrom, dateTo),
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		FieldNames: []string{"Date", "CampaignId", "Impressions", "Clicks", "Cost"},
	})
	if err != nil {
		s.metrics.RecordReportFetch("direct", "error", s.now().Sub(fetchStart))
		return nil, nil, nil, fmt.Errorf("failed to fetch Direct report: %w", err)
	}
	s.metrics.RecordReportFetch("direct", "ok", s.now().Sub(fetchStart))

	rows, _ := ParseDelimited(payload.Raw, "\t", payload.Columns, 0)
	s.metrics.RecordRowsParsed("direct", len(rows))
	byDate, byCampaign := Accumulate(rows, "Date", []string{"Impressions", "Clicks", "Cost"}, "CampaignId")

	campaigns := map[string]domain.Campaign{}
	items, err := s.direct.ListCampaigns(ctx, login, nil)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("campaigns list unavailable: %v", err))
	}
	names := map[string]string{}
	for _, item := range items {
		names[fmt.Sprintf("%d", item.ID)] = item.Name
	}
	for cid, byDay := range byCampaign {
		var impressions, clicks, cost float64
		for _, b := range byDay {
			impressions += b["Impressions"]
			clicks += b["Clicks"]
			cost += b["Cost"]
		}
		// Campaigns with no activity at all are skipped to keep the
		// payload small.
		if impressions <= 0 && clicks <= 0 && cost <= 0 {
			continue
		}
		name := names[cid]
		if name == "" {
			name = "#" + cid
		}
		short, sub := SplitCampaignName(name)
		campaigns[cid] = domain.Campaign{
			ID:        cid,
			Name:      name,
			ShortName: short,
			SubName:   sub,
			Type:      s.classify(name),
		}
	}
	return byDate, byCampaign, campaigns, nil
}

func (s *OverviewService) fetchMetricaBase(ctx context.Context, counterID, dateFrom, dateTo, goalsMode string, goalIDs []string, warnings *[]string) map[string]*metricaDayAccum {
	byDate := map[string]*metricaDayAccum{}
	if counterID == "" {
		*warnings = append(*warnings, "counter_id not set; Metrica side skipped")
		return byDate
	}

	metricsList := append([]string{}, baseMetricaMetrics...)
	if goalsMode == GoalsModeSelected {
		for _, gid := range goalIDs {
			metricsList = append(metricsList, fmt.Sprintf("ym:s:goal%sreaches", gid))
		}
	}
	fetchStart := s.now()
	resp, err := s.metrica.Stats(ctx, domain.StatsQuery{
		CounterID:  counterID,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Metrics:    strings.Join(metricsList, ","),
		Dimensions: "ym:s:date",
		Sort:       "ym:s:date",
		Limit:      100000,
	})
	if err != nil {
		s.metrics.RecordReportFetch("metrica", "error", s.now().Sub(fetchStart))
		*warnings = append(*warnings, fmt.Sprintf("Metrica report failed: %v", err))
		return byDate
	}
	s.metrics.RecordReportFetch("metrica", "ok", s.now().Sub(fetchStart))

	for _, row := range resp.Data {
		if len(row.Dimensions) == 0 || len(row.Metrics) == 0 {
			continue
		}
		day := DayKey(row.Dimensions[0].Name)
		if day == "" {
			continue
		}
		at := func(i int) float64 {
			if i < len(row.Metrics) {
				return row.Metrics[i]
			}
			return 0
		}
		acc, ok := byDate[day]
		if !ok {
			acc = &metricaDayAccum{GoalReaches: map[string]float64{}}
			byDate[day] = acc
		}
		// duplicate date rows merge: counts sum, rates stay visit-weighted
		visits := at(0)
		if total := acc.Visits + visits; total > 0 {
			acc.BounceRate = (acc.BounceRate*acc.Visits + at(2)*visits) / total
			acc.PageDepth = (acc.PageDepth*acc.Visits + at(3)*visits) / total
			acc.AvgDuration = (acc.AvgDuration*acc.Visits + at(4)*visits) / total
		}
		acc.Visits += visits
		acc.Users += at(1)
		if goalsMode == GoalsModeSelected {
			for i, gid := range goalIDs {
				v := at(len(baseMetricaMetrics) + i)
				acc.GoalReaches[gid] += v
				acc.Leads += v
			}
		}
	}
	return byDate
}

func (s *OverviewService) fetchAllGoals(ctx context.Context, counterID, dateFrom, dateTo string, warnings *[]string) (map[string]string, map[string]map[string]float64) {
	resp, err := s.metrica.Stats(ctx, domain.StatsQuery{
		CounterID:  counterID,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Metrics:    "ym:s:sumGoalReachesAny",
		Dimensions: "ym:s:date,ym:s:goal",
		Sort:       "ym:s:date",
		Limit:      100000,
	})
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("Metrica goals(all) failed: %v", err))
		return nil, nil
	}
	names := map[string]string{}
	byDateGoal := map[string]map[string]float64{}
	for _, row := range resp.Data {
		if len(row.Dimensions) < 2 || len(row.Metrics) < 1 {
			continue
		}
		day := DayKey(row.Dimensions[0].Name)
		gid := strings.TrimSpace(row.Dimensions[1].ID)
		if day == "" || gid == "" {
			continue
		}
		if name := strings.TrimSpace(row.Dimensions[1].Name); name != "" {
			names[gid] = name
		}
		m := byDateGoal[day]
		if m == nil {
			m = map[string]float64{}
			byDateGoal[day] = m
		}
		m[gid] += row.Metrics[0]
	}
	return names, byDateGoal
}

func (s *OverviewService) fetchGoalNames(ctx context.Context, counterID string) map[string]string {
	goals, err := s.metrica.Goals(ctx, counterID)
	if err != nil {
		return nil
	}
	names := map[string]string{}
	for _, g := range goals {
		names[fmt.Sprintf("%d", g.ID)] = g.Name
	}
	return names
}

func (s *OverviewService) buildSources(ctx context.Context, counterID, dateFrom, dateTo string, days []string, goalsMode string, goalIDs, goalIDsEffective []string, metricaByDate map[string]*metricaDayAccum, ov *domain.Overview) string {
	resp, err := s.metrica.Stats(ctx, domain.StatsQuery{
		CounterID:  counterID,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Metrics:    "ym:s:visits",
		Dimensions: "ym:s:date,ym:s:lastsignTrafficSource,ym:s:lastsignSourceEngine",
		Sort:       "ym:s:date",
		Limit:      100000,
	})
	if err != nil {
		ov.Warnings = append(ov.Warnings, fmt.Sprintf("Metrica sources report failed: %v", err))
		return ""
	}
	picked := PickDirectEngine(resp.Data)
	block := &domain.SourcesBlock{
		Available: len(resp.Data) > 0,
		Rows:      BuildSourceRows(resp.Data),
	}

	// A second report carries bounce and goal metrics so the Direct
	// slice gets engagement and lead accounting.
	directGoalIDs := goalIDs
	if goalsMode == GoalsModeAll {
		directGoalIDs = topGoalsByReaches(metricaByDate, days, goalIDsEffective, maxGoalBreakdown)
	}
	metricsList := []string{"ym:s:visits", "ym:s:bounceRate"}
	if goalsMode == GoalsModeSelected {
		for _, gid := range directGoalIDs {
			metricsList = append(metricsList, fmt.Sprintf("ym:s:goal%sreaches", gid))
		}
	} else {
		metricsList = append(metricsList, "ym:s:sumGoalReachesAny")
	}
	attributed, err := s.metrica.Stats(ctx, domain.StatsQuery{
		CounterID:  counterID,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Metrics:    strings.Join(metricsList, ","),
		Dimensions: "ym:s:date,ym:s:lastsignTrafficSource,ym:s:lastsignSourceEngine",
		Sort:       "ym:s:date",
		Limit:      100000,
	})
	if err != nil {
		ov.Warnings = append(ov.Warnings, fmt.Sprintf("Metrica direct attribution failed: %v", err))
	} else {
		series := BuildDirectAttributed(attributed.Data, days, picked, goalsMode, directGoalIDs)
		block.DirectAttributed = &series
	}
	ov.Sources = block
	return picked
}

func (s *OverviewService) buildSplit(ctx context.Context, counterID, dateFrom, dateTo string, days []string, pickedEngine, goalsMode string, goalIDs []string, campaigns map[string]domain.Campaign, ov *domain.Overview) {
	metricsList := []string{"ym:s:visits", "ym:s:bounceRate"}
	if goalsMode == GoalsModeSelected {
		for _, gid := range goalIDs {
			metricsList = append(metricsList, fmt.Sprintf("ym:s:goal%sreaches", gid))
		}
	} else {
		metricsList = append(metricsList, "ym:s:sumGoalReachesAny")
	}
	base := domain.StatsQuery{
		CounterID:  counterID,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Metrics:    strings.Join(metricsList, ","),
		Dimensions: "ym:s:date,ym:s:UTMCampaign",
		Sort:       "ym:s:date",
		Limit:      100000,
	}

	var resp *domain.StatsResponse
	var err error
	directOnly := false
	if pickedEngine != "" {
		// Prefer a Direct-only report via the engine filter; some
		// counters reject that dimension combination, so fall back to
		// the unfiltered report.
		filtered := base
		filtered.Dimensions = "ym:s:date,ym:s:UTMCampaign,ym:s:lastsignSourceEngine"
		filtered.Filters = "ym:s:lastsignSourceEngine==" + MetricaFilterQuote(pickedEngine)
		resp, err = s.metrica.Stats(ctx, filtered)
		if err == nil {
			directOnly = true
		} else {
			ov.Warnings = append(ov.Warnings, fmt.Sprintf("UTMCampaign engine filter rejected, using unfiltered report: %v", err))
			resp, err = s.metrica.Stats(ctx, base)
		}
	} else {
		resp, err = s.metrica.Stats(ctx, base)
	}
	if err != nil {
		ov.Warnings = append(ov.Warnings, fmt.Sprintf("Metrica UTMCampaign split failed: %v", err))
		return
	}

	in := UTMJoinInput{
		Days:               days,
		Rows:               resp.Data,
		Campaigns:          campaigns,
		GoalsMode:          goalsMode,
		GoalIDs:            goalIDs,
		ReportIsDirectOnly: directOnly,
	}
	split := JoinByUTMType(in, s.classify)
	byCampaign := JoinByUTMCampaign(in)
	split.ByCampaign = byCampaign.ByCampaign
	split.Meta.MappedCampaigns = byCampaign.Meta.MappedCampaigns
	ov.Split = split
}

func buildMetricaSeries(byDate map[string]*metricaDayAccum, days []string) domain.MetricaSeries {
	s := domain.MetricaSeries{
		Available: len(byDate) > 0,
		Daily:     make([]domain.MetricaDay, 0, len(days)),
	}
	var bounce, depth, duration WeightedBucket
	for _, day := range days {
		acc := byDate[day]
		if acc == nil {
			acc = &metricaDayAccum{}
		}
		d := domain.MetricaDay{
			Date:           day,
			Visits:         acc.Visits,
			Users:          acc.Users,
			BounceRate:     acc.BounceRate,
			PageDepth:      acc.PageDepth,
			AvgDurationSec: acc.AvgDuration,
			Engaged:        EngagedVisits(acc.Visits, acc.BounceRate),
			Leads:          acc.Leads,
		}
		s.Daily = append(s.Daily, d)
		s.Totals.Visits += d.Visits
		s.Totals.Users += d.Users
		s.Totals.Engaged += d.Engaged
		s.Totals.Leads += d.Leads
		bounce.Add(d.BounceRate, d.Visits)
		depth.Add(d.PageDepth, d.Visits)
		duration.Add(d.AvgDurationSec, d.Visits)
	}
	s.Totals.BounceRate = bounce.Avg()
	s.Totals.PageDepth = depth.Avg()
	s.Totals.AvgDurationSec = duration.Avg()
	return s
}

func buildGoalsBlock(byDate map[string]*metricaDayAccum, days []string, goalsMode string, goalIDs []string, names map[string]string) *domain.GoalsBlock {
	if len(goalIDs) == 0 {
		return nil
	}
	block := &domain.GoalsBlock{Mode: goalsMode}
	totals := map[string]float64{}
	for _, day := range days {
		acc := byDate[day]
		if acc == nil {
			continue
		}
		for gid, v := range acc.GoalReaches {
			totals[gid] += v
		}
		block.TotalReaches += acc.Leads
	}
	ids := goalIDs
	if goalsMode == GoalsModeAll && len(ids) > maxGoalBreakdown {
		ids = topN(totals, ids, maxGoalBreakdown)
	}
	for _, gid := range ids {
		name := names[gid]
		if name == "" {
			name = "Goal " + gid
		}
		block.Goals = append(block.Goals, domain.GoalBreakdown{ID: gid, Name: name, Reaches: totals[gid]})
	}
	return block
}

func buildCampaignOverviews(byCampaign map[string]map[string]Bucket, campaigns map[string]domain.Campaign, days []string, split *domain.UTMSplit) []domain.CampaignOverview {
	ids := make([]string, 0, len(campaigns))
	for cid := range campaigns {
		ids = append(ids, cid)
	}
	sort.Strings(ids)
	out := make([]domain.CampaignOverview, 0, len(ids))
	for _, cid := range ids {
		c := campaigns[cid]
		co := domain.CampaignOverview{
			ID:        cid,
			Name:      c.Name,
			ShortName: c.ShortName,
			SubName:   c.SubName,
			Type:      c.Type,
			Direct:    BuildDirectSeries(byCampaign[cid], days),
		}
		if split != nil {
			if traffic, ok := split.ByCampaign[cid]; ok {
				co.Traffic = &traffic
			}
		}
		out = append(out, co)
	}
	return out
}

func cleanGoalIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if v := strings.TrimSpace(id); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func mergeGoalReaches(byDate map[string]*metricaDayAccum, reaches map[string]map[string]float64) {
	for day, goals := range reaches {
		acc := byDate[day]
		if acc == nil {
			acc = &metricaDayAccum{GoalReaches: map[string]float64{}}
			byDate[day] = acc
		}
		if acc.GoalReaches == nil {
			acc.GoalReaches = map[string]float64{}
		}
		for gid, v := range goals {
			acc.GoalReaches[gid] += v
			acc.Leads += v
		}
	}
}

func sortedGoalIDs(names map[string]string) []string {
	ids := make([]string, 0, len(names))
	for gid := range names {
		ids = append(ids, gid)
	}
	sort.Strings(ids)
	return ids
}

func topGoalsByReaches(byDate map[string]*metricaDayAccum, days []string, goalIDs []string, limit int) []string {
	totals := map[string]float64{}
	for _, day := range days {
		acc := byDate[day]
		if acc == nil {
			continue
		}
		for _, gid := range goalIDs {
			totals[gid] += acc.GoalReaches[gid]
		}
	}
	return topN(totals, goalIDs, limit)
}

func topN(totals map[string]float64, ids []string, limit int) []string {
	out := append([]string{}, ids...)
	sort.Slice(out, func(i, j int) bool {
		if totals[out[i]] != totals[out[j]] {
			return totals[out[i]] > totals[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
