package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"adlens/internal/domain"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"
)

// Logs API defaults. ym:s:yclid is not exposed on every counter, so the
// export asks for the start URL and the Direct banner attribution field
// and extracts the click ID from the URL as a fallback.
const (
	defaultLogsFields    = "ym:s:dateTime,ym:s:startURL,ym:s:lastDirectClickBanner"
	defaultYclidField    = "ym:s:yclid"
	defaultStartURLField = "ym:s:startURL"
	defaultBannerField   = "ym:s:lastDirectClickBanner"
	defaultClickIDField  = "ClickId"
	defaultMaxLogRows    = 200000
	maxBannerLookups     = 1000
)

// UTMJoinRequest selects one campaign to compare against its
// UTM-filtered Metrica visits.
type UTMJoinRequest struct {
	CampaignID  int64
	UTMCampaign string
	CounterID   string
	DateFrom    string
	DateTo      string
	ClientLogin string
}

// ClickJoinRequest drives a deterministic click-ID join between a
// Metrica Logs export and a Direct click report.
type ClickJoinRequest struct {
	CounterID   string
	DateFrom    string
	DateTo      string
	ClientLogin string

	// RequestID resumes a Logs export created by an earlier call.
	RequestID string

	LogsFields    string
	YclidField    string
	StartURLField string
	BannerField   string
	ClickIDField  string
	MaxRows       int
}

// JoinService runs the two cross-source join strategies on demand.
type JoinService struct {
	direct  domain.DirectClient
	metrica domain.MetricaClient
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// creates a new join service
func NewJoinService(direct domain.DirectClient, metrica domain.MetricaClient, log *logger.Logger, m *metrics.Metrics) *JoinService {
	return &JoinService{direct: direct, metrica: metrica, logger: log, metrics: m}
}

// ByUTM joins one campaign's Direct daily report with a UTM-filtered
// Metrica visits series on date. The UTM defaults to the campaign's
// display name when not given explicitly.
func (s *JoinService) ByUTM(ctx context.Context, req UTMJoinRequest) (*domain.UTMCompare, error) {
	if req.CampaignID <= 0 || req.CounterID == "" || req.DateFrom == "" || req.DateTo == "" {
		return nil, fmt.Errorf("campaign_id, counter_id, date_from and date_to are required")
	}
	log := s.logger.WithContext(ctx)

	utm := strings.TrimSpace(req.UTMCampaign)
	if utm == "" {
		items, err := s.direct.ListCampaigns(ctx, req.ClientLogin, []int64{req.CampaignID})
		if err == nil && len(items) > 0 {
			utm = strings.TrimSpace(items[0].Name)
		}
	}
	if utm == "" {
		return nil, fmt.Errorf("could not resolve utm_campaign; pass utm_campaign explicitly")
	}

	payload, err := s.direct.Report(ctx, req.ClientLogin, domain.ReportRequest{
		ReportType:  "CAMPAIGN_PERFORMANCE_REPORT",
		ReportName:  fmt.Sprintf("join_utm_%d_%s_%s", req.CampaignID, req.DateFrom, req.DateTo),
		DateFrom:    req.DateFrom,
		DateTo:      req.DateTo,
		FieldNames:  []string{"Date", "CampaignId", "Impressions", "Clicks", "Cost"},
		CampaignIDs: []int64{req.CampaignID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Direct report: %w", err)
	}
	rows, _ := ParseDelimited(payload.Raw, "\t", payload.Columns, 0)
	s.metrics.RecordRowsParsed("direct", len(rows))
	directByDate, _ := Accumulate(rows, "Date", []string{"Impressions", "Clicks", "Cost"}, "")

	stats, err := s.metrica.Stats(ctx, domain.StatsQuery{
		CounterID:  req.CounterID,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		Metrics:    "ym:s:visits",
		Dimensions: "ym:s:date",
		Filters:    "ym:s:UTMCampaign==" + MetricaFilterQuote(utm),
		Sort:       "ym:s:date",
		Limit:      100000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Metrica visits: %w", err)
	}
	visitsByDate := map[string]float64{}
	for _, row := range stats.Data {
		if len(row.Dimensions) == 0 || len(row.Metrics) == 0 {
			continue
		}
		if day := DayKey(row.Dimensions[0].Name); day != "" {
			visitsByDate[day] += row.Metrics[0]
		}
	}

	dates := map[string]struct{}{}
	for day := range directByDate {
		dates[day] = struct{}{}
	}
	for day := range visitsByDate {
		dates[day] = struct{}{}
	}
	allDates := make([]string, 0, len(dates))
	for day := range dates {
		allDates = append(allDates, day)
	}
	sort.Strings(allDates)

	out := &domain.UTMCompare{
		Available:  len(allDates) > 0,
		Method:     domain.MethodUTMCampaign,
		CampaignID: strconv.FormatInt(req.CampaignID, 10),
		UTM:        utm,
		Daily:      make([]domain.CompareDay, 0, len(allDates)),
	}
	for _, day := range allDates {
		b := directByDate[day]
		d := domain.CompareDay{
			Date:        day,
			Impressions: b["Impressions"],
			Clicks:      b["Clicks"],
			CostRub:     b["Cost"],
			Visits:      visitsByDate[day],
		}
		out.Daily = append(out.Daily, d)
		out.Totals.Impressions += d.Impressions
		out.Totals.Clicks += d.Clicks
		out.Totals.CostRub += d.CostRub
		out.Totals.Visits += d.Visits
	}
	out.Totals.CTR = CTR(out.Totals.Clicks, out.Totals.Impressions)
	out.Totals.CPC = CPC(out.Totals.CostRub, out.Totals.Clicks)

	log.WithFields(map[string]any{
		"campaign_id": req.CampaignID,
		"utm":         utm,
		"days":        len(out.Daily),
	}).Info("UTM join built")
	return out, nil
}

// ByClickID joins a Metrica Logs export against a Direct click report.
// A not-ready export is a pending result, not an error; callers poll
// again with the returned request ID.
func (s *JoinService) ByClickID(ctx context.Context, req ClickJoinRequest) (*domain.ClickJoin, error) {
	if req.CounterID == "" || req.DateFrom == "" || req.DateTo == "" {
		return nil, fmt.Errorf("counter_id, date_from and date_to are required")
	}
	log := s.logger.WithContext(ctx)
	applyClickJoinDefaults(&req)

	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		created, err := s.metrica.LogsCreate(ctx, req.CounterID, domain.LogsRequest{
			DateFrom: req.DateFrom,
			DateTo:   req.DateTo,
			Fields:   req.LogsFields,
			Source:   "visits",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logs export: %w", err)
		}
		requestID = created
	}

	info, err := s.metrica.LogsInfo(ctx, req.CounterID, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to check logs export %s: %w", requestID, err)
	}
	if info.Status != domain.LogsStatusProcessed {
		return &domain.ClickJoin{
			Pending:   true,
			RequestID: requestID,
			Method:    domain.MethodClickID,
			Warnings:  []string{fmt.Sprintf("logs export %s is %s; retry with request_id once processed", requestID, info.Status)},
		}, nil
	}

	logRows, err := s.downloadLogRows(ctx, req, requestID, info.Parts)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordRowsParsed("metrica_logs", len(logRows))

	result := &domain.ClickJoin{RequestID: requestID, Method: domain.MethodClickID}

	index, _, err := s.buildDirectClickIndex(ctx, req)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("click index unavailable: %v", err))
	}
	if len(index) > 0 {
		byCampaign, meta := JoinVisitsByClickID(logRows, index, req.YclidField, req.StartURLField)
		result.Available = true
		result.Meta = meta
		result.ByCampaign = s.campaignBuckets(ctx, req.ClientLogin, byCampaign)
	} else {
		if err := s.joinByBanner(ctx, req, logRows, result); err != nil {
			return nil, err
		}
	}

	if cleanErr := s.metrica.LogsClean(ctx, req.CounterID, requestID); cleanErr != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("logs cleanup failed: %v", cleanErr))
	}

	log.WithFields(map[string]any{
		"request_id": requestID,
		"method":     result.Method,
		"matched":    result.Meta.VisitsMatched,
		"total":      result.Meta.VisitsTotal,
	}).Info("Click join built")
	return result, nil
}

func applyClickJoinDefaults(req *ClickJoinRequest) {
	if req.LogsFields == "" {
		req.LogsFields = defaultLogsFields
	}
	if req.YclidField == "" {
		req.YclidField = defaultYclidField
	}
	if req.StartURLField == "" {
		req.StartURLField = defaultStartURLField
	}
	if req.BannerField == "" {
		req.BannerField = defaultBannerField
	}
	if req.ClickIDField == "" {
		req.ClickIDField = defaultClickIDField
	}
	if req.MaxRows <= 0 {
		req.MaxRows = defaultMaxLogRows
	}
}

func (s *JoinService) downloadLogRows(ctx context.Context, req ClickJoinRequest, requestID string, parts int) ([]domain.ReportRow, error) {
	if parts <= 0 {
		parts = 1
	}
	var rows []domain.ReportRow
	var columns []string
	for part := 0; part < parts; part++ {
		payload, err := s.metrica.LogsDownload(ctx, req.CounterID, requestID, part)
		if err != nil {
			return nil, fmt.Errorf("failed to download logs part %d: %w", part, err)
		}
		if len(columns) == 0 && len(payload.Columns) > 0 {
			columns = payload.Columns
		}
		partRows, partColumns := ParseDelimited(payload.Raw, "\t", columns, req.MaxRows-len(rows))
		if len(columns) == 0 {
			columns = partColumns
		}
		rows = append(rows, partRows...)
		if len(rows) >= req.MaxRows {
			break
		}
	}
	return rows, nil
}

func (s *JoinService) buildDirectClickIndex(ctx context.Context, req ClickJoinRequest) (map[string]string, ClickIndexMeta, error) {
	payload, err := s.direct.Report(ctx, req.ClientLogin, domain.ReportRequest{
		ReportType: "CUSTOM_REPORT",
		ReportName: fmt.Sprintf("join_clickid_%s_%s", req.DateFrom, req.DateTo),
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		FieldNames: []string{"Date", "CampaignId", req.ClickIDField},
	})
	if err != nil {
		return nil, ClickIndexMeta{}, err
	}
	return BuildClickIndex(payload, req.ClickIDField, "CampaignId", req.MaxRows)
}

// joinByBanner is the fallback when no click index can be built: count
// visits per Direct banner ID and map banners to campaigns via ads.get.
func (s *JoinService) joinByBanner(ctx context.Context, req ClickJoinRequest, logRows []domain.ReportRow, result *domain.ClickJoin) error {
	bannerCounts, noBanner := CountByField(logRows, req.BannerField)
	if len(bannerCounts) == 0 {
		return fmt.Errorf("no join key available: logs rows carry neither click IDs nor banner IDs; " +
			"request a logs field such as ym:s:lastDirectClickBanner or configure a Direct click report")
	}

	banners := make([]string, 0, len(bannerCounts))
	for b := range bannerCounts {
		banners = append(banners, b)
	}
	sort.Slice(banners, func(i, j int) bool {
		if bannerCounts[banners[i]] != bannerCounts[banners[j]] {
			return bannerCounts[banners[i]] > bannerCounts[banners[j]]
		}
		return banners[i] < banners[j]
	})
	if len(banners) > maxBannerLookups {
		banners = banners[:maxBannerLookups]
	}
	var adIDs []int64
	for _, b := range banners {
		if id, err := strconv.ParseInt(b, 10, 64); err == nil {
			adIDs = append(adIDs, id)
		}
	}
	ads, err := s.direct.ListAds(ctx, req.ClientLogin, adIDs)
	if err != nil {
		return fmt.Errorf("failed to map banner IDs to campaigns: %w", err)
	}
	bannerToCampaign := map[string]string{}
	for _, ad := range ads {
		bannerToCampaign[strconv.FormatInt(ad.ID, 10)] = strconv.FormatInt(ad.CampaignID, 10)
	}

	byCampaign := map[string]int{}
	meta := domain.ClickJoinMeta{
		VisitsTotal:          len(logRows),
		VisitsWithoutClickID: noBanner,
		IndexSize:            len(bannerToCampaign),
	}
	for banner, count := range bannerCounts {
		campaignID, ok := bannerToCampaign[banner]
		if !ok {
			meta.VisitsUnmatched += count
			continue
		}
		meta.VisitsMatched += count
		meta.BannerFallbackUsed += count
		byCampaign[campaignID] += count
	}

	result.Available = true
	result.Method = domain.MethodBannerID
	result.Meta = meta
	result.ByCampaign = s.campaignBuckets(ctx, req.ClientLogin, byCampaign)
	return nil
}

func (s *JoinService) campaignBuckets(ctx context.Context, login string, visits map[string]int) map[string]domain.ClickJoinCampaign {
	var ids []int64
	for cid := range visits {
		if id, err := strconv.ParseInt(cid, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	names := map[string]string{}
	if len(ids) > 0 {
		if items, err := s.direct.ListCampaigns(ctx, login, ids); err == nil {
			for _, item := range items {
				names[strconv.FormatInt(item.ID, 10)] = item.Name
			}
		}
	}
	out := make(map[string]domain.ClickJoinCampaign, len(visits))
	for cid, count := range visits {
		out[cid] = domain.ClickJoinCampaign{
			CampaignID: cid,
			Name:       names[cid],
			Visits:     count,
		}
	}
	return out
}
