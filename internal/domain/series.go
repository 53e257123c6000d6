package domain

// trend kinds for period-over-period comparisons
const (
	TrendZero     = "zero"
	TrendInfinite = "inf"
	TrendPercent  = "pct"
)

// Trend is a change relative to a baseline. Growth from a zero baseline
// has no finite percentage, so Kind carries that case explicitly and Pct
// stays null instead of becoming Infinity.
type Trend struct {
	Kind string   `json:"kind"`
	Pct  *float64 `json:"pct,omitempty"`
}

// one KPI with its comparison-period value
type KPI struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	Trend    Trend   `json:"trend"`
}

// one day of Direct spend data
type DirectDay struct {
	Date        string  `json:"date"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	CostRub     float64 `json:"cost_rub"`
}

// accumulated Direct totals with derived ratios; ratios are null when
// the denominator is zero
type DirectTotals struct {
	Impressions float64  `json:"impressions"`
	Clicks      float64  `json:"clicks"`
	CostRub     float64  `json:"cost_rub"`
	CTR         *float64 `json:"ctr"`
	CPC         *float64 `json:"cpc"`
	CPM         *float64 `json:"cpm"`
}

// a rectangular daily Direct series over one period
type DirectSeries struct {
	Available bool         `json:"available"`
	Daily     []DirectDay  `json:"daily"`
	Totals    DirectTotals `json:"totals"`
}

// one day of Metrica counter data
type MetricaDay struct {
	Date           string  `json:"date"`
	Visits         float64 `json:"visits"`
	Users          float64 `json:"users"`
	BounceRate     float64 `json:"bounce_rate"`
	PageDepth      float64 `json:"page_depth"`
	AvgDurationSec float64 `json:"avg_duration_sec"`
	Engaged        float64 `json:"engaged"`
	Leads          float64 `json:"leads"`
}

// Metrica totals; rate-like fields are weighted averages and null when
// there were no visits to weight by
type MetricaTotals struct {
	Visits         float64  `json:"visits"`
	Users          float64  `json:"users"`
	Engaged        float64  `json:"engaged"`
	Leads          float64  `json:"leads"`
	BounceRate     *float64 `json:"bounce_rate"`
	PageDepth      *float64 `json:"page_depth"`
	AvgDurationSec *float64 `json:"avg_duration_sec"`
}

// a rectangular daily Metrica series over one period
type MetricaSeries struct {
	Available bool          `json:"available"`
	Daily     []MetricaDay  `json:"daily"`
	Totals    MetricaTotals `json:"totals"`
}

// one day of attributed traffic inside a join split
type TrafficDay struct {
	Date       string  `json:"date"`
	Visits     float64 `json:"visits"`
	BounceRate float64 `json:"bounce_rate"`
	Engaged    float64 `json:"engaged"`
	Leads      float64 `json:"leads"`
}

type TrafficTotals struct {
	Visits     float64  `json:"visits"`
	Engaged    float64  `json:"engaged"`
	Leads      float64  `json:"leads"`
	BounceRate *float64 `json:"bounce_rate"`
}

// a rectangular attributed-traffic series for one type or campaign
type TrafficSeries struct {
	Available bool          `json:"available"`
	Daily     []TrafficDay  `json:"daily"`
	Totals    TrafficTotals `json:"totals"`
}

// an unresolved UTM tag kept for remainder accounting
type UnclassifiedUTM struct {
	UTMCampaign string  `json:"utm_campaign"`
	Visits      float64 `json:"visits"`
	Leads       float64 `json:"leads"`
}

// JoinMeta reports how much of the analytics traffic a heuristic join
// managed to attribute. Share fields are null when the source report was
// not restricted to Direct traffic, since there is no total to measure
// against in that case.
type JoinMeta struct {
	ReportIsDirectOnly      bool              `json:"report_is_direct_only"`
	MappedCampaigns         int               `json:"mapped_campaigns"`
	ClassifiedVisits        float64           `json:"classified_visits"`
	ClassifiedLeads         float64           `json:"classified_leads"`
	TotalDirectVisits       *float64          `json:"total_direct_visits"`
	TotalDirectLeads        *float64          `json:"total_direct_leads"`
	ClassifiedSharePct      *float64          `json:"classified_share_pct"`
	ClassifiedLeadsSharePct *float64          `json:"classified_leads_share_pct"`
	TopUnclassifiedUTM      []UnclassifiedUTM `json:"top_unclassified_utm"`
}

// outcome of the heuristic UTM join
type UTMSplit struct {
	Available  bool                     `json:"available"`
	Method     string                   `json:"method"`
	Meta       JoinMeta                 `json:"meta"`
	ByType     map[string]TrafficSeries `json:"by_type,omitempty"`
	ByCampaign map[string]TrafficSeries `json:"by_campaign,omitempty"`
}

// one campaign's slice of the overview
type CampaignOverview struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	ShortName string         `json:"short_name,omitempty"`
	SubName   string         `json:"sub_name,omitempty"`
	Type      string         `json:"type,omitempty"`
	Direct    DirectSeries   `json:"direct"`
	Traffic   *TrafficSeries `json:"traffic,omitempty"`
}

// per-goal reach totals in the all-goals mode
type GoalBreakdown struct {
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	Reaches float64 `json:"reaches"`
}

type GoalsBlock struct {
	Mode         string          `json:"mode"`
	TotalReaches float64         `json:"total_reaches"`
	Goals        []GoalBreakdown `json:"goals,omitempty"`
}

// one traffic-source summary row
type SourceRow struct {
	Source string  `json:"source"`
	Engine string  `json:"engine,omitempty"`
	Visits float64 `json:"visits"`
	Leads  float64 `json:"leads"`
}

type SourcesBlock struct {
	Available        bool           `json:"available"`
	Rows             []SourceRow    `json:"rows"`
	DirectAttributed *TrafficSeries `json:"direct_attributed,omitempty"`
}

// classified shares over the whole overview
type Coverage struct {
	VisitsClassifiedPct *float64 `json:"visits_classified_pct"`
	LeadsClassifiedPct  *float64 `json:"leads_classified_pct"`
}

type OverviewMeta struct {
	DateFrom     string `json:"date_from"`
	DateTo       string `json:"date_to"`
	PrevDateFrom string `json:"prev_date_from"`
	PrevDateTo   string `json:"prev_date_to"`
	CounterID    string `json:"counter_id,omitempty"`
	ClientLogin  string `json:"client_login,omitempty"`
	GoalsMode    string `json:"goals_mode"`
	GeneratedAt  string `json:"generated_at"`
}

type OverviewKPIs struct {
	Impressions KPI `json:"impressions"`
	Clicks      KPI `json:"clicks"`
	CostRub     KPI `json:"cost_rub"`
	Visits      KPI `json:"visits"`
	Leads       KPI `json:"leads"`
}

// the full reconciliation dataset for one account and date range
type Overview struct {
	Meta        OverviewMeta       `json:"meta"`
	KPIs        OverviewKPIs       `json:"kpis"`
	Direct      DirectSeries       `json:"direct"`
	DirectPrev  DirectSeries       `json:"direct_prev"`
	Metrica     MetricaSeries      `json:"metrica"`
	MetricaPrev MetricaSeries      `json:"metrica_prev"`
	Goals       *GoalsBlock        `json:"goals,omitempty"`
	Sources     *SourcesBlock      `json:"sources,omitempty"`
	Split       *UTMSplit          `json:"direct_split,omitempty"`
	Campaigns   []CampaignOverview `json:"campaigns,omitempty"`
	Coverage    Coverage           `json:"coverage"`
	Warnings    []string           `json:"warnings"`
}

// one day of a side-by-side Direct vs Metrica comparison
type CompareDay struct {
	Date        string  `json:"date"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	CostRub     float64 `json:"cost_rub"`
	Visits      float64 `json:"visits"`
}

type CompareTotals struct {
	Impressions float64  `json:"impressions"`
	Clicks      float64  `json:"clicks"`
	CostRub     float64  `json:"cost_rub"`
	Visits      float64  `json:"visits"`
	CTR         *float64 `json:"ctr"`
	CPC         *float64 `json:"cpc"`
}

// UTMCompare joins one campaign's Direct report with a UTM-filtered
// Metrica series on date.
type UTMCompare struct {
	Available  bool          `json:"available"`
	Method     string        `json:"method"`
	CampaignID string        `json:"campaign_id"`
	UTM        string        `json:"utm_campaign,omitempty"`
	Daily      []CompareDay  `json:"daily"`
	Totals     CompareTotals `json:"totals"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// per-campaign bucket of a click-ID join
type ClickJoinCampaign struct {
	CampaignID string `json:"campaign_id"`
	Name       string `json:"name,omitempty"`
	Visits     int    `json:"visits"`
}

// ClickJoinMeta keeps the two failure categories apart: visits that
// carried no click identifier at all versus visits whose identifier did
// not match any known click.
type ClickJoinMeta struct {
	VisitsTotal          int `json:"visits_total"`
	VisitsMatched        int `json:"visits_matched"`
	VisitsUnmatched      int `json:"visits_unmatched"`
	VisitsWithoutClickID int `json:"visits_without_click_id"`
	BannerFallbackUsed   int `json:"banner_fallback_used"`
	IndexSize            int `json:"index_size"`
}

// outcome of the deterministic click-ID join; Pending carries the export
// request ID when the Logs API has not finished preparing the data yet
type ClickJoin struct {
	Available  bool                         `json:"available"`
	Pending    bool                         `json:"pending,omitempty"`
	RequestID  string                       `json:"request_id,omitempty"`
	Method     string                       `json:"method"`
	Meta       ClickJoinMeta                `json:"meta"`
	ByCampaign map[string]ClickJoinCampaign `json:"by_campaign,omitempty"`
	Warnings   []string                     `json:"warnings,omitempty"`
}

// join methods reported in result payloads
const (
	MethodUTMCampaign = "utm_campaign"
	MethodClickID     = "click_id"
	MethodBannerID    = "banner_id"
)
