package usecase

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"adlens/internal/domain"
)

// goal accounting modes for lead extraction
const (
	GoalsModeSelected = "selected"
	GoalsModeAll      = "all"
)

// the unclassified remainder is reported as a bounded top-N, largest
// visit volumes first
const topUnclassifiedLimit = 8

// UTMJoinInput is one heuristic join over a date x UTMCampaign report.
// Rows carry dimensions [date, utm] and metrics [visits, bounceRate,
// goal reaches...]. ReportIsDirectOnly marks that the source report was
// filtered to one traffic channel, which is the only case where total
// and coverage accounting is meaningful.
type UTMJoinInput struct {
	Days               []string
	Rows               []domain.StatsRow
	Campaigns          map[string]domain.Campaign
	GoalsMode          string
	GoalIDs            []string
	ReportIsDirectOnly bool
}

func rowLeads(metrics []float64, goalsMode string, goalIDs []string) float64 {
	if goalsMode == GoalsModeSelected && len(goalIDs) > 0 {
		var leads float64
		for i := range goalIDs {
			if idx := 2 + i; idx < len(metrics) {
				leads += metrics[idx]
			}
		}
		return leads
	}
	if len(metrics) > 2 {
		return metrics[2]
	}
	return 0
}

// joinAccum walks the report rows once, attributing each row via the
// supplied resolver and accounting the remainder.
type joinAccum struct {
	byKey              map[string]map[string]*TrafficAccum
	meta               domain.JoinMeta
	totalVisits        float64
	totalLeads         float64
	unclassified       map[string]float64
	unclassifiedLeads  map[string]float64
	reportIsDirectOnly bool
}

func newJoinAccum(directOnly bool) *joinAccum {
	return &joinAccum{
		byKey:              map[string]map[string]*TrafficAccum{},
		unclassified:       map[string]float64{},
		unclassifiedLeads:  map[string]float64{},
		reportIsDirectOnly: directOnly,
	}
}

func (a *joinAccum) walk(in UTMJoinInput, resolve func(utm string) string) {
	for _, row := range in.Rows {
		if len(row.Dimensions) < 2 || len(row.Metrics) < 2 {
			continue
		}
		day := DayKey(row.Dimensions[0].Name)
		if day == "" {
			continue
		}
		visits := row.Metrics[0]
		bounce := row.Metrics[1]
		leads := rowLeads(row.Metrics, in.GoalsMode, in.GoalIDs)

		if a.reportIsDirectOnly {
			a.totalVisits += visits
			a.totalLeads += leads
		}

		utm := strings.TrimSpace(row.Dimensions[1].Name)
		key := ""
		if utm != "" {
			key = resolve(utm)
		}
		if key == "" {
			if a.reportIsDirectOnly {
				label := utm
				if label == "" {
					label = "(not set)"
				}
				a.unclassified[label] += visits
				a.unclassifiedLeads[label] += leads
			}
			continue
		}

		a.meta.ClassifiedVisits += visits
		a.meta.ClassifiedLeads += leads
		byDay := a.byKey[key]
		if byDay == nil {
			byDay = map[string]*TrafficAccum{}
			a.byKey[key] = byDay
		}
		t := byDay[day]
		if t == nil {
			t = &TrafficAccum{}
			byDay[day] = t
		}
		t.Add(visits, bounce, leads)
	}
}

func (a *joinAccum) finish() domain.JoinMeta {
	meta := a.meta
	meta.ReportIsDirectOnly = a.reportIsDirectOnly
	meta.TopUnclassifiedUTM = []domain.UnclassifiedUTM{}
	if a.reportIsDirectOnly {
		total := a.totalVisits
		totalLeads := a.totalLeads
		meta.TotalDirectVisits = &total
		meta.TotalDirectLeads = &totalLeads
		meta.ClassifiedSharePct = Ratio(100*meta.ClassifiedVisits, total)
		meta.ClassifiedLeadsSharePct = Ratio(100*meta.ClassifiedLeads, totalLeads)

		keys := make([]string, 0, len(a.unclassified))
		for k := range a.unclassified {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if a.unclassified[keys[i]] != a.unclassified[keys[j]] {
				return a.unclassified[keys[i]] > a.unclassified[keys[j]]
			}
			return keys[i] < keys[j]
		})
		if len(keys) > topUnclassifiedLimit {
			keys = keys[:topUnclassifiedLimit]
		}
		for _, k := range keys {
			meta.TopUnclassifiedUTM = append(meta.TopUnclassifiedUTM, domain.UnclassifiedUTM{
				UTMCampaign: k,
				Visits:      a.unclassified[k],
				Leads:       a.unclassifiedLeads[k],
			})
		}
	}
	return meta
}

// JoinByUTMType attributes a UTMCampaign report to campaign types
// (search vs ad network) and builds one rectangular series per type.
func JoinByUTMType(in UTMJoinInput, classify TypeClassifier) *domain.UTMSplit {
	if len(in.Rows) == 0 {
		return &domain.UTMSplit{Available: false, Method: domain.MethodUTMCampaign}
	}
	index := BuildNameIndex(in.Campaigns)
	acc := newJoinAccum(in.ReportIsDirectOnly)
	acc.walk(in, func(utm string) string {
		cid := ResolveCampaignID(utm, in.Campaigns, index)
		if cid == "" {
			return ""
		}
		return campaignType(in.Campaigns[cid], classify)
	})

	byType := map[string]domain.TrafficSeries{
		domain.CampaignTypeSearch:  BuildTrafficSeries(acc.byKey[domain.CampaignTypeSearch], in.Days),
		domain.CampaignTypeNetwork: BuildTrafficSeries(acc.byKey[domain.CampaignTypeNetwork], in.Days),
	}
	return &domain.UTMSplit{
		Available: true,
		Method:    domain.MethodUTMCampaign,
		Meta:      acc.finish(),
		ByType:    byType,
	}
}

// JoinByUTMCampaign attributes a UTMCampaign report to individual
// campaign IDs and builds one rectangular series per mapped campaign.
func JoinByUTMCampaign(in UTMJoinInput) *domain.UTMSplit {
	if len(in.Rows) == 0 {
		return &domain.UTMSplit{Available: false, Method: domain.MethodUTMCampaign}
	}
	index := BuildNameIndex(in.Campaigns)
	acc := newJoinAccum(in.ReportIsDirectOnly)
	acc.walk(in, func(utm string) string {
		return ResolveCampaignID(utm, in.Campaigns, index)
	})

	byCampaign := make(map[string]domain.TrafficSeries, len(acc.byKey))
	for cid, byDay := range acc.byKey {
		byCampaign[cid] = BuildTrafficSeries(byDay, in.Days)
	}
	meta := acc.finish()
	meta.MappedCampaigns = len(byCampaign)
	return &domain.UTMSplit{
		Available:  true,
		Method:     domain.MethodUTMCampaign,
		Meta:       meta,
		ByCampaign: byCampaign,
	}
}

// only known types are attributable; anything else stays unclassified
func campaignType(c domain.Campaign, classify TypeClassifier) string {
	t := strings.TrimSpace(c.Type)
	if t == "" && classify != nil {
		t = classify(c.Name)
	}
	if t == domain.CampaignTypeSearch || t == domain.CampaignTypeNetwork {
		return t
	}
	return ""
}

// ClickIndexMeta describes how a click-ID index was built.
type ClickIndexMeta struct {
	Rows           int      `json:"rows"`
	UniqueClickIDs int      `json:"unique_click_ids"`
	Skipped        int      `json:"skipped"`
	Columns        []string `json:"columns"`
}

// BuildClickIndex builds click_id -> campaign_id from a Direct click
// report. Duplicate click IDs keep their first-seen campaign: later
// duplicates in noisy exports must not override the first attribution.
// Missing required columns are a contract error, not a data-quality one.
func BuildClickIndex(payload *domain.ReportPayload, clickIDField, campaignIDField string, maxRows int) (map[string]string, ClickIndexMeta, error) {
	var raw string
	var columns []string
	if payload != nil {
		raw = payload.Raw
		columns = payload.Columns
	}
	rows, resolved := ParseDelimited(raw, "\t", columns, maxRows)
	meta := ClickIndexMeta{Rows: len(rows), Columns: resolved}
	if len(rows) == 0 {
		return map[string]string{}, meta, nil
	}

	hasClick, hasCampaign := false, false
	for _, col := range resolved {
		if col == clickIDField {
			hasClick = true
		}
		if col == campaignIDField {
			hasCampaign = true
		}
	}
	if !hasClick || !hasCampaign {
		return nil, meta, fmt.Errorf("click report lacks required columns %q and %q, got %v", clickIDField, campaignIDField, resolved)
	}

	index := map[string]string{}
	for _, row := range rows {
		clickID := strings.TrimSpace(row[clickIDField])
		campaignID := strings.TrimSpace(row[campaignIDField])
		if clickID == "" || campaignID == "" {
			meta.Skipped++
			continue
		}
		if _, seen := index[clickID]; !seen {
			index[clickID] = campaignID
		}
	}
	meta.UniqueClickIDs = len(index)
	return index, meta, nil
}

// ExtractYclidFromURL pulls the yclid query parameter out of a landing
// URL, for counters that do not expose the click ID as its own field.
func ExtractYclidFromURL(value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return ""
	}
	if vals := q["yclid"]; len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

// JoinVisitsByClickID looks each analytics row up in the click index.
// Visits without any click identifier and visits whose identifier is
// unknown are counted as two distinct failure categories.
func JoinVisitsByClickID(rows []domain.ReportRow, index map[string]string, clickIDField, startURLField string) (map[string]int, domain.ClickJoinMeta) {
	byCampaign := map[string]int{}
	meta := domain.ClickJoinMeta{IndexSize: len(index)}
	for _, row := range rows {
		meta.VisitsTotal++
		clickID := strings.TrimSpace(row[clickIDField])
		if clickID == "" {
			clickID = ExtractYclidFromURL(row[startURLField])
		}
		if clickID == "" {
			meta.VisitsWithoutClickID++
			continue
		}
		campaignID, ok := index[clickID]
		if !ok {
			meta.VisitsUnmatched++
			continue
		}
		meta.VisitsMatched++
		byCampaign[campaignID]++
	}
	return byCampaign, meta
}

// CountByField tallies non-empty values of one column, for the banner-ID
// fallback join. Returns the counts and how many rows had no value.
func CountByField(rows []domain.ReportRow, field string) (map[string]int, int) {
	counts := map[string]int{}
	empty := 0
	for _, row := range rows {
		v := strings.TrimSpace(row[field])
		if v == "" {
			empty++
			continue
		}
		counts[v]++
	}
	return counts, empty
}
