package usecase

import (
	"sort"
	"strings"

	"adlens/internal/domain"
)

// MetricaFilterQuote quotes a value for Metrica filters expressions.
func MetricaFilterQuote(value string) string {
	if !strings.Contains(value, "'") {
		return "'" + strings.ReplaceAll(value, `\`, `\\`) + "'"
	}
	v := strings.ReplaceAll(value, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

// TrafficSourceKey normalizes a traffic-source dimension to a stable
// category key, tolerating localized names.
func TrafficSourceKey(id, name string) string {
	sid := strings.ToLower(strings.TrimSpace(id))
	sname := strings.ToLower(strings.TrimSpace(name))
	switch {
	case sid == "organic" || strings.Contains(sname, "поис"):
		return "organic"
	case sid == "direct" || strings.Contains(sname, "прям"):
		return "direct"
	case sid == "ad" || strings.Contains(sname, "реклам"):
		return "ad"
	}
	if sid != "" {
		return sid
	}
	if sname != "" {
		return sname
	}
	return "unknown"
}

// IsYandexDirectEngine reports whether a source-engine name looks like
// Yandex Direct.
func IsYandexDirectEngine(name string) bool {
	low := strings.ToLower(strings.TrimSpace(name))
	if strings.Contains(low, "директ") {
		return true
	}
	return strings.Contains(low, "yandex") && strings.Contains(low, "direct")
}

func sourceDims(row domain.StatsRow) (day, sourceKey, engine string, ok bool) {
	if len(row.Dimensions) < 3 || len(row.Metrics) < 1 {
		return "", "", "", false
	}
	day = DayKey(row.Dimensions[0].Name)
	if day == "" {
		return "", "", "", false
	}
	sourceKey = TrafficSourceKey(row.Dimensions[1].ID, row.Dimensions[1].Name)
	engine = strings.TrimSpace(row.Dimensions[2].Name)
	if engine == "" {
		engine = strings.TrimSpace(row.Dimensions[2].ID)
	}
	return day, sourceKey, engine, true
}

// PickDirectEngine picks the source engine that carries Yandex Direct
// traffic, best effort: an ad-category engine whose name looks like
// Direct, otherwise the largest ad-category engine.
func PickDirectEngine(rows []domain.StatsRow) string {
	adTotals := map[string]float64{}
	for _, row := range rows {
		_, sourceKey, engine, ok := sourceDims(row)
		if !ok || sourceKey != "ad" || engine == "" {
			continue
		}
		adTotals[engine] += row.Metrics[0]
	}
	if len(adTotals) == 0 {
		return ""
	}
	pick := func(candidates map[string]float64) string {
		best := ""
		for engine, total := range candidates {
			if best == "" || total > candidates[best] || (total == candidates[best] && engine < best) {
				best = engine
			}
		}
		return best
	}
	directLike := map[string]float64{}
	for engine, total := range adTotals {
		if IsYandexDirectEngine(engine) {
			directLike[engine] = total
		}
	}
	if len(directLike) > 0 {
		return pick(directLike)
	}
	return pick(adTotals)
}

// at most this many summary rows, largest visit volumes first
const maxSourceRows = 8

// BuildSourceRows compacts a date x source x engine report into per
// engine visit totals.
func BuildSourceRows(rows []domain.StatsRow) []domain.SourceRow {
	type key struct{ source, engine string }
	totals := map[key]float64{}
	for _, row := range rows {
		_, sourceKey, engine, ok := sourceDims(row)
		if !ok {
			continue
		}
		totals[key{sourceKey, engine}] += row.Metrics[0]
	}
	out := make([]domain.SourceRow, 0, len(totals))
	for k, visits := range totals {
		out = append(out, domain.SourceRow{Source: k.source, Engine: k.engine, Visits: visits})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Visits != out[j].Visits {
			return out[i].Visits > out[j].Visits
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Engine < out[j].Engine
	})
	if len(out) > maxSourceRows {
		out = out[:maxSourceRows]
	}
	return out
}

// BuildDirectAttributed extracts the Direct-attributed slice of a
// date x source x engine report into a rectangular traffic series. Rows
// match on the picked engine when one is known; without one the whole
// ad category is taken as a Direct proxy.
func BuildDirectAttributed(rows []domain.StatsRow, days []string, pickedEngine, goalsMode string, goalIDs []string) domain.TrafficSeries {
	byDay := map[string]*TrafficAccum{}
	for _, row := range rows {
		day, sourceKey, engine, ok := sourceDims(row)
		if !ok || len(row.Metrics) < 2 {
			continue
		}
		isDirect := pickedEngine != "" && engine == pickedEngine
		if pickedEngine == "" && sourceKey == "ad" {
			isDirect = true
		}
		if !isDirect {
			continue
		}
		t := byDay[day]
		if t == nil {
			t = &TrafficAccum{}
			byDay[day] = t
		}
		t.Add(row.Metrics[0], row.Metrics[1], rowLeads(row.Metrics, goalsMode, goalIDs))
	}
	return BuildTrafficSeries(byDay, days)
}
