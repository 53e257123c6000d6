package usecase

import (
	"fmt"
	"time"

	"adlens/internal/domain"
)

const dayFormat = "2006-01-02"

// EnumerateDays expands an inclusive ISO date range into one key per
// calendar day. A malformed or reversed range is a caller error and
// fails fast.
func EnumerateDays(dateFrom, dateTo string) ([]string, error) {
	from, err := time.Parse(dayFormat, dateFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid date_from %q: %w", dateFrom, err)
	}
	to, err := time.Parse(dayFormat, dateTo)
	if err != nil {
		return nil, fmt.Errorf("invalid date_to %q: %w", dateTo, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("date_to %s is before date_from %s", dateTo, dateFrom)
	}
	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dayFormat))
	}
	return days, nil
}

// DayKey normalizes a report date value to YYYY-MM-DD, tolerating
// timestamps where upstream emits them instead of bare dates.
func DayKey(value string) string {
	if len(value) > 10 {
		return value[:10]
	}
	return value
}

// Bucket holds accumulated numeric totals for one day or one entity-day.
type Bucket map[string]float64

// Accumulate sums the numeric value fields of each row into a per-day
// bucket keyed by the row's date field, and, when groupField is set, into
// a per-group per-day bucket as well. Missing or malformed values count
// as zero.
func Accumulate(rows []domain.ReportRow, dateField string, valueFields []string, groupField string) (map[string]Bucket, map[string]map[string]Bucket) {
	byDate := map[string]Bucket{}
	var byGroup map[string]map[string]Bucket
	if groupField != "" {
		byGroup = map[string]map[string]Bucket{}
	}
	for _, row := range rows {
		day := DayKey(row[dateField])
		if day == "" {
			continue
		}
		b := byDate[day]
		if b == nil {
			b = Bucket{}
			byDate[day] = b
		}
		var g Bucket
		if byGroup != nil {
			group := row[groupField]
			if group != "" {
				m := byGroup[group]
				if m == nil {
					m = map[string]Bucket{}
					byGroup[group] = m
				}
				g = m[day]
				if g == nil {
					g = Bucket{}
					m[day] = g
				}
			}
		}
		for _, field := range valueFields {
			v := FloatOrZero(row[field])
			b[field] += v
			if g != nil {
				g[field] += v
			}
		}
	}
	return byDate, byGroup
}

// WeightedBucket accumulates a rate-like metric as a weighted sum and a
// weight sum. Keeping the two parts separate makes buckets merge-safe:
// partial aggregations combine without precision loss.
type WeightedBucket struct {
	Sum    float64
	Weight float64
}

func (w *WeightedBucket) Add(value, weight float64) {
	w.Sum += value * weight
	w.Weight += weight
}

func (w *WeightedBucket) Merge(other WeightedBucket) {
	w.Sum += other.Sum
	w.Weight += other.Weight
}

// Avg returns the weighted average, or nil when nothing was weighted in.
func (w WeightedBucket) Avg() *float64 {
	if w.Weight <= 0 {
		return nil
	}
	v := w.Sum / w.Weight
	return &v
}

// AvgOrZero is Avg collapsed to zero for per-day series cells.
func (w WeightedBucket) AvgOrZero() float64 {
	if v := w.Avg(); v != nil {
		return *v
	}
	return 0
}

// EngagedVisits derives non-bounced visits. Upstream bounce rates must
// never be negative, but malformed exports do happen, so a negative rate
// yields zero instead of an inflated count.
func EngagedVisits(visits, bounceRate float64) float64 {
	if bounceRate < 0 {
		return 0
	}
	return visits * (1 - bounceRate/100)
}

// TrafficAccum is the per-day accumulator for attributed analytics
// traffic inside a join.
type TrafficAccum struct {
	Visits float64
	Bounce WeightedBucket
	Leads  float64
}

func (t *TrafficAccum) Add(visits, bounceRate, leads float64) {
	t.Visits += visits
	t.Bounce.Add(bounceRate, visits)
	t.Leads += leads
}

// BuildDirectSeries reindexes accumulated Direct buckets onto a full day
// range, filling the gaps with zero days, and derives the ratio totals.
// Bucket fields follow the report column names.
func BuildDirectSeries(byDate map[string]Bucket, days []string) domain.DirectSeries {
	s := domain.DirectSeries{
		Available: len(byDate) > 0,
		Daily:     make([]domain.DirectDay, 0, len(days)),
	}
	for _, day := range days {
		b := byDate[day]
		d := domain.DirectDay{
			Date:        day,
			Impressions: b["Impressions"],
			Clicks:      b["Clicks"],
			CostRub:     b["Cost"],
		}
		s.Daily = append(s.Daily, d)
		s.Totals.Impressions += d.Impressions
		s.Totals.Clicks += d.Clicks
		s.Totals.CostRub += d.CostRub
	}
	s.Totals.CTR = CTR(s.Totals.Clicks, s.Totals.Impressions)
	s.Totals.CPC = CPC(s.Totals.CostRub, s.Totals.Clicks)
	s.Totals.CPM = CPM(s.Totals.CostRub, s.Totals.Impressions)
	return s
}

// BuildTrafficSeries reindexes attributed-traffic accumulators onto a
// full day range with the same rectangularity guarantee.
func BuildTrafficSeries(byDate map[string]*TrafficAccum, days []string) domain.TrafficSeries {
	s := domain.TrafficSeries{
		Available: len(byDate) > 0,
		Daily:     make([]domain.TrafficDay, 0, len(days)),
	}
	var bounce WeightedBucket
	for _, day := range days {
		a := byDate[day]
		if a == nil {
			a = &TrafficAccum{}
		}
		rate := a.Bounce.AvgOrZero()
		s.Daily = append(s.Daily, domain.TrafficDay{
			Date:       day,
			Visits:     a.Visits,
			BounceRate: rate,
			Engaged:    EngagedVisits(a.Visits, rate),
			Leads:      a.Leads,
		})
		s.Totals.Visits += a.Visits
		s.Totals.Leads += a.Leads
		bounce.Merge(a.Bounce)
	}
	s.Totals.BounceRate = bounce.Avg()
	if s.Totals.BounceRate != nil {
		s.Totals.Engaged = EngagedVisits(s.Totals.Visits, *s.Totals.BounceRate)
	}
	return s
}
