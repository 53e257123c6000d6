package usecase

import "adlens/internal/domain"

// Ratio divides with an explicit undefined case: a zero denominator
// yields nil, never NaN or Infinity, so serialization can distinguish
// "zero" from "undefined".
func Ratio(numerator, denominator float64) *float64 {
	if denominator == 0 {
		return nil
	}
	v := numerator / denominator
	return &v
}

// CTR is clicks per hundred impressions.
func CTR(clicks, impressions float64) *float64 {
	return Ratio(100*clicks, impressions)
}

// CPC is cost per click.
func CPC(cost, clicks float64) *float64 {
	return Ratio(cost, clicks)
}

// CPM is cost per thousand impressions.
func CPM(cost, impressions float64) *float64 {
	return Ratio(1000*cost, impressions)
}

// ComputeTrend compares the last element of an ordered series to the
// first. Growth from a zero baseline is a distinct category rather than
// an infinite percentage.
func ComputeTrend(values []float64) domain.Trend {
	var first, last float64
	if len(values) > 0 {
		first = values[0]
		last = values[len(values)-1]
	}
	return PeriodDelta(last, first)
}

// PeriodDelta is the period-over-period change of one KPI with the same
// zero-baseline guard as ComputeTrend.
func PeriodDelta(current, previous float64) domain.Trend {
	if previous == 0 {
		if current == 0 {
			zero := 0.0
			return domain.Trend{Kind: domain.TrendZero, Pct: &zero}
		}
		return domain.Trend{Kind: domain.TrendInfinite}
	}
	pct := 100 * (current/previous - 1)
	return domain.Trend{Kind: domain.TrendPercent, Pct: &pct}
}

// BuildKPI pairs a current value with its comparison-period value.
func BuildKPI(current, previous float64) domain.KPI {
	return domain.KPI{
		Current:  current,
		Previous: previous,
		Trend:    PeriodDelta(current, previous),
	}
}
