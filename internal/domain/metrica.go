package domain

import "encoding/json"

// query parameters for the Metrica Stat API
type StatsQuery struct {
	CounterID  string `json:"counter_id"`
	DateFrom   string `json:"date_from"`
	DateTo     string `json:"date_to"`
	Metrics    string `json:"metrics"`
	Dimensions string `json:"dimensions,omitempty"`
	Filters    string `json:"filters,omitempty"`
	Sort       string `json:"sort,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Dimension is one dimension value in a Stat API row. The API usually
// returns an object with name/id keys but occasionally a bare string,
// so unmarshalling accepts both shapes.
type Dimension struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

func (d *Dimension) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.Name = s
		return nil
	}
	type alias Dimension
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = Dimension(a)
	return nil
}

// one row of a Stat API response
type StatsRow struct {
	Dimensions []Dimension `json:"dimensions"`
	Metrics    []float64   `json:"metrics"`
}

// Stat API response envelope
type StatsResponse struct {
	Query     json.RawMessage `json:"query,omitempty"`
	Data      []StatsRow      `json:"data"`
	TotalRows int             `json:"total_rows,omitempty"`
}

// a Metrica counter from the Management API
type Counter struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Site string `json:"site,omitempty"`
}

// a conversion goal configured on a counter
type Goal struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// one regrouped point of a time-series report
type PeriodPoint struct {
	Period  string    `json:"period"`
	Metrics []float64 `json:"metrics"`
}

// a time-series report regrouped to the requested granularity
type TimeSeriesResult struct {
	CounterID   string        `json:"counter_id"`
	Metric      string        `json:"metric"`
	Granularity string        `json:"granularity"`
	Data        []PeriodPoint `json:"data"`
}

// one row of a top-N dimensional report
type TopRow struct {
	Name           string  `json:"name"`
	ID             string  `json:"id,omitempty"`
	Visits         float64 `json:"visits"`
	AvgDurationSec float64 `json:"avg_duration_sec"`
}

// a top-N report over one dimension set
type TopReport struct {
	CounterID  string   `json:"counter_id"`
	Dimensions []string `json:"dimensions"`
	Rows       []TopRow `json:"rows"`
}

// a counter with its goals, best effort
type CounterSummary struct {
	Counter Counter `json:"counter"`
	Goals   []Goal  `json:"goals,omitempty"`
}

// parameters for a Logs API export request
type LogsRequest struct {
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
	Fields   string `json:"fields"`
	Source   string `json:"source"`
}

// logs export statuses that matter to the join flow
const (
	LogsStatusProcessed = "processed"
	LogsStatusCreated   = "created"
	LogsStatusCanceled  = "canceled"
)

// status of a previously created Logs API export
type LogsRequestInfo struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Parts     int    `json:"parts"`
}
