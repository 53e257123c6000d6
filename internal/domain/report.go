package domain

// ReportRow is one parsed line of a delimited report, column-name keyed.
// Values stay raw strings; numeric coercion happens during aggregation.
type ReportRow map[string]string

// a raw delimited report blob plus optionally already-known column names
type ReportPayload struct {
	Raw     string   `json:"raw"`
	Columns []string `json:"columns,omitempty"`
	Ready   bool     `json:"ready"`
}

// parameters for the Direct Reports endpoint
type ReportRequest struct {
	ReportType  string   `json:"report_type"`
	ReportName  string   `json:"report_name"`
	DateFrom    string   `json:"date_from"`
	DateTo      string   `json:"date_to"`
	FieldNames  []string `json:"field_names"`
	CampaignIDs []int64  `json:"campaign_ids,omitempty"`
}
