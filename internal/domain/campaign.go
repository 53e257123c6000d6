package domain

// campaign types inferred from display names
const (
	CampaignTypeSearch  = "search"
	CampaignTypeNetwork = "rsya"
)

// reference data for one Direct campaign, keyed by its decimal ID
type Campaign struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
	SubName   string `json:"sub_name,omitempty"`
	Type      string `json:"type,omitempty"`
}

// a campaign row as returned by the Direct campaigns.get method
type CampaignItem struct {
	ID     int64  `json:"Id"`
	Name   string `json:"Name"`
	State  string `json:"State,omitempty"`
	Status string `json:"Status,omitempty"`
}

// an ad row as returned by the Direct ads.get method
type AdItem struct {
	ID         int64 `json:"Id"`
	CampaignID int64 `json:"CampaignId"`
}

// a single account profile from the accounts registry file
type Account struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ClientLogin string `json:"client_login,omitempty"`
	CounterID   string `json:"counter_id,omitempty"`
}
