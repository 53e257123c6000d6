package domain

import "context"

// interface for Direct API operations
type DirectClient interface {
	ListCampaigns(ctx context.Context, login string, ids []int64) ([]CampaignItem, error)
	ListAds(ctx context.Context, login string, adIDs []int64) ([]AdItem, error)
	Report(ctx context.Context, login string, req ReportRequest) (*ReportPayload, error)
}

// interface for Metrica Stat, Management and Logs API operations
type MetricaClient interface {
	Stats(ctx context.Context, q StatsQuery) (*StatsResponse, error)
	Counters(ctx context.Context) ([]Counter, error)
	Goals(ctx context.Context, counterID string) ([]Goal, error)
	LogsCreate(ctx context.Context, counterID string, req LogsRequest) (string, error)
	LogsInfo(ctx context.Context, counterID, requestID string) (*LogsRequestInfo, error)
	LogsDownload(ctx context.Context, counterID, requestID string, part int) (*ReportPayload, error)
	LogsClean(ctx context.Context, counterID, requestID string) error
}

// interface for the accounts registry
type AccountStore interface {
	Get(id string) (*Account, bool)
	List() []Account
}
