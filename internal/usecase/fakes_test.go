package usecase_test

import (
	"context"
	"fmt"

	"adlens/internal/domain"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"
)

// one registry-backed instance per test binary
var (
	testLogger  = logger.New("error")
	testMetrics = metrics.New()
)

type fakeDirect struct {
	campaigns []domain.CampaignItem
	ads       []domain.AdItem
	report    func(req domain.ReportRequest) (*domain.ReportPayload, error)

	campaignsErr error
	adsErr       error

	reportRequests []domain.ReportRequest
}

func (f *fakeDirect) ListCampaigns(ctx context.Context, login string, ids []int64) ([]domain.CampaignItem, error) {
	if f.campaignsErr != nil {
		return nil, f.campaignsErr
	}
	if len(ids) == 0 {
		return f.campaigns, nil
	}
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.CampaignItem
	for _, c := range f.campaigns {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDirect) ListAds(ctx context.Context, login string, adIDs []int64) ([]domain.AdItem, error) {
	if f.adsErr != nil {
		return nil, f.adsErr
	}
	want := map[int64]bool{}
	for _, id := range adIDs {
		want[id] = true
	}
	var out []domain.AdItem
	for _, a := range f.ads {
		if want[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeDirect) Report(ctx context.Context, login string, req domain.ReportRequest) (*domain.ReportPayload, error) {
	f.reportRequests = append(f.reportRequests, req)
	if f.report == nil {
		return &domain.ReportPayload{Ready: true}, nil
	}
	return f.report(req)
}

type fakeMetrica struct {
	stats    func(q domain.StatsQuery) (*domain.StatsResponse, error)
	counters []domain.Counter
	goals    map[string][]domain.Goal

	logsCreateID  string
	logsCreateErr error
	logsInfo      *domain.LogsRequestInfo
	logsInfoErr   error
	logsParts     map[int]*domain.ReportPayload
	logsCleanErr  error

	cleaned   []string
	statsSeen []domain.StatsQuery
}

func (f *fakeMetrica) Stats(ctx context.Context, q domain.StatsQuery) (*domain.StatsResponse, error) {
	f.statsSeen = append(f.statsSeen, q)
	if f.stats == nil {
		return &domain.StatsResponse{}, nil
	}
	return f.stats(q)
}

func (f *fakeMetrica) Counters(ctx context.Context) ([]domain.Counter, error) {
	return f.counters, nil
}

func (f *fakeMetrica) Goals(ctx context.Context, counterID string) ([]domain.Goal, error) {
	return f.goals[counterID], nil
}

func (f *fakeMetrica) LogsCreate(ctx context.Context, counterID string, req domain.LogsRequest) (string, error) {
	if f.logsCreateErr != nil {
		return "", f.logsCreateErr
	}
	return f.logsCreateID, nil
}

func (f *fakeMetrica) LogsInfo(ctx context.Context, counterID, requestID string) (*domain.LogsRequestInfo, error) {
	if f.logsInfoErr != nil {
		return nil, f.logsInfoErr
	}
	if f.logsInfo != nil {
		return f.logsInfo, nil
	}
	return &domain.LogsRequestInfo{RequestID: requestID, Status: domain.LogsStatusProcessed, Parts: len(f.logsParts)}, nil
}

func (f *fakeMetrica) LogsDownload(ctx context.Context, counterID, requestID string, part int) (*domain.ReportPayload, error) {
	payload, ok := f.logsParts[part]
	if !ok {
		return nil, fmt.Errorf("no such part %d", part)
	}
	return payload, nil
}

func (f *fakeMetrica) LogsClean(ctx context.Context, counterID, requestID string) error {
	f.cleaned = append(f.cleaned, requestID)
	return f.logsCleanErr
}
