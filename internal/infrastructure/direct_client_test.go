package infrastructure_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adlens/internal/domain"
	"adlens/internal/infrastructure"
	"adlens/pkg/config"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testLogger = logger.New("error")

	// one registry-backed instance per test binary
	testMetrics = metrics.New()
)

func testHTTPConfig() config.HTTPConfig {
	return config.HTTPConfig{
		RequestTimeout: 5 * time.Second,
		MaxRetries:     2,
		RetryBackoff:   time.Millisecond,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}
}

func newDirectClient(apiURL, reportsURL string) *infrastructure.DirectAPIClient {
	cfg := config.DirectConfig{APIURL: apiURL, ReportsURL: reportsURL}
	tokens := infrastructure.NewStaticTokenProvider("test-token")
	return infrastructure.NewDirectAPIClient(cfg, testHTTPConfig(), tokens, testLogger, testMetrics)
}

func TestDirectClientListCampaignsPaginates(t *testing.T) {
	var offsets []int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/campaigns", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "acme", r.Header.Get("Client-Login"))

		var body struct {
			Method string `json:"method"`
			Params struct {
				Page struct {
					Offset int64 `json:"Offset"`
				} `json:"Page"`
			} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "get", body.Method)
		offsets = append(offsets, body.Params.Page.Offset)

		if body.Params.Page.Offset == 0 {
			fmt.Fprint(w, `{"result":{"Campaigns":[{"Id":1,"Name":"A"},{"Id":2,"Name":"B"}],"LimitedBy":2}}`)
			return
		}
		fmt.Fprint(w, `{"result":{"Campaigns":[{"Id":3,"Name":"C"}]}}`)
	}))
	defer srv.Close()

	client := newDirectClient(srv.URL, srv.URL+"/reports")
	campaigns, err := client.ListCampaigns(context.Background(), "acme", nil)
	require.NoError(t, err)

	require.Len(t, campaigns, 3)
	assert.Equal(t, int64(3), campaigns[2].ID)
	assert.Equal(t, []int64{0, 2}, offsets)
}

func TestDirectClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"error_code":8800,"error_string":"Invalid token","error_detail":"token expired"}}`)
	}))
	defer srv.Close()

	client := newDirectClient(srv.URL, srv.URL+"/reports")
	_, err := client.ListCampaigns(context.Background(), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "8800")
	assert.Contains(t, err.Error(), "Invalid token")
}

func TestDirectClientListAdsEmptyInput(t *testing.T) {
	client := newDirectClient("http://unused.invalid", "http://unused.invalid")
	ads, err := client.ListAds(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Nil(t, ads)
}

func TestDirectClientReportPollsUntilReady(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "auto", r.Header.Get("processingMode"))
		assert.Equal(t, "false", r.Header.Get("returnMoneyInMicros"))

		var body struct {
			Params struct {
				DateRangeType string `json:"DateRangeType"`
				Format        string `json:"Format"`
			} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CUSTOM_DATE", body.Params.DateRangeType)
		assert.Equal(t, "TSV", body.Params.Format)

		calls++
		if calls == 1 {
			w.Header().Set("retryIn", "1")
			w.WriteHeader(http.StatusCreated)
			return
		}
		fmt.Fprint(w, "Date\tImpressions\tClicks\tCost\n2024-06-01\t100\t10\t50\n")
	}))
	defer srv.Close()

	client := newDirectClient(srv.URL, srv.URL)
	payload, err := client.Report(context.Background(), "", domain.ReportRequest{
		ReportName: "test-report",
		ReportType: "CUSTOM_REPORT",
		DateFrom:   "2024-06-01",
		DateTo:     "2024-06-02",
		FieldNames: []string{"Date", "Impressions", "Clicks", "Cost"},
	})
	require.NoError(t, err)

	assert.True(t, payload.Ready)
	assert.Contains(t, payload.Raw, "2024-06-01\t100")
	assert.Equal(t, 2, calls)
}

func TestDirectClientReportBadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "invalid field")
	}))
	defer srv.Close()

	client := newDirectClient(srv.URL, srv.URL)
	_, err := client.Report(context.Background(), "", domain.ReportRequest{
		ReportName: "bad", ReportType: "CUSTOM_REPORT",
		DateFrom: "2024-06-01", DateTo: "2024-06-02",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
