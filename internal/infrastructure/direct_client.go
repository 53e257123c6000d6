package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"adlens/internal/domain"
	"adlens/pkg/config"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"

	"golang.org/x/time/rate"
)

const (
	directPageLimit   = 10000
	reportPollDefault = 5 * time.Second
	reportPollMax     = 60
)

// implements domain.DirectClient against the Direct API v5
type DirectAPIClient struct {
	client      *http.Client
	apiURL      string
	reportsURL  string
	tokens      TokenProvider
	maxRetries  int
	backoff     time.Duration
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter
}

// creates a new Direct API client
func NewDirectAPIClient(cfg config.DirectConfig, httpCfg config.HTTPConfig, tokens TokenProvider, logger *logger.Logger, metrics *metrics.Metrics) *DirectAPIClient {
	return &DirectAPIClient{
		client: &http.Client{
			Timeout: httpCfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiURL:      cfg.APIURL,
		reportsURL:  cfg.ReportsURL,
		tokens:      tokens,
		maxRetries:  httpCfg.MaxRetries,
		backoff:     httpCfg.RetryBackoff,
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rate.NewLimiter(rate.Limit(httpCfg.RateLimitRPS), httpCfg.RateLimitBurst),
	}
}

type directError struct {
	Code   int    `json:"error_code"`
	Text   string `json:"error_string"`
	Detail string `json:"error_detail"`
}

func (e *directError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("direct API error %d: %s (%s)", e.Code, e.Text, e.Detail)
	}
	return fmt.Sprintf("direct API error %d: %s", e.Code, e.Text)
}

type directRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type directResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *directError    `json:"error"`
}

// fetches campaign reference rows, following pagination
func (c *DirectAPIClient) ListCampaigns(ctx context.Context, login string, ids []int64) ([]domain.CampaignItem, error) {
	var campaigns []domain.CampaignItem
	offset := int64(0)

	for {
		criteria := map[string]interface{}{}
		if len(ids) > 0 {
			criteria["Ids"] = ids
		}
		params := map[string]interface{}{
			"SelectionCriteria": criteria,
			"FieldNames":        []string{"Id", "Name", "State", "Status"},
			"Page":              map[string]int64{"Limit": directPageLimit, "Offset": offset},
		}

		var result struct {
			Campaigns []domain.CampaignItem `json:"Campaigns"`
			LimitedBy int64                 `json:"LimitedBy"`
		}
		if err := c.call(ctx, "campaigns", login, directRequest{Method: "get", Params: params}, &result); err != nil {
			return nil, err
		}

		campaigns = append(campaigns, result.Campaigns...)
		if result.LimitedBy == 0 {
			break
		}
		offset = result.LimitedBy
	}

	c.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"login":     login,
		"campaigns": len(campaigns),
	}).Debug("Fetched campaigns")

	return campaigns, nil
}

// fetches banner to campaign mappings for the given ad IDs
func (c *DirectAPIClient) ListAds(ctx context.Context, login string, adIDs []int64) ([]domain.AdItem, error) {
	if len(adIDs) == 0 {
		return nil, nil
	}

	var ads []domain.AdItem
	offset := int64(0)

	for {
		params := map[string]interface{}{
			"SelectionCriteria": map[string]interface{}{"Ids": adIDs},
			"FieldNames":        []string{"Id", "CampaignId"},
			"Page":              map[string]int64{"Limit": directPageLimit, "Offset": offset},
		}

		var result struct {
			Ads       []domain.AdItem `json:"Ads"`
			LimitedBy int64           `json:"LimitedBy"`
		}
		if err := c.call(ctx, "ads", login, directRequest{Method: "get", Params: params}, &result); err != nil {
			return nil, err
		}

		ads = append(ads, result.Ads...)
		if result.LimitedBy == 0 {
			break
		}
		offset = result.LimitedBy
	}

	return ads, nil
}

// requests a TSV report and polls the Reports endpoint until it is ready
func (c *DirectAPIClient) Report(ctx context.Context, login string, req domain.ReportRequest) (*domain.ReportPayload, error) {
	start := time.Now()

	criteria := map[string]interface{}{
		"DateFrom": req.DateFrom,
		"DateTo":   req.DateTo,
	}
	if len(req.CampaignIDs) > 0 {
		values := make([]string, 0, len(req.CampaignIDs))
		for _, id := range req.CampaignIDs {
			values = append(values, strconv.FormatInt(id, 10))
		}
		criteria["Filter"] = []map[string]interface{}{
			{"Field": "CampaignId", "Operator": "IN", "Values": values},
		}
	}

	body, err := json.Marshal(map[string]interface{}{
		"params": map[string]interface{}{
			"SelectionCriteria": criteria,
			"FieldNames":        req.FieldNames,
			"ReportName":        req.ReportName,
			"ReportType":        req.ReportType,
			"DateRangeType":     "CUSTOM_DATE",
			"Format":            "TSV",
			"IncludeVAT":        "YES",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report request: %w", err)
	}

	for attempt := 0; attempt < reportPollMax; attempt++ {
		raw, status, retryIn, err := c.postReport(ctx, login, body)
		if err != nil {
			c.metrics.RecordReportFetch("direct", "error", time.Since(start))
			return nil, err
		}

		switch status {
		case http.StatusOK:
			duration := time.Since(start)
			c.metrics.RecordReportFetch("direct", "ok", duration)
			c.logger.WithContext(ctx).WithFields(map[string]interface{}{
				"report":   req.ReportName,
				"type":     req.ReportType,
				"duration": duration,
				"bytes":    len(raw),
			}).Info("Direct report ready")
			return &domain.ReportPayload{Raw: raw, Columns: req.FieldNames, Ready: true}, nil
		case http.StatusCreated, http.StatusAccepted:
			select {
			case <-ctx.Done():
				c.metrics.RecordReportFetch("direct", "canceled", time.Since(start))
				return nil, ctx.Err()
			case <-time.After(retryIn):
			}
		default:
			c.metrics.RecordReportFetch("direct", "error", time.Since(start))
			return nil, fmt.Errorf("reports endpoint returned status %d: %s", status, raw)
		}
	}

	c.metrics.RecordReportFetch("direct", "timeout", time.Since(start))
	return nil, fmt.Errorf("report %q not ready after %d polls", req.ReportName, reportPollMax)
}

func (c *DirectAPIClient) postReport(ctx context.Context, login string, body []byte) (string, int, time.Duration, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure("direct_reports", "rate_limit")
		return "", 0, 0, fmt.Errorf("rate limit exceeded: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("direct_reports", "token")
		return "", 0, 0, fmt.Errorf("failed to obtain token: %w", err)
	}

	var (
		raw     string
		status  int
		retryIn time.Duration
	)
	err = withRetry(ctx, c.maxRetries, c.backoff, func() (bool, error) {
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, "POST", c.reportsURL, bytes.NewReader(body))
		if err != nil {
			c.metrics.RecordExternalAPIFailure("direct_reports", "request_creation")
			return false, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept-Language", "ru")
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req.Header.Set("processingMode", "auto")
		req.Header.Set("returnMoneyInMicros", "false")
		req.Header.Set("skipReportHeader", "true")
		req.Header.Set("skipReportSummary", "true")
		if login != "" {
			req.Header.Set("Client-Login", login)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			c.metrics.RecordExternalAPIFailure("direct_reports", "network_error")
			return true, fmt.Errorf("failed to fetch report: %w", err)
		}
		defer resp.Body.Close()

		duration := time.Since(start)

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			c.metrics.RecordExternalAPIFailure("direct_reports", "read_body")
			return true, fmt.Errorf("failed to read response body: %w", err)
		}

		if isRetryableStatus(resp.StatusCode) {
			c.metrics.RecordExternalAPICall("direct_reports", fmt.Sprintf("error_%d", resp.StatusCode), duration)
			return true, fmt.Errorf("reports endpoint returned status %d", resp.StatusCode)
		}

		raw = string(data)
		status = resp.StatusCode
		retryIn = reportPollDefault
		if v := resp.Header.Get("retryIn"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				retryIn = time.Duration(secs) * time.Second
			}
		}

		c.metrics.RecordExternalAPICall("direct_reports", strconv.Itoa(resp.StatusCode), duration)
		return false, nil
	})
	if err != nil {
		return "", 0, 0, err
	}
	return raw, status, retryIn, nil
}

// performs one JSON method call against the Direct API
func (c *DirectAPIClient) call(ctx context.Context, service, login string, body directRequest, result interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure("direct_"+service, "rate_limit")
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("direct_"+service, "token")
		return fmt.Errorf("failed to obtain token: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("direct_"+service, "json_marshal")
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return withRetry(ctx, c.maxRetries, c.backoff, func() (bool, error) {
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL+"/"+service, bytes.NewReader(payload))
		if err != nil {
			c.metrics.RecordExternalAPIFailure("direct_"+service, "request_creation")
			return false, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept-Language", "ru")
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		if login != "" {
			req.Header.Set("Client-Login", login)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			c.metrics.RecordExternalAPIFailure("direct_"+service, "network_error")
			return true, fmt.Errorf("failed to call %s: %w", service, err)
		}
		defer resp.Body.Close()

		duration := time.Since(start)

		if isRetryableStatus(resp.StatusCode) {
			c.metrics.RecordExternalAPICall("direct_"+service, fmt.Sprintf("error_%d", resp.StatusCode), duration)
			return true, fmt.Errorf("%s API returned status %d", service, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			c.metrics.RecordExternalAPICall("direct_"+service, fmt.Sprintf("error_%d", resp.StatusCode), duration)
			return false, fmt.Errorf("%s API returned status %d", service, resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			c.metrics.RecordExternalAPIFailure("direct_"+service, "read_body")
			return true, fmt.Errorf("failed to read response body: %w", err)
		}

		var envelope directResponse
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.metrics.RecordExternalAPIFailure("direct_"+service, "json_parse")
			return false, fmt.Errorf("failed to parse %s response: %w", service, err)
		}
		if envelope.Error != nil {
			c.metrics.RecordExternalAPICall("direct_"+service, "api_error", duration)
			return false, envelope.Error
		}
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			c.metrics.RecordExternalAPIFailure("direct_"+service, "json_parse")
			return false, fmt.Errorf("failed to parse %s result: %w", service, err)
		}

		c.metrics.RecordExternalAPICall("direct_"+service, "success", duration)
		return false, nil
	})
}
