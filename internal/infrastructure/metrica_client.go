package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"adlens/internal/domain"
	"adlens/pkg/config"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"

	"golang.org/x/time/rate"
)

// implements domain.MetricaClient against the Stat, Management and Logs APIs
type MetricaAPIClient struct {
	client      *http.Client
	statURL     string
	mgmtURL     string
	tokens      TokenProvider
	maxRetries  int
	backoff     time.Duration
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter
}

// creates a new Metrica API client
func NewMetricaAPIClient(cfg config.MetricaConfig, httpCfg config.HTTPConfig, tokens TokenProvider, logger *logger.Logger, metrics *metrics.Metrics) *MetricaAPIClient {
	return &MetricaAPIClient{
		client: &http.Client{
			Timeout: httpCfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		statURL:     cfg.StatAPIURL,
		mgmtURL:     cfg.ManagementAPIURL,
		tokens:      tokens,
		maxRetries:  httpCfg.MaxRetries,
		backoff:     httpCfg.RetryBackoff,
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rate.NewLimiter(rate.Limit(httpCfg.RateLimitRPS), httpCfg.RateLimitBurst),
	}
}

// runs a Stat API report
func (c *MetricaAPIClient) Stats(ctx context.Context, q domain.StatsQuery) (*domain.StatsResponse, error) {
	start := time.Now()

	params := url.Values{}
	params.Set("ids", q.CounterID)
	params.Set("date1", q.DateFrom)
	params.Set("date2", q.DateTo)
	params.Set("metrics", q.Metrics)
	params.Set("accuracy", "full")
	if q.Dimensions != "" {
		params.Set("dimensions", q.Dimensions)
	}
	if q.Filters != "" {
		params.Set("filters", q.Filters)
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var result domain.StatsResponse
	if err := c.getJSON(ctx, "stats", c.statURL+"/data?"+params.Encode(), &result); err != nil {
		c.metrics.RecordReportFetch("metrica", "error", time.Since(start))
		return nil, err
	}

	duration := time.Since(start)
	c.metrics.RecordReportFetch("metrica", "ok", duration)

	c.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"counter":    q.CounterID,
		"metrics":    q.Metrics,
		"dimensions": q.Dimensions,
		"rows":       len(result.Data),
		"duration":   duration,
	}).Debug("Fetched Metrica report")

	return &result, nil
}

// lists counters available to the token
func (c *MetricaAPIClient) Counters(ctx context.Context) ([]domain.Counter, error) {
	var result struct {
		Counters []domain.Counter `json:"counters"`
	}
	if err := c.getJSON(ctx, "counters", c.mgmtURL+"/counters", &result); err != nil {
		return nil, err
	}
	return result.Counters, nil
}

// lists goals configured on a counter
func (c *MetricaAPIClient) Goals(ctx context.Context, counterID string) ([]domain.Goal, error) {
	var result struct {
		Goals []domain.Goal `json:"goals"`
	}
	u := fmt.Sprintf("%s/counter/%s/goals", c.mgmtURL, url.PathEscape(counterID))
	if err := c.getJSON(ctx, "goals", u, &result); err != nil {
		return nil, err
	}
	return result.Goals, nil
}

type logRequestEnvelope struct {
	LogRequest struct {
		RequestID int64  `json:"request_id"`
		Status    string `json:"status"`
		Parts     []struct {
			PartNumber int `json:"part_number"`
		} `json:"parts"`
	} `json:"log_request"`
}

// creates a Logs API export request and returns its ID
func (c *MetricaAPIClient) LogsCreate(ctx context.Context, counterID string, req domain.LogsRequest) (string, error) {
	params := url.Values{}
	params.Set("date1", req.DateFrom)
	params.Set("date2", req.DateTo)
	params.Set("fields", req.Fields)
	params.Set("source", req.Source)

	u := fmt.Sprintf("%s/counter/%s/logrequests?%s", c.mgmtURL, url.PathEscape(counterID), params.Encode())

	var result logRequestEnvelope
	if err := c.doJSON(ctx, "logs_create", "POST", u, &result); err != nil {
		return "", err
	}

	requestID := strconv.FormatInt(result.LogRequest.RequestID, 10)

	c.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"counter":    counterID,
		"request_id": requestID,
		"date_from":  req.DateFrom,
		"date_to":    req.DateTo,
	}).Info("Created logs export request")

	return requestID, nil
}

// reports the status of a Logs API export request
func (c *MetricaAPIClient) LogsInfo(ctx context.Context, counterID, requestID string) (*domain.LogsRequestInfo, error) {
	u := fmt.Sprintf("%s/counter/%s/logrequest/%s", c.mgmtURL, url.PathEscape(counterID), url.PathEscape(requestID))

	var result logRequestEnvelope
	if err := c.getJSON(ctx, "logs_info", u, &result); err != nil {
		return nil, err
	}

	return &domain.LogsRequestInfo{
		RequestID: strconv.FormatInt(result.LogRequest.RequestID, 10),
		Status:    result.LogRequest.Status,
		Parts:     len(result.LogRequest.Parts),
	}, nil
}

// downloads one TSV part of a processed export
func (c *MetricaAPIClient) LogsDownload(ctx context.Context, counterID, requestID string, part int) (*domain.ReportPayload, error) {
	u := fmt.Sprintf("%s/counter/%s/logrequest/%s/part/%d/download",
		c.mgmtURL, url.PathEscape(counterID), url.PathEscape(requestID), part)

	raw, err := c.doRaw(ctx, "logs_download", "GET", u)
	if err != nil {
		return nil, err
	}
	return &domain.ReportPayload{Raw: raw, Ready: true}, nil
}

// deletes a processed export from the counter's quota
func (c *MetricaAPIClient) LogsClean(ctx context.Context, counterID, requestID string) error {
	u := fmt.Sprintf("%s/counter/%s/logrequest/%s/clean", c.mgmtURL, url.PathEscape(counterID), url.PathEscape(requestID))
	var discard json.RawMessage
	return c.doJSON(ctx, "logs_clean", "POST", u, &discard)
}

func (c *MetricaAPIClient) getJSON(ctx context.Context, api, u string, result interface{}) error {
	return c.doJSON(ctx, api, "GET", u, result)
}

func (c *MetricaAPIClient) doJSON(ctx context.Context, api, method, u string, result interface{}) error {
	raw, err := c.doRaw(ctx, api, method, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), result); err != nil {
		c.metrics.RecordExternalAPIFailure("metrica_"+api, "json_parse")
		return fmt.Errorf("failed to parse %s response: %w", api, err)
	}
	return nil
}

func (c *MetricaAPIClient) doRaw(ctx context.Context, api, method, u string) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure("metrica_"+api, "rate_limit")
		return "", fmt.Errorf("rate limit exceeded: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("metrica_"+api, "token")
		return "", fmt.Errorf("failed to obtain token: %w", err)
	}

	var raw string
	err = withRetry(ctx, c.maxRetries, c.backoff, func() (bool, error) {
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, method, u, nil)
		if err != nil {
			c.metrics.RecordExternalAPIFailure("metrica_"+api, "request_creation")
			return false, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "OAuth "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			c.metrics.RecordExternalAPIFailure("metrica_"+api, "network_error")
			return true, fmt.Errorf("failed to call %s: %w", api, err)
		}
		defer resp.Body.Close()

		duration := time.Since(start)

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			c.metrics.RecordExternalAPIFailure("metrica_"+api, "read_body")
			return true, fmt.Errorf("failed to read response body: %w", err)
		}

		if isRetryableStatus(resp.StatusCode) {
			c.metrics.RecordExternalAPICall("metrica_"+api, fmt.Sprintf("error_%d", resp.StatusCode), duration)
			return true, fmt.Errorf("%s API returned status %d", api, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			c.metrics.RecordExternalAPICall("metrica_"+api, fmt.Sprintf("error_%d", resp.StatusCode), duration)
			return false, fmt.Errorf("%s API returned status %d: %s", api, resp.StatusCode, truncateBody(data))
		}

		raw = string(data)
		c.metrics.RecordExternalAPICall("metrica_"+api, "success", duration)
		return false, nil
	})
	return raw, err
}

func truncateBody(data []byte) string {
	const limit = 256
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
