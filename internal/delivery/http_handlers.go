package delivery

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"adlens/internal/domain"
	"adlens/internal/usecase"
	"adlens/pkg/cache"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// fallback identity when the request names no account
type Defaults struct {
	CounterID   string
	ClientLogin string
}

// handles HTTP requests
type HTTPHandlers struct {
	overviewService *usecase.OverviewService
	joinService     *usecase.JoinService
	metricaService  *usecase.MetricaService
	accounts        domain.AccountStore
	defaults        Defaults
	cache           *cache.Cache
	logger          *logger.Logger
	metrics         *metrics.Metrics
}

// creates new HTTP handlers
func NewHTTPHandlers(
	overviewService *usecase.OverviewService,
	joinService *usecase.JoinService,
	metricaService *usecase.MetricaService,
	accounts domain.AccountStore,
	defaults Defaults,
	cache *cache.Cache,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *HTTPHandlers {
	return &HTTPHandlers{
		overviewService: overviewService,
		joinService:     joinService,
		metricaService:  metricaService,
		accounts:        accounts,
		defaults:        defaults,
		cache:           cache,
		logger:          logger,
		metrics:         metrics,
	}
}

// GetOverview builds the full reconciliation overview for one period
func (h *HTTPHandlers) GetOverview(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)

	counterID, clientLogin, err := h.resolveIdentity(c)
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", "/overview", "400", time.Since(start))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid parameters",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	req := usecase.OverviewRequest{
		DateFrom:    c.Query("date_from"),
		DateTo:      c.Query("date_to"),
		CounterID:   counterID,
		ClientLogin: clientLogin,
		GoalIDs:     splitCSV(c.Query("goals")),
	}

	cacheKey := fmt.Sprintf("overview|%s|%s|%s|%s|%s",
		req.CounterID, req.ClientLogin, req.DateFrom, req.DateTo, strings.Join(req.GoalIDs, ","))
	if cached, ok := h.cache.Get(cacheKey); ok {
		h.metrics.RecordHTTPRequest("GET", "/overview", "200", time.Since(start))
		c.JSON(http.StatusOK, gin.H{"overview": cached, "cached": true, "request_id": requestID})
		return
	}

	overview, err := h.overviewService.Build(ctx, req)
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", "/overview", "500", time.Since(start))
		h.logger.WithContext(ctx).WithError(err).Error("Failed to build overview")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to build overview",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}
	h.cache.Set(cacheKey, overview)

	h.metrics.RecordHTTPRequest("GET", "/overview", "200", time.Since(start))
	c.JSON(http.StatusOK, gin.H{"overview": overview, "cached": false, "request_id": requestID})
}

// JoinByUTM compares one campaign's Direct report with its UTM-filtered visits
func (h *HTTPHandlers) JoinByUTM(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)

	counterID, clientLogin, err := h.resolveIdentity(c)
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", "/join/by-utm", "400", time.Since(start))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid parameters",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	campaignID, err := strconv.ParseInt(c.Query("campaign_id"), 10, 64)
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", "/join/by-utm", "400", time.Since(start))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid parameters",
			"message":    "campaign_id must be a decimal campaign ID",
			"request_id": requestID,
		})
		return
	}

	compare, err := h.joinService.ByUTM(ctx, usecase.UTMJoinRequest{
		CampaignID:  campaignID,
		UTMCampaign: c.Query("utm_campaign"),
		CounterID:   counterID,
		DateFrom:    c.Query("date_from"),
		DateTo:      c.Query("date_to"),
		ClientLogin: clientLogin,
	})
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", "/join/by-utm", "500", time.Since(start))
		h.logger.WithContext(ctx).WithError(err).Error("UTM join failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "UTM join failed",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	h.metrics.RecordHTTPRequest("GET", "/join/by-utm", "200", time.Since(start))
	c.JSON(http.StatusOK, gin.H{"compare": compare, "request_id": requestID})
}

type clickJoinBody struct {
	CounterID   string `json:"counter_id"`
	ClientLogin string `json:"client_login"`
	Account     string `json:"account"`
	DateFrom    string `json:"date_from"`
	DateTo      string `json:"date_to"`
	RequestID   string `json:"request_id"`
	MaxRows     int    `json:"max_rows"`
}

// JoinByClickID starts or resumes a click-ID join over a Logs export
func (h *HTTPHandlers) JoinByClickID(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)

	var body clickJoinBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.metrics.RecordHTTPRequest("POST", "/join/by-click-id", "400", time.Since(start))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid request body",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	counterID, clientLogin := body.CounterID, body.ClientLogin
	if body.Account != "" {
		account, ok := h.accounts.Get(body.Account)
		if !ok {
			h.metrics.RecordHTTPRequest("POST", "/join/by-click-id", "400", time.Since(start))
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      "Unknown account",
				"message":    fmt.Sprintf("account %q is not registered", body.Account),
				"request_id": requestID,
			})
			return
		}
		counterID, clientLogin = account.CounterID, account.ClientLogin
	}
	if counterID == "" {
		counterID = h.defaults.CounterID
	}
	if clientLogin == "" {
		clientLogin = h.defaults.ClientLogin
	}

	join, err := h.joinService.ByClickID(ctx, usecase.ClickJoinRequest{
		CounterID:   counterID,
		DateFrom:    body.DateFrom,
		DateTo:      body.DateTo,
		ClientLogin: clientLogin,
		RequestID:   body.RequestID,
		MaxRows:     body.MaxRows,
	})
	if err != nil {
		h.metrics.RecordHTTPRequest("POST", "/join/by-click-id", "500", time.Since(start))
		h.logger.WithContext(ctx).WithError(err).Error("Click-ID join failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Click-ID join failed",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	status := http.StatusOK
	if join.Pending {
		status = http.StatusAccepted
	}
	h.metrics.RecordHTTPRequest("POST", "/join/by-click-id", strconv.Itoa(status), time.Since(start))
	c.JSON(status, gin.H{"join": join, "request_id": requestID})
}

// ListAccounts returns the configured account registry
func (h *HTTPHandlers) ListAccounts(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	accounts := h.accounts.List()

	h.metrics.RecordHTTPRequest("GET", "/accounts", "200", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"accounts":   accounts,
		"total":      len(accounts),
		"request_id": requestID,
	})
}

// ListCounters returns Metrica counters available to the token
func (h *HTTPHandlers) ListCounters(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)

	counters, err := h.metricaService.Counters(ctx)
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", "/metrica/counters", "500", time.Since(start))
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list counters")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to list counters",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	h.metrics.RecordHTTPRequest("GET", "/metrica/counters", "200", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"counters":   counters,
		"total":      len(counters),
		"request_id": requestID,
	})
}

// GetCounterSummary returns one counter with its goals
func (h *HTTPHandlers) GetCounterSummary(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)

	summary, err := h.metricaService.CounterSummary(ctx, c.Param("id"))
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", "/metrica/counters/:id", "500", time.Since(start))
		h.logger.WithContext(ctx).WithError(err).Error("Failed to get counter summary")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to get counter summary",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	h.metrics.RecordHTTPRequest("GET", "/metrica/counters/:id", "200", time.Since(start))
	c.JSON(http.StatusOK, gin.H{"counter": summary, "request_id": requestID})
}

// GetTimeSeries returns one metric regrouped to a period granularity
func (h *HTTPHandlers) GetTimeSeries(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)

	counterID, _, err := h.resolveIdentity(c)
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", "/metrica/time-series", "400", time.Since(start))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid parameters",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	series, err := h.metricaService.TimeSeries(ctx, counterID,
		c.Query("date_from"), c.Query("date_to"), c.Query("metric"), c.Query("granularity"))
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", "/metrica/time-series", "500", time.Since(start))
		h.logger.WithContext(ctx).WithError(err).Error("Failed to build time series")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to build time series",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	h.metrics.RecordHTTPRequest("GET", "/metrica/time-series", "200", time.Since(start))
	c.JSON(http.StatusOK, gin.H{"series": series, "request_id": requestID})
}

// GetLandingPages returns the top landing pages by visits
func (h *HTTPHandlers) GetLandingPages(c *gin.Context) {
	h.topReport(c, "/metrica/landing-pages", func(ctx context.Context, counterID string, limit int) (*domain.TopReport, error) {
		return h.metricaService.LandingPages(ctx, counterID, c.Query("date_from"), c.Query("date_to"), limit)
	})
}

// GetUTMCampaigns returns the top UTM campaign labels by visits
func (h *HTTPHandlers) GetUTMCampaigns(c *gin.Context) {
	h.topReport(c, "/metrica/utm-campaigns", func(ctx context.Context, counterID string, limit int) (*domain.TopReport, error) {
		return h.metricaService.UTMCampaigns(ctx, counterID, c.Query("date_from"), c.Query("date_to"), limit)
	})
}

// GetGeo returns the top regions by visits
func (h *HTTPHandlers) GetGeo(c *gin.Context) {
	h.topReport(c, "/metrica/geo", func(ctx context.Context, counterID string, limit int) (*domain.TopReport, error) {
		return h.metricaService.Geo(ctx, counterID, c.Query("date_from"), c.Query("date_to"), c.Query("level"), limit)
	})
}

// GetDevices returns the device category split by visits
func (h *HTTPHandlers) GetDevices(c *gin.Context) {
	h.topReport(c, "/metrica/devices", func(ctx context.Context, counterID string, limit int) (*domain.TopReport, error) {
		return h.metricaService.Devices(ctx, counterID, c.Query("date_from"), c.Query("date_to"), limit)
	})
}

func (h *HTTPHandlers) topReport(c *gin.Context, endpoint string, fetch func(ctx context.Context, counterID string, limit int) (*domain.TopReport, error)) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)

	counterID, _, err := h.resolveIdentity(c)
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", endpoint, "400", time.Since(start))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid parameters",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			h.metrics.RecordHTTPRequest("GET", endpoint, "400", time.Since(start))
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      "Invalid parameters",
				"message":    "limit must be a non-negative integer",
				"request_id": requestID,
			})
			return
		}
	}

	report, err := fetch(ctx, counterID, limit)
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", endpoint, "500", time.Since(start))
		h.logger.WithContext(ctx).WithError(err).Error("Failed to build report")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to build report",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	h.metrics.RecordHTTPRequest("GET", endpoint, "200", time.Since(start))
	c.JSON(http.StatusOK, gin.H{"report": report, "request_id": requestID})
}

// HealthCheck returns the health status of the service
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()

	health := gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"service":    "adlens",
		"version":    "1.0.0",
		"request_id": requestID,
	}

	h.metrics.RecordHTTPRequest("GET", "/health", "200", time.Since(start))
	c.JSON(http.StatusOK, health)
}

// picks the counter and client login from the account registry, explicit
// query parameters, or configured defaults, in that order
func (h *HTTPHandlers) resolveIdentity(c *gin.Context) (counterID, clientLogin string, err error) {
	if accountID := c.Query("account"); accountID != "" {
		account, ok := h.accounts.Get(accountID)
		if !ok {
			return "", "", fmt.Errorf("account %q is not registered", accountID)
		}
		return account.CounterID, account.ClientLogin, nil
	}

	counterID = c.Query("counter_id")
	if counterID == "" {
		counterID = h.defaults.CounterID
	}
	clientLogin = c.Query("client_login")
	if clientLogin == "" {
		clientLogin = h.defaults.ClientLogin
	}
	return counterID, clientLogin, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
