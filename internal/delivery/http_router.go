package delivery

import (
	"time"

	"adlens/internal/delivery/middleware"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type HTTPRouter struct {
	handlers *HTTPHandlers
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewHTTPRouter(handlers *HTTPHandlers, logger *logger.Logger, metrics *metrics.Metrics) *HTTPRouter {
	return &HTTPRouter{
		handlers: handlers,
		logger:   logger,
		metrics:  metrics,
	}
}

func (r *HTTPRouter) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.Recovery(r.logger))
	router.Use(middleware.Metrics(r.metrics))
	// report builds poll the Direct Reports endpoint, so the
	// per-request budget is generous
	router.Use(middleware.Timeout(120 * time.Second))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Content-Type", "X-Request-ID"}
	config.ExposeHeaders = []string{"X-Request-ID"}

	router.Use(cors.New(config))

	// Health endpoint
	router.GET("/health", r.handlers.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/overview", r.handlers.GetOverview)
		v1.GET("/accounts", r.handlers.ListAccounts)

		join := v1.Group("/join")
		{
			join.GET("/by-utm", r.handlers.JoinByUTM)
			join.POST("/by-click-id", r.handlers.JoinByClickID)
		}

		metrica := v1.Group("/metrica")
		{
			metrica.GET("/counters", r.handlers.ListCounters)
			metrica.GET("/counters/:id", r.handlers.GetCounterSummary)
			metrica.GET("/time-series", r.handlers.GetTimeSeries)
			metrica.GET("/landing-pages", r.handlers.GetLandingPages)
			metrica.GET("/utm-campaigns", r.handlers.GetUTMCampaigns)
			metrica.GET("/geo", r.handlers.GetGeo)
			metrica.GET("/devices", r.handlers.GetDevices)
		}
	}

	// Prometheus metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	return router
}
