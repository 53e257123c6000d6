package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adlens/internal/delivery"
	"adlens/internal/infrastructure"
	"adlens/internal/usecase"
	"adlens/pkg/cache"
	"adlens/pkg/config"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var fileCfg *logger.FileConfig
	if cfg.Logging.FilePath != "" {
		fileCfg = &logger.FileConfig{
			Path:       cfg.Logging.FilePath,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		}
	}
	log := logger.NewWithFile(cfg.Logging.Level, fileCfg)
	log.Info("Starting server")

	m := metrics.New()

	var tokens infrastructure.TokenProvider
	if cfg.Auth.RefreshToken != "" && cfg.Auth.ClientID != "" {
		tokens = infrastructure.NewOAuthTokenProvider(cfg.Auth.ClientID, cfg.Auth.ClientSecret, cfg.Auth.RefreshToken)
	} else {
		tokens = infrastructure.NewStaticTokenProvider(cfg.Auth.Token)
	}

	accounts, err := infrastructure.NewFileAccountStore(cfg.Accounts.Path)
	if err != nil {
		log.WithError(err).Error("Failed to load accounts registry")
		os.Exit(1)
	}

	directClient := infrastructure.NewDirectAPIClient(cfg.Direct, cfg.HTTP, tokens, log, m)
	metricaClient := infrastructure.NewMetricaAPIClient(cfg.Metrica, cfg.HTTP, tokens, log, m)

	overviewService := usecase.NewOverviewService(directClient, metricaClient, nil, log, m)
	joinService := usecase.NewJoinService(directClient, metricaClient, log, m)
	metricaService := usecase.NewMetricaService(metricaClient, log, m)

	handlers := delivery.NewHTTPHandlers(
		overviewService,
		joinService,
		metricaService,
		accounts,
		delivery.Defaults{
			CounterID:   cfg.Metrica.CounterID,
			ClientLogin: cfg.Direct.ClientLogin,
		},
		cache.New(cfg.Cache.TTL),
		log,
		m,
	)
	router := delivery.NewHTTPRouter(handlers, log, m)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.SetupRoutes(),
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Forced shutdown")
		os.Exit(1)
	}
	log.Info("Server stopped")
}
