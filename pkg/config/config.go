package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Application settings
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	HTTP     HTTPConfig
	Auth     AuthConfig
	Direct   DirectConfig
	Metrica  MetricaConfig
	Accounts AccountsConfig
	Cache    CacheConfig
}

// Server settings
type ServerConfig struct {
	Port string
}

// Logging settings
type LoggingConfig struct {
	Level      string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Outbound HTTP settings shared by both API clients
type HTTPConfig struct {
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RateLimitRPS   int
	RateLimitBurst int
}

// OAuth settings; the static token is used directly, the client
// credentials enable refresh-token exchange when set
type AuthConfig struct {
	Token        string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Direct API settings
type DirectConfig struct {
	APIURL      string
	ReportsURL  string
	ClientLogin string
}

// Metrica API settings
type MetricaConfig struct {
	StatAPIURL       string
	ManagementAPIURL string
	CounterID        string
}

type AccountsConfig struct {
	Path string
}

type CacheConfig struct {
	TTL time.Duration
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", "8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file_path", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("http.request_timeout", "60s")
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.retry_backoff", "2s")
	v.SetDefault("http.rate_limit_rps", 5)
	v.SetDefault("http.rate_limit_burst", 5)
	v.SetDefault("direct.api_url", "https://api.direct.yandex.com/json/v5")
	v.SetDefault("direct.reports_url", "https://api.direct.yandex.com/json/v5/reports")
	v.SetDefault("metrica.stat_api_url", "https://api-metrika.yandex.net/stat/v1")
	v.SetDefault("metrica.management_api_url", "https://api-metrika.yandex.net/management/v1")
	v.SetDefault("accounts.path", "")
	v.SetDefault("cache.ttl", "5m")

	for env, key := range map[string]string{
		"PORT":                 "server.port",
		"LOG_LEVEL":            "logging.level",
		"LOG_FILE":             "logging.file_path",
		"YANDEX_OAUTH_TOKEN":   "auth.token",
		"YANDEX_CLIENT_ID":     "auth.client_id",
		"YANDEX_CLIENT_SECRET": "auth.client_secret",
		"YANDEX_REFRESH_TOKEN": "auth.refresh_token",
		"DIRECT_API_URL":       "direct.api_url",
		"DIRECT_REPORTS_URL":   "direct.reports_url",
		"DIRECT_CLIENT_LOGIN":  "direct.client_login",
		"METRICA_STAT_URL":     "metrica.stat_api_url",
		"METRICA_MGMT_URL":     "metrica.management_api_url",
		"METRICA_COUNTER_ID":   "metrica.counter_id",
		"ACCOUNTS_PATH":        "accounts.path",
		"CACHE_TTL":            "cache.ttl",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: v.GetString("server.port"),
		},
		Logging: LoggingConfig{
			Level:      v.GetString("logging.level"),
			FilePath:   v.GetString("logging.file_path"),
			MaxSizeMB:  v.GetInt("logging.max_size_mb"),
			MaxBackups: v.GetInt("logging.max_backups"),
			MaxAgeDays: v.GetInt("logging.max_age_days"),
		},
		HTTP: HTTPConfig{
			RequestTimeout: v.GetDuration("http.request_timeout"),
			MaxRetries:     v.GetInt("http.max_retries"),
			RetryBackoff:   v.GetDuration("http.retry_backoff"),
			RateLimitRPS:   v.GetInt("http.rate_limit_rps"),
			RateLimitBurst: v.GetInt("http.rate_limit_burst"),
		},
		Auth: AuthConfig{
			Token:        v.GetString("auth.token"),
			ClientID:     v.GetString("auth.client_id"),
			ClientSecret: v.GetString("auth.client_secret"),
			RefreshToken: v.GetString("auth.refresh_token"),
		},
		Direct: DirectConfig{
			APIURL:      v.GetString("direct.api_url"),
			ReportsURL:  v.GetString("direct.reports_url"),
			ClientLogin: v.GetString("direct.client_login"),
		},
		Metrica: MetricaConfig{
			StatAPIURL:       v.GetString("metrica.stat_api_url"),
			ManagementAPIURL: v.GetString("metrica.management_api_url"),
			CounterID:        v.GetString("metrica.counter_id"),
		},
		Accounts: AccountsConfig{
			Path: v.GetString("accounts.path"),
		},
		Cache: CacheConfig{
			TTL: v.GetDuration("cache.ttl"),
		},
	}

	return config, nil
}
