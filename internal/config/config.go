package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Port               string `yaml:"port"`
	RequestTimeoutSec  int    `yaml:"request_timeout_sec"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
	// MaxBatch caps identifiers per batch request.
	MaxBatch       int `yaml:"max_batch"`
	MaxConcurrency int `yaml:"max_concurrency"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type Provider struct {
	// Active names the provider the factory builds: finnhub or yahoo.
	Active string `yaml:"active"`
}

// Limits is the request discipline and cache sizing shared by every
// provider section.
type Limits struct {
	MinRequestIntervalMS int `yaml:"min_request_interval_ms"`
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`
	Burst                int `yaml:"burst"`
	MaxAttempts          int `yaml:"max_attempts"`
	BaseDelayMS          int `yaml:"base_delay_ms"`
	RequestTimeoutSec    int `yaml:"request_timeout_sec"`
	ISINCacheTTLSec      int `yaml:"isin_cache_ttl_sec"`
	ISINCacheMaxItems    int `yaml:"isin_cache_max_items"`
	PriceCacheTTLSec     int `yaml:"price_cache_ttl_sec"`
	PriceCacheMaxItems   int `yaml:"price_cache_max_items"`
}

func (l Limits) MinInterval() time.Duration {
	return time.Duration(l.MinRequestIntervalMS) * time.Millisecond
}

func (l Limits) BaseDelay() time.Duration { return time.Duration(l.BaseDelayMS) * time.Millisecond }

func (l Limits) Timeout() time.Duration { return time.Duration(l.RequestTimeoutSec) * time.Second }

func (l Limits) ISINCacheTTL() time.Duration {
	return time.Duration(l.ISINCacheTTLSec) * time.Second
}

func (l Limits) PriceCacheTTL() time.Duration {
	return time.Duration(l.PriceCacheTTLSec) * time.Second
}

type Finnhub struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	OpenFIGIURL    string `yaml:"openfigi_url"`
	OpenFIGIAPIKey string `yaml:"openfigi_api_key"`
	Limits         `yaml:",inline"`
}

type Yahoo struct {
	Enabled   bool   `yaml:"enabled"`
	ChartURL  string `yaml:"chart_url"`
	SearchURL string `yaml:"search_url"`
	Limits    `yaml:",inline"`
}

type Config struct {
	Server   Server   `yaml:"server"`
	Log      Log      `yaml:"log"`
	Provider Provider `yaml:"provider"`
	Finnhub  Finnhub  `yaml:"finnhub"`
	Yahoo    Yahoo    `yaml:"yahoo"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 30, ShutdownTimeoutSec: 10, MaxBatch: 100, MaxConcurrency: 4},
		Log:    Log{Level: "info", Format: "console"},
		Provider: Provider{
			Active: "finnhub",
		},
		Finnhub: Finnhub{
			BaseURL:     "https://finnhub.io/api/v1",
			OpenFIGIURL: "https://api.openfigi.com",
			Limits: Limits{
				MinRequestIntervalMS: 1000,
				MaxAttempts:          3,
				BaseDelayMS:          500,
				RequestTimeoutSec:    10,
				ISINCacheTTLSec:      24 * 60 * 60,
				ISINCacheMaxItems:    1000,
				PriceCacheTTLSec:     60,
				PriceCacheMaxItems:   500,
			},
		},
		Yahoo: Yahoo{
			Enabled:   true,
			ChartURL:  "https://query1.finance.yahoo.com/v8/finance/chart",
			SearchURL: "https://query1.finance.yahoo.com/v1/finance/search",
			Limits: Limits{
				MinRequestIntervalMS: 500,
				MaxAttempts:          3,
				BaseDelayMS:          500,
				RequestTimeoutSec:    10,
				ISINCacheTTLSec:      24 * 60 * 60,
				ISINCacheMaxItems:    1000,
				PriceCacheTTLSec:     60,
				PriceCacheMaxItems:   500,
			},
		},
	}
}

// Load reads YAML config from path. JSON files parse too. If path is empty
// it falls back to config.yaml or config.json in the working directory, and
// a missing file yields defaults. Environment variables override select
// fields, secrets in particular.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, candidate := range []string{"config.yaml", "config.yml", "config.json"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	envInt("REQUEST_TIMEOUT_SEC", 1, &cfg.Server.RequestTimeoutSec)
	envInt("MAX_BATCH", 1, &cfg.Server.MaxBatch)
	envInt("MAX_CONCURRENCY", 1, &cfg.Server.MaxConcurrency)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("PRICE_PROVIDER"); v != "" {
		cfg.Provider.Active = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Finnhub.APIKey = v
	}
	if v := os.Getenv("FINNHUB_BASE_URL"); v != "" {
		cfg.Finnhub.BaseURL = v
	}
	if v := os.Getenv("OPENFIGI_API_KEY"); v != "" {
		cfg.Finnhub.OpenFIGIAPIKey = v
	}
	if v := os.Getenv("OPENFIGI_URL"); v != "" {
		cfg.Finnhub.OpenFIGIURL = v
	}
	applyLimitsEnv("FINNHUB", &cfg.Finnhub.Limits)

	envBool("YAHOO_ENABLED", &cfg.Yahoo.Enabled)
	if v := os.Getenv("YAHOO_CHART_URL"); v != "" {
		cfg.Yahoo.ChartURL = v
	}
	if v := os.Getenv("YAHOO_SEARCH_URL"); v != "" {
		cfg.Yahoo.SearchURL = v
	}
	applyLimitsEnv("YAHOO", &cfg.Yahoo.Limits)
}

func applyLimitsEnv(prefix string, l *Limits) {
	envInt(prefix+"_MIN_INTERVAL_MS", 0, &l.MinRequestIntervalMS)
	envInt(prefix+"_MAX_RPM", 0, &l.MaxRequestsPerMinute)
	envInt(prefix+"_BURST", 1, &l.Burst)
	envInt(prefix+"_MAX_ATTEMPTS", 1, &l.MaxAttempts)
	envInt(prefix+"_BASE_DELAY_MS", 0, &l.BaseDelayMS)
	envInt(prefix+"_REQUEST_TIMEOUT_SEC", 1, &l.RequestTimeoutSec)
	envInt(prefix+"_ISIN_CACHE_TTL_SEC", 1, &l.ISINCacheTTLSec)
	envInt(prefix+"_ISIN_CACHE_MAX_ITEMS", 1, &l.ISINCacheMaxItems)
	envInt(prefix+"_PRICE_CACHE_TTL_SEC", 1, &l.PriceCacheTTLSec)
	envInt(prefix+"_PRICE_CACHE_MAX_ITEMS", 1, &l.PriceCacheMaxItems)
}

// envInt sets *dst from the named variable when it parses and is >= floor.
func envInt(name string, floor int, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var x int
	if _, err := fmt.Sscanf(v, "%d", &x); err == nil && x >= floor {
		*dst = x
	}
}

func envBool(name string, dst *bool) {
	switch strings.ToLower(os.Getenv(name)) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	}
}
