package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	SinkURL          string
	SinkSecret       string
	DatabaseURL      string
	CampaignDir      string
	Port             string
	HTTPTimeout      time.Duration
	FetchConcurrency int
	FetchRPS         float64
	LogLevel         slog.Level
}

func FromEnv() Config {
	to := 15 * time.Second
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			to = d
		}
	}
	lvl := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return Config{
		SinkURL:          os.Getenv("SINK_URL"),
		SinkSecret:       os.Getenv("SINK_SECRET"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		CampaignDir:      envOr("CAMPAIGN_DIR", "campaigns"),
		Port:             envOr("PORT", "8080"),
		HTTPTimeout:      to,
		FetchConcurrency: envInt("FETCH_CONCURRENCY", 4),
		FetchRPS:         envFloat("FETCH_RPS", 5),
		LogLevel:         lvl,
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}
