package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	BackendURL      string // base URL of the CAPMIS REST backend
	HTTPAddr        string
	Location        *time.Location
	LogLevel        string
	Env             string // dev|prod
	SentryDSN       string
	APITimeout      time.Duration // default per-call timeout against the backend
	GenerateTimeout time.Duration // ceiling for card generation requests
	OverdueScan     time.Duration // interval of the overdue-permission job
	TokenDir        string        // override for the session token directory
}

func Load() (*Config, error) {
	tz := getenv("TZ", "Africa/Douala")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	apiTimeout, err := parseDuration("API_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	genTimeout, err := parseDuration("GENERATE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	overdueScan, err := parseDuration("OVERDUE_SCAN_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BackendURL:      mustEnv("CAPMIS_API_URL"),
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		Location:        loc,
		LogLevel:        getenv("LOG_LEVEL", "info"),
		Env:             getenv("ENV", "dev"),
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		APITimeout:      apiTimeout,
		GenerateTimeout: genTimeout,
		OverdueScan:     overdueScan,
		TokenDir:        os.Getenv("TOKEN_DIR"),
	}
	return cfg, nil
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
