package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         string
	DatabasePath string

	APIKey    string
	SentryDSN string

	KeyPrefix string

	RateLimitMax    int
	RateLimitWindow time.Duration
}

func New() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "licenses.db"
	}

	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		return nil, errors.New("API_KEY environment variable is required")
	}

	keyPrefix := os.Getenv("KEY_PREFIX")
	if keyPrefix == "" {
		keyPrefix = "TLIC"
	}

	rateLimitMax := 60
	if v := os.Getenv("RATE_LIMIT_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, errors.New("RATE_LIMIT_MAX must be a non-negative integer")
		}
		rateLimitMax = n
	}

	rateLimitWindow := time.Minute
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, errors.New("RATE_LIMIT_WINDOW must be a positive duration")
		}
		rateLimitWindow = d
	}

	return &Config{
		Port:            port,
		DatabasePath:    dbPath,
		APIKey:          apiKey,
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		KeyPrefix:       keyPrefix,
		RateLimitMax:    rateLimitMax,
		RateLimitWindow: rateLimitWindow,
	}, nil
}
