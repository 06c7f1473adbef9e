package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	SessionSigningSecret string
	SessionClockSkewSecs int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int
	RateLimitSweepSeconds  int

	AnonRateRPS   float64
	AnonRateBurst int

	StoreTimeoutMillis int
	AuditQueueSize     int

	RoutePolicyFile string
	MetricsEnabled  bool
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		SessionSigningSecret:   os.Getenv("SESSION_SIGNING_SECRET"),
		SessionClockSkewSecs:   envIntDefault("SESSION_CLOCK_SKEW_SECONDS", 60),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RateLimitSweepSeconds:  envIntDefault("RATE_LIMIT_SWEEP_SECONDS", 60),
		AnonRateRPS:            envFloatDefault("ANON_RATE_RPS", 5),
		AnonRateBurst:          envIntDefault("ANON_RATE_BURST", 10),
		StoreTimeoutMillis:     envIntDefault("STORE_TIMEOUT_MS", 2000),
		AuditQueueSize:         envIntDefault("AUDIT_QUEUE_SIZE", 1024),
		RoutePolicyFile:        os.Getenv("ROUTE_POLICY_FILE"),
		MetricsEnabled:         envBoolDefault("METRICS_ENABLED", false),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) RateLimitSweepInterval() time.Duration {
	if c.RateLimitSweepSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitSweepSeconds) * time.Second
}

func (c Config) StoreTimeout() time.Duration {
	if c.StoreTimeoutMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.StoreTimeoutMillis) * time.Millisecond
}

func (c Config) SessionClockSkew() time.Duration {
	if c.SessionClockSkewSecs <= 0 {
		return 0
	}
	return time.Duration(c.SessionClockSkewSecs) * time.Second
}
