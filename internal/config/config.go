package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the AccessHub admin console core
type Config struct {
	// API is the remote admin API the console talks to
	API APIConfig

	// SessionStore selects where the auth session is persisted
	SessionStore SessionStoreConfig

	// Fetch tunes the per-resource fetch orchestrators
	Fetch FetchConfig

	// Ops configures the local operational HTTP surface (health, metrics)
	Ops OpsConfig

	// Development mode
	DevMode bool
}

// APIConfig holds remote API transport configuration
type APIConfig struct {
	BaseURL        string
	RefreshPath    string
	RequestTimeout time.Duration

	// RateLimit caps outbound requests per second (0 = unlimited)
	RateLimit float64
	RateBurst int

	CircuitBreakerEnabled     bool
	CircuitBreakerInterval    time.Duration
	CircuitBreakerRatio       float64
	CircuitBreakerTimeout     time.Duration
	CircuitBreakerMinRequests int
}

// SessionStoreConfig selects the session persistence backend
type SessionStoreConfig struct {
	Type string // "memory", "file", "redis"

	// FilePath is the session file location for the file backend
	FilePath string

	Redis RedisConfig
}

// RedisConfig holds Redis connection configuration for the session store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// FetchConfig tunes the orchestrator timing disciplines
type FetchConfig struct {
	// DebounceDelay before a search-term edit triggers a refetch
	DebounceDelay time.Duration

	// DedupClearDelay after a fetch settles before an identical one
	// is allowed again
	DedupClearDelay time.Duration

	// AllCacheReplaceThreshold for the all-items cache merge heuristic
	AllCacheReplaceThreshold int
}

// OpsConfig holds the local operational HTTP server configuration
type OpsConfig struct {
	Port        int
	CORSOrigins []string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL:        getEnv("ACCESSHUB_API_BASE_URL", "http://localhost:8080"),
			RefreshPath:    getEnv("ACCESSHUB_API_REFRESH_PATH", "/auth/refresh"),
			RequestTimeout: getEnvDuration("ACCESSHUB_API_TIMEOUT", 30*time.Second),

			RateLimit: getEnvFloat("ACCESSHUB_API_RATE_LIMIT", 0),
			RateBurst: getEnvInt("ACCESSHUB_API_RATE_BURST", 1),

			CircuitBreakerEnabled:     getEnvBool("ACCESSHUB_API_BREAKER_ENABLED", true),
			CircuitBreakerInterval:    getEnvDuration("ACCESSHUB_API_BREAKER_INTERVAL", 60*time.Second),
			CircuitBreakerRatio:       getEnvFloat("ACCESSHUB_API_BREAKER_RATIO", 0.5),
			CircuitBreakerTimeout:     getEnvDuration("ACCESSHUB_API_BREAKER_TIMEOUT", 5*time.Second),
			CircuitBreakerMinRequests: getEnvInt("ACCESSHUB_API_BREAKER_MIN_REQUESTS", 10),
		},

		SessionStore: SessionStoreConfig{
			Type:     getEnv("ACCESSHUB_SESSION_STORE", "file"),
			FilePath: getEnv("ACCESSHUB_SESSION_FILE", "./data/session.json"),
			Redis: RedisConfig{
				Addr:     getEnv("ACCESSHUB_REDIS_ADDR", "localhost:6379"),
				Password: getEnv("ACCESSHUB_REDIS_PASSWORD", ""),
				DB:       getEnvInt("ACCESSHUB_REDIS_DB", 0),
				Prefix:   getEnv("ACCESSHUB_REDIS_PREFIX", "accesshub:session:"),
				TTL:      getEnvDuration("ACCESSHUB_REDIS_TTL", 0),
			},
		},

		Fetch: FetchConfig{
			DebounceDelay:            getEnvDuration("ACCESSHUB_FETCH_DEBOUNCE", 300*time.Millisecond),
			DedupClearDelay:          getEnvDuration("ACCESSHUB_FETCH_DEDUP_CLEAR", 100*time.Millisecond),
			AllCacheReplaceThreshold: getEnvInt("ACCESSHUB_ALL_CACHE_THRESHOLD", 25),
		},

		Ops: OpsConfig{
			Port:        getEnvInt("ACCESSHUB_OPS_PORT", 9090),
			CORSOrigins: getEnvSlice("ACCESSHUB_CORS_ORIGINS", []string{"http://localhost:4200"}),
		},

		DevMode: getEnvBool("ACCESSHUB_DEV", false),
	}

	return cfg, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return defaultValue
}
