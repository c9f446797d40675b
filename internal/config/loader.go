package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// TOMLConfig represents the TOML configuration file structure
type TOMLConfig struct {
	API          TOMLAPIConfig          `toml:"api"`
	SessionStore TOMLSessionStoreConfig `toml:"session_store"`
	Fetch        TOMLFetchConfig        `toml:"fetch"`
	Ops          TOMLOpsConfig          `toml:"ops"`
	DevMode      bool                   `toml:"dev_mode"`
}

// TOMLAPIConfig represents API transport configuration in TOML
type TOMLAPIConfig struct {
	BaseURL        string  `toml:"base_url"`
	RefreshPath    string  `toml:"refresh_path"`
	RequestTimeout string  `toml:"request_timeout"`
	RateLimit      float64 `toml:"rate_limit"`
	RateBurst      int     `toml:"rate_burst"`

	BreakerEnabled     bool    `toml:"breaker_enabled"`
	BreakerInterval    string  `toml:"breaker_interval"`
	BreakerRatio       float64 `toml:"breaker_ratio"`
	BreakerTimeout     string  `toml:"breaker_timeout"`
	BreakerMinRequests int     `toml:"breaker_min_requests"`
}

// TOMLSessionStoreConfig represents session store configuration in TOML
type TOMLSessionStoreConfig struct {
	Type     string          `toml:"type"`
	FilePath string          `toml:"file_path"`
	Redis    TOMLRedisConfig `toml:"redis"`
}

// TOMLRedisConfig represents Redis configuration in TOML
type TOMLRedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
	TTL      string `toml:"ttl"`
}

// TOMLFetchConfig represents orchestrator tuning in TOML
type TOMLFetchConfig struct {
	DebounceDelay            string `toml:"debounce_delay"`
	DedupClearDelay          string `toml:"dedup_clear_delay"`
	AllCacheReplaceThreshold int    `toml:"all_cache_replace_threshold"`
}

// TOMLOpsConfig represents the ops HTTP server configuration in TOML
type TOMLOpsConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// ConfigPaths are the standard locations searched for a config file
var ConfigPaths = []string{
	"./config.toml",
	"./config/config.toml",
	"/etc/accesshub/config.toml",
}

// LoadFromFile loads configuration from a TOML file
func LoadFromFile(path string) (*Config, error) {
	var tomlCfg TOMLConfig

	if _, err := toml.DecodeFile(path, &tomlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return tomlConfigToConfig(&tomlCfg)
}

// LoadWithFile loads configuration from file first, then overrides with env vars
func LoadWithFile() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	configPath := os.Getenv("ACCESSHUB_CONFIG")
	if configPath == "" {
		for _, path := range ConfigPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	}

	// No config file found, just use env vars
	if configPath == "" {
		return cfg, nil
	}

	fileCfg, err := LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	return mergeConfigs(fileCfg, cfg), nil
}

// tomlConfigToConfig converts TOML config to the internal Config struct,
// starting from defaults so unset sections keep sensible values.
func tomlConfigToConfig(tc *TOMLConfig) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if tc.API.BaseURL != "" {
		cfg.API.BaseURL = tc.API.BaseURL
	}
	if tc.API.RefreshPath != "" {
		cfg.API.RefreshPath = tc.API.RefreshPath
	}
	if d, err := parseDuration(tc.API.RequestTimeout); err != nil {
		return nil, fmt.Errorf("api.request_timeout: %w", err)
	} else if d > 0 {
		cfg.API.RequestTimeout = d
	}
	if tc.API.RateLimit > 0 {
		cfg.API.RateLimit = tc.API.RateLimit
	}
	if tc.API.RateBurst > 0 {
		cfg.API.RateBurst = tc.API.RateBurst
	}
	if tc.API.BreakerEnabled {
		cfg.API.CircuitBreakerEnabled = true
	}
	if d, err := parseDuration(tc.API.BreakerInterval); err != nil {
		return nil, fmt.Errorf("api.breaker_interval: %w", err)
	} else if d > 0 {
		cfg.API.CircuitBreakerInterval = d
	}
	if tc.API.BreakerRatio > 0 {
		cfg.API.CircuitBreakerRatio = tc.API.BreakerRatio
	}
	if d, err := parseDuration(tc.API.BreakerTimeout); err != nil {
		return nil, fmt.Errorf("api.breaker_timeout: %w", err)
	} else if d > 0 {
		cfg.API.CircuitBreakerTimeout = d
	}
	if tc.API.BreakerMinRequests > 0 {
		cfg.API.CircuitBreakerMinRequests = tc.API.BreakerMinRequests
	}

	if tc.SessionStore.Type != "" {
		cfg.SessionStore.Type = tc.SessionStore.Type
	}
	if tc.SessionStore.FilePath != "" {
		cfg.SessionStore.FilePath = tc.SessionStore.FilePath
	}
	if tc.SessionStore.Redis.Addr != "" {
		cfg.SessionStore.Redis.Addr = tc.SessionStore.Redis.Addr
	}
	if tc.SessionStore.Redis.Password != "" {
		cfg.SessionStore.Redis.Password = tc.SessionStore.Redis.Password
	}
	if tc.SessionStore.Redis.DB != 0 {
		cfg.SessionStore.Redis.DB = tc.SessionStore.Redis.DB
	}
	if tc.SessionStore.Redis.Prefix != "" {
		cfg.SessionStore.Redis.Prefix = tc.SessionStore.Redis.Prefix
	}
	if d, err := parseDuration(tc.SessionStore.Redis.TTL); err != nil {
		return nil, fmt.Errorf("session_store.redis.ttl: %w", err)
	} else if d > 0 {
		cfg.SessionStore.Redis.TTL = d
	}

	if d, err := parseDuration(tc.Fetch.DebounceDelay); err != nil {
		return nil, fmt.Errorf("fetch.debounce_delay: %w", err)
	} else if d > 0 {
		cfg.Fetch.DebounceDelay = d
	}
	if d, err := parseDuration(tc.Fetch.DedupClearDelay); err != nil {
		return nil, fmt.Errorf("fetch.dedup_clear_delay: %w", err)
	} else if d > 0 {
		cfg.Fetch.DedupClearDelay = d
	}
	if tc.Fetch.AllCacheReplaceThreshold > 0 {
		cfg.Fetch.AllCacheReplaceThreshold = tc.Fetch.AllCacheReplaceThreshold
	}

	if tc.Ops.Port != 0 {
		cfg.Ops.Port = tc.Ops.Port
	}
	if len(tc.Ops.CORSOrigins) > 0 {
		cfg.Ops.CORSOrigins = tc.Ops.CORSOrigins
	}
	if tc.DevMode {
		cfg.DevMode = true
	}

	return cfg, nil
}

// mergeConfigs merges two configs, with override taking precedence for
// values that differ from the built-in defaults.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	// API
	if override.API.BaseURL != "" && override.API.BaseURL != "http://localhost:8080" {
		result.API.BaseURL = override.API.BaseURL
	}
	if override.API.RefreshPath != "" && override.API.RefreshPath != "/auth/refresh" {
		result.API.RefreshPath = override.API.RefreshPath
	}
	if override.API.RequestTimeout != 0 && override.API.RequestTimeout != 30*time.Second {
		result.API.RequestTimeout = override.API.RequestTimeout
	}
	if override.API.RateLimit > 0 {
		result.API.RateLimit = override.API.RateLimit
	}
	if override.API.RateBurst > 1 {
		result.API.RateBurst = override.API.RateBurst
	}
	if !override.API.CircuitBreakerEnabled {
		result.API.CircuitBreakerEnabled = false
	}

	// Session store
	if override.SessionStore.Type != "" && override.SessionStore.Type != "file" {
		result.SessionStore.Type = override.SessionStore.Type
	}
	if override.SessionStore.FilePath != "" && override.SessionStore.FilePath != "./data/session.json" {
		result.SessionStore.FilePath = override.SessionStore.FilePath
	}
	if override.SessionStore.Redis.Addr != "" && override.SessionStore.Redis.Addr != "localhost:6379" {
		result.SessionStore.Redis.Addr = override.SessionStore.Redis.Addr
	}
	if override.SessionStore.Redis.Password != "" {
		result.SessionStore.Redis.Password = override.SessionStore.Redis.Password
	}
	if override.SessionStore.Redis.DB != 0 {
		result.SessionStore.Redis.DB = override.SessionStore.Redis.DB
	}

	// Fetch tuning
	if override.Fetch.DebounceDelay != 0 && override.Fetch.DebounceDelay != 300*time.Millisecond {
		result.Fetch.DebounceDelay = override.Fetch.DebounceDelay
	}
	if override.Fetch.DedupClearDelay != 0 && override.Fetch.DedupClearDelay != 100*time.Millisecond {
		result.Fetch.DedupClearDelay = override.Fetch.DedupClearDelay
	}
	if override.Fetch.AllCacheReplaceThreshold != 0 && override.Fetch.AllCacheReplaceThreshold != 25 {
		result.Fetch.AllCacheReplaceThreshold = override.Fetch.AllCacheReplaceThreshold
	}

	// Ops
	if override.Ops.Port != 0 && override.Ops.Port != 9090 {
		result.Ops.Port = override.Ops.Port
	}
	if override.DevMode {
		result.DevMode = true
	}

	return &result
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}
