// AccessHub Admin Console Core
//
// Hosts the data-access core for the admin console: the authenticated
// transport, the session store, and one fetch orchestrator per IAM
// resource kind, plus a local operational HTTP surface exposing
// health checks and Prometheus metrics.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.accesshub.tech/internal/api"
	"go.accesshub.tech/internal/auth"
	"go.accesshub.tech/internal/common/health"
	"go.accesshub.tech/internal/common/lifecycle"
	"go.accesshub.tech/internal/config"
	"go.accesshub.tech/internal/iam"
	"go.accesshub.tech/internal/resource"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Configure logging
	logLevel := slog.LevelInfo
	if os.Getenv("ACCESSHUB_DEV") == "true" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting AccessHub Admin Console Core",
		"version", version,
		"build_time", buildTime)

	// Load configuration (TOML file + env overrides)
	cfg, err := config.LoadWithFile()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session persistence backend
	store, err := newSessionStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize session store", "type", cfg.SessionStore.Type, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Session store ready", "type", cfg.SessionStore.Type)

	// Restore any persisted session
	session, err := auth.NewSession(ctx, store, func() {
		slog.Warn("Session terminated, sign-in required")
	})
	if err != nil {
		slog.Error("Failed to restore session", "error", err)
		os.Exit(1)
	}
	if session.AccessToken() != "" {
		slog.Info("Restored persisted session")
	}

	// Authenticated transport to the remote admin API
	clientCfg := &api.ClientConfig{
		BaseURL:                   cfg.API.BaseURL,
		RefreshPath:               cfg.API.RefreshPath,
		RequestTimeout:            cfg.API.RequestTimeout,
		RateLimit:                 cfg.API.RateLimit,
		RateBurst:                 cfg.API.RateBurst,
		CircuitBreakerEnabled:     cfg.API.CircuitBreakerEnabled,
		CircuitBreakerInterval:    cfg.API.CircuitBreakerInterval,
		CircuitBreakerRatio:       cfg.API.CircuitBreakerRatio,
		CircuitBreakerTimeout:     cfg.API.CircuitBreakerTimeout,
		CircuitBreakerMinRequests: uint32(cfg.API.CircuitBreakerMinRequests),
	}
	client := api.NewClient(clientCfg, session)
	slog.Info("Admin API transport ready", "baseURL", cfg.API.BaseURL)

	// One orchestrator per IAM resource kind
	console := iam.NewConsole(client, resource.LogNotifier{}, resource.Timing{
		DebounceDelay:            cfg.Fetch.DebounceDelay,
		DedupClearDelay:          cfg.Fetch.DedupClearDelay,
		AllCacheReplaceThreshold: cfg.Fetch.AllCacheReplaceThreshold,
	})

	// Health checks: remote API reachability + session store access
	healthChecker := health.NewChecker()
	healthChecker.AddReadinessCheck(health.AdminAPICheck(func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		req, err := http.NewRequestWithContext(pingCtx, http.MethodHead, cfg.API.BaseURL, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}))
	healthChecker.AddReadinessCheck(health.SessionStoreCheck(func() error {
		_, err := store.Get(ctx, auth.KeyAccessToken)
		return err
	}))

	// Operational HTTP surface (local only: health + metrics)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Ops.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/q/health", healthChecker.HandleHealth)
	r.Get("/q/health/live", healthChecker.HandleLive)
	r.Get("/q/health/ready", healthChecker.HandleReady)

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/q/metrics", promhttp.Handler())

	// Per-resource state summary for debugging
	r.Get("/q/resources", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"clients":%s,"users":%s,"roles":%s,"permissions":%s,"audit_log":%s,"settings":%s}`,
			resourceSummary(console.Clients.State().TotalCount, console.Clients.State().Error),
			resourceSummary(console.Users.State().TotalCount, console.Users.State().Error),
			resourceSummary(console.Roles.State().TotalCount, console.Roles.State().Error),
			resourceSummary(console.Permissions.State().TotalCount, console.Permissions.State().Error),
			resourceSummary(console.AuditLog.State().TotalCount, console.AuditLog.State().Error),
			resourceSummary(console.Settings.State().TotalCount, console.Settings.State().Error))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Ops.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run under the supervisor until a shutdown signal arrives
	if err := lifecycle.Run(ctx, lifecycle.NewHTTPService("ops-http", server)); err != nil {
		slog.Error("Shutdown with error", "error", err)
		os.Exit(1)
	}

	slog.Info("AccessHub Admin Console Core stopped")
}

// resourceSummary renders one container's state as a JSON fragment.
func resourceSummary(total int, errMsg string) string {
	if errMsg != "" {
		return fmt.Sprintf(`{"total":%d,"error":%q}`, total, errMsg)
	}
	return fmt.Sprintf(`{"total":%d}`, total)
}

// newSessionStore creates the configured session persistence backend.
func newSessionStore(cfg *config.Config) (auth.Store, error) {
	switch cfg.SessionStore.Type {
	case "memory":
		return auth.NewMemoryStore(), nil
	case "file", "":
		return auth.NewFileStore(cfg.SessionStore.FilePath)
	case "redis":
		return auth.NewRedisStore(&auth.RedisConfig{
			Addr:     cfg.SessionStore.Redis.Addr,
			Password: cfg.SessionStore.Redis.Password,
			DB:       cfg.SessionStore.Redis.DB,
			Prefix:   cfg.SessionStore.Redis.Prefix,
			TTL:      cfg.SessionStore.Redis.TTL,
		})
	default:
		return nil, fmt.Errorf("unknown session store type: %s", cfg.SessionStore.Type)
	}
}
