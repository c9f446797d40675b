//go:build integration

// This file contains integration tests that require Docker.
package auth

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis starts a disposable Redis container and returns its address.
func startRedis(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}
	return endpoint
}

func TestRedisStoreIntegration_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	addr := startRedis(ctx, t)

	store, err := NewRedisStore(&RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if v, err := store.Get(ctx, KeyAccessToken); err != nil || v != "" {
		t.Fatalf("Get on empty store = (%q, %v), want empty", v, err)
	}

	if err := store.Set(ctx, KeyAccessToken, "tok-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, err := store.Get(ctx, KeyAccessToken)
	if err != nil || v != "tok-1" {
		t.Fatalf("Get = (%q, %v), want tok-1", v, err)
	}

	if err := store.Delete(ctx, KeyAccessToken); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if v, _ := store.Get(ctx, KeyAccessToken); v != "" {
		t.Errorf("Get after Delete = %q, want empty", v)
	}
}

func TestRedisStoreIntegration_SessionShared(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	addr := startRedis(ctx, t)

	store, err := NewRedisStore(&RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	first, err := NewSession(ctx, store, nil)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	err = first.SetTokens(ctx, TokenPair{
		AccessToken:  "tok-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    expiry,
	})
	if err != nil {
		t.Fatalf("SetTokens failed: %v", err)
	}

	// A second console instance restores the same session from Redis.
	second, err := NewSession(ctx, store, nil)
	if err != nil {
		t.Fatalf("NewSession (second instance) failed: %v", err)
	}
	if second.AccessToken() != "tok-1" {
		t.Errorf("second instance token = %q, want tok-1", second.AccessToken())
	}
	if second.Expired(expiry.Add(-time.Minute)) {
		t.Error("second instance reports expired before the shared expiry")
	}

	// Clearing in one instance purges the shared keys.
	if err := second.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	for _, key := range PersistedKeys() {
		if v, _ := store.Get(ctx, key); v != "" {
			t.Errorf("key %q survived Clear with value %q", key, v)
		}
	}
}
