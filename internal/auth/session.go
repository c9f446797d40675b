package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is the credential pair issued by the auth endpoint.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// Session is the process-wide auth session shared by every resource
// container through the transport. It is mutated only by the
// transport's refresh routine and by SignIn/Clear.
type Session struct {
	mu    sync.RWMutex
	store Store
	pair  TokenPair

	// onLogout is invoked after the session has been cleared on a
	// terminal auth failure (navigation back to the sign-in screen).
	onLogout func()
}

// NewSession creates a session backed by store, restoring any
// previously persisted credentials. onLogout may be nil.
func NewSession(ctx context.Context, store Store, onLogout func()) (*Session, error) {
	s := &Session{store: store, onLogout: onLogout}

	access, err := store.Get(ctx, KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	if access == "" {
		return s, nil
	}

	refresh, err := store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	tokenType, _ := store.Get(ctx, KeyTokenType)
	expiresAt, _ := store.Get(ctx, KeyExpiresAt)

	s.pair = TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenType,
		ExpiresAt:    parseExpiry(expiresAt, access),
	}
	return s, nil
}

// AccessToken returns the current access token, or "" when signed out.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.AccessToken
}

// RefreshToken returns the current refresh token, or "" when absent.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.RefreshToken
}

// Expired reports whether the access token is known to be expired.
// A zero expiry (opaque token, no exp claim) is treated as not expired;
// the 401 path catches those.
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.pair.ExpiresAt.IsZero() && now.After(s.pair.ExpiresAt)
}

// SetTokens replaces the credential pair and persists it. An empty
// ExpiresAt is derived from the access token's exp claim when possible.
func (s *Session) SetTokens(ctx context.Context, pair TokenPair) error {
	if pair.ExpiresAt.IsZero() {
		if exp, err := TokenExpiry(pair.AccessToken); err == nil {
			pair.ExpiresAt = exp
		}
	}

	s.mu.Lock()
	s.pair = pair
	s.mu.Unlock()

	if err := s.store.Set(ctx, KeyAccessToken, pair.AccessToken); err != nil {
		return err
	}
	if err := s.store.Set(ctx, KeyRefreshToken, pair.RefreshToken); err != nil {
		return err
	}
	if err := s.store.Set(ctx, KeyTokenType, pair.TokenType); err != nil {
		return err
	}
	expires := ""
	if !pair.ExpiresAt.IsZero() {
		expires = strconv.FormatInt(pair.ExpiresAt.Unix(), 10)
	}
	return s.store.Set(ctx, KeyExpiresAt, expires)
}

// SetCached persists cached principal data (user, permissions, roles)
// under one of the fixed keys so it is purged together with the tokens.
func (s *Session) SetCached(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, key, value)
}

// Cached reads cached principal data.
func (s *Session) Cached(ctx context.Context, key string) (string, error) {
	return s.store.Get(ctx, key)
}

// Clear wipes the in-memory pair, purges every persisted key, and
// invokes the logout hook. Used on terminal auth failure and sign-out.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.pair = TokenPair{}
	s.mu.Unlock()

	var firstErr error
	for _, key := range PersistedKeys() {
		if err := s.store.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	slog.Info("Session cleared")
	if s.onLogout != nil {
		s.onLogout()
	}
	return firstErr
}

// TokenExpiry extracts the expiry from a JWT access token without
// verifying its signature. Verification is the server's job; the
// client only needs the exp claim to refresh proactively.
func TokenExpiry(token string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse access token: %w", err)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("access token has no expiry claim")
	}
	return exp.Time, nil
}

// parseExpiry restores a persisted unix-seconds expiry, falling back to
// the token's own exp claim.
func parseExpiry(persisted, accessToken string) time.Time {
	if persisted != "" {
		if unix, err := strconv.ParseInt(persisted, 10, 64); err == nil {
			return time.Unix(unix, 0)
		}
	}
	if exp, err := TokenExpiry(accessToken); err == nil {
		return exp
	}
	return time.Time{}
}
