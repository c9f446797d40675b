package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"go.accesshub.tech/internal/auth"
	"go.accesshub.tech/internal/common/metrics"
)

// maxErrorBody caps how much of a failure response body is read.
const maxErrorBody = 64 * 1024

// refreshKey is the single-flight key for session refresh; one key
// means at most one outstanding refresh call system-wide.
const refreshKey = "session-refresh"

// Client is the authenticated transport every resource container calls
// through. It injects the bearer credential, classifies failures into
// typed *Error values, refreshes an expired session exactly once per
// expiry (shared by all concurrent callers), and replays the original
// request a single time after a successful refresh.
type Client struct {
	baseURL     string
	refreshPath string
	httpClient  *http.Client
	session     *auth.Session

	refreshGroup singleflight.Group
	breaker      *gobreaker.CircuitBreaker
	limiter      *rate.Limiter
}

// ClientConfig configures the transport.
type ClientConfig struct {
	// BaseURL is the admin API base URL (required)
	BaseURL string

	// RefreshPath is the token refresh endpoint (default "/auth/refresh")
	RefreshPath string

	// RequestTimeout bounds each outbound call
	RequestTimeout time.Duration

	// RateLimit is the outbound requests-per-second ceiling (0 = unlimited)
	RateLimit float64

	// RateBurst is the limiter burst size when RateLimit is set
	RateBurst int

	// CircuitBreaker settings
	CircuitBreakerEnabled     bool
	CircuitBreakerInterval    time.Duration // stats window
	CircuitBreakerRatio       float64       // failure ratio to trip
	CircuitBreakerTimeout     time.Duration // time in open state before half-open
	CircuitBreakerMinRequests uint32        // min requests before evaluating ratio
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		RefreshPath:               "/auth/refresh",
		RequestTimeout:            30 * time.Second,
		CircuitBreakerEnabled:     true,
		CircuitBreakerInterval:    60 * time.Second,
		CircuitBreakerRatio:       0.5,
		CircuitBreakerTimeout:     5 * time.Second,
		CircuitBreakerMinRequests: 10,
	}
}

// NewClient creates the transport bound to one session.
func NewClient(cfg *ClientConfig, session *auth.Session) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	refreshPath := cfg.RefreshPath
	if refreshPath == "" {
		refreshPath = "/auth/refresh"
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:     cfg.BaseURL,
		refreshPath: refreshPath,
		session:     session,
		httpClient:  &http.Client{Timeout: timeout},
	}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.CircuitBreakerEnabled {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "admin-api",
			Interval: cfg.CircuitBreakerInterval,
			Timeout:  cfg.CircuitBreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cfg.CircuitBreakerMinRequests {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= cfg.CircuitBreakerRatio
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				slog.Info("Circuit breaker state changed",
					"name", name,
					"from", from.String(),
					"to", to.String())
				switch to {
				case gobreaker.StateClosed:
					metrics.CircuitBreakerStateGauge.Set(metrics.CircuitBreakerClosed)
				case gobreaker.StateOpen:
					metrics.CircuitBreakerStateGauge.Set(metrics.CircuitBreakerOpen)
					metrics.CircuitBreakerTrips.Inc()
				case gobreaker.StateHalfOpen:
					metrics.CircuitBreakerStateGauge.Set(metrics.CircuitBreakerHalfOpen)
				}
			},
		})
	}

	return c
}

// Session exposes the bound session (read-only use by callers).
func (c *Client) Session() *auth.Session {
	return c.session
}

// Get issues an authenticated GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues an authenticated PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Delete issues an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodDelete, path, body, out)
}

// Do executes one authenticated call. Structured bodies are JSON
// encoded; []byte and io.Reader bodies pass through untouched so
// file/multipart uploads keep their caller-set content type.
//
// On a 401 the session is refreshed (single-flight) and the call is
// replayed exactly once; a second 401 is surfaced as terminal.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if c.session.AccessToken() == "" {
		return terminalAuthError()
	}

	payload, contentType, err := encodeBody(body)
	if err != nil {
		return err
	}

	// Refresh up front when the token is already known to be expired
	// instead of paying for a guaranteed 401 round-trip.
	if c.session.Expired(time.Now()) {
		if err := c.refresh(ctx); err != nil {
			return err
		}
	}

	err = c.attempt(ctx, method, path, payload, contentType, out, true)

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.ShouldRetry {
		// Session was refreshed; replay once with the new credential.
		err = c.attempt(ctx, method, path, payload, contentType, out, false)
	}
	return err
}

// attempt performs a single HTTP round-trip. allowRefresh controls
// whether a 401 triggers the refresh-and-replay protocol or is terminal.
func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, contentType string, out any, allowRefresh bool) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return networkError(err)
		}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.session.AccessToken())
	req.Header.Set("X-Request-ID", uuid.New().String())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.send(req)
	metrics.APIRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			metrics.APIRequestsTotal.WithLabelValues(method, metrics.StatusClass(apiErr.HTTPStatus)).Inc()
			return apiErr
		}
		metrics.APIRequestsTotal.WithLabelValues(method, "error").Inc()
		return networkError(err)
	}
	defer resp.Body.Close()

	metrics.APIRequestsTotal.WithLabelValues(method, metrics.StatusClass(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		if !allowRefresh {
			return ParseError(http.StatusUnauthorized, nil)
		}
		if err := c.refresh(ctx); err != nil {
			return err
		}
		return retrySignal()
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ParseError(resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(err)
	}
	// An empty success body decodes to the zero value, not an error.
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// send runs the round-trip through the circuit breaker when enabled.
// Only network failures and 5xx responses count against the breaker;
// 4xx business errors do not.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			return nil, ParseError(resp.StatusCode, body)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, unavailableError(err.Error())
		}
		return nil, err
	}
	return result.(*http.Response), nil
}

// refreshRequest is the body sent to the refresh endpoint.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refreshResponse is the body returned by the refresh endpoint.
type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// refresh performs the single-flight session refresh. However many
// concurrent calls observe an expired session, exactly one refresh
// request is issued; every caller shares its outcome. On failure the
// session is cleared (once) inside the shared flight, which purges the
// persisted keys and fires the logout hook.
func (c *Client) refresh(ctx context.Context) error {
	_, err, shared := c.refreshGroup.Do(refreshKey, func() (any, error) {
		if err := c.doRefresh(ctx); err != nil {
			metrics.TokenRefreshTotal.WithLabelValues("failure").Inc()
			slog.Error("Session refresh failed, signing out", "error", err)
			c.session.Clear(ctx)
			return nil, err
		}
		metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
		return nil, nil
	})
	if err != nil {
		return terminalAuthError()
	}
	if shared {
		slog.Debug("Session refresh shared with concurrent caller")
	}
	return nil
}

// doRefresh issues the actual refresh call, bypassing the 401 handling
// in attempt so a failing refresh can never recurse.
func (c *Client) doRefresh(ctx context.Context) error {
	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		return fmt.Errorf("no refresh token available")
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.refreshPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("refresh rejected with status %d: %s", resp.StatusCode, string(body))
	}

	var tokens refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if tokens.AccessToken == "" {
		return fmt.Errorf("refresh response missing access token")
	}

	pair := auth.TokenPair{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
	}
	if tokens.ExpiresIn > 0 {
		pair.ExpiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}
	if err := c.session.SetTokens(ctx, pair); err != nil {
		return fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	slog.Debug("Session refreshed")
	return nil
}

// encodeBody prepares the request payload. []byte and io.Reader pass
// through with no content type; anything else is JSON encoded. Reader
// bodies are buffered so the replay after a refresh can resend them.
func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "", nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read request body: %w", err)
		}
		return data, "", nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, "application/json", nil
	}
}

// networkError normalizes a raw transport failure into the typed taxonomy.
func networkError(err error) *Error {
	return &Error{
		HTTPStatus: 0,
		Code:       "NETWORK",
		Message:    "Unable to reach the server. Please check your connection.",
		Details:    map[string]any{"cause": err.Error()},
	}
}
