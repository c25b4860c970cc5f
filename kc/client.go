package kc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default API endpoints and client policy.
const (
	DefaultBaseURL  = "https://api.kite.trade"
	DefaultLoginURL = "https://kite.trade/connect/login"
	DefaultTimeout  = 30 * time.Second

	// Kite enforces roughly 3 requests per second per app on most
	// endpoints; the client throttles itself to stay under it.
	DefaultRequestsPerSecond = 3

	kiteAPIVersion = "3"
)

// Config holds configuration for creating a new REST Client.
type Config struct {
	APIKey      string // required
	AccessToken string // optional: pre-set token to skip the login flow

	BaseURL           string        // optional, defaults to DefaultBaseURL
	LoginURL          string        // optional, defaults to DefaultLoginURL
	Timeout           time.Duration // optional, defaults to DefaultTimeout
	RequestsPerSecond int           // optional, defaults to DefaultRequestsPerSecond
	HTTPClient        *http.Client  // optional
	Logger            *slog.Logger  // optional, defaults to slog.Default()
}

// Client is a rate-limited HTTP client for the Kite Connect v3 REST API.
// It is safe for concurrent use; create one and reuse it.
type Client struct {
	apiKey   string
	baseURL  string
	loginURL string

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	mu          sync.RWMutex
	accessToken string
}

// New creates a new REST Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("APIKey is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		loginURL:    cfg.LoginURL,
		httpClient:  cfg.HTTPClient,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond),
		logger:      cfg.Logger,
		accessToken: cfg.AccessToken,
	}, nil
}

// SetAccessToken sets the access token used on authenticated requests.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// AccessToken returns the current access token.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// apiResponse is the Kite Connect JSON envelope.
type apiResponse struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
}

// do performs a rate-limited request against the API and decodes the data
// envelope into out (which may be nil to discard the payload). params are
// sent as query values for GET/DELETE and as a form body otherwise.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := c.baseURL + path
	var body io.Reader
	if params != nil {
		switch method {
		case http.MethodGet, http.MethodDelete:
			endpoint += "?" + params.Encode()
		default:
			body = strings.NewReader(params.Encode())
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.Header.Set("X-Kite-Version", kiteAPIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "token "+c.apiKey+":"+token)
	}

	c.logger.Debug("Kite API request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response for %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 400 || envelope.Status == "error" {
		errorType := envelope.ErrorType
		if errorType == "" {
			errorType = ExceptionGeneral
		}
		return &APIError{
			Code:      resp.StatusCode,
			ErrorType: errorType,
			Message:   envelope.Message,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data for %s %s: %w", method, path, err)
	}
	return nil
}
