package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 30 * time.Second
)

// APIError is returned for any non-2xx response from the provisioning
// API. Callers use the status code to tell a missing key (404) apart
// from an upstream outage.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a provider 404, the trigger for
// the implicit key-rotation path.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// KeyData is the provider-side view of a metered key. Only the fields
// the gateway consumes are decoded; anything else the provider sends
// is dropped.
type KeyData struct {
	Hash           string  `json:"hash"`
	Name           string  `json:"name"`
	Label          string  `json:"label"`
	Disabled       bool    `json:"disabled"`
	Limit          float64 `json:"limit"`
	LimitRemaining float64 `json:"limit_remaining"`
	Usage          float64 `json:"usage"`
}

// Key is a provisioning API response. Secret is only populated on
// creation; status fetches return metadata alone.
type Key struct {
	Secret string  `json:"key,omitempty"`
	Data   KeyData `json:"data"`
}

type createKeyRequest struct {
	Name               string  `json:"name"`
	Limit              float64 `json:"limit"`
	IncludeBYOKInLimit bool    `json:"include_byok_in_limit"`
}

// Config holds settings for the provisioning client
type Config struct {
	BaseURL         string
	ProvisioningKey string
	Timeout         time.Duration
}

// Client talks to the upstream key-provisioning API
type Client struct {
	baseURL         string
	provisioningKey string
	httpClient      *http.Client
}

// NewClient creates a provisioning client
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:         baseURL,
		provisioningKey: cfg.ProvisioningKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// CreateKey provisions a new metered key with the given daily limit
func (c *Client) CreateKey(ctx context.Context, name string, dailyLimit float64) (*Key, error) {
	body, err := json.Marshal(createKeyRequest{
		Name:  name,
		Limit: dailyLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var key Key
	if err := c.do(ctx, http.MethodPost, "/keys", bytes.NewReader(body), &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// GetKeyStatus fetches the current usage snapshot for a key
func (c *Client) GetKeyStatus(ctx context.Context, hash string) (*Key, error) {
	var key Key
	if err := c.do(ctx, http.MethodGet, "/keys/"+hash, nil, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// DeleteKey removes a key on the provider side
func (c *Client) DeleteKey(ctx context.Context, hash string) error {
	return c.do(ctx, http.MethodDelete, "/keys/"+hash, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.provisioningKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
