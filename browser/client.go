// Package browser drives the remote storefront session that mirrors the
// assistant's cart actions into a real checkout flow.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teerapap/storeflow/agent/contract"
)

const (
	defaultTimeout = 45 * time.Second

	maxResponseSizeBytes = 4 << 20
)

type Config struct {
	BaseURL   string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	Token     string        `envconfig:"TOKEN" split_words:"true"`
	SessionID string        `envconfig:"SESSION_ID" split_words:"true" default:"default"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"45s"`
}

// Client talks to the storefront session service. Every call carries a hard
// deadline; a stalled checkout page surfaces as an error instead of hanging
// the turn.
type Client struct {
	baseURL    string
	token      string
	sessionID  string
	httpClient *http.Client
}

var _ contract.CartSession = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: browser: empty base url", contract.ErrValidation)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	session := cfg.SessionID
	if session == "" {
		session = "default"
	}

	c := &Client{
		baseURL:    base,
		token:      strings.TrimSpace(cfg.Token),
		sessionID:  session,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type stageItemRequest struct {
	ProductName string `json:"product_name"`
}

type stageItemResponse struct {
	ShippingNote string `json:"shipping_note"`
	SessionURL   string `json:"session_url"`
}

func (c *Client) StageItem(ctx context.Context, productName string) (contract.StageResult, error) {
	productName = strings.TrimSpace(productName)
	if productName == "" {
		return contract.StageResult{}, fmt.Errorf("%w: browser: empty product name", contract.ErrValidation)
	}

	var decoded stageItemResponse
	err := c.post(ctx, fmt.Sprintf("/sessions/%s/items", c.sessionID), stageItemRequest{ProductName: productName}, &decoded)
	if err != nil {
		return contract.StageResult{}, err
	}
	return contract.StageResult{
		ShippingNote: decoded.ShippingNote,
		SessionURL:   decoded.SessionURL,
	}, nil
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

func (c *Client) Checkout(ctx context.Context) (contract.CheckoutResult, error) {
	var decoded checkoutResponse
	err := c.post(ctx, fmt.Sprintf("/sessions/%s/checkout", c.sessionID), struct{}{}, &decoded)
	if err != nil {
		return contract.CheckoutResult{}, err
	}
	return contract.CheckoutResult{CheckoutURL: decoded.CheckoutURL}, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("browser: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("browser: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("browser: call session service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("browser: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("browser: session service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("browser: decode response: %w", err)
	}
	return nil
}
