package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultPineconeTimeout = 10 * time.Second

	maxResponseSizeBytes = 4 << 20
)

type PineconeConfig struct {
	Host      string        `envconfig:"HOST" split_words:"true" required:"true"`
	APIKey    string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Namespace string        `envconfig:"NAMESPACE" split_words:"true"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// PineconeClient speaks the index's query REST endpoint directly.
type PineconeClient struct {
	host       string
	apiKey     string
	namespace  string
	httpClient *http.Client
}

type PineconeOption func(*PineconeClient)

func WithHTTPClient(c *http.Client) PineconeOption {
	return func(p *PineconeClient) {
		if c != nil {
			p.httpClient = c
		}
	}
}

func NewPineconeClient(cfg PineconeConfig, opts ...PineconeOption) (*PineconeClient, error) {
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		return nil, fmt.Errorf("vector: empty pinecone host")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("vector: empty pinecone api key")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPineconeTimeout
	}
	p := &PineconeClient{
		host:       host,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		namespace:  cfg.Namespace,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type queryRequest struct {
	Vector          []float64 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	Namespace       string    `json:"namespace,omitempty"`
}

type queryResponse struct {
	Matches []Match `json:"matches"`
}

type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Query returns the topK nearest matches for the vector, metadata included.
func (p *PineconeClient) Query(ctx context.Context, vec []float64, topK int) ([]Match, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("vector: empty query vector")
	}
	if topK <= 0 {
		topK = 1
	}

	body, err := json.Marshal(queryRequest{
		Vector:          vec,
		TopK:            topK,
		IncludeMetadata: true,
		Namespace:       p.namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("vector: marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vector: build query request: %w", err)
	}
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vector: query pinecone: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("vector: read query response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vector: pinecone returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded queryResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("vector: decode query response: %w", err)
	}
	return decoded.Matches, nil
}
