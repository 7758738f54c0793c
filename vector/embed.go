// Package vector answers FAQ questions from a Pinecone index: the query text
// is embedded with OpenAI and the nearest passages are returned as one block
// of context for the planner.
package vector

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder turns query text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type OpenAIEmbedderConfig struct {
	APIKey  string `envconfig:"API_KEY" split_words:"true" required:"true"`
	BaseURL string `envconfig:"BASE_URL" split_words:"true"`
	Model   string `envconfig:"MODEL" split_words:"true" default:"text-embedding-3-small"`
}

type OpenAIEmbedder struct {
	client openaisdk.Client
	model  openaisdk.EmbeddingModel
}

var _ Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("vector: empty openai api key")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}

	model := openaisdk.EmbeddingModelTextEmbedding3Small
	if cfg.Model != "" {
		model = openaisdk.EmbeddingModel(cfg.Model)
	}

	return &OpenAIEmbedder{
		client: openaisdk.NewClient(opts...),
		model:  model,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: openaisdk.String(text),
		},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("vector: embed query: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("vector: embedding response has no data")
	}
	return resp.Data[0].Embedding, nil
}
