package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/teerapap/storeflow/agent/contract"
)

// metadataContentKey is the field the FAQ passages were upserted under.
const metadataContentKey = "content"

// Querier is the nearest-neighbor side of the index.
type Querier interface {
	Query(ctx context.Context, vec []float64, topK int) ([]Match, error)
}

// Index glues an embedder to a Pinecone index and renders the matches as one
// context block for the planner.
type Index struct {
	embedder Embedder
	querier  Querier
}

var _ contract.FAQIndex = (*Index)(nil)

func NewIndex(embedder Embedder, querier Querier) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: vector: nil embedder", contract.ErrValidation)
	}
	if querier == nil {
		return nil, fmt.Errorf("%w: vector: nil querier", contract.ErrValidation)
	}
	return &Index{embedder: embedder, querier: querier}, nil
}

func (x *Index) Retrieve(ctx context.Context, query string, topK int) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: vector: empty query", contract.ErrValidation)
	}

	vec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return "", err
	}

	matches, err := x.querier.Query(ctx, vec, topK)
	if err != nil {
		return "", err
	}

	passages := make([]string, 0, len(matches))
	for _, m := range matches {
		content, ok := m.Metadata[metadataContentKey].(string)
		if !ok || strings.TrimSpace(content) == "" {
			log.Warn().Str("id", m.ID).Msg("faq match without content metadata")
			continue
		}
		passages = append(passages, strings.TrimSpace(content))
	}
	if len(passages) == 0 {
		return "No relevant FAQ context found.", nil
	}
	return strings.Join(passages, "\n\n"), nil
}
