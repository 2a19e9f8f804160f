package similarity

import (
	"context"
	"fmt"
	"strings"
	"time"

	httpclient "o42-matching/internal/common/http"
	"o42-matching/internal/common/logger"

	"github.com/agnivade/levenshtein"
)

// TextScorerConfig configures the text modality. An empty BaseURL
// selects the local lexical fallback instead of the embedding service.
type TextScorerConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// TextScorer scores free-text descriptions. When an embedding service
// is configured it embeds both sides and compares by cosine; otherwise
// it falls back to normalized edit-distance similarity, which is crude
// but keeps the pipeline functional without a model backend.
type TextScorer struct {
	config TextScorerConfig
	client *httpclient.Client
	logger logger.Logger
}

func NewTextScorer(cfg TextScorerConfig, log logger.Logger) *TextScorer {
	s := &TextScorer{
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"scorer": "text"}),
	}
	if cfg.BaseURL != "" {
		s.client = httpclient.NewClient(cfg.Timeout)
	}
	return s
}

func (s *TextScorer) Modality() string { return "text" }

func (s *TextScorer) Score(ctx context.Context, a, b Descriptor) (float64, error) {
	if a.Text == "" || b.Text == "" {
		return 0, ErrNoScore
	}

	if s.client == nil {
		return s.lexicalScore(a.Text, b.Text), nil
	}

	vectors, err := s.embed(ctx, []string{a.Text, b.Text})
	if err != nil {
		return 0, fmt.Errorf("text embedding: %w", err)
	}
	return clamp(cosine(vectors[0], vectors[1])), nil
}

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (s *TextScorer) embed(ctx context.Context, texts []string) ([][]float64, error) {
	var resp embedResponse
	headers := map[string]string{}
	if s.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + s.config.APIKey
	}
	err := s.client.PostJSON(ctx, s.config.BaseURL+"/v1/embeddings", headers, embedRequest{Inputs: texts}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: want %d, got %d", len(texts), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}

// lexicalScore maps normalized edit distance onto [0,1]. Identical
// strings score 1, fully dissimilar strings approach 0.
func (s *TextScorer) lexicalScore(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	dist := levenshtein.ComputeDistance(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	return clamp(1 - float64(dist)/float64(longest))
}
