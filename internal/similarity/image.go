package similarity

import (
	"context"
	"fmt"
	"time"

	httpclient "o42-matching/internal/common/http"
	"o42-matching/internal/common/logger"
)

// ImageScorerConfig configures the image modality. Unlike text there is
// no local fallback; an empty BaseURL leaves the scorer uninitialized.
type ImageScorerConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ImageScorer scores reference images by embedding both URLs through
// the image model service and comparing by cosine.
type ImageScorer struct {
	config ImageScorerConfig
	client *httpclient.Client
	logger logger.Logger
}

func NewImageScorer(cfg ImageScorerConfig, log logger.Logger) *ImageScorer {
	s := &ImageScorer{
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"scorer": "image"}),
	}
	if cfg.BaseURL != "" {
		s.client = httpclient.NewClient(cfg.Timeout)
	}
	return s
}

func (s *ImageScorer) Modality() string { return "image" }

func (s *ImageScorer) Score(ctx context.Context, a, b Descriptor) (float64, error) {
	if a.ImageURL == "" || b.ImageURL == "" {
		return 0, ErrNoScore
	}
	if s.client == nil {
		return 0, ErrNotInitialized
	}

	var resp embedResponse
	headers := map[string]string{}
	if s.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + s.config.APIKey
	}
	req := struct {
		ImageURLs []string `json:"imageUrls"`
	}{ImageURLs: []string{a.ImageURL, b.ImageURL}}

	err := s.client.PostJSON(ctx, s.config.BaseURL+"/v1/image-embeddings", headers, req, &resp)
	if err != nil {
		return 0, fmt.Errorf("image embedding: %w", err)
	}
	if len(resp.Embeddings) != 2 {
		return 0, fmt.Errorf("embedding count mismatch: want 2, got %d", len(resp.Embeddings))
	}
	return clamp(cosine(resp.Embeddings[0], resp.Embeddings[1])), nil
}
