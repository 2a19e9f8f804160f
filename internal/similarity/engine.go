package similarity

import (
	"context"
	"fmt"

	"o42-matching/internal/common/logger"
	"o42-matching/internal/common/metrics"
)

// Precedence selects the modality when both sides of a pair carry both
// an image and a text descriptor.
type Precedence string

const (
	PreferImage Precedence = "image"
	PreferText  Precedence = "text"
)

// Engine is the process-wide similarity resource: both scorers are
// loaded once at startup and reused across all passes. A nil Engine or
// an Engine that was never initialized reports ErrNotInitialized,
// which is a different failure from an initialized scorer erroring on
// a pair.
type Engine struct {
	text       Scorer
	image      Scorer
	precedence Precedence
	logger     logger.Logger

	initialized bool
}

// NewEngine wires both scorers. Either scorer may be nil when its
// backend is not configured; pairs that would need it fall through to
// the other modality where possible.
func NewEngine(text, image Scorer, precedence Precedence, log logger.Logger) *Engine {
	if precedence != PreferText {
		precedence = PreferImage
	}
	return &Engine{
		text:        text,
		image:       image,
		precedence:  precedence,
		logger:      log.WithFields(map[string]interface{}{"component": "similarity-engine"}),
		initialized: true,
	}
}

// ScorePair scores one descriptor pair, choosing the modality by
// inspecting which fields both sides carry. When both modalities are
// possible the configured precedence decides; when the chosen modality
// fails and the other is available, the other is attempted before
// giving up. Returns ErrNoScore when neither modality applies.
func (e *Engine) ScorePair(ctx context.Context, a, b Descriptor) (float64, error) {
	if e == nil || !e.initialized {
		return 0, ErrNotInitialized
	}
	if a.Empty() && b.Empty() {
		return 0, ErrNoScore
	}

	modalities := e.candidateModalities(a, b)
	if len(modalities) == 0 {
		return 0, ErrNoScore
	}

	var lastErr error
	for _, scorer := range modalities {
		if scorer == nil {
			lastErr = ErrNotInitialized
			continue
		}
		score, err := scorer.Score(ctx, a, b)
		if err == nil {
			return score, nil
		}
		lastErr = err
		metrics.ScorerFailures.WithLabelValues(scorer.Modality()).Inc()
		e.logger.Warn("scorer failed, trying next modality", map[string]interface{}{
			"modality": scorer.Modality(),
			"error":    err.Error(),
		})
	}
	return 0, lastErr
}

func (e *Engine) candidateModalities(a, b Descriptor) []Scorer {
	imagePossible := a.ImageURL != "" && b.ImageURL != ""
	textPossible := a.Text != "" && b.Text != ""

	switch {
	case imagePossible && textPossible:
		if e.precedence == PreferText {
			return []Scorer{e.text, e.image}
		}
		return []Scorer{e.image, e.text}
	case imagePossible:
		return []Scorer{e.image}
	case textPossible:
		return []Scorer{e.text}
	default:
		return nil
	}
}

// BestCategory returns the category most similar to the given text.
// Used for product categorization at listing time, not by the matching
// pass itself.
func (e *Engine) BestCategory(ctx context.Context, text string, categories []string) (string, error) {
	if e == nil || !e.initialized || e.text == nil {
		return "", ErrNotInitialized
	}
	if text == "" || len(categories) == 0 {
		return "", ErrNoScore
	}

	best := ""
	bestScore := -1.0
	for _, category := range categories {
		score, err := e.text.Score(ctx, Descriptor{Text: text}, Descriptor{Text: category})
		if err != nil {
			return "", fmt.Errorf("category scoring: %w", err)
		}
		if score > bestScore {
			best = category
			bestScore = score
		}
	}
	return best, nil
}
