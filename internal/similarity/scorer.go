// Package similarity produces content-similarity scores between order
// descriptors. Two scorer modalities exist, text and image; which one
// runs for a given pair is decided by descriptor inspection at runtime,
// not by the order types involved.
package similarity

import (
	"context"
	"errors"
)

var (
	// ErrNoScore is the sentinel for a pair that cannot be scored at
	// all (both descriptors absent, or no usable modality). Callers
	// treat it as score 0.
	ErrNoScore = errors.New("no score available for descriptor pair")

	// ErrNotInitialized reports a scorer whose backing model was never
	// loaded. Distinct from an initialized scorer failing on a pair.
	ErrNotInitialized = errors.New("similarity scorer not initialized")
)

// Descriptor is the content of one side of a similarity comparison.
type Descriptor struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Empty reports whether the descriptor carries no content at all.
func (d Descriptor) Empty() bool {
	return d.Text == "" && d.ImageURL == ""
}

// Scorer scores one descriptor pair in [0,1]. Implementations return
// ErrNoScore when the pair lacks the fields this modality needs, and
// other errors when the backing model fails.
type Scorer interface {
	Score(ctx context.Context, a, b Descriptor) (float64, error)
	Modality() string
}

// clamp bounds a raw model score to [0,1]. Embedding cosine values can
// drift slightly outside the range.
func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
