package similarity

import (
	"context"
	"errors"
	"testing"

	"o42-matching/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubScorer returns a fixed score or error and records invocations.
type stubScorer struct {
	modality string
	score    float64
	err      error
	calls    int
}

func (s *stubScorer) Modality() string { return s.modality }

func (s *stubScorer) Score(ctx context.Context, a, b Descriptor) (float64, error) {
	s.calls++
	return s.score, s.err
}

func TestScorePair_NilEngine(t *testing.T) {
	var e *Engine

	_, err := e.ScorePair(context.Background(), Descriptor{Text: "a"}, Descriptor{Text: "b"})

	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestScorePair_UninitializedEngine(t *testing.T) {
	e := &Engine{}

	_, err := e.ScorePair(context.Background(), Descriptor{Text: "a"}, Descriptor{Text: "b"})

	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestScorePair_ModalitySelection(t *testing.T) {
	tests := []struct {
		name       string
		precedence Precedence
		a, b       Descriptor
		wantText   int
		wantImage  int
	}{
		{
			name:       "text only on both sides",
			precedence: PreferImage,
			a:          Descriptor{Text: "vintage camera"},
			b:          Descriptor{Text: "old film camera"},
			wantText:   1,
		},
		{
			name:       "image only on both sides",
			precedence: PreferText,
			a:          Descriptor{ImageURL: "https://img/a.jpg"},
			b:          Descriptor{ImageURL: "https://img/b.jpg"},
			wantImage:  1,
		},
		{
			name:       "both available, image precedence",
			precedence: PreferImage,
			a:          Descriptor{Text: "camera", ImageURL: "https://img/a.jpg"},
			b:          Descriptor{Text: "camera", ImageURL: "https://img/b.jpg"},
			wantImage:  1,
		},
		{
			name:       "both available, text precedence",
			precedence: PreferText,
			a:          Descriptor{Text: "camera", ImageURL: "https://img/a.jpg"},
			b:          Descriptor{Text: "camera", ImageURL: "https://img/b.jpg"},
			wantText:   1,
		},
		{
			name:       "mixed sides cannot pair on either modality",
			precedence: PreferImage,
			a:          Descriptor{Text: "camera"},
			b:          Descriptor{ImageURL: "https://img/b.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := &stubScorer{modality: "text", score: 0.5}
			image := &stubScorer{modality: "image", score: 0.7}
			e := NewEngine(text, image, tt.precedence, logger.NewTestLogger(t))

			score, err := e.ScorePair(context.Background(), tt.a, tt.b)

			if tt.wantText == 0 && tt.wantImage == 0 {
				assert.ErrorIs(t, err, ErrNoScore)
			} else {
				require.NoError(t, err)
				if tt.wantText > 0 {
					assert.Equal(t, 0.5, score)
				} else {
					assert.Equal(t, 0.7, score)
				}
			}
			assert.Equal(t, tt.wantText, text.calls)
			assert.Equal(t, tt.wantImage, image.calls)
		})
	}
}

func TestScorePair_FallsThroughToOtherModality(t *testing.T) {
	text := &stubScorer{modality: "text", score: 0.42}
	image := &stubScorer{modality: "image", err: errors.New("model backend down")}
	e := NewEngine(text, image, PreferImage, logger.NewTestLogger(t))

	a := Descriptor{Text: "camera", ImageURL: "https://img/a.jpg"}
	b := Descriptor{Text: "camera", ImageURL: "https://img/b.jpg"}

	score, err := e.ScorePair(context.Background(), a, b)

	require.NoError(t, err)
	assert.Equal(t, 0.42, score)
	assert.Equal(t, 1, image.calls)
	assert.Equal(t, 1, text.calls)
}

func TestScorePair_AllModalitiesFail(t *testing.T) {
	failure := errors.New("model backend down")
	text := &stubScorer{modality: "text", err: failure}
	image := &stubScorer{modality: "image", err: failure}
	e := NewEngine(text, image, PreferImage, logger.NewTestLogger(t))

	a := Descriptor{Text: "camera", ImageURL: "https://img/a.jpg"}
	b := Descriptor{Text: "camera", ImageURL: "https://img/b.jpg"}

	_, err := e.ScorePair(context.Background(), a, b)

	assert.ErrorIs(t, err, failure)
}

func TestScorePair_BothEmpty(t *testing.T) {
	e := NewEngine(&stubScorer{modality: "text"}, &stubScorer{modality: "image"}, PreferImage, logger.NewTestLogger(t))

	_, err := e.ScorePair(context.Background(), Descriptor{}, Descriptor{})

	assert.ErrorIs(t, err, ErrNoScore)
}

func TestScorePair_NilScorerForOnlyModality(t *testing.T) {
	// Image pairs with no image scorer wired must report the lifecycle
	// error, not a per-pair failure.
	e := NewEngine(&stubScorer{modality: "text"}, nil, PreferImage, logger.NewTestLogger(t))

	a := Descriptor{ImageURL: "https://img/a.jpg"}
	b := Descriptor{ImageURL: "https://img/b.jpg"}

	_, err := e.ScorePair(context.Background(), a, b)

	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestBestCategory(t *testing.T) {
	e := NewEngine(
		NewTextScorer(TextScorerConfig{}, logger.NewTestLogger(t)),
		nil,
		PreferText,
		logger.NewTestLogger(t),
	)

	best, err := e.BestCategory(context.Background(), "electronics gadget", []string{"furniture", "electronics", "clothing"})

	require.NoError(t, err)
	assert.Equal(t, "electronics", best)
}

func TestBestCategory_NoInput(t *testing.T) {
	e := NewEngine(&stubScorer{modality: "text", score: 1}, nil, PreferText, logger.NewTestLogger(t))

	_, err := e.BestCategory(context.Background(), "", []string{"a"})
	assert.ErrorIs(t, err, ErrNoScore)

	_, err = e.BestCategory(context.Background(), "something", nil)
	assert.ErrorIs(t, err, ErrNoScore)
}
