package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"o42-matching/internal/common/logger"
	"o42-matching/internal/models"
	"o42-matching/internal/similarity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedScorer returns canned scores keyed by candidate text and
// fails for texts in the fail set.
type scriptedScorer struct {
	scores map[string]float64
	fail   map[string]bool
}

func (s *scriptedScorer) ScorePair(ctx context.Context, a, b similarity.Descriptor) (float64, error) {
	if s.fail[b.Text] {
		return 0, errors.New("scorer backend failed")
	}
	if score, ok := s.scores[b.Text]; ok {
		return score, nil
	}
	return 0, similarity.ErrNoScore
}

func poolOrder(id, text string, created time.Time) models.Order {
	return models.Order{
		ID:          id,
		Type:        models.OrderTypeSale,
		Description: text,
		Created:     created,
		Open:        true,
	}
}

func TestSelectTopMatches_RanksByScore(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := &scriptedScorer{scores: map[string]float64{
		"low": 0.2, "high": 0.9, "mid": 0.5,
	}}
	sel := NewSelector(scorer, logger.NewTestLogger(t))

	target := models.Order{ID: "target", Type: models.OrderTypePurchase, Description: "wanted"}
	pool := []models.Order{
		poolOrder("order-low", "low", base),
		poolOrder("order-high", "high", base),
		poolOrder("order-mid", "mid", base),
	}

	matches := sel.SelectTopMatches(context.Background(), target, pool, 5)

	require.Len(t, matches, 3)
	assert.Equal(t, "order-high", matches[0].OrderID)
	assert.Equal(t, "order-mid", matches[1].OrderID)
	assert.Equal(t, "order-low", matches[2].OrderID)
}

func TestSelectTopMatches_TruncatesToK(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := &scriptedScorer{scores: map[string]float64{
		"a": 0.9, "b": 0.8, "c": 0.7, "d": 0.6, "e": 0.5, "f": 0.4, "g": 0.3,
	}}
	sel := NewSelector(scorer, logger.NewTestLogger(t))

	target := models.Order{ID: "target", Description: "wanted"}
	pool := make([]models.Order, 0, 7)
	for _, text := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		pool = append(pool, poolOrder("order-"+text, text, base))
	}

	matches := sel.SelectTopMatches(context.Background(), target, pool, 5)

	require.Len(t, matches, 5)
	assert.Equal(t, "order-a", matches[0].OrderID)
	assert.Equal(t, "order-e", matches[4].OrderID)
}

func TestSelectTopMatches_TieBrokenByCreationTime(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := &scriptedScorer{scores: map[string]float64{
		"older": 0.82, "newer": 0.82,
	}}
	sel := NewSelector(scorer, logger.NewTestLogger(t))

	target := models.Order{ID: "target", Description: "wanted"}
	// Pool arrives newest-first; the older order must still win the tie.
	pool := []models.Order{
		poolOrder("order-newer", "newer", base.Add(time.Hour)),
		poolOrder("order-older", "older", base),
	}

	matches := sel.SelectTopMatches(context.Background(), target, pool, 5)

	require.Len(t, matches, 2)
	assert.Equal(t, "order-older", matches[0].OrderID)
	assert.Equal(t, "order-newer", matches[1].OrderID)
}

func TestSelectTopMatches_ZeroScoresExcluded(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := &scriptedScorer{scores: map[string]float64{
		"zero": 0, "positive": 0.3,
	}}
	sel := NewSelector(scorer, logger.NewTestLogger(t))

	target := models.Order{ID: "target", Description: "wanted"}
	pool := []models.Order{
		poolOrder("order-zero", "zero", base),
		poolOrder("order-positive", "positive", base),
	}

	matches := sel.SelectTopMatches(context.Background(), target, pool, 5)

	require.Len(t, matches, 1)
	assert.Equal(t, "order-positive", matches[0].OrderID)
}

func TestSelectTopMatches_FailedPairIsolated(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := &scriptedScorer{
		scores: map[string]float64{"good": 0.6, "also-good": 0.4},
		fail:   map[string]bool{"broken": true},
	}
	sel := NewSelector(scorer, logger.NewTestLogger(t))

	target := models.Order{ID: "target", Description: "wanted"}
	pool := []models.Order{
		poolOrder("order-good", "good", base),
		poolOrder("order-broken", "broken", base),
		poolOrder("order-also-good", "also-good", base),
	}

	matches := sel.SelectTopMatches(context.Background(), target, pool, 5)

	require.Len(t, matches, 2)
	assert.Equal(t, "order-good", matches[0].OrderID)
	assert.Equal(t, "order-also-good", matches[1].OrderID)
}

func TestSelectTopMatches_EmptyPool(t *testing.T) {
	sel := NewSelector(&scriptedScorer{}, logger.NewTestLogger(t))

	matches := sel.SelectTopMatches(context.Background(), models.Order{ID: "target"}, nil, 5)

	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestSelectTopMatches_SkipsSelf(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := &scriptedScorer{scores: map[string]float64{"self": 1.0}}
	sel := NewSelector(scorer, logger.NewTestLogger(t))

	target := models.Order{ID: "order-self", Description: "self"}
	pool := []models.Order{poolOrder("order-self", "self", base)}

	matches := sel.SelectTopMatches(context.Background(), target, pool, 5)

	assert.Empty(t, matches)
}
