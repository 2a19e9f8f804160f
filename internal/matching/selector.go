package matching

import (
	"context"
	"errors"
	"sort"

	"o42-matching/internal/common/logger"
	"o42-matching/internal/models"
	"o42-matching/internal/similarity"
)

// PairScorer is the similarity capability the selector consumes,
// satisfied by *similarity.Engine.
type PairScorer interface {
	ScorePair(ctx context.Context, a, b similarity.Descriptor) (float64, error)
}

// Selector scores a target order against a candidate pool and keeps
// the top K. This is a linear scan, not nearest-neighbor search; the
// pool is bounded by the candidate pool cap, which makes the scan the
// scalability ceiling of the current design.
type Selector struct {
	scorer PairScorer
	logger logger.Logger
}

func NewSelector(scorer PairScorer, log logger.Logger) *Selector {
	return &Selector{
		scorer: scorer,
		logger: log.WithFields(map[string]interface{}{"component": "match-selector"}),
	}
}

type scoredCandidate struct {
	match   models.Match
	created int64
}

// SelectTopMatches scores every pool candidate against the target and
// returns at most k matches sorted descending by score, ties broken by
// candidate creation time ascending. Scorer failures are isolated per
// pair: a failed pair scores 0 and the rest of the pool still runs.
// An empty pool or all-zero scores yield an empty list, not an error.
func (s *Selector) SelectTopMatches(ctx context.Context, target models.Order, pool []models.Order, k int) []models.Match {
	targetDesc := descriptorFor(target)

	scored := make([]scoredCandidate, 0, len(pool))
	for _, candidate := range pool {
		if candidate.ID == target.ID {
			continue
		}

		score, err := s.scorer.ScorePair(ctx, targetDesc, descriptorFor(candidate))
		if err != nil {
			if !errors.Is(err, similarity.ErrNoScore) {
				s.logger.Warn("pair scoring failed", map[string]interface{}{
					"targetOrderId":    target.ID,
					"candidateOrderId": candidate.ID,
					"error":            err.Error(),
				})
			}
			continue
		}
		if score <= 0 {
			continue
		}

		scored = append(scored, scoredCandidate{
			match:   models.Match{OrderID: candidate.ID, Score: score},
			created: candidate.Created.UnixNano(),
		})
	}

	// Scores are floating-point; without the creation-time tie-break
	// equal scores would rank nondeterministically across runs.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].match.Score != scored[j].match.Score {
			return scored[i].match.Score > scored[j].match.Score
		}
		return scored[i].created < scored[j].created
	})

	if len(scored) > k {
		scored = scored[:k]
	}

	matches := make([]models.Match, 0, len(scored))
	for _, sc := range scored {
		matches = append(matches, sc.match)
	}
	return matches
}

// descriptorFor builds the similarity descriptor from an order's
// content fields. Sale orders carry their product's description and
// first image in the same fields.
func descriptorFor(order models.Order) similarity.Descriptor {
	return similarity.Descriptor{
		Text:     order.Description,
		ImageURL: order.ImageURL,
	}
}
