// Package ranking orders geo candidates for agent linking.
package ranking

import (
	"sort"

	"o42-matching/internal/models"
)

// Rank orders candidates by subscription tier (tycoon first, then
// runner, then starter, unknown last) and by distance ascending within
// a tier. The sort is stable so equal-key candidates keep their input
// order across re-runs.
func Rank(candidates []models.AgentSummary) []models.AgentSummary {
	out := make([]models.AgentSummary, len(candidates))
	copy(out, candidates)

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := models.TierRank(out[i].Tier), models.TierRank(out[j].Tier)
		if ri != rj {
			return ri < rj
		}
		return out[i].DistanceMeters < out[j].DistanceMeters
	})

	return out
}
