package models

// SubscriptionTier is an agent's service tier. Tiers decide linking
// priority: tycoon agents are offered orders before runners, runners
// before starters.
type SubscriptionTier string

const (
	TierStarter SubscriptionTier = "starter"
	TierRunner  SubscriptionTier = "runner"
	TierTycoon  SubscriptionTier = "tycoon"
)

// TierRank maps a tier to its sort rank. Lower ranks first. Unknown or
// missing tiers sort last.
func TierRank(t SubscriptionTier) int {
	switch t {
	case TierTycoon:
		return 1
	case TierRunner:
		return 2
	case TierStarter:
		return 3
	default:
		return 4
	}
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Valid reports whether the point is a usable WGS84 coordinate. Agents
// with invalid locations are excluded from geo queries, not errored.
func (p GeoPoint) Valid() bool {
	return p.Longitude >= -180 && p.Longitude <= 180 &&
		p.Latitude >= -85.05112878 && p.Latitude <= 85.05112878
}

// Agent is the subset of a delivery agent relevant to matching.
type Agent struct {
	ID       string           `json:"id"`
	Tier     SubscriptionTier `json:"tier"`
	Location GeoPoint         `json:"location"`
	Email    string           `json:"email,omitempty"`
	Phone    string           `json:"phone,omitempty"`
}

// AgentSummary is what a geo query returns per candidate: identity,
// tier, and the spherical distance from the query point in meters.
type AgentSummary struct {
	ID             string           `json:"id"`
	Tier           SubscriptionTier `json:"tier"`
	DistanceMeters float64          `json:"distanceMeters"`
}
