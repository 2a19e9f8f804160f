// Package geo maintains the spatial index over agent locations and
// answers radius queries for the agent-linking step.
package geo

import (
	"context"
	"fmt"

	"o42-matching/internal/common/logger"
	"o42-matching/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	geoKey  = "agents:geo"
	tierKey = "agents:tier"
)

// Index is the geo candidate index backed by Redis GEO commands. Agent
// positions live in a geo set, tiers in a companion hash keyed by
// agent id.
type Index struct {
	rdb    *redis.Client
	logger logger.Logger
}

func NewIndex(rdb *redis.Client, log logger.Logger) *Index {
	return &Index{
		rdb:    rdb,
		logger: log.WithFields(map[string]interface{}{"component": "geo-index"}),
	}
}

// Upsert records or moves an agent in the index. Agents without a
// valid WGS84 location are dropped from the index rather than errored,
// which excludes them from all subsequent radius queries.
func (ix *Index) Upsert(ctx context.Context, agent models.Agent) error {
	if !agent.Location.Valid() {
		ix.logger.Warn("agent location invalid, excluding from geo index", map[string]interface{}{
			"agentId":   agent.ID,
			"longitude": agent.Location.Longitude,
			"latitude":  agent.Location.Latitude,
		})
		return ix.Remove(ctx, agent.ID)
	}

	pipe := ix.rdb.TxPipeline()
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      agent.ID,
		Longitude: agent.Location.Longitude,
		Latitude:  agent.Location.Latitude,
	})
	pipe.HSet(ctx, tierKey, agent.ID, string(agent.Tier))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("geo upsert for agent %s: %w", agent.ID, err)
	}
	return nil
}

// Remove drops an agent from the index.
func (ix *Index) Remove(ctx context.Context, agentID string) error {
	pipe := ix.rdb.TxPipeline()
	pipe.ZRem(ctx, geoKey, agentID)
	pipe.HDel(ctx, tierKey, agentID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("geo remove for agent %s: %w", agentID, err)
	}
	return nil
}

// FindAgentsNear returns the agents within radiusMeters of point, each
// with its tier and spherical distance. Result order is unspecified;
// ranking is the caller's concern. An empty result is a valid, common
// outcome and is never reported as an error.
func (ix *Index) FindAgentsNear(ctx context.Context, point models.GeoPoint, radiusMeters float64) ([]models.AgentSummary, error) {
	if !point.Valid() {
		return nil, fmt.Errorf("geo query point out of WGS84 range: lon=%f lat=%f", point.Longitude, point.Latitude)
	}

	locs, err := ix.rdb.GeoRadius(ctx, geoKey, point.Longitude, point.Latitude, &redis.GeoRadiusQuery{
		Radius:   radiusMeters,
		Unit:     "m",
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo radius query: %w", err)
	}
	if len(locs) == 0 {
		return []models.AgentSummary{}, nil
	}

	ids := make([]string, len(locs))
	for i, loc := range locs {
		ids[i] = loc.Name
	}
	tiers, err := ix.rdb.HMGet(ctx, tierKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("tier lookup: %w", err)
	}

	out := make([]models.AgentSummary, 0, len(locs))
	for i, loc := range locs {
		summary := models.AgentSummary{
			ID:             loc.Name,
			DistanceMeters: loc.Dist,
		}
		if s, ok := tiers[i].(string); ok {
			summary.Tier = models.SubscriptionTier(s)
		}
		out = append(out, summary)
	}
	return out, nil
}
