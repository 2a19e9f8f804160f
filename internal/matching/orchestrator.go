// Package matching runs the asynchronous matching pass: link nearby
// delivery agents to an order, score it against the open counter-side
// pool, and persist the results back onto the order.
package matching

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"o42-matching/internal/common/errors"
	"o42-matching/internal/common/logger"
	"o42-matching/internal/common/metrics"
	"o42-matching/internal/common/observability"
	"o42-matching/internal/models"
	"o42-matching/internal/notify"
	"o42-matching/internal/ranking"
	"o42-matching/internal/store"

	"github.com/google/uuid"
)

// PassState tracks how far a matching pass has progressed. A pass that
// halts reports the state it halted in; only Persisted means both the
// linked-agents write and the matches write landed.
type PassState string

const (
	StateCreated             PassState = "created"
	StateAgentsLinking       PassState = "agents_linking"
	StateAgentsLinked        PassState = "agents_linked"
	StateCounterPoolFetching PassState = "counter_pool_fetching"
	StateScoring             PassState = "scoring"
	StatePersisted           PassState = "persisted"
)

// AgentDirectory is the geo lookup the orchestrator links agents from,
// satisfied by *geo.Index.
type AgentDirectory interface {
	FindAgentsNear(ctx context.Context, point models.GeoPoint, radiusMeters float64) ([]models.AgentSummary, error)
}

// CreatorLocator resolves an order creator's location, used for
// purchase orders which carry no location of their own.
type CreatorLocator interface {
	GetCreatorLocation(ctx context.Context, creatorID string) (*models.GeoPoint, error)
}

// Config bounds a single pass.
type Config struct {
	// RadiusMeters is the initial agent search radius.
	RadiusMeters float64
	// MinAgents widens the search in RadiusStepMeters increments until
	// at least this many agents are found or MaxRadiusMeters is hit.
	// Zero disables widening.
	MinAgents        int
	RadiusStepMeters float64
	MaxRadiusMeters  float64

	// CandidatePoolCap caps the counter-side pool fetched for scoring.
	CandidatePoolCap int
	// TopK is how many matches are kept per order.
	TopK int
	// PassTimeout bounds the whole pass end to end.
	PassTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = 10000
	}
	if c.RadiusStepMeters <= 0 {
		c.RadiusStepMeters = 10000
	}
	if c.MaxRadiusMeters < c.RadiusMeters {
		c.MaxRadiusMeters = c.RadiusMeters
	}
	if c.CandidatePoolCap <= 0 {
		c.CandidatePoolCap = 1000
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.PassTimeout <= 0 {
		c.PassTimeout = 60 * time.Second
	}
}

// Orchestrator drives the pass state machine over its collaborators.
// It holds no per-order state itself; everything a pass needs is read
// from the store at pass start, which is what makes re-runs idempotent.
type Orchestrator struct {
	config    Config
	store     store.OrderStore
	locator   CreatorLocator
	directory AgentDirectory
	selector  *Selector
	notifier  notify.Notifier
	obs       *observability.Observability
	logger    logger.Logger
}

func NewOrchestrator(
	cfg Config,
	orderStore store.OrderStore,
	locator CreatorLocator,
	directory AgentDirectory,
	selector *Selector,
	notifier notify.Notifier,
	obs *observability.Observability,
	log logger.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		config:    cfg,
		store:     orderStore,
		locator:   locator,
		directory: directory,
		selector:  selector,
		notifier:  notifier,
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"component": "matching-orchestrator"}),
	}
}

// RunPass executes one full matching pass for the order. The pass is
// idempotent: re-running it against unchanged inputs rewrites the same
// linked_agents and matches. Store failures halt the pass; notification
// and per-pair scorer failures do not.
func (o *Orchestrator) RunPass(ctx context.Context, orderID string, orderType models.OrderType) error {
	passID := uuid.New().String()
	log := o.logger.WithFields(map[string]interface{}{
		"passId":    passID,
		"orderId":   orderID,
		"orderType": string(orderType),
	})

	ctx, cancel := context.WithTimeout(ctx, o.config.PassTimeout)
	defer cancel()

	metrics.PassesActive.WithLabelValues(string(orderType)).Inc()
	defer metrics.PassesActive.WithLabelValues(string(orderType)).Dec()
	start := time.Now()

	state := StateCreated
	log.Info("matching pass started", nil)

	err := o.runPass(ctx, log, orderID, orderType, &state)
	if err != nil {
		if ctx.Err() != nil && !isStandardError(err) {
			err = errors.NewPassTimeoutError(orderID, string(state))
		}
		code := errorCode(err)
		log.Error("matching pass halted", map[string]interface{}{
			"state":     string(state),
			"errorCode": string(code),
			"error":     err.Error(),
		})
		metrics.PassesFailed.WithLabelValues(string(orderType), string(state), string(code)).Inc()
		o.obs.RecordPass(ctx, string(orderType), "failed")
		return err
	}

	elapsed := time.Since(start)
	metrics.PassesCompleted.WithLabelValues(string(orderType)).Inc()
	metrics.PassDuration.WithLabelValues(string(orderType)).Observe(elapsed.Seconds())
	o.obs.RecordPass(ctx, string(orderType), "completed")
	o.obs.RecordPassDuration(ctx, elapsed, "completed")
	log.Info("matching pass persisted", map[string]interface{}{
		"durationMs": elapsed.Milliseconds(),
	})
	return nil
}

func (o *Orchestrator) runPass(ctx context.Context, log logger.Logger, orderID string, orderType models.OrderType, state *PassState) error {
	order, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NewOrderNotFoundError(orderID)
		}
		return errors.NewStoreReadFailedError(err)
	}
	if order.Type != orderType {
		return errors.NewInvalidTriggerError(
			fmt.Sprintf("order %s is %s, trigger said %s", orderID, order.Type, orderType))
	}

	*state = StateAgentsLinking
	linked, err := o.linkAgents(ctx, log, order)
	if err != nil {
		return err
	}

	if _, err := o.store.ReplaceFields(ctx, order.ID, map[string]interface{}{
		store.FieldLinkedAgents: linked,
	}); err != nil {
		return errors.NewStoreWriteFailedError(order.ID, err)
	}
	*state = StateAgentsLinked
	log.Info("agents linked", map[string]interface{}{"agentCount": len(linked)})

	o.notifyAgents(ctx, log, order, linked)

	*state = StateCounterPoolFetching
	pool, err := o.store.ListOpenOrders(ctx, order.Type.Opposite(), o.config.CandidatePoolCap)
	if err != nil {
		return errors.NewStoreReadFailedError(err)
	}

	*state = StateScoring
	matches := o.selector.SelectTopMatches(ctx, *order, pool, o.config.TopK)

	if _, err := o.store.ReplaceFields(ctx, order.ID, map[string]interface{}{
		store.FieldMatches: matches,
	}); err != nil {
		return errors.NewStoreWriteFailedError(order.ID, err)
	}
	*state = StatePersisted
	log.Info("matches persisted", map[string]interface{}{
		"poolSize":   len(pool),
		"matchCount": len(matches),
	})
	return nil
}

// linkAgents resolves the order's location and collects nearby agents,
// widening the radius until the minimum is met. Orders with no
// resolvable location link no agents; that is an empty write, not an
// error.
func (o *Orchestrator) linkAgents(ctx context.Context, log logger.Logger, order *models.Order) ([]string, error) {
	point, err := o.resolveLocation(ctx, order)
	if err != nil {
		return nil, err
	}
	if point == nil {
		log.Warn("order has no resolvable location, linking no agents", nil)
		return []string{}, nil
	}

	radius := o.config.RadiusMeters
	candidates, err := o.directory.FindAgentsNear(ctx, *point, radius)
	if err != nil {
		return nil, errors.NewGeoQueryFailedError(err)
	}

	for o.config.MinAgents > 0 && len(candidates) < o.config.MinAgents && radius < o.config.MaxRadiusMeters {
		radius += o.config.RadiusStepMeters
		if radius > o.config.MaxRadiusMeters {
			radius = o.config.MaxRadiusMeters
		}
		candidates, err = o.directory.FindAgentsNear(ctx, *point, radius)
		if err != nil {
			return nil, errors.NewGeoQueryFailedError(err)
		}
	}

	ranked := ranking.Rank(candidates)
	linked := make([]string, 0, len(ranked))
	for _, agent := range ranked {
		linked = append(linked, agent.ID)
	}
	return linked, nil
}

func (o *Orchestrator) resolveLocation(ctx context.Context, order *models.Order) (*models.GeoPoint, error) {
	if order.Type == models.OrderTypeSale {
		return order.Location, nil
	}

	point, err := o.locator.GetCreatorLocation(ctx, order.CreatorID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.NewStoreReadFailedError(err)
	}
	return point, nil
}

// notifyAgents fans out to every linked agent. Failures are logged and
// swallowed; the pass never halts on a notification problem.
func (o *Orchestrator) notifyAgents(ctx context.Context, log logger.Logger, order *models.Order, agentIDs []string) {
	if o.notifier == nil || len(agentIDs) == 0 {
		return
	}

	subject := "New order near you"
	body := fmt.Sprintf("You have been linked to a new %s order created near you. Order ID: %s", order.Type, order.ID)

	for _, agentID := range agentIDs {
		if err := o.notifier.Notify(ctx, agentID, subject, body); err != nil {
			log.Warn("agent notification failed", map[string]interface{}{
				"agentId": agentID,
				"error":   err.Error(),
			})
		}
	}
}

func isStandardError(err error) bool {
	var stdErr *errors.StandardError
	return stderrors.As(err, &stdErr)
}

func errorCode(err error) errors.ErrorCode {
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return "UNKNOWN"
}
