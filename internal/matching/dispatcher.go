package matching

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"o42-matching/internal/common/errors"
	"o42-matching/internal/common/logger"
	"o42-matching/internal/common/metrics"
	"o42-matching/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/xeipuuv/gojsonschema"
)

// QueueKey is the Redis list external services push triggers onto.
const QueueKey = "matching:queue"

const triggerSchema = `{
	"type": "object",
	"required": ["orderId", "orderType"],
	"properties": {
		"orderId":   {"type": "string", "minLength": 1},
		"orderType": {"type": "string", "enum": ["purchase", "sale"]}
	},
	"additionalProperties": false
}`

// Trigger is a fire-and-forget request to run one matching pass.
type Trigger struct {
	OrderID   string `json:"orderId"`
	OrderType string `json:"orderType"`
}

// PassRunner is the work a dispatched trigger executes, satisfied by
// *Orchestrator.
type PassRunner interface {
	RunPass(ctx context.Context, orderID string, orderType models.OrderType) error
}

// DispatcherConfig sizes the worker pool and the in-process queue.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
}

// Dispatcher feeds triggers to a bounded worker pool. Triggers arrive
// two ways: in-process via Trigger, and from the Redis queue list that
// other services push JSON payloads onto. The queue is bounded and
// enqueueing never blocks the caller; overflow drops the trigger with
// a metric rather than backing up the producing request.
type Dispatcher struct {
	config DispatcherConfig
	runner PassRunner
	rdb    *redis.Client
	schema *gojsonschema.Schema
	logger logger.Logger

	queue  chan Trigger
	ctx    context.Context
	cancel context.CancelFunc

	consumerWg sync.WaitGroup
	workerWg   sync.WaitGroup
}

// NewDispatcher builds a dispatcher. rdb may be nil, in which case only
// in-process triggers are served.
func NewDispatcher(cfg DispatcherConfig, runner PassRunner, rdb *redis.Client, log logger.Logger) (*Dispatcher, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(triggerSchema))
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		config: cfg,
		runner: runner,
		rdb:    rdb,
		schema: schema,
		logger: log.WithFields(map[string]interface{}{"component": "matching-dispatcher"}),
		queue:  make(chan Trigger, cfg.QueueSize),
	}, nil
}

// Start launches the worker pool and, when Redis is wired, the queue
// consumer. Start returns immediately.
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)

	for i := 0; i < d.config.Workers; i++ {
		d.workerWg.Add(1)
		go d.worker()
	}

	if d.rdb != nil {
		d.consumerWg.Add(1)
		go d.consumeRedisQueue()
	}

	d.logger.Info("dispatcher started", map[string]interface{}{
		"workers":       d.config.Workers,
		"queueSize":     d.config.QueueSize,
		"redisConsumer": d.rdb != nil,
	})
}

// Stop drains: no new triggers are accepted, queued triggers still run,
// in-flight passes finish under their own deadlines.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.consumerWg.Wait()
	close(d.queue)
	d.workerWg.Wait()
	d.logger.Info("dispatcher stopped", nil)
}

// Trigger enqueues an in-process matching trigger without blocking.
// When the queue is full or the dispatcher is stopping, the trigger is
// dropped and counted; callers never wait on matching.
func (d *Dispatcher) Trigger(orderID string, orderType models.OrderType) {
	t := Trigger{OrderID: orderID, OrderType: string(orderType)}
	if d.ctx == nil {
		d.dropTrigger(t, "dispatcher not started")
		return
	}

	select {
	case <-d.ctx.Done():
		d.dropTrigger(t, "dispatcher stopping")
	default:
		select {
		case d.queue <- t:
		default:
			d.dropTrigger(t, "queue full")
		}
	}
}

func (d *Dispatcher) dropTrigger(t Trigger, reason string) {
	metrics.TriggersDropped.Inc()
	d.logger.Warn("matching trigger dropped", map[string]interface{}{
		"orderId":   t.OrderID,
		"orderType": t.OrderType,
		"reason":    reason,
	})
}

func (d *Dispatcher) worker() {
	defer d.workerWg.Done()
	for t := range d.queue {
		// Passes run under their own deadline, detached from the
		// dispatcher context so a graceful Stop does not abort them
		// mid-write.
		if err := d.runner.RunPass(context.Background(), t.OrderID, models.OrderType(t.OrderType)); err != nil {
			d.logger.Debug("dispatched pass halted", map[string]interface{}{
				"orderId": t.OrderID,
				"error":   err.Error(),
			})
		}
	}
}

func (d *Dispatcher) consumeRedisQueue() {
	defer d.consumerWg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		// Short BRPOP timeout so shutdown is noticed promptly.
		values, err := d.rdb.BRPop(d.ctx, time.Second, QueueKey).Result()
		if err != nil {
			if err == redis.Nil || d.ctx.Err() != nil {
				continue
			}
			d.logger.Error("redis queue read failed", map[string]interface{}{
				"queue": QueueKey,
				"error": err.Error(),
			})
			time.Sleep(time.Second)
			continue
		}
		if len(values) != 2 {
			continue
		}

		t, err := d.parseTrigger(values[1])
		if err != nil {
			d.logger.Warn("invalid trigger payload dropped", map[string]interface{}{
				"queue": QueueKey,
				"error": err.Error(),
			})
			continue
		}

		select {
		case d.queue <- t:
		case <-d.ctx.Done():
			d.dropTrigger(t, "dispatcher stopping")
			return
		default:
			d.dropTrigger(t, "queue full")
		}
	}
}

// parseTrigger validates the raw payload against the trigger schema
// before decoding it, so malformed external pushes are rejected with a
// reason instead of half-decoded.
func (d *Dispatcher) parseTrigger(payload string) (Trigger, error) {
	result, err := d.schema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return Trigger{}, errors.NewInvalidTriggerError(err.Error())
	}
	if !result.Valid() {
		details := ""
		for _, desc := range result.Errors() {
			if details != "" {
				details += "; "
			}
			details += desc.String()
		}
		return Trigger{}, errors.NewInvalidTriggerError(details)
	}

	var t Trigger
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return Trigger{}, errors.NewInvalidTriggerError(err.Error())
	}
	return t, nil
}
