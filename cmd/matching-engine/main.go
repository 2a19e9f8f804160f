package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"o42-matching/internal/common/config"
	"o42-matching/internal/common/database"
	"o42-matching/internal/common/logger"
	"o42-matching/internal/common/observability"
	"o42-matching/internal/geo"
	"o42-matching/internal/matching"
	"o42-matching/internal/notify"
	"o42-matching/internal/similarity"
	"o42-matching/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting matching engine", map[string]interface{}{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := connectPostgres(ctx, cfg, log)
	if err != nil {
		log.Error("postgres connection failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer pg.Close()

	rdb, err := connectRedis(ctx, cfg, log)
	if err != nil {
		log.Error("redis connection failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer rdb.Close()

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	engine := buildSimilarityEngine(cfg, log)
	orderStore := store.NewPostgresStore(pg.DB)
	agentIndex := geo.NewIndex(rdb.Client, log)
	selector := matching.NewSelector(engine, log)

	notifier, err := buildNotifier(ctx, cfg, pg, log)
	if err != nil {
		log.Error("notifier init failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	orchestrator := matching.NewOrchestrator(
		matching.Config{
			RadiusMeters:     float64(cfg.Matching.RadiusMeters),
			MinAgents:        cfg.Matching.MinAgents,
			RadiusStepMeters: float64(cfg.Matching.RadiusStepMeters),
			MaxRadiusMeters:  float64(cfg.Matching.MaxRadiusMeters),
			CandidatePoolCap: cfg.Matching.CandidatePoolCap,
			TopK:             cfg.Matching.TopK,
			PassTimeout:      config.GetDuration(cfg.Matching.PassTimeout),
		},
		orderStore,
		orderStore,
		agentIndex,
		selector,
		notifier,
		obs,
		log,
	)

	dispatcher, err := matching.NewDispatcher(
		matching.DispatcherConfig{
			Workers:   cfg.Matching.Workers,
			QueueSize: cfg.Matching.QueueSize,
		},
		orchestrator,
		rdb.Client,
		log,
	)
	if err != nil {
		log.Error("dispatcher init failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	dispatcher.Start(ctx)

	metricsServer := startMetricsServer(cfg.Metrics.Address, log)

	log.Info("matching engine ready", map[string]interface{}{
		"queue":          matching.QueueKey,
		"workers":        cfg.Matching.Workers,
		"metricsAddress": cfg.Metrics.Address,
	})

	<-ctx.Done()
	log.Info("shutdown signal received, draining", nil)

	dispatcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics server shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("matching engine stopped", nil)
}

// connectPostgres dials with retry; the database may come up after us.
func connectPostgres(ctx context.Context, cfg *config.Config, log logger.Logger) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := retryWithBackoff(ctx, 5, 2*time.Second, func() error {
		client, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return err
		}
		pg = client
		return nil
	}, log, "postgres")
	return pg, err
}

func connectRedis(ctx context.Context, cfg *config.Config, log logger.Logger) (*database.RedisClient, error) {
	var rdb *database.RedisClient
	err := retryWithBackoff(ctx, 5, 2*time.Second, func() error {
		client, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return err
		}
		rdb = client
		return nil
	}, log, "redis")
	return rdb, err
}

func retryWithBackoff(ctx context.Context, attempts int, initial time.Duration, fn func() error, log logger.Logger, name string) error {
	delay := initial
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		log.Warn("connection attempt failed", map[string]interface{}{
			"target":  name,
			"attempt": attempt,
			"error":   err.Error(),
		})
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%s unavailable after %d attempts: %w", name, attempts, err)
}

func buildSimilarityEngine(cfg *config.Config, log logger.Logger) *similarity.Engine {
	text := similarity.NewTextScorer(similarity.TextScorerConfig{
		BaseURL: cfg.Similarity.Text.BaseURL,
		APIKey:  cfg.Similarity.Text.APIKey,
		Timeout: config.GetDuration(cfg.Similarity.Text.Timeout),
	}, log)

	image := similarity.NewImageScorer(similarity.ImageScorerConfig{
		BaseURL: cfg.Similarity.Image.BaseURL,
		APIKey:  cfg.Similarity.Image.APIKey,
		Timeout: config.GetDuration(cfg.Similarity.Image.Timeout),
	}, log)

	return similarity.NewEngine(text, image, similarity.Precedence(cfg.Matching.DescriptorPrecedence), log)
}

// buildNotifier returns nil when every channel is disabled; the
// orchestrator treats a nil notifier as fan-out off.
func buildNotifier(ctx context.Context, cfg *config.Config, pg *database.PostgresClient, log logger.Logger) (notify.Notifier, error) {
	if !cfg.Notifications.Email.Enabled && !cfg.Notifications.SMS.Enabled {
		log.Info("agent notifications disabled", nil)
		return nil, nil
	}

	return notify.NewAgentNotifier(ctx, notify.Config{
		EmailEnabled: cfg.Notifications.Email.Enabled,
		FromEmail:    cfg.Notifications.Email.FromEmail,
		SMSEnabled:   cfg.Notifications.SMS.Enabled,
		SMSSenderID:  cfg.Notifications.SMS.SenderID,
		AWSRegion:    cfg.Notifications.AWS.Region,
	}, pg.DB, log)
}

func startMetricsServer(address string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	return server
}
