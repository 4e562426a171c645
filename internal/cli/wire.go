package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/nudge/internal/config"
	"github.com/lazypower/nudge/internal/delivery"
	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/gate"
	"github.com/lazypower/nudge/internal/logging"
	"github.com/lazypower/nudge/internal/metrics"
	"github.com/lazypower/nudge/internal/session"
	"github.com/lazypower/nudge/internal/store"
	"github.com/lazypower/nudge/internal/tracker"
)

func loadConfig() (config.Config, string, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, path, fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}

// openJournal opens the intervention journal, or returns nil when disabled.
func openJournal(cfg config.Config) (*store.DB, error) {
	if cfg.Database.Disabled {
		return nil, nil
	}
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// purgeInterval is how often serve trims the journal.
const purgeInterval = time.Hour

// purgeJournal drops ended sessions older than retention, once now and then
// every purgeInterval until ctx is done.
func purgeJournal(ctx context.Context, db *store.DB, retention time.Duration, log *zap.Logger) {
	purge := func() {
		n, err := db.PurgeEnded(time.Now().Add(-retention))
		if err != nil {
			log.Warn("journal purge failed", zap.Error(err))
			return
		}
		if n > 0 {
			log.Info("journal purged", zap.Int64("sessions", n))
		}
	}

	purge()
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			purge()
		case <-ctx.Done():
			return
		}
	}
}

// openSessions builds the configured session store. Memory evictions also
// drop the tracker's read models for that session.
func openSessions(ctx context.Context, cfg config.SessionConfig, tr *tracker.Tracker) (session.Store, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		client, err := session.Connect(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		r := session.NewRedis(client, cfg.TTL)
		if err := r.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return r, client, nil
	default:
		m, err := session.NewMemory(cfg.Size, cfg.IdleTimeout, func(id string) {
			tr.Forget(id)
			metrics.SessionsEvicted.Inc()
		})
		if err != nil {
			return nil, nil, err
		}
		return m, nil, nil
	}
}

// newPublisher builds the configured delivery target, or nil for "none".
func newPublisher(cfg config.DeliveryConfig, log *zap.Logger) (engine.Publisher, io.Closer, error) {
	switch cfg.Kind {
	case config.DeliveryLog:
		return delivery.NewLog(log), nil, nil
	case config.DeliveryWebhook:
		return delivery.NewWebhook(cfg.WebhookURL, cfg.WebhookTimeout), nil, nil
	case config.DeliveryKafka:
		k, err := delivery.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return k, k, nil
	default:
		return nil, nil, nil
	}
}

// decisionOptions maps the decision section onto engine options.
func decisionOptions(cfg config.DecisionConfig) ([]engine.Option, error) {
	policy, err := gate.PolicyByName(cfg.Policy)
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{
		engine.WithPolicy(policy),
		engine.WithDismissWindow(cfg.DismissWindow),
	}
	if cfg.Seed != 0 {
		opts = append(opts, engine.WithSeed(cfg.Seed))
	}
	return opts, nil
}

// applyDecision hot-swaps the decision section on a running engine.
func applyDecision(eng *engine.Engine, cfg config.DecisionConfig, log *zap.Logger) {
	policy, err := gate.PolicyByName(cfg.Policy)
	if err != nil {
		log.Error("reload decision policy", zap.Error(err))
		return
	}
	eng.SetPolicy(policy)
	eng.SetDismissWindow(cfg.DismissWindow)
	log.Info("decision config applied",
		zap.String("policy", policy.Name()),
		zap.Duration("dismiss_window", cfg.DismissWindow),
	)
}
