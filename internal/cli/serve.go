package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lazypower/nudge/internal/config"
	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/server"
	"github.com/lazypower/nudge/internal/tracker"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "reload the decision section when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if cfg.Database.Retention > 0 {
			go purgeJournal(ctx, db, cfg.Database.Retention, log)
		}
	}

	tr := tracker.New()
	sessions, closer, err := openSessions(ctx, cfg.Session, tr)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	opts, err := decisionOptions(cfg.Decision)
	if err != nil {
		return err
	}
	opts = append(opts,
		engine.WithContextSource(tr),
		engine.WithLogger(log),
	)
	if db != nil {
		opts = append(opts, engine.WithDB(db))
	}
	pub, pubCloser, err := newPublisher(cfg.Delivery, log)
	if err != nil {
		return fmt.Errorf("configure delivery: %w", err)
	}
	if pub != nil {
		opts = append(opts, engine.WithPublisher(pub))
	}
	if pubCloser != nil {
		defer pubCloser.Close()
	}

	eng := engine.New(sessions, opts...)
	if cfg.Session.SweepInterval > 0 && cfg.Session.IdleTimeout > 0 {
		eng.StartSweeper(cfg.Session.SweepInterval, cfg.Session.IdleTimeout)
	}
	defer eng.Stop()

	if serveWatch && path != "" {
		if _, err := os.Stat(path); err == nil {
			err := config.Watch(ctx, path, log, func(c config.Config) {
				applyDecision(eng, c.Decision, log)
			})
			if err != nil {
				log.Warn("config watch disabled", zap.Error(err))
			}
		}
	}

	srv := server.New(eng, VersionString(),
		server.WithLogger(log),
		server.WithRateLimit(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst),
	)
	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("nudge serving",
			zap.String("addr", addr),
			zap.String("policy", eng.Policy().Name()),
			zap.String("sessions", cfg.Session.Backend),
			zap.String("delivery", cfg.Delivery.Kind),
			zap.Bool("journal", db != nil),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
