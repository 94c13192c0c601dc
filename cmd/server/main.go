package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/walk-matching/internal/auth"
	"github.com/example/walk-matching/internal/config"
	"github.com/example/walk-matching/internal/eta"
	httpapi "github.com/example/walk-matching/internal/http"
	"github.com/example/walk-matching/internal/logging"
	"github.com/example/walk-matching/internal/notify"
	"github.com/example/walk-matching/internal/storage"
	"github.com/example/walk-matching/internal/walks"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger("walk-matching-api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	ready := map[string]httpapi.Checker{"store": store.Ping}

	ws := notify.NewWSRegistry()
	sinks := []notify.Sink{notify.LogSink{Logger: logger}, ws}

	var inbox *notify.RedisInbox
	if cfg.RedisAddr != "" {
		inbox = notify.NewRedisInbox(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisInboxPrefix, int64(cfg.RedisInboxSize))
		defer inbox.Close()
		ready["redis"] = inbox.Ping
	}
	switch {
	case len(cfg.KafkaBrokers) > 0:
		kafkaSink := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaNotifyTopic)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		logger.Info("notifications published to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaNotifyTopic)
	case inbox != nil:
		sinks = append(sinks, notify.InboxSink{Inbox: inbox})
		logger.Info("notifications written to redis inbox", "addr", cfg.RedisAddr)
	}

	emitter := notify.NewEmitter(logger, cfg.NotifyQueueSize, sinks...)
	// Runs before the sinks are closed so queued events still go out.
	defer emitter.Close()

	wcfg := walks.Config{
		MaxPhotosPerAssignment: cfg.MaxPhotosPerAssignment,
		DefaultRadiusKm:        cfg.DefaultRadiusKm,
	}
	if cfg.OSRMURL != "" {
		wcfg.ETA = eta.Cached{Next: eta.NewOSRMClient(cfg.OSRMURL), Fallback: eta.Straight{}, Cache: eta.NewCache(cfg.ETACacheTTL)}
		logger.Info("walking ETAs from osrm", "url", cfg.OSRMURL)
	}
	svc := walks.NewService(store, emitter, logger, wcfg)

	authn, err := authenticator(cfg)
	if err != nil {
		return err
	}

	opts := httpapi.Options{Walks: svc, Auth: authn, WS: ws, Ready: ready, Logger: logger}
	if inbox != nil {
		opts.Inbox = inbox
	}
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(opts),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("walk-matching listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (storage.Store, error) {
	if cfg.PGDSN == "" {
		logger.Warn("PG_DSN not set, using in-memory store")
		return storage.NewMemoryStore(), nil
	}
	ps, err := storage.NewPostgresStore(cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := ps.Migrate(ctx); err != nil {
			_ = ps.Close()
			return nil, err
		}
		logger.Info("migrations applied")
	}
	return ps, nil
}

func authenticator(cfg config.ServerConfig) (auth.Authenticator, error) {
	var chain auth.Chain
	if cfg.JWTSecret != "" {
		j, err := auth.NewJWT(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		chain = append(chain, j)
	}
	if cfg.AllowAuthHeaders {
		chain = append(chain, auth.Headers{})
	}
	return chain, nil
}
