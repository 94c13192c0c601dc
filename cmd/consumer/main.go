package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/walk-matching/internal/config"
	"github.com/example/walk-matching/internal/logging"
	"github.com/example/walk-matching/internal/notify"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total notification messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	inboxUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_inbox_appends_total",
		Help: "Total notifications appended to a redis inbox",
	})
	inboxErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_inbox_errors_total",
		Help: "Total redis inbox errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, inboxUpdates, inboxErrors)
}

var errInvalidMessage = errors.New("invalid notification message")

// processor appends one Kafka message to its recipient's inbox.
type processor struct {
	updater  notify.InboxUpdater
	key      func(userID string) string
	keep     int64
	attempts int
	delay    time.Duration
}

func (p *processor) handle(ctx context.Context, value []byte) error {
	var ev notify.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("%w: %v", errInvalidMessage, err)
	}
	if ev.UserID == "" || ev.Type == "" {
		return fmt.Errorf("%w: missing user_id or type", errInvalidMessage)
	}
	return notify.AppendWithRetry(ctx, p.updater, p.key(ev.UserID), ev, p.keep, p.attempts, p.delay)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger("walk-matching-inbox", cfg.LogLevel)

	inbox := notify.NewRedisInbox(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisInboxPrefix, int64(cfg.RedisInboxSize))

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := inbox.Ping(r.Context()); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaNotifyTopic, GroupID: cfg.KafkaGroup, MinBytes: 1, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = inbox.Close()
	}()

	p := &processor{updater: inbox.Updater(), key: inbox.Key, keep: inbox.Size(), attempts: 3, delay: 200 * time.Millisecond}
	logger.Info("consumer listening", "topic", cfg.KafkaNotifyTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		msgsConsumed.Inc()
		if err := p.handle(ctx, m.Value); err != nil {
			if errors.Is(err, errInvalidMessage) {
				msgsInvalid.Inc()
				logger.Warn("invalid message", "offset", m.Offset, "partition", m.Partition, "error", err)
				continue
			}
			inboxErrors.Inc()
			logger.Error("inbox append failed", "user_id", string(m.Key), "error", err)
			continue
		}
		inboxUpdates.Inc()
	}
}
