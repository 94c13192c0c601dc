package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/walk-matching/internal/observability"
)

// Sink delivers one event to one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// Emitter queues events and fans them out to sinks on a single worker.
// Emit never blocks; when the queue is full the event is dropped.
type Emitter struct {
	sinks   []Sink
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

func NewEmitter(logger *slog.Logger, queueSize int, sinks ...Sink) *Emitter {
	if queueSize <= 0 {
		queueSize = 256
	}
	e := &Emitter{
		sinks:   sinks,
		logger:  logger,
		timeout: 3 * time.Second,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Emitter) Emit(events ...Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ev := range events {
		if e.closed {
			observability.NotificationsDropped.Inc()
			continue
		}
		select {
		case e.queue <- ev:
		default:
			observability.NotificationsDropped.Inc()
			e.logger.Warn("notification dropped", "type", ev.Type, "user_id", ev.UserID)
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (e *Emitter) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	<-e.done
}

func (e *Emitter) run() {
	defer close(e.done)
	for ev := range e.queue {
		for _, s := range e.sinks {
			e.deliver(s, ev)
		}
	}
}

func (e *Emitter) deliver(s Sink, ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			observability.NotificationsFailed.WithLabelValues(s.Name()).Inc()
			e.logger.Error("notification sink panicked", "sink", s.Name(), "error", fmt.Sprint(rec))
		}
	}()
	if err := s.Deliver(ctx, ev); err != nil {
		observability.NotificationsFailed.WithLabelValues(s.Name()).Inc()
		e.logger.Warn("notification delivery failed", "sink", s.Name(), "type", ev.Type, "user_id", ev.UserID, "error", err)
		return
	}
	observability.NotificationsDelivered.WithLabelValues(s.Name()).Inc()
}

// LogSink writes every event to the logger.
type LogSink struct{ Logger *slog.Logger }

func (l LogSink) Name() string { return "log" }

func (l LogSink) Deliver(ctx context.Context, ev Event) error {
	l.Logger.Info("notification", "id", ev.ID, "type", ev.Type, "user_id", ev.UserID, "title", ev.Title, "link", ev.Link)
	return nil
}
