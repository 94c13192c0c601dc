package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/walk-matching/internal/notify"
)

// fakeUpdater implements notify.InboxUpdater for tests
type fakeUpdater struct {
	fail  int // number of times to fail Push before succeeding
	calls int
	keys  []string
	keep  int64
}

func (f *fakeUpdater) Push(ctx context.Context, key string, value []byte, keep int64) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("push fail")
	}
	f.keys = append(f.keys, key)
	f.keep = keep
	return nil
}

func newProcessor(f *fakeUpdater) *processor {
	return &processor{updater: f, key: func(u string) string { return "notifications:" + u }, keep: 50, attempts: 3, delay: 5 * time.Millisecond}
}

func TestHandle_AppendsToRecipientInbox(t *testing.T) {
	f := &fakeUpdater{fail: 1}
	b, _ := json.Marshal(notify.NewOfferReceived("owner-1", "req-1", 30))
	start := time.Now()
	if err := newProcessor(f).handle(context.Background(), b); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls != 2 {
		t.Fatalf("expected one retry, got calls=%d", f.calls)
	}
	if len(f.keys) != 1 || f.keys[0] != "notifications:owner-1" || f.keep != 50 {
		t.Fatalf("unexpected push keys=%v keep=%d", f.keys, f.keep)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestHandle_RejectsInvalidMessages(t *testing.T) {
	for _, raw := range []string{"not json", `{"type":"offer_received"}`, `{"user_id":"u1"}`} {
		f := &fakeUpdater{}
		err := newProcessor(f).handle(context.Background(), []byte(raw))
		if !errors.Is(err, errInvalidMessage) {
			t.Fatalf("%q: expected invalid message error, got %v", raw, err)
		}
		if f.calls != 0 {
			t.Fatalf("%q: invalid message must not reach redis", raw)
		}
	}
}

func TestHandle_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{fail: 5}
	b, _ := json.Marshal(notify.NewWalkCompleted("owner-1", "a1"))
	err := newProcessor(f).handle(context.Background(), b)
	if err == nil || errors.Is(err, errInvalidMessage) {
		t.Fatalf("expected redis error after retries, got %v", err)
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
}
