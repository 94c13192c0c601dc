package walks

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/walk-matching/internal/models"
	"github.com/example/walk-matching/internal/notify"
	"github.com/example/walk-matching/internal/storage"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Emit(events ...notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recordingNotifier) ofType(t notify.EventType) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type panickingNotifier struct{}

func (panickingNotifier) Emit(events ...notify.Event) { panic("notification channel down") }

var (
	owner  = models.Identity{UserID: "owner-1", Role: models.RoleOwner}
	owner2 = models.Identity{UserID: "owner-2", Role: models.RoleOwner}
	w1     = models.Identity{UserID: "walker-1", Role: models.RoleWalker}
	w2     = models.Identity{UserID: "walker-2", Role: models.RoleWalker}
	w3     = models.Identity{UserID: "walker-3", Role: models.RoleWalker}
)

type fixture struct {
	svc   *Service
	store storage.Store
	notes *recordingNotifier
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, storage.NewMemoryStore())
}

func newFixtureOn(t *testing.T, store storage.Store) *fixture {
	t.Helper()
	notes := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		svc:   NewService(store, notes, logger, Config{MaxPhotosPerAssignment: 3}),
		store: store,
		notes: notes,
		ctx:   context.Background(),
	}
}

func (f *fixture) request(t *testing.T, by models.Identity) *models.WalkRequest {
	t.Helper()
	req, err := f.svc.CreateRequest(f.ctx, by, CreateRequestInput{
		DogID:           "dog-1",
		Date:            "2026-10-20",
		StartTime:       "09:30",
		DurationMinutes: 45,
		Loc:             &models.Coord{Lat: -12.0833, Lon: -76.9366},
		Zone:            "La Molina",
		SuggestedPrice:  30,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) offer(t *testing.T, by models.Identity, requestID string, price float64) *models.Offer {
	t.Helper()
	off, err := f.svc.CreateOffer(f.ctx, by, requestID, price, "")
	require.NoError(t, err)
	return off
}

// assigned returns a SCHEDULED assignment between owner and by.
func (f *fixture) assigned(t *testing.T, by models.Identity) *models.WalkAssignment {
	t.Helper()
	req := f.request(t, owner)
	off := f.offer(t, by, req.ID, 30)
	a, err := f.svc.AcceptOffer(f.ctx, owner, off.ID)
	require.NoError(t, err)
	return a
}

// completed returns a COMPLETED assignment between owner and by.
func (f *fixture) completed(t *testing.T, by models.Identity) *models.WalkAssignment {
	t.Helper()
	a := f.assigned(t, by)
	_, err := f.svc.StartWalk(f.ctx, by, a.ID)
	require.NoError(t, err)
	a, err = f.svc.CompleteWalk(f.ctx, by, a.ID)
	require.NoError(t, err)
	return a
}

func requireKind(t *testing.T, err error, k models.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, k, models.KindOf(err), "unexpected error: %v", err)
}
