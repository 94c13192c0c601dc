package walks

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/walk-matching/internal/models"
	"github.com/example/walk-matching/internal/notify"
	"github.com/example/walk-matching/internal/storage"
)

func TestAcceptOfferRejectsSiblingsAndAssigns(t *testing.T) {
	f := newFixture(t)
	req := f.request(t, owner)
	o1 := f.offer(t, w1, req.ID, 30)
	o3 := f.offer(t, w3, req.ID, 35)

	a, err := f.svc.AcceptOffer(f.ctx, owner, o1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentScheduled, a.Status)
	assert.Equal(t, w1.UserID, a.WalkerID)
	assert.Equal(t, owner.UserID, a.OwnerID)

	offers, err := f.svc.ListOffers(f.ctx, owner, req.ID)
	require.NoError(t, err)
	status := map[string]models.OfferStatus{}
	for _, o := range offers {
		status[o.ID] = o.Status
	}
	assert.Equal(t, models.OfferAccepted, status[o1.ID])
	assert.Equal(t, models.OfferRejected, status[o3.ID])

	got, err := f.svc.GetRequest(f.ctx, owner, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestAssigned, got.Status)

	list, err := f.svc.ListAssignments(f.ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	require.Len(t, f.notes.ofType(notify.OfferReceived), 2)
	accepted := f.notes.ofType(notify.OfferAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, w1.UserID, accepted[0].UserID)
	rejected := f.notes.ofType(notify.OfferRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, w3.UserID, rejected[0].UserID)
}

func TestConcurrentAcceptanceHasOneWinner(t *testing.T) {
	for i := 0; i < 20; i++ {
		raceAcceptance(t, newFixture(t), w1, w2)
	}
}

// raceAcceptance accepts two offers on one request at the same time and
// checks that exactly one wins and the other offer ends up REJECTED.
func raceAcceptance(t *testing.T, f *fixture, a, b models.Identity) {
	t.Helper()
	req := f.request(t, owner)
	o1 := f.offer(t, a, req.ID, 30)
	o2 := f.offer(t, b, req.ID, 32)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for j, id := range []string{o1.ID, o2.ID} {
		wg.Add(1)
		go func(j int, id string) {
			defer wg.Done()
			_, errs[j] = f.svc.AcceptOffer(f.ctx, owner, id)
		}(j, id)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case models.IsKind(err, models.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, conflicts)

	offers, err := f.svc.ListOffers(f.ctx, owner, req.ID)
	require.NoError(t, err)
	var accepted, rejected int
	for _, o := range offers {
		switch o.Status {
		case models.OfferAccepted:
			accepted++
		case models.OfferRejected:
			rejected++
		}
	}
	require.Equal(t, 1, accepted)
	require.Equal(t, 1, rejected)

	got, err := f.svc.GetRequest(f.ctx, owner, req.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestAssigned, got.Status)
}

func TestCreateOfferGuards(t *testing.T) {
	f := newFixture(t)
	req := f.request(t, owner)

	_, err := f.svc.CreateOffer(f.ctx, owner, req.ID, 30, "")
	requireKind(t, err, models.KindAuthorization)

	_, err = f.svc.CreateOffer(f.ctx, w1, req.ID, 0, "")
	requireKind(t, err, models.KindValidation)

	_, err = f.svc.CreateOffer(f.ctx, w1, "missing", 30, "")
	requireKind(t, err, models.KindNotFound)

	f.offer(t, w1, req.ID, 30)
	_, err = f.svc.CreateOffer(f.ctx, w1, req.ID, 28, "cheaper")
	requireKind(t, err, models.KindConflict)

	// An owner who is also registered as a walker cannot bid on their own request.
	_, err = f.svc.CreateOffer(f.ctx, models.Identity{UserID: owner.UserID, Role: models.RoleWalker}, req.ID, 30, "")
	requireKind(t, err, models.KindValidation)
}

func TestNoOffersOnceAssigned(t *testing.T) {
	f := newFixture(t)
	a := f.assigned(t, w1)
	_, err := f.svc.CreateOffer(f.ctx, w2, a.RequestID, 40, "")
	requireKind(t, err, models.KindConflict)
}

func TestRejectedWalkerMayOfferAgain(t *testing.T) {
	f := newFixture(t)
	req := f.request(t, owner)
	o := f.offer(t, w1, req.ID, 50)

	rejected, err := f.svc.RejectOffer(f.ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferRejected, rejected.Status)

	got, err := f.svc.GetRequest(f.ctx, owner, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestOpen, got.Status)

	f.offer(t, w1, req.ID, 40)

	_, err = f.svc.RejectOffer(f.ctx, owner, o.ID)
	requireKind(t, err, models.KindConflict)
}

func TestDecisionsRequireRequestOwner(t *testing.T) {
	f := newFixture(t)
	req := f.request(t, owner)
	o := f.offer(t, w1, req.ID, 30)

	_, err := f.svc.AcceptOffer(f.ctx, owner2, o.ID)
	requireKind(t, err, models.KindAuthorization)
	assert.NotContains(t, err.Error(), o.ID)

	_, err = f.svc.RejectOffer(f.ctx, owner2, o.ID)
	requireKind(t, err, models.KindAuthorization)

	_, err = f.svc.ListOffers(f.ctx, owner2, req.ID)
	requireKind(t, err, models.KindAuthorization)

	_, err = f.svc.AcceptOffer(f.ctx, owner, "missing")
	requireKind(t, err, models.KindNotFound)
}

func TestListMyOffers(t *testing.T) {
	f := newFixture(t)
	r1 := f.request(t, owner)
	r2 := f.request(t, owner2)
	f.offer(t, w1, r1.ID, 30)
	f.offer(t, w1, r2.ID, 31)
	f.offer(t, w2, r2.ID, 32)

	mine, err := f.svc.ListMyOffers(f.ctx, w1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, r1.ID, mine[0].RequestID)
	assert.Equal(t, r2.ID, mine[1].RequestID)
}

func TestPanickingNotifierDoesNotFailAcceptance(t *testing.T) {
	store := storage.NewMemoryStore()
	f := newFixture(t)
	f.svc = NewService(store, panickingNotifier{}, nil, Config{})
	req := f.request(t, owner)
	o := f.offer(t, w1, req.ID, 30)

	a, err := f.svc.AcceptOffer(f.ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentScheduled, a.Status)
}
