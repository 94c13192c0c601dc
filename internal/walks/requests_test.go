package walks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/walk-matching/internal/models"
	"github.com/example/walk-matching/internal/notify"
)

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture(t)
	valid := CreateRequestInput{DogID: "d", Date: "2026-10-20", StartTime: "08:00", DurationMinutes: 30, Zone: "Surco"}

	cases := map[string]func(in *CreateRequestInput){
		"missing dog":    func(in *CreateRequestInput) { in.DogID = "" },
		"bad date":       func(in *CreateRequestInput) { in.Date = "20/10/2026" },
		"bad time":       func(in *CreateRequestInput) { in.StartTime = "8am" },
		"zero duration":  func(in *CreateRequestInput) { in.DurationMinutes = 0 },
		"no location":    func(in *CreateRequestInput) { in.Zone = "" },
		"bad coordinate": func(in *CreateRequestInput) { in.Loc = &models.Coord{Lat: 91} },
		"negative price": func(in *CreateRequestInput) { in.SuggestedPrice = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := valid
			mutate(&in)
			_, err := f.svc.CreateRequest(f.ctx, owner, in)
			requireKind(t, err, models.KindValidation)
		})
	}

	_, err := f.svc.CreateRequest(f.ctx, w1, valid)
	requireKind(t, err, models.KindAuthorization)

	req, err := f.svc.CreateRequest(f.ctx, owner, valid)
	require.NoError(t, err)
	assert.Equal(t, models.RequestOpen, req.Status)
	assert.Equal(t, owner.UserID, req.OwnerID)
}

func TestCancelRequestRejectsPendingOffers(t *testing.T) {
	f := newFixture(t)
	req := f.request(t, owner)
	o := f.offer(t, w1, req.ID, 30)

	_, err := f.svc.CancelRequest(f.ctx, owner2, req.ID)
	requireKind(t, err, models.KindAuthorization)

	got, err := f.svc.CancelRequest(f.ctx, owner, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCancelled, got.Status)

	offers, err := f.svc.ListMyOffers(f.ctx, w1)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, o.ID, offers[0].ID)
	assert.Equal(t, models.OfferRejected, offers[0].Status)
	assert.Len(t, f.notes.ofType(notify.OfferRejected), 1)

	_, err = f.svc.CancelRequest(f.ctx, owner, req.ID)
	requireKind(t, err, models.KindConflict)
	_, err = f.svc.CreateOffer(f.ctx, w2, req.ID, 30, "")
	requireKind(t, err, models.KindConflict)
}

// Owner posts in La Molina. W1 lives 2 km away with a 5 km radius and sees
// it; W2 only has the Miraflores zone and does not.
func TestVisibleRequestsByAreaAndZone(t *testing.T) {
	f := newFixture(t)
	req := f.request(t, owner)

	_, err := f.svc.UpsertWalkerProfile(f.ctx, w1, WalkerAreaInput{
		Home:            &models.Coord{Lat: -12.0833 + 2.0/111.0, Lon: -76.9366},
		ServiceRadiusKm: 5,
		BaseZone:        "Surco",
	})
	require.NoError(t, err)
	_, err = f.svc.UpsertWalkerProfile(f.ctx, w2, WalkerAreaInput{BaseZone: "Miraflores"})
	require.NoError(t, err)

	seen, err := f.svc.VisibleRequests(f.ctx, w1)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, req.ID, seen[0].ID)
	require.NotNil(t, seen[0].DistanceKm)
	assert.InDelta(t, 2.0, *seen[0].DistanceKm, 0.05)
	// 2 km at walking pace.
	require.NotNil(t, seen[0].EtaMinutes)
	assert.Equal(t, 24, *seen[0].EtaMinutes)

	seen, err = f.svc.VisibleRequests(f.ctx, w2)
	require.NoError(t, err)
	assert.Empty(t, seen)

	// No profile at all sees nothing.
	seen, err = f.svc.VisibleRequests(f.ctx, w3)
	require.NoError(t, err)
	assert.Empty(t, seen)

	// Assigned requests drop out of the pool.
	f.offer(t, w1, req.ID, 30)
	offers, err := f.svc.ListOffers(f.ctx, owner, req.ID)
	require.NoError(t, err)
	_, err = f.svc.AcceptOffer(f.ctx, owner, offers[0].ID)
	require.NoError(t, err)
	seen, err = f.svc.VisibleRequests(f.ctx, w1)
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestUpsertWalkerProfileKeepsRating(t *testing.T) {
	f := newFixture(t)
	done := f.completed(t, w1)
	_, err := f.svc.CreateReview(f.ctx, owner, done.ID, 5, "")
	require.NoError(t, err)

	p, err := f.svc.UpsertWalkerProfile(f.ctx, w1, WalkerAreaInput{BaseCity: "Lima", ServiceRadiusKm: 3})
	require.NoError(t, err)
	assert.Equal(t, "Lima", p.BaseCity)
	assert.Equal(t, 5.0, p.AverageRating)
	assert.Equal(t, 1, p.ReviewCount)

	_, err = f.svc.UpsertWalkerProfile(f.ctx, w1, WalkerAreaInput{ServiceRadiusKm: 500})
	requireKind(t, err, models.KindValidation)
	_, err = f.svc.UpsertWalkerProfile(f.ctx, owner, WalkerAreaInput{})
	requireKind(t, err, models.KindAuthorization)
}
