package walks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/walk-matching/internal/models"
	"github.com/example/walk-matching/internal/notify"
)

func TestWalkLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.assigned(t, w1)

	arrived, err := f.svc.MarkArrived(f.ctx, w1, a.ID)
	require.NoError(t, err)
	require.NotNil(t, arrived.ArrivedAt)
	first := *arrived.ArrivedAt
	arrived, err = f.svc.MarkArrived(f.ctx, w1, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *arrived.ArrivedAt)

	started, err := f.svc.StartWalk(f.ctx, w1, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	_, err = f.svc.MarkArrived(f.ctx, w1, a.ID)
	requireKind(t, err, models.KindConflict)

	done, err := f.svc.CompleteWalk(f.ctx, w1, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.False(t, done.PaymentConfirmed)

	require.Len(t, f.notes.ofType(notify.WalkStarted), 1)
	completed := f.notes.ofType(notify.WalkCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, owner.UserID, completed[0].UserID)
}

func TestCompleteRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	a := f.assigned(t, w1)
	_, err := f.svc.CompleteWalk(f.ctx, w1, a.ID)
	requireKind(t, err, models.KindConflict)
}

func TestTransitionsRequireAssignedWalker(t *testing.T) {
	f := newFixture(t)
	a := f.assigned(t, w1)

	_, err := f.svc.StartWalk(f.ctx, w2, a.ID)
	requireKind(t, err, models.KindAuthorization)
	_, err = f.svc.StartWalk(f.ctx, owner, a.ID)
	requireKind(t, err, models.KindAuthorization)
	_, err = f.svc.AddPhoto(f.ctx, owner, a.ID, "photos/1.jpg")
	requireKind(t, err, models.KindAuthorization)
	_, err = f.svc.CancelAssignment(f.ctx, w2, a.ID)
	requireKind(t, err, models.KindAuthorization)
	_, err = f.svc.GetAssignment(f.ctx, w2, a.ID)
	requireKind(t, err, models.KindAuthorization)
	_, err = f.svc.ConfirmPayment(f.ctx, w1, a.ID)
	requireKind(t, err, models.KindAuthorization)

	_, err = f.svc.StartWalk(f.ctx, w1, "missing")
	requireKind(t, err, models.KindNotFound)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	f := newFixture(t)

	done := f.completed(t, w1)
	for name, op := range map[string]func() error{
		"arrive":   func() error { _, err := f.svc.MarkArrived(f.ctx, w1, done.ID); return err },
		"start":    func() error { _, err := f.svc.StartWalk(f.ctx, w1, done.ID); return err },
		"complete": func() error { _, err := f.svc.CompleteWalk(f.ctx, w1, done.ID); return err },
		"cancel":   func() error { _, err := f.svc.CancelAssignment(f.ctx, owner, done.ID); return err },
	} {
		t.Run("completed/"+name, func(t *testing.T) {
			requireKind(t, op(), models.KindConflict)
		})
	}
	// Payment is the one allowed follow-up, and it is idempotent.
	paid, err := f.svc.ConfirmPayment(f.ctx, owner, done.ID)
	require.NoError(t, err)
	require.True(t, paid.PaymentConfirmed)
	at := *paid.PaymentConfirmedAt
	paid, err = f.svc.ConfirmPayment(f.ctx, owner, done.ID)
	require.NoError(t, err)
	assert.Equal(t, at, *paid.PaymentConfirmedAt)
	assert.Len(t, f.notes.ofType(notify.PaymentConfirmed), 1)

	cancelled := f.assigned(t, w2)
	_, err = f.svc.CancelAssignment(f.ctx, w2, cancelled.ID)
	require.NoError(t, err)
	for name, op := range map[string]func() error{
		"arrive":   func() error { _, err := f.svc.MarkArrived(f.ctx, w2, cancelled.ID); return err },
		"start":    func() error { _, err := f.svc.StartWalk(f.ctx, w2, cancelled.ID); return err },
		"complete": func() error { _, err := f.svc.CompleteWalk(f.ctx, w2, cancelled.ID); return err },
		"cancel":   func() error { _, err := f.svc.CancelAssignment(f.ctx, owner, cancelled.ID); return err },
		"payment":  func() error { _, err := f.svc.ConfirmPayment(f.ctx, owner, cancelled.ID); return err },
		"photo":    func() error { _, err := f.svc.AddPhoto(f.ctx, w2, cancelled.ID, "p.jpg"); return err },
	} {
		t.Run("cancelled/"+name, func(t *testing.T) {
			requireKind(t, op(), models.KindConflict)
		})
	}
}

func TestPaymentRequiresCompletion(t *testing.T) {
	f := newFixture(t)
	a := f.assigned(t, w1)
	_, err := f.svc.ConfirmPayment(f.ctx, owner, a.ID)
	requireKind(t, err, models.KindConflict)
}

func TestCancelReopensRequest(t *testing.T) {
	f := newFixture(t)
	req := f.request(t, owner)
	o1 := f.offer(t, w1, req.ID, 30)
	a, err := f.svc.AcceptOffer(f.ctx, owner, o1.ID)
	require.NoError(t, err)
	_, err = f.svc.StartWalk(f.ctx, w1, a.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.CancelAssignment(f.ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentCancelled, cancelled.Status)
	assert.Equal(t, owner.UserID, cancelled.CancelledBy)
	require.NotNil(t, cancelled.CancelledAt)

	got, err := f.svc.GetRequest(f.ctx, owner, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestOpen, got.Status)

	// The walker who was cancelled hears about it.
	ev := f.notes.ofType(notify.WalkCancelled)
	require.Len(t, ev, 1)
	assert.Equal(t, w1.UserID, ev[0].UserID)

	// The request takes offers again, including from the same walker, and
	// a fresh acceptance creates a second assignment.
	o2 := f.offer(t, w2, req.ID, 33)
	f.offer(t, w1, req.ID, 29)
	a2, err := f.svc.AcceptOffer(f.ctx, owner, o2.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, a2.ID)

	offers, err := f.svc.ListOffers(f.ctx, owner, req.ID)
	require.NoError(t, err)
	var accepted []string
	for _, o := range offers {
		if o.Status == models.OfferAccepted {
			accepted = append(accepted, o.ID)
		}
	}
	assert.Equal(t, []string{o2.ID}, accepted)
}

func TestPhotoEvidence(t *testing.T) {
	f := newFixture(t)
	a := f.assigned(t, w1)

	_, err := f.svc.AddPhoto(f.ctx, w1, a.ID, "  ")
	requireKind(t, err, models.KindValidation)
	_, err = f.svc.AddPhoto(f.ctx, w1, a.ID, strings.Repeat("x", 513))
	requireKind(t, err, models.KindValidation)

	_, err = f.svc.AddPhoto(f.ctx, w1, a.ID, "photos/1.jpg")
	require.NoError(t, err)
	_, err = f.svc.StartWalk(f.ctx, w1, a.ID)
	require.NoError(t, err)
	_, err = f.svc.AddPhoto(f.ctx, w1, a.ID, "photos/2.jpg")
	require.NoError(t, err)
	_, err = f.svc.CompleteWalk(f.ctx, w1, a.ID)
	require.NoError(t, err)
	got, err := f.svc.AddPhoto(f.ctx, w1, a.ID, "photos/3.jpg")
	require.NoError(t, err)
	assert.Equal(t, []string{"photos/1.jpg", "photos/2.jpg", "photos/3.jpg"}, got.Photos)

	// The fixture caps evidence at three photos.
	_, err = f.svc.AddPhoto(f.ctx, w1, a.ID, "photos/4.jpg")
	requireKind(t, err, models.KindConflict)

	stored, err := f.svc.GetAssignment(f.ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Photos, 3)
}

func TestForbiddenNeverNamesTheResource(t *testing.T) {
	f := newFixture(t)
	a := f.assigned(t, w1)
	req := f.request(t, owner)
	off := f.offer(t, w2, req.ID, 30)

	errs := []error{}
	_, err := f.svc.GetAssignment(f.ctx, owner2, a.ID)
	errs = append(errs, err)
	_, err = f.svc.StartWalk(f.ctx, w2, a.ID)
	errs = append(errs, err)
	_, err = f.svc.AcceptOffer(f.ctx, owner2, off.ID)
	errs = append(errs, err)
	_, err = f.svc.ListOffers(f.ctx, owner2, req.ID)
	errs = append(errs, err)

	for _, err := range errs {
		requireKind(t, err, models.KindAuthorization)
		assert.Equal(t, models.Forbidden().Error(), err.Error())
		for _, id := range []string{a.ID, req.ID, off.ID} {
			assert.NotContains(t, err.Error(), id)
		}
	}
}
