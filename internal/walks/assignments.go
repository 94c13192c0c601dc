package walks

import (
	"context"
	"strings"
	"time"

	"github.com/example/walk-matching/internal/models"
	"github.com/example/walk-matching/internal/notify"
	"github.com/example/walk-matching/internal/observability"
	"github.com/example/walk-matching/internal/storage"
)

const maxPhotoRef = 512

// Assignment lifecycle:
//
//	SCHEDULED --start--> IN_PROGRESS --complete--> COMPLETED (payment flag)
//	SCHEDULED | IN_PROGRESS --cancel--> CANCELLED (request reopens)
//
// COMPLETED and CANCELLED are terminal.

func terminal(a *models.WalkAssignment) error {
	return models.Conflictf("assignment %s is %s and can no longer change", a.ID, a.Status)
}

func walkerOnly(id models.Identity, a *models.WalkAssignment) error {
	if id.UserID == "" || a.WalkerID != id.UserID {
		return models.Forbidden()
	}
	return nil
}

func ownerOnly(id models.Identity, a *models.WalkAssignment) error {
	if id.UserID == "" || a.OwnerID != id.UserID {
		return models.Forbidden()
	}
	return nil
}

// mutate runs step on the locked assignment and persists the result when
// step reports a change.
func (s *Service) mutate(ctx context.Context, assignmentID string,
	step func(a *models.WalkAssignment, now time.Time) (changed bool, err error)) (*models.WalkAssignment, error) {
	var out *models.WalkAssignment
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		a, err := tx.Assignments().GetForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		now := s.now()
		changed, err := step(a, now)
		if err != nil {
			return err
		}
		if changed {
			a.UpdatedAt = now
			if err := tx.Assignments().Update(ctx, a); err != nil {
				return err
			}
		}
		out = a
		return nil
	})
	return out, err
}

// MarkArrived records when the walker reached the pickup point. It does not
// change state and only the first call sets the timestamp.
func (s *Service) MarkArrived(ctx context.Context, id models.Identity, assignmentID string) (*models.WalkAssignment, error) {
	return s.mutate(ctx, assignmentID, func(a *models.WalkAssignment, now time.Time) (bool, error) {
		if err := walkerOnly(id, a); err != nil {
			return false, err
		}
		if a.Status.Terminal() {
			return false, terminal(a)
		}
		if a.Status != models.AssignmentScheduled {
			return false, models.Conflictf("assignment %s is %s, arrival is only recorded before the walk starts", a.ID, a.Status)
		}
		if a.ArrivedAt != nil {
			return false, nil
		}
		a.ArrivedAt = &now
		return true, nil
	})
}

func (s *Service) StartWalk(ctx context.Context, id models.Identity, assignmentID string) (*models.WalkAssignment, error) {
	a, err := s.mutate(ctx, assignmentID, func(a *models.WalkAssignment, now time.Time) (bool, error) {
		if err := walkerOnly(id, a); err != nil {
			return false, err
		}
		if a.Status.Terminal() {
			return false, terminal(a)
		}
		if a.Status != models.AssignmentScheduled {
			return false, models.Conflictf("assignment %s is %s, only SCHEDULED walks can start", a.ID, a.Status)
		}
		a.Status = models.AssignmentInProgress
		a.StartedAt = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	observability.AssignmentTransitions.WithLabelValues(string(a.Status)).Inc()
	s.publish(notify.NewWalkStarted(a.OwnerID, a.ID))
	return a, nil
}

func (s *Service) CompleteWalk(ctx context.Context, id models.Identity, assignmentID string) (*models.WalkAssignment, error) {
	a, err := s.mutate(ctx, assignmentID, func(a *models.WalkAssignment, now time.Time) (bool, error) {
		if err := walkerOnly(id, a); err != nil {
			return false, err
		}
		if a.Status.Terminal() {
			return false, terminal(a)
		}
		if a.Status != models.AssignmentInProgress {
			return false, models.Conflictf("assignment %s is %s, only IN_PROGRESS walks can complete", a.ID, a.Status)
		}
		a.Status = models.AssignmentCompleted
		a.CompletedAt = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	observability.AssignmentTransitions.WithLabelValues(string(a.Status)).Inc()
	s.publish(notify.NewWalkCompleted(a.OwnerID, a.ID))
	return a, nil
}

// ConfirmPayment sets the payment flag on a COMPLETED walk. Repeating it is
// a no-op and raises no event.
func (s *Service) ConfirmPayment(ctx context.Context, id models.Identity, assignmentID string) (*models.WalkAssignment, error) {
	var first bool
	a, err := s.mutate(ctx, assignmentID, func(a *models.WalkAssignment, now time.Time) (bool, error) {
		if err := ownerOnly(id, a); err != nil {
			return false, err
		}
		if a.Status != models.AssignmentCompleted {
			return false, models.Conflictf("assignment %s is %s, payment can only be confirmed once the walk is COMPLETED", a.ID, a.Status)
		}
		if a.PaymentConfirmed {
			return false, nil
		}
		a.PaymentConfirmed = true
		a.PaymentConfirmedAt = &now
		first = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if first {
		s.publish(notify.NewPaymentConfirmed(a.WalkerID, a.ID))
	}
	return a, nil
}

// CancelAssignment ends a SCHEDULED or IN_PROGRESS walk. If the request is
// still ASSIGNED to this assignment it goes back to OPEN and the accepted
// offer is released to REJECTED so a new offer can be accepted.
func (s *Service) CancelAssignment(ctx context.Context, id models.Identity, assignmentID string) (*models.WalkAssignment, error) {
	var (
		out      *models.WalkAssignment
		reopened bool
	)
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		// Lock order is request then assignment, same as acceptance.
		peek, err := tx.Assignments().Get(ctx, assignmentID)
		if err != nil {
			return err
		}
		req, err := tx.Requests().GetForUpdate(ctx, peek.RequestID)
		if err != nil {
			return err
		}
		a, err := tx.Assignments().GetForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		if !a.Party(id.UserID) {
			return models.Forbidden()
		}
		if a.Status.Terminal() {
			return terminal(a)
		}
		now := s.now()
		a.Status = models.AssignmentCancelled
		a.CancelledAt = &now
		a.CancelledBy = id.UserID
		a.UpdatedAt = now
		if err := tx.Assignments().Update(ctx, a); err != nil {
			return err
		}
		out = a

		latest, err := tx.Assignments().LatestByRequest(ctx, req.ID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestAssigned || latest.ID != a.ID {
			return nil
		}
		req.Status = models.RequestOpen
		req.UpdatedAt = now
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}
		off, err := tx.Offers().Get(ctx, a.OfferID)
		if err != nil {
			return err
		}
		if off.Status == models.OfferAccepted {
			off.Status = models.OfferRejected
			off.UpdatedAt = now
			if err := tx.Offers().Update(ctx, off); err != nil {
				return err
			}
		}
		reopened = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.AssignmentTransitions.WithLabelValues(string(out.Status)).Inc()
	other := out.OwnerID
	if id.UserID == out.OwnerID {
		other = out.WalkerID
	}
	s.publish(notify.NewWalkCancelled(other, out.ID))
	s.logger.Info("assignment cancelled", "assignment_id", out.ID, "request_id", out.RequestID, "by", id.UserID, "request_reopened", reopened)
	return out, nil
}

// AddPhoto appends an uploaded photo reference as walk evidence.
func (s *Service) AddPhoto(ctx context.Context, id models.Identity, assignmentID, ref string) (*models.WalkAssignment, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || len(ref) > maxPhotoRef {
		return nil, models.Validationf("photo ref must be 1 to %d characters", maxPhotoRef)
	}
	var out *models.WalkAssignment
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		a, err := tx.Assignments().GetForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		if err := walkerOnly(id, a); err != nil {
			return err
		}
		if a.Status == models.AssignmentCancelled {
			return models.Conflictf("assignment %s is CANCELLED, photos can no longer be added", a.ID)
		}
		if len(a.Photos) >= s.cfg.MaxPhotosPerAssignment {
			return models.Conflictf("assignment %s already has the maximum of %d photos", a.ID, s.cfg.MaxPhotosPerAssignment)
		}
		now := s.now()
		if err := tx.Assignments().AddPhoto(ctx, a.ID, ref, now); err != nil {
			return err
		}
		a.Photos = append(a.Photos, ref)
		a.UpdatedAt = now
		out = a
		return nil
	})
	return out, err
}

func (s *Service) GetAssignment(ctx context.Context, id models.Identity, assignmentID string) (*models.WalkAssignment, error) {
	var out *models.WalkAssignment
	err := s.view(ctx, func(tx storage.Tx) error {
		a, err := tx.Assignments().Get(ctx, assignmentID)
		if err != nil {
			return err
		}
		if !a.Party(id.UserID) {
			return models.Forbidden()
		}
		out = a
		return nil
	})
	return out, err
}

// ListAssignments returns assignments where the caller is owner or walker.
func (s *Service) ListAssignments(ctx context.Context, id models.Identity) ([]models.WalkAssignment, error) {
	if id.UserID == "" {
		return nil, models.Forbidden()
	}
	var out []models.WalkAssignment
	err := s.view(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.Assignments().ListByUser(ctx, id.UserID)
		return err
	})
	return out, err
}
