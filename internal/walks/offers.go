package walks

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/example/walk-matching/internal/models"
	"github.com/example/walk-matching/internal/notify"
	"github.com/example/walk-matching/internal/observability"
	"github.com/example/walk-matching/internal/storage"
)

const maxOfferMessage = 500

// CreateOffer records a PENDING bid from the calling walker.
func (s *Service) CreateOffer(ctx context.Context, id models.Identity, requestID string, price float64, message string) (*models.Offer, error) {
	if err := requireRole(id, models.RoleWalker); err != nil {
		return nil, err
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return nil, models.Validationf("price must be greater than 0, got %v", price)
	}
	if len(message) > maxOfferMessage {
		return nil, models.Validationf("message must be at most %d characters", maxOfferMessage)
	}

	var (
		offer *models.Offer
		owner string
	)
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		// The request row lock serializes this against acceptance and
		// against a second offer from the same walker.
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.OwnerID == id.UserID {
			return models.Validationf("cannot offer on your own walk request")
		}
		if req.Status != models.RequestOpen {
			return models.Conflictf("walk request %s is %s, offers are only taken while OPEN", req.ID, req.Status)
		}
		existing, err := tx.Offers().ListByRequest(ctx, req.ID)
		if err != nil {
			return err
		}
		for _, o := range existing {
			if o.WalkerID == id.UserID && o.Status != models.OfferRejected {
				return models.Conflictf("you already have a %s offer %s on this request", o.Status, o.ID)
			}
		}
		now := s.now()
		offer = &models.Offer{
			ID:        uuid.NewString(),
			RequestID: req.ID,
			WalkerID:  id.UserID,
			Price:     price,
			Message:   message,
			Status:    models.OfferPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		owner = req.OwnerID
		return tx.Offers().Create(ctx, offer)
	})
	if err != nil {
		return nil, err
	}
	observability.OffersCreated.Inc()
	s.publish(notify.NewOfferReceived(owner, offer.RequestID, offer.Price))
	return offer, nil
}

// decide loads the offer and its request under the request lock and checks
// that the caller owns the request and both are still undecided.
func decide(ctx context.Context, tx storage.Tx, id models.Identity, offerID string) (*models.Offer, *models.WalkRequest, error) {
	off, err := tx.Offers().Get(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}
	req, err := tx.Requests().GetForUpdate(ctx, off.RequestID)
	if err != nil {
		return nil, nil, err
	}
	if req.OwnerID != id.UserID {
		return nil, nil, models.Forbidden()
	}
	// Re-read under the lock; a concurrent decision may have landed.
	if off, err = tx.Offers().Get(ctx, offerID); err != nil {
		return nil, nil, err
	}
	if off.Status != models.OfferPending {
		return nil, nil, models.Conflictf("offer %s is %s, only PENDING offers can be decided", off.ID, off.Status)
	}
	if req.Status != models.RequestOpen {
		return nil, nil, models.Conflictf("walk request %s is %s, offers can only be decided while OPEN", req.ID, req.Status)
	}
	return off, req, nil
}

// AcceptOffer binds the offer: it becomes ACCEPTED, every other PENDING
// offer on the request becomes REJECTED, the request becomes ASSIGNED and a
// SCHEDULED assignment is created, all in one transaction.
func (s *Service) AcceptOffer(ctx context.Context, id models.Identity, offerID string) (*models.WalkAssignment, error) {
	if err := requireRole(id, models.RoleOwner); err != nil {
		return nil, err
	}
	var (
		assignment *models.WalkAssignment
		rejected   []string
	)
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		off, req, err := decide(ctx, tx, id, offerID)
		if err != nil {
			return err
		}
		now := s.now()
		off.Status = models.OfferAccepted
		off.UpdatedAt = now
		if err := tx.Offers().Update(ctx, off); err != nil {
			return err
		}
		if rejected, err = tx.Offers().RejectPending(ctx, req.ID, off.ID, now); err != nil {
			return err
		}
		req.Status = models.RequestAssigned
		req.UpdatedAt = now
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}
		assignment = &models.WalkAssignment{
			ID:        uuid.NewString(),
			RequestID: req.ID,
			OfferID:   off.ID,
			OwnerID:   req.OwnerID,
			WalkerID:  off.WalkerID,
			Status:    models.AssignmentScheduled,
			Photos:    []string{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Assignments().Create(ctx, assignment)
	})
	if err != nil {
		if models.IsKind(err, models.KindConflict) {
			observability.OfferConflicts.Inc()
		}
		return nil, err
	}
	observability.OffersDecided.WithLabelValues("accepted").Inc()
	observability.AssignmentTransitions.WithLabelValues(string(models.AssignmentScheduled)).Inc()

	events := []notify.Event{notify.NewOfferAccepted(assignment.WalkerID, assignment.ID)}
	for _, w := range rejected {
		events = append(events, notify.NewOfferRejected(w, assignment.RequestID))
	}
	s.publish(events...)
	s.logger.Info("offer accepted", "offer_id", offerID, "request_id", assignment.RequestID, "assignment_id", assignment.ID, "rejected", len(rejected))
	return assignment, nil
}

// RejectOffer turns down a single PENDING offer; the request stays OPEN.
func (s *Service) RejectOffer(ctx context.Context, id models.Identity, offerID string) (*models.Offer, error) {
	if err := requireRole(id, models.RoleOwner); err != nil {
		return nil, err
	}
	var off *models.Offer
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		off, _, err = decide(ctx, tx, id, offerID)
		if err != nil {
			return err
		}
		off.Status = models.OfferRejected
		off.UpdatedAt = s.now()
		return tx.Offers().Update(ctx, off)
	})
	if err != nil {
		return nil, err
	}
	observability.OffersDecided.WithLabelValues("rejected").Inc()
	s.publish(notify.NewOfferRejected(off.WalkerID, off.RequestID))
	return off, nil
}

// ListOffers returns every offer on a request; only its owner may look.
func (s *Service) ListOffers(ctx context.Context, id models.Identity, requestID string) ([]models.Offer, error) {
	var out []models.Offer
	err := s.view(ctx, func(tx storage.Tx) error {
		req, err := tx.Requests().Get(ctx, requestID)
		if err != nil {
			return err
		}
		if req.OwnerID != id.UserID {
			return models.Forbidden()
		}
		out, err = tx.Offers().ListByRequest(ctx, requestID)
		return err
	})
	return out, err
}

func (s *Service) ListMyOffers(ctx context.Context, id models.Identity) ([]models.Offer, error) {
	if err := requireRole(id, models.RoleWalker); err != nil {
		return nil, err
	}
	var out []models.Offer
	err := s.view(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.Offers().ListByWalker(ctx, id.UserID)
		return err
	})
	return out, err
}
