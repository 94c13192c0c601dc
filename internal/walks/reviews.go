package walks

import (
	"context"

	"github.com/google/uuid"

	"github.com/example/walk-matching/internal/models"
	"github.com/example/walk-matching/internal/notify"
	"github.com/example/walk-matching/internal/observability"
	"github.com/example/walk-matching/internal/storage"
)

const maxReviewComment = 1000

// CreateReview attaches the single review of a COMPLETED walk and, in the
// same transaction, recomputes the walker's average from every review of
// every assignment they hold. The average is never updated incrementally.
func (s *Service) CreateReview(ctx context.Context, id models.Identity, assignmentID string, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, models.Validationf("rating must be an integer from 1 to 5, got %d", rating)
	}
	if len(comment) > maxReviewComment {
		return nil, models.Validationf("comment must be at most %d characters", maxReviewComment)
	}

	var review *models.Review
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		a, err := tx.Assignments().GetForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		req, err := tx.Requests().Get(ctx, a.RequestID)
		if err != nil {
			return err
		}
		if id.UserID == "" || req.OwnerID != id.UserID {
			return models.Forbidden()
		}
		if a.Status != models.AssignmentCompleted {
			return models.Conflictf("assignment %s is %s, only COMPLETED walks can be reviewed", a.ID, a.Status)
		}
		existing, err := tx.Reviews().GetByAssignment(ctx, a.ID)
		if err == nil {
			return models.Conflictf("assignment %s already has review %s", a.ID, existing.ID)
		}
		if !models.IsKind(err, models.KindNotFound) {
			return err
		}

		now := s.now()
		review = &models.Review{
			ID:           uuid.NewString(),
			AssignmentID: a.ID,
			AuthorID:     id.UserID,
			WalkerID:     a.WalkerID,
			Rating:       rating,
			Comment:      comment,
			CreatedAt:    now,
		}
		if err := tx.Reviews().Create(ctx, review); err != nil {
			return err
		}
		avg, n, err := tx.Reviews().WalkerAverage(ctx, a.WalkerID)
		if err != nil {
			return err
		}
		return tx.Walkers().SetRating(ctx, a.WalkerID, avg, n, now)
	})
	if err != nil {
		return nil, err
	}
	observability.ReviewsCreated.Inc()
	s.publish(notify.NewReviewReceived(review.WalkerID, review.AssignmentID, review.Rating))
	return review, nil
}
