// Package storage persists walk requests, offers, assignments, reviews and
// walker profiles behind a transactional Store.
package storage

import (
	"context"
	"time"

	"github.com/example/walk-matching/internal/models"
)

// Store runs callbacks against a consistent view of all repositories.
//
// Update is all-or-nothing: if fn returns an error nothing it wrote is
// visible afterwards. Errors coming from the store itself are reported as
// models.KindTransientStore; errors returned by fn pass through unchanged.
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

type Tx interface {
	Requests() RequestRepository
	Offers() OfferRepository
	Assignments() AssignmentRepository
	Reviews() ReviewRepository
	Walkers() WalkerRepository
}

// Getters return a models.KindNotFound error when the row is absent.
// ForUpdate variants lock the row until the surrounding Update ends.

type RequestRepository interface {
	Create(ctx context.Context, r *models.WalkRequest) error
	Get(ctx context.Context, id string) (*models.WalkRequest, error)
	GetForUpdate(ctx context.Context, id string) (*models.WalkRequest, error)
	Update(ctx context.Context, r *models.WalkRequest) error
	ListOpen(ctx context.Context) ([]models.WalkRequest, error)
}

type OfferRepository interface {
	Create(ctx context.Context, o *models.Offer) error
	Get(ctx context.Context, id string) (*models.Offer, error)
	Update(ctx context.Context, o *models.Offer) error
	ListByRequest(ctx context.Context, requestID string) ([]models.Offer, error)
	ListByWalker(ctx context.Context, walkerID string) ([]models.Offer, error)
	// RejectPending flips every PENDING offer of the request except
	// exceptID to REJECTED and returns the walkers affected.
	RejectPending(ctx context.Context, requestID, exceptID string, at time.Time) ([]string, error)
}

type AssignmentRepository interface {
	Create(ctx context.Context, a *models.WalkAssignment) error
	Get(ctx context.Context, id string) (*models.WalkAssignment, error)
	GetForUpdate(ctx context.Context, id string) (*models.WalkAssignment, error)
	// Update writes status, timestamps and payment fields. Photos are only
	// ever appended through AddPhoto.
	Update(ctx context.Context, a *models.WalkAssignment) error
	AddPhoto(ctx context.Context, id, ref string, at time.Time) error
	// LatestByRequest returns the most recently created assignment of the
	// request.
	LatestByRequest(ctx context.Context, requestID string) (*models.WalkAssignment, error)
	ListByUser(ctx context.Context, userID string) ([]models.WalkAssignment, error)
}

type ReviewRepository interface {
	// Create fails with models.KindConflict if the assignment already has
	// a review.
	Create(ctx context.Context, r *models.Review) error
	GetByAssignment(ctx context.Context, assignmentID string) (*models.Review, error)
	// WalkerAverage is the mean rating over every review reachable through
	// the walker's assignments.
	WalkerAverage(ctx context.Context, walkerID string) (avg float64, count int, err error)
}

type WalkerRepository interface {
	Get(ctx context.Context, userID string) (*models.WalkerProfile, error)
	// UpsertArea writes the service-area fields and leaves rating alone.
	UpsertArea(ctx context.Context, p *models.WalkerProfile) error
	SetRating(ctx context.Context, userID string, avg float64, count int, at time.Time) error
}
