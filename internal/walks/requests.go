package walks

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/walk-matching/internal/geo"
	"github.com/example/walk-matching/internal/models"
	"github.com/example/walk-matching/internal/notify"
	"github.com/example/walk-matching/internal/observability"
	"github.com/example/walk-matching/internal/storage"
)

type CreateRequestInput struct {
	DogID           string        `json:"dog_id"`
	Date            string        `json:"date"`
	StartTime       string        `json:"start_time"`
	DurationMinutes int           `json:"duration_minutes"`
	Loc             *models.Coord `json:"loc,omitempty"`
	Zone            string        `json:"zone"`
	SuggestedPrice  float64       `json:"suggested_price"`
	Details         string        `json:"details"`
}

func (in CreateRequestInput) validate() error {
	if strings.TrimSpace(in.DogID) == "" {
		return models.Validationf("dog_id is required")
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return models.Validationf("date must be YYYY-MM-DD, got %q", in.Date)
	}
	if _, err := time.Parse("15:04", in.StartTime); err != nil {
		return models.Validationf("start_time must be HH:MM, got %q", in.StartTime)
	}
	if in.DurationMinutes <= 0 || in.DurationMinutes > 24*60 {
		return models.Validationf("duration_minutes must be between 1 and 1440, got %d", in.DurationMinutes)
	}
	if in.Loc != nil && !in.Loc.Valid() {
		return models.Validationf("loc must have lat in [-90,90] and lon in [-180,180]")
	}
	if in.Loc == nil && strings.TrimSpace(in.Zone) == "" {
		return models.Validationf("either loc or zone is required so walkers can find the request")
	}
	if in.SuggestedPrice < 0 || math.IsNaN(in.SuggestedPrice) || math.IsInf(in.SuggestedPrice, 0) {
		return models.Validationf("suggested_price must be a non-negative number")
	}
	if len(in.Details) > 2000 {
		return models.Validationf("details must be at most 2000 characters")
	}
	return nil
}

// CreateRequest posts a new OPEN walk request for the calling owner.
func (s *Service) CreateRequest(ctx context.Context, id models.Identity, in CreateRequestInput) (*models.WalkRequest, error) {
	if err := requireRole(id, models.RoleOwner); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now()
	req := &models.WalkRequest{
		ID:              uuid.NewString(),
		OwnerID:         id.UserID,
		DogID:           strings.TrimSpace(in.DogID),
		Date:            in.Date,
		StartTime:       in.StartTime,
		DurationMinutes: in.DurationMinutes,
		Loc:             in.Loc,
		Zone:            strings.TrimSpace(in.Zone),
		SuggestedPrice:  in.SuggestedPrice,
		Details:         in.Details,
		Status:          models.RequestOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Update(ctx, func(tx storage.Tx) error {
		return tx.Requests().Create(ctx, req)
	}); err != nil {
		return nil, err
	}
	return req, nil
}

// CancelRequest withdraws an OPEN request and turns down its pending offers.
func (s *Service) CancelRequest(ctx context.Context, id models.Identity, requestID string) (*models.WalkRequest, error) {
	var (
		req      *models.WalkRequest
		rejected []string
	)
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		req, err = tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.OwnerID != id.UserID {
			return models.Forbidden()
		}
		if req.Status != models.RequestOpen {
			return models.Conflictf("walk request %s is %s, only OPEN requests can be cancelled", req.ID, req.Status)
		}
		now := s.now()
		if rejected, err = tx.Offers().RejectPending(ctx, req.ID, "", now); err != nil {
			return err
		}
		req.Status = models.RequestCancelled
		req.UpdatedAt = now
		return tx.Requests().Update(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	events := make([]notify.Event, 0, len(rejected))
	for _, w := range rejected {
		events = append(events, notify.NewOfferRejected(w, req.ID))
	}
	s.publish(events...)
	return req, nil
}

func (s *Service) GetRequest(ctx context.Context, id models.Identity, requestID string) (*models.WalkRequest, error) {
	if id.UserID == "" {
		return nil, models.Forbidden()
	}
	var req *models.WalkRequest
	err := s.view(ctx, func(tx storage.Tx) error {
		var err error
		req, err = tx.Requests().Get(ctx, requestID)
		return err
	})
	return req, err
}

// VisibleRequest is an open request as seen by one walker. DistanceKm and
// EtaMinutes are measured from the walker's home when both points exist.
type VisibleRequest struct {
	models.WalkRequest
	DistanceKm *float64 `json:"distance_km,omitempty"`
	EtaMinutes *int     `json:"eta_minutes,omitempty"`
}

// VisibleRequests runs the matcher over a snapshot of open requests. A
// walker without a profile sees nothing.
func (s *Service) VisibleRequests(ctx context.Context, id models.Identity) ([]VisibleRequest, error) {
	if err := requireRole(id, models.RoleWalker); err != nil {
		return nil, err
	}
	var (
		profile *models.WalkerProfile
		open    []models.WalkRequest
	)
	err := s.view(ctx, func(tx storage.Tx) error {
		var err error
		profile, err = tx.Walkers().Get(ctx, id.UserID)
		if models.IsKind(err, models.KindNotFound) {
			profile = &models.WalkerProfile{UserID: id.UserID}
		} else if err != nil {
			return err
		}
		open, err = tx.Requests().ListOpen(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	visible := s.matcher.Visible(*profile, open)
	observability.VisibleRequests.Observe(float64(len(visible)))

	out := make([]VisibleRequest, 0, len(visible))
	for _, r := range visible {
		v := VisibleRequest{WalkRequest: r}
		if profile.Home != nil && r.Loc != nil {
			d := geo.DistanceKm(*profile.Home, *r.Loc)
			v.DistanceKm = &d
			if secs, err := s.cfg.ETA.EstimateSeconds(ctx, *profile.Home, *r.Loc); err == nil {
				m := int(math.Ceil(secs / 60))
				v.EtaMinutes = &m
			} else {
				s.logger.Debug("eta lookup failed", "request_id", r.ID, "error", err)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

type WalkerAreaInput struct {
	Home            *models.Coord `json:"home,omitempty"`
	ServiceRadiusKm float64       `json:"service_radius_km"`
	BaseZone        string        `json:"base_zone"`
	BaseCity        string        `json:"base_city"`
}

// UpsertWalkerProfile updates the calling walker's service area. Rating
// fields are left to the review path.
func (s *Service) UpsertWalkerProfile(ctx context.Context, id models.Identity, in WalkerAreaInput) (*models.WalkerProfile, error) {
	if err := requireRole(id, models.RoleWalker); err != nil {
		return nil, err
	}
	if in.Home != nil && !in.Home.Valid() {
		return nil, models.Validationf("home must have lat in [-90,90] and lon in [-180,180]")
	}
	if in.ServiceRadiusKm < 0 || in.ServiceRadiusKm > 100 || math.IsNaN(in.ServiceRadiusKm) {
		return nil, models.Validationf("service_radius_km must be between 0 and 100")
	}
	var out *models.WalkerProfile
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		p := &models.WalkerProfile{
			UserID:          id.UserID,
			Home:            in.Home,
			ServiceRadiusKm: in.ServiceRadiusKm,
			BaseZone:        strings.TrimSpace(in.BaseZone),
			BaseCity:        strings.TrimSpace(in.BaseCity),
			UpdatedAt:       s.now(),
		}
		if err := tx.Walkers().UpsertArea(ctx, p); err != nil {
			return err
		}
		var err error
		out, err = tx.Walkers().Get(ctx, id.UserID)
		return err
	})
	return out, err
}

func (s *Service) GetWalker(ctx context.Context, walkerID string) (*models.WalkerProfile, error) {
	var p *models.WalkerProfile
	err := s.view(ctx, func(tx storage.Tx) error {
		var err error
		p, err = tx.Walkers().Get(ctx, walkerID)
		return err
	})
	return p, err
}
