// Package matcher decides which open walk requests a walker can see.
package matcher

import (
	"strings"

	"github.com/example/walk-matching/internal/geo"
	"github.com/example/walk-matching/internal/models"
)

// DefaultRadiusKm applies when a walker has no positive service radius.
const DefaultRadiusKm = 5.0

// Matcher holds no state besides its default radius and is safe for
// concurrent use.
type Matcher struct {
	DefaultRadiusKm float64
}

func New(defaultRadiusKm float64) *Matcher {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = DefaultRadiusKm
	}
	return &Matcher{DefaultRadiusKm: defaultRadiusKm}
}

// VisibleRequests uses the package default radius.
func VisibleRequests(w models.WalkerProfile, open []models.WalkRequest) []models.WalkRequest {
	return New(DefaultRadiusKm).Visible(w, open)
}

// Visible returns the subsequence of open visible to w, preserving order.
// A request is visible when its coordinate falls inside the walker's
// bounding box (see geo.BoundingBox) or its zone label contains the
// walker's base zone, falling back to base city, case-insensitively.
// A walker with neither a home coordinate nor a zone/city sees nothing.
func (m *Matcher) Visible(w models.WalkerProfile, open []models.WalkRequest) []models.WalkRequest {
	zone := strings.ToLower(strings.TrimSpace(w.BaseZone))
	if zone == "" {
		zone = strings.ToLower(strings.TrimSpace(w.BaseCity))
	}
	if w.Home == nil && zone == "" {
		return nil
	}

	var box *geo.Box
	if w.Home != nil {
		b := geo.BoundingBox(*w.Home, m.radius(w.ServiceRadiusKm))
		box = &b
	}

	out := make([]models.WalkRequest, 0, len(open))
	for _, r := range open {
		if box != nil && r.Loc != nil && box.Contains(*r.Loc) {
			out = append(out, r)
			continue
		}
		if zone != "" && strings.Contains(strings.ToLower(r.Zone), zone) {
			out = append(out, r)
		}
	}
	return out
}

func (m *Matcher) radius(r float64) float64 {
	if r > 0 {
		return r
	}
	if m.DefaultRadiusKm > 0 {
		return m.DefaultRadiusKm
	}
	return DefaultRadiusKm
}
