package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies in WGS84 bounds.
func (c Coord) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

type RequestStatus string

const (
	RequestOpen      RequestStatus = "OPEN"
	RequestAssigned  RequestStatus = "ASSIGNED"
	RequestCancelled RequestStatus = "CANCELLED"
	RequestExpired   RequestStatus = "EXPIRED"
)

type WalkRequest struct {
	ID              string        `json:"id"`
	OwnerID         string        `json:"owner_id"`
	DogID           string        `json:"dog_id"`
	Date            string        `json:"date"`       // YYYY-MM-DD
	StartTime       string        `json:"start_time"` // HH:MM
	DurationMinutes int           `json:"duration_minutes"`
	Loc             *Coord        `json:"loc,omitempty"`
	Zone            string        `json:"zone"`
	SuggestedPrice  float64       `json:"suggested_price"`
	Details         string        `json:"details"`
	Status          RequestStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type OfferStatus string

const (
	OfferPending  OfferStatus = "PENDING"
	OfferAccepted OfferStatus = "ACCEPTED"
	OfferRejected OfferStatus = "REJECTED"
)

type Offer struct {
	ID        string      `json:"id"`
	RequestID string      `json:"request_id"`
	WalkerID  string      `json:"walker_id"`
	Price     float64     `json:"price"`
	Message   string      `json:"message,omitempty"`
	Status    OfferStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type AssignmentStatus string

const (
	AssignmentScheduled  AssignmentStatus = "SCHEDULED"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted  AssignmentStatus = "COMPLETED"
	AssignmentCancelled  AssignmentStatus = "CANCELLED"
)

// Terminal reports whether no further state change is possible.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentCompleted || s == AssignmentCancelled
}

type WalkAssignment struct {
	ID                 string           `json:"id"`
	RequestID          string           `json:"request_id"`
	OfferID            string           `json:"offer_id"`
	OwnerID            string           `json:"owner_id"`
	WalkerID           string           `json:"walker_id"`
	Status             AssignmentStatus `json:"status"`
	ArrivedAt          *time.Time       `json:"arrived_at,omitempty"`
	StartedAt          *time.Time       `json:"started_at,omitempty"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	CancelledBy        string           `json:"cancelled_by,omitempty"`
	PaymentConfirmed   bool             `json:"payment_confirmed"`
	PaymentConfirmedAt *time.Time       `json:"payment_confirmed_at,omitempty"`
	Photos             []string         `json:"photos"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Party reports whether userID is the owner or the assigned walker.
func (a *WalkAssignment) Party(userID string) bool {
	return userID != "" && (userID == a.OwnerID || userID == a.WalkerID)
}

type Review struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	AuthorID     string    `json:"author_id"`
	WalkerID     string    `json:"walker_id"`
	Rating       int       `json:"rating"` // 1..5
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type WalkerProfile struct {
	UserID          string    `json:"user_id"`
	Home            *Coord    `json:"home,omitempty"`
	ServiceRadiusKm float64   `json:"service_radius_km"`
	BaseZone        string    `json:"base_zone,omitempty"`
	BaseCity        string    `json:"base_city,omitempty"`
	AverageRating   float64   `json:"average_rating"`
	ReviewCount     int       `json:"review_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}
