// Package notify carries domain events from committed walk transitions to
// the people involved. Delivery is best effort: nothing here can fail or
// slow down the transition that raised the event.
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	OfferReceived    EventType = "offer_received"
	OfferAccepted    EventType = "offer_accepted"
	OfferRejected    EventType = "offer_rejected"
	WalkStarted      EventType = "walk_started"
	WalkCompleted    EventType = "walk_completed"
	WalkCancelled    EventType = "walk_cancelled"
	PaymentConfirmed EventType = "payment_confirmed"
	ReviewReceived   EventType = "review_received"
)

// Event is the emit(userId, type, title, message, link) payload.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	UserID  string    `json:"user_id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Link    string    `json:"link"`
	At      time.Time `json:"at"`
}

func newEvent(t EventType, userID, title, message, link string) Event {
	return Event{ID: uuid.NewString(), Type: t, UserID: userID, Title: title, Message: message, Link: link, At: time.Now().UTC()}
}

func requestLink(requestID string) string       { return "/requests/" + requestID }
func assignmentLink(assignmentID string) string { return "/assignments/" + assignmentID }

func NewOfferReceived(ownerID, requestID string, price float64) Event {
	return newEvent(OfferReceived, ownerID, "New offer",
		fmt.Sprintf("A walker offered %.2f for your walk request", price), requestLink(requestID))
}

func NewOfferAccepted(walkerID, assignmentID string) Event {
	return newEvent(OfferAccepted, walkerID, "Offer accepted",
		"Your offer was accepted, the walk is scheduled", assignmentLink(assignmentID))
}

func NewOfferRejected(walkerID, requestID string) Event {
	return newEvent(OfferRejected, walkerID, "Offer not selected",
		"The owner chose another offer or closed the request", requestLink(requestID))
}

func NewWalkStarted(ownerID, assignmentID string) Event {
	return newEvent(WalkStarted, ownerID, "Walk started", "Your dog's walk has started", assignmentLink(assignmentID))
}

func NewWalkCompleted(ownerID, assignmentID string) Event {
	return newEvent(WalkCompleted, ownerID, "Walk completed",
		"The walk is finished, confirm payment and leave a review", assignmentLink(assignmentID))
}

func NewWalkCancelled(userID, assignmentID string) Event {
	return newEvent(WalkCancelled, userID, "Walk cancelled", "The scheduled walk was cancelled", assignmentLink(assignmentID))
}

func NewPaymentConfirmed(walkerID, assignmentID string) Event {
	return newEvent(PaymentConfirmed, walkerID, "Payment confirmed", "The owner confirmed your payment", assignmentLink(assignmentID))
}

func NewReviewReceived(walkerID, assignmentID string, rating int) Event {
	return newEvent(ReviewReceived, walkerID, "New review",
		fmt.Sprintf("You received a %d-star review", rating), assignmentLink(assignmentID))
}
