package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "walk_matching"

var (
	OffersCreated  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "offers_created_total", Help: "Offers submitted by walkers"})
	OffersDecided  = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "offers_decided_total", Help: "Offers accepted or rejected by owners"}, []string{"decision"})
	OfferConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "offer_accept_conflicts_total", Help: "Acceptances that lost to a concurrent or earlier decision"})

	AssignmentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "assignment_transitions_total", Help: "Assignment state transitions by target state"},
		[]string{"to"},
	)
	ReviewsCreated  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "reviews_created_total", Help: "Reviews attached to completed walks"})
	VisibleRequests = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "visible_requests",
		Help:      "Open requests visible to a walker per lookup",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	NotificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "notifications_delivered_total", Help: "Notifications handed to a sink"}, []string{"sink"})
	NotificationsFailed    = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "notifications_failed_total", Help: "Notification sink failures"}, []string{"sink"})
	NotificationsDropped   = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "notifications_dropped_total", Help: "Notifications dropped because the queue was full or closed"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
