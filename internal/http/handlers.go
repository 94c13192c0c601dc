package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/walk-matching/internal/auth"
	"github.com/example/walk-matching/internal/models"
	"github.com/example/walk-matching/internal/notify"
	"github.com/example/walk-matching/internal/walks"
)

const maxBodyBytes = 1 << 20

// Inbox is the read side of the per-user notification list.
type Inbox interface {
	List(ctx context.Context, userID string, limit int64) ([]notify.Event, error)
}

// Checker is pinged by /ready; any error makes the instance unready.
type Checker func(ctx context.Context) error

type Options struct {
	Walks  *walks.Service
	Auth   auth.Authenticator
	WS     *notify.WSRegistry
	Inbox  Inbox
	Ready  map[string]Checker
	Logger *slog.Logger
}

type Server struct {
	walks  *walks.Service
	auth   auth.Authenticator
	ws     *notify.WSRegistry
	inbox  Inbox
	ready  map[string]Checker
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	// Sockets still register without a registry wired to the emitter; they
	// just never receive events.
	ws := opts.WS
	if ws == nil {
		ws = notify.NewWSRegistry()
	}
	s := &Server{
		walks:  opts.Walks,
		auth:   opts.Auth,
		ws:     ws,
		inbox:  opts.Inbox,
		ready:  opts.Ready,
		logger: logger,
		mux:    mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.HandleFunc("/ready", s.handleReady).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.Handle("/ws", s.authenticated(s.handleWS)).Methods("GET")

	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/requests", s.handleCreateRequest).Methods("POST")
	api.HandleFunc("/requests/{id}", s.handleGetRequest).Methods("GET")
	api.HandleFunc("/requests/{id}/cancel", s.handleCancelRequest).Methods("POST")
	api.HandleFunc("/requests/{id}/offers", s.handleListOffers).Methods("GET")
	api.HandleFunc("/requests/{id}/offers", s.handleCreateOffer).Methods("POST")

	api.HandleFunc("/walkers/me/visible-requests", s.handleVisibleRequests).Methods("GET")
	api.HandleFunc("/walkers/me", s.handleUpsertWalker).Methods("PUT")
	api.HandleFunc("/walkers/{id}", s.handleGetWalker).Methods("GET")

	api.HandleFunc("/offers/mine", s.handleListMyOffers).Methods("GET")
	api.HandleFunc("/offers/{id}/accept", s.handleAcceptOffer).Methods("POST")
	api.HandleFunc("/offers/{id}/reject", s.handleRejectOffer).Methods("POST")

	api.HandleFunc("/assignments", s.handleListAssignments).Methods("GET")
	api.HandleFunc("/assignments/{id}", s.handleGetAssignment).Methods("GET")
	api.HandleFunc("/assignments/{id}/arrive", s.assignmentAction(s.walks.MarkArrived)).Methods("POST")
	api.HandleFunc("/assignments/{id}/start", s.assignmentAction(s.walks.StartWalk)).Methods("POST")
	api.HandleFunc("/assignments/{id}/complete", s.assignmentAction(s.walks.CompleteWalk)).Methods("POST")
	api.HandleFunc("/assignments/{id}/cancel", s.assignmentAction(s.walks.CancelAssignment)).Methods("POST")
	api.HandleFunc("/assignments/{id}/payment", s.assignmentAction(s.walks.ConfirmPayment)).Methods("POST")
	api.HandleFunc("/assignments/{id}/photos", s.handleAddPhoto).Methods("POST")
	api.HandleFunc("/assignments/{id}/review", s.handleCreateReview).Methods("POST")

	api.HandleFunc("/notifications", s.handleNotifications).Methods("GET")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for name, check := range s.ready {
		if err := check(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			http.Error(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(200)
	w.Write([]byte("ready"))
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var in walks.CreateRequestInput
	if !s.decode(w, r, &in) {
		return
	}
	req, err := s.walks.CreateRequest(r.Context(), identityFrom(r.Context()), in)
	s.respond(w, r, http.StatusCreated, req, err)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.walks.GetRequest(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"])
	s.respond(w, r, http.StatusOK, req, err)
}

func (s *Server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.walks.CancelRequest(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"])
	s.respond(w, r, http.StatusOK, req, err)
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := s.walks.ListOffers(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"])
	s.respond(w, r, http.StatusOK, list(offers), err)
}

type offerBody struct {
	Price   float64 `json:"price"`
	Message string  `json:"message"`
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var in offerBody
	if !s.decode(w, r, &in) {
		return
	}
	off, err := s.walks.CreateOffer(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"], in.Price, in.Message)
	s.respond(w, r, http.StatusCreated, off, err)
}

func (s *Server) handleVisibleRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.walks.VisibleRequests(r.Context(), identityFrom(r.Context()))
	s.respond(w, r, http.StatusOK, list(reqs), err)
}

func (s *Server) handleUpsertWalker(w http.ResponseWriter, r *http.Request) {
	var in walks.WalkerAreaInput
	if !s.decode(w, r, &in) {
		return
	}
	p, err := s.walks.UpsertWalkerProfile(r.Context(), identityFrom(r.Context()), in)
	s.respond(w, r, http.StatusOK, p, err)
}

func (s *Server) handleGetWalker(w http.ResponseWriter, r *http.Request) {
	p, err := s.walks.GetWalker(r.Context(), mux.Vars(r)["id"])
	s.respond(w, r, http.StatusOK, p, err)
}

func (s *Server) handleListMyOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := s.walks.ListMyOffers(r.Context(), identityFrom(r.Context()))
	s.respond(w, r, http.StatusOK, list(offers), err)
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	a, err := s.walks.AcceptOffer(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"])
	s.respond(w, r, http.StatusCreated, a, err)
}

func (s *Server) handleRejectOffer(w http.ResponseWriter, r *http.Request) {
	off, err := s.walks.RejectOffer(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"])
	s.respond(w, r, http.StatusOK, off, err)
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	as, err := s.walks.ListAssignments(r.Context(), identityFrom(r.Context()))
	s.respond(w, r, http.StatusOK, list(as), err)
}

func (s *Server) handleGetAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := s.walks.GetAssignment(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"])
	s.respond(w, r, http.StatusOK, a, err)
}

type assignmentOp func(ctx context.Context, id models.Identity, assignmentID string) (*models.WalkAssignment, error)

func (s *Server) assignmentAction(op assignmentOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := op(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"])
		s.respond(w, r, http.StatusOK, a, err)
	}
}

func (s *Server) handleAddPhoto(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Ref string `json:"ref"`
	}
	if !s.decode(w, r, &in) {
		return
	}
	a, err := s.walks.AddPhoto(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"], in.Ref)
	s.respond(w, r, http.StatusCreated, a, err)
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if !s.decode(w, r, &in) {
		return
	}
	rv, err := s.walks.CreateReview(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"], in.Rating, in.Comment)
	s.respond(w, r, http.StatusCreated, rv, err)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := int64(20)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 || n > 100 {
			s.writeError(w, r, models.Validationf("limit must be between 1 and 100"))
			return
		}
		limit = n
	}
	events := []notify.Event{}
	if s.inbox != nil {
		var err error
		if events, err = s.inbox.List(r.Context(), identityFrom(r.Context()).UserID, limit); err != nil {
			s.writeError(w, r, models.Transient(err))
			return
		}
	}
	s.respond(w, r, http.StatusOK, list(events), nil)
}

var upgrader = websocket.Upgrader{}

// handleWS registers the caller's socket as their live notification
// channel and holds it until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "user_id", id.UserID, "error", err)
		return
	}
	s.ws.Add(id.UserID, conn)
	defer func() {
		s.ws.Remove(id.UserID, conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

type listBody[T any] struct {
	Items []T `json:"items"`
}

func list[T any](items []T) listBody[T] {
	if items == nil {
		items = []T{}
	}
	return listBody[T]{Items: items}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			s.writeError(w, r, models.Validationf("request body is required"))
			return false
		}
		s.writeError(w, r, models.Validationf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, body any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
