package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/walk-matching/internal/models"
)

var errReadOnly = errors.New("write in read-only transaction")

// MemoryStore keeps everything in process. Writers are serialized behind
// one lock and work on a private copy that replaces the live state only
// when fn succeeds, so a failed Update leaves no trace.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	seq         int64
	requests    map[string]models.WalkRequest
	offers      map[string]models.Offer
	offerSeq    map[string]int64
	assignments map[string]models.WalkAssignment
	assignSeq   map[string]int64
	reviews     map[string]models.Review // keyed by assignment id
	walkers     map[string]models.WalkerProfile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		requests:    make(map[string]models.WalkRequest),
		offers:      make(map[string]models.Offer),
		offerSeq:    make(map[string]int64),
		assignments: make(map[string]models.WalkAssignment),
		assignSeq:   make(map[string]int64),
		reviews:     make(map[string]models.Review),
		walkers:     make(map[string]models.WalkerProfile),
	}}
}

func (m *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return models.Transient(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTx{s: m.state, readOnly: true})
}

func (m *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return models.Transient(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(&memTx{s: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return models.Transient(err)
	}
	m.state = work
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
func (m *MemoryStore) Close() error                   { return nil }

func (s *memState) clone() *memState {
	c := &memState{
		seq:         s.seq,
		requests:    make(map[string]models.WalkRequest, len(s.requests)),
		offers:      make(map[string]models.Offer, len(s.offers)),
		offerSeq:    make(map[string]int64, len(s.offerSeq)),
		assignments: make(map[string]models.WalkAssignment, len(s.assignments)),
		assignSeq:   make(map[string]int64, len(s.assignSeq)),
		reviews:     make(map[string]models.Review, len(s.reviews)),
		walkers:     make(map[string]models.WalkerProfile, len(s.walkers)),
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.offers {
		c.offers[k] = v
	}
	for k, v := range s.offerSeq {
		c.offerSeq[k] = v
	}
	for k, v := range s.assignments {
		v.Photos = append([]string(nil), v.Photos...)
		c.assignments[k] = v
	}
	for k, v := range s.assignSeq {
		c.assignSeq[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	for k, v := range s.walkers {
		c.walkers[k] = v
	}
	return c
}

func (s *memState) next() int64 {
	s.seq++
	return s.seq
}

type memTx struct {
	s        *memState
	readOnly bool
}

func (t *memTx) Requests() RequestRepository       { return memRequests{t} }
func (t *memTx) Offers() OfferRepository           { return memOffers{t} }
func (t *memTx) Assignments() AssignmentRepository { return memAssignments{t} }
func (t *memTx) Reviews() ReviewRepository         { return memReviews{t} }
func (t *memTx) Walkers() WalkerRepository         { return memWalkers{t} }

func (t *memTx) writable() error {
	if t.readOnly {
		return models.Transient(errReadOnly)
	}
	return nil
}

type memRequests struct{ t *memTx }

func (r memRequests) Create(ctx context.Context, req *models.WalkRequest) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.s.requests[req.ID]; ok {
		return models.Conflictf("walk request %s already exists", req.ID)
	}
	r.t.s.requests[req.ID] = *req
	return nil
}

func (r memRequests) Get(ctx context.Context, id string) (*models.WalkRequest, error) {
	req, ok := r.t.s.requests[id]
	if !ok {
		return nil, models.NotFoundf("walk request %s not found", id)
	}
	return &req, nil
}

func (r memRequests) GetForUpdate(ctx context.Context, id string) (*models.WalkRequest, error) {
	return r.Get(ctx, id)
}

func (r memRequests) Update(ctx context.Context, req *models.WalkRequest) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.s.requests[req.ID]; !ok {
		return models.NotFoundf("walk request %s not found", req.ID)
	}
	r.t.s.requests[req.ID] = *req
	return nil
}

func (r memRequests) ListOpen(ctx context.Context) ([]models.WalkRequest, error) {
	out := make([]models.WalkRequest, 0)
	for _, req := range r.t.s.requests {
		if req.Status == models.RequestOpen {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memOffers struct{ t *memTx }

func (o memOffers) Create(ctx context.Context, off *models.Offer) error {
	if err := o.t.writable(); err != nil {
		return err
	}
	if _, ok := o.t.s.offers[off.ID]; ok {
		return models.Conflictf("offer %s already exists", off.ID)
	}
	o.t.s.offers[off.ID] = *off
	o.t.s.offerSeq[off.ID] = o.t.s.next()
	return nil
}

func (o memOffers) Get(ctx context.Context, id string) (*models.Offer, error) {
	off, ok := o.t.s.offers[id]
	if !ok {
		return nil, models.NotFoundf("offer %s not found", id)
	}
	return &off, nil
}

func (o memOffers) Update(ctx context.Context, off *models.Offer) error {
	if err := o.t.writable(); err != nil {
		return err
	}
	if _, ok := o.t.s.offers[off.ID]; !ok {
		return models.NotFoundf("offer %s not found", off.ID)
	}
	o.t.s.offers[off.ID] = *off
	return nil
}

func (o memOffers) list(keep func(models.Offer) bool) []models.Offer {
	out := make([]models.Offer, 0)
	for _, off := range o.t.s.offers {
		if keep(off) {
			out = append(out, off)
		}
	}
	sort.Slice(out, func(i, j int) bool { return o.t.s.offerSeq[out[i].ID] < o.t.s.offerSeq[out[j].ID] })
	return out
}

func (o memOffers) ListByRequest(ctx context.Context, requestID string) ([]models.Offer, error) {
	return o.list(func(off models.Offer) bool { return off.RequestID == requestID }), nil
}

func (o memOffers) ListByWalker(ctx context.Context, walkerID string) ([]models.Offer, error) {
	return o.list(func(off models.Offer) bool { return off.WalkerID == walkerID }), nil
}

func (o memOffers) RejectPending(ctx context.Context, requestID, exceptID string, at time.Time) ([]string, error) {
	if err := o.t.writable(); err != nil {
		return nil, err
	}
	pending := o.list(func(off models.Offer) bool {
		return off.RequestID == requestID && off.ID != exceptID && off.Status == models.OfferPending
	})
	walkers := make([]string, 0, len(pending))
	for _, off := range pending {
		off.Status = models.OfferRejected
		off.UpdatedAt = at
		o.t.s.offers[off.ID] = off
		walkers = append(walkers, off.WalkerID)
	}
	return walkers, nil
}

type memAssignments struct{ t *memTx }

func (a memAssignments) Create(ctx context.Context, as *models.WalkAssignment) error {
	if err := a.t.writable(); err != nil {
		return err
	}
	if _, ok := a.t.s.assignments[as.ID]; ok {
		return models.Conflictf("assignment %s already exists", as.ID)
	}
	for _, other := range a.t.s.assignments {
		if other.RequestID == as.RequestID && !other.Status.Terminal() {
			return models.Conflictf("walk request %s already has an active assignment", as.RequestID)
		}
	}
	c := *as
	c.Photos = append([]string(nil), as.Photos...)
	a.t.s.assignments[as.ID] = c
	a.t.s.assignSeq[as.ID] = a.t.s.next()
	return nil
}

func (a memAssignments) Get(ctx context.Context, id string) (*models.WalkAssignment, error) {
	as, ok := a.t.s.assignments[id]
	if !ok {
		return nil, models.NotFoundf("assignment %s not found", id)
	}
	as.Photos = append([]string(nil), as.Photos...)
	return &as, nil
}

func (a memAssignments) GetForUpdate(ctx context.Context, id string) (*models.WalkAssignment, error) {
	return a.Get(ctx, id)
}

func (a memAssignments) Update(ctx context.Context, as *models.WalkAssignment) error {
	if err := a.t.writable(); err != nil {
		return err
	}
	cur, ok := a.t.s.assignments[as.ID]
	if !ok {
		return models.NotFoundf("assignment %s not found", as.ID)
	}
	photos := cur.Photos
	cur = *as
	cur.Photos = photos
	a.t.s.assignments[as.ID] = cur
	return nil
}

func (a memAssignments) AddPhoto(ctx context.Context, id, ref string, at time.Time) error {
	if err := a.t.writable(); err != nil {
		return err
	}
	cur, ok := a.t.s.assignments[id]
	if !ok {
		return models.NotFoundf("assignment %s not found", id)
	}
	cur.Photos = append(cur.Photos, ref)
	cur.UpdatedAt = at
	a.t.s.assignments[id] = cur
	return nil
}

func (a memAssignments) LatestByRequest(ctx context.Context, requestID string) (*models.WalkAssignment, error) {
	var (
		latest models.WalkAssignment
		seq    int64 = -1
	)
	for id, as := range a.t.s.assignments {
		if as.RequestID == requestID && a.t.s.assignSeq[id] > seq {
			latest, seq = as, a.t.s.assignSeq[id]
		}
	}
	if seq < 0 {
		return nil, models.NotFoundf("no assignment for walk request %s", requestID)
	}
	latest.Photos = append([]string(nil), latest.Photos...)
	return &latest, nil
}

func (a memAssignments) ListByUser(ctx context.Context, userID string) ([]models.WalkAssignment, error) {
	out := make([]models.WalkAssignment, 0)
	for _, as := range a.t.s.assignments {
		if as.Party(userID) {
			as.Photos = append([]string(nil), as.Photos...)
			out = append(out, as)
		}
	}
	sort.Slice(out, func(i, j int) bool { return a.t.s.assignSeq[out[i].ID] < a.t.s.assignSeq[out[j].ID] })
	return out, nil
}

type memReviews struct{ t *memTx }

func (r memReviews) Create(ctx context.Context, rv *models.Review) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.s.reviews[rv.AssignmentID]; ok {
		return models.Conflictf("assignment %s already has a review", rv.AssignmentID)
	}
	r.t.s.reviews[rv.AssignmentID] = *rv
	return nil
}

func (r memReviews) GetByAssignment(ctx context.Context, assignmentID string) (*models.Review, error) {
	rv, ok := r.t.s.reviews[assignmentID]
	if !ok {
		return nil, models.NotFoundf("no review for assignment %s", assignmentID)
	}
	return &rv, nil
}

func (r memReviews) WalkerAverage(ctx context.Context, walkerID string) (float64, int, error) {
	sum, n := 0, 0
	for assignmentID, rv := range r.t.s.reviews {
		as, ok := r.t.s.assignments[assignmentID]
		if !ok || as.WalkerID != walkerID {
			continue
		}
		sum += rv.Rating
		n++
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
}

type memWalkers struct{ t *memTx }

func (w memWalkers) Get(ctx context.Context, userID string) (*models.WalkerProfile, error) {
	p, ok := w.t.s.walkers[userID]
	if !ok {
		return nil, models.NotFoundf("walker %s not found", userID)
	}
	return &p, nil
}

func (w memWalkers) UpsertArea(ctx context.Context, p *models.WalkerProfile) error {
	if err := w.t.writable(); err != nil {
		return err
	}
	cur := w.t.s.walkers[p.UserID]
	cur.UserID = p.UserID
	cur.Home = p.Home
	cur.ServiceRadiusKm = p.ServiceRadiusKm
	cur.BaseZone = p.BaseZone
	cur.BaseCity = p.BaseCity
	cur.UpdatedAt = p.UpdatedAt
	w.t.s.walkers[p.UserID] = cur
	return nil
}

func (w memWalkers) SetRating(ctx context.Context, userID string, avg float64, count int, at time.Time) error {
	if err := w.t.writable(); err != nil {
		return err
	}
	cur := w.t.s.walkers[userID]
	cur.UserID = userID
	cur.AverageRating = avg
	cur.ReviewCount = count
	cur.UpdatedAt = at
	w.t.s.walkers[userID] = cur
	return nil
}
