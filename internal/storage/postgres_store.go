package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/example/walk-matching/internal/models"
	"github.com/example/walk-matching/internal/storage/migrations"
)

// PostgresStore implements Store on Postgres. Update runs at READ COMMITTED
// and relies on SELECT ... FOR UPDATE (the ForUpdate getters) plus the
// partial unique indexes in the migrations to keep the single-acceptance
// and single-review invariants under concurrency.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Migrate applies the embedded goose migrations.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, p.db.DB, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *PostgresStore) Close() error                   { return p.db.Close() }

func (p *PostgresStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return p.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (p *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	return p.run(ctx, nil, fn)
}

func (p *PostgresStore) run(ctx context.Context, opts *sql.TxOptions, fn func(tx Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, opts)
	if err != nil {
		return models.Transient(fmt.Errorf("begin tx: %w", err))
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// classify keeps domain errors as they are, reports unique violations as
// conflicts and everything else from the driver as transient. The
// violated constraint stays in the wrapped error for logs only.
func classify(err error) error {
	var de *models.Error
	if errors.As(err, &de) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return &models.Error{Kind: models.KindConflict, Message: "a concurrent change already applied to this resource, reload it and retry", Err: err}
	}
	return models.Transient(err)
}

type pgTx struct{ tx *sqlx.Tx }

func (t *pgTx) Requests() RequestRepository       { return pgRequests{t.tx} }
func (t *pgTx) Offers() OfferRepository           { return pgOffers{t.tx} }
func (t *pgTx) Assignments() AssignmentRepository { return pgAssignments{t.tx} }
func (t *pgTx) Reviews() ReviewRepository         { return pgReviews{t.tx} }
func (t *pgTx) Walkers() WalkerRepository         { return pgWalkers{t.tx} }

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.NotFoundf(format, args...)
	}
	return err
}

func nullFloat(c *models.Coord, lat bool) sql.NullFloat64 {
	if c == nil {
		return sql.NullFloat64{}
	}
	if lat {
		return sql.NullFloat64{Float64: c.Lat, Valid: true}
	}
	return sql.NullFloat64{Float64: c.Lon, Valid: true}
}

func coordFrom(lat, lon sql.NullFloat64) *models.Coord {
	if !lat.Valid || !lon.Valid {
		return nil
	}
	return &models.Coord{Lat: lat.Float64, Lon: lon.Float64}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// --- walk requests

type requestRow struct {
	ID              string          `db:"id"`
	OwnerID         string          `db:"owner_id"`
	DogID           string          `db:"dog_id"`
	Date            string          `db:"walk_date"`
	StartTime       string          `db:"start_time"`
	DurationMinutes int             `db:"duration_minutes"`
	Lat             sql.NullFloat64 `db:"lat"`
	Lon             sql.NullFloat64 `db:"lon"`
	Zone            string          `db:"zone"`
	SuggestedPrice  float64         `db:"suggested_price"`
	Details         string          `db:"details"`
	Status          string          `db:"status"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

const requestColumns = `id, owner_id, dog_id, walk_date, start_time, duration_minutes, lat, lon, zone,
	suggested_price, details, status, created_at, updated_at`

func toRequestRow(r *models.WalkRequest) requestRow {
	return requestRow{
		ID: r.ID, OwnerID: r.OwnerID, DogID: r.DogID, Date: r.Date, StartTime: r.StartTime,
		DurationMinutes: r.DurationMinutes, Lat: nullFloat(r.Loc, true), Lon: nullFloat(r.Loc, false),
		Zone: r.Zone, SuggestedPrice: r.SuggestedPrice, Details: r.Details, Status: string(r.Status),
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func (row requestRow) model() models.WalkRequest {
	return models.WalkRequest{
		ID: row.ID, OwnerID: row.OwnerID, DogID: row.DogID, Date: row.Date, StartTime: row.StartTime,
		DurationMinutes: row.DurationMinutes, Loc: coordFrom(row.Lat, row.Lon), Zone: row.Zone,
		SuggestedPrice: row.SuggestedPrice, Details: row.Details, Status: models.RequestStatus(row.Status),
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
}

type pgRequests struct{ tx *sqlx.Tx }

func (r pgRequests) Create(ctx context.Context, req *models.WalkRequest) error {
	_, err := r.tx.NamedExecContext(ctx, `INSERT INTO walk_requests (`+requestColumns+`) VALUES (
		:id, :owner_id, :dog_id, :walk_date, :start_time, :duration_minutes, :lat, :lon, :zone,
		:suggested_price, :details, :status, :created_at, :updated_at)`, toRequestRow(req))
	if err != nil {
		return fmt.Errorf("create walk request: %w", err)
	}
	return nil
}

func (r pgRequests) get(ctx context.Context, id, suffix string) (*models.WalkRequest, error) {
	var row requestRow
	if err := r.tx.GetContext(ctx, &row, `SELECT `+requestColumns+` FROM walk_requests WHERE id = $1`+suffix, id); err != nil {
		return nil, notFound(err, "walk request %s not found", id)
	}
	m := row.model()
	return &m, nil
}

func (r pgRequests) Get(ctx context.Context, id string) (*models.WalkRequest, error) {
	return r.get(ctx, id, "")
}

func (r pgRequests) GetForUpdate(ctx context.Context, id string) (*models.WalkRequest, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r pgRequests) Update(ctx context.Context, req *models.WalkRequest) error {
	res, err := r.tx.NamedExecContext(ctx, `UPDATE walk_requests SET
		dog_id = :dog_id, walk_date = :walk_date, start_time = :start_time, duration_minutes = :duration_minutes,
		lat = :lat, lon = :lon, zone = :zone, suggested_price = :suggested_price, details = :details,
		status = :status, updated_at = :updated_at
		WHERE id = :id`, toRequestRow(req))
	if err != nil {
		return fmt.Errorf("update walk request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NotFoundf("walk request %s not found", req.ID)
	}
	return nil
}

func (r pgRequests) ListOpen(ctx context.Context) ([]models.WalkRequest, error) {
	var rows []requestRow
	if err := r.tx.SelectContext(ctx, &rows, `SELECT `+requestColumns+` FROM walk_requests
		WHERE status = 'OPEN' ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("list open walk requests: %w", err)
	}
	out := make([]models.WalkRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

// --- offers

type offerRow struct {
	ID        string    `db:"id"`
	RequestID string    `db:"request_id"`
	WalkerID  string    `db:"walker_id"`
	Price     float64   `db:"price"`
	Message   string    `db:"message"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const offerColumns = `id, request_id, walker_id, price, message, status, created_at, updated_at`

func (row offerRow) model() models.Offer {
	return models.Offer{
		ID: row.ID, RequestID: row.RequestID, WalkerID: row.WalkerID, Price: row.Price,
		Message: row.Message, Status: models.OfferStatus(row.Status), CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
}

func toOfferRow(o *models.Offer) offerRow {
	return offerRow{
		ID: o.ID, RequestID: o.RequestID, WalkerID: o.WalkerID, Price: o.Price, Message: o.Message,
		Status: string(o.Status), CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
	}
}

type pgOffers struct{ tx *sqlx.Tx }

func (o pgOffers) Create(ctx context.Context, off *models.Offer) error {
	_, err := o.tx.NamedExecContext(ctx, `INSERT INTO offers (`+offerColumns+`)
		VALUES (:id, :request_id, :walker_id, :price, :message, :status, :created_at, :updated_at)`, toOfferRow(off))
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	return nil
}

func (o pgOffers) Get(ctx context.Context, id string) (*models.Offer, error) {
	var row offerRow
	if err := o.tx.GetContext(ctx, &row, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "offer %s not found", id)
	}
	m := row.model()
	return &m, nil
}

func (o pgOffers) Update(ctx context.Context, off *models.Offer) error {
	res, err := o.tx.NamedExecContext(ctx, `UPDATE offers SET price = :price, message = :message,
		status = :status, updated_at = :updated_at WHERE id = :id`, toOfferRow(off))
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NotFoundf("offer %s not found", off.ID)
	}
	return nil
}

func (o pgOffers) list(ctx context.Context, where string, arg string) ([]models.Offer, error) {
	var rows []offerRow
	if err := o.tx.SelectContext(ctx, &rows, `SELECT `+offerColumns+` FROM offers WHERE `+where+` ORDER BY created_at, id`, arg); err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	out := make([]models.Offer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

func (o pgOffers) ListByRequest(ctx context.Context, requestID string) ([]models.Offer, error) {
	return o.list(ctx, "request_id = $1", requestID)
}

func (o pgOffers) ListByWalker(ctx context.Context, walkerID string) ([]models.Offer, error) {
	return o.list(ctx, "walker_id = $1", walkerID)
}

func (o pgOffers) RejectPending(ctx context.Context, requestID, exceptID string, at time.Time) ([]string, error) {
	var walkers []string
	err := o.tx.SelectContext(ctx, &walkers, `UPDATE offers SET status = 'REJECTED', updated_at = $3
		WHERE request_id = $1 AND id <> $2 AND status = 'PENDING' RETURNING walker_id`, requestID, exceptID, at)
	if err != nil {
		return nil, fmt.Errorf("reject pending offers: %w", err)
	}
	return walkers, nil
}

// --- assignments

type assignmentRow struct {
	ID                 string       `db:"id"`
	RequestID          string       `db:"request_id"`
	OfferID            string       `db:"offer_id"`
	OwnerID            string       `db:"owner_id"`
	WalkerID           string       `db:"walker_id"`
	Status             string       `db:"status"`
	ArrivedAt          sql.NullTime `db:"arrived_at"`
	StartedAt          sql.NullTime `db:"started_at"`
	CompletedAt        sql.NullTime `db:"completed_at"`
	CancelledAt        sql.NullTime `db:"cancelled_at"`
	CancelledBy        string       `db:"cancelled_by"`
	PaymentConfirmed   bool         `db:"payment_confirmed"`
	PaymentConfirmedAt sql.NullTime `db:"payment_confirmed_at"`
	CreatedAt          time.Time    `db:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at"`
}

const assignmentColumns = `id, request_id, offer_id, owner_id, walker_id, status, arrived_at, started_at,
	completed_at, cancelled_at, cancelled_by, payment_confirmed, payment_confirmed_at, created_at, updated_at`

func toAssignmentRow(a *models.WalkAssignment) assignmentRow {
	return assignmentRow{
		ID: a.ID, RequestID: a.RequestID, OfferID: a.OfferID, OwnerID: a.OwnerID, WalkerID: a.WalkerID,
		Status: string(a.Status), ArrivedAt: nullTime(a.ArrivedAt), StartedAt: nullTime(a.StartedAt),
		CompletedAt: nullTime(a.CompletedAt), CancelledAt: nullTime(a.CancelledAt), CancelledBy: a.CancelledBy,
		PaymentConfirmed: a.PaymentConfirmed, PaymentConfirmedAt: nullTime(a.PaymentConfirmedAt),
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

func (row assignmentRow) model() models.WalkAssignment {
	return models.WalkAssignment{
		ID: row.ID, RequestID: row.RequestID, OfferID: row.OfferID, OwnerID: row.OwnerID, WalkerID: row.WalkerID,
		Status: models.AssignmentStatus(row.Status), ArrivedAt: timePtr(row.ArrivedAt), StartedAt: timePtr(row.StartedAt),
		CompletedAt: timePtr(row.CompletedAt), CancelledAt: timePtr(row.CancelledAt), CancelledBy: row.CancelledBy,
		PaymentConfirmed: row.PaymentConfirmed, PaymentConfirmedAt: timePtr(row.PaymentConfirmedAt),
		Photos: []string{}, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
}

type pgAssignments struct{ tx *sqlx.Tx }

func (a pgAssignments) Create(ctx context.Context, as *models.WalkAssignment) error {
	_, err := a.tx.NamedExecContext(ctx, `INSERT INTO walk_assignments (`+assignmentColumns+`) VALUES (
		:id, :request_id, :offer_id, :owner_id, :walker_id, :status, :arrived_at, :started_at,
		:completed_at, :cancelled_at, :cancelled_by, :payment_confirmed, :payment_confirmed_at, :created_at, :updated_at)`,
		toAssignmentRow(as))
	if err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

func (a pgAssignments) one(ctx context.Context, query string, arg string, notFoundMsg string) (*models.WalkAssignment, error) {
	var row assignmentRow
	if err := a.tx.GetContext(ctx, &row, query, arg); err != nil {
		return nil, notFound(err, notFoundMsg, arg)
	}
	m := row.model()
	if err := a.loadPhotos(ctx, []*models.WalkAssignment{&m}); err != nil {
		return nil, err
	}
	return &m, nil
}

func (a pgAssignments) Get(ctx context.Context, id string) (*models.WalkAssignment, error) {
	return a.one(ctx, `SELECT `+assignmentColumns+` FROM walk_assignments WHERE id = $1`, id, "assignment %s not found")
}

func (a pgAssignments) GetForUpdate(ctx context.Context, id string) (*models.WalkAssignment, error) {
	return a.one(ctx, `SELECT `+assignmentColumns+` FROM walk_assignments WHERE id = $1 FOR UPDATE`, id, "assignment %s not found")
}

func (a pgAssignments) LatestByRequest(ctx context.Context, requestID string) (*models.WalkAssignment, error) {
	return a.one(ctx, `SELECT `+assignmentColumns+` FROM walk_assignments WHERE request_id = $1
		ORDER BY seq DESC LIMIT 1`, requestID, "no assignment for walk request %s")
}

func (a pgAssignments) Update(ctx context.Context, as *models.WalkAssignment) error {
	res, err := a.tx.NamedExecContext(ctx, `UPDATE walk_assignments SET status = :status,
		arrived_at = :arrived_at, started_at = :started_at, completed_at = :completed_at,
		cancelled_at = :cancelled_at, cancelled_by = :cancelled_by, payment_confirmed = :payment_confirmed,
		payment_confirmed_at = :payment_confirmed_at, updated_at = :updated_at
		WHERE id = :id`, toAssignmentRow(as))
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NotFoundf("assignment %s not found", as.ID)
	}
	return nil
}

func (a pgAssignments) AddPhoto(ctx context.Context, id, ref string, at time.Time) error {
	if _, err := a.tx.ExecContext(ctx, `INSERT INTO assignment_photos (assignment_id, position, ref, created_at)
		SELECT $1, COALESCE(MAX(position), 0) + 1, $2, $3 FROM assignment_photos WHERE assignment_id = $1`,
		id, ref, at); err != nil {
		return fmt.Errorf("add photo: %w", err)
	}
	if _, err := a.tx.ExecContext(ctx, `UPDATE walk_assignments SET updated_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("touch assignment: %w", err)
	}
	return nil
}

func (a pgAssignments) ListByUser(ctx context.Context, userID string) ([]models.WalkAssignment, error) {
	var rows []assignmentRow
	if err := a.tx.SelectContext(ctx, &rows, `SELECT `+assignmentColumns+` FROM walk_assignments
		WHERE owner_id = $1 OR walker_id = $1 ORDER BY seq`, userID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	out := make([]models.WalkAssignment, len(rows))
	ptrs := make([]*models.WalkAssignment, len(rows))
	for i, row := range rows {
		out[i] = row.model()
		ptrs[i] = &out[i]
	}
	if err := a.loadPhotos(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

func (a pgAssignments) loadPhotos(ctx context.Context, as []*models.WalkAssignment) error {
	if len(as) == 0 {
		return nil
	}
	ids := make([]string, len(as))
	byID := make(map[string]*models.WalkAssignment, len(as))
	for i, x := range as {
		ids[i] = x.ID
		byID[x.ID] = x
	}
	var photos []struct {
		AssignmentID string `db:"assignment_id"`
		Ref          string `db:"ref"`
	}
	if err := a.tx.SelectContext(ctx, &photos, `SELECT assignment_id, ref FROM assignment_photos
		WHERE assignment_id = ANY($1) ORDER BY assignment_id, position`, pq.Array(ids)); err != nil {
		return fmt.Errorf("load photos: %w", err)
	}
	for _, p := range photos {
		if x, ok := byID[p.AssignmentID]; ok {
			x.Photos = append(x.Photos, p.Ref)
		}
	}
	return nil
}

// --- reviews

type reviewRow struct {
	ID           string    `db:"id"`
	AssignmentID string    `db:"assignment_id"`
	AuthorID     string    `db:"author_id"`
	WalkerID     string    `db:"walker_id"`
	Rating       int       `db:"rating"`
	Comment      string    `db:"comment"`
	CreatedAt    time.Time `db:"created_at"`
}

type pgReviews struct{ tx *sqlx.Tx }

func (r pgReviews) Create(ctx context.Context, rv *models.Review) error {
	row := reviewRow{ID: rv.ID, AssignmentID: rv.AssignmentID, AuthorID: rv.AuthorID, WalkerID: rv.WalkerID,
		Rating: rv.Rating, Comment: rv.Comment, CreatedAt: rv.CreatedAt}
	_, err := r.tx.NamedExecContext(ctx, `INSERT INTO reviews (id, assignment_id, author_id, walker_id, rating, comment, created_at)
		VALUES (:id, :assignment_id, :author_id, :walker_id, :rating, :comment, :created_at)`, row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.Conflictf("assignment %s already has a review", rv.AssignmentID)
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (r pgReviews) GetByAssignment(ctx context.Context, assignmentID string) (*models.Review, error) {
	var row reviewRow
	if err := r.tx.GetContext(ctx, &row, `SELECT id, assignment_id, author_id, walker_id, rating, comment, created_at
		FROM reviews WHERE assignment_id = $1`, assignmentID); err != nil {
		return nil, notFound(err, "no review for assignment %s", assignmentID)
	}
	return &models.Review{ID: row.ID, AssignmentID: row.AssignmentID, AuthorID: row.AuthorID, WalkerID: row.WalkerID,
		Rating: row.Rating, Comment: row.Comment, CreatedAt: row.CreatedAt}, nil
}

func (r pgReviews) WalkerAverage(ctx context.Context, walkerID string) (float64, int, error) {
	var (
		avg float64
		n   int
	)
	// Reviews of different assignments do not share a row lock. The
	// per-walker lock makes the AVG below see every committed review of a
	// concurrent writer before this one persists its result.
	if _, err := r.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('walker_rating:' || $1))`, walkerID); err != nil {
		return 0, 0, fmt.Errorf("lock walker rating: %w", err)
	}
	err := r.tx.QueryRowxContext(ctx, `SELECT COALESCE(AVG(r.rating)::float8, 0), COUNT(r.id)
		FROM reviews r JOIN walk_assignments a ON a.id = r.assignment_id
		WHERE a.walker_id = $1`, walkerID).Scan(&avg, &n)
	if err != nil {
		return 0, 0, fmt.Errorf("walker average: %w", err)
	}
	return avg, n, nil
}

// --- walker profiles

type walkerRow struct {
	UserID          string          `db:"user_id"`
	HomeLat         sql.NullFloat64 `db:"home_lat"`
	HomeLon         sql.NullFloat64 `db:"home_lon"`
	ServiceRadiusKm float64         `db:"service_radius_km"`
	BaseZone        string          `db:"base_zone"`
	BaseCity        string          `db:"base_city"`
	AverageRating   float64         `db:"average_rating"`
	ReviewCount     int             `db:"review_count"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

type pgWalkers struct{ tx *sqlx.Tx }

func (w pgWalkers) Get(ctx context.Context, userID string) (*models.WalkerProfile, error) {
	var row walkerRow
	if err := w.tx.GetContext(ctx, &row, `SELECT user_id, home_lat, home_lon, service_radius_km, base_zone,
		base_city, average_rating, review_count, updated_at FROM walker_profiles WHERE user_id = $1`, userID); err != nil {
		return nil, notFound(err, "walker %s not found", userID)
	}
	return &models.WalkerProfile{
		UserID: row.UserID, Home: coordFrom(row.HomeLat, row.HomeLon), ServiceRadiusKm: row.ServiceRadiusKm,
		BaseZone: row.BaseZone, BaseCity: row.BaseCity, AverageRating: row.AverageRating,
		ReviewCount: row.ReviewCount, UpdatedAt: row.UpdatedAt,
	}, nil
}

func (w pgWalkers) UpsertArea(ctx context.Context, p *models.WalkerProfile) error {
	row := walkerRow{UserID: p.UserID, HomeLat: nullFloat(p.Home, true), HomeLon: nullFloat(p.Home, false),
		ServiceRadiusKm: p.ServiceRadiusKm, BaseZone: p.BaseZone, BaseCity: p.BaseCity, UpdatedAt: p.UpdatedAt}
	_, err := w.tx.NamedExecContext(ctx, `INSERT INTO walker_profiles
		(user_id, home_lat, home_lon, service_radius_km, base_zone, base_city, updated_at)
		VALUES (:user_id, :home_lat, :home_lon, :service_radius_km, :base_zone, :base_city, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET home_lat = EXCLUDED.home_lat, home_lon = EXCLUDED.home_lon,
		service_radius_km = EXCLUDED.service_radius_km, base_zone = EXCLUDED.base_zone,
		base_city = EXCLUDED.base_city, updated_at = EXCLUDED.updated_at`, row)
	if err != nil {
		return fmt.Errorf("upsert walker area: %w", err)
	}
	return nil
}

func (w pgWalkers) SetRating(ctx context.Context, userID string, avg float64, count int, at time.Time) error {
	_, err := w.tx.ExecContext(ctx, `INSERT INTO walker_profiles (user_id, average_rating, review_count, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET average_rating = EXCLUDED.average_rating,
		review_count = EXCLUDED.review_count, updated_at = EXCLUDED.updated_at`, userID, avg, count, at)
	if err != nil {
		return fmt.Errorf("set walker rating: %w", err)
	}
	return nil
}
