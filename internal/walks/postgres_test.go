package walks

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/walk-matching/internal/models"
	"github.com/example/walk-matching/internal/storage"
)

// Runs the concurrency checks against row locks and unique indexes in a
// disposable database, e.g.
// PG_TEST_DSN="host=localhost user=postgres password=postgres dbname=walks_test sslmode=disable"
func newPostgresFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	s, err := storage.NewPostgresStore(dsn)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return newFixtureOn(t, s)
}

// freshWalker keeps runs against a shared database from mixing ratings.
func freshWalker() models.Identity {
	return models.Identity{UserID: "walker-" + uuid.NewString(), Role: models.RoleWalker}
}

func TestPostgresConcurrentAcceptanceHasOneWinner(t *testing.T) {
	f := newPostgresFixture(t)
	for i := 0; i < 10; i++ {
		raceAcceptance(t, f, freshWalker(), freshWalker())
	}
}

func TestPostgresConcurrentReviewsKeepOnePerAssignment(t *testing.T) {
	f := newPostgresFixture(t)
	for i := 0; i < 5; i++ {
		raceReviews(t, f, freshWalker())
	}
}

func TestPostgresConcurrentReviewsAverageEveryRating(t *testing.T) {
	reviewAllAtOnce(t, newPostgresFixture(t), freshWalker())
}
