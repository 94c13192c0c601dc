package eta

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/walk-matching/internal/models"
)

type countingEstimator struct {
	calls int
	v     float64
	err   error
}

func (c *countingEstimator) EstimateSeconds(ctx context.Context, from, to models.Coord) (float64, error) {
	c.calls++
	return c.v, c.err
}

func TestStraightUsesWalkingPace(t *testing.T) {
	// 1.4km due north at the default pace is 1000 seconds.
	from := models.Coord{Lat: 0, Lon: 0}
	to := models.Coord{Lat: 1.4 / 111.195, Lon: 0}
	s, err := Straight{}.EstimateSeconds(context.Background(), from, to)
	require.NoError(t, err)
	assert.InDelta(t, 1000, s, 5)
}

func TestCachedServesRepeatsAndFallsBack(t *testing.T) {
	a, b := models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 1.01, Lon: 1}
	next := &countingEstimator{v: 600}
	c := Cached{Next: next, Cache: NewCache(time.Minute)}

	for i := 0; i < 3; i++ {
		v, err := c.EstimateSeconds(context.Background(), a, b)
		require.NoError(t, err)
		assert.Equal(t, 600.0, v)
	}
	assert.Equal(t, 1, next.calls)

	broken := Cached{Next: &countingEstimator{err: errors.New("down")}, Fallback: &countingEstimator{v: 42}, Cache: NewCache(time.Minute)}
	v, err := broken.EstimateSeconds(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	noFallback := Cached{Next: &countingEstimator{err: errors.New("down")}, Cache: NewCache(time.Minute)}
	_, err = noFallback.EstimateSeconds(context.Background(), a, b)
	assert.Error(t, err)
}

func TestCacheExpires(t *testing.T) {
	c := NewCache(time.Millisecond)
	a := models.Coord{Lat: 1, Lon: 2}
	c.Set(a, a, 5)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(a, a)
	assert.False(t, ok)
}

func TestOSRMClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/route/v1/foot/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if strings.Contains(r.URL.Path, "0.000000,0.000000;0.000000,0.000000") {
			w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
			return
		}
		w.Write([]byte(`{"code":"Ok","routes":[{"duration":321.5}]}`))
	}))
	defer srv.Close()

	c := NewOSRMClient(srv.URL + "/")
	v, err := c.EstimateSeconds(context.Background(), models.Coord{Lat: -12.08, Lon: -76.93}, models.Coord{Lat: -12.07, Lon: -76.93})
	require.NoError(t, err)
	assert.Equal(t, 321.5, v)

	_, err = c.EstimateSeconds(context.Background(), models.Coord{}, models.Coord{})
	assert.Error(t, err)
}
