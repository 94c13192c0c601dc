package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/walk-matching/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceKmOneDegreeLatitude(t *testing.T) {
	d := DistanceKm(models.Coord{Lat: 0, Lon: 0}, models.Coord{Lat: 1, Lon: 0})
	assert.InDelta(t, 111.2, d, 0.1)
}

func TestBoundingBoxAtEquator(t *testing.T) {
	b := BoundingBox(models.Coord{Lat: 0, Lon: 0}, 111)
	assert.InDelta(t, -1, b.MinLat, 1e-9)
	assert.InDelta(t, 1, b.MaxLat, 1e-9)
	assert.InDelta(t, -1, b.MinLon, 1e-9)
	assert.InDelta(t, 1, b.MaxLon, 1e-9)
	assert.True(t, b.Contains(models.Coord{Lat: 1, Lon: 1}))
	assert.False(t, b.Contains(models.Coord{Lat: 1.01, Lon: 0}))
}

func TestBoundingBoxWidensAwayFromEquator(t *testing.T) {
	b := BoundingBox(models.Coord{Lat: 60, Lon: 10}, 111)
	// cos(60deg) = 0.5, so longitude reach doubles
	assert.InDelta(t, 8, b.MinLon, 1e-6)
	assert.InDelta(t, 12, b.MaxLon, 1e-6)
}

func TestBoundingBoxAtPoleCoversAllLongitudes(t *testing.T) {
	b := BoundingBox(models.Coord{Lat: 90, Lon: 0}, 5)
	assert.True(t, b.Contains(models.Coord{Lat: 89.99, Lon: 179}))
}
