// Package eta estimates how long a walker needs to reach a walk's pickup
// point. It only annotates matcher results and never affects visibility.
package eta

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/walk-matching/internal/geo"
	"github.com/example/walk-matching/internal/models"
)

// Estimator returns the travel time in seconds between two points.
type Estimator interface {
	EstimateSeconds(ctx context.Context, from, to models.Coord) (float64, error)
}

// DefaultWalkingSpeedMps is a relaxed walking pace of about 5 km/h.
const DefaultWalkingSpeedMps = 1.4

// Straight estimates great-circle distance over a constant speed.
type Straight struct {
	SpeedMps float64
}

func (s Straight) EstimateSeconds(ctx context.Context, from, to models.Coord) (float64, error) {
	speed := s.SpeedMps
	if speed <= 0 {
		speed = DefaultWalkingSpeedMps
	}
	return geo.Haversine(from.Lat, from.Lon, to.Lat, to.Lon) / speed, nil
}

// Cache is a tiny in-memory cache for ETA lookups keyed by coords.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	v  float64
	ts time.Time
}

// NewCache creates a cache with the provided TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(a, b models.Coord) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f", a.Lat, a.Lon, b.Lat, b.Lon)
}

// Get returns cached value and true if present and not expired.
func (c *Cache) Get(a, b models.Coord) (float64, bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return 0, false
	}
	return e.v, true
}

func (c *Cache) Set(a, b models.Coord, v float64) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
}

// Cached serves repeated lookups from Cache and falls back to Fallback
// when Next fails, so a routing outage degrades to straight-line ETAs.
type Cached struct {
	Next     Estimator
	Fallback Estimator
	Cache    *Cache
}

func (c Cached) EstimateSeconds(ctx context.Context, from, to models.Coord) (float64, error) {
	if v, ok := c.Cache.Get(from, to); ok {
		return v, nil
	}
	v, err := c.Next.EstimateSeconds(ctx, from, to)
	if err != nil {
		if c.Fallback == nil {
			return 0, err
		}
		return c.Fallback.EstimateSeconds(ctx, from, to)
	}
	c.Cache.Set(from, to, v)
	return v, nil
}
