package geo

import (
	"math"

	"github.com/example/walk-matching/internal/models"
)

// KmPerDegreeLat is the length of one degree of latitude used by the planar
// approximation below.
const KmPerDegreeLat = 111.0

// Box is an axis-aligned latitude/longitude rectangle.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBox returns the box of +-radius/111 degrees latitude and
// +-radius/(111*cos(lat)) degrees longitude around center.
//
// This is a planar approximation, not a geodesic distance: the box corners
// are ~41% further than radiusKm from the center, and away from the equator
// the box overestimates east-west reach. It is good enough at city scale.
func BoundingBox(center models.Coord, radiusKm float64) Box {
	latDelta := radiusKm / KmPerDegreeLat
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	lonDelta := 180.0
	if cosLat > 1e-9 {
		lonDelta = math.Min(radiusKm/(KmPerDegreeLat*cosLat), 180)
	}
	return Box{
		MinLat: center.Lat - latDelta,
		MaxLat: center.Lat + latDelta,
		MinLon: center.Lon - lonDelta,
		MaxLon: center.Lon + lonDelta,
	}
}

// Contains is inclusive on all edges. Boxes are not wrapped across the
// antimeridian.
func (b Box) Contains(c models.Coord) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// DistanceKm is Haversine between two coordinates, in kilometers.
func DistanceKm(a, b models.Coord) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon) / 1000
}
