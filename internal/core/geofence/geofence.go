// Package geofence decides whether a device position falls inside a
// campaign's locations. Distances and radii are in kilometers.
package geofence

import (
	"math"

	"signage-ads/internal/core/domain"
)

// EarthRadiusKm is the mean earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance between two points in km.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Contains reports whether p lies within loc's radius, boundary included.
func Contains(loc domain.Location, p domain.Position) bool {
	return Distance(p.Latitude, p.Longitude, loc.Latitude, loc.Longitude) <= loc.Radius
}

// Matches reports whether any of the campaign's locations contains p.
func Matches(c domain.Campaign, p domain.Position) bool {
	for _, loc := range c.Locations {
		if Contains(loc, p) {
			return true
		}
	}
	return false
}

// FilterByLocation keeps the candidates with at least one location
// containing p. Input order is preserved.
func FilterByLocation(cands []domain.Candidate, p domain.Position) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(cands))
	for _, cand := range cands {
		if Matches(cand.Campaign, p) {
			out = append(out, cand)
		}
	}
	return out
}
