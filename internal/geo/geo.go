// Package geo filters offers by great-circle distance from a customer.
package geo

import (
	"math"
	"sort"

	"github.com/fairyhunter13/nearby-deals/internal/model"
)

// EarthRadiusKm is the IUGG mean Earth radius.
const EarthRadiusKm = 6371.0088

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// BranchPoint returns the location of the offer's branch.
func BranchPoint(o *model.Offer) Point {
	return Point{Latitude: o.Branch.Latitude, Longitude: o.Branch.Longitude}
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Point) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := lat2 - lat1
	dLng := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// FilterByLocation keeps offers whose branch lies within maxKm of origin, nearest
// first, and returns at most limit of them with DistanceKm filled in.
// maxKm <= 0 disables the radius check; limit <= 0 disables the cap.
func FilterByLocation(offers []model.Offer, origin Point, maxKm float64, limit int) []model.OfferResponse {
	type ranked struct {
		offer    *model.Offer
		distance float64
	}

	candidates := make([]ranked, 0, len(offers))
	for i := range offers {
		d := Haversine(origin, BranchPoint(&offers[i]))
		if maxKm > 0 && d > maxKm {
			continue
		}
		candidates = append(candidates, ranked{offer: &offers[i], distance: d})
	}

	// Ties go to the offer that ends soonest, then by id for a stable order.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		if !a.offer.EndTime.Equal(b.offer.EndTime) {
			return a.offer.EndTime.Before(b.offer.EndTime)
		}
		return a.offer.ID < b.offer.ID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]model.OfferResponse, 0, len(candidates))
	for _, c := range candidates {
		resp := model.NewOfferResponse(c.offer)
		distance := math.Round(c.distance*100) / 100
		resp.DistanceKm = &distance
		result = append(result, resp)
	}
	return result
}
