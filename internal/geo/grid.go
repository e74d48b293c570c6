// Package geo generates the global sweep grid and classifies cells as land
// or open ocean.
package geo

import (
	"math"

	"storescout/internal/model"
)

const earthRadiusMeters = 6371000.0

// GenerateGrid partitions latitude [-90,90) and longitude [-180,180) into
// cells of the given step sizes, one cell per step pair. Northeast corners
// are clamped to the range boundary. Cells come back in left-to-right,
// top-to-bottom generation order; the sweep consumes them exactly in this
// order.
func GenerateGrid(latStep, lngStep float64) []model.Cell {
	if latStep <= 0 || lngStep <= 0 {
		return nil
	}

	var cells []model.Cell
	for lat := -90.0; lat < 90.0; lat += latStep {
		neLat := math.Min(lat+latStep, 90)
		for lng := -180.0; lng < 180.0; lng += lngStep {
			neLng := math.Min(lng+lngStep, 180)

			centerLat := (lat + neLat) / 2
			centerLng := (lng + neLng) / 2

			// radius covers the whole cell: half the great-circle
			// diagonal
			diag := HaversineMeters(lat, lng, neLat, neLng)
			radius := diag / 2

			cells = append(cells, model.Cell{
				SWLat:        lat,
				SWLng:        lng,
				NELat:        neLat,
				NELng:        neLng,
				CenterLat:    centerLat,
				CenterLng:    centerLng,
				RadiusMeters: radius,
				RadiusKm:     radius / 1000,
			})
		}
	}
	return cells
}

// HaversineMeters is the great-circle distance between two points.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLng := (lng2 - lng1) * math.Pi / 180.0
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}
