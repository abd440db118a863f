package models

import "time"

type PricePoint struct {
	Time  time.Time
	Price float64
}

// Closes extracts prices in series order.
func Closes(points []PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}
