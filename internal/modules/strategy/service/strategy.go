package service

import "auto_trading_bot/internal/models"

// Engine classifies a price series. Implementations must be pure.
type Engine interface {
	Analyze(prices []float64) Analysis
	Windows() (short, long int)
	Name() string
}

// Analysis is the engine's reading of the latest point of a series.
type Analysis struct {
	ShortMA float64
	LongMA  float64
	Signal  models.Signal
}
