package service

import (
	"fmt"

	"auto_trading_bot/internal/models"
)

const (
	DefaultShortWindow = 10
	DefaultLongWindow  = 50
)

// CrossoverConfig: окна скользящих средних.
type CrossoverConfig struct {
	ShortWindow int
	LongWindow  int
}

// Crossover compares a short and a long simple moving average.
type Crossover struct {
	cfg CrossoverConfig
}

func NewCrossover(cfg CrossoverConfig) *Crossover {
	if cfg.ShortWindow <= 0 {
		cfg.ShortWindow = DefaultShortWindow
	}
	if cfg.LongWindow <= 0 {
		cfg.LongWindow = DefaultLongWindow
	}
	return &Crossover{cfg: cfg}
}

func (c *Crossover) Name() string {
	return fmt.Sprintf("sma_crossover(%d/%d)", c.cfg.ShortWindow, c.cfg.LongWindow)
}

func (c *Crossover) Windows() (short, long int) {
	return c.cfg.ShortWindow, c.cfg.LongWindow
}

func (c *Crossover) Analyze(prices []float64) Analysis {
	return Analyze(prices, c.cfg.ShortWindow, c.cfg.LongWindow)
}

// Analyze returns INSUFFICIENT_DATA with zero averages when the series is shorter
// than longWindow. Equal averages are always HOLD.
func Analyze(prices []float64, shortWindow, longWindow int) Analysis {
	if len(prices) < longWindow {
		return Analysis{Signal: models.SignalInsufficientData}
	}

	a := Analysis{
		ShortMA: SMA(prices, shortWindow),
		LongMA:  SMA(prices, longWindow),
	}
	switch {
	case a.ShortMA > a.LongMA:
		a.Signal = models.SignalBuy
	case a.ShortMA < a.LongMA:
		a.Signal = models.SignalSell
	default:
		a.Signal = models.SignalHold
	}
	return a
}

// SMA is the mean of the last window prices, 0 when that slice would be empty.
func SMA(prices []float64, window int) float64 {
	start := len(prices) - window
	if window <= 0 || start < 0 {
		return 0
	}
	sum := 0.0
	for _, p := range prices[start:] {
		sum += p
	}
	return sum / float64(window)
}
