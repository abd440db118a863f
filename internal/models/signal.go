package models

// Signal is the outcome of the moving-average crossover check.
type Signal string

const (
	SignalBuy              Signal = "BUY"
	SignalSell             Signal = "SELL"
	SignalHold             Signal = "HOLD"
	SignalInsufficientData Signal = "INSUFFICIENT_DATA"
	// SignalBacktest marks analyses produced by historical training.
	SignalBacktest Signal = "BACKTEST"
)

// Actionable reports whether the signal asks for a trade.
func (s Signal) Actionable() bool {
	return s == SignalBuy || s == SignalSell
}

// Mode selects whether signals touch the live ledger.
type Mode string

const (
	ModeLive     Mode = "LIVE"
	ModeTraining Mode = "TRAINING"
)

func (m Mode) Valid() bool {
	return m == ModeLive || m == ModeTraining
}

type TradeAction string

const (
	ActionBuy             TradeAction = "BUY"
	ActionSell            TradeAction = "SELL"
	ActionBacktestSummary TradeAction = "BACKTEST_SUMMARY"
)
