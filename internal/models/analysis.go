package models

// CoinAnalysis is the per-asset output of one orchestration run.
type CoinAnalysis struct {
	AssetID      string        `json:"asset_id"`
	CurrentPrice float64       `json:"current_price"`
	ShortMA      float64       `json:"short_ma"`
	LongMA       float64       `json:"long_ma"`
	Signal       Signal        `json:"signal"`
	StatusText   string        `json:"status_text"`
	Outcome      *TradeOutcome `json:"trade_outcome,omitempty"`
}

// AnalysisResult aggregates a run over several assets.
type AnalysisResult struct {
	Analyses    []CoinAnalysis `json:"analyses"`
	SummaryText string         `json:"summary"`
	Success     bool           `json:"success"`
}
