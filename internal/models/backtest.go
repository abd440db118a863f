package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BacktestResult struct {
	Success        bool            `json:"success"`
	AssetID        string          `json:"asset_id"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	FinalBalance   decimal.Decimal `json:"final_balance"`
	TotalReturn    decimal.Decimal `json:"total_return"`
	TotalReturnPct float64         `json:"total_return_pct"`
	TotalTrades    int             `json:"total_trades"`
	Trades         []TradeOutcome  `json:"trades"`
	SummaryText    string          `json:"summary"`
}
