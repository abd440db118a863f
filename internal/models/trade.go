package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeOutcome is the result of a single buy/sell attempt, real or simulated.
type TradeOutcome struct {
	Success    bool            `json:"success"`
	Action     TradeAction     `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TotalValue decimal.Decimal `json:"total_value"`
	Message    string          `json:"message"`
}

// TradeRecord is a ledger history row.
type TradeRecord struct {
	Timestamp time.Time
	AssetID   string
	Action    TradeAction
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	// ProfitLoss is nil for BUY records.
	ProfitLoss *decimal.Decimal
}

// Account is a read-only view of a ledger.
type Account struct {
	Balance  decimal.Decimal
	Holdings map[string]decimal.Decimal
}
