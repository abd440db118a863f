package service

import (
	"context"

	"auto_trading_bot/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNegativeAmount    = errors.New("amount must not be negative")
)

// Tx is the set of ledger operations available inside Ledger.Atomic.
type Tx interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
	Credit(ctx context.Context, amount decimal.Decimal) error
	// Debit fails with ErrInsufficientFunds rather than going negative.
	Debit(ctx context.Context, amount decimal.Decimal) error
	// Holding reports ok=false when there is no row for assetID.
	Holding(ctx context.Context, assetID string) (qty decimal.Decimal, ok bool, err error)
	// SetHolding with a zero quantity removes the entry.
	SetHolding(ctx context.Context, assetID string, qty decimal.Decimal) error
	AppendTrade(ctx context.Context, rec models.TradeRecord) error
	Trades(ctx context.Context, assetID string) ([]models.TradeRecord, error)
}

// Ledger is a cash balance plus holdings. Atomic applies every mutation made by
// fn or none of them: an error or panic from fn leaves the ledger unchanged.
type Ledger interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Snapshot(ctx context.Context) (models.Account, error)
	// History returns up to limit trades across all assets, newest first.
	History(ctx context.Context, limit int) ([]models.TradeRecord, error)
	Reset(ctx context.Context, balance decimal.Decimal) error
}
