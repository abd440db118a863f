package service

import (
	"context"
	"fmt"
	"time"

	"auto_trading_bot/internal/models"
	ledger "auto_trading_bot/internal/modules/ledger/service"
	"auto_trading_bot/pkg/logger"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places kept on cash movements.
const MoneyScale = 8

const (
	msgInsufficientBalance = "Insufficient balance for purchase"
	msgNoHoldings          = "Cannot sell: no holdings to sell for %s"
)

var (
	errInsufficientBalance = errors.New("insufficient balance")
	errNoHoldings          = errors.New("no holdings")
)

// Executor applies BUY and SELL trades to a ledger. It is stateless apart from
// the clock, so one Executor serves the live ledger and every backtest ledger.
type Executor struct {
	now func() time.Time
}

func NewExecutor() *Executor {
	return &Executor{now: time.Now}
}

// NewExecutorWithClock stamps trade records with now instead of wall time.
func NewExecutorWithClock(now func() time.Time) *Executor {
	return &Executor{now: now}
}

// ExecuteBuy spends amount on assetID at price. A rejected or failed buy never
// mutates the ledger.
func (e *Executor) ExecuteBuy(ctx context.Context, l ledger.Ledger, assetID string, price float64, amount decimal.Decimal) (out models.TradeOutcome) {
	px := decimal.NewFromFloat(price)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("[EXEC] buy %s panicked: %v", assetID, r)
			out = failed(models.ActionBuy, px, fmt.Sprintf("Failed to execute buy trade: %v", r))
		}
	}()

	if price <= 0 {
		return failed(models.ActionBuy, px, "Failed to execute buy trade: price must be positive")
	}
	if !amount.IsPositive() {
		return failed(models.ActionBuy, px, "Failed to execute buy trade: amount must be positive")
	}

	// truncated so the debit never exceeds a balance passed in as amount
	amount = amount.Truncate(MoneyScale)
	qty := amount.Div(px)
	err := l.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		bal, err := tx.Balance(ctx)
		if err != nil {
			return err
		}
		if bal.LessThan(amount) {
			return errInsufficientBalance
		}
		if err := tx.Debit(ctx, amount); err != nil {
			return err
		}

		held, _, err := tx.Holding(ctx, assetID)
		if err != nil {
			return err
		}
		if err := tx.SetHolding(ctx, assetID, held.Add(qty)); err != nil {
			return err
		}

		return tx.AppendTrade(ctx, models.TradeRecord{
			Timestamp: e.now(),
			AssetID:   assetID,
			Action:    models.ActionBuy,
			Quantity:  qty,
			Price:     px,
		})
	})

	switch {
	case errors.Is(err, errInsufficientBalance), errors.Is(err, ledger.ErrInsufficientFunds):
		logger.Info("[EXEC] buy %s rejected: balance below %s", assetID, amount.StringFixed(2))
		return failed(models.ActionBuy, px, msgInsufficientBalance)
	case err != nil:
		logger.Error("[EXEC] buy %s failed: %v", assetID, err)
		return failed(models.ActionBuy, px, "Failed to execute buy trade: "+err.Error())
	}

	logger.Info("[EXEC] bought %s %s @ %s", qty.StringFixed(6), assetID, px.String())
	return models.TradeOutcome{
		Success:    true,
		Action:     models.ActionBuy,
		Quantity:   qty,
		Price:      px,
		TotalValue: amount,
		Message:    fmt.Sprintf("Successfully bought %s %s for $%s", qty.StringFixed(6), assetID, amount.StringFixed(2)),
	}
}

// ExecuteSell closes the whole position in assetID at price and books the
// realised profit against the quantity-weighted average buy price.
func (e *Executor) ExecuteSell(ctx context.Context, l ledger.Ledger, assetID string, price float64) (out models.TradeOutcome) {
	px := decimal.NewFromFloat(price)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("[EXEC] sell %s panicked: %v", assetID, r)
			out = failed(models.ActionSell, px, fmt.Sprintf("Failed to execute sell trade: %v", r))
		}
	}()

	if price <= 0 {
		return failed(models.ActionSell, px, "Failed to execute sell trade: price must be positive")
	}

	var qty, value, pnl decimal.Decimal
	err := l.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		held, ok, err := tx.Holding(ctx, assetID)
		if err != nil {
			return err
		}
		if !ok || !held.IsPositive() {
			return errNoHoldings
		}

		history, err := tx.Trades(ctx, assetID)
		if err != nil {
			return err
		}

		qty = held
		value = qty.Mul(px).Round(MoneyScale)
		pnl = px.Sub(AverageBuyPrice(history)).Mul(qty).Round(MoneyScale)

		if err := tx.Credit(ctx, value); err != nil {
			return err
		}
		if err := tx.SetHolding(ctx, assetID, decimal.Zero); err != nil {
			return err
		}
		return tx.AppendTrade(ctx, models.TradeRecord{
			Timestamp:  e.now(),
			AssetID:    assetID,
			Action:     models.ActionSell,
			Quantity:   qty,
			Price:      px,
			ProfitLoss: &pnl,
		})
	})

	switch {
	case errors.Is(err, errNoHoldings):
		return failed(models.ActionSell, px, fmt.Sprintf(msgNoHoldings, assetID))
	case err != nil:
		logger.Error("[EXEC] sell %s failed: %v", assetID, err)
		return failed(models.ActionSell, px, "Failed to execute sell trade: "+err.Error())
	}

	logger.Info("[EXEC] sold %s %s @ %s pnl=%s", qty.StringFixed(6), assetID, px.String(), pnl.StringFixed(2))
	return models.TradeOutcome{
		Success:    true,
		Action:     models.ActionSell,
		Quantity:   qty,
		Price:      px,
		TotalValue: value,
		Message: fmt.Sprintf("Successfully sold %s %s for $%s (P&L: $%s)",
			qty.StringFixed(6), assetID, value.StringFixed(2), pnl.StringFixed(2)),
	}
}

// AverageBuyPrice is the quantity-weighted mean price of the BUY records; zero without any.
func AverageBuyPrice(history []models.TradeRecord) decimal.Decimal {
	var cost, qty decimal.Decimal
	for _, r := range history {
		if r.Action != models.ActionBuy {
			continue
		}
		cost = cost.Add(r.Quantity.Mul(r.Price))
		qty = qty.Add(r.Quantity)
	}
	if qty.IsZero() {
		return decimal.Zero
	}
	return cost.Div(qty)
}

func failed(action models.TradeAction, price decimal.Decimal, msg string) models.TradeOutcome {
	return models.TradeOutcome{
		Success: false,
		Action:  action,
		Price:   price,
		Message: msg,
	}
}
