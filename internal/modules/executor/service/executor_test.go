package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"auto_trading_bot/internal/models"
	ledger "auto_trading_bot/internal/modules/ledger/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixedClock() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

func snapshot(t *testing.T, l ledger.Ledger) models.Account {
	t.Helper()
	acc, err := l.Snapshot(context.Background())
	require.NoError(t, err)
	return acc
}

func TestExecuteBuy_InsufficientBalance(t *testing.T) {
	l := ledger.NewMemory(dec("5"))
	e := NewExecutorWithClock(fixedClock)

	out := e.ExecuteBuy(context.Background(), l, "bitcoin", 40000, dec("10"))

	assert.False(t, out.Success)
	assert.Equal(t, models.ActionBuy, out.Action)
	assert.True(t, out.Quantity.IsZero())
	assert.Contains(t, out.Message, "Insufficient balance")

	acc := snapshot(t, l)
	assert.True(t, acc.Balance.Equal(dec("5")))
	assert.Empty(t, acc.Holdings)
}

func TestExecuteBuy_Success(t *testing.T) {
	l := ledger.NewMemory(dec("100"))
	e := NewExecutorWithClock(fixedClock)

	out := e.ExecuteBuy(context.Background(), l, "bitcoin", 40000, dec("10"))

	require.True(t, out.Success, out.Message)
	assert.True(t, out.Quantity.Equal(dec("0.00025")))
	assert.True(t, out.TotalValue.Equal(dec("10")))
	assert.Contains(t, out.Message, "Successfully bought")

	acc := snapshot(t, l)
	assert.True(t, acc.Balance.Equal(dec("90")))
	assert.True(t, acc.Holdings["bitcoin"].Equal(dec("0.00025")))
}

func TestBuyThenSell_SamePrice_RestoresBalance(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory(dec("100"))
	e := NewExecutorWithClock(fixedClock)

	require.True(t, e.ExecuteBuy(ctx, l, "ethereum", 2000, dec("10")).Success)
	out := e.ExecuteSell(ctx, l, "ethereum", 2000)

	require.True(t, out.Success, out.Message)
	assert.Equal(t, models.ActionSell, out.Action)
	assert.True(t, out.TotalValue.Equal(dec("10")))
	assert.Contains(t, out.Message, "P&L: $0.00")

	acc := snapshot(t, l)
	assert.True(t, acc.Balance.Equal(dec("100")))
	assert.Empty(t, acc.Holdings)

	require.NoError(t, l.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		recs, err := tx.Trades(ctx, "ethereum")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Nil(t, recs[0].ProfitLoss)
		require.NotNil(t, recs[1].ProfitLoss)
		assert.True(t, recs[1].ProfitLoss.IsZero())
		assert.Equal(t, fixedClock(), recs[1].Timestamp)
		return nil
	}))
}

func TestBuyThenSell_NonTerminatingQuantity_RestoresBalance(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory(dec("1000"))
	e := NewExecutorWithClock(fixedClock)

	// 10 / 3 does not terminate, the sale value must still come back as exactly 10
	buy := e.ExecuteBuy(ctx, l, "solana", 3, dec("10"))
	require.True(t, buy.Success, buy.Message)
	assert.True(t, snapshot(t, l).Balance.Equal(dec("990")))

	out := e.ExecuteSell(ctx, l, "solana", 3)
	require.True(t, out.Success, out.Message)
	assert.True(t, out.TotalValue.Equal(dec("10")), out.TotalValue.String())
	assert.Contains(t, out.Message, "P&L: $0.00")

	acc := snapshot(t, l)
	assert.True(t, acc.Balance.Equal(dec("1000")), acc.Balance.String())
	assert.Empty(t, acc.Holdings)
}

func TestExecuteBuy_TruncatesAmountToMoneyScale(t *testing.T) {
	l := ledger.NewMemory(dec("100"))
	e := NewExecutor()

	out := e.ExecuteBuy(context.Background(), l, "bitcoin", 7, dec("10.123456789"))
	require.True(t, out.Success, out.Message)
	assert.True(t, out.TotalValue.Equal(dec("10.12345678")))
	assert.True(t, snapshot(t, l).Balance.Equal(dec("89.87654322")))
}

func TestExecuteSell_NoHoldings(t *testing.T) {
	l := ledger.NewMemory(dec("100"))
	e := NewExecutor()

	out := e.ExecuteSell(context.Background(), l, "solana", 150)

	assert.False(t, out.Success)
	assert.True(t, out.Quantity.IsZero())
	assert.Contains(t, out.Message, "no holdings to sell")
	assert.True(t, snapshot(t, l).Balance.Equal(dec("100")))
}

func TestExecuteSell_WeightedAverageProfit(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory(dec("100"))
	e := NewExecutor()

	// 10 @ 100 -> 0.1, 10 @ 50 -> 0.2; avg = 20 / 0.3
	require.True(t, e.ExecuteBuy(ctx, l, "bitcoin", 100, dec("10")).Success)
	require.True(t, e.ExecuteBuy(ctx, l, "bitcoin", 50, dec("10")).Success)

	out := e.ExecuteSell(ctx, l, "bitcoin", 80)
	require.True(t, out.Success)
	assert.True(t, out.Quantity.Equal(dec("0.3")))
	assert.True(t, out.TotalValue.Equal(dec("24")))
	// (80 - 66.67) * 0.3 = 4
	assert.Contains(t, out.Message, "P&L: $4.00")
	assert.True(t, snapshot(t, l).Balance.Equal(dec("104")))
}

func TestAverageBuyPrice(t *testing.T) {
	assert.True(t, AverageBuyPrice(nil).IsZero())

	pl := dec("1")
	history := []models.TradeRecord{
		{Action: models.ActionBuy, Quantity: dec("1"), Price: dec("10")},
		{Action: models.ActionSell, Quantity: dec("1"), Price: dec("99"), ProfitLoss: &pl},
		{Action: models.ActionBuy, Quantity: dec("3"), Price: dec("20")},
	}
	assert.True(t, AverageBuyPrice(history).Equal(dec("17.5")))
}

func TestExecuteBuy_InvalidInput(t *testing.T) {
	l := ledger.NewMemory(dec("100"))
	e := NewExecutor()

	assert.False(t, e.ExecuteBuy(context.Background(), l, "bitcoin", 0, dec("10")).Success)
	assert.False(t, e.ExecuteBuy(context.Background(), l, "bitcoin", 10, decimal.Zero).Success)
	assert.False(t, e.ExecuteSell(context.Background(), l, "bitcoin", -1).Success)
	assert.True(t, snapshot(t, l).Balance.Equal(dec("100")))
}

// flakyLedger wraps a ledger and breaks one Tx operation.
type flakyLedger struct {
	ledger.Ledger
	failAppend bool
	panicSet   bool
}

type flakyTx struct {
	ledger.Tx
	l *flakyLedger
}

func (f *flakyLedger) Atomic(ctx context.Context, fn func(context.Context, ledger.Tx) error) error {
	return f.Ledger.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return fn(ctx, &flakyTx{Tx: tx, l: f})
	})
}

func (t *flakyTx) AppendTrade(ctx context.Context, rec models.TradeRecord) error {
	if t.l.failAppend {
		return errors.New("disk full")
	}
	return t.Tx.AppendTrade(ctx, rec)
}

func (t *flakyTx) SetHolding(ctx context.Context, assetID string, qty decimal.Decimal) error {
	if t.l.panicSet {
		panic("driver crashed")
	}
	return t.Tx.SetHolding(ctx, assetID, qty)
}

func TestExecute_LedgerFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory(dec("100"))
	e := NewExecutor()
	require.True(t, e.ExecuteBuy(ctx, mem, "bitcoin", 100, dec("10")).Success)

	flaky := &flakyLedger{Ledger: mem, failAppend: true}

	buy := e.ExecuteBuy(ctx, flaky, "bitcoin", 100, dec("10"))
	assert.False(t, buy.Success)
	assert.Contains(t, buy.Message, "disk full")

	sell := e.ExecuteSell(ctx, flaky, "bitcoin", 120)
	assert.False(t, sell.Success)

	acc := snapshot(t, mem)
	assert.True(t, acc.Balance.Equal(dec("90")))
	assert.True(t, acc.Holdings["bitcoin"].Equal(dec("0.1")))
}

func TestExecute_PanicIsReportedAsFailure(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory(dec("100"))
	e := NewExecutor()

	out := e.ExecuteBuy(ctx, &flakyLedger{Ledger: mem, panicSet: true}, "bitcoin", 100, dec("10"))

	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "driver crashed")
	assert.True(t, snapshot(t, mem).Balance.Equal(dec("100")))
}
