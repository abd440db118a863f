package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"auto_trading_bot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMemory_CommitOnSuccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(dec("100"))

	err := m.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Debit(ctx, dec("40")))
		require.NoError(t, tx.SetHolding(ctx, "bitcoin", dec("0.5")))
		return tx.AppendTrade(ctx, models.TradeRecord{
			Timestamp: time.Now(), AssetID: "bitcoin", Action: models.ActionBuy,
			Quantity: dec("0.5"), Price: dec("80"),
		})
	})
	require.NoError(t, err)

	acc, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("60")))
	assert.True(t, acc.Holdings["bitcoin"].Equal(dec("0.5")))

	err = m.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		recs, err := tx.Trades(ctx, "bitcoin")
		require.NoError(t, err)
		assert.Len(t, recs, 1)
		recs, err = tx.Trades(ctx, "ethereum")
		require.NoError(t, err)
		assert.Empty(t, recs)
		return nil
	})
	require.NoError(t, err)
}

func TestMemory_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(dec("100"))
	boom := errors.New("boom")

	err := m.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Debit(ctx, dec("100")))
		require.NoError(t, tx.SetHolding(ctx, "bitcoin", dec("1")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	acc, _ := m.Snapshot(ctx)
	assert.True(t, acc.Balance.Equal(dec("100")))
	assert.Empty(t, acc.Holdings)
}

func TestMemory_RollbackOnPanic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(dec("100"))

	assert.Panics(t, func() {
		_ = m.Atomic(ctx, func(ctx context.Context, tx Tx) error {
			_ = tx.Debit(ctx, dec("50"))
			panic("unexpected")
		})
	})

	acc, _ := m.Snapshot(ctx)
	assert.True(t, acc.Balance.Equal(dec("100")))

	// the mutex must have been released
	require.NoError(t, m.Atomic(ctx, func(ctx context.Context, tx Tx) error { return nil }))
}

func TestMemory_DebitNeverNegative(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(dec("5"))

	err := m.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Debit(ctx, dec("5.01"))
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	err = m.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Credit(ctx, dec("-1"))
	})
	require.ErrorIs(t, err, ErrNegativeAmount)
}

func TestMemory_ZeroHoldingPruned(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(dec("10"))

	require.NoError(t, m.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.SetHolding(ctx, "solana", dec("2"))
	}))
	require.NoError(t, m.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.SetHolding(ctx, "solana", decimal.Zero)
	}))

	require.NoError(t, m.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		_, ok, err := tx.Holding(ctx, "solana")
		assert.False(t, ok)
		return err
	}))
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(dec("10"))
	require.NoError(t, m.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.SetHolding(ctx, "solana", dec("2"))
	}))

	require.NoError(t, m.Reset(ctx, dec("500")))
	acc, _ := m.Snapshot(ctx)
	assert.True(t, acc.Balance.Equal(dec("500")))
	assert.Empty(t, acc.Holdings)
	assert.ErrorIs(t, m.Reset(ctx, dec("-1")), ErrNegativeAmount)
}

func TestMemory_SnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(dec("10"))
	require.NoError(t, m.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.SetHolding(ctx, "solana", dec("2"))
	}))

	acc, _ := m.Snapshot(ctx)
	acc.Holdings["solana"] = dec("99")

	again, _ := m.Snapshot(ctx)
	assert.True(t, again.Holdings["solana"].Equal(dec("2")))
}

func appendTrade(t *testing.T, m *Memory, asset string, price string) {
	t.Helper()
	require.NoError(t, m.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.AppendTrade(ctx, models.TradeRecord{
			AssetID: asset, Action: models.ActionBuy, Quantity: dec("1"), Price: dec(price),
		})
	}))
}

func TestMemory_TradesSeeCommittedAndStagedRecords(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(dec("10"))
	appendTrade(t, m, "bitcoin", "1")

	boom := errors.New("boom")
	err := m.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.AppendTrade(ctx, models.TradeRecord{
			AssetID: "bitcoin", Action: models.ActionBuy, Quantity: dec("1"), Price: dec("2"),
		}))
		recs, err := tx.Trades(ctx, "bitcoin")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.True(t, recs[0].Price.Equal(dec("1")))
		assert.True(t, recs[1].Price.Equal(dec("2")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	hist, err := m.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.True(t, hist[0].Price.Equal(dec("1")))
}

func TestMemory_History(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(dec("10"))

	hist, err := m.History(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, hist)

	appendTrade(t, m, "bitcoin", "1")
	appendTrade(t, m, "ethereum", "2")
	appendTrade(t, m, "bitcoin", "3")

	hist, err = m.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.True(t, hist[0].Price.Equal(dec("3")))
	assert.Equal(t, "ethereum", hist[1].AssetID)

	hist, err = m.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 3)

	require.NoError(t, m.Reset(ctx, dec("10")))
	hist, err = m.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, hist)
}
