package service

import (
	"context"
	"sync"

	"auto_trading_bot/internal/models"

	"github.com/shopspring/decimal"
)

type memState struct {
	balance  decimal.Decimal
	holdings map[string]decimal.Decimal
	trades   []models.TradeRecord
}

// staged is what one Atomic call may change. Trade history is shared read-only
// with the committed state; only the records appended by fn are held here.
type staged struct {
	balance  decimal.Decimal
	holdings map[string]decimal.Decimal
	history  []models.TradeRecord
	appended []models.TradeRecord
}

func (s *memState) stage() *staged {
	st := &staged{
		balance:  s.balance,
		holdings: make(map[string]decimal.Decimal, len(s.holdings)),
		history:  s.trades,
	}
	for k, v := range s.holdings {
		st.holdings[k] = v
	}
	return st
}

func (s *memState) commit(st *staged) {
	s.balance = st.balance
	s.holdings = st.holdings
	s.trades = append(s.trades, st.appended...)
}

// Memory is an in-process ledger. Atomic stages changes and applies them only
// when fn succeeds.
type Memory struct {
	mu    sync.Mutex
	state memState
}

func NewMemory(balance decimal.Decimal) *Memory {
	return &Memory{state: memState{
		balance:  balance,
		holdings: make(map[string]decimal.Decimal),
	}}
}

func (m *Memory) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state.stage()
	if err := fn(ctx, &memTx{st: st}); err != nil {
		return err
	}
	m.state.commit(st)
	return nil
}

// History returns up to limit trades across all assets, newest first. limit <= 0 means all.
func (m *Memory) History(_ context.Context, limit int) ([]models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.state.trades)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.TradeRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.state.trades[i])
	}
	return out, nil
}

func (m *Memory) Snapshot(_ context.Context) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := models.Account{
		Balance:  m.state.balance,
		Holdings: make(map[string]decimal.Decimal, len(m.state.holdings)),
	}
	for k, v := range m.state.holdings {
		acc.Holdings[k] = v
	}
	return acc, nil
}

func (m *Memory) Reset(_ context.Context, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ErrNegativeAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = memState{balance: balance, holdings: make(map[string]decimal.Decimal)}
	return nil
}

type memTx struct {
	st *staged
}

func (t *memTx) Balance(context.Context) (decimal.Decimal, error) {
	return t.st.balance, nil
}

func (t *memTx) Credit(_ context.Context, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	t.st.balance = t.st.balance.Add(amount)
	return nil
}

func (t *memTx) Debit(_ context.Context, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if t.st.balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	t.st.balance = t.st.balance.Sub(amount)
	return nil
}

func (t *memTx) Holding(_ context.Context, assetID string) (decimal.Decimal, bool, error) {
	q, ok := t.st.holdings[assetID]
	return q, ok, nil
}

func (t *memTx) SetHolding(_ context.Context, assetID string, qty decimal.Decimal) error {
	if qty.IsNegative() {
		return ErrNegativeAmount
	}
	if qty.IsZero() {
		delete(t.st.holdings, assetID)
		return nil
	}
	t.st.holdings[assetID] = qty
	return nil
}

func (t *memTx) AppendTrade(_ context.Context, rec models.TradeRecord) error {
	t.st.appended = append(t.st.appended, rec)
	return nil
}

func (t *memTx) Trades(_ context.Context, assetID string) ([]models.TradeRecord, error) {
	var out []models.TradeRecord
	for _, recs := range [][]models.TradeRecord{t.st.history, t.st.appended} {
		for _, r := range recs {
			if r.AssetID == assetID {
				out = append(out, r)
			}
		}
	}
	return out, nil
}
