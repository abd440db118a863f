package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"auto_trading_bot/internal/models"
	botstate "auto_trading_bot/internal/modules/botstate/service"
	executor "auto_trading_bot/internal/modules/executor/service"
	ledger "auto_trading_bot/internal/modules/ledger/service"
	pricefeed "auto_trading_bot/internal/modules/pricefeed/service"
	strategy "auto_trading_bot/internal/modules/strategy/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	series map[string][]float64
	errs   map[string]error
	calls  atomic.Int32
	// onFetch runs before every fetch
	onFetch func(assetID string)
}

func (f *stubFeed) Name() string { return "stub" }

func (f *stubFeed) FetchHistory(_ context.Context, assetID string, days int) ([]models.PricePoint, error) {
	f.calls.Add(1)
	if f.onFetch != nil {
		f.onFetch(assetID)
	}
	if err := f.errs[assetID]; err != nil {
		return nil, err
	}
	prices := f.series[assetID]
	if len(prices) > days {
		prices = prices[len(prices)-days:]
	}
	day0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = models.PricePoint{Time: day0.AddDate(0, 0, i), Price: p}
	}
	return out, nil
}

func (f *stubFeed) FetchCurrent(context.Context, []string) (map[string]float64, error) {
	return nil, pricefeed.ErrNoData
}

type stubBacktester struct {
	results map[string]models.BacktestResult
	balance decimal.Decimal
}

func (b *stubBacktester) Run(_ context.Context, assetID string, days int, initialBalance decimal.Decimal) models.BacktestResult {
	b.balance = initialBalance
	return b.results[assetID]
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

type fixture struct {
	feed  *stubFeed
	book  *ledger.Memory
	state *botstate.State
	bt    *stubBacktester
	orch  *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		feed: &stubFeed{series: map[string][]float64{
			"bitcoin":  ramp(50, 100, 1),  // BUY @ 149
			"ethereum": ramp(50, 200, -1), // SELL @ 151
			"tether":   ramp(50, 1, 0),    // HOLD
			"newcoin":  ramp(20, 5, 1),    // too short
		}, errs: map[string]error{}},
		book:  ledger.NewMemory(decimal.NewFromInt(1000)),
		state: botstate.NewState(),
		bt:    &stubBacktester{results: map[string]models.BacktestResult{}},
	}
	f.orch = NewOrchestrator(
		f.feed,
		strategy.NewCrossover(strategy.CrossoverConfig{ShortWindow: 10, LongWindow: 50}),
		executor.NewExecutor(),
		f.book,
		f.state,
		f.bt,
		Config{TradeAmount: decimal.NewFromInt(10), HistoricalBalance: decimal.NewFromInt(1000)},
	)
	return f
}

func (f *fixture) account(t *testing.T) models.Account {
	t.Helper()
	acc, err := f.book.Snapshot(context.Background())
	require.NoError(t, err)
	return acc
}

func TestRun_SuspendedDoesNotFetch(t *testing.T) {
	f := newFixture()
	f.state.Hold("maintenance")

	res := f.orch.Run(context.Background(), []string{"bitcoin", "ethereum"}, models.ModeLive)

	assert.False(t, res.Success)
	assert.Empty(t, res.Analyses)
	assert.Contains(t, res.SummaryText, "ON_HOLD")
	assert.Contains(t, res.SummaryText, "suspended")
	assert.Zero(t, f.feed.calls.Load())

	f.state.Stop("")
	res = f.orch.Run(context.Background(), []string{"bitcoin"}, models.ModeTraining)
	assert.Equal(t, "Bot is currently STOPPED. Trading suspended.", res.SummaryText)
}

func TestRun_LiveBuyMutatesLedger(t *testing.T) {
	f := newFixture()

	res := f.orch.Run(context.Background(), []string{"bitcoin"}, models.ModeLive)

	require.True(t, res.Success)
	require.Len(t, res.Analyses, 1)
	a := res.Analyses[0]
	assert.Equal(t, models.SignalBuy, a.Signal)
	assert.Equal(t, 149.0, a.CurrentPrice)
	assert.InDelta(t, 144.5, a.ShortMA, 1e-9)
	assert.InDelta(t, 124.5, a.LongMA, 1e-9)
	require.NotNil(t, a.Outcome)
	assert.True(t, a.Outcome.Success, a.Outcome.Message)
	assert.Equal(t, "[LIVE MODE] Analyzed 1 coins, generated 1 trading signals, 1 successful trades", res.SummaryText)

	acc := f.account(t)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(990)))
	assert.True(t, acc.Holdings["bitcoin"].IsPositive())
}

func TestRun_TrainingLeavesLedgerUntouched(t *testing.T) {
	f := newFixture()

	res := f.orch.Run(context.Background(), []string{"bitcoin", "ethereum"}, models.ModeTraining)

	require.True(t, res.Success)
	require.Len(t, res.Analyses, 2)

	buy := res.Analyses[0].Outcome
	require.NotNil(t, buy)
	assert.True(t, buy.Success)
	assert.Equal(t, models.ActionBuy, buy.Action)
	assert.Equal(t, "Simulated buy trade (training mode)", buy.Message)
	assert.True(t, buy.TotalValue.Equal(decimal.NewFromInt(10)))
	assert.True(t, buy.Quantity.Equal(decimal.NewFromInt(10).Div(decimal.NewFromInt(149))))

	sell := res.Analyses[1].Outcome
	require.NotNil(t, sell)
	assert.Equal(t, models.ActionSell, sell.Action)
	assert.Contains(t, sell.Message, "Simulated sell")

	assert.Equal(t, "[TRAINING MODE] Analyzed 2 coins, generated 2 trading signals, 2 successful trades", res.SummaryText)

	acc := f.account(t)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(1000)))
	assert.Empty(t, acc.Holdings)
}

func TestRun_LiveSellWithoutHoldingFails(t *testing.T) {
	f := newFixture()

	res := f.orch.Run(context.Background(), []string{"ethereum"}, models.ModeLive)

	require.NotNil(t, res.Analyses[0].Outcome)
	assert.False(t, res.Analyses[0].Outcome.Success)
	assert.Equal(t, "[LIVE MODE] Analyzed 1 coins, generated 1 trading signals, 0 successful trades", res.SummaryText)
}

func TestRun_HoldAndInsufficientHaveNoOutcome(t *testing.T) {
	f := newFixture()

	res := f.orch.Run(context.Background(), []string{"tether", "newcoin"}, models.ModeLive)

	require.Len(t, res.Analyses, 2)
	assert.Equal(t, models.SignalHold, res.Analyses[0].Signal)
	assert.Nil(t, res.Analyses[0].Outcome)
	assert.Equal(t, models.SignalInsufficientData, res.Analyses[1].Signal)
	assert.Nil(t, res.Analyses[1].Outcome)
	assert.Zero(t, res.Analyses[1].ShortMA)
	assert.Zero(t, res.Analyses[1].LongMA)
	assert.Contains(t, res.Analyses[1].StatusText, "got 20")
	assert.Contains(t, res.SummaryText, "generated 0 trading signals")
}

func TestRun_FetchFailureIsIsolated(t *testing.T) {
	f := newFixture()
	f.feed.errs["dogecoin"] = pricefeed.ErrRateLimited

	res := f.orch.Run(context.Background(), []string{"dogecoin", "bitcoin"}, models.ModeLive)

	require.True(t, res.Success)
	require.Len(t, res.Analyses, 2)
	assert.Equal(t, models.SignalInsufficientData, res.Analyses[0].Signal)
	assert.Nil(t, res.Analyses[0].Outcome)
	assert.Contains(t, res.Analyses[0].StatusText, "rate limit")
	assert.Equal(t, models.SignalBuy, res.Analyses[1].Signal)
	assert.True(t, res.Analyses[1].Outcome.Success)
}

func TestRun_PanicIsIsolated(t *testing.T) {
	f := newFixture()
	f.feed.onFetch = func(assetID string) {
		if assetID == "cursed" {
			panic("decoder exploded")
		}
	}

	res := f.orch.Run(context.Background(), []string{"cursed", "bitcoin"}, models.ModeLive)

	require.Len(t, res.Analyses, 2)
	assert.Contains(t, res.Analyses[0].StatusText, "decoder exploded")
	assert.True(t, res.Analyses[1].Outcome.Success)
}

func TestRun_StateChangeMidRunSuppressesLiveTrade(t *testing.T) {
	f := newFixture()
	f.feed.onFetch = func(assetID string) {
		if assetID == "bitcoin" {
			f.state.Stop("operator")
		}
	}

	res := f.orch.Run(context.Background(), []string{"bitcoin"}, models.ModeLive)

	require.NotNil(t, res.Analyses[0].Outcome)
	assert.False(t, res.Analyses[0].Outcome.Success)
	assert.Equal(t, "Trade signal generated but bot is STOPPED", res.Analyses[0].Outcome.Message)
	assert.True(t, f.account(t).Balance.Equal(decimal.NewFromInt(1000)))
}

func TestRunHistoricalTraining_WrapsBacktests(t *testing.T) {
	f := newFixture()
	f.bt.results["bitcoin"] = models.BacktestResult{
		Success:        true,
		AssetID:        "bitcoin",
		TotalReturn:    decimal.RequireFromString("125"),
		TotalReturnPct: 12.5,
		TotalTrades:    4,
		SummaryText:    "Backtest completed: 12.50% return, 4 trades executed",
	}
	f.bt.results["newcoin"] = models.BacktestResult{
		AssetID:     "newcoin",
		SummaryText: "Insufficient historical data for backtesting",
	}

	res := f.orch.RunHistoricalTraining(context.Background(), []string{"bitcoin", "newcoin"}, 365)

	require.True(t, res.Success)
	assert.Equal(t, "[HISTORICAL TRAINING] Analyzed 2 coins over 365 days", res.SummaryText)
	assert.True(t, f.bt.balance.Equal(decimal.NewFromInt(1000)))

	require.Len(t, res.Analyses, 2)
	a := res.Analyses[0]
	assert.Equal(t, models.SignalBacktest, a.Signal)
	require.NotNil(t, a.Outcome)
	assert.True(t, a.Outcome.Success)
	assert.Equal(t, models.ActionBacktestSummary, a.Outcome.Action)
	assert.True(t, a.Outcome.Quantity.Equal(decimal.NewFromInt(4)))
	assert.True(t, a.Outcome.TotalValue.Equal(decimal.NewFromInt(125)))
	assert.Equal(t, "Return: 12.50%, Trades: 4", a.Outcome.Message)

	assert.False(t, res.Analyses[1].Outcome.Success)
	assert.Equal(t, "Insufficient historical data for backtesting", res.Analyses[1].StatusText)

	acc := f.account(t)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(1000)))
	assert.Zero(t, f.feed.calls.Load())
}

func TestRunHistoricalTraining_IgnoresBotState(t *testing.T) {
	f := newFixture()
	f.state.Stop("")

	res := f.orch.RunHistoricalTraining(context.Background(), []string{"bitcoin"}, 30)

	assert.True(t, res.Success)
	assert.Len(t, res.Analyses, 1)
}
