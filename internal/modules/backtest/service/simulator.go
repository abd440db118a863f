package service

import (
	"context"
	"fmt"
	"time"

	"auto_trading_bot/internal/models"
	executor "auto_trading_bot/internal/modules/executor/service"
	ledger "auto_trading_bot/internal/modules/ledger/service"
	pricefeed "auto_trading_bot/internal/modules/pricefeed/service"
	strategy "auto_trading_bot/internal/modules/strategy/service"
	"auto_trading_bot/pkg/logger"
	"auto_trading_bot/pkg/tracing"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	msgInsufficientHistory = "Insufficient historical data for backtesting"
	msgBadBalance          = "initial balance must be positive"
)

type Config struct {
	MinHistory      int
	ShortWindow     int
	LongWindow      int
	EntryMinBalance decimal.Decimal
	EntryCap        decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		MinHistory:      50,
		ShortWindow:     strategy.DefaultShortWindow,
		LongWindow:      strategy.DefaultLongWindow,
		EntryMinBalance: decimal.NewFromInt(10),
		EntryCap:        decimal.NewFromInt(100),
	}
}

// Simulator replays daily history through the crossover rule. Every run owns a
// fresh in-memory ledger, so concurrent runs share nothing mutable.
type Simulator struct {
	feed pricefeed.Provider
	cfg  Config
}

func NewSimulator(feed pricefeed.Provider, cfg Config) *Simulator {
	def := DefaultConfig()
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = def.MinHistory
	}
	if cfg.ShortWindow <= 0 {
		cfg.ShortWindow = def.ShortWindow
	}
	if cfg.LongWindow <= 0 {
		cfg.LongWindow = def.LongWindow
	}
	if cfg.MinHistory < cfg.LongWindow {
		cfg.MinHistory = cfg.LongWindow
	}
	if !cfg.EntryCap.IsPositive() {
		cfg.EntryCap = def.EntryCap
	}
	return &Simulator{feed: feed, cfg: cfg}
}

// Run fetches days of history for assetID and replays it.
func (s *Simulator) Run(ctx context.Context, assetID string, days int, initialBalance decimal.Decimal) models.BacktestResult {
	span, ctx := tracing.StartSpan(ctx, "backtest.run",
		opentracing.Tag{Key: "asset", Value: assetID},
		opentracing.Tag{Key: "days", Value: days},
	)
	defer span.Finish()

	if !initialBalance.IsPositive() {
		return failedResult(assetID, initialBalance, msgBadBalance)
	}

	points, err := s.feed.FetchHistory(ctx, assetID, days)
	if err != nil {
		span.SetTag("error", true)
		logger.Warn("[BACKTEST] %s: fetch history: %v", assetID, err)
		if errors.Is(err, pricefeed.ErrNoData) {
			return failedResult(assetID, initialBalance, msgInsufficientHistory)
		}
		return failedResult(assetID, initialBalance, "Failed to fetch historical data: "+err.Error())
	}

	res := s.Replay(ctx, assetID, points, initialBalance)
	span.SetTag("trades", res.TotalTrades)
	return res
}

// Replay runs the simulation over an already loaded ascending series.
func (s *Simulator) Replay(ctx context.Context, assetID string, points []models.PricePoint, initialBalance decimal.Decimal) (res models.BacktestResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[BACKTEST] %s panicked: %v", assetID, r)
			res = failedResult(assetID, initialBalance, fmt.Sprintf("Backtest failed: %v", r))
		}
	}()

	if !initialBalance.IsPositive() {
		return failedResult(assetID, initialBalance, msgBadBalance)
	}
	if len(points) < s.cfg.MinHistory {
		logger.Info("[BACKTEST] %s: %d points, need %d", assetID, len(points), s.cfg.MinHistory)
		res = failedResult(assetID, initialBalance, msgInsufficientHistory)
		if len(points) > 0 {
			res.StartTime, res.EndTime = points[0].Time, points[len(points)-1].Time
		}
		return res
	}

	prices := models.Closes(points)
	book := ledger.NewMemory(initialBalance)

	var now time.Time
	exec := executor.NewExecutorWithClock(func() time.Time { return now })

	trades := make([]models.TradeOutcome, 0)
	for i := s.cfg.MinHistory; i < len(prices); i++ {
		now = points[i].Time
		window := prices[:i+1]
		short := strategy.SMA(window, s.cfg.ShortWindow)
		long := strategy.SMA(window, s.cfg.LongWindow)

		acc, err := book.Snapshot(ctx)
		if err != nil {
			return failedResult(assetID, initialBalance, "Backtest failed: "+err.Error())
		}
		held := acc.Holdings[assetID]

		var out models.TradeOutcome
		switch {
		case short > long && !held.IsPositive() && acc.Balance.GreaterThanOrEqual(s.cfg.EntryMinBalance):
			out = exec.ExecuteBuy(ctx, book, assetID, prices[i], decimal.Min(acc.Balance, s.cfg.EntryCap))
		case short < long && held.IsPositive():
			out = exec.ExecuteSell(ctx, book, assetID, prices[i])
		default:
			continue
		}

		if !out.Success {
			logger.Warn("[BACKTEST] %s day %d: %s", assetID, i, out.Message)
			continue
		}
		trades = append(trades, out)
	}

	acc, err := book.Snapshot(ctx)
	if err != nil {
		return failedResult(assetID, initialBalance, "Backtest failed: "+err.Error())
	}

	last := decimal.NewFromFloat(prices[len(prices)-1])
	final := acc.Balance.Add(acc.Holdings[assetID].Mul(last))
	total := final.Sub(initialBalance)
	pct, _ := total.Div(initialBalance).Mul(decimal.NewFromInt(100)).Float64()

	logger.Info("[BACKTEST] %s: %d points, %d trades, return %.2f%%", assetID, len(points), len(trades), pct)
	return models.BacktestResult{
		Success:        true,
		AssetID:        assetID,
		StartTime:      points[0].Time,
		EndTime:        points[len(points)-1].Time,
		InitialBalance: initialBalance,
		FinalBalance:   final,
		TotalReturn:    total,
		TotalReturnPct: pct,
		TotalTrades:    len(trades),
		Trades:         trades,
		SummaryText:    fmt.Sprintf("Backtest completed: %.2f%% return, %d trades executed", pct, len(trades)),
	}
}

func failedResult(assetID string, initialBalance decimal.Decimal, msg string) models.BacktestResult {
	return models.BacktestResult{
		Success:        false,
		AssetID:        assetID,
		InitialBalance: initialBalance,
		FinalBalance:   initialBalance,
		Trades:         []models.TradeOutcome{},
		SummaryText:    msg,
	}
}
