package service

import (
	"context"
	"fmt"

	"auto_trading_bot/internal/models"
	botstate "auto_trading_bot/internal/modules/botstate/service"
	ledger "auto_trading_bot/internal/modules/ledger/service"
	pricefeed "auto_trading_bot/internal/modules/pricefeed/service"
	strategy "auto_trading_bot/internal/modules/strategy/service"
	"auto_trading_bot/pkg/logger"
	"auto_trading_bot/pkg/tracing"

	"github.com/opentracing/opentracing-go"
	"github.com/shopspring/decimal"
)

// Trader executes trades against a ledger.
type Trader interface {
	ExecuteBuy(ctx context.Context, l ledger.Ledger, assetID string, price float64, amount decimal.Decimal) models.TradeOutcome
	ExecuteSell(ctx context.Context, l ledger.Ledger, assetID string, price float64) models.TradeOutcome
}

// Backtester replays history for one asset.
type Backtester interface {
	Run(ctx context.Context, assetID string, days int, initialBalance decimal.Decimal) models.BacktestResult
}

type Config struct {
	// TradeAmount is spent per LIVE buy and used to size TRAINING simulations.
	TradeAmount decimal.Decimal
	// HistoricalBalance seeds every RunHistoricalTraining backtest.
	HistoricalBalance decimal.Decimal
}

type Orchestrator struct {
	feed   pricefeed.Provider
	engine strategy.Engine
	trader Trader
	live   ledger.Ledger
	state  *botstate.State
	bt     Backtester
	cfg    Config
}

func NewOrchestrator(
	feed pricefeed.Provider,
	engine strategy.Engine,
	trader Trader,
	live ledger.Ledger,
	state *botstate.State,
	bt Backtester,
	cfg Config,
) *Orchestrator {
	if !cfg.TradeAmount.IsPositive() {
		cfg.TradeAmount = decimal.NewFromInt(10)
	}
	if !cfg.HistoricalBalance.IsPositive() {
		cfg.HistoricalBalance = decimal.NewFromInt(1000)
	}
	return &Orchestrator{
		feed:   feed,
		engine: engine,
		trader: trader,
		live:   live,
		state:  state,
		bt:     bt,
		cfg:    cfg,
	}
}

// Run analyses every asset in order. A suspended bot short-circuits before any
// fetch. Failures of one asset never abort the others.
func (o *Orchestrator) Run(ctx context.Context, assetIDs []string, mode models.Mode) models.AnalysisResult {
	span, ctx := tracing.StartSpan(ctx, "orchestrator.run",
		opentracing.Tag{Key: "mode", Value: string(mode)},
		opentracing.Tag{Key: "assets", Value: len(assetIDs)},
	)
	defer span.Finish()

	if !o.state.IsActive() {
		status := o.state.Status()
		logger.Info("[ORCH] run skipped, bot is %s", status)
		return models.AnalysisResult{
			Analyses:    []models.CoinAnalysis{},
			SummaryText: fmt.Sprintf("Bot is currently %s. Trading suspended.", status),
			Success:     false,
		}
	}
	if !mode.Valid() {
		return models.AnalysisResult{
			Analyses:    []models.CoinAnalysis{},
			SummaryText: fmt.Sprintf("Unknown trading mode %q", mode),
			Success:     false,
		}
	}

	analyses := make([]models.CoinAnalysis, 0, len(assetIDs))
	signals, successful := 0, 0
	for _, id := range assetIDs {
		a := o.analyzeAsset(ctx, id, mode)
		analyses = append(analyses, a)
		if a.Outcome != nil {
			signals++
			if a.Outcome.Success {
				successful++
			}
		}
	}

	summary := fmt.Sprintf("[%s MODE] Analyzed %d coins, generated %d trading signals, %d successful trades",
		mode, len(assetIDs), signals, successful)
	logger.Info("[ORCH] %s", summary)
	return models.AnalysisResult{Analyses: analyses, SummaryText: summary, Success: true}
}

func (o *Orchestrator) analyzeAsset(ctx context.Context, assetID string, mode models.Mode) (a models.CoinAnalysis) {
	span, ctx := tracing.StartSpan(ctx, "orchestrator.asset", opentracing.Tag{Key: "asset", Value: assetID})
	defer span.Finish()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("[ORCH] %s panicked: %v", assetID, r)
			span.SetTag("error", true)
			a = models.CoinAnalysis{
				AssetID:    assetID,
				Signal:     models.SignalInsufficientData,
				StatusText: fmt.Sprintf("Analysis failed: %v", r),
			}
		}
	}()

	_, long := o.engine.Windows()
	points, err := o.feed.FetchHistory(ctx, assetID, long)
	if err != nil {
		logger.Warn("[ORCH] %s: fetch history: %v", assetID, err)
		span.SetTag("error", true)
		return models.CoinAnalysis{
			AssetID:    assetID,
			Signal:     models.SignalInsufficientData,
			StatusText: "Failed to fetch price data: " + err.Error(),
		}
	}

	prices := models.Closes(points)
	res := o.engine.Analyze(prices)
	span.SetTag("signal", string(res.Signal))

	if res.Signal == models.SignalInsufficientData {
		return models.CoinAnalysis{
			AssetID:    assetID,
			Signal:     res.Signal,
			StatusText: fmt.Sprintf("Not enough historical data (need %d days, got %d)", long, len(prices)),
		}
	}

	price := prices[len(prices)-1]
	a = models.CoinAnalysis{
		AssetID:      assetID,
		CurrentPrice: price,
		ShortMA:      res.ShortMA,
		LongMA:       res.LongMA,
		Signal:       res.Signal,
		StatusText:   fmt.Sprintf("Analysis completed - %s mode", mode),
	}
	if !res.Signal.Actionable() {
		a.StatusText = fmt.Sprintf("No trading signal generated - %s mode", mode)
		return a
	}

	var out models.TradeOutcome
	switch {
	case mode == models.ModeTraining:
		out = o.simulate(res.Signal, price)
	case !o.state.IsActive():
		out = suppressed(res.Signal, price, o.state.Status())
	case res.Signal == models.SignalBuy:
		out = o.trader.ExecuteBuy(ctx, o.live, assetID, price, o.cfg.TradeAmount)
	default:
		out = o.trader.ExecuteSell(ctx, o.live, assetID, price)
	}
	a.Outcome = &out

	logger.Info("[ORCH] %s %s @ %.4f short=%.4f long=%.4f -> %s",
		mode, assetID, price, res.ShortMA, res.LongMA, out.Message)
	return a
}

// simulate sizes a training trade like a live BUY of TradeAmount at price,
// without reading the live ledger.
func (o *Orchestrator) simulate(sig models.Signal, price float64) models.TradeOutcome {
	px := decimal.NewFromFloat(price)
	out := models.TradeOutcome{
		Success:    true,
		Quantity:   o.cfg.TradeAmount.Div(px),
		Price:      px,
		TotalValue: o.cfg.TradeAmount,
	}
	if sig == models.SignalBuy {
		out.Action = models.ActionBuy
		out.Message = "Simulated buy trade (training mode)"
	} else {
		out.Action = models.ActionSell
		out.Message = "Simulated sell trade (training mode)"
	}
	return out
}

func suppressed(sig models.Signal, price float64, status models.BotStatus) models.TradeOutcome {
	action := models.ActionBuy
	if sig == models.SignalSell {
		action = models.ActionSell
	}
	return models.TradeOutcome{
		Success: false,
		Action:  action,
		Price:   decimal.NewFromFloat(price),
		Message: fmt.Sprintf("Trade signal generated but bot is %s", status),
	}
}

// RunHistoricalTraining backtests every asset over days of history with a
// fixed starting balance. The live ledger is never touched.
func (o *Orchestrator) RunHistoricalTraining(ctx context.Context, assetIDs []string, days int) models.AnalysisResult {
	span, ctx := tracing.StartSpan(ctx, "orchestrator.historical_training",
		opentracing.Tag{Key: "days", Value: days},
	)
	defer span.Finish()

	analyses := make([]models.CoinAnalysis, 0, len(assetIDs))
	for _, id := range assetIDs {
		analyses = append(analyses, o.trainAsset(ctx, id, days))
	}

	summary := fmt.Sprintf("[HISTORICAL TRAINING] Analyzed %d coins over %d days", len(assetIDs), days)
	logger.Info("[ORCH] %s", summary)
	return models.AnalysisResult{Analyses: analyses, SummaryText: summary, Success: true}
}

func (o *Orchestrator) trainAsset(ctx context.Context, assetID string, days int) (a models.CoinAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[ORCH] backtest %s panicked: %v", assetID, r)
			a = models.CoinAnalysis{
				AssetID:    assetID,
				Signal:     models.SignalBacktest,
				StatusText: fmt.Sprintf("Backtest failed: %v", r),
				Outcome: &models.TradeOutcome{
					Action:  models.ActionBacktestSummary,
					Message: fmt.Sprintf("Backtest failed: %v", r),
				},
			}
		}
	}()

	res := o.bt.Run(ctx, assetID, days, o.cfg.HistoricalBalance)
	return models.CoinAnalysis{
		AssetID:    assetID,
		Signal:     models.SignalBacktest,
		StatusText: res.SummaryText,
		Outcome: &models.TradeOutcome{
			Success:    res.Success,
			Action:     models.ActionBacktestSummary,
			Quantity:   decimal.NewFromInt(int64(res.TotalTrades)),
			TotalValue: res.TotalReturn,
			Message:    fmt.Sprintf("Return: %.2f%%, Trades: %d", res.TotalReturnPct, res.TotalTrades),
		},
	}
}
