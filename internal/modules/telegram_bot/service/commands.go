package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"auto_trading_bot/internal/models"
	botstate "auto_trading_bot/internal/modules/botstate/service"
	ledger "auto_trading_bot/internal/modules/ledger/service"
	"auto_trading_bot/pkg/logger"

	"github.com/shopspring/decimal"
)

type Runner interface {
	RunNow(ctx context.Context, mode models.Mode, assets []string) models.AnalysisResult
}

type Trainer interface {
	RunHistoricalTraining(ctx context.Context, assetIDs []string, days int) models.AnalysisResult
}

type Backtester interface {
	Run(ctx context.Context, assetID string, days int, initialBalance decimal.Decimal) models.BacktestResult
}

type Pricer interface {
	FetchCurrent(ctx context.Context, assetIDs []string) (map[string]float64, error)
}

type Recorder interface {
	RecordAnalysis(ctx context.Context, mode string, res models.AnalysisResult) error
	RecordBacktest(ctx context.Context, res models.BacktestResult) error
}

type Publisher interface {
	Publish(eventType string, payload any)
}

type CommandsConfig struct {
	Assets          []string
	Mode            models.Mode
	DefaultDays     int
	BacktestBalance decimal.Decimal
	PaperBalance    decimal.Decimal
}

const defaultTradesLimit = 10

// Commands implements the bot's chat commands independently of the Telegram transport.
type Commands struct {
	state   *botstate.State
	runner  Runner
	trainer Trainer
	bt      Backtester
	prices  Pricer
	live    ledger.Ledger
	rec     Recorder
	pub     Publisher
	cfg     CommandsConfig
}

func NewCommands(
	state *botstate.State,
	runner Runner,
	trainer Trainer,
	bt Backtester,
	prices Pricer,
	live ledger.Ledger,
	rec Recorder,
	pub Publisher,
	cfg CommandsConfig,
) *Commands {
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 365
	}
	return &Commands{
		state:   state,
		runner:  runner,
		trainer: trainer,
		bt:      bt,
		prices:  prices,
		live:    live,
		rec:     rec,
		pub:     pub,
		cfg:     cfg,
	}
}

// Handle executes command with its raw argument string and returns the reply text.
func (c *Commands) Handle(ctx context.Context, command, args string) string {
	args = strings.TrimSpace(args)
	fields := strings.Fields(args)
	switch strings.ToLower(command) {
	case "start", "help":
		return helpText
	case "status":
		return c.status()
	case "activate":
		return c.transition(c.state.Activate(args))
	case "hold":
		return c.transition(c.state.Hold(args))
	case "stop":
		return c.transition(c.state.Stop(args))
	case "run":
		return c.run(ctx, fields)
	case "train":
		return c.train(ctx, fields)
	case "backtest":
		return c.backtest(ctx, fields)
	case "balance":
		return c.balance(ctx)
	case "prices":
		return c.currentPrices(ctx, fields)
	case "trades":
		return c.trades(ctx, fields)
	default:
		return "🤷 Unknown command. Try /help"
	}
}

// Reset restores the live account to the configured paper balance.
func (c *Commands) Reset(ctx context.Context) string {
	if err := c.live.Reset(ctx, c.cfg.PaperBalance); err != nil {
		logger.Error("[TG] reset ledger: %v", err)
		return "⚠️ Reset failed: " + err.Error()
	}
	logger.Info("[TG] ledger reset to %s", c.cfg.PaperBalance)
	return fmt.Sprintf("♻️ Account reset. Balance: $%s", c.cfg.PaperBalance.StringFixed(2))
}

func (c *Commands) status() string {
	text := fmt.Sprintf("📊 %s\nMode: %s\nAssets: %s\nUptime: %s",
		c.state.Summary(), c.cfg.Mode, strings.Join(c.cfg.Assets, ", "), c.state.Uptime().Truncate(time.Second))
	if c.state.IsOnHold() {
		text += "\n⏸ Trading is paused, /activate to resume"
	}
	return text
}

func (c *Commands) transition(st models.BotState) string {
	c.pub.Publish("bot_state", st)
	logger.Info("[TG] bot state -> %s (%s)", st.Status, st.Reason)
	return statusEmoji(st.Status) + " " + c.state.Summary()
}

// /run [live|training] [assets...]
func (c *Commands) run(ctx context.Context, fields []string) string {
	mode := c.cfg.Mode
	if len(fields) > 0 {
		if m := models.Mode(strings.ToUpper(fields[0])); m.Valid() {
			mode = m
			fields = fields[1:]
		}
	}
	res := c.runner.RunNow(ctx, mode, assetsOr(fields, c.cfg.Assets))
	return FormatAnalysis(res)
}

// /train [days] [assets...]
func (c *Commands) train(ctx context.Context, fields []string) string {
	days := c.cfg.DefaultDays
	if len(fields) > 0 {
		if n := mustInt(fields[0]); n > 0 {
			days = n
			fields = fields[1:]
		}
	}
	res := c.trainer.RunHistoricalTraining(ctx, assetsOr(fields, c.cfg.Assets), days)
	if err := c.rec.RecordAnalysis(ctx, "HISTORICAL", res); err != nil {
		logger.Error("[TG] record training: %v", err)
	}
	c.pub.Publish("analysis", res)
	return FormatAnalysis(res)
}

// /backtest <asset> [days]
func (c *Commands) backtest(ctx context.Context, fields []string) string {
	if len(fields) == 0 {
		return "Usage: /backtest <asset> [days]"
	}
	days := c.cfg.DefaultDays
	if len(fields) > 1 {
		if n := mustInt(fields[1]); n > 0 {
			days = n
		}
	}
	res := c.bt.Run(ctx, strings.ToLower(fields[0]), days, c.cfg.BacktestBalance)
	if err := c.rec.RecordBacktest(ctx, res); err != nil {
		logger.Error("[TG] record backtest: %v", err)
	}
	c.pub.Publish("backtest", res)
	return FormatBacktest(res)
}

func (c *Commands) balance(ctx context.Context) string {
	acc, err := c.live.Snapshot(ctx)
	if err != nil {
		logger.Error("[TG] balance: %v", err)
		return "⚠️ Could not read the account: " + err.Error()
	}

	var prices map[string]float64
	if len(acc.Holdings) > 0 {
		ids := make([]string, 0, len(acc.Holdings))
		for id := range acc.Holdings {
			ids = append(ids, id)
		}
		if prices, err = c.prices.FetchCurrent(ctx, ids); err != nil {
			logger.Warn("[TG] balance prices: %v", err)
		}
	}
	return FormatAccount(acc, prices)
}

// /prices [assets...]
func (c *Commands) currentPrices(ctx context.Context, fields []string) string {
	ids := assetsOr(fields, c.cfg.Assets)
	prices, err := c.prices.FetchCurrent(ctx, ids)
	if err != nil {
		logger.Error("[TG] prices: %v", err)
		return "⚠️ Failed to fetch prices: " + err.Error()
	}
	return FormatPrices(ids, prices)
}

// /trades [n]
func (c *Commands) trades(ctx context.Context, fields []string) string {
	limit := defaultTradesLimit
	if len(fields) > 0 {
		if n := mustInt(fields[0]); n > 0 {
			limit = n
		}
	}
	hist, err := c.live.History(ctx, limit)
	if err != nil {
		logger.Error("[TG] trades: %v", err)
		return "⚠️ Could not read trade history: " + err.Error()
	}
	return FormatTrades(hist)
}

func assetsOr(fields, def []string) []string {
	if len(fields) == 0 {
		return def
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		for _, id := range strings.Split(f, ",") {
			if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

const helpText = "🤖 Crossover trading bot\n\n" +
	"/status - bot state\n" +
	"/activate [reason] - resume trading\n" +
	"/hold [reason] - pause trading\n" +
	"/stop [reason] - stop trading\n" +
	"/run [live|training] [assets...] - analyse now\n" +
	"/train [days] [assets...] - historical training\n" +
	"/backtest <asset> [days] - single backtest\n" +
	"/balance - live account valued at current prices\n" +
	"/prices [assets...] - current prices\n" +
	"/trades [n] - last trades of the live account\n" +
	"/reset - reset the live account"
