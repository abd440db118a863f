package orchestrator

import (
	backtest "auto_trading_bot/internal/modules/backtest/service"
	botstate "auto_trading_bot/internal/modules/botstate/service"
	"auto_trading_bot/internal/modules/config"
	executor "auto_trading_bot/internal/modules/executor/service"
	ledger "auto_trading_bot/internal/modules/ledger/service"
	"auto_trading_bot/internal/modules/orchestrator/service"
	pricefeed "auto_trading_bot/internal/modules/pricefeed/service"
	strategy "auto_trading_bot/internal/modules/strategy/service"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

func newOrchestrator(
	cfg *config.Config,
	feed pricefeed.Provider,
	engine strategy.Engine,
	exec *executor.Executor,
	live ledger.Ledger,
	state *botstate.State,
	sim *backtest.Simulator,
) *service.Orchestrator {
	return service.NewOrchestrator(feed, engine, exec, live, state, sim, service.Config{
		TradeAmount:       decimal.NewFromFloat(cfg.Trading.TradeAmount),
		HistoricalBalance: decimal.NewFromFloat(cfg.Backtest.InitialBalance),
	})
}

func Module() fx.Option {
	return fx.Module("orchestrator",
		fx.Provide(
			newOrchestrator,
		),
	)
}
