package backtest

import (
	"auto_trading_bot/internal/modules/backtest/service"
	"auto_trading_bot/internal/modules/config"
	pricefeed "auto_trading_bot/internal/modules/pricefeed/service"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

func newSimulator(feed pricefeed.Provider, cfg *config.Config) *service.Simulator {
	return service.NewSimulator(feed, service.Config{
		MinHistory:      cfg.Backtest.MinHistory,
		ShortWindow:     cfg.Backtest.ShortWindow,
		LongWindow:      cfg.Backtest.LongWindow,
		EntryMinBalance: decimal.NewFromFloat(cfg.Backtest.EntryMinBalance),
		EntryCap:        decimal.NewFromFloat(cfg.Backtest.EntryCap),
	})
}

func Module() fx.Option {
	return fx.Module("backtest",
		fx.Provide(
			newSimulator,
		),
	)
}
