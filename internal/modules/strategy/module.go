package strategy

import (
	"auto_trading_bot/internal/modules/config"
	"auto_trading_bot/internal/modules/strategy/service"

	"go.uber.org/fx"
)

func newEngine(cfg *config.Config) service.Engine {
	return service.NewCrossover(service.CrossoverConfig{
		ShortWindow: cfg.Strategy.ShortWindow,
		LongWindow:  cfg.Strategy.LongWindow,
	})
}

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			newEngine, // service.Engine
		),
	)
}
