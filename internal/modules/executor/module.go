package executor

import (
	"auto_trading_bot/internal/modules/executor/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("executor",
		fx.Provide(
			service.NewExecutor,
		),
	)
}
