package botstate

import (
	"auto_trading_bot/internal/modules/botstate/service"

	"go.uber.org/fx"
)

// Module provides the single process-wide *service.State.
func Module() fx.Option {
	return fx.Module("botstate",
		fx.Provide(
			service.NewState,
		),
	)
}
