package stream

import (
	"context"

	"auto_trading_bot/internal/modules/stream/service"

	"go.uber.org/fx"
)

func runHub(lc fx.Lifecycle, hub *service.Hub) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go hub.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("stream",
		fx.Provide(
			service.NewHub,
		),
		fx.Invoke(runHub),
	)
}
