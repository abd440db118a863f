package scheduler

import (
	"context"

	"auto_trading_bot/internal/modules/config"
	orchestrator "auto_trading_bot/internal/modules/orchestrator/service"
	recorder "auto_trading_bot/internal/modules/recorder/service"
	"auto_trading_bot/internal/modules/scheduler/service"
	stream "auto_trading_bot/internal/modules/stream/service"

	"go.uber.org/fx"
)

func newScheduler(
	cfg *config.Config,
	orch *orchestrator.Orchestrator,
	rec recorder.Recorder,
	hub *stream.Hub,
) *service.Scheduler {
	return service.NewScheduler(orch, rec, hub, service.Config{
		Spec:   cfg.Trading.Schedule,
		Assets: cfg.Trading.Assets,
		Mode:   cfg.Trading.Mode,
	})
}

func Module() fx.Option {
	return fx.Module("scheduler",
		fx.Provide(
			newScheduler,
		),
		fx.Invoke(
			func(lc fx.Lifecycle, s *service.Scheduler) {
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						if err := s.Register(); err != nil {
							return err
						}
						s.Start()
						return nil
					},
					OnStop: func(context.Context) error {
						s.Stop()
						return nil
					},
				})
			},
		),
	)
}
