package telegram

import (
	"context"

	backtest "auto_trading_bot/internal/modules/backtest/service"
	botstate "auto_trading_bot/internal/modules/botstate/service"
	"auto_trading_bot/internal/modules/config"
	ledger "auto_trading_bot/internal/modules/ledger/service"
	orchestrator "auto_trading_bot/internal/modules/orchestrator/service"
	pricefeed "auto_trading_bot/internal/modules/pricefeed/service"
	recorder "auto_trading_bot/internal/modules/recorder/service"
	scheduler "auto_trading_bot/internal/modules/scheduler/service"
	stream "auto_trading_bot/internal/modules/stream/service"
	"auto_trading_bot/internal/modules/telegram_bot/service"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

func newCommands(
	cfg *config.Config,
	state *botstate.State,
	sched *scheduler.Scheduler,
	orch *orchestrator.Orchestrator,
	sim *backtest.Simulator,
	feed pricefeed.Provider,
	live ledger.Ledger,
	rec recorder.Recorder,
	hub *stream.Hub,
) *service.Commands {
	return service.NewCommands(state, sched, orch, sim, feed, live, rec, hub, service.CommandsConfig{
		Assets:          cfg.Trading.Assets,
		Mode:            cfg.Trading.Mode,
		DefaultDays:     cfg.Backtest.DefaultDays,
		BacktestBalance: decimal.NewFromFloat(cfg.Backtest.InitialBalance),
		PaperBalance:    decimal.NewFromFloat(cfg.Trading.PaperBalance),
	})
}

func newTelegram(cfg *config.Config, cmds *service.Commands) (*service.Telegram, error) {
	return service.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, cmds)
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			newCommands, // *service.Commands
			newTelegram, // *service.Telegram
		),
		// отчёты планировщика уходят в чат
		fx.Invoke(
			func(s *scheduler.Scheduler, t *service.Telegram) {
				s.SetNotifier(t)
			},
		),
		// Запуск основного цикла через Lifecycle
		fx.Invoke(
			func(lc fx.Lifecycle, t *service.Telegram) {
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						t.Start(ctx)
						return nil
					},
					OnStop: func(context.Context) error {
						cancel()
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
