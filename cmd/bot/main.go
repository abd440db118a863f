package main

import (
	"context"
	"log"

	"auto_trading_bot/internal/modules/backtest"
	"auto_trading_bot/internal/modules/botstate"
	"auto_trading_bot/internal/modules/config"
	"auto_trading_bot/internal/modules/executor"
	"auto_trading_bot/internal/modules/health"
	"auto_trading_bot/internal/modules/ledger"
	"auto_trading_bot/internal/modules/orchestrator"
	"auto_trading_bot/internal/modules/postgres"
	"auto_trading_bot/internal/modules/pricefeed"
	"auto_trading_bot/internal/modules/recorder"
	"auto_trading_bot/internal/modules/scheduler"
	"auto_trading_bot/internal/modules/strategy"
	"auto_trading_bot/internal/modules/stream"
	telegram "auto_trading_bot/internal/modules/telegram_bot"
	"auto_trading_bot/pkg/logger"
	"auto_trading_bot/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.Service.Name); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if cfg.Tracing.Enabled {
		tracing.SetServiceName(cfg.Service.Name)
		_, closeTracer, err := tracing.InitTracer(tracing.Config{
			Host: cfg.Tracing.Host,
			Port: cfg.Tracing.Port,
		})
		if err != nil {
			logger.Fatal("init tracer: %v", err)
		}
		defer closeTracer()
	}

	opts := []fx.Option{
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
	}
	if cfg.DB != "" {
		opts = append(opts, postgres.Module())
	}
	opts = append(opts,
		ledger.Module(),
		strategy.Module(),
		botstate.Module(),
		executor.Module(),
		pricefeed.Module(),
		backtest.Module(),
		orchestrator.Module(),
		recorder.Module(),
		stream.Module(),
		scheduler.Module(),
		telegram.Module(),
		health.Module(),
	)

	logger.Info("starting %s in %s mode, assets %v", cfg.Service.Name, cfg.Trading.Mode, cfg.Trading.Assets)
	fx.New(opts...).Run()
}
