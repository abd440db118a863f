package recorder

import (
	"context"

	"auto_trading_bot/internal/modules/config"
	"auto_trading_bot/internal/modules/recorder/service"
	"auto_trading_bot/pkg/logger"

	"go.uber.org/fx"
)

func newRecorder(lc fx.Lifecycle, cfg *config.Config) service.Recorder {
	var rec service.Recorder = service.NewNoop()
	if cfg.SQLitePath != "" {
		sq, err := service.NewSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Warn("[REC] sqlite journal disabled: %v", err)
		} else {
			rec = sq
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return rec.Close()
		},
	})
	return rec
}

func Module() fx.Option {
	return fx.Module("recorder",
		fx.Provide(
			newRecorder, // service.Recorder
		),
	)
}
