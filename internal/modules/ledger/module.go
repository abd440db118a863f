package ledger

import (
	"context"

	"auto_trading_bot/internal/modules/config"
	"auto_trading_bot/internal/modules/ledger/service"
	"auto_trading_bot/pkg/db"
	"auto_trading_bot/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

type params struct {
	fx.In

	Ctx context.Context
	Cfg *config.Config
	// nil unless the postgres module is part of the app
	TxManager *db.PgTxManager `optional:"true"`
}

// newLedger returns the live ledger: PostgreSQL when a pool is available,
// otherwise an in-memory paper account.
func newLedger(p params) (service.Ledger, error) {
	balance := decimal.NewFromFloat(p.Cfg.Trading.PaperBalance)
	if p.TxManager == nil {
		logger.Info("[LEDGER] using in-memory paper account, balance=%s", balance)
		return service.NewMemory(balance), nil
	}

	pg := service.NewPostgres(p.TxManager, p.Cfg.Trading.AccountID)
	if err := pg.Migrate(p.Ctx, balance); err != nil {
		return nil, err
	}
	logger.Info("[LEDGER] using postgres account id=%d", p.Cfg.Trading.AccountID)
	return pg, nil
}

func Module() fx.Option {
	return fx.Module("ledger",
		fx.Provide(
			newLedger, // service.Ledger
		),
	)
}
