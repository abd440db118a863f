package pricefeed

import (
	"auto_trading_bot/internal/modules/config"
	"auto_trading_bot/internal/modules/pricefeed/service"
	"auto_trading_bot/pkg/logger"

	"go.uber.org/fx"
)

func newProvider(cfg *config.Config) service.Provider {
	cg := service.NewCoinGecko(service.CoinGeckoConfig{
		BaseURL:    cfg.PriceFeed.BaseURL,
		APIKey:     cfg.PriceFeed.APIKey,
		VsCurrency: cfg.PriceFeed.VsCurrency,
		Timeout:    cfg.PriceFeed.Timeout,
	})
	logger.Info("[FEED] coingecko %s, api key: %s", cfg.PriceFeed.BaseURL, cg.KeyType())
	return cg
}

func Module() fx.Option {
	return fx.Module("pricefeed",
		fx.Provide(
			newProvider, // service.Provider
		),
	)
}
