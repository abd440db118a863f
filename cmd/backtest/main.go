package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"auto_trading_bot/internal/models"
	backtest "auto_trading_bot/internal/modules/backtest/service"
	pricefeed "auto_trading_bot/internal/modules/pricefeed/service"
	"auto_trading_bot/pkg/logger"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const defaultConfigName = ".backtest"

type tradeRow struct {
	Action   string `yaml:"action"`
	Quantity string `yaml:"quantity"`
	Price    string `yaml:"price"`
	Value    string `yaml:"value"`
	Message  string `yaml:"message"`
}

type report struct {
	Asset          string     `yaml:"asset"`
	Days           int        `yaml:"days"`
	Success        bool       `yaml:"success"`
	Summary        string     `yaml:"summary"`
	InitialBalance string     `yaml:"initial_balance"`
	FinalBalance   string     `yaml:"final_balance"`
	TotalReturn    string     `yaml:"total_return"`
	TotalReturnPct float64    `yaml:"total_return_pct"`
	Trades         []tradeRow `yaml:"trades,omitempty"`
}

func newReport(days int, res models.BacktestResult) report {
	r := report{
		Asset:          res.AssetID,
		Days:           days,
		Success:        res.Success,
		Summary:        res.SummaryText,
		InitialBalance: res.InitialBalance.StringFixed(2),
		FinalBalance:   res.FinalBalance.StringFixed(2),
		TotalReturn:    res.TotalReturn.StringFixed(2),
		TotalReturnPct: res.TotalReturnPct,
	}
	for _, t := range res.Trades {
		r.Trades = append(r.Trades, tradeRow{
			Action:   string(t.Action),
			Quantity: t.Quantity.String(),
			Price:    t.Price.StringFixed(2),
			Value:    t.TotalValue.StringFixed(2),
			Message:  t.Message,
		})
	}
	return r
}

func loadSettings() (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("asset", "bitcoin")
	v.SetDefault("days", 365)
	v.SetDefault("initial_balance", 1000.0)
	v.SetDefault("price_feed.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("price_feed.vs_currency", "usd")
	v.SetDefault("price_feed.timeout", "30s")
	v.SetDefault("min_history", 50)
	v.SetDefault("short_window", 10)
	v.SetDefault("long_window", 50)
	v.SetDefault("entry_min_balance", 10.0)
	v.SetDefault("entry_cap", 100.0)

	v.SetEnvPrefix("BACKTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("price_feed.api_key", "COINGECKO_API_KEY")

	v.SetConfigName(defaultConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read backtest config")
		}
	}

	// позиционные аргументы: asset [days]
	if len(os.Args) > 1 {
		v.Set("asset", strings.ToLower(os.Args[1]))
	}
	if len(os.Args) > 2 {
		v.Set("days", os.Args[2])
	}
	return v, nil
}

func main() {
	if err := logger.Init(os.Getenv("LOG_LEVEL"), "backtest"); err != nil {
		panic(err)
	}
	defer logger.Sync()

	v, err := loadSettings()
	if err != nil {
		logger.Fatal("%v", err)
	}

	days := v.GetInt("days")
	if days <= 0 {
		logger.Fatal("days must be positive, got %q", v.GetString("days"))
	}

	feed := pricefeed.NewCoinGecko(pricefeed.CoinGeckoConfig{
		BaseURL:    v.GetString("price_feed.base_url"),
		APIKey:     v.GetString("price_feed.api_key"),
		VsCurrency: v.GetString("price_feed.vs_currency"),
		Timeout:    v.GetDuration("price_feed.timeout"),
	})
	sim := backtest.NewSimulator(feed, backtest.Config{
		MinHistory:      v.GetInt("min_history"),
		ShortWindow:     v.GetInt("short_window"),
		LongWindow:      v.GetInt("long_window"),
		EntryMinBalance: decimal.NewFromFloat(v.GetFloat64("entry_min_balance")),
		EntryCap:        decimal.NewFromFloat(v.GetFloat64("entry_cap")),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res := sim.Run(ctx, v.GetString("asset"), days, decimal.NewFromFloat(v.GetFloat64("initial_balance")))

	bs, err := yaml.Marshal(newReport(days, res))
	if err != nil {
		logger.Fatal("marshal report: %v", err)
	}
	fmt.Print(string(bs))
	if !res.Success {
		os.Exit(1)
	}
}
