package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"auto_trading_bot/internal/models"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
	databaseDSN       = "DATABASE_DSN"
	coingeckoKeyENV   = "COINGECKO_API_KEY"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB         string `yaml:"db_dsn"`
	SQLitePath string `yaml:"sqlite_path"`
	LogLevel   string `yaml:"log_level"`
	Service    struct {
		Name     string `yaml:"name"`
		HTTPAddr string `yaml:"http_addr"`
	} `yaml:"service"`
	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`

	PriceFeed struct {
		BaseURL    string        `yaml:"base_url"`
		APIKey     string        `yaml:"api_key"`
		VsCurrency string        `yaml:"vs_currency"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"price_feed"`

	Strategy struct {
		ShortWindow int `yaml:"short_window"`
		LongWindow  int `yaml:"long_window"`
	} `yaml:"strategy"`

	Trading struct {
		Mode         models.Mode `yaml:"mode"`
		Assets       []string    `yaml:"assets"`
		TradeAmount  float64     `yaml:"trade_amount"` // фиксированная сумма на одну LIVE-сделку
		Schedule     string      `yaml:"schedule"`
		PaperBalance float64     `yaml:"paper_balance"` // стартовый баланс in-memory счёта, если нет БД
		AccountID    int64       `yaml:"account_id"`
	} `yaml:"trading"`

	Backtest struct {
		InitialBalance  float64 `yaml:"initial_balance"`
		MinHistory      int     `yaml:"min_history"`
		EntryMinBalance float64 `yaml:"entry_min_balance"`
		EntryCap        float64 `yaml:"entry_cap"`
		ShortWindow     int     `yaml:"short_window"`
		LongWindow      int     `yaml:"long_window"`
		DefaultDays     int     `yaml:"default_days"`
	} `yaml:"backtest"`
}

// Default returns a complete configuration; a config file only overrides it.
func Default() *Config {
	cfg := &Config{}
	cfg.SQLitePath = "data/trading_journal.db"
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.Service.Name = "auto_trading_bot"
	cfg.Service.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")
	cfg.Tracing.Host = "localhost"
	cfg.Tracing.Port = 6831

	cfg.PriceFeed.BaseURL = "https://api.coingecko.com/api/v3"
	cfg.PriceFeed.VsCurrency = "usd"
	cfg.PriceFeed.Timeout = durationFromEnv("PRICE_FEED_TIMEOUT", "15s")

	cfg.Strategy.ShortWindow = intFromEnv("SMA_SHORT", 10)
	cfg.Strategy.LongWindow = intFromEnv("SMA_LONG", 50)

	cfg.Trading.Mode = models.Mode(strings.ToUpper(getenvDefault("TRADING_MODE", string(models.ModeTraining))))
	cfg.Trading.Assets = []string{"bitcoin", "ethereum", "solana"}
	cfg.Trading.TradeAmount = floatFromEnv("TRADE_AMOUNT", 10.00)
	cfg.Trading.Schedule = getenvDefault("TRADING_SCHEDULE", "0 0 9 * * *")
	cfg.Trading.PaperBalance = floatFromEnv("PAPER_BALANCE", 1000)
	cfg.Trading.AccountID = 1

	cfg.Backtest.InitialBalance = floatFromEnv("BACKTEST_INITIAL_BALANCE", 1000)
	cfg.Backtest.MinHistory = 50
	cfg.Backtest.EntryMinBalance = 10
	cfg.Backtest.EntryCap = 100
	cfg.Backtest.ShortWindow = 10
	cfg.Backtest.LongWindow = 50
	cfg.Backtest.DefaultDays = 365
	return cfg
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := getenvDefault(configFilePathENV, "values_local.yaml")
	configDir := getenvDefault(configDirENV, "configs")

	cfg, err := Load(configDir + "/" + configFileName)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load decodes path over the defaults and applies env overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	config := Default()

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer func() {
			_ = file.Close()
		}()
		if err := yaml.NewDecoder(file).Decode(config); err != nil {
			return nil, errors.Wrapf(err, "decode config file %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "open config file %s", path)
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if v := os.Getenv(chatTelegramENV); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if key := os.Getenv(coingeckoKeyENV); key != "" {
		config.PriceFeed.APIKey = key
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		config.SQLitePath = v
	}
	config.Trading.Mode = models.Mode(strings.ToUpper(string(config.Trading.Mode)))

	return config, nil
}

// Validate checks the trading constants for consistency.
func (c *Config) Validate() error {
	if c.Strategy.ShortWindow <= 0 || c.Strategy.LongWindow <= 0 {
		return errors.New("strategy windows must be positive")
	}
	if c.Strategy.ShortWindow >= c.Strategy.LongWindow {
		return errors.New("strategy.short_window must be < strategy.long_window")
	}
	if c.Backtest.ShortWindow <= 0 || c.Backtest.ShortWindow >= c.Backtest.LongWindow {
		return errors.New("backtest.short_window must be positive and < backtest.long_window")
	}
	if c.Backtest.MinHistory < c.Backtest.LongWindow {
		return errors.New("backtest.min_history must be >= backtest.long_window")
	}
	if c.Trading.TradeAmount <= 0 {
		return errors.New("trading.trade_amount must be positive")
	}
	if c.Trading.PaperBalance < 0 {
		return errors.New("trading.paper_balance must not be negative")
	}
	if c.Backtest.InitialBalance <= 0 {
		return errors.New("backtest.initial_balance must be positive")
	}
	if c.Backtest.EntryCap <= 0 || c.Backtest.EntryMinBalance < 0 {
		return errors.New("backtest entry sizing must be positive")
	}
	if !c.Trading.Mode.Valid() {
		return errors.Errorf("trading.mode %q is not LIVE or TRAINING", c.Trading.Mode)
	}
	return nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
