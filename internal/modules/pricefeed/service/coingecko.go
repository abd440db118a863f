package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"auto_trading_bot/internal/models"
	"auto_trading_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type CoinGeckoConfig struct {
	BaseURL    string
	APIKey     string
	VsCurrency string
	Timeout    time.Duration
}

// CoinGecko implements Provider over the public CoinGecko v3 REST API.
type CoinGecko struct {
	http       *http.Client
	baseURL    string
	apiKey     string
	vsCurrency string
}

func NewCoinGecko(cfg CoinGeckoConfig) *CoinGecko {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = "usd"
	}
	return &CoinGecko{
		http:       &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		vsCurrency: strings.ToLower(cfg.VsCurrency),
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// KeyType classifies the configured key: "none", "demo" or "pro".
func (c *CoinGecko) KeyType() string {
	switch {
	case c.apiKey == "":
		return "none"
	case strings.HasPrefix(c.apiKey, "CG-") && len(c.apiKey) > 20:
		return "demo"
	default:
		return "pro"
	}
}

type marketChart struct {
	Prices [][]float64 `json:"prices"`
}

func (c *CoinGecko) FetchHistory(ctx context.Context, assetID string, days int) ([]models.PricePoint, error) {
	if days <= 0 {
		return nil, errors.Errorf("days must be positive, got %d", days)
	}

	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("days", strconv.Itoa(days))
	q.Set("interval", "daily")
	path := fmt.Sprintf("/coins/%s/market_chart?%s", url.PathEscape(assetID), q.Encode())

	var chart marketChart
	if err := c.get(ctx, path, &chart); err != nil {
		return nil, errors.Wrapf(err, "market_chart %s", assetID)
	}

	points := make([]models.PricePoint, 0, len(chart.Prices))
	for _, row := range chart.Prices {
		if len(row) < 2 || row[1] <= 0 {
			continue
		}
		points = append(points, models.PricePoint{
			Time:  time.UnixMilli(int64(row[0])).UTC(),
			Price: row[1],
		})
	}
	points = NormalizeDaily(points)
	if len(points) == 0 {
		return nil, errors.Wrapf(ErrNoData, "market_chart %s", assetID)
	}
	if len(points) > days {
		points = points[len(points)-days:]
	}
	logger.Debug("[FEED] %s: %d daily points for %d days", assetID, len(points), days)
	return points, nil
}

func (c *CoinGecko) FetchCurrent(ctx context.Context, assetIDs []string) (map[string]float64, error) {
	if len(assetIDs) == 0 {
		return map[string]float64{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(assetIDs, ","))
	q.Set("vs_currencies", c.vsCurrency)

	var raw map[string]map[string]float64
	if err := c.get(ctx, "/simple/price?"+q.Encode(), &raw); err != nil {
		return nil, errors.Wrap(err, "simple/price")
	}

	out := make(map[string]float64, len(raw))
	for id, quote := range raw {
		if p, ok := quote[c.vsCurrency]; ok && p > 0 {
			out[id] = p
		}
	}
	if len(out) == 0 {
		return nil, errors.Wrap(ErrNoData, "simple/price")
	}
	return out, nil
}

func (c *CoinGecko) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	switch c.KeyType() {
	case "demo":
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	case "pro":
		req.Header.Set("x-cg-pro-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		logger.Warn("[FEED] rate limited on %s", path)
		return ErrRateLimited
	}
	if resp.StatusCode/100 != 2 {
		return errors.Errorf("http %d: %s", resp.StatusCode, truncate(body, 256))
	}
	if err := sonic.Unmarshal(body, dst); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}

// NormalizeDaily sorts points ascending and keeps the last point of each UTC day.
func NormalizeDaily(points []models.PricePoint) []models.PricePoint {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })

	out := make([]models.PricePoint, 0, len(points))
	for _, p := range points {
		if n := len(out); n > 0 && sameUTCDay(out[n-1].Time, p.Time) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
