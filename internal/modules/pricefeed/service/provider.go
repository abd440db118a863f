package service

import (
	"context"

	"auto_trading_bot/internal/models"

	"github.com/pkg/errors"
)

var (
	ErrRateLimited = errors.New("price feed rate limit exceeded")
	ErrNoData      = errors.New("price feed returned no data")
)

// Provider serves daily close prices. Implementations may fail or rate-limit;
// callers treat any error as missing data for that asset.
type Provider interface {
	// FetchHistory returns at most days points, ascending, one per UTC day.
	FetchHistory(ctx context.Context, assetID string, days int) ([]models.PricePoint, error)
	// FetchCurrent returns the latest price per asset. Unknown ids are absent from the map.
	FetchCurrent(ctx context.Context, assetIDs []string) (map[string]float64, error)
	Name() string
}
