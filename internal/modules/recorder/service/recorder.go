package service

import (
	"context"

	"auto_trading_bot/internal/models"
)

// Recorder journals run results for later inspection.
type Recorder interface {
	RecordAnalysis(ctx context.Context, mode string, res models.AnalysisResult) error
	RecordBacktest(ctx context.Context, res models.BacktestResult) error
	Close() error
}

// Noop is used when no journal path is configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) RecordAnalysis(context.Context, string, models.AnalysisResult) error { return nil }
func (Noop) RecordBacktest(context.Context, models.BacktestResult) error         { return nil }
func (Noop) Close() error                                                        { return nil }
