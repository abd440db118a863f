package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"auto_trading_bot/internal/models"
	"auto_trading_bot/pkg/logger"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLite journals runs into a local database file.
type SQLite struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLite opens (or creates) the database at path and runs migrations.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create journal dir")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set WAL mode")
	}

	r := &SQLite{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	logger.Info("[REC] sqlite journal opened: %s", path)
	return r, nil
}

func (r *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			mode       TEXT NOT NULL,
			success    INTEGER NOT NULL,
			summary    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON analysis_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS coin_analyses (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        INTEGER NOT NULL REFERENCES analysis_runs(id),
			asset_id      TEXT NOT NULL,
			current_price REAL,
			short_ma      REAL,
			long_ma       REAL,
			signal        TEXT,
			status        TEXT,
			trade_action  TEXT,
			trade_success INTEGER,
			trade_qty     TEXT,
			trade_value   TEXT,
			trade_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_coin_run ON coin_analyses(run_id)`,

		`CREATE TABLE IF NOT EXISTS backtests (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			asset_id         TEXT NOT NULL,
			success          INTEGER NOT NULL,
			start_time       INTEGER,
			end_time         INTEGER,
			initial_balance  TEXT,
			final_balance    TEXT,
			total_return     TEXT,
			total_return_pct REAL,
			total_trades     INTEGER,
			summary          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backtests_asset ON backtests(asset_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			backtest_id INTEGER NOT NULL REFERENCES backtests(id),
			action      TEXT,
			quantity    TEXT,
			price       TEXT,
			total_value TEXT,
			message     TEXT
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return errors.Wrapf(err, "exec %q", s[:40])
		}
	}
	return nil
}

func (r *SQLite) RecordAnalysis(ctx context.Context, mode string, res models.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	out, err := tx.ExecContext(ctx,
		`INSERT INTO analysis_runs (timestamp, mode, success, summary) VALUES (?,?,?,?)`,
		r.now().Unix(), mode, res.Success, res.SummaryText)
	if err != nil {
		return errors.Wrap(err, "insert run")
	}
	runID, err := out.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "run id")
	}

	for _, a := range res.Analyses {
		var (
			action, qty, value, msg sql.NullString
			ok                      sql.NullBool
		)
		if t := a.Outcome; t != nil {
			action = sql.NullString{String: string(t.Action), Valid: true}
			qty = sql.NullString{String: t.Quantity.String(), Valid: true}
			value = sql.NullString{String: t.TotalValue.String(), Valid: true}
			msg = sql.NullString{String: t.Message, Valid: true}
			ok = sql.NullBool{Bool: t.Success, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO coin_analyses
			(run_id, asset_id, current_price, short_ma, long_ma, signal, status,
			 trade_action, trade_success, trade_qty, trade_value, trade_message)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			runID, a.AssetID, a.CurrentPrice, a.ShortMA, a.LongMA, string(a.Signal), a.StatusText,
			action, ok, qty, value, msg)
		if err != nil {
			return errors.Wrapf(err, "insert analysis %s", a.AssetID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (r *SQLite) RecordBacktest(ctx context.Context, res models.BacktestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	out, err := tx.ExecContext(ctx, `INSERT INTO backtests
		(timestamp, asset_id, success, start_time, end_time, initial_balance, final_balance,
		 total_return, total_return_pct, total_trades, summary)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		r.now().Unix(), res.AssetID, res.Success, unixOrNull(res.StartTime), unixOrNull(res.EndTime),
		res.InitialBalance.String(), res.FinalBalance.String(), res.TotalReturn.String(),
		res.TotalReturnPct, res.TotalTrades, res.SummaryText)
	if err != nil {
		return errors.Wrap(err, "insert backtest")
	}
	id, err := out.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "backtest id")
	}

	for _, t := range res.Trades {
		_, err := tx.ExecContext(ctx, `INSERT INTO backtest_trades
			(backtest_id, action, quantity, price, total_value, message) VALUES (?,?,?,?,?,?)`,
			id, string(t.Action), t.Quantity.String(), t.Price.String(), t.TotalValue.String(), t.Message)
		if err != nil {
			return errors.Wrap(err, "insert backtest trade")
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (r *SQLite) Close() error {
	logger.Info("[REC] closing sqlite journal")
	return r.db.Close()
}

func unixOrNull(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
