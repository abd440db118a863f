package service

import (
	"context"

	"auto_trading_bot/internal/models"
	"auto_trading_bot/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("account not found")

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         BIGINT PRIMARY KEY,
	balance    NUMERIC NOT NULL CHECK (balance >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS holdings (
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	asset_id   TEXT NOT NULL,
	quantity   NUMERIC NOT NULL CHECK (quantity > 0),
	PRIMARY KEY (account_id, asset_id)
);
CREATE TABLE IF NOT EXISTS trades (
	id          BIGSERIAL PRIMARY KEY,
	account_id  BIGINT NOT NULL REFERENCES accounts(id),
	asset_id    TEXT NOT NULL,
	action      TEXT NOT NULL,
	quantity    NUMERIC NOT NULL,
	price       NUMERIC NOT NULL,
	profit_loss NUMERIC,
	executed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trades_account_asset_idx ON trades (account_id, asset_id);
`

// Postgres keeps one account's ledger in PostgreSQL. Every Atomic call is a
// single transaction holding a row lock on the account.
type Postgres struct {
	txm       db.TxManager
	accountID int64
}

func NewPostgres(txm db.TxManager, accountID int64) *Postgres {
	return &Postgres{txm: txm, accountID: accountID}
}

// Migrate creates the tables and seeds the account with balance if it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context, balance decimal.Decimal) error {
	return p.txm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, schema); err != nil {
			return errors.Wrap(err, "create ledger schema")
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO accounts (id, balance) VALUES ($1, $2::text::numeric) ON CONFLICT (id) DO NOTHING`,
			p.accountID, balance.String())
		return errors.Wrap(err, "seed account")
	})
}

func (p *Postgres) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return p.txm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var locked int64
		err := tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, p.accountID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "lock account")
		}
		return fn(ctx, &pgTx{tx: tx, accountID: p.accountID})
	})
}

func (p *Postgres) Snapshot(ctx context.Context) (models.Account, error) {
	acc := models.Account{Holdings: map[string]decimal.Decimal{}}
	err := p.txm.RunRepeatableRead(ctx, func(ctx context.Context, tx pgx.Tx) error {
		t := &pgTx{tx: tx, accountID: p.accountID}
		bal, err := t.Balance(ctx)
		if err != nil {
			return err
		}
		acc.Balance = bal

		rows, err := tx.Query(ctx,
			`SELECT asset_id, quantity::text FROM holdings WHERE account_id = $1`, p.accountID)
		if err != nil {
			return errors.Wrap(err, "query holdings")
		}
		defer rows.Close()
		for rows.Next() {
			var asset, raw string
			if err := rows.Scan(&asset, &raw); err != nil {
				return errors.Wrap(err, "scan holding")
			}
			q, err := decimal.NewFromString(raw)
			if err != nil {
				return errors.Wrapf(err, "parse holding %s", asset)
			}
			acc.Holdings[asset] = q
		}
		return rows.Err()
	})
	if err != nil {
		return models.Account{}, err
	}
	return acc, nil
}

// History reads outside a transaction; a single statement is consistent on its own.
func (p *Postgres) History(ctx context.Context, limit int) ([]models.TradeRecord, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := p.txm.Conn().Query(ctx,
		`SELECT asset_id, action, quantity::text, price::text, profit_loss::text, executed_at
		   FROM trades WHERE account_id = $1 ORDER BY id DESC LIMIT $2`,
		p.accountID, lim)
	if err != nil {
		return nil, errors.Wrap(err, "query trade history")
	}
	return scanTrades(rows)
}

func (p *Postgres) Reset(ctx context.Context, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ErrNegativeAmount
	}
	return p.txm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM trades WHERE account_id = $1`, p.accountID); err != nil {
			return errors.Wrap(err, "delete trades")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM holdings WHERE account_id = $1`, p.accountID); err != nil {
			return errors.Wrap(err, "delete holdings")
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO accounts (id, balance) VALUES ($1, $2::text::numeric)
			 ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()`,
			p.accountID, balance.String())
		return errors.Wrap(err, "reset balance")
	})
}

type pgTx struct {
	tx        db.Transaction
	accountID int64
}

func (t *pgTx) Balance(ctx context.Context) (decimal.Decimal, error) {
	var raw string
	err := t.tx.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE id = $1`, t.accountID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "select balance")
	}
	return decimal.NewFromString(raw)
}

func (t *pgTx) setBalance(ctx context.Context, v decimal.Decimal) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE accounts SET balance = $2::text::numeric, updated_at = now() WHERE id = $1`,
		t.accountID, v.String())
	return errors.Wrap(err, "update balance")
}

func (t *pgTx) Credit(ctx context.Context, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	bal, err := t.Balance(ctx)
	if err != nil {
		return err
	}
	return t.setBalance(ctx, bal.Add(amount))
}

func (t *pgTx) Debit(ctx context.Context, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	bal, err := t.Balance(ctx)
	if err != nil {
		return err
	}
	if bal.LessThan(amount) {
		return ErrInsufficientFunds
	}
	return t.setBalance(ctx, bal.Sub(amount))
}

func (t *pgTx) Holding(ctx context.Context, assetID string) (decimal.Decimal, bool, error) {
	var raw string
	err := t.tx.QueryRow(ctx,
		`SELECT quantity::text FROM holdings WHERE account_id = $1 AND asset_id = $2`,
		t.accountID, assetID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, errors.Wrap(err, "select holding")
	}
	q, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, errors.Wrap(err, "parse holding")
	}
	return q, true, nil
}

func (t *pgTx) SetHolding(ctx context.Context, assetID string, qty decimal.Decimal) error {
	if qty.IsNegative() {
		return ErrNegativeAmount
	}
	if qty.IsZero() {
		_, err := t.tx.Exec(ctx,
			`DELETE FROM holdings WHERE account_id = $1 AND asset_id = $2`, t.accountID, assetID)
		return errors.Wrap(err, "delete holding")
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO holdings (account_id, asset_id, quantity) VALUES ($1, $2, $3::text::numeric)
		 ON CONFLICT (account_id, asset_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		t.accountID, assetID, qty.String())
	return errors.Wrap(err, "upsert holding")
}

func (t *pgTx) AppendTrade(ctx context.Context, rec models.TradeRecord) error {
	var pl *string
	if rec.ProfitLoss != nil {
		s := rec.ProfitLoss.String()
		pl = &s
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO trades (account_id, asset_id, action, quantity, price, profit_loss, executed_at)
		 VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6::text::numeric, $7)`,
		t.accountID, rec.AssetID, string(rec.Action), rec.Quantity.String(), rec.Price.String(), pl, rec.Timestamp)
	return errors.Wrap(err, "insert trade")
}

func (t *pgTx) Trades(ctx context.Context, assetID string) ([]models.TradeRecord, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT asset_id, action, quantity::text, price::text, profit_loss::text, executed_at
		   FROM trades WHERE account_id = $1 AND asset_id = $2 ORDER BY id`,
		t.accountID, assetID)
	if err != nil {
		return nil, errors.Wrap(err, "query trades")
	}
	return scanTrades(rows)
}

func scanTrades(rows pgx.Rows) ([]models.TradeRecord, error) {
	defer rows.Close()

	var out []models.TradeRecord
	for rows.Next() {
		var (
			action, qty, price string
			pl                 *string
			rec                models.TradeRecord
		)
		if err := rows.Scan(&rec.AssetID, &action, &qty, &price, &pl, &rec.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan trade")
		}
		rec.Action = models.TradeAction(action)
		var err error
		if rec.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, errors.Wrap(err, "parse quantity")
		}
		if rec.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrap(err, "parse price")
		}
		if pl != nil {
			v, err := decimal.NewFromString(*pl)
			if err != nil {
				return nil, errors.Wrap(err, "parse profit_loss")
			}
			rec.ProfitLoss = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
