package database

import (
	"context"
	"time"

	"sharefolio/internal/ledger"
	"sharefolio/internal/marketdata"

	"github.com/jmoiron/sqlx"
)

const watchCols = `id, symbol, last_traded_price, price_change, percent_change, open, high, low, volume, prev_close, updated_at`

// UpsertWatch stores the quote snapshot for a symbol. created reports whether
// a new row was inserted rather than an existing one refreshed.
func (r *Repo) UpsertWatch(ctx context.Context, id string, q marketdata.Quote, ts time.Time) (WatchItem, bool, error) {
	upsert := `INSERT INTO watchlist (id, symbol, last_traded_price, price_change, percent_change, open, high, low, volume, prev_close, updated_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11)
		ON CONFLICT (symbol) DO UPDATE SET
			last_traded_price = EXCLUDED.last_traded_price, price_change = EXCLUDED.price_change,
			percent_change = EXCLUDED.percent_change, open = EXCLUDED.open, high = EXCLUDED.high,
			low = EXCLUDED.low, volume = EXCLUDED.volume, prev_close = EXCLUDED.prev_close,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + watchCols + `, (xmax = 0) AS inserted`

	var row struct {
		WatchItem
		Inserted bool `db:"inserted"`
	}
	err := sqlx.GetContext(ctx, r.q, &row, upsert,
		id, q.Symbol, q.LastTradedPrice.String(), q.PriceChange.String(), q.PercentChange.String(),
		q.Open.String(), q.High.String(), q.Low.String(), q.Volume.String(), q.PrevClose.String(), ts)
	if err != nil {
		return WatchItem{}, false, err
	}
	return row.WatchItem, row.Inserted, nil
}

func (r *Repo) ListWatch(ctx context.Context, symbol string, limit, offset int) ([]WatchItem, int, error) {
	w := &where{}
	if symbol != "" {
		w.add("symbol = $%d", symbol)
	}
	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, `SELECT COUNT(*) FROM watchlist`+w.String(), w.args...); err != nil {
		return nil, 0, err
	}
	res := []WatchItem{}
	q := `SELECT ` + watchCols + ` FROM watchlist` + w.String() + ` ORDER BY updated_at DESC` + w.page(limit, offset)
	if err := sqlx.SelectContext(ctx, r.q, &res, q, w.args...); err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

func (r *Repo) DeleteWatch(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM watchlist WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrRecordNotFound
	}
	return nil
}
