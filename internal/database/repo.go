package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sharefolio/internal/ledger"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Repo is the Postgres-backed ledger.Store. A Repo returned inside WithinTx
// runs every call on that transaction.
type Repo struct {
	db  *sqlx.DB
	q   sqlx.ExtContext
	tx  *sqlx.Tx
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, q: db, log: log}
}

var _ ledger.Store = (*Repo)(nil)

const positionCols = `id, symbol, quantity, rate, avg_rate, amount, total_charges, total_amount, last_traded_price, price_change, last_updated, traded_at, created_at, revision`

const activityCols = `id, symbol, type, quantity, rate, avg_rate, amount, charges, total_amount, profit_loss_amount, profit_loss_percent, depository_charged, held_under_one_year, COALESCE(idempotency_key, '') AS idempotency_key, timestamp`

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (r *Repo) WithinTx(ctx context.Context, fn func(ledger.Store) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Repo{db: r.db, q: tx, tx: tx, log: r.log}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Warnf("rollback failed: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (r *Repo) FindPosition(ctx context.Context, symbol string) (ledger.Position, error) {
	q := `SELECT ` + positionCols + ` FROM positions WHERE symbol = $1`
	if r.tx != nil {
		q += ` FOR UPDATE`
	}
	var p ledger.Position
	if err := sqlx.GetContext(ctx, r.q, &p, q, symbol); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Position{}, ledger.ErrRecordNotFound
		}
		return ledger.Position{}, err
	}
	return p, nil
}

func (r *Repo) CreatePosition(ctx context.Context, p ledger.Position) (ledger.Position, error) {
	q := `INSERT INTO positions (id, symbol, quantity, rate, avg_rate, amount, total_charges, total_amount, last_traded_price, price_change, last_updated, traded_at, created_at, revision)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11, $12, $13, 1)
		RETURNING ` + positionCols
	var out ledger.Position
	err := sqlx.GetContext(ctx, r.q, &out, q,
		p.ID, p.Symbol, p.Quantity.String(), p.Rate.String(), p.AvgRate.String(), p.Amount.String(),
		p.TotalCharges.String(), p.TotalAmount.String(), p.LastTradedPrice.String(), p.PriceChange.String(),
		p.LastUpdated, p.TradedAt, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.Position{}, ledger.ErrRevisionConflict
		}
		return ledger.Position{}, err
	}
	return out, nil
}

func (r *Repo) UpdatePosition(ctx context.Context, p ledger.Position) (ledger.Position, error) {
	q := `UPDATE positions SET quantity = $1::numeric, rate = $2::numeric, avg_rate = $3::numeric, amount = $4::numeric,
		total_charges = $5::numeric, total_amount = $6::numeric, last_traded_price = $7::numeric, price_change = $8::numeric,
		last_updated = $9, traded_at = $10, revision = revision + 1
		WHERE id = $11 AND revision = $12
		RETURNING ` + positionCols
	var out ledger.Position
	err := sqlx.GetContext(ctx, r.q, &out, q,
		p.Quantity.String(), p.Rate.String(), p.AvgRate.String(), p.Amount.String(),
		p.TotalCharges.String(), p.TotalAmount.String(), p.LastTradedPrice.String(), p.PriceChange.String(),
		p.LastUpdated, p.TradedAt, p.ID, p.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Position{}, ledger.ErrRevisionConflict
	}
	if err != nil {
		return ledger.Position{}, err
	}
	return out, nil
}

func (r *Repo) DeletePosition(ctx context.Context, id string, revision int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM positions WHERE id = $1 AND revision = $2`, id, revision)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrRevisionConflict
	}
	return nil
}

// where accumulates numbered Postgres placeholders.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *where) page(limit, offset int) string {
	w.args = append(w.args, limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}

func (r *Repo) ListPositions(ctx context.Context, f ledger.PositionFilter) (ledger.PositionList, error) {
	w := &where{}
	if f.Symbol != "" {
		w.add("symbol = $%d", f.Symbol)
	}
	if f.From != nil {
		w.add("traded_at >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("traded_at < $%d", *f.To)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, `SELECT COUNT(*) FROM positions`+w.String(), w.args...); err != nil {
		return ledger.PositionList{}, err
	}

	q := `SELECT ` + positionCols + ` FROM positions` + w.String() + ` ORDER BY created_at ASC, id ASC` + w.page(f.Limit, f.Offset)
	rows, err := r.q.QueryxContext(ctx, q, w.args...)
	if err != nil {
		return ledger.PositionList{}, err
	}
	defer rows.Close()
	res := []ledger.Position{}
	for rows.Next() {
		var p ledger.Position
		if err := rows.StructScan(&p); err != nil {
			r.log.Warnf("scan position failed: %v", err)
			continue
		}
		res = append(res, p)
	}
	return ledger.PositionList{Data: res, Total: total}, rows.Err()
}

func (r *Repo) AppendActivity(ctx context.Context, e ledger.ActivityEntry) (ledger.ActivityEntry, error) {
	q := `INSERT INTO activities (id, symbol, type, quantity, rate, avg_rate, amount, charges, total_amount,
			profit_loss_amount, profit_loss_percent, depository_charged, held_under_one_year, idempotency_key, timestamp)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric,
			$10::numeric, $11::numeric, $12, $13, NULLIF($14, ''), $15)
		RETURNING ` + activityCols
	var out ledger.ActivityEntry
	err := sqlx.GetContext(ctx, r.q, &out, q,
		e.ID, e.Symbol, string(e.Type), e.Quantity.String(), e.Rate.String(), e.AvgRate.String(),
		e.Amount.String(), e.Charges.String(), e.TotalAmount.String(),
		e.ProfitLossAmount, e.ProfitLossPercent, e.DepositoryCharged, e.HeldUnderOneYear,
		e.IdempotencyKey, e.Timestamp)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ActivityEntry{}, ledger.ErrRevisionConflict
		}
		return ledger.ActivityEntry{}, err
	}
	return out, nil
}

func (r *Repo) FindActivityByKey(ctx context.Context, key string) (ledger.ActivityEntry, error) {
	var e ledger.ActivityEntry
	err := sqlx.GetContext(ctx, r.q, &e, `SELECT `+activityCols+` FROM activities WHERE idempotency_key = $1 LIMIT 1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ActivityEntry{}, ledger.ErrRecordNotFound
	}
	return e, err
}

func (r *Repo) ListActivities(ctx context.Context, f ledger.ActivityFilter) (ledger.ActivityList, error) {
	w := &where{}
	if f.Symbol != "" {
		w.add("symbol = $%d", f.Symbol)
	}
	if f.Type != "" {
		w.add("type = $%d", string(f.Type))
	}
	if f.From != nil {
		w.add("timestamp >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("timestamp < $%d", *f.To)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, `SELECT COUNT(*) FROM activities`+w.String(), w.args...); err != nil {
		return ledger.ActivityList{}, err
	}

	q := `SELECT ` + activityCols + ` FROM activities` + w.String() + ` ORDER BY seq ASC` + w.page(f.Limit, f.Offset)
	rows, err := r.q.QueryxContext(ctx, q, w.args...)
	if err != nil {
		return ledger.ActivityList{}, err
	}
	defer rows.Close()
	res := []ledger.ActivityEntry{}
	for rows.Next() {
		var e ledger.ActivityEntry
		if err := rows.StructScan(&e); err != nil {
			r.log.Warnf("scan activity failed: %v", err)
			continue
		}
		res = append(res, e)
	}
	return ledger.ActivityList{Data: res, Total: total}, rows.Err()
}

func (r *Repo) PurgeActivity(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id)
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

// ReplacePosition overwrites or removes the stored position for symbol with
// one rebuilt from the activity log. A nil p deletes it.
func (r *Repo) ReplacePosition(ctx context.Context, symbol string, p *ledger.Position) error {
	return r.WithinTx(ctx, func(s ledger.Store) error {
		tr := s.(*Repo)
		if _, err := tr.q.ExecContext(ctx, `DELETE FROM positions WHERE symbol = $1`, symbol); err != nil {
			return err
		}
		if p == nil {
			return nil
		}
		_, err := tr.CreatePosition(ctx, *p)
		return err
	})
}
