package ledger

import (
	"context"
	"errors"

	"sharefolio/internal/marketdata"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
	pageSize     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Holdings lists live positions.
func (e *Engine) Holdings(ctx context.Context, f PositionFilter) (PositionList, error) {
	f.Symbol = normalizeSymbol(f.Symbol)
	f.Limit = clampLimit(f.Limit)
	if f.Offset < 0 {
		return PositionList{}, validationErr("offset must not be negative")
	}
	list, err := e.store.ListPositions(ctx, f)
	if err != nil {
		return PositionList{}, storeErr("list positions", err)
	}
	return list, nil
}

// Activity lists activity entries.
func (e *Engine) Activity(ctx context.Context, f ActivityFilter) (ActivityList, error) {
	f.Symbol = normalizeSymbol(f.Symbol)
	f.Limit = clampLimit(f.Limit)
	if f.Type != "" && !f.Type.Valid() {
		return ActivityList{}, validationErr("type must be buy or sell")
	}
	if f.Offset < 0 {
		return ActivityList{}, validationErr("offset must not be negative")
	}
	list, err := e.store.ListActivities(ctx, f)
	if err != nil {
		return ActivityList{}, storeErr("list activity", err)
	}
	return list, nil
}

// AllPositions pages through every live position.
func (e *Engine) AllPositions(ctx context.Context) ([]Position, error) {
	all := []Position{}
	for offset := 0; ; offset += pageSize {
		list, err := e.store.ListPositions(ctx, PositionFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, storeErr("list positions", err)
		}
		all = append(all, list.Data...)
		if len(list.Data) < pageSize || len(all) >= list.Total {
			return all, nil
		}
	}
}

// AllActivity pages through the entire activity log in store order.
func (e *Engine) AllActivity(ctx context.Context) ([]ActivityEntry, error) {
	all := []ActivityEntry{}
	for offset := 0; ; offset += pageSize {
		list, err := e.store.ListActivities(ctx, ActivityFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, storeErr("list activity", err)
		}
		all = append(all, list.Data...)
		if len(list.Data) < pageSize || len(all) >= list.Total {
			return all, nil
		}
	}
}

// PurgeActivity administratively removes one activity entry.
func (e *Engine) PurgeActivity(ctx context.Context, id string) error {
	if id == "" {
		return validationErr("id is required")
	}
	err := e.store.PurgeActivity(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return notFoundErr("activity "+id+" not found", nil)
	}
	if err != nil {
		return storeErr("purge activity", err)
	}
	e.log.Warnf("activity %s purged", id)
	return nil
}

// RefreshQuotes copies the latest market quote onto every live position that
// appears in the snapshot and returns how many positions were updated.
// Positions changed concurrently are skipped until the next run.
func (e *Engine) RefreshQuotes(ctx context.Context) (int, error) {
	positions, err := e.AllPositions(ctx)
	if err != nil {
		return 0, err
	}
	if len(positions) == 0 {
		return 0, nil
	}
	quotes, err := e.quotes.FetchQuotes(ctx)
	if err != nil {
		return 0, &Error{Kind: KindDependency, Msg: "fetch market data", Err: err}
	}

	updated := 0
	for _, p := range positions {
		q, err := marketdata.Find(quotes, p.Symbol)
		if err != nil {
			e.log.Warnf("no quote for held symbol %s", p.Symbol)
			continue
		}
		if e.refreshOne(ctx, p.Symbol, q) {
			updated++
		}
	}
	return updated, nil
}

func (e *Engine) refreshOne(ctx context.Context, symbol string, q marketdata.Quote) bool {
	unlock := e.locks.lock(symbol)
	defer unlock()

	p, err := e.store.FindPosition(ctx, symbol)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			e.log.Warnf("refresh %s: %v", symbol, err)
		}
		return false
	}
	p.LastTradedPrice = q.LastTradedPrice
	p.PriceChange = q.PriceChange
	p.LastUpdated = e.clock.Now()
	if _, err := e.store.UpdatePosition(ctx, p); err != nil {
		e.log.Warnf("refresh %s: %v", symbol, err)
		return false
	}
	return true
}
