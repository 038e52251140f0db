// Package ledgertest provides in-memory collaborators for exercising the
// ledger engine without Postgres or the network.
package ledgertest

import (
	"context"
	"sync"
	"time"

	"sharefolio/internal/ledger"
	"sharefolio/internal/marketdata"

	"github.com/shopspring/decimal"
)

// Store is an in-memory ledger.Store. Fail* hooks make the next matching call
// return the given error.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	positions  []ledger.Position
	activities []ledger.ActivityEntry

	FailAppend error
	FailUpdate error
	FailFind   error

	Writes int
}

func NewStore() *Store { return &Store{} }

func (s *Store) FindPosition(ctx context.Context, symbol string) (ledger.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFind != nil {
		return ledger.Position{}, s.FailFind
	}
	for _, p := range s.positions {
		if p.Symbol == symbol {
			return p, nil
		}
	}
	return ledger.Position{}, ledger.ErrRecordNotFound
}

func (s *Store) CreatePosition(ctx context.Context, p ledger.Position) (ledger.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.positions {
		if existing.Symbol == p.Symbol {
			return ledger.Position{}, ledger.ErrRevisionConflict
		}
	}
	p.Revision = 1
	s.positions = append(s.positions, p)
	s.Writes++
	return p, nil
}

func (s *Store) UpdatePosition(ctx context.Context, p ledger.Position) (ledger.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdate != nil {
		return ledger.Position{}, s.FailUpdate
	}
	for i, existing := range s.positions {
		if existing.ID != p.ID {
			continue
		}
		if existing.Revision != p.Revision {
			return ledger.Position{}, ledger.ErrRevisionConflict
		}
		p.Revision++
		s.positions[i] = p
		s.Writes++
		return p, nil
	}
	return ledger.Position{}, ledger.ErrRecordNotFound
}

func (s *Store) DeletePosition(ctx context.Context, id string, revision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.positions {
		if existing.ID != id {
			continue
		}
		if existing.Revision != revision {
			return ledger.ErrRevisionConflict
		}
		s.positions = append(s.positions[:i:i], s.positions[i+1:]...)
		s.Writes++
		return nil
	}
	return ledger.ErrRecordNotFound
}

func inWindow(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}

func (s *Store) ListPositions(ctx context.Context, f ledger.PositionFilter) (ledger.PositionList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []ledger.Position{}
	for _, p := range s.positions {
		if f.Symbol != "" && p.Symbol != f.Symbol {
			continue
		}
		if !inWindow(p.TradedAt, f.From, f.To) {
			continue
		}
		matched = append(matched, p)
	}
	return ledger.PositionList{Data: page(matched, f.Limit, f.Offset), Total: len(matched)}, nil
}

func (s *Store) AppendActivity(ctx context.Context, e ledger.ActivityEntry) (ledger.ActivityEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAppend != nil {
		return ledger.ActivityEntry{}, s.FailAppend
	}
	s.activities = append(s.activities, e)
	s.Writes++
	return e, nil
}

func (s *Store) FindActivityByKey(ctx context.Context, key string) (ledger.ActivityEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.activities {
		if key != "" && e.IdempotencyKey == key {
			return e, nil
		}
	}
	return ledger.ActivityEntry{}, ledger.ErrRecordNotFound
}

func (s *Store) ListActivities(ctx context.Context, f ledger.ActivityFilter) (ledger.ActivityList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []ledger.ActivityEntry{}
	for _, e := range s.activities {
		if f.Symbol != "" && e.Symbol != f.Symbol {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if !inWindow(e.Timestamp, f.From, f.To) {
			continue
		}
		matched = append(matched, e)
	}
	return ledger.ActivityList{Data: page(matched, f.Limit, f.Offset), Total: len(matched)}, nil
}

func (s *Store) PurgeActivity(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.activities {
		if e.ID == id {
			s.activities = append(s.activities[:i:i], s.activities[i+1:]...)
			return nil
		}
	}
	return ledger.ErrRecordNotFound
}

// WithinTx serializes transactions and restores the previous state when fn
// fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	positions := append([]ledger.Position(nil), s.positions...)
	activities := append([]ledger.ActivityEntry(nil), s.activities...)
	writes := s.Writes
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.positions, s.activities, s.Writes = positions, activities, writes
		s.mu.Unlock()
		return err
	}
	return nil
}

// Positions returns a copy of every stored position.
func (s *Store) Positions() []ledger.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Position(nil), s.positions...)
}

// Activities returns a copy of the activity log.
func (s *Store) Activities() []ledger.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.ActivityEntry(nil), s.activities...)
}

// Quotes is a fixed market snapshot.
type Quotes struct {
	mu     sync.Mutex
	quotes map[string]marketdata.Quote
	Err    error
	Calls  int
}

func NewQuotes() *Quotes {
	return &Quotes{quotes: map[string]marketdata.Quote{}}
}

// Set records a quote for symbol and returns q for chaining.
func (q *Quotes) Set(symbol, ltp, change string) *Quotes {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.quotes[symbol] = marketdata.Quote{
		Symbol:          symbol,
		LastTradedPrice: decimal.RequireFromString(ltp),
		PriceChange:     decimal.RequireFromString(change),
	}
	return q
}

func (q *Quotes) FetchQuotes(ctx context.Context) ([]marketdata.Quote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Calls++
	if q.Err != nil {
		return nil, q.Err
	}
	out := make([]marketdata.Quote, 0, len(q.quotes))
	for _, v := range q.quotes {
		out = append(out, v)
	}
	return out, nil
}
