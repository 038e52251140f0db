package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// comparePlaces is the precision used when comparing stored positions against
// replayed ones; divisions are not exact.
const comparePlaces = 8

// Replay rebuilds positions from the activity log using the same arithmetic
// as Buy and Sell. Entries must be in chronological order. Anomalies lists
// sells that had no position or oversold it.
func Replay(entries []ActivityEntry) (positions map[string]Position, anomalies []string) {
	positions = map[string]Position{}
	for _, e := range entries {
		p, held := positions[e.Symbol]
		switch e.Type {
		case Buy:
			if !held {
				p = Position{
					Symbol:       e.Symbol,
					Quantity:     e.Quantity,
					Rate:         e.Rate,
					Amount:       e.Amount,
					TotalCharges: e.Charges,
					TotalAmount:  e.TotalAmount,
					AvgRate:      e.TotalAmount.Div(e.Quantity),
					CreatedAt:    e.Timestamp,
				}
			} else {
				p.Quantity = p.Quantity.Add(e.Quantity)
				p.Amount = p.Amount.Add(e.Amount)
				p.TotalCharges = p.TotalCharges.Add(e.Charges)
				p.TotalAmount = p.TotalAmount.Add(e.TotalAmount)
				p.Rate = p.Amount.Div(p.Quantity)
				p.AvgRate = p.TotalAmount.Div(p.Quantity)
			}
			p.LastUpdated = e.Timestamp
			p.TradedAt = e.Timestamp
			positions[e.Symbol] = p
		case Sell:
			if !held {
				anomalies = append(anomalies, fmt.Sprintf("%s: sell %s of %s with no position", e.ID, e.Quantity, e.Symbol))
				continue
			}
			if e.Quantity.GreaterThan(p.Quantity) {
				anomalies = append(anomalies, fmt.Sprintf("%s: sell %s of %s exceeds held %s", e.ID, e.Quantity, e.Symbol, p.Quantity))
			}
			p.Quantity = p.Quantity.Sub(e.Quantity)
			if !p.Quantity.IsPositive() {
				delete(positions, e.Symbol)
				continue
			}
			positions[e.Symbol] = p
		default:
			anomalies = append(anomalies, fmt.Sprintf("%s: unknown type %q", e.ID, e.Type))
		}
	}
	return positions, anomalies
}

// Drift describes a symbol whose stored position disagrees with the replayed
// activity log. Stored or Expected is nil when the position is missing on
// that side.
type Drift struct {
	Symbol   string
	Stored   *Position
	Expected *Position
	Fields   []string
}

// Diff compares stored positions with replayed ones, sorted by symbol.
func Diff(stored []Position, replayed map[string]Position) []Drift {
	seen := map[string]bool{}
	drifts := []Drift{}
	for i := range stored {
		s := stored[i]
		seen[s.Symbol] = true
		exp, ok := replayed[s.Symbol]
		if !ok {
			drifts = append(drifts, Drift{Symbol: s.Symbol, Stored: &s, Fields: []string{"position"}})
			continue
		}
		if fields := differingFields(s, exp); len(fields) > 0 {
			e := exp
			drifts = append(drifts, Drift{Symbol: s.Symbol, Stored: &s, Expected: &e, Fields: fields})
		}
	}
	for sym, exp := range replayed {
		if seen[sym] {
			continue
		}
		e := exp
		drifts = append(drifts, Drift{Symbol: sym, Expected: &e, Fields: []string{"position"}})
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].Symbol < drifts[j].Symbol })
	return drifts
}

func differingFields(a, b Position) []string {
	pairs := []struct {
		name string
		x, y decimal.Decimal
	}{
		{"quantity", a.Quantity, b.Quantity},
		{"rate", a.Rate, b.Rate},
		{"avg_rate", a.AvgRate, b.AvgRate},
		{"amount", a.Amount, b.Amount},
		{"total_charges", a.TotalCharges, b.TotalCharges},
		{"total_amount", a.TotalAmount, b.TotalAmount},
	}
	out := []string{}
	for _, p := range pairs {
		if !p.x.Round(comparePlaces).Equal(p.y.Round(comparePlaces)) {
			out = append(out, p.name)
		}
	}
	return out
}
