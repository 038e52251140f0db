package marketdata

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrSymbolNotFound = errors.New("symbol not found in market data")

// Quote is one row of the live-trading snapshot.
type Quote struct {
	Symbol          string          `json:"symbol"`
	LastTradedPrice decimal.Decimal `json:"ltp"`
	PriceChange     decimal.Decimal `json:"point_change"`
	PercentChange   decimal.Decimal `json:"percent_change"`
	Open            decimal.Decimal `json:"open"`
	High            decimal.Decimal `json:"high"`
	Low             decimal.Decimal `json:"low"`
	Volume          decimal.Decimal `json:"volume"`
	PrevClose       decimal.Decimal `json:"prev_close"`
}

// Source returns a full-universe quote snapshot. There is no per-symbol
// fetch; callers look their symbol up with Find.
type Source interface {
	FetchQuotes(ctx context.Context) ([]Quote, error)
}

// Find does a linear, case-insensitive lookup of symbol in quotes.
func Find(quotes []Quote, symbol string) (Quote, error) {
	for _, q := range quotes {
		if strings.EqualFold(q.Symbol, symbol) {
			return q, nil
		}
	}
	return Quote{}, ErrSymbolNotFound
}
