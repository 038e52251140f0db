package database

import (
	"time"

	"github.com/shopspring/decimal"
)

type WatchItem struct {
	ID              string          `db:"id" json:"id"`
	Symbol          string          `db:"symbol" json:"symbol"`
	LastTradedPrice decimal.Decimal `db:"last_traded_price" json:"last_traded_price"`
	PriceChange     decimal.Decimal `db:"price_change" json:"price_change"`
	PercentChange   decimal.Decimal `db:"percent_change" json:"percent_change"`
	Open            decimal.Decimal `db:"open" json:"open"`
	High            decimal.Decimal `db:"high" json:"high"`
	Low             decimal.Decimal `db:"low" json:"low"`
	Volume          decimal.Decimal `db:"volume" json:"volume"`
	PrevClose       decimal.Decimal `db:"prev_close" json:"prev_close"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}
