package ledger

import (
	"time"

	"sharefolio/internal/charges"
	"sharefolio/internal/marketdata"

	"github.com/shopspring/decimal"
)

type TxType string

const (
	Buy  TxType = "buy"
	Sell TxType = "sell"
)

func (t TxType) Valid() bool { return t == Buy || t == Sell }

// Position is the live aggregated holding for one symbol. A position with a
// non-positive quantity is never stored; it is deleted instead.
type Position struct {
	ID              string          `db:"id" json:"id"`
	Symbol          string          `db:"symbol" json:"symbol"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	Rate            decimal.Decimal `db:"rate" json:"rate"`
	AvgRate         decimal.Decimal `db:"avg_rate" json:"avg_rate"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	TotalCharges    decimal.Decimal `db:"total_charges" json:"total_charges"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	LastTradedPrice decimal.Decimal `db:"last_traded_price" json:"last_traded_price"`
	PriceChange     decimal.Decimal `db:"price_change" json:"price_change"`
	LastUpdated     time.Time       `db:"last_updated" json:"last_updated"`
	// TradedAt is the effective time of the latest buy. Quote refreshes leave
	// it alone.
	TradedAt  time.Time `db:"traded_at" json:"traded_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	// Revision is bumped by the store on every update and checked on write.
	Revision int64 `db:"revision" json:"revision"`
}

// ActivityEntry is an immutable record of one transaction.
type ActivityEntry struct {
	ID                string              `db:"id" json:"id"`
	Symbol            string              `db:"symbol" json:"symbol"`
	Type              TxType              `db:"type" json:"type"`
	Quantity          decimal.Decimal     `db:"quantity" json:"quantity"`
	Rate              decimal.Decimal     `db:"rate" json:"rate"`
	AvgRate           decimal.Decimal     `db:"avg_rate" json:"avg_rate"`
	Amount            decimal.Decimal     `db:"amount" json:"amount"`
	Charges           decimal.Decimal     `db:"charges" json:"charges"`
	TotalAmount       decimal.Decimal     `db:"total_amount" json:"total_amount"`
	ProfitLossAmount  decimal.NullDecimal `db:"profit_loss_amount" json:"profit_loss_amount"`
	ProfitLossPercent decimal.NullDecimal `db:"profit_loss_percent" json:"profit_loss_percent"`
	DepositoryCharged bool                `db:"depository_charged" json:"depository_charged"`
	HeldUnderOneYear  bool                `db:"held_under_one_year" json:"held_under_one_year"`
	IdempotencyKey    string              `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Timestamp         time.Time           `db:"timestamp" json:"timestamp"`
}

type BuyRequest struct {
	Symbol            string
	Quantity          decimal.Decimal
	Rate              decimal.Decimal
	Date              *time.Time
	DepositoryCharged bool
	IdempotencyKey    string
}

type BuyResult struct {
	Notional   decimal.Decimal
	Charges    charges.Breakdown
	PaidAmount decimal.Decimal
	Position   Position
	Quote      marketdata.Quote
	Activity   ActivityEntry
	// Replayed is set when the idempotency key matched an earlier entry. Only
	// Activity is populated in that case.
	Replayed bool
}

type SellRequest struct {
	Symbol            string
	Quantity          decimal.Decimal
	Rate              decimal.Decimal
	Date              *time.Time
	DepositoryCharged bool
	HeldUnderOneYear  bool
	IdempotencyKey    string
}

type SellResult struct {
	GrossProceeds     decimal.Decimal
	Charges           charges.Breakdown
	NetProceeds       decimal.Decimal
	CostBasis         decimal.Decimal
	PreTaxGain        decimal.Decimal
	TaxRate           decimal.Decimal
	Tax               decimal.Decimal
	Receivable        decimal.Decimal
	ProfitLoss        decimal.Decimal
	ProfitLossPercent decimal.Decimal
	PositionClosed    bool
	RemainingQuantity decimal.Decimal
	Activity          ActivityEntry
	Replayed          bool
}

// PositionFilter narrows a holdings listing. From/To bound TradedAt as a
// half-open window.
type PositionFilter struct {
	Symbol string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type ActivityFilter struct {
	Symbol string
	Type   TxType
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type PositionList struct {
	Data  []Position
	Total int
}

type ActivityList struct {
	Data  []ActivityEntry
	Total int
}
