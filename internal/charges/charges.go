// Package charges computes the regulatory, depository and broker charges
// levied on a single equity transaction.
package charges

import "github.com/shopspring/decimal"

var (
	RegulatoryRate = decimal.RequireFromString("0.00015")
	DepositoryFee  = decimal.NewFromInt(25)
	FlatCommission = decimal.NewFromInt(10)
	FlatCeiling    = decimal.NewFromInt(2500)
)

type tier struct {
	ceiling decimal.Decimal
	rate    decimal.Decimal
}

// Brackets are closed on the upper bound. Amounts above the last ceiling use
// topRate.
var tiers = []tier{
	{decimal.NewFromInt(50000), decimal.RequireFromString("0.0036")},
	{decimal.NewFromInt(500000), decimal.RequireFromString("0.0033")},
	{decimal.NewFromInt(2000000), decimal.RequireFromString("0.0031")},
	{decimal.NewFromInt(10000000), decimal.RequireFromString("0.0027")},
}

var topRate = decimal.RequireFromString("0.0024")

type Breakdown struct {
	RegulatoryLevy decimal.Decimal `json:"regulatory_levy"`
	DepositoryLevy decimal.Decimal `json:"depository_levy"`
	Commission     decimal.Decimal `json:"commission"`
	Total          decimal.Decimal `json:"total"`
}

// Compute returns the charges for a transaction of the given notional value.
// The whole amount is charged at the single bracket it falls into.
func Compute(notional decimal.Decimal, depositoryCharged bool) Breakdown {
	b := Breakdown{
		RegulatoryLevy: notional.Mul(RegulatoryRate),
		DepositoryLevy: decimal.Zero,
		Commission:     Commission(notional),
	}
	if depositoryCharged {
		b.DepositoryLevy = DepositoryFee
	}
	b.Total = b.RegulatoryLevy.Add(b.DepositoryLevy).Add(b.Commission)
	return b
}

// Commission is the broker commission for a notional amount.
func Commission(notional decimal.Decimal) decimal.Decimal {
	if notional.LessThanOrEqual(FlatCeiling) {
		return FlatCommission
	}
	for _, t := range tiers {
		if notional.LessThanOrEqual(t.ceiling) {
			return notional.Mul(t.rate)
		}
	}
	return notional.Mul(topRate)
}
