// Package portfolio derives unrealized profit and loss from live positions.
package portfolio

import (
	"sharefolio/internal/ledger"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type UnrealizedLine struct {
	Symbol          string          `json:"symbol"`
	Quantity        decimal.Decimal `json:"quantity"`
	AvgRate         decimal.Decimal `json:"avg_rate"`
	LastTradedPrice decimal.Decimal `json:"last_traded_price"`
	Amount          decimal.Decimal `json:"unrealized"`
	Percent         decimal.Decimal `json:"unrealized_percent"`
}

type Summary struct {
	Holdings         int             `json:"holdings"`
	TotalInvestment  decimal.Decimal `json:"total_investment"`
	MarketValue      decimal.Decimal `json:"market_value"`
	ProfitLossAmount decimal.Decimal `json:"profit_loss_amount"`
	ProfitLossPct    decimal.Decimal `json:"profit_loss_percent"`
}

// Unrealized reports (ltp - avgRate) * quantity for each position.
func Unrealized(positions []ledger.Position) []UnrealizedLine {
	lines := make([]UnrealizedLine, 0, len(positions))
	for _, p := range positions {
		diff := p.LastTradedPrice.Sub(p.AvgRate)
		pct := decimal.Zero
		if !p.AvgRate.IsZero() {
			pct = diff.Div(p.AvgRate).Mul(hundred)
		}
		lines = append(lines, UnrealizedLine{
			Symbol:          p.Symbol,
			Quantity:        p.Quantity,
			AvgRate:         p.AvgRate,
			LastTradedPrice: p.LastTradedPrice,
			Amount:          diff.Mul(p.Quantity),
			Percent:         pct,
		})
	}
	return lines
}

// Summarize totals the portfolio. An empty portfolio yields a zeroed summary.
func Summarize(positions []ledger.Position) Summary {
	s := Summary{
		Holdings:         len(positions),
		TotalInvestment:  decimal.Zero,
		MarketValue:      decimal.Zero,
		ProfitLossAmount: decimal.Zero,
		ProfitLossPct:    decimal.Zero,
	}
	for _, p := range positions {
		s.TotalInvestment = s.TotalInvestment.Add(p.TotalAmount)
		s.MarketValue = s.MarketValue.Add(p.LastTradedPrice.Mul(p.Quantity))
	}
	s.ProfitLossAmount = s.MarketValue.Sub(s.TotalInvestment)
	if !s.TotalInvestment.IsZero() {
		s.ProfitLossPct = s.ProfitLossAmount.Div(s.TotalInvestment).Mul(hundred)
	}
	return s
}
