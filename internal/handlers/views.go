package handlers

import (
	"time"

	"sharefolio/internal/database"
	"sharefolio/internal/ledger"
	"sharefolio/internal/marketdata"
	"sharefolio/internal/portfolio"

	"github.com/shopspring/decimal"
)

// All amounts leave the API as fixed two-decimal strings.
func fx(v decimal.Decimal) string { return v.StringFixed(2) }

func fxNull(v decimal.NullDecimal) *string {
	if !v.Valid {
		return nil
	}
	s := fx(v.Decimal)
	return &s
}

type positionView struct {
	ID              string    `json:"id"`
	Symbol          string    `json:"symbol"`
	Quantity        string    `json:"quantity"`
	Rate            string    `json:"rate"`
	AvgRate         string    `json:"avg_rate"`
	Amount          string    `json:"amount"`
	TotalCharges    string    `json:"total_charges"`
	TotalAmount     string    `json:"total_amount"`
	LastTradedPrice string    `json:"last_traded_price"`
	PriceChange     string    `json:"price_change"`
	LastUpdated     time.Time `json:"last_updated"`
	TradedAt        time.Time `json:"traded_at"`
}

func toPositionView(p ledger.Position) positionView {
	return positionView{
		ID:              p.ID,
		Symbol:          p.Symbol,
		Quantity:        fx(p.Quantity),
		Rate:            fx(p.Rate),
		AvgRate:         fx(p.AvgRate),
		Amount:          fx(p.Amount),
		TotalCharges:    fx(p.TotalCharges),
		TotalAmount:     fx(p.TotalAmount),
		LastTradedPrice: fx(p.LastTradedPrice),
		PriceChange:     fx(p.PriceChange),
		LastUpdated:     p.LastUpdated,
		TradedAt:        p.TradedAt,
	}
}

type activityView struct {
	ID                string    `json:"id"`
	Symbol            string    `json:"symbol"`
	Type              string    `json:"type"`
	Quantity          string    `json:"quantity"`
	Rate              string    `json:"rate"`
	AvgRate           string    `json:"avg_rate"`
	Amount            string    `json:"amount"`
	Charges           string    `json:"charges"`
	TotalAmount       string    `json:"total_amount"`
	ProfitLossAmount  *string   `json:"profit_loss_amount,omitempty"`
	ProfitLossPercent *string   `json:"profit_loss_percent,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

func toActivityView(e ledger.ActivityEntry) activityView {
	return activityView{
		ID:                e.ID,
		Symbol:            e.Symbol,
		Type:              string(e.Type),
		Quantity:          fx(e.Quantity),
		Rate:              fx(e.Rate),
		AvgRate:           fx(e.AvgRate),
		Amount:            fx(e.Amount),
		Charges:           fx(e.Charges),
		TotalAmount:       fx(e.TotalAmount),
		ProfitLossAmount:  fxNull(e.ProfitLossAmount),
		ProfitLossPercent: fxNull(e.ProfitLossPercent),
		Timestamp:         e.Timestamp,
	}
}

func buyView(r ledger.BuyResult) map[string]interface{} {
	return map[string]interface{}{
		"symbol":            r.Position.Symbol,
		"notional":          fx(r.Notional),
		"regulatory_levy":   fx(r.Charges.RegulatoryLevy),
		"depository_levy":   fx(r.Charges.DepositoryLevy),
		"commission":        fx(r.Charges.Commission),
		"total_charges":     fx(r.Charges.Total),
		"total_amount":      fx(r.PaidAmount),
		"total_quantity":    fx(r.Position.Quantity),
		"avg_rate":          fx(r.Position.AvgRate),
		"last_traded_price": fx(r.Quote.LastTradedPrice),
		"price_change":      fx(r.Quote.PriceChange),
		"activity_id":       r.Activity.ID,
	}
}

func sellView(r ledger.SellResult) map[string]interface{} {
	return map[string]interface{}{
		"symbol":              r.Activity.Symbol,
		"profit_loss_amount":  fx(r.ProfitLoss),
		"profit_loss_percent": fx(r.ProfitLossPercent),
		"gross_proceeds":      fx(r.GrossProceeds),
		"regulatory_levy":     fx(r.Charges.RegulatoryLevy),
		"depository_levy":     fx(r.Charges.DepositoryLevy),
		"commission":          fx(r.Charges.Commission),
		"total_charges":       fx(r.Charges.Total),
		"net_proceeds":        fx(r.NetProceeds),
		"cost_basis":          fx(r.CostBasis),
		"pre_tax_gain":        fx(r.PreTaxGain),
		"tax_rate":            fx(r.TaxRate.Mul(decimal.NewFromInt(100))),
		"tax":                 fx(r.Tax),
		"receivable":          fx(r.Receivable),
		"position_closed":     r.PositionClosed,
		"remaining_quantity":  fx(r.RemainingQuantity),
		"activity_id":         r.Activity.ID,
	}
}

type unrealizedView struct {
	Symbol            string `json:"symbol"`
	Quantity          string `json:"quantity"`
	AvgRate           string `json:"avg_rate"`
	LastTradedPrice   string `json:"last_traded_price"`
	Unrealized        string `json:"unrealized"`
	UnrealizedPercent string `json:"unrealized_percent"`
}

func toUnrealizedView(l portfolio.UnrealizedLine) unrealizedView {
	return unrealizedView{
		Symbol:            l.Symbol,
		Quantity:          fx(l.Quantity),
		AvgRate:           fx(l.AvgRate),
		LastTradedPrice:   fx(l.LastTradedPrice),
		Unrealized:        fx(l.Amount),
		UnrealizedPercent: fx(l.Percent),
	}
}

func summaryView(s portfolio.Summary) map[string]interface{} {
	return map[string]interface{}{
		"holdings":            s.Holdings,
		"total_investment":    fx(s.TotalInvestment),
		"market_value":        fx(s.MarketValue),
		"profit_loss_amount":  fx(s.ProfitLossAmount),
		"profit_loss_percent": fx(s.ProfitLossPct),
	}
}

func quoteView(q marketdata.Quote) map[string]string {
	return map[string]string{
		"symbol":         q.Symbol,
		"ltp":            fx(q.LastTradedPrice),
		"point_change":   fx(q.PriceChange),
		"percent_change": fx(q.PercentChange),
		"open":           fx(q.Open),
		"high":           fx(q.High),
		"low":            fx(q.Low),
		"volume":         fx(q.Volume),
		"prev_close":     fx(q.PrevClose),
	}
}

func watchView(w database.WatchItem) map[string]interface{} {
	return map[string]interface{}{
		"id":             w.ID,
		"symbol":         w.Symbol,
		"ltp":            fx(w.LastTradedPrice),
		"point_change":   fx(w.PriceChange),
		"percent_change": fx(w.PercentChange),
		"open":           fx(w.Open),
		"high":           fx(w.High),
		"low":            fx(w.Low),
		"volume":         fx(w.Volume),
		"prev_close":     fx(w.PrevClose),
		"updated_at":     w.UpdatedAt,
	}
}
