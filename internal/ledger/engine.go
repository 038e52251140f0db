package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"sharefolio/internal/charges"
	"sharefolio/internal/clock"
	"sharefolio/internal/marketdata"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ShortTermTaxRate = decimal.RequireFromString("0.075")
	LongTermTaxRate  = decimal.RequireFromString("0.05")

	hundred = decimal.NewFromInt(100)
)

// Engine applies buy and sell transactions to the store.
type Engine struct {
	store  Store
	quotes marketdata.Source
	clock  clock.Clock
	log    *logrus.Logger
	locks  *symbolLocks
	newID  func() string
}

func NewEngine(store Store, quotes marketdata.Source, clk clock.Clock, log *logrus.Logger) *Engine {
	return &Engine{
		store:  store,
		quotes: quotes,
		clock:  clk,
		log:    log,
		locks:  newSymbolLocks(),
		newID:  func() string { return uuid.NewString() },
	}
}

// Location is the zone used for day windows.
func (e *Engine) Location() *time.Location {
	return e.clock.Now().Location()
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func (r *BuyRequest) validate() error {
	r.Symbol = normalizeSymbol(r.Symbol)
	switch {
	case r.Symbol == "":
		return validationErr("symbol is required")
	case !r.Quantity.IsPositive():
		return validationErr("quantity must be greater than zero")
	case !r.Rate.IsPositive():
		return validationErr("rate must be greater than zero")
	}
	return nil
}

func (r *SellRequest) validate() error {
	r.Symbol = normalizeSymbol(r.Symbol)
	switch {
	case r.Symbol == "":
		return validationErr("symbol is required")
	case !r.Quantity.IsPositive():
		return validationErr("sell quantity must be greater than zero")
	case !r.Rate.IsPositive():
		return validationErr("sell rate must be greater than zero")
	}
	return nil
}

func (e *Engine) txTime(date *time.Time) time.Time {
	if date != nil && !date.IsZero() {
		return *date
	}
	return e.clock.Now()
}

// replay looks up an earlier entry recorded under key. ok is false when the
// key is new. A key reused for a different transaction is rejected.
func (e *Engine) replay(ctx context.Context, key string, want ActivityEntry) (ActivityEntry, bool, error) {
	if key == "" {
		return ActivityEntry{}, false, nil
	}
	entry, err := e.store.FindActivityByKey(ctx, key)
	if errors.Is(err, ErrRecordNotFound) {
		return ActivityEntry{}, false, nil
	}
	if err != nil {
		return ActivityEntry{}, false, storeErr("look up idempotency key", err)
	}
	if entry.Type != want.Type || entry.Symbol != want.Symbol ||
		!entry.Quantity.Equal(want.Quantity) || !entry.Rate.Equal(want.Rate) {
		return ActivityEntry{}, false, validationErr("idempotency key already used for a different request")
	}
	return entry, true, nil
}

func (e *Engine) quote(ctx context.Context, symbol string) (marketdata.Quote, error) {
	quotes, err := e.quotes.FetchQuotes(ctx)
	if err != nil {
		return marketdata.Quote{}, &Error{Kind: KindDependency, Msg: "fetch market data", Err: err}
	}
	q, err := marketdata.Find(quotes, symbol)
	if err != nil {
		return marketdata.Quote{}, notFoundErr("symbol "+symbol+" not found in market data", err)
	}
	return q, nil
}

// Buy records a purchase, folding it into the symbol's weighted-average
// position.
func (e *Engine) Buy(ctx context.Context, req BuyRequest) (BuyResult, error) {
	if err := req.validate(); err != nil {
		return BuyResult{}, err
	}
	unlock := e.locks.lock(req.Symbol)
	defer unlock()

	if prev, ok, err := e.replay(ctx, req.IdempotencyKey, ActivityEntry{
		Type: Buy, Symbol: req.Symbol, Quantity: req.Quantity, Rate: req.Rate,
	}); err != nil {
		return BuyResult{}, err
	} else if ok {
		e.log.WithField("symbol", req.Symbol).Infof("buy replayed for idempotency key %s", req.IdempotencyKey)
		return BuyResult{Activity: prev, Replayed: true}, nil
	}

	// Resolve the quote before touching the store so an unknown symbol
	// leaves nothing behind.
	quote, err := e.quote(ctx, req.Symbol)
	if err != nil {
		return BuyResult{}, err
	}

	notional := req.Quantity.Mul(req.Rate)
	ch := charges.Compute(notional, req.DepositoryCharged)
	paid := notional.Add(ch.Total)
	now := e.txTime(req.Date)

	res := BuyResult{Notional: notional, Charges: ch, PaidAmount: paid, Quote: quote}
	err = e.store.WithinTx(ctx, func(s Store) error {
		pos, err := s.FindPosition(ctx, req.Symbol)
		switch {
		case errors.Is(err, ErrRecordNotFound):
			pos = Position{
				ID:           e.newID(),
				Symbol:       req.Symbol,
				Quantity:     req.Quantity,
				Rate:         req.Rate,
				Amount:       notional,
				TotalCharges: ch.Total,
				TotalAmount:  paid,
				AvgRate:      paid.Div(req.Quantity),
				CreatedAt:    now,
			}
			pos.LastTradedPrice = quote.LastTradedPrice
			pos.PriceChange = quote.PriceChange
			pos.LastUpdated = now
			pos.TradedAt = now
			if pos, err = s.CreatePosition(ctx, pos); err != nil {
				return storeErr("create position", err)
			}
		case err != nil:
			return storeErr("find position", err)
		default:
			pos.Quantity = pos.Quantity.Add(req.Quantity)
			pos.Amount = pos.Amount.Add(notional)
			pos.TotalCharges = pos.TotalCharges.Add(ch.Total)
			pos.TotalAmount = pos.TotalAmount.Add(paid)
			pos.Rate = pos.Amount.Div(pos.Quantity)
			pos.AvgRate = pos.TotalAmount.Div(pos.Quantity)
			pos.LastTradedPrice = quote.LastTradedPrice
			pos.PriceChange = quote.PriceChange
			pos.LastUpdated = now
			pos.TradedAt = now
			if pos, err = s.UpdatePosition(ctx, pos); err != nil {
				return storeErr("update position", err)
			}
		}
		res.Position = pos

		entry, err := s.AppendActivity(ctx, ActivityEntry{
			ID:                e.newID(),
			Symbol:            req.Symbol,
			Type:              Buy,
			Quantity:          req.Quantity,
			Rate:              req.Rate,
			AvgRate:           pos.AvgRate,
			Amount:            notional,
			Charges:           ch.Total,
			TotalAmount:       paid,
			DepositoryCharged: req.DepositoryCharged,
			IdempotencyKey:    req.IdempotencyKey,
			Timestamp:         now,
		})
		if err != nil {
			return storeErr("append activity", err)
		}
		res.Activity = entry
		return nil
	})
	if err != nil {
		e.log.WithField("symbol", req.Symbol).Errorf("buy failed: %v", err)
		return BuyResult{}, storeErr("buy transaction", err)
	}

	e.log.WithFields(logrus.Fields{
		"symbol":   req.Symbol,
		"quantity": req.Quantity.String(),
		"avg_rate": res.Position.AvgRate.StringFixed(2),
	}).Info("buy recorded")
	return res, nil
}

// TaxRate is the capital-gains tax rate for a sale.
func TaxRate(heldUnderOneYear bool) decimal.Decimal {
	if heldUnderOneYear {
		return ShortTermTaxRate
	}
	return LongTermTaxRate
}

// Sell realizes profit or loss on part or all of a position. The remaining
// position keeps its cost basis fields; only its quantity shrinks.
func (e *Engine) Sell(ctx context.Context, req SellRequest) (SellResult, error) {
	if err := req.validate(); err != nil {
		return SellResult{}, err
	}
	unlock := e.locks.lock(req.Symbol)
	defer unlock()

	if prev, ok, err := e.replay(ctx, req.IdempotencyKey, ActivityEntry{
		Type: Sell, Symbol: req.Symbol, Quantity: req.Quantity, Rate: req.Rate,
	}); err != nil {
		return SellResult{}, err
	} else if ok {
		e.log.WithField("symbol", req.Symbol).Infof("sell replayed for idempotency key %s", req.IdempotencyKey)
		return SellResult{Activity: prev, Replayed: true}, nil
	}

	now := e.txTime(req.Date)
	var res SellResult
	err := e.store.WithinTx(ctx, func(s Store) error {
		pos, err := s.FindPosition(ctx, req.Symbol)
		if errors.Is(err, ErrRecordNotFound) {
			return notFoundErr("no holding for "+req.Symbol, nil)
		}
		if err != nil {
			return storeErr("find position", err)
		}
		if req.Quantity.GreaterThan(pos.Quantity) {
			return &Error{
				Kind: KindInsufficientQuantity,
				Msg:  "insufficient quantity to sell: holding " + pos.Quantity.String() + ", requested " + req.Quantity.String(),
			}
		}

		res = computeSale(pos.AvgRate, req)

		if req.Quantity.Equal(pos.Quantity) {
			if err := s.DeletePosition(ctx, pos.ID, pos.Revision); err != nil {
				return storeErr("delete position", err)
			}
			res.PositionClosed = true
			res.RemainingQuantity = decimal.Zero
		} else {
			pos.Quantity = pos.Quantity.Sub(req.Quantity)
			if _, err := s.UpdatePosition(ctx, pos); err != nil {
				return storeErr("update position", err)
			}
			res.RemainingQuantity = pos.Quantity
		}

		entry, err := s.AppendActivity(ctx, ActivityEntry{
			ID:                e.newID(),
			Symbol:            req.Symbol,
			Type:              Sell,
			Quantity:          req.Quantity,
			Rate:              req.Rate,
			AvgRate:           res.Receivable.Div(req.Quantity),
			Amount:            res.GrossProceeds,
			Charges:           res.Charges.Total.Add(res.Tax),
			TotalAmount:       res.Receivable,
			ProfitLossAmount:  decimal.NullDecimal{Decimal: res.ProfitLoss, Valid: true},
			ProfitLossPercent: decimal.NullDecimal{Decimal: res.ProfitLossPercent, Valid: true},
			DepositoryCharged: req.DepositoryCharged,
			HeldUnderOneYear:  req.HeldUnderOneYear,
			IdempotencyKey:    req.IdempotencyKey,
			Timestamp:         now,
		})
		if err != nil {
			return storeErr("append activity", err)
		}
		res.Activity = entry
		return nil
	})
	if err != nil {
		if KindOf(err) == KindDependency || KindOf(err) == 0 {
			e.log.WithField("symbol", req.Symbol).Errorf("sell failed: %v", err)
		} else {
			e.log.WithField("symbol", req.Symbol).Warnf("sell rejected: %v", err)
		}
		return SellResult{}, storeErr("sell transaction", err)
	}

	e.log.WithFields(logrus.Fields{
		"symbol":      req.Symbol,
		"quantity":    req.Quantity.String(),
		"profit_loss": res.ProfitLoss.StringFixed(2),
		"closed":      res.PositionClosed,
	}).Info("sell recorded")
	return res, nil
}

// computeSale derives proceeds, tax and realized profit for selling
// req.Quantity units held at avgRate. Tax is not floored at zero, so a loss
// yields a negative tax.
func computeSale(avgRate decimal.Decimal, req SellRequest) SellResult {
	gross := req.Quantity.Mul(req.Rate)
	ch := charges.Compute(gross, req.DepositoryCharged)
	ch = charges.Breakdown{
		RegulatoryLevy: ch.RegulatoryLevy.Abs(),
		DepositoryLevy: ch.DepositoryLevy.Abs(),
		Commission:     ch.Commission.Abs(),
		Total:          ch.Total.Abs(),
	}
	net := gross.Sub(ch.Total)
	cost := avgRate.Mul(req.Quantity)
	gain := net.Sub(cost)
	rate := TaxRate(req.HeldUnderOneYear)
	tax := rate.Mul(gain)
	receivable := net.Sub(tax)
	pl := receivable.Sub(cost)
	plPct := decimal.Zero
	if !cost.IsZero() {
		plPct = pl.Div(cost).Mul(hundred)
	}
	return SellResult{
		GrossProceeds:     gross,
		Charges:           ch,
		NetProceeds:       net,
		CostBasis:         cost,
		PreTaxGain:        gain,
		TaxRate:           rate,
		Tax:               tax,
		Receivable:        receivable,
		ProfitLoss:        pl,
		ProfitLossPercent: plPct,
	}
}
