package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sharefolio/internal/clock"
	"sharefolio/internal/ledger"
	"sharefolio/internal/ledger/ledgertest"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), append([]interface{}{"expected %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func newEngine(t *testing.T) (*ledger.Engine, *ledgertest.Store, *ledgertest.Quotes) {
	t.Helper()
	store := ledgertest.NewStore()
	quotes := ledgertest.NewQuotes().Set("NABIL", "110", "2.5").Set("UPPER", "200", "-1")
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return ledger.NewEngine(store, quotes, clock.Fixed{T: t0}, log), store, quotes
}

func buy(t *testing.T, e *ledger.Engine, symbol, qty, rate string) ledger.BuyResult {
	t.Helper()
	res, err := e.Buy(context.Background(), ledger.BuyRequest{Symbol: symbol, Quantity: d(qty), Rate: d(rate)})
	require.NoError(t, err)
	return res
}

func TestBuy_NewPosition(t *testing.T) {
	e, store, _ := newEngine(t)

	res := buy(t, e, "nabil", "10", "100")

	assertDec(t, "1000", res.Notional)
	assertDec(t, "0.15", res.Charges.RegulatoryLevy)
	assertDec(t, "10", res.Charges.Commission)
	assertDec(t, "10.15", res.Charges.Total)
	assertDec(t, "1010.15", res.PaidAmount)
	assertDec(t, "110", res.Quote.LastTradedPrice)

	p := res.Position
	assert.Equal(t, "NABIL", p.Symbol)
	assertDec(t, "10", p.Quantity)
	assertDec(t, "100", p.Rate)
	assertDec(t, "101.015", p.AvgRate)
	assertDec(t, "1000", p.Amount)
	assertDec(t, "10.15", p.TotalCharges)
	assertDec(t, "1010.15", p.TotalAmount)
	assertDec(t, "110", p.LastTradedPrice)
	assertDec(t, "2.5", p.PriceChange)
	assert.Equal(t, t0, p.LastUpdated)

	acts := store.Activities()
	require.Len(t, acts, 1)
	a := acts[0]
	assert.Equal(t, ledger.Buy, a.Type)
	assertDec(t, "10", a.Quantity)
	assertDec(t, "100", a.Rate)
	assertDec(t, "101.015", a.AvgRate)
	assertDec(t, "1000", a.Amount)
	assertDec(t, "10.15", a.Charges)
	assertDec(t, "1010.15", a.TotalAmount)
	assert.False(t, a.ProfitLossAmount.Valid)
}

func TestBuy_WeightedAverageAcrossBuys(t *testing.T) {
	e, store, _ := newEngine(t)

	buy(t, e, "NABIL", "10", "100")
	res := buy(t, e, "NABIL", "5", "120")

	// second buy: 600 notional, 0.09 + 10 charges
	assertDec(t, "10.09", res.Charges.Total)
	assertDec(t, "610.09", res.PaidAmount)

	p := res.Position
	assertDec(t, "15", p.Quantity)
	assertDec(t, "1600", p.Amount)
	assertDec(t, "20.24", p.TotalCharges)
	assertDec(t, "1620.24", p.TotalAmount)
	assertDec(t, "108.016", p.AvgRate)
	assert.Equal(t, d("1600").Div(d("15")).String(), p.Rate.String())

	positions := store.Positions()
	require.Len(t, positions, 1)
	assertDec(t, "15", positions[0].Quantity)

	acts := store.Activities()
	require.Len(t, acts, 2)
	assertDec(t, "10.09", acts[1].Charges, "activity charges are per transaction")
	assertDec(t, "610.09", acts[1].TotalAmount)
	assertDec(t, "108.016", acts[1].AvgRate)
}

func TestBuy_DepositoryCharge(t *testing.T) {
	e, _, _ := newEngine(t)
	res, err := e.Buy(context.Background(), ledger.BuyRequest{
		Symbol: "NABIL", Quantity: d("10"), Rate: d("100"), DepositoryCharged: true,
	})
	require.NoError(t, err)
	assertDec(t, "25", res.Charges.DepositoryLevy)
	assertDec(t, "35.15", res.Charges.Total)
	assertDec(t, "103.515", res.Position.AvgRate)
}

func TestBuy_EffectiveDate(t *testing.T) {
	e, store, _ := newEngine(t)
	date := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	_, err := e.Buy(context.Background(), ledger.BuyRequest{Symbol: "NABIL", Quantity: d("1"), Rate: d("100"), Date: &date})
	require.NoError(t, err)
	assert.Equal(t, date, store.Activities()[0].Timestamp)
	assert.Equal(t, date, store.Positions()[0].LastUpdated)
	assert.Equal(t, date, store.Positions()[0].TradedAt)
}

func TestBuy_Validation(t *testing.T) {
	e, store, _ := newEngine(t)
	cases := []ledger.BuyRequest{
		{Symbol: "", Quantity: d("1"), Rate: d("1")},
		{Symbol: "NABIL", Quantity: d("0"), Rate: d("1")},
		{Symbol: "NABIL", Quantity: d("1"), Rate: d("-1")},
	}
	for _, req := range cases {
		_, err := e.Buy(context.Background(), req)
		assert.True(t, errors.Is(err, ledger.ErrValidation), "%+v: %v", req, err)
	}
	assert.Zero(t, store.Writes)
}

func TestBuy_UnknownSymbol(t *testing.T) {
	e, store, _ := newEngine(t)
	_, err := e.Buy(context.Background(), ledger.BuyRequest{Symbol: "NOPE", Quantity: d("1"), Rate: d("1")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
	assert.Zero(t, store.Writes)
}

func TestBuy_MarketDataFailure(t *testing.T) {
	e, store, quotes := newEngine(t)
	quotes.Err = errors.New("timeout")
	_, err := e.Buy(context.Background(), ledger.BuyRequest{Symbol: "NABIL", Quantity: d("1"), Rate: d("1")})
	assert.True(t, errors.Is(err, ledger.ErrDependency))
	assert.Equal(t, ledger.KindDependency, ledger.KindOf(err))
	assert.Zero(t, store.Writes)
}

func TestBuy_AppendFailureRollsBack(t *testing.T) {
	e, store, _ := newEngine(t)
	store.FailAppend = errors.New("connection reset")

	_, err := e.Buy(context.Background(), ledger.BuyRequest{Symbol: "NABIL", Quantity: d("1"), Rate: d("100")})
	assert.True(t, errors.Is(err, ledger.ErrDependency))
	assert.Empty(t, store.Positions())
	assert.Empty(t, store.Activities())
}

func TestBuy_RevisionConflict(t *testing.T) {
	e, store, _ := newEngine(t)
	buy(t, e, "NABIL", "1", "100")
	store.FailUpdate = ledger.ErrRevisionConflict

	_, err := e.Buy(context.Background(), ledger.BuyRequest{Symbol: "NABIL", Quantity: d("1"), Rate: d("100")})
	assert.True(t, errors.Is(err, ledger.ErrConflict))
	assert.Len(t, store.Activities(), 1)
}

func TestBuy_IdempotencyKey(t *testing.T) {
	e, store, _ := newEngine(t)
	req := ledger.BuyRequest{Symbol: "NABIL", Quantity: d("10"), Rate: d("100"), IdempotencyKey: "k-1"}

	first, err := e.Buy(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := e.Buy(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Activity.ID, second.Activity.ID)

	assert.Len(t, store.Activities(), 1)
	assertDec(t, "10", store.Positions()[0].Quantity)

	_, err = e.Sell(context.Background(), ledger.SellRequest{Symbol: "NABIL", Quantity: d("1"), Rate: d("100"), IdempotencyKey: "k-1"})
	assert.True(t, errors.Is(err, ledger.ErrValidation))
}

func TestBuy_IdempotencyKeyReusedForDifferentRequest(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.Buy(ctx, ledger.BuyRequest{Symbol: "NABIL", Quantity: d("10"), Rate: d("100"), IdempotencyKey: "K"})
	require.NoError(t, err)

	cases := []ledger.BuyRequest{
		{Symbol: "UPPER", Quantity: d("3"), Rate: d("200"), IdempotencyKey: "K"},
		{Symbol: "NABIL", Quantity: d("11"), Rate: d("100"), IdempotencyKey: "K"},
		{Symbol: "NABIL", Quantity: d("10"), Rate: d("101"), IdempotencyKey: "K"},
	}
	for _, req := range cases {
		res, err := e.Buy(ctx, req)
		assert.True(t, errors.Is(err, ledger.ErrValidation), "%s %s@%s: %v", req.Symbol, req.Quantity, req.Rate, err)
		assert.False(t, res.Replayed)
	}

	res, err := e.Buy(ctx, ledger.BuyRequest{Symbol: "nabil", Quantity: d("10.0"), Rate: d("100"), IdempotencyKey: "K"})
	require.NoError(t, err)
	assert.True(t, res.Replayed)

	assert.Len(t, store.Activities(), 1)
	require.Len(t, store.Positions(), 1)
	assert.Equal(t, "NABIL", store.Positions()[0].Symbol)
}

func TestBuy_ConcurrentSameSymbol(t *testing.T) {
	e, store, _ := newEngine(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Buy(context.Background(), ledger.BuyRequest{Symbol: "NABIL", Quantity: d("1"), Rate: d("100")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	positions := store.Positions()
	require.Len(t, positions, 1)
	assertDec(t, "20", positions[0].Quantity)
	assert.Len(t, store.Activities(), 20)
}

func TestSell_FullPositionExample(t *testing.T) {
	e, store, _ := newEngine(t)
	buy(t, e, "NABIL", "10", "100")

	res, err := e.Sell(context.Background(), ledger.SellRequest{Symbol: "NABIL", Quantity: d("10"), Rate: d("120")})
	require.NoError(t, err)

	assertDec(t, "1200", res.GrossProceeds)
	assertDec(t, "0.18", res.Charges.RegulatoryLevy)
	assertDec(t, "10", res.Charges.Commission)
	assertDec(t, "10.18", res.Charges.Total)
	assertDec(t, "1189.82", res.NetProceeds)
	assertDec(t, "1010.15", res.CostBasis)
	assertDec(t, "179.67", res.PreTaxGain)
	assertDec(t, "0.05", res.TaxRate)
	assertDec(t, "8.9835", res.Tax)
	assertDec(t, "1180.8365", res.Receivable)
	assertDec(t, "170.6865", res.ProfitLoss)
	assert.Equal(t, "170.69", res.ProfitLoss.StringFixed(2))
	assert.Equal(t, "16.90", res.ProfitLossPercent.StringFixed(2))
	assert.True(t, res.PositionClosed)
	assert.True(t, res.RemainingQuantity.IsZero())

	assert.Empty(t, store.Positions())

	acts := store.Activities()
	require.Len(t, acts, 2)
	a := acts[1]
	assert.Equal(t, ledger.Sell, a.Type)
	assertDec(t, "10", a.Quantity)
	assertDec(t, "120", a.Rate)
	assertDec(t, "118.08365", a.AvgRate)
	assertDec(t, "1200", a.Amount)
	assertDec(t, "19.1635", a.Charges)
	assertDec(t, "1180.8365", a.TotalAmount)
	require.True(t, a.ProfitLossAmount.Valid)
	assertDec(t, "170.6865", a.ProfitLossAmount.Decimal)
	require.True(t, a.ProfitLossPercent.Valid)
}

func TestSell_ShortTermRate(t *testing.T) {
	e, _, _ := newEngine(t)
	buy(t, e, "NABIL", "10", "100")

	res, err := e.Sell(context.Background(), ledger.SellRequest{
		Symbol: "NABIL", Quantity: d("10"), Rate: d("120"), HeldUnderOneYear: true,
	})
	require.NoError(t, err)
	assertDec(t, "0.075", res.TaxRate)
	assertDec(t, "13.47525", res.Tax)
}

func TestSell_LossYieldsNegativeTax(t *testing.T) {
	e, _, _ := newEngine(t)
	buy(t, e, "NABIL", "10", "100")

	res, err := e.Sell(context.Background(), ledger.SellRequest{
		Symbol: "NABIL", Quantity: d("10"), Rate: d("90"), HeldUnderOneYear: true,
	})
	require.NoError(t, err)

	assertDec(t, "10.135", res.Charges.Total)
	assertDec(t, "889.865", res.NetProceeds)
	assertDec(t, "-120.285", res.PreTaxGain)
	// no floor: the loss produces a negative tax that raises the receivable
	assertDec(t, "-9.021375", res.Tax)
	assert.True(t, res.Receivable.GreaterThan(res.NetProceeds))
	assertDec(t, "898.886375", res.Receivable)
	assertDec(t, "-111.263625", res.ProfitLoss)
	assert.True(t, res.ProfitLossPercent.IsNegative())
}

func TestSell_PartialKeepsCostBasis(t *testing.T) {
	e, store, _ := newEngine(t)
	buy(t, e, "NABIL", "10", "100")

	res, err := e.Sell(context.Background(), ledger.SellRequest{Symbol: "NABIL", Quantity: d("4"), Rate: d("120")})
	require.NoError(t, err)
	assert.False(t, res.PositionClosed)
	assertDec(t, "6", res.RemainingQuantity)

	positions := store.Positions()
	require.Len(t, positions, 1)
	p := positions[0]
	assertDec(t, "6", p.Quantity)
	assertDec(t, "1000", p.Amount)
	assertDec(t, "1010.15", p.TotalAmount)
	assertDec(t, "10.15", p.TotalCharges)
	assertDec(t, "101.015", p.AvgRate)
	assertDec(t, "100", p.Rate)
}

func TestSell_InsufficientQuantity(t *testing.T) {
	e, store, _ := newEngine(t)
	buy(t, e, "NABIL", "10", "100")
	writes := store.Writes

	_, err := e.Sell(context.Background(), ledger.SellRequest{Symbol: "NABIL", Quantity: d("11"), Rate: d("120")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientQuantity))
	assert.Equal(t, writes, store.Writes)
	assertDec(t, "10", store.Positions()[0].Quantity)
	assert.Len(t, store.Activities(), 1)
}

func TestSell_NoPosition(t *testing.T) {
	e, store, _ := newEngine(t)
	_, err := e.Sell(context.Background(), ledger.SellRequest{Symbol: "NABIL", Quantity: d("1"), Rate: d("120")})
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
	assert.Zero(t, store.Writes)
}

func TestSell_Validation(t *testing.T) {
	e, _, _ := newEngine(t)
	_, err := e.Sell(context.Background(), ledger.SellRequest{Symbol: "NABIL", Quantity: d("0"), Rate: d("1")})
	assert.True(t, errors.Is(err, ledger.ErrValidation))
	_, err = e.Sell(context.Background(), ledger.SellRequest{Symbol: "NABIL", Quantity: d("1")})
	assert.True(t, errors.Is(err, ledger.ErrValidation))
}

func TestSell_AppendFailureRollsBack(t *testing.T) {
	e, store, _ := newEngine(t)
	buy(t, e, "NABIL", "10", "100")
	store.FailAppend = errors.New("disk full")

	_, err := e.Sell(context.Background(), ledger.SellRequest{Symbol: "NABIL", Quantity: d("10"), Rate: d("120")})
	assert.True(t, errors.Is(err, ledger.ErrDependency))
	require.Len(t, store.Positions(), 1)
	assertDec(t, "10", store.Positions()[0].Quantity)
}

func TestSell_Idempotent(t *testing.T) {
	e, store, _ := newEngine(t)
	buy(t, e, "NABIL", "10", "100")
	req := ledger.SellRequest{Symbol: "NABIL", Quantity: d("4"), Rate: d("120"), IdempotencyKey: "s-1"}

	_, err := e.Sell(context.Background(), req)
	require.NoError(t, err)
	res, err := e.Sell(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assertDec(t, "6", store.Positions()[0].Quantity)
}

func TestActivityFilters(t *testing.T) {
	e, _, _ := newEngine(t)
	day1 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()
	_, err := e.Buy(ctx, ledger.BuyRequest{Symbol: "NABIL", Quantity: d("10"), Rate: d("100"), Date: &day1})
	require.NoError(t, err)
	_, err = e.Buy(ctx, ledger.BuyRequest{Symbol: "UPPER", Quantity: d("10"), Rate: d("100"), Date: &day2})
	require.NoError(t, err)
	_, err = e.Sell(ctx, ledger.SellRequest{Symbol: "NABIL", Quantity: d("5"), Rate: d("100"), Date: &day2})
	require.NoError(t, err)

	from, to := clock.DayBounds(day2, e.Location())
	list, err := e.Activity(ctx, ledger.ActivityFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)

	list, err = e.Activity(ctx, ledger.ActivityFilter{Symbol: "nabil", Type: ledger.Sell})
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, ledger.Sell, list.Data[0].Type)

	list, err = e.Activity(ctx, ledger.ActivityFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "UPPER", list.Data[0].Symbol)

	_, err = e.Activity(ctx, ledger.ActivityFilter{Type: "hold"})
	assert.True(t, errors.Is(err, ledger.ErrValidation))
}

func TestHoldingsAndPurge(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()
	buy(t, e, "NABIL", "10", "100")
	buy(t, e, "UPPER", "3", "200")

	list, err := e.Holdings(ctx, ledger.PositionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)

	list, err = e.Holdings(ctx, ledger.PositionFilter{Symbol: "upper"})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assertDec(t, "3", list.Data[0].Quantity)

	id := store.Activities()[0].ID
	require.NoError(t, e.PurgeActivity(ctx, id))
	assert.Len(t, store.Activities(), 1)
	assert.True(t, errors.Is(e.PurgeActivity(ctx, id), ledger.ErrNotFound))
}

func TestRefreshQuotes(t *testing.T) {
	e, store, quotes := newEngine(t)
	buy(t, e, "NABIL", "10", "100")
	buy(t, e, "UPPER", "1", "200")
	quotes.Set("NABIL", "150", "40")

	n, err := e.RefreshQuotes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, p := range store.Positions() {
		if p.Symbol == "NABIL" {
			assertDec(t, "150", p.LastTradedPrice)
			assertDec(t, "40", p.PriceChange)
			assertDec(t, "101.015", p.AvgRate)
		}
	}
}

func TestRefreshQuotes_KeepsTradeDay(t *testing.T) {
	e, _, quotes := newEngine(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	_, err := e.Buy(ctx, ledger.BuyRequest{Symbol: "NABIL", Quantity: d("1"), Rate: d("100"), Date: &date})
	require.NoError(t, err)

	from, to := clock.DayBounds(date, time.UTC)
	filter := ledger.PositionFilter{From: &from, To: &to}

	list, err := e.Holdings(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	quotes.Set("NABIL", "150", "40")
	n, err := e.RefreshQuotes(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	list, err = e.Holdings(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	p := list.Data[0]
	assert.Equal(t, date, p.TradedAt)
	assert.Equal(t, t0, p.LastUpdated)
	assertDec(t, "150", p.LastTradedPrice)
}
