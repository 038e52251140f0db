package ledger_test

import (
	"context"
	"testing"

	"sharefolio/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayMatchesEngine(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()

	buy(t, e, "NABIL", "10", "100")
	buy(t, e, "NABIL", "5", "120")
	_, err := e.Sell(ctx, ledger.SellRequest{Symbol: "NABIL", Quantity: d("6"), Rate: d("130")})
	require.NoError(t, err)
	buy(t, e, "NABIL", "2", "90")
	buy(t, e, "UPPER", "3", "200")
	_, err = e.Sell(ctx, ledger.SellRequest{Symbol: "UPPER", Quantity: d("3"), Rate: d("210")})
	require.NoError(t, err)

	replayed, anomalies := ledger.Replay(store.Activities())
	assert.Empty(t, anomalies)
	require.Len(t, replayed, 1)

	stored := store.Positions()
	assert.Empty(t, ledger.Diff(stored, replayed))

	p := replayed["NABIL"]
	assertDec(t, "11", p.Quantity)
	assert.True(t, p.AvgRate.Round(8).Equal(stored[0].AvgRate.Round(8)))
}

func TestDiffReportsDrift(t *testing.T) {
	e, store, _ := newEngine(t)
	buy(t, e, "NABIL", "10", "100")
	buy(t, e, "UPPER", "1", "200")

	acts := store.Activities()
	// lose the UPPER entry, as if the append after the position write failed
	replayed, _ := ledger.Replay(acts[:1])

	stored := store.Positions()
	stored[0].Quantity = d("9")

	drifts := ledger.Diff(stored, replayed)
	require.Len(t, drifts, 2)
	assert.Equal(t, "NABIL", drifts[0].Symbol)
	assert.Contains(t, drifts[0].Fields, "quantity")
	assert.Equal(t, "UPPER", drifts[1].Symbol)
	assert.Nil(t, drifts[1].Expected)
}

func TestReplayAnomalies(t *testing.T) {
	entries := []ledger.ActivityEntry{
		{ID: "a", Symbol: "NABIL", Type: ledger.Sell, Quantity: d("1")},
		{ID: "b", Symbol: "NABIL", Type: ledger.Buy, Quantity: d("1"), Rate: d("100"), Amount: d("100"), Charges: d("10.015"), TotalAmount: d("110.015")},
		{ID: "c", Symbol: "NABIL", Type: ledger.Sell, Quantity: d("2")},
	}
	positions, anomalies := ledger.Replay(entries)
	assert.Empty(t, positions)
	assert.Len(t, anomalies, 2)
}
