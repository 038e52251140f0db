package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"sharefolio/internal/clock"
	"sharefolio/internal/config"
	"sharefolio/internal/database"
	"sharefolio/internal/ledger"
	"sharefolio/internal/marketdata"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// reconcile replays the activity log and reports positions that drifted from
// it. With RECONCILE_APPLY=true drifted positions are rewritten.
func main() {
	logger := logrus.New()
	cfg := config.Load(logger)
	logger.SetLevel(cfg.LogLevel)

	if cfg.PostgresURL == "" {
		logger.Fatal("POSTGRES_URL is required")
	}
	apply, _ := strconv.ParseBool(os.Getenv("RECONCILE_APPLY"))

	db, err := sqlx.Connect("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	repo := database.New(db, logger)
	engine := ledger.NewEngine(repo, marketdata.NewScraper(cfg.MarketDataURL, logger), clock.System{Loc: cfg.Location}, logger)

	entries, err := engine.AllActivity(ctx)
	if err != nil {
		logger.Fatalf("load activity: %v", err)
	}
	stored, err := engine.AllPositions(ctx)
	if err != nil {
		logger.Fatalf("load positions: %v", err)
	}

	replayed, anomalies := ledger.Replay(entries)
	for _, a := range anomalies {
		logger.Warnf("activity anomaly: %s", a)
	}

	drifts := ledger.Diff(stored, replayed)
	logger.Infof("replayed %d activity entries: %d positions stored, %d expected, %d drifted",
		len(entries), len(stored), len(replayed), len(drifts))

	for _, d := range drifts {
		logger.WithFields(logrus.Fields{"symbol": d.Symbol, "fields": d.Fields}).Warn("position drift")
		if !apply {
			continue
		}
		var fixed *ledger.Position
		if d.Expected != nil {
			p := *d.Expected
			p.ID = uuid.NewString()
			if d.Stored != nil {
				p.ID = d.Stored.ID
				p.CreatedAt = d.Stored.CreatedAt
				p.LastTradedPrice = d.Stored.LastTradedPrice
				p.PriceChange = d.Stored.PriceChange
			}
			fixed = &p
		}
		if err := repo.ReplacePosition(ctx, d.Symbol, fixed); err != nil {
			logger.Errorf("rewrite %s: %v", d.Symbol, err)
			continue
		}
		logger.Infof("rewrote %s from activity log", d.Symbol)
	}

	if len(drifts) > 0 && !apply {
		logger.Info("dry run; set RECONCILE_APPLY=true to rewrite drifted positions")
	}
}
