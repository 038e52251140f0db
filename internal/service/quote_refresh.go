package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Refresher copies current market quotes onto held positions.
type Refresher interface {
	RefreshQuotes(ctx context.Context) (int, error)
}

// QuoteRefresher periodically refreshes last traded prices of live positions
// so reporting reads don't need a market-data round trip.
type QuoteRefresher struct {
	engine  Refresher
	log     *logrus.Logger
	timeout time.Duration
}

func NewQuoteRefresher(e Refresher, log *logrus.Logger) *QuoteRefresher {
	return &QuoteRefresher{engine: e, log: log, timeout: time.Minute}
}

// RunOnce performs a single refresh bounded by the refresher's timeout.
func (p *QuoteRefresher) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	n, err := p.engine.RefreshQuotes(ctx)
	if err != nil {
		p.log.Warnf("quote refresh failed: %v", err)
		return
	}
	p.log.Debugf("refreshed quotes on %d positions", n)
}

func (p *QuoteRefresher) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.log.Info("quote refresher stopping")
				return
			case <-ticker.C:
				p.RunOnce(ctx)
			}
		}
	}()
}
