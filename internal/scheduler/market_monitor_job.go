package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/modules/signals"
)

// MarketClock reports whether the US market is open
type MarketClock interface {
	IsOpen() bool
}

// MarketMonitorJob checks watchlist tickers for breakout signals.
// Scheduled every 15 minutes on weekdays; skips silently outside
// market hours.
type MarketMonitorJob struct {
	clock     MarketClock
	signals   *signals.Service
	watchlist TickerLister
	log       zerolog.Logger
}

// NewMarketMonitorJob creates a new market monitor job
func NewMarketMonitorJob(clock MarketClock, service *signals.Service, watchlist TickerLister, log zerolog.Logger) *MarketMonitorJob {
	return &MarketMonitorJob{
		clock:     clock,
		signals:   service,
		watchlist: watchlist,
		log:       log.With().Str("job", "market_monitor").Logger(),
	}
}

// Name returns the job name
func (j *MarketMonitorJob) Name() string {
	return "market_monitor"
}

// Run checks the watchlist for breakouts when the market is open
func (j *MarketMonitorJob) Run() error {
	if !j.clock.IsOpen() {
		j.log.Debug().Msg("Market closed, skipping monitor")
		return nil
	}

	tickers, err := j.watchlist()
	if err != nil {
		return fmt.Errorf("failed to list watchlist tickers: %w", err)
	}
	if len(tickers) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	results := j.signals.CheckWatchlist(ctx, tickers)

	breakouts := 0
	for _, r := range results {
		if r.Breakout {
			breakouts++
		}
	}
	j.log.Info().
		Int("checked", len(results)).
		Int("breakouts", breakouts).
		Msg("Market monitor completed")

	return nil
}
