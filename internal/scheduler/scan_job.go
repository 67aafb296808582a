package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/modules/curator"
)

// TickerLister provides the tickers a scan run covers
type TickerLister func() ([]string, error)

// ScanJob runs a rate-limited relevance scan over a set of tickers.
// The daily job covers the active universe; the weekly deep scan also
// revisits deactivated stocks so a pivot back into AI is picked up.
type ScanJob struct {
	name    string
	batch   *curator.BatchScanner
	tickers TickerLister
	timeout time.Duration
	log     zerolog.Logger
}

// NewScanJob creates a scan job over the given ticker source
func NewScanJob(name string, batch *curator.BatchScanner, tickers TickerLister, timeout time.Duration, log zerolog.Logger) *ScanJob {
	if timeout <= 0 {
		timeout = 4 * time.Hour
	}
	return &ScanJob{
		name:    name,
		batch:   batch,
		tickers: tickers,
		timeout: timeout,
		log:     log.With().Str("job", name).Logger(),
	}
}

// Name returns the job name
func (j *ScanJob) Name() string {
	return j.name
}

// Run executes the scan
func (j *ScanJob) Run() error {
	tickers, err := j.tickers()
	if err != nil {
		return fmt.Errorf("failed to list tickers: %w", err)
	}
	if len(tickers) == 0 {
		j.log.Info().Msg("No tickers to scan")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.batch.ScanAll(ctx, tickers)
	if err != nil {
		return fmt.Errorf("scan run failed: %w", err)
	}

	j.log.Info().
		Int("scanned", result.Scanned).
		Int("failed", result.Failed).
		Int("ai_focused", result.AIFocused).
		Msg("Scan run completed")

	return nil
}
