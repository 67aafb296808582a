package curator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// BatchResult summarizes a batch scan run.
type BatchResult struct {
	Scanned   int `json:"scanned"`
	Failed    int `json:"failed"`
	AIFocused int `json:"ai_focused"` // stocks that came out with has_ai_focus
}

// BatchScanner fans a scan out over many tickers while respecting the
// Finnhub rate limit. Each ticker costs two API calls (profile + news),
// so the ticker rate is half the configured call rate.
type BatchScanner struct {
	scanner        *Scanner
	callsPerMinute int
	concurrency    int
	log            zerolog.Logger
}

// NewBatchScanner creates a new batch scanner
func NewBatchScanner(scanner *Scanner, callsPerMinute, concurrency int, log zerolog.Logger) *BatchScanner {
	if callsPerMinute <= 0 {
		callsPerMinute = 60
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &BatchScanner{
		scanner:        scanner,
		callsPerMinute: callsPerMinute,
		concurrency:    concurrency,
		log:            log.With().Str("component", "curator_batch").Logger(),
	}
}

// ScanAll scans the given tickers. Individual failures are counted, not
// fatal: one delisted ticker must not abort a 3000-stock sweep. The run
// stops early only when the context is cancelled.
func (b *BatchScanner) ScanAll(ctx context.Context, tickers []string) (*BatchResult, error) {
	if len(tickers) == 0 {
		return &BatchResult{}, nil
	}

	// Two API calls per ticker
	tickersPerMinute := b.callsPerMinute / 2
	if tickersPerMinute < 1 {
		tickersPerMinute = 1
	}
	tickerInterval := time.Minute / time.Duration(tickersPerMinute)

	b.log.Info().
		Int("tickers", len(tickers)).
		Dur("interval", tickerInterval).
		Int("concurrency", b.concurrency).
		Msg("Starting batch scan")

	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	var mu sync.Mutex
	result := &BatchResult{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, symbol := range tickers {
		// Pace submissions against the rate limit
		select {
		case <-gctx.Done():
			_ = g.Wait()
			return result, fmt.Errorf("batch scan cancelled: %w", gctx.Err())
		case <-ticker.C:
		}

		symbol := symbol
		g.Go(func() error {
			scan, err := b.scanner.Scan(gctx, symbol)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				b.log.Warn().Err(err).Str("ticker", symbol).Msg("Scan failed")
				return nil
			}
			result.Scanned++
			if scan.HasAI {
				result.AIFocused++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	b.log.Info().
		Int("scanned", result.Scanned).
		Int("failed", result.Failed).
		Int("ai_focused", result.AIFocused).
		Msg("Batch scan completed")

	return result, nil
}
