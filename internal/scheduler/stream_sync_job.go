package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"
)

// TradeSubscriber manages live trade subscriptions
type TradeSubscriber interface {
	Subscribe(symbol string) error
	Unsubscribe(symbol string) error
	Symbols() []string
}

// StreamSyncJob reconciles the live trade stream's subscriptions with the
// current watchlist, so promotions and removals take effect without a
// restart.
type StreamSyncJob struct {
	stream    TradeSubscriber
	watchlist TickerLister
	log       zerolog.Logger
}

// NewStreamSyncJob creates a new stream sync job
func NewStreamSyncJob(stream TradeSubscriber, watchlist TickerLister, log zerolog.Logger) *StreamSyncJob {
	return &StreamSyncJob{
		stream:    stream,
		watchlist: watchlist,
		log:       log.With().Str("job", "watchlist_stream_sync").Logger(),
	}
}

// Run executes the stream sync job
func (j *StreamSyncJob) Run() error {
	tickers, err := j.watchlist()
	if err != nil {
		return fmt.Errorf("failed to list watchlist tickers: %w", err)
	}

	want := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		want[ticker] = true
	}

	subscribed := make(map[string]bool)
	removed := 0
	for _, symbol := range j.stream.Symbols() {
		subscribed[symbol] = true
		if want[symbol] {
			continue
		}

		if err := j.stream.Unsubscribe(symbol); err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to unsubscribe")
			continue
		}
		removed++
	}

	added := 0
	for _, ticker := range tickers {
		if subscribed[ticker] {
			continue
		}

		if err := j.stream.Subscribe(ticker); err != nil {
			j.log.Warn().Err(err).Str("symbol", ticker).Msg("Failed to subscribe")
			continue
		}
		added++
	}

	if added > 0 || removed > 0 {
		j.log.Info().
			Int("added", added).
			Int("removed", removed).
			Int("watched", len(tickers)).
			Msg("Stream subscriptions synced")
	}

	return nil
}

// Name returns the job name for scheduler
func (j *StreamSyncJob) Name() string {
	return "watchlist_stream_sync"
}
