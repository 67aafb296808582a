package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/deepdiver/internal/clients/finnhub"
	"github.com/aristath/deepdiver/internal/modules/curator"
	"github.com/aristath/deepdiver/internal/modules/journal"
	"github.com/aristath/deepdiver/internal/modules/signals"
	"github.com/aristath/deepdiver/internal/modules/universe"
)

type fakeMarketData struct {
	profiles map[string]*finnhub.Profile
}

func (m *fakeMarketData) CompanyProfile(ctx context.Context, ticker string) (*finnhub.Profile, error) {
	p, ok := m.profiles[ticker]
	if !ok {
		return nil, fmt.Errorf("no profile found for %s", ticker)
	}
	return p, nil
}

func (m *fakeMarketData) CompanyNews(ctx context.Context, ticker string, from, to time.Time) ([]finnhub.NewsArticle, error) {
	return nil, nil
}

type fakeUniverse struct {
	stocks  map[string]*universe.Stock
	applied []universe.ScanResult
}

func (u *fakeUniverse) Get(ticker string) (*universe.Stock, error) {
	return u.stocks[ticker], nil
}

func (u *fakeUniverse) ApplyScanResult(result universe.ScanResult) error {
	u.applied = append(u.applied, result)
	return nil
}

type fakeJournal struct {
	entries []journal.Entry
}

func (j *fakeJournal) Append(entry journal.Entry) (*journal.Entry, error) {
	j.entries = append(j.entries, entry)
	return &entry, nil
}

type fakeClock struct {
	open bool
}

func (c *fakeClock) IsOpen() bool { return c.open }

type fakeCandles struct {
	data map[string]*finnhub.Candles
}

func (f *fakeCandles) DailyCandles(ctx context.Context, ticker string, from, to time.Time) (*finnhub.Candles, error) {
	c, ok := f.data[ticker]
	if !ok {
		return &finnhub.Candles{Status: "no_data"}, nil
	}
	return c, nil
}

func TestScanJob_Run(t *testing.T) {
	store := &fakeUniverse{stocks: map[string]*universe.Stock{
		"NVDA": {Ticker: "NVDA", CompanyName: "NVIDIA", IsActive: true},
	}}
	scanner := curator.NewScanner(curator.ScannerConfig{
		Market: &fakeMarketData{profiles: map[string]*finnhub.Profile{
			"NVDA": {Name: "NVIDIA", Description: "artificial intelligence gpu"},
		}},
		Universe: store,
		Journal:  &fakeJournal{},
	}, zerolog.Nop())
	batch := curator.NewBatchScanner(scanner, 60000, 2, zerolog.Nop())

	job := NewScanJob("universe_scan", batch, func() ([]string, error) {
		return []string{"NVDA"}, nil
	}, time.Minute, zerolog.Nop())

	assert.Equal(t, "universe_scan", job.Name())
	require.NoError(t, job.Run())
	assert.Len(t, store.applied, 1)
}

func TestScanJob_EmptyUniverse(t *testing.T) {
	job := NewScanJob("universe_scan", nil, func() ([]string, error) {
		return nil, nil
	}, time.Minute, zerolog.Nop())

	require.NoError(t, job.Run())
}

func TestScanJob_TickerListError(t *testing.T) {
	job := NewScanJob("universe_scan", nil, func() ([]string, error) {
		return nil, fmt.Errorf("db locked")
	}, time.Minute, zerolog.Nop())

	require.Error(t, job.Run())
}

func TestMarketMonitorJob_SkipsWhenClosed(t *testing.T) {
	job := NewMarketMonitorJob(&fakeClock{open: false}, nil, func() ([]string, error) {
		return nil, fmt.Errorf("should not be called")
	}, zerolog.Nop())

	require.NoError(t, job.Run())
}

func TestMarketMonitorJob_ChecksWatchlist(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	service := signals.NewService(&fakeCandles{data: map[string]*finnhub.Candles{
		"NVDA": {Close: closes, Status: "ok"},
	}}, &fakeJournal{}, zerolog.Nop())

	job := NewMarketMonitorJob(&fakeClock{open: true}, service, func() ([]string, error) {
		return []string{"NVDA"}, nil
	}, zerolog.Nop())

	assert.Equal(t, "market_monitor", job.Name())
	require.NoError(t, job.Run())
}

type fakeStream struct {
	symbols      map[string]bool
	subscribed   []string
	unsubscribed []string
}

func (f *fakeStream) Subscribe(symbol string) error {
	f.symbols[symbol] = true
	f.subscribed = append(f.subscribed, symbol)
	return nil
}

func (f *fakeStream) Unsubscribe(symbol string) error {
	delete(f.symbols, symbol)
	f.unsubscribed = append(f.unsubscribed, symbol)
	return nil
}

func (f *fakeStream) Symbols() []string {
	symbols := make([]string, 0, len(f.symbols))
	for s := range f.symbols {
		symbols = append(symbols, s)
	}
	return symbols
}

func TestStreamSyncJob_Run(t *testing.T) {
	stream := &fakeStream{symbols: map[string]bool{"TSLA": true, "NVDA": true}}

	job := NewStreamSyncJob(stream, func() ([]string, error) {
		return []string{"NVDA", "MSFT"}, nil
	}, zerolog.Nop())

	assert.Equal(t, "watchlist_stream_sync", job.Name())
	require.NoError(t, job.Run())

	// TSLA dropped off the watchlist, MSFT joined, NVDA untouched
	assert.Equal(t, []string{"TSLA"}, stream.unsubscribed)
	assert.Equal(t, []string{"MSFT"}, stream.subscribed)
	assert.ElementsMatch(t, []string{"NVDA", "MSFT"}, stream.Symbols())
}

func TestStreamSyncJob_ListError(t *testing.T) {
	stream := &fakeStream{symbols: map[string]bool{}}

	job := NewStreamSyncJob(stream, func() ([]string, error) {
		return nil, fmt.Errorf("db locked")
	}, zerolog.Nop())

	require.Error(t, job.Run())
	assert.Empty(t, stream.subscribed)
}
