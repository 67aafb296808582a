package signals

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/deepdiver/internal/clients/finnhub"
	"github.com/aristath/deepdiver/internal/modules/journal"
)

type fakeCandles struct {
	data map[string]*finnhub.Candles
	err  error
}

func (f *fakeCandles) DailyCandles(ctx context.Context, ticker string, from, to time.Time) (*finnhub.Candles, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.data[ticker]
	if !ok {
		return &finnhub.Candles{Status: "no_data"}, nil
	}
	return c, nil
}

type fakeJournal struct {
	entries []journal.Entry
}

func (j *fakeJournal) Append(entry journal.Entry) (*journal.Entry, error) {
	j.entries = append(j.entries, entry)
	return &entry, nil
}

// flatThenSpike builds a flat series with a sharp rally at the end, which
// closes above the upper Bollinger band with high RSI.
func flatThenSpike() *finnhub.Candles {
	closes := make([]float64, 0, 60)
	for i := 0; i < 50; i++ {
		closes = append(closes, 100+0.1*float64(i%3))
	}
	for i := 0; i < 10; i++ {
		closes = append(closes, 101+3*float64(i))
	}
	return &finnhub.Candles{Close: closes, Status: "ok"}
}

// flatSeries never leaves the band
func flatSeries() *finnhub.Candles {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 0.1*float64(i%3)
	}
	return &finnhub.Candles{Close: closes, Status: "ok"}
}

func TestAnalyze_Breakout(t *testing.T) {
	source := &fakeCandles{data: map[string]*finnhub.Candles{"NVDA": flatThenSpike()}}
	service := NewService(source, &fakeJournal{}, zerolog.Nop())

	analysis, err := service.Analyze(context.Background(), "nvda")
	require.NoError(t, err)

	assert.Equal(t, "NVDA", analysis.Ticker)
	require.NotNil(t, analysis.Bollinger)
	require.NotNil(t, analysis.RSI)
	assert.True(t, analysis.Price > analysis.Bollinger.Upper)
	assert.True(t, *analysis.RSI >= rsiConfirmLevel)
	assert.True(t, analysis.Breakout)
	require.NotNil(t, analysis.BollingerPosition)
	assert.Equal(t, 1.0, *analysis.BollingerPosition)
}

func TestAnalyze_NoBreakoutOnFlatSeries(t *testing.T) {
	source := &fakeCandles{data: map[string]*finnhub.Candles{"KO": flatSeries()}}
	service := NewService(source, &fakeJournal{}, zerolog.Nop())

	analysis, err := service.Analyze(context.Background(), "KO")
	require.NoError(t, err)

	assert.False(t, analysis.Breakout)
}

func TestAnalyze_NoData(t *testing.T) {
	service := NewService(&fakeCandles{data: map[string]*finnhub.Candles{}}, &fakeJournal{}, zerolog.Nop())

	_, err := service.Analyze(context.Background(), "GHOST")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candle data")
}

func TestAnalyze_ShortHistoryHasNoBands(t *testing.T) {
	source := &fakeCandles{data: map[string]*finnhub.Candles{
		"NEW": {Close: []float64{100, 101, 102}, Status: "ok"},
	}}
	service := NewService(source, &fakeJournal{}, zerolog.Nop())

	analysis, err := service.Analyze(context.Background(), "NEW")
	require.NoError(t, err)

	assert.Nil(t, analysis.Bollinger)
	assert.Nil(t, analysis.RSI)
	assert.False(t, analysis.Breakout)
	require.NotNil(t, analysis.EMA) // mean fallback
}

func TestCheckWatchlist_JournalsBreakouts(t *testing.T) {
	source := &fakeCandles{data: map[string]*finnhub.Candles{
		"NVDA": flatThenSpike(),
		"KO":   flatSeries(),
	}}
	jr := &fakeJournal{}
	service := NewService(source, jr, zerolog.Nop())

	results := service.CheckWatchlist(context.Background(), []string{"NVDA", "KO", "GHOST"})

	// GHOST has no data and is skipped
	assert.Len(t, results, 2)

	require.Len(t, jr.entries, 1)
	assert.Equal(t, journal.TypeSignal, jr.entries[0].EntryType)
	assert.Equal(t, "NVDA", jr.entries[0].Ticker)
	assert.Equal(t, "breakout", jr.entries[0].Action)
}

func TestCheckWatchlist_FetchErrorSkipsAll(t *testing.T) {
	service := NewService(&fakeCandles{err: fmt.Errorf("down")}, &fakeJournal{}, zerolog.Nop())

	results := service.CheckWatchlist(context.Background(), []string{"NVDA"})
	assert.Empty(t, results)
}
