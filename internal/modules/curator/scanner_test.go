package curator

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
	"github.com/aristath/deepdiver/internal/modules/universe"
)

// fakeMarket implements MarketData for tests
type fakeMarket struct {
	profiles   map[string]*finnhub.Profile
	news       map[string][]finnhub.NewsArticle
	profileErr error
	newsErr    error
}

func (m *fakeMarket) CompanyProfile(ctx context.Context, ticker string) (*finnhub.Profile, error) {
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	p, ok := m.profiles[ticker]
	if !ok {
		return nil, fmt.Errorf("no profile found for %s", ticker)
	}
	return p, nil
}

func (m *fakeMarket) CompanyNews(ctx context.Context, ticker string, from, to time.Time) ([]finnhub.NewsArticle, error) {
	if m.newsErr != nil {
		return nil, m.newsErr
	}
	return m.news[ticker], nil
}

// fakeUniverse implements UniverseStore for tests
type fakeUniverse struct {
	stocks     map[string]*universe.Stock
	applied    []universe.ScanResult
	failTicker string
}

func newFakeUniverse(tickers ...string) *fakeUniverse {
	u := &fakeUniverse{stocks: make(map[string]*universe.Stock)}
	for _, t := range tickers {
		u.stocks[t] = &universe.Stock{Ticker: t, CompanyName: t + " Inc", IsActive: true}
	}
	return u
}

func (u *fakeUniverse) Get(ticker string) (*universe.Stock, error) {
	return u.stocks[ticker], nil
}

func (u *fakeUniverse) ApplyScanResult(result universe.ScanResult) error {
	if result.Ticker == u.failTicker {
		return fmt.Errorf("disk I/O error")
	}
	if _, ok := u.stocks[result.Ticker]; !ok {
		u.stocks[result.Ticker] = &universe.Stock{Ticker: result.Ticker, CompanyName: result.Ticker, IsActive: true}
	}
	u.applied = append(u.applied, result)
	u.stocks[result.Ticker].AIScore = result.Score
	return nil
}

// fakeJournal implements JournalStore for tests
type fakeJournal struct {
	entries []journal.Entry
}

func (j *fakeJournal) Append(entry journal.Entry) (*journal.Entry, error) {
	j.entries = append(j.entries, entry)
	return &entry, nil
}

func newTestScanner(market MarketData, store UniverseStore, jr JournalStore, validator *Validator) *Scanner {
	return NewScanner(ScannerConfig{
		Market:           market,
		Universe:         store,
		Journal:          jr,
		Validator:        validator,
		NewsLookbackDays: 7,
	}, zerolog.Nop())
}

func TestScan_HighScoreStock(t *testing.T) {
	market := &fakeMarket{
		profiles: map[string]*finnhub.Profile{
			"NVDA": {Name: "NVIDIA Corp", Industry: "Semiconductors", Description: "We design the ai chip and gpu inference platforms behind modern artificial intelligence, machine learning, deep learning and neural network workloads."},
		},
		news: map[string][]finnhub.NewsArticle{
			"NVDA": {
				{Headline: "NVIDIA unveils next generative ai accelerator"},
				{Headline: "Data center revenue soars on ai infrastructure demand"},
			},
		},
	}
	store := newFakeUniverse("NVDA")
	jr := &fakeJournal{}

	scanner := newTestScanner(market, store, jr, nil)
	result, err := scanner.Scan(context.Background(), "nvda")
	require.NoError(t, err)

	assert.True(t, result.Score > BorderlineHigh)
	assert.True(t, result.HasAI)
	assert.Equal(t, "ai_chip", *result.Category)

	// Result persisted to the universe
	require.Len(t, store.applied, 1)
	assert.Equal(t, "NVDA", store.applied[0].Ticker)
	assert.Equal(t, result.Score, store.applied[0].Score)

	// Scan journaled
	require.Len(t, jr.entries, 1)
	assert.Equal(t, journal.TypeScan, jr.entries[0].EntryType)
	assert.Equal(t, result.Score, *jr.entries[0].Score)
	assert.Equal(t, 0, *jr.entries[0].PreviousScore)
}

func TestScan_UnknownTickerCreatesRecord(t *testing.T) {
	market := &fakeMarket{
		profiles: map[string]*finnhub.Profile{
			"GHOST": {Name: "Ghost Labs", Description: "We bottle soft drinks."},
		},
	}
	store := newFakeUniverse()
	jr := &fakeJournal{}

	scanner := newTestScanner(market, store, jr, nil)
	result, err := scanner.Scan(context.Background(), "GHOST")
	require.NoError(t, err)

	assert.Equal(t, 0, result.Score)
	require.Len(t, store.applied, 1)
	assert.Equal(t, "Ghost Labs", store.applied[0].CompanyName)

	// First scan: previous score is zero
	require.Len(t, jr.entries, 1)
	assert.Equal(t, 0, *jr.entries[0].PreviousScore)
}

func TestScan_ProfileFailureStillScoresNews(t *testing.T) {
	market := &fakeMarket{
		profileErr: fmt.Errorf("rate limited"),
		news: map[string][]finnhub.NewsArticle{
			"NVDA": {{Headline: "machine learning milestone"}},
		},
	}
	store := newFakeUniverse("NVDA")

	scanner := newTestScanner(market, store, &fakeJournal{}, nil)
	result, err := scanner.Scan(context.Background(), "NVDA")
	require.NoError(t, err)

	assert.Equal(t, 10, result.Score)
	assert.Equal(t, "NVDA", result.CompanyName) // falls back to ticker
}

func TestScan_BothSourcesFailingScoresZero(t *testing.T) {
	market := &fakeMarket{
		profileErr: fmt.Errorf("down"),
		newsErr:    fmt.Errorf("down"),
	}
	store := newFakeUniverse("KO")

	scanner := newTestScanner(market, store, &fakeJournal{}, nil)
	result, err := scanner.Scan(context.Background(), "KO")
	require.NoError(t, err)

	assert.Equal(t, 0, result.Score)
	require.Len(t, store.applied, 1)
}

func TestScan_BorderlineEscalatesToValidator(t *testing.T) {
	// 5 tier1 description keywords = 50, inside the borderline band
	market := &fakeMarket{
		profiles: map[string]*finnhub.Profile{
			"MID": {Name: "Midway Corp", Description: "artificial intelligence, machine learning, deep learning, neural network, generative ai"},
		},
	}
	store := newFakeUniverse("MID")

	llm := &fakeLLM{response: `{"is_genuine_ai": true, "category": "ai_software", "adjusted_score": 68, "reasoning": "credible AI platform"}`}
	validator := NewValidator(llm, zerolog.Nop())

	scanner := newTestScanner(market, store, &fakeJournal{}, validator)
	result, err := scanner.Scan(context.Background(), "MID")
	require.NoError(t, err)

	assert.Equal(t, 68, result.Score)
	assert.Len(t, llm.prompts, 1)

	// Persisted evidence carries the LLM reasoning
	require.Len(t, store.applied, 1)
	assert.Contains(t, store.applied[0].Evidence, "LLM: credible AI platform")
}

func TestScan_JournalRecordsPreviousScore(t *testing.T) {
	market := &fakeMarket{
		profiles: map[string]*finnhub.Profile{
			"NVDA": {Name: "NVIDIA Corp", Description: "We design the ai chip and gpu inference platforms behind modern artificial intelligence, machine learning, deep learning and neural network workloads."},
		},
	}
	store := newFakeUniverse("NVDA")
	store.stocks["NVDA"].AIScore = 40
	jr := &fakeJournal{}

	scanner := newTestScanner(market, store, jr, nil)
	result, err := scanner.Scan(context.Background(), "NVDA")
	require.NoError(t, err)
	require.NotEqual(t, 40, result.Score)

	// The journal carries the score this scan replaced, not the new one,
	// even though the store row has already been updated.
	require.Len(t, jr.entries, 1)
	assert.Equal(t, 40, *jr.entries[0].PreviousScore)
	assert.Equal(t, result.Score, *jr.entries[0].Score)
}

func TestScan_ValidatorFailureJournaledAsSkipped(t *testing.T) {
	// 5 tier1 description keywords = 50, inside the borderline band
	market := &fakeMarket{
		profiles: map[string]*finnhub.Profile{
			"MID": {Name: "Midway Corp", Description: "artificial intelligence, machine learning, deep learning, neural network, generative ai"},
		},
	}
	store := newFakeUniverse("MID")
	jr := &fakeJournal{}

	llm := &fakeLLM{err: fmt.Errorf("quota exceeded")}
	validator := NewValidator(llm, zerolog.Nop())

	scanner := newTestScanner(market, store, jr, validator)
	result, err := scanner.Scan(context.Background(), "MID")
	require.NoError(t, err)

	// Keyword result stands and the journal records the skip
	assert.Equal(t, 50, result.Score)
	require.Len(t, jr.entries, 1)
	assert.Equal(t, "scored (LLM validation skipped)", jr.entries[0].Action)
}

func TestScan_ClearScoresSkipValidator(t *testing.T) {
	market := &fakeMarket{
		profiles: map[string]*finnhub.Profile{
			"KO": {Name: "Coca-Cola", Description: "We bottle soft drinks."},
		},
	}
	store := newFakeUniverse("KO")

	llm := &fakeLLM{response: `{"adjusted_score": 50}`}
	validator := NewValidator(llm, zerolog.Nop())

	scanner := newTestScanner(market, store, &fakeJournal{}, validator)
	result, err := scanner.Scan(context.Background(), "KO")
	require.NoError(t, err)

	assert.Equal(t, 0, result.Score)
	assert.Empty(t, llm.prompts)
}

func TestBatchScanner_ScanAll(t *testing.T) {
	market := &fakeMarket{
		profiles: map[string]*finnhub.Profile{
			"NVDA": {Name: "NVIDIA", Description: "artificial intelligence, machine learning, deep learning, neural network"},
			"KO":   {Name: "Coca-Cola", Description: "soft drinks"},
		},
	}
	store := newFakeUniverse("NVDA", "KO")
	store.failTicker = "GHOST"
	scanner := newTestScanner(market, store, &fakeJournal{}, nil)

	// High call rate keeps the test fast
	batch := NewBatchScanner(scanner, 60000, 2, zerolog.Nop())

	result, err := batch.ScanAll(context.Background(), []string{"NVDA", "KO", "GHOST"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.Failed) // GHOST's store write fails, others proceed
	assert.Equal(t, 1, result.AIFocused)
}

func TestBatchScanner_EmptyInput(t *testing.T) {
	batch := NewBatchScanner(newTestScanner(&fakeMarket{}, newFakeUniverse(), &fakeJournal{}, nil), 60, 4, zerolog.Nop())

	result, err := batch.ScanAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
}

func TestBatchScanner_ContextCancellation(t *testing.T) {
	market := &fakeMarket{profiles: map[string]*finnhub.Profile{}}
	store := newFakeUniverse("A", "B", "C")
	scanner := newTestScanner(market, store, &fakeJournal{}, nil)

	// Slow rate so cancellation lands between submissions
	batch := NewBatchScanner(scanner, 2, 1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := batch.ScanAll(ctx, []string{"A", "B", "C"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}
