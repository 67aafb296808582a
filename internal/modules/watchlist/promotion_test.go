package watchlist

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/deepdiver/internal/modules/journal"
	"github.com/aristath/deepdiver/internal/modules/universe"
)

// fakeJournal collects policy decisions
type fakeJournal struct {
	entries []journal.Entry
}

func (j *fakeJournal) Append(entry journal.Entry) (*journal.Entry, error) {
	j.entries = append(j.entries, entry)
	return &entry, nil
}

func setupPolicy(t *testing.T) (*Policy, *universe.Repository, *Repository, *fakeJournal) {
	t.Helper()

	db := setupDB(t)
	universeRepo := universe.NewRepository(db, zerolog.Nop())
	watchlistRepo := NewRepository(db, zerolog.Nop())
	jr := &fakeJournal{}

	policy := NewPolicy(universeRepo, watchlistRepo, jr, zerolog.Nop())
	return policy, universeRepo, watchlistRepo, jr
}

func seedStock(t *testing.T, repo *universe.Repository, ticker string, score int, mentionedAt time.Time) {
	t.Helper()

	require.NoError(t, repo.Add(universe.Stock{Ticker: ticker, CompanyName: ticker + " Inc"}))
	require.NoError(t, repo.ApplyScanResult(universe.ScanResult{
		Ticker:    ticker,
		Score:     score,
		ScannedAt: mentionedAt,
	}))
}

func TestRunCycle_PromotesHighScorers(t *testing.T) {
	policy, universeRepo, watchlistRepo, jr := setupPolicy(t)

	now := time.Now().UTC()
	seedStock(t, universeRepo, "NVDA", 85, now)
	seedStock(t, universeRepo, "EDGE", 70, now) // threshold is inclusive
	seedStock(t, universeRepo, "MID", 60, now)

	result, err := policy.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, 2, result.Promoted)

	tickers, err := watchlistRepo.Tickers()
	require.NoError(t, err)
	assert.Equal(t, []string{"EDGE", "NVDA"}, tickers)

	item, err := watchlistRepo.Get("NVDA")
	require.NoError(t, err)
	assert.Equal(t, StatusWatching, item.Status)

	// Decisions journaled
	promotions := 0
	for _, e := range jr.entries {
		if e.EntryType == journal.TypePromotion {
			promotions++
		}
	}
	assert.Equal(t, 2, promotions)
}

func TestRunCycle_DoesNotPromoteInactive(t *testing.T) {
	policy, universeRepo, watchlistRepo, _ := setupPolicy(t)

	seedStock(t, universeRepo, "OLD", 90, time.Now().UTC())
	require.NoError(t, universeRepo.Deactivate("OLD"))

	result, err := policy.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, 0, result.Promoted)

	count, err := watchlistRepo.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRunCycle_DemotesBelowFifty(t *testing.T) {
	policy, universeRepo, watchlistRepo, jr := setupPolicy(t)

	now := time.Now().UTC()
	seedStock(t, universeRepo, "FADE", 85, now)

	// First cycle promotes
	_, err := policy.RunCycle()
	require.NoError(t, err)

	// Score collapses below the demotion threshold
	require.NoError(t, universeRepo.ApplyScanResult(universe.ScanResult{Ticker: "FADE", Score: 45, ScannedAt: now}))

	result, err := policy.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Demoted)
	assert.Equal(t, 0, result.Deactivated) // 45 is above the deactivation threshold

	item, err := watchlistRepo.Get("FADE")
	require.NoError(t, err)
	assert.Nil(t, item)

	// Still active in the universe
	stock, err := universeRepo.Get("FADE")
	require.NoError(t, err)
	assert.True(t, stock.IsActive)

	demotions := 0
	for _, e := range jr.entries {
		if e.EntryType == journal.TypeDemotion {
			demotions++
		}
	}
	assert.Equal(t, 1, demotions)
}

func TestRunCycle_ScoreFiftyStaysListed(t *testing.T) {
	policy, universeRepo, watchlistRepo, _ := setupPolicy(t)

	now := time.Now().UTC()
	seedStock(t, universeRepo, "HOLD", 85, now)
	_, err := policy.RunCycle()
	require.NoError(t, err)

	require.NoError(t, universeRepo.ApplyScanResult(universe.ScanResult{Ticker: "HOLD", Score: 50, ScannedAt: now}))

	result, err := policy.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, 0, result.Demoted)

	item, err := watchlistRepo.Get("HOLD")
	require.NoError(t, err)
	assert.NotNil(t, item)
}

func TestRunCycle_DeactivatesLowScores(t *testing.T) {
	policy, universeRepo, _, jr := setupPolicy(t)

	seedStock(t, universeRepo, "DEAD", 25, time.Now().UTC())

	result, err := policy.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deactivated)

	stock, err := universeRepo.Get("DEAD")
	require.NoError(t, err)
	assert.False(t, stock.IsActive)
	assert.NotNil(t, stock.DeactivatedAt)

	deactivations := 0
	for _, e := range jr.entries {
		if e.EntryType == journal.TypeDeactivation {
			deactivations++
		}
	}
	assert.Equal(t, 1, deactivations)
}

func TestRunCycle_DeactivatesSilentStocks(t *testing.T) {
	policy, universeRepo, _, _ := setupPolicy(t)

	now := time.Now().UTC()
	// High score but last mentioned 120 days ago
	seedStock(t, universeRepo, "QUIET", 60, now.AddDate(0, 0, -120))
	seedStock(t, universeRepo, "FRESH", 60, now)

	result, err := policy.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deactivated)

	quiet, err := universeRepo.Get("QUIET")
	require.NoError(t, err)
	assert.False(t, quiet.IsActive)

	fresh, err := universeRepo.Get("FRESH")
	require.NoError(t, err)
	assert.True(t, fresh.IsActive)
}

func TestRunCycle_CollapsedStockDemotedAndDeactivatedTogether(t *testing.T) {
	policy, universeRepo, watchlistRepo, _ := setupPolicy(t)

	now := time.Now().UTC()
	seedStock(t, universeRepo, "CRASH", 85, now)
	_, err := policy.RunCycle()
	require.NoError(t, err)

	require.NoError(t, universeRepo.ApplyScanResult(universe.ScanResult{Ticker: "CRASH", Score: 10, ScannedAt: now}))

	result, err := policy.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Demoted)
	assert.Equal(t, 1, result.Deactivated)

	item, err := watchlistRepo.Get("CRASH")
	require.NoError(t, err)
	assert.Nil(t, item)

	stock, err := universeRepo.Get("CRASH")
	require.NoError(t, err)
	assert.False(t, stock.IsActive)
}

// failingUniverse wraps canned query results with an injectable
// per-ticker Deactivate failure.
type failingUniverse struct {
	lowScorers  []universe.Stock
	failTicker  string
	deactivated []string
}

func (u *failingUniverse) Query(filter universe.Filter) ([]universe.Stock, error) {
	// The deactivation pass is the only query filtering on both flags
	if filter.IsActive != nil && filter.MaxScore != nil {
		return u.lowScorers, nil
	}
	return nil, nil
}

func (u *failingUniverse) StaleBefore(cutoff time.Time) ([]universe.Stock, error) {
	return nil, nil
}

func (u *failingUniverse) Deactivate(ticker string) error {
	if ticker == u.failTicker {
		return fmt.Errorf("disk I/O error")
	}
	u.deactivated = append(u.deactivated, ticker)
	return nil
}

func TestRunCycle_SingleTickerFailureDoesNotAbortCycle(t *testing.T) {
	db := setupDB(t)
	watchlistRepo := NewRepository(db, zerolog.Nop())

	store := &failingUniverse{
		lowScorers: []universe.Stock{
			{Ticker: "BAD", CompanyName: "Bad Inc", AIScore: 10, IsActive: true},
			{Ticker: "LOW", CompanyName: "Low Inc", AIScore: 15, IsActive: true},
		},
		failTicker: "BAD",
	}
	policy := NewPolicy(store, watchlistRepo, &fakeJournal{}, zerolog.Nop())

	result, err := policy.RunCycle()
	require.NoError(t, err)

	// BAD's write failed but LOW was still deactivated
	assert.Equal(t, 1, result.Deactivated)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"LOW"}, store.deactivated)
}

func TestRunCycle_NeverMentionedIsNotSilent(t *testing.T) {
	policy, universeRepo, _, _ := setupPolicy(t)

	// Freshly seeded stock: never scanned, no last_ai_mention
	require.NoError(t, universeRepo.Add(universe.Stock{Ticker: "SEED", CompanyName: "Seed Inc"}))

	result, err := policy.RunCycle()
	require.NoError(t, err)
	// Score 0 is below the deactivation threshold though
	assert.Equal(t, 1, result.Deactivated)
}
