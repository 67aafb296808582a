package watchlist

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/modules/journal"
	"github.com/aristath/deepdiver/internal/modules/universe"
)

// Promotion thresholds.
const (
	// PromoteScore and above puts an active stock on the watchlist.
	PromoteScore = 70
	// Below DemoteScore a stock is removed from the watchlist.
	DemoteScore = 50
	// Below DeactivateScore a stock is deactivated in the universe.
	DeactivateScore = 30
	// SilenceDays without an AI mention also deactivates a stock.
	SilenceDays = 90
)

// UniverseStore is the slice of the universe repository the policy needs.
type UniverseStore interface {
	Query(filter universe.Filter) ([]universe.Stock, error)
	StaleBefore(cutoff time.Time) ([]universe.Stock, error)
	Deactivate(ticker string) error
}

// JournalStore records promotion decisions.
type JournalStore interface {
	Append(entry journal.Entry) (*journal.Entry, error)
}

// PolicyResult summarizes one promotion cycle.
type PolicyResult struct {
	Promoted    int `json:"promoted"`
	Demoted     int `json:"demoted"`
	Deactivated int `json:"deactivated"`
	Failed      int `json:"failed"` // tickers whose writes failed
}

// Policy applies the promotion rules that connect the scored universe to
// the watchlist:
//
//	score >= 70 and active      -> add to watchlist as Watching
//	score < 50                  -> remove from watchlist
//	score < 30 or 90 days quiet -> deactivate in the universe
//
// Every rule is evaluated on every cycle, so a stock whose score collapses
// can be demoted and deactivated in the same run. A failing write for one
// ticker is logged and counted, the cycle moves on to the rest.
type Policy struct {
	universe  UniverseStore
	watchlist *Repository
	journal   JournalStore
	log       zerolog.Logger
}

// NewPolicy creates a new promotion policy
func NewPolicy(u UniverseStore, w *Repository, j JournalStore, log zerolog.Logger) *Policy {
	return &Policy{
		universe:  u,
		watchlist: w,
		journal:   j,
		log:       log.With().Str("component", "promotion_policy").Logger(),
	}
}

// RunCycle evaluates all promotion rules against the current universe
func (p *Policy) RunCycle() (*PolicyResult, error) {
	result := &PolicyResult{}

	if err := p.promote(result); err != nil {
		return result, err
	}
	if err := p.demote(result); err != nil {
		return result, err
	}
	if err := p.deactivate(result); err != nil {
		return result, err
	}

	p.log.Info().
		Int("promoted", result.Promoted).
		Int("demoted", result.Demoted).
		Int("deactivated", result.Deactivated).
		Int("failed", result.Failed).
		Msg("Promotion cycle completed")

	return result, nil
}

// promote adds active high scorers to the watchlist
func (p *Policy) promote(result *PolicyResult) error {
	active := true
	minScore := PromoteScore

	stocks, err := p.universe.Query(universe.Filter{
		IsActive: &active,
		MinScore: &minScore,
		Limit:    10000,
	})
	if err != nil {
		return fmt.Errorf("failed to query promotion candidates: %w", err)
	}

	for _, stock := range stocks {
		reason := fmt.Sprintf("AI score %d", stock.AIScore)
		added, err := p.watchlist.Add(stock.Ticker, StatusWatching, reason)
		if err != nil {
			result.Failed++
			p.log.Warn().Err(err).Str("ticker", stock.Ticker).Msg("Failed to promote, continuing")
			continue
		}
		if !added {
			continue
		}

		result.Promoted++
		p.journalAction(journal.TypePromotion, stock, "added to watchlist", reason)
	}

	return nil
}

// demote removes low scorers from the watchlist
func (p *Policy) demote(result *PolicyResult) error {
	tickers, err := p.watchlist.Tickers()
	if err != nil {
		return fmt.Errorf("failed to list watchlist: %w", err)
	}

	maxScore := DemoteScore - 1
	weak, err := p.universe.Query(universe.Filter{
		MaxScore: &maxScore,
		Limit:    10000,
	})
	if err != nil {
		return fmt.Errorf("failed to query demotion candidates: %w", err)
	}

	listed := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		listed[t] = true
	}

	for _, stock := range weak {
		if !listed[stock.Ticker] {
			continue
		}

		removed, err := p.watchlist.Remove(stock.Ticker)
		if err != nil {
			result.Failed++
			p.log.Warn().Err(err).Str("ticker", stock.Ticker).Msg("Failed to demote, continuing")
			continue
		}
		if !removed {
			continue
		}

		result.Demoted++
		p.journalAction(journal.TypeDemotion, stock, "removed from watchlist",
			fmt.Sprintf("AI score %d below %d", stock.AIScore, DemoteScore))
	}

	return nil
}

// deactivate retires stocks that lost their AI relevance entirely
func (p *Policy) deactivate(result *PolicyResult) error {
	active := true
	maxScore := DeactivateScore - 1

	lowScorers, err := p.universe.Query(universe.Filter{
		IsActive: &active,
		MaxScore: &maxScore,
		Limit:    10000,
	})
	if err != nil {
		return fmt.Errorf("failed to query deactivation candidates: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -SilenceDays)
	silent, err := p.universe.StaleBefore(cutoff)
	if err != nil {
		return fmt.Errorf("failed to query silent stocks: %w", err)
	}

	// Deduplicate: a stock can be both low scoring and silent
	candidates := make(map[string]universe.Stock, len(lowScorers)+len(silent))
	reasons := make(map[string]string, len(candidates))
	for _, stock := range lowScorers {
		candidates[stock.Ticker] = stock
		reasons[stock.Ticker] = fmt.Sprintf("AI score %d below %d", stock.AIScore, DeactivateScore)
	}
	for _, stock := range silent {
		if _, seen := candidates[stock.Ticker]; !seen {
			candidates[stock.Ticker] = stock
			reasons[stock.Ticker] = fmt.Sprintf("no AI mentions for %d days", SilenceDays)
		}
	}

	for ticker, stock := range candidates {
		if err := p.universe.Deactivate(ticker); err != nil {
			result.Failed++
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to deactivate, continuing")
			continue
		}

		// Deactivated stocks have no business staying on the watchlist
		if _, err := p.watchlist.Remove(ticker); err != nil {
			result.Failed++
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to remove deactivated stock from watchlist")
		}

		result.Deactivated++
		p.journalAction(journal.TypeDeactivation, stock, "deactivated", reasons[ticker])
	}

	return nil
}

// journalAction records a policy decision. Journal failures are logged
// and swallowed.
func (p *Policy) journalAction(entryType string, stock universe.Stock, action, reason string) {
	if p.journal == nil {
		return
	}

	score := stock.AIScore
	if _, err := p.journal.Append(journal.Entry{
		EntryType: entryType,
		Ticker:    stock.Ticker,
		Score:     &score,
		Action:    action,
		Reasoning: reason,
	}); err != nil {
		p.log.Warn().Err(err).Str("ticker", stock.Ticker).Msg("Failed to journal policy action")
	}
}
