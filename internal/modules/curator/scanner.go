package curator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/clients/finnhub"
	"github.com/aristath/deepdiver/internal/modules/journal"
	"github.com/aristath/deepdiver/internal/modules/universe"
)

// MarketData is the slice of the Finnhub client the scanner needs.
type MarketData interface {
	CompanyProfile(ctx context.Context, ticker string) (*finnhub.Profile, error)
	CompanyNews(ctx context.Context, ticker string, from, to time.Time) ([]finnhub.NewsArticle, error)
}

// UniverseStore is the slice of the universe repository the scanner needs.
type UniverseStore interface {
	Get(ticker string) (*universe.Stock, error)
	ApplyScanResult(result universe.ScanResult) error
}

// JournalStore records scan decisions.
type JournalStore interface {
	Append(entry journal.Entry) (*journal.Entry, error)
}

// Scanner runs the full two-stage relevance scan for a single ticker.
type Scanner struct {
	market           MarketData
	universe         UniverseStore
	journal          JournalStore
	validator        *Validator
	newsLookbackDays int
	maxNewsArticles  int
	log              zerolog.Logger
}

// ScannerConfig holds scanner construction parameters.
type ScannerConfig struct {
	Market           MarketData
	Universe         UniverseStore
	Journal          JournalStore
	Validator        *Validator
	NewsLookbackDays int
	MaxNewsArticles  int
}

// NewScanner creates a new scanner
func NewScanner(cfg ScannerConfig, log zerolog.Logger) *Scanner {
	lookback := cfg.NewsLookbackDays
	if lookback <= 0 {
		lookback = 7
	}
	return &Scanner{
		market:           cfg.Market,
		universe:         cfg.Universe,
		journal:          cfg.Journal,
		validator:        cfg.Validator,
		newsLookbackDays: lookback,
		maxNewsArticles:  cfg.MaxNewsArticles,
		log:              log.With().Str("component", "curator_scanner").Logger(),
	}
}

// Scan scores a single ticker and persists the result.
//
// Profile and news fetches fail independently: a stock with no profile can
// still be scored from its news and vice versa. A ticker not yet in the
// universe gets its record created on this first scan.
func (s *Scanner) Scan(ctx context.Context, ticker string) (*KeywordResult, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	existing, err := s.universe.Get(ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s from universe: %w", ticker, err)
	}

	// Captured before the store write so the journal entry reflects the
	// score this scan replaced.
	previousScore := 0
	if existing != nil {
		previousScore = existing.AIScore
	}

	profile, err := s.market.CompanyProfile(ctx, ticker)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Could not fetch profile")
		profile = nil
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -s.newsLookbackDays)
	articles, err := s.market.CompanyNews(ctx, ticker, from, to)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Could not fetch news")
		articles = nil
	}

	result := ScoreKeywords(ticker, profile, articles, s.maxNewsArticles)

	validated := false
	skipped := false
	if s.validator != nil && s.validator.Enabled() && IsBorderline(result.Score) {
		result, validated = s.validator.Validate(ctx, result)
		skipped = !validated
	}

	scannedAt := time.Now().UTC()
	if err := s.universe.ApplyScanResult(universe.ScanResult{
		Ticker:      ticker,
		CompanyName: result.CompanyName,
		Sector:      result.Sector,
		Score:       result.Score,
		Category:    result.Category,
		Evidence:    result.EvidenceString(),
		HasAIFocus:  result.HasAI,
		ScannedAt:   scannedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist scan result for %s: %w", ticker, err)
	}

	s.logScan(previousScore, result, validated, skipped)

	s.log.Info().
		Str("ticker", ticker).
		Int("score", result.Score).
		Bool("has_ai", result.HasAI).
		Bool("llm_validated", validated).
		Msg("Scan completed")

	return &result, nil
}

// logScan records the scan in the journal. Journal failures are logged
// and swallowed; the universe update already happened.
func (s *Scanner) logScan(previous int, result KeywordResult, validated, skipped bool) {
	if s.journal == nil {
		return
	}

	score := result.Score

	reasoning := result.EvidenceString()
	if reasoning == "" {
		reasoning = "no AI signals found"
	}

	action := "scored"
	switch {
	case validated:
		action = "scored (LLM validated)"
	case skipped:
		action = "scored (LLM validation skipped)"
	}

	if _, err := s.journal.Append(journal.Entry{
		EntryType:     journal.TypeScan,
		Ticker:        result.Ticker,
		Score:         &score,
		PreviousScore: &previous,
		Action:        action,
		Reasoning:     reasoning,
	}); err != nil {
		s.log.Warn().Err(err).Str("ticker", result.Ticker).Msg("Failed to journal scan")
	}
}
