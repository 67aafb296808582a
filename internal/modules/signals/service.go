// Package signals runs technical breakout checks over watchlist tickers.
package signals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/clients/finnhub"
	"github.com/aristath/deepdiver/internal/modules/journal"
)

const (
	// Indicator periods
	bollingerLength = 20
	bollingerStdDev = 2.0
	rsiLength       = 14
	emaLength       = 20

	// A breakout needs momentum behind it, not just a band touch
	rsiConfirmLevel = 60.0

	// Daily candle lookback, enough history for a stable 20-day band
	candleLookbackDays = 90
)

// CandleSource is the slice of the Finnhub client the service needs.
type CandleSource interface {
	DailyCandles(ctx context.Context, ticker string, from, to time.Time) (*finnhub.Candles, error)
}

// JournalStore records breakout signals.
type JournalStore interface {
	Append(entry journal.Entry) (*journal.Entry, error)
}

// Analysis is the indicator snapshot for one ticker.
type Analysis struct {
	Ticker            string          `json:"ticker"`
	Price             float64         `json:"price"`
	EMA               *float64        `json:"ema,omitempty"`
	RSI               *float64        `json:"rsi,omitempty"`
	Bollinger         *BollingerBands `json:"bollinger,omitempty"`
	BollingerPosition *float64        `json:"bollinger_position,omitempty"`
	Breakout          bool            `json:"breakout"`
	CheckedAt         time.Time       `json:"checked_at"`
}

// Service computes breakout signals from daily candle history
type Service struct {
	candles CandleSource
	journal JournalStore
	log     zerolog.Logger
}

// NewService creates a new signals service
func NewService(candles CandleSource, journal JournalStore, log zerolog.Logger) *Service {
	return &Service{
		candles: candles,
		journal: journal,
		log:     log.With().Str("component", "signals").Logger(),
	}
}

// Analyze computes the indicator snapshot for a single ticker.
// A breakout is a close above the upper Bollinger band with the RSI
// confirming momentum.
func (s *Service) Analyze(ctx context.Context, ticker string) (*Analysis, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -candleLookbackDays)
	candles, err := s.candles.DailyCandles(ctx, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", ticker, err)
	}
	if candles == nil || candles.Status != "ok" || len(candles.Close) == 0 {
		return nil, fmt.Errorf("no candle data for %s", ticker)
	}

	closes := candles.Close
	analysis := &Analysis{
		Ticker:    ticker,
		Price:     closes[len(closes)-1],
		EMA:       ema(closes, emaLength),
		RSI:       rsi(closes, rsiLength),
		Bollinger: bollingerBands(closes, bollingerLength, bollingerStdDev),
		CheckedAt: time.Now().UTC(),
	}

	if analysis.Bollinger != nil {
		width := analysis.Bollinger.Upper - analysis.Bollinger.Lower
		position := 0.5
		if width > 0 {
			position = (analysis.Price - analysis.Bollinger.Lower) / width
			if position < 0 {
				position = 0
			}
			if position > 1 {
				position = 1
			}
		}
		analysis.BollingerPosition = &position

		if analysis.Price > analysis.Bollinger.Upper &&
			analysis.RSI != nil && *analysis.RSI >= rsiConfirmLevel {
			analysis.Breakout = true
		}
	}

	return analysis, nil
}

// CheckWatchlist analyzes every ticker and journals detected breakouts.
// Per-ticker failures are logged and skipped.
func (s *Service) CheckWatchlist(ctx context.Context, tickers []string) []Analysis {
	results := make([]Analysis, 0, len(tickers))

	for _, ticker := range tickers {
		analysis, err := s.Analyze(ctx, ticker)
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Signal check failed")
			continue
		}

		results = append(results, *analysis)

		if analysis.Breakout {
			s.log.Info().
				Str("ticker", analysis.Ticker).
				Float64("price", analysis.Price).
				Float64("upper_band", analysis.Bollinger.Upper).
				Msg("Breakout detected")
			s.journalBreakout(*analysis)
		}
	}

	return results
}

func (s *Service) journalBreakout(analysis Analysis) {
	if s.journal == nil {
		return
	}

	reasoning := fmt.Sprintf("close %.2f above upper Bollinger band %.2f with RSI %.1f",
		analysis.Price, analysis.Bollinger.Upper, *analysis.RSI)

	if _, err := s.journal.Append(journal.Entry{
		EntryType: journal.TypeSignal,
		Ticker:    analysis.Ticker,
		Action:    "breakout",
		Reasoning: reasoning,
	}); err != nil {
		s.log.Warn().Err(err).Str("ticker", analysis.Ticker).Msg("Failed to journal breakout")
	}
}
