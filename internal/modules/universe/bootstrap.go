package universe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// seedNotes marks stocks that entered the universe via CSV bootstrap
const seedNotes = "Russell 3000 seed stock"

// BootstrapResult summarizes a CSV import run.
type BootstrapResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"` // rows missing a ticker
}

// Bootstrapper seeds the universe from an index constituents CSV.
type Bootstrapper struct {
	repo *Repository
	log  zerolog.Logger
}

// NewBootstrapper creates a new universe bootstrapper
func NewBootstrapper(repo *Repository, log zerolog.Logger) *Bootstrapper {
	return &Bootstrapper{
		repo: repo,
		log:  log.With().Str("component", "universe_bootstrap").Logger(),
	}
}

// ImportFile seeds the universe from a CSV file on disk
func (b *Bootstrapper) ImportFile(path string) (*BootstrapResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	return b.Import(f)
}

// Import seeds the universe from CSV data.
// Recognized header names (case-insensitive): Ticker/Symbol,
// Name/Company Name, Sector/GICS Sector. Only the ticker column is
// required; a missing or empty company name falls back to the ticker.
// Duplicate tickers keep the last row. Seeded stocks start active with
// score 0 and no category.
func (b *Bootstrapper) Import(r io.Reader) (*BootstrapResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	tickerCol, nameCol, sectorCol := resolveColumns(header)
	if tickerCol < 0 {
		return nil, fmt.Errorf("CSV has no ticker column (expected Ticker or Symbol)")
	}
	if nameCol < 0 {
		b.log.Warn().Msg("CSV has no company name column, tickers will stand in for names")
	}

	// Keep the last row per ticker
	order := make([]string, 0, 1024)
	byTicker := make(map[string]Stock, 1024)
	skipped := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		ticker := ""
		if tickerCol < len(record) {
			ticker = normalizeTicker(record[tickerCol])
		}
		name := ""
		if nameCol >= 0 && nameCol < len(record) {
			name = strings.TrimSpace(record[nameCol])
		}

		if ticker == "" {
			skipped++
			continue
		}
		if name == "" {
			name = ticker
		}

		sector := ""
		if sectorCol >= 0 && sectorCol < len(record) {
			sector = strings.TrimSpace(record[sectorCol])
		}

		if _, seen := byTicker[ticker]; !seen {
			order = append(order, ticker)
		}
		byTicker[ticker] = Stock{
			Ticker:      ticker,
			CompanyName: name,
			Sector:      sector,
			Notes:       seedNotes,
		}
	}

	for _, ticker := range order {
		if err := b.repo.Add(byTicker[ticker]); err != nil {
			return nil, fmt.Errorf("failed to seed %s: %w", ticker, err)
		}
	}

	result := &BootstrapResult{Imported: len(order), Skipped: skipped}
	b.log.Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Msg("Universe bootstrap completed")

	return result, nil
}

// resolveColumns maps known header names to column indexes.
// Returns -1 for columns that are not present.
func resolveColumns(header []string) (tickerCol, nameCol, sectorCol int) {
	tickerCol, nameCol, sectorCol = -1, -1, -1

	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "ticker", "symbol":
			if tickerCol < 0 {
				tickerCol = i
			}
		case "name", "company name":
			if nameCol < 0 {
				nameCol = i
			}
		case "sector", "gics sector":
			if sectorCol < 0 {
				sectorCol = i
			}
		}
	}

	return tickerCol, nameCol, sectorCol
}
