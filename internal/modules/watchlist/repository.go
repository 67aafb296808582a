package watchlist

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles watchlist database operations.
// The watchlist lives in the universe database alongside trading_universe.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new watchlist repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "watchlist").Logger(),
	}
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Add puts a ticker on the watchlist. Idempotent: re-adding an existing
// ticker refreshes status and reason but keeps added_at. Returns true if
// the ticker was newly added.
func (r *Repository) Add(ticker, status, reason string) (bool, error) {
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return false, fmt.Errorf("ticker is required")
	}
	if status == "" {
		status = StatusWatching
	}

	existing, err := r.Get(ticker)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO watchlist (ticker, status, reason)
		VALUES (?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := r.db.Exec(query, ticker, status, nullString(reason)); err != nil {
		return false, fmt.Errorf("failed to add %s to watchlist: %w", ticker, err)
	}

	added := existing == nil
	if added {
		r.log.Info().Str("ticker", ticker).Str("status", status).Msg("Added to watchlist")
	}

	return added, nil
}

// Remove takes a ticker off the watchlist. Idempotent: removing an absent
// ticker is a no-op. Returns true if a row was actually removed.
func (r *Repository) Remove(ticker string) (bool, error) {
	ticker = normalizeTicker(ticker)

	result, err := r.db.Exec("DELETE FROM watchlist WHERE ticker = ?", ticker)
	if err != nil {
		return false, fmt.Errorf("failed to remove %s from watchlist: %w", ticker, err)
	}

	affected, _ := result.RowsAffected()
	if affected > 0 {
		r.log.Info().Str("ticker", ticker).Msg("Removed from watchlist")
	}

	return affected > 0, nil
}

// Get returns a watchlist item by ticker, or nil if not listed
func (r *Repository) Get(ticker string) (*Item, error) {
	query := "SELECT ticker, status, reason, added_at, updated_at FROM watchlist WHERE ticker = ?"

	rows, err := r.db.Query(query, normalizeTicker(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	item, err := scanItem(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
	}

	return &item, nil
}

// List returns all watchlist items, alphabetically
func (r *Repository) List() ([]Item, error) {
	query := "SELECT ticker, status, reason, added_at, updated_at FROM watchlist ORDER BY ticker"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist: %w", err)
	}

	return items, nil
}

// Tickers returns all watchlisted ticker symbols, alphabetically
func (r *Repository) Tickers() ([]string, error) {
	rows, err := r.db.Query("SELECT ticker FROM watchlist ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, ticker)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}

	return tickers, nil
}

// Count returns the number of watchlist items
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM watchlist").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count watchlist: %w", err)
	}
	return count, nil
}

func scanItem(rows *sql.Rows) (Item, error) {
	var item Item
	var reason sql.NullString
	var addedAt, updatedAt string

	if err := rows.Scan(&item.Ticker, &item.Status, &reason, &addedAt, &updatedAt); err != nil {
		return item, err
	}

	if reason.Valid {
		item.Reason = reason.String
	}
	item.AddedAt = parseTime(addedAt)
	item.UpdatedAt = parseTime(updatedAt)

	return item, nil
}

// parseTime handles both RFC3339 and the SQLite CURRENT_TIMESTAMP format
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
