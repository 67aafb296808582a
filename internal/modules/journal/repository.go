package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// entryColumns is the list of columns for the journal_entries table
// Column order must match scanEntry() expectations
const entryColumns = `id, timestamp, entry_type, ticker, score, previous_score, action, reasoning, metadata`

// Repository handles journal database operations.
// The journal is append-only; there are no update or delete operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new journal repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "journal").Logger(),
	}
}

// Append writes a new journal entry. ID and Timestamp are assigned here
// if unset.
func (r *Repository) Append(entry Entry) (*Entry, error) {
	if entry.EntryType == "" {
		return nil, fmt.Errorf("entry type is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Ticker = strings.ToUpper(strings.TrimSpace(entry.Ticker))

	query := `
		INSERT INTO journal_entries
		(id, timestamp, entry_type, ticker, score, previous_score, action, reasoning, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		entry.ID,
		entry.Timestamp.Format(time.RFC3339),
		entry.EntryType,
		nullString(entry.Ticker),
		nullIntPtr(entry.Score),
		nullIntPtr(entry.PreviousScore),
		nullString(entry.Action),
		nullString(entry.Reasoning),
		nullString(entry.Metadata),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append journal entry: %w", err)
	}

	r.log.Debug().
		Str("id", entry.ID).
		Str("type", entry.EntryType).
		Str("ticker", entry.Ticker).
		Msg("Journal entry appended")

	return &entry, nil
}

// Recent returns the most recent entries, newest first
func (r *Repository) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + entryColumns + " FROM journal_entries ORDER BY timestamp DESC, id LIMIT ?"

	return r.queryEntries(query, limit)
}

// ByTicker returns entries for a ticker, newest first
func (r *Repository) ByTicker(ticker string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + entryColumns + ` FROM journal_entries
		WHERE ticker = ? ORDER BY timestamp DESC, id LIMIT ?`

	return r.queryEntries(query, strings.ToUpper(strings.TrimSpace(ticker)), limit)
}

// ByType returns entries of a given type, newest first
func (r *Repository) ByType(entryType string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + entryColumns + ` FROM journal_entries
		WHERE entry_type = ? ORDER BY timestamp DESC, id LIMIT ?`

	return r.queryEntries(query, entryType, limit)
}

// Count returns the total number of journal entries
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM journal_entries").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return count, nil
}

func (r *Repository) queryEntries(query string, args ...interface{}) ([]Entry, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entries: %w", err)
	}

	return entries, nil
}

// scanEntry scans a database row into an Entry struct
func scanEntry(rows *sql.Rows) (Entry, error) {
	var entry Entry
	var timestamp string
	var ticker, action, reasoning, metadata sql.NullString
	var score, previousScore sql.NullInt64

	err := rows.Scan(
		&entry.ID,
		&timestamp,
		&entry.EntryType,
		&ticker,
		&score,
		&previousScore,
		&action,
		&reasoning,
		&metadata,
	)
	if err != nil {
		return entry, err
	}

	if t, err := time.Parse(time.RFC3339, timestamp); err == nil {
		entry.Timestamp = t
	}
	if ticker.Valid {
		entry.Ticker = ticker.String
	}
	if score.Valid {
		s := int(score.Int64)
		entry.Score = &s
	}
	if previousScore.Valid {
		s := int(previousScore.Int64)
		entry.PreviousScore = &s
	}
	if action.Valid {
		entry.Action = action.String
	}
	if reasoning.Valid {
		entry.Reasoning = reasoning.String
	}
	if metadata.Valid {
		entry.Metadata = metadata.String
	}

	return entry, nil
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullIntPtr(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
