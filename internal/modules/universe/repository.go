package universe

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// stockColumns is the list of columns for the trading_universe table
// Used to avoid SELECT * which can break when schema changes
// Column order must match scanStock() expectations
const stockColumns = `ticker, company_name, sector, ai_score, ai_category, ai_evidence,
has_ai_focus, is_active, last_scanned, last_ai_mention, deactivated_at, notes,
created_at, updated_at`

// Repository handles trading universe database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new universe repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "universe").Logger(),
	}
}

// normalizeTicker uppercases and trims a ticker symbol
func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Get returns a stock by ticker, or nil if not found
func (r *Repository) Get(ticker string) (*Stock, error) {
	query := "SELECT " + stockColumns + " FROM trading_universe WHERE ticker = ?"

	rows, err := r.db.Query(query, normalizeTicker(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to query stock: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil // Stock not found
	}

	stock, err := scanStock(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan stock: %w", err)
	}

	return &stock, nil
}

// Add inserts a stock, or updates its identity fields if it already exists.
// Scan state (score, evidence, timestamps) is never touched here.
func (r *Repository) Add(stock Stock) error {
	ticker := normalizeTicker(stock.Ticker)
	if ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if strings.TrimSpace(stock.CompanyName) == "" {
		return fmt.Errorf("company name is required for %s", ticker)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO trading_universe (ticker, company_name, sector, is_active, notes)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			company_name = excluded.company_name,
			sector = excluded.sector,
			notes = excluded.notes,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = tx.Exec(query, ticker, strings.TrimSpace(stock.CompanyName), nullString(stock.Sector), nullString(stock.Notes))
	if err != nil {
		return fmt.Errorf("failed to add stock %s: %w", ticker, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ApplyScanResult records the outcome of a relevance scan.
// Creates the record when the ticker has never been seen before.
// last_scanned is always advanced; last_ai_mention only moves when the
// scan actually found something (score > 0).
func (r *Repository) ApplyScanResult(result ScanResult) error {
	ticker := normalizeTicker(result.Ticker)
	if ticker == "" {
		return fmt.Errorf("ticker is required")
	}

	scannedAt := result.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now().UTC()
	}

	companyName := strings.TrimSpace(result.CompanyName)
	if companyName == "" {
		companyName = ticker
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// First scan of an unknown ticker creates its universe record.
	_, err = tx.Exec(`
		INSERT INTO trading_universe (ticker, company_name, sector, is_active)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(ticker) DO NOTHING
	`, ticker, companyName, nullString(result.Sector))
	if err != nil {
		return fmt.Errorf("failed to ensure universe record for %s: %w", ticker, err)
	}

	query := `
		UPDATE trading_universe SET
			ai_score = ?,
			ai_category = ?,
			ai_evidence = ?,
			has_ai_focus = ?,
			last_scanned = ?,
			last_ai_mention = CASE WHEN ? > 0 THEN ? ELSE last_ai_mention END,
			updated_at = CURRENT_TIMESTAMP
		WHERE ticker = ?
	`

	_, err = tx.Exec(query,
		result.Score,
		nullStringPtr(result.Category),
		nullString(result.Evidence),
		boolToInt(result.HasAIFocus),
		scannedAt.Format(time.RFC3339),
		result.Score,
		scannedAt.Format(time.RFC3339),
		ticker,
	)
	if err != nil {
		return fmt.Errorf("failed to apply scan result for %s: %w", ticker, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Debug().Str("ticker", ticker).Int("score", result.Score).Msg("Scan result applied")
	return nil
}

// Upsert applies a partial update to a stock, creating the record when the
// ticker is unknown. Nil fields are left untouched on an existing record.
// last_scanned is always advanced; last_ai_mention only moves when the
// update carries a score above zero. Flipping is_active stamps or clears
// deactivated_at accordingly.
func (r *Repository) Upsert(ticker string, fields Fields) error {
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return fmt.Errorf("ticker is required")
	}

	companyName := ticker
	if fields.CompanyName != nil && strings.TrimSpace(*fields.CompanyName) != "" {
		companyName = strings.TrimSpace(*fields.CompanyName)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO trading_universe (ticker, company_name, is_active)
		VALUES (?, ?, 1)
		ON CONFLICT(ticker) DO NOTHING
	`, ticker, companyName)
	if err != nil {
		return fmt.Errorf("failed to ensure universe record for %s: %w", ticker, err)
	}

	var sets []string
	var args []interface{}

	if fields.CompanyName != nil {
		sets = append(sets, "company_name = ?")
		args = append(args, strings.TrimSpace(*fields.CompanyName))
	}
	if fields.Sector != nil {
		sets = append(sets, "sector = ?")
		args = append(args, nullString(*fields.Sector))
	}
	if fields.Score != nil {
		sets = append(sets, "ai_score = ?", "has_ai_focus = ?")
		args = append(args, *fields.Score, boolToInt(*fields.Score >= 40))
	}
	if fields.Category != nil {
		sets = append(sets, "ai_category = ?")
		args = append(args, nullString(*fields.Category))
	}
	if fields.Evidence != nil {
		sets = append(sets, "ai_evidence = ?")
		args = append(args, nullString(*fields.Evidence))
	}
	if fields.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, boolToInt(*fields.IsActive))
		if *fields.IsActive {
			sets = append(sets, "deactivated_at = NULL")
		} else {
			sets = append(sets, "deactivated_at = COALESCE(deactivated_at, ?)")
			args = append(args, time.Now().UTC().Format(time.RFC3339))
		}
	}
	if fields.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, nullString(*fields.Notes))
	}

	now := time.Now().UTC().Format(time.RFC3339)
	sets = append(sets, "last_scanned = ?")
	args = append(args, now)
	if fields.Score != nil && *fields.Score > 0 {
		sets = append(sets, "last_ai_mention = ?")
		args = append(args, now)
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, ticker)

	_, err = tx.Exec("UPDATE trading_universe SET "+strings.Join(sets, ", ")+" WHERE ticker = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", ticker, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Deactivate marks a stock inactive and records when it happened.
// Idempotent: deactivating an inactive stock leaves deactivated_at untouched.
func (r *Repository) Deactivate(ticker string) error {
	ticker = normalizeTicker(ticker)

	query := `
		UPDATE trading_universe SET
			is_active = 0,
			deactivated_at = COALESCE(deactivated_at, ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE ticker = ? AND is_active = 1
	`

	res, err := r.db.Exec(query, time.Now().UTC().Format(time.RFC3339), ticker)
	if err != nil {
		return fmt.Errorf("failed to deactivate %s: %w", ticker, err)
	}

	if affected, _ := res.RowsAffected(); affected > 0 {
		r.log.Info().Str("ticker", ticker).Msg("Stock deactivated")
	}

	return nil
}

// Reactivate marks a stock active again and clears deactivated_at
func (r *Repository) Reactivate(ticker string) error {
	ticker = normalizeTicker(ticker)

	query := `
		UPDATE trading_universe SET
			is_active = 1,
			deactivated_at = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE ticker = ?
	`

	if _, err := r.db.Exec(query, ticker); err != nil {
		return fmt.Errorf("failed to reactivate %s: %w", ticker, err)
	}

	r.log.Info().Str("ticker", ticker).Msg("Stock reactivated")
	return nil
}

// Query returns stocks matching the filter, highest score first
func (r *Repository) Query(filter Filter) ([]Stock, error) {
	query := "SELECT " + stockColumns + " FROM trading_universe"

	var conditions []string
	var args []interface{}

	if filter.IsActive != nil {
		conditions = append(conditions, "is_active = ?")
		args = append(args, boolToInt(*filter.IsActive))
	}
	if filter.MinScore != nil {
		conditions = append(conditions, "ai_score >= ?")
		args = append(args, *filter.MinScore)
	}
	if filter.MaxScore != nil {
		conditions = append(conditions, "ai_score <= ?")
		args = append(args, *filter.MaxScore)
	}
	if filter.Category != nil {
		conditions = append(conditions, "ai_category = ?")
		args = append(args, *filter.Category)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	query += " ORDER BY ai_score DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query universe: %w", err)
	}
	defer rows.Close()

	var stocks []Stock
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, stock)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stocks: %w", err)
	}

	return stocks, nil
}

// ActiveTickers returns all active ticker symbols, alphabetically
func (r *Repository) ActiveTickers() ([]string, error) {
	rows, err := r.db.Query("SELECT ticker FROM trading_universe WHERE is_active = 1 ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to query active tickers: %w", err)
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

// AllTickers returns every ticker symbol, active or not, alphabetically.
// Deep scans use this to rediscover deactivated stocks.
func (r *Repository) AllTickers() ([]string, error) {
	rows, err := r.db.Query("SELECT ticker FROM trading_universe ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
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

// Count returns the number of stocks in the universe (active and inactive)
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM trading_universe").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count universe: %w", err)
	}
	return count, nil
}

// AllScores returns the scores of all active stocks.
// Used by the stats calculator.
func (r *Repository) AllScores() ([]float64, error) {
	rows, err := r.db.Query("SELECT ai_score FROM trading_universe WHERE is_active = 1")
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, score)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}

	return scores, nil
}

// CategoryCounts returns the number of active stocks per category.
// Stocks without a category are excluded.
func (r *Repository) CategoryCounts() (map[string]int, error) {
	rows, err := r.db.Query(`
		SELECT ai_category, COUNT(*) FROM trading_universe
		WHERE is_active = 1 AND ai_category IS NOT NULL
		GROUP BY ai_category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query category counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts[category] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category counts: %w", err)
	}

	return counts, nil
}

// StaleBefore returns active stocks whose last AI mention is older than the
// cutoff. Stocks never mentioned (last_ai_mention IS NULL) are not stale,
// they just have not been found relevant yet.
func (r *Repository) StaleBefore(cutoff time.Time) ([]Stock, error) {
	query := "SELECT " + stockColumns + ` FROM trading_universe
		WHERE is_active = 1 AND last_ai_mention IS NOT NULL AND last_ai_mention < ?`

	rows, err := r.db.Query(query, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query stale stocks: %w", err)
	}
	defer rows.Close()

	var stocks []Stock
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, stock)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale stocks: %w", err)
	}

	return stocks, nil
}

// scanStock scans a database row into a Stock struct
func scanStock(rows *sql.Rows) (Stock, error) {
	var stock Stock
	var sector, category, evidence, notes sql.NullString
	var hasAIFocus, isActive int
	var lastScanned, lastMention, deactivatedAt sql.NullString
	var createdAt, updatedAt string

	err := rows.Scan(
		&stock.Ticker,
		&stock.CompanyName,
		&sector,
		&stock.AIScore,
		&category,
		&evidence,
		&hasAIFocus,
		&isActive,
		&lastScanned,
		&lastMention,
		&deactivatedAt,
		&notes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return stock, err
	}

	if sector.Valid {
		stock.Sector = sector.String
	}
	if category.Valid {
		stock.AICategory = &category.String
	}
	if evidence.Valid {
		stock.AIEvidence = evidence.String
	}
	if notes.Valid {
		stock.Notes = notes.String
	}
	stock.HasAIFocus = hasAIFocus != 0
	stock.IsActive = isActive != 0

	stock.LastScanned = parseTimePtr(lastScanned)
	stock.LastAIMention = parseTimePtr(lastMention)
	stock.DeactivatedAt = parseTimePtr(deactivatedAt)
	stock.CreatedAt = parseTime(createdAt)
	stock.UpdatedAt = parseTime(updatedAt)

	return stock, nil
}

// parseTime handles both RFC3339 (our writes) and the SQLite
// CURRENT_TIMESTAMP format (schema defaults).
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
