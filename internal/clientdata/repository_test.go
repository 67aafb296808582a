package clientdata

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSchema creates all tables needed for testing
const testSchema = `
CREATE TABLE finnhub_profile (ticker TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE finnhub_news (ticker TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE finnhub_quote (ticker TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE finnhub_candles (ticker TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);

CREATE INDEX idx_profile_expires ON finnhub_profile(expires_at);
CREATE INDEX idx_news_expires ON finnhub_news(expires_at);
CREATE INDEX idx_quote_expires ON finnhub_quote(expires_at);
CREATE INDEX idx_candles_expires ON finnhub_candles(expires_at);
`

type testPayload struct {
	Name  string  `msgpack:"name"`
	Price float64 `msgpack:"price"`
}

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

func TestNewRepository(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	assert.NotNil(t, repo)
}

func TestStoreAndGetIfFresh(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	in := testPayload{Name: "NVIDIA Corporation", Price: 123.45}
	require.NoError(t, repo.Store("finnhub_profile", "NVDA", in, TTLProfile))

	var out testPayload
	found, err := repo.GetIfFresh("finnhub_profile", "NVDA", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestGetIfFresh_MissingKey(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	var out testPayload
	found, err := repo.GetIfFresh("finnhub_profile", "MISSING", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetIfFresh_ExpiredReturnsNotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	// Negative TTL produces an already-expired entry
	require.NoError(t, repo.Store("finnhub_quote", "NVDA", testPayload{Price: 1}, -time.Hour))

	var out testPayload
	found, err := repo.GetIfFresh("finnhub_quote", "NVDA", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGet_ReturnsStaleData(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	in := testPayload{Name: "stale", Price: 9.99}
	require.NoError(t, repo.Store("finnhub_quote", "NVDA", in, -time.Hour))

	var out testPayload
	found, err := repo.Get("finnhub_quote", "NVDA", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestStore_UpsertReplacesExisting(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store("finnhub_profile", "NVDA", testPayload{Price: 1}, TTLProfile))
	require.NoError(t, repo.Store("finnhub_profile", "NVDA", testPayload{Price: 2}, TTLProfile))

	var out testPayload
	found, err := repo.GetIfFresh("finnhub_profile", "NVDA", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2.0, out.Price)
}

func TestInvalidTableRejected(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	err := repo.Store("users; DROP TABLE finnhub_profile", "NVDA", testPayload{}, time.Hour)
	assert.Error(t, err)

	var out testPayload
	_, err = repo.Get("bogus", "NVDA", &out)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store("finnhub_news", "NVDA", testPayload{}, time.Hour))
	require.NoError(t, repo.Delete("finnhub_news", "NVDA"))

	var out testPayload
	found, err := repo.Get("finnhub_news", "NVDA", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteExpired(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store("finnhub_candles", "NVDA", testPayload{}, -time.Hour))
	require.NoError(t, repo.Store("finnhub_candles", "AMD", testPayload{}, time.Hour))

	deleted, err := repo.DeleteExpired("finnhub_candles")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var out testPayload
	found, err := repo.Get("finnhub_candles", "AMD", &out)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDeleteAllExpired(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store("finnhub_profile", "NVDA", testPayload{}, -time.Hour))
	require.NoError(t, repo.Store("finnhub_quote", "NVDA", testPayload{}, -time.Hour))
	require.NoError(t, repo.Store("finnhub_news", "NVDA", testPayload{}, time.Hour))

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), results["finnhub_profile"])
	assert.Equal(t, int64(1), results["finnhub_quote"])
	assert.Equal(t, int64(0), results["finnhub_news"])
}
