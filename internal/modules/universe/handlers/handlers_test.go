package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/deepdiver/internal/modules/universe"
)

const testSchema = `
CREATE TABLE trading_universe (
    ticker TEXT PRIMARY KEY,
    company_name TEXT NOT NULL,
    sector TEXT,
    ai_score INTEGER NOT NULL DEFAULT 0,
    ai_category TEXT,
    ai_evidence TEXT,
    has_ai_focus INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    last_scanned TIMESTAMP,
    last_ai_mention TIMESTAMP,
    deactivated_at TIMESTAMP,
    notes TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func setupRouter(t *testing.T) (*chi.Mux, *universe.Repository) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	repo := universe.NewRepository(db, zerolog.Nop())
	bootstrapper := universe.NewBootstrapper(repo, zerolog.Nop())
	handler := NewHandler(repo, bootstrapper, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	return router, repo
}

func strPtr(s string) *string { return &s }

func seedScored(t *testing.T, repo *universe.Repository, ticker string, score int, category string) {
	t.Helper()
	require.NoError(t, repo.Add(universe.Stock{Ticker: ticker, CompanyName: ticker + " Inc"}))
	var cat *string
	if category != "" {
		cat = strPtr(category)
	}
	require.NoError(t, repo.ApplyScanResult(universe.ScanResult{Ticker: ticker, Score: score, Category: cat}))
}

func TestHandleQuery(t *testing.T) {
	router, repo := setupRouter(t)
	seedScored(t, repo, "NVDA", 95, "ai_chip")
	seedScored(t, repo, "MSFT", 75, "ai_software")
	seedScored(t, repo, "KO", 5, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/universe/?min_score=50", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Count  int              `json:"count"`
		Stocks []universe.Stock `json:"stocks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Count)
	require.Len(t, response.Stocks, 2)
	assert.Equal(t, "NVDA", response.Stocks[0].Ticker)
}

func TestHandleQuery_BadFilter(t *testing.T) {
	router, _ := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/universe/?min_score=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGet(t *testing.T) {
	router, repo := setupRouter(t)
	seedScored(t, repo, "NVDA", 95, "ai_chip")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/universe/nvda", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stock universe.Stock
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stock))
	assert.Equal(t, "NVDA", stock.Ticker)
	assert.Equal(t, 95, stock.AIScore)
}

func TestHandleGet_NotFound(t *testing.T) {
	router, _ := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/universe/GHOST", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUpsert(t *testing.T) {
	router, repo := setupRouter(t)

	body := strings.NewReader(`{"company_name": "NVIDIA Corporation", "score": 85, "category": "ai_chip"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/universe/NVDA", body))

	require.Equal(t, http.StatusOK, rec.Code)

	stock, err := repo.Get("NVDA")
	require.NoError(t, err)
	require.NotNil(t, stock)
	assert.Equal(t, "NVIDIA Corporation", stock.CompanyName)
	assert.Equal(t, 85, stock.AIScore)
	assert.True(t, stock.HasAIFocus)
}

func TestHandleUpsert_RejectsUnknownFields(t *testing.T) {
	router, _ := setupRouter(t)

	body := strings.NewReader(`{"bogus_field": 1}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/universe/NVDA", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDeactivateReactivate(t *testing.T) {
	router, repo := setupRouter(t)
	seedScored(t, repo, "NVDA", 95, "ai_chip")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/universe/NVDA/deactivate", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	stock, err := repo.Get("NVDA")
	require.NoError(t, err)
	assert.False(t, stock.IsActive)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/universe/NVDA/reactivate", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	stock, err = repo.Get("NVDA")
	require.NoError(t, err)
	assert.True(t, stock.IsActive)
	assert.Nil(t, stock.DeactivatedAt)
}

func TestHandleStats(t *testing.T) {
	router, repo := setupRouter(t)
	seedScored(t, repo, "NVDA", 95, "ai_chip")
	seedScored(t, repo, "KO", 5, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/universe/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats universe.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.AIRelevant)
	assert.Equal(t, 95.0, stats.Max)
}

func TestHandleBootstrap(t *testing.T) {
	router, repo := setupRouter(t)

	csv := "Ticker,Name,Sector\nNVDA,NVIDIA Corporation,Technology\nMSFT,Microsoft Corporation,Technology\n"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/universe/bootstrap", strings.NewReader(csv)))

	require.Equal(t, http.StatusOK, rec.Code)

	var result universe.BootstrapResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Imported)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHandleBootstrap_BadCSV(t *testing.T) {
	router, _ := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/universe/bootstrap", strings.NewReader("no,ticker,here\n1,2,3\n")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
