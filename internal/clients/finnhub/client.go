// Package finnhub provides market data fetching and caching for the Finnhub API.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aristath/deepdiver/internal/clientdata"
	"github.com/rs/zerolog"
)

// Client for finnhub.io
type Client struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new Finnhub client
// cacheRepo is optional - if nil, caching is disabled
func NewClient(apiKey, baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	return &Client{
		apiKey:    apiKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "finnhub").Logger(),
		cacheRepo: cacheRepo,
	}
}

// Profile holds company profile data from /stock/profile2.
type Profile struct {
	Ticker      string  `json:"ticker" msgpack:"ticker"`
	Name        string  `json:"name" msgpack:"name"`
	Exchange    string  `json:"exchange" msgpack:"exchange"`
	Industry    string  `json:"finnhubIndustry" msgpack:"industry"`
	Description string  `json:"description" msgpack:"description"`
	MarketCap   float64 `json:"marketCapitalization" msgpack:"market_cap"`
	WebURL      string  `json:"weburl" msgpack:"weburl"`
}

// NewsArticle holds a single company news article from /company-news.
type NewsArticle struct {
	ID       int64  `json:"id" msgpack:"id"`
	DateTime int64  `json:"datetime" msgpack:"datetime"` // unix seconds
	Headline string `json:"headline" msgpack:"headline"`
	Summary  string `json:"summary" msgpack:"summary"`
	Source   string `json:"source" msgpack:"source"`
	URL      string `json:"url" msgpack:"url"`
}

// Quote holds a real-time quote from /quote.
type Quote struct {
	Current       float64 `json:"c" msgpack:"c"`
	High          float64 `json:"h" msgpack:"h"`
	Low           float64 `json:"l" msgpack:"l"`
	Open          float64 `json:"o" msgpack:"o"`
	PreviousClose float64 `json:"pc" msgpack:"pc"`
	Timestamp     int64   `json:"t" msgpack:"t"`
}

// Candles holds OHLCV series from /stock/candle.
// Status is "ok" or "no_data".
type Candles struct {
	Open   []float64 `json:"o" msgpack:"o"`
	High   []float64 `json:"h" msgpack:"h"`
	Low    []float64 `json:"l" msgpack:"l"`
	Close  []float64 `json:"c" msgpack:"c"`
	Volume []float64 `json:"v" msgpack:"v"`
	Times  []int64   `json:"t" msgpack:"t"`
	Status string    `json:"s" msgpack:"s"`
}

// CompanyProfile fetches the company profile with cache.
// If the API fails, returns stale cached data if available (stale data > no data).
func (c *Client) CompanyProfile(ctx context.Context, ticker string) (*Profile, error) {
	if c.cacheRepo != nil {
		var cached Profile
		found, err := c.cacheRepo.GetIfFresh("finnhub_profile", ticker, &cached)
		if err == nil && found {
			c.log.Debug().Str("ticker", ticker).Msg("Profile cache hit")
			return &cached, nil
		}
	}

	var profile Profile
	err := c.get(ctx, "/stock/profile2", url.Values{"symbol": {ticker}}, &profile)
	if err != nil {
		if stale, ok := c.staleProfile(ticker); ok {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("API failed, using stale cached profile")
			return stale, nil
		}
		return nil, err
	}

	if profile.Name == "" && profile.Ticker == "" {
		// Finnhub returns an empty object for unknown symbols
		return nil, fmt.Errorf("no profile found for %s", ticker)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("finnhub_profile", ticker, profile, clientdata.TTLProfile); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache profile")
		}
	}

	return &profile, nil
}

// CompanyNews fetches company news for the lookback window with cache.
// Articles are returned newest first, as Finnhub serves them.
func (c *Client) CompanyNews(ctx context.Context, ticker string, from, to time.Time) ([]NewsArticle, error) {
	if c.cacheRepo != nil {
		var cached []NewsArticle
		found, err := c.cacheRepo.GetIfFresh("finnhub_news", ticker, &cached)
		if err == nil && found {
			c.log.Debug().Str("ticker", ticker).Int("articles", len(cached)).Msg("News cache hit")
			return cached, nil
		}
	}

	params := url.Values{
		"symbol": {ticker},
		"from":   {from.Format("2006-01-02")},
		"to":     {to.Format("2006-01-02")},
	}

	var articles []NewsArticle
	err := c.get(ctx, "/company-news", params, &articles)
	if err != nil {
		if stale, ok := c.staleNews(ticker); ok {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("API failed, using stale cached news")
			return stale, nil
		}
		return nil, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("finnhub_news", ticker, articles, clientdata.TTLNews); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache news")
		}
	}

	return articles, nil
}

// GetQuote fetches a real-time quote with cache.
func (c *Client) GetQuote(ctx context.Context, ticker string) (*Quote, error) {
	if c.cacheRepo != nil {
		var cached Quote
		found, err := c.cacheRepo.GetIfFresh("finnhub_quote", ticker, &cached)
		if err == nil && found {
			return &cached, nil
		}
	}

	var quote Quote
	if err := c.get(ctx, "/quote", url.Values{"symbol": {ticker}}, &quote); err != nil {
		return nil, err
	}

	if quote.Timestamp == 0 {
		return nil, fmt.Errorf("no quote found for %s", ticker)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("finnhub_quote", ticker, quote, clientdata.TTLQuote); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache quote")
		}
	}

	return &quote, nil
}

// DailyCandles fetches daily OHLCV candles for the given window with cache.
func (c *Client) DailyCandles(ctx context.Context, ticker string, from, to time.Time) (*Candles, error) {
	if c.cacheRepo != nil {
		var cached Candles
		found, err := c.cacheRepo.GetIfFresh("finnhub_candles", ticker, &cached)
		if err == nil && found && len(cached.Close) > 0 {
			return &cached, nil
		}
	}

	params := url.Values{
		"symbol":     {ticker},
		"resolution": {"D"},
		"from":       {fmt.Sprintf("%d", from.Unix())},
		"to":         {fmt.Sprintf("%d", to.Unix())},
	}

	var candles Candles
	if err := c.get(ctx, "/stock/candle", params, &candles); err != nil {
		return nil, err
	}

	if candles.Status != "ok" {
		return nil, fmt.Errorf("no candle data for %s (status %q)", ticker, candles.Status)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("finnhub_candles", ticker, candles, clientdata.TTLCandles); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache candles")
		}
	}

	return &candles, nil
}

// get performs an authenticated GET request and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	params.Set("token", c.apiKey)
	fullURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited by finnhub (status 429)")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

func (c *Client) staleProfile(ticker string) (*Profile, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	var cached Profile
	found, err := c.cacheRepo.Get("finnhub_profile", ticker, &cached)
	if err != nil || !found {
		return nil, false
	}
	return &cached, true
}

func (c *Client) staleNews(ticker string) ([]NewsArticle, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	var cached []NewsArticle
	found, err := c.cacheRepo.Get("finnhub_news", ticker, &cached)
	if err != nil || !found {
		return nil, false
	}
	return cached, true
}
