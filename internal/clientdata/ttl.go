package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Stable data (rarely changes)
	TTLProfile = 7 * 24 * time.Hour // 7 days - Company profiles and descriptions

	// Daily data (drives the relevance scoring pipeline)
	TTLNews    = 6 * time.Hour  // 6 hours - Company news, refetched before each scan window
	TTLCandles = 24 * time.Hour // 1 day - Daily OHLCV candles for breakout signals

	// Short-lived data (changes frequently)
	TTLQuote = 10 * time.Minute // 10 minutes - Quote cache for batch operations
)
