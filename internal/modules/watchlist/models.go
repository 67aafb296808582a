// Package watchlist manages the curated list of stocks handed to the
// trading side, and the promotion policy that maintains it.
package watchlist

import "time"

// StatusWatching is the status given to freshly promoted stocks.
const StatusWatching = "Watching"

// Item is a single watchlist entry.
type Item struct {
	Ticker    string    `json:"ticker"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
