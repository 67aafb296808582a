// Package journal provides the append-only decision log for the curator.
package journal

import "time"

// Entry types recorded in the journal.
const (
	TypeScan         = "scan"
	TypePromotion    = "promotion"
	TypeDemotion     = "demotion"
	TypeDeactivation = "deactivation"
	TypeSignal       = "signal"
	TypeBootstrap    = "bootstrap"
	TypeError        = "error"
	TypeSummary      = "summary"
)

// Entry is a single journal record. Entries are never updated or deleted.
type Entry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	EntryType     string    `json:"entry_type"`
	Ticker        string    `json:"ticker,omitempty"`
	Score         *int      `json:"score,omitempty"`
	PreviousScore *int      `json:"previous_score,omitempty"`
	Action        string    `json:"action,omitempty"`
	Reasoning     string    `json:"reasoning,omitempty"`
	Metadata      string    `json:"metadata,omitempty"` // free-form JSON
}
