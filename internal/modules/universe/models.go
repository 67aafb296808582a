// Package universe manages the scored stock universe backing the curator.
package universe

import "time"

// Stock represents a single company in the trading universe.
// The AI fields are maintained by the curator's scan pipeline.
type Stock struct {
	Ticker        string     `json:"ticker"`
	CompanyName   string     `json:"company_name"`
	Sector        string     `json:"sector,omitempty"`
	AIScore       int        `json:"ai_score"`
	AICategory    *string    `json:"ai_category,omitempty"`
	AIEvidence    string     `json:"ai_evidence,omitempty"`
	HasAIFocus    bool       `json:"has_ai_focus"`
	IsActive      bool       `json:"is_active"`
	LastScanned   *time.Time `json:"last_scanned,omitempty"`
	LastAIMention *time.Time `json:"last_ai_mention,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ScanResult is the outcome of scoring a single ticker.
// Applied to the universe via Repository.ApplyScanResult.
type ScanResult struct {
	Ticker      string    `json:"ticker"`
	CompanyName string    `json:"company_name,omitempty"`
	Sector      string    `json:"sector,omitempty"`
	Score       int       `json:"score"`
	Category    *string   `json:"category,omitempty"`
	Evidence    string    `json:"evidence,omitempty"`
	HasAIFocus  bool      `json:"has_ai_focus"`
	ScannedAt   time.Time `json:"scanned_at"`
}

// Fields is a partial update for Upsert. Nil pointers leave the stored
// value untouched on an existing record and default on a new one.
type Fields struct {
	CompanyName *string `json:"company_name,omitempty"`
	Sector      *string `json:"sector,omitempty"`
	Score       *int    `json:"score,omitempty"`
	Category    *string `json:"category,omitempty"`
	Evidence    *string `json:"evidence,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// Filter narrows Query results. Nil pointer fields are not applied.
type Filter struct {
	IsActive *bool
	MinScore *int
	MaxScore *int
	Category *string
	Limit    int // defaults to 100 when <= 0
}

// DefaultQueryLimit caps Query results when no limit is given.
const DefaultQueryLimit = 100
