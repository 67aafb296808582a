package curator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/clients/gemini"
)

// maxAdjustment bounds how far the validator may move a keyword score.
// Keeps the LLM honest: it refines borderline verdicts, it does not
// overrule the keyword stage.
const maxAdjustment = 20

// Validator escalates borderline keyword scores to an LLM for a second
// opinion.
type Validator struct {
	client gemini.Client
	log    zerolog.Logger
}

// NewValidator creates a new LLM validator.
// client may be nil, in which case validation is a no-op passthrough.
func NewValidator(client gemini.Client, log zerolog.Logger) *Validator {
	return &Validator{
		client: client,
		log:    log.With().Str("component", "curator_validator").Logger(),
	}
}

// Enabled reports whether LLM validation is available.
func (v *Validator) Enabled() bool {
	return v.client != nil
}

// validationResponse is the JSON shape the LLM is asked to return.
type validationResponse struct {
	IsGenuineAI   bool   `json:"is_genuine_ai"`
	Category      string `json:"category"`
	AdjustedScore int    `json:"adjusted_score"`
	Reasoning     string `json:"reasoning"`
}

// Validate runs stage 2 on a borderline stage 1 result and returns the
// adjusted result plus whether the adjustment was actually applied. The
// adjusted score is clamped to within maxAdjustment of the keyword score.
// On any LLM failure the stage 1 result is returned unchanged with
// applied=false so callers can record the skip; a flaky validator must
// never block the scan.
func (v *Validator) Validate(ctx context.Context, result KeywordResult) (KeywordResult, bool) {
	if v.client == nil {
		return result, false
	}

	prompt := buildValidationPrompt(result)

	raw, err := v.client.GenerateJSON(ctx, prompt)
	if err != nil {
		v.log.Warn().Err(err).Str("ticker", result.Ticker).Msg("LLM validation failed, keeping keyword score")
		return result, false
	}

	var resp validationResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		v.log.Warn().Err(err).Str("ticker", result.Ticker).Msg("LLM returned malformed JSON, keeping keyword score")
		return result, false
	}

	adjusted := clampAdjustment(result.Score, resp.AdjustedScore)

	validated := result
	validated.Score = adjusted
	validated.HasAI = adjusted >= AIFocusThreshold

	category := strings.ToLower(strings.TrimSpace(resp.Category))
	if ValidCategories[category] {
		validated.Category = &category
	}

	validated.LLMReasoning = strings.TrimSpace(resp.Reasoning)

	v.log.Info().
		Str("ticker", result.Ticker).
		Int("keyword_score", result.Score).
		Int("adjusted_score", adjusted).
		Bool("is_genuine_ai", resp.IsGenuineAI).
		Msg("LLM validation applied")

	return validated, true
}

// clampAdjustment keeps the adjusted score within maxAdjustment of the
// keyword score and within the 0-100 range.
func clampAdjustment(keywordScore, adjusted int) int {
	low := keywordScore - maxAdjustment
	high := keywordScore + maxAdjustment

	if adjusted < low {
		adjusted = low
	}
	if adjusted > high {
		adjusted = high
	}
	if adjusted < 0 {
		adjusted = 0
	}
	if adjusted > MaxScore {
		adjusted = MaxScore
	}
	return adjusted
}

// buildValidationPrompt renders the validation prompt for a stage 1 result.
func buildValidationPrompt(result KeywordResult) string {
	sector := result.Sector
	if sector == "" {
		sector = "Unknown"
	}

	return fmt.Sprintf(`Analyze this company's AI involvement:

Company: %s (%s)
Sector: %s
Keyword Score: %d
Evidence: %s

Questions:
1. Is this a genuine AI company? (yes/no)
2. What's the primary AI category: ai_chip, ai_software, ai_cloud, ai_infrastructure, or ai_beneficiary?
3. Adjust score between %d and %d based on context.
4. Provide brief reasoning (1 sentence).

Return JSON:
{
  "is_genuine_ai": bool,
  "category": str,
  "adjusted_score": int,
  "reasoning": str
}`,
		result.CompanyName, result.Ticker, sector,
		result.Score, result.EvidenceString(),
		result.Score-maxAdjustment, result.Score+maxAdjustment,
	)
}
