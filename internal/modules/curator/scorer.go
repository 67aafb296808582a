package curator

import (
	"fmt"
	"strings"

	"github.com/aristath/deepdiver/internal/clients/finnhub"
)

// defaultMaxScoredArticles limits how many news articles contribute to
// the score when no cap is configured.
const defaultMaxScoredArticles = 10

// maxEvidenceItems limits the evidence summary length.
const maxEvidenceItems = 5

// KeywordResult is the outcome of stage 1 keyword scoring.
// After stage 2 LLMReasoning carries the validator's verdict.
type KeywordResult struct {
	Ticker       string
	CompanyName  string
	Sector       string
	Score        int
	Category     *string
	Evidence     []string
	HasAI        bool
	LLMReasoning string
}

// EvidenceString joins the first few evidence items for storage.
// The validator's reasoning, when present, is always appended.
func (r KeywordResult) EvidenceString() string {
	items := r.Evidence
	if len(items) > maxEvidenceItems {
		items = items[:maxEvidenceItems]
	}
	s := strings.Join(items, " | ")
	if r.LLMReasoning != "" {
		if s != "" {
			s += " | "
		}
		s += "LLM: " + r.LLMReasoning
	}
	return s
}

// ScoreKeywords runs stage 1 keyword scoring over the company description
// and recent news.
//
// The description is scanned exhaustively: every matching keyword counts.
// News articles count each tier at most once per article, so a single
// buzzword-heavy press release cannot dominate the score. maxArticles
// caps how many articles are considered; zero or negative means the
// default of 10.
func ScoreKeywords(ticker string, profile *finnhub.Profile, articles []finnhub.NewsArticle, maxArticles int) KeywordResult {
	result := KeywordResult{
		Ticker: strings.ToUpper(strings.TrimSpace(ticker)),
	}
	result.CompanyName = result.Ticker

	if profile != nil {
		if profile.Name != "" {
			result.CompanyName = profile.Name
		}
		result.Sector = profile.Industry

		description := strings.ToLower(profile.Description)
		for _, keyword := range tier1Keywords {
			if strings.Contains(description, keyword) {
				result.Score += tier1Points
				result.Evidence = append(result.Evidence, fmt.Sprintf("Description: '%s'", keyword))
			}
		}
		for _, keyword := range tier2Keywords {
			if strings.Contains(description, keyword) {
				result.Score += tier2Points
				result.Evidence = append(result.Evidence, fmt.Sprintf("Description: '%s'", keyword))
			}
		}
	}

	if maxArticles <= 0 {
		maxArticles = defaultMaxScoredArticles
	}
	if len(articles) > maxArticles {
		articles = articles[:maxArticles]
	}
	for _, article := range articles {
		text := strings.ToLower(article.Headline + " " + article.Summary)

		for _, keyword := range tier1Keywords {
			if strings.Contains(text, keyword) {
				result.Score += tier1Points
				result.Evidence = append(result.Evidence, fmt.Sprintf("News: '%s' in headline", keyword))
				break // Count once per article
			}
		}
		for _, keyword := range tier2Keywords {
			if strings.Contains(text, keyword) {
				result.Score += tier2Points
				break
			}
		}
	}

	if result.Score > MaxScore {
		result.Score = MaxScore
	}

	result.HasAI = result.Score >= AIFocusThreshold

	if result.Score > 0 {
		category := categorize(result.Evidence)
		result.Category = &category
	}

	return result
}

// categorize determines the AI category from the collected evidence.
// Categories are checked in precedence order; the fallback is
// ai_beneficiary for stocks with evidence but no specific match.
func categorize(evidence []string) string {
	evidenceText := strings.ToLower(strings.Join(evidence, " "))

	for _, entry := range categoryKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(evidenceText, keyword) {
				return entry.name
			}
		}
	}

	return CategoryBeneficiary
}

// IsBorderline reports whether a keyword score needs LLM validation.
func IsBorderline(score int) bool {
	return score >= BorderlineLow && score <= BorderlineHigh
}
