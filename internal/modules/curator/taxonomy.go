// Package curator implements the two-stage AI relevance scoring pipeline
// that maintains the trading universe.
package curator

// Keyword tier weights.
const (
	tier1Points = 10
	tier2Points = 5
	tier3Points = 2
)

// Score thresholds.
const (
	// MaxScore caps keyword scoring.
	MaxScore = 100

	// AIFocusThreshold marks a stock as AI-relevant.
	AIFocusThreshold = 40

	// BorderlineLow and BorderlineHigh bound the score band that gets
	// escalated to LLM validation. Scores outside the band are either
	// clearly irrelevant or clearly relevant, so the keyword verdict stands.
	BorderlineLow  = 30
	BorderlineHigh = 70
)

// CategoryBeneficiary is the fallback category for stocks with a positive
// score that match no specific category keywords.
const CategoryBeneficiary = "ai_beneficiary"

// ValidCategories are the categories the validator may assign.
var ValidCategories = map[string]bool{
	"ai_chip":           true,
	"ai_software":       true,
	"ai_cloud":          true,
	"ai_infrastructure": true,
	"ai_beneficiary":    true,
}

// tier1Keywords are strong AI signals worth 10 points each.
var tier1Keywords = []string{
	"artificial intelligence", "machine learning", "deep learning",
	"neural network", "large language model", "llm", "generative ai",
	"gpt", "transformer model", "ai chip", "gpu inference", "nvidia gpu",
	"neural processor", "tpu", "ai accelerator",
}

// tier2Keywords are moderate signals worth 5 points each.
var tier2Keywords = []string{
	"openai partnership", "anthropic", "ai partnership",
	"data center", "cloud ai", "ai-powered", "ai integration",
	"automation", "predictive analytics", "computer vision",
	"natural language processing", "nlp", "ai model",
}

// tier3Keywords are weak signals worth 2 points each.
// Too noisy for scoring, kept for future tuning.
var tier3Keywords = []string{
	"algorithm", "data science", "analytics platform",
	"intelligent", "smart technology", "automated",
}

// categoryEntry preserves category precedence: ai_chip wins over
// ai_software wins over ai_cloud when evidence matches several.
type categoryEntry struct {
	name     string
	keywords []string
}

// categoryKeywords map evidence text to a category.
var categoryKeywords = []categoryEntry{
	{"ai_chip", []string{"gpu", "ai chip", "neural processor", "tpu", "ai accelerator", "nvidia", "cuda"}},
	{"ai_software", []string{"llm", "generative ai", "ai platform", "ai agent", "chatgpt", "gpt"}},
	{"ai_cloud", []string{"ai inference", "model training", "ai infrastructure", "gpu cloud"}},
}
