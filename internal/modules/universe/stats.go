package universe

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the score distribution of the active universe.
type Stats struct {
	Total      int            `json:"total"`
	AIRelevant int            `json:"ai_relevant"` // score >= 40
	Mean       float64        `json:"mean"`
	StdDev     float64        `json:"std_dev"`
	Median     float64        `json:"median"`
	P90        float64        `json:"p90"`
	Max        float64        `json:"max"`
	Categories map[string]int `json:"categories"`
}

// ComputeStats builds a score distribution summary for the active universe
func ComputeStats(repo *Repository) (*Stats, error) {
	scores, err := repo.AllScores()
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}

	categories, err := repo.CategoryCounts()
	if err != nil {
		return nil, fmt.Errorf("failed to load category counts: %w", err)
	}

	stats := &Stats{
		Total:      len(scores),
		Categories: categories,
	}

	if len(scores) == 0 {
		return stats, nil
	}

	for _, s := range scores {
		if s >= 40 {
			stats.AIRelevant++
		}
	}

	// stat.Quantile requires sorted input
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	stats.Mean = mean
	if len(sorted) > 1 {
		stats.StdDev = std
	}
	stats.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	stats.P90 = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	stats.Max = sorted[len(sorted)-1]

	return stats, nil
}
