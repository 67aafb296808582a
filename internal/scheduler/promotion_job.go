package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/modules/watchlist"
)

// PromotionJob runs the watchlist promotion policy over the universe
type PromotionJob struct {
	policy *watchlist.Policy
	log    zerolog.Logger
}

// NewPromotionJob creates a new promotion job
func NewPromotionJob(policy *watchlist.Policy, log zerolog.Logger) *PromotionJob {
	return &PromotionJob{
		policy: policy,
		log:    log.With().Str("job", "promotion_cycle").Logger(),
	}
}

// Name returns the job name
func (j *PromotionJob) Name() string {
	return "promotion_cycle"
}

// Run executes one promotion cycle
func (j *PromotionJob) Run() error {
	result, err := j.policy.RunCycle()
	if err != nil {
		return fmt.Errorf("promotion cycle failed: %w", err)
	}

	j.log.Info().
		Int("promoted", result.Promoted).
		Int("demoted", result.Demoted).
		Int("deactivated", result.Deactivated).
		Msg("Promotion cycle completed")

	return nil
}
