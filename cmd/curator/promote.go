package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/deepdiver/internal/modules/watchlist"
)

var promoteCommand = &cobra.Command{
	Use:   "promote",
	Short: "Run the watchlist promotion cycle",
	Long:  "Applies the promotion policy to the whole universe: high scorers join the watchlist, faded scorers leave it, and stocks that stayed quiet too long are deactivated.",
	Args:  cobra.NoArgs,
	RunE:  runPromote,
}

func init() {
	rootCmd.AddCommand(promoteCommand)
}

func runPromote(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	policy := watchlist.NewPolicy(a.universeRepo, a.watchlistRepo, a.journalRepo, a.log)

	result, err := policy.RunCycle()
	if err != nil {
		return fmt.Errorf("promotion cycle failed: %w", err)
	}

	fmt.Printf("Promoted %d, demoted %d, deactivated %d\n",
		result.Promoted, result.Demoted, result.Deactivated)

	count, err := a.watchlistRepo.Count()
	if err == nil {
		fmt.Printf("Watchlist now holds %d tickers\n", count)
	}

	return nil
}
