package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/deepdiver/internal/clients/finnhub"
	"github.com/aristath/deepdiver/internal/clients/gemini"
	"github.com/aristath/deepdiver/internal/modules/curator"
)

var scanCommand = &cobra.Command{
	Use:   "scan <ticker>...",
	Short: "Scan tickers for AI relevance",
	Long:  "Runs the two-stage relevance scan (keyword scoring, then LLM validation for borderline scores when a Gemini key is configured) for each ticker and persists the results.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCommand)
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	finnhubClient := finnhub.NewClient(a.cfg.Finnhub.APIKey, a.cfg.Finnhub.BaseURL, a.cacheRepo, a.log)

	var validator *curator.Validator
	if a.cfg.Validator.Enabled {
		geminiClient, err := gemini.NewClient(ctx, a.cfg.Validator.GeminiAPIKey, a.cfg.Validator.Model, a.log)
		if err != nil {
			fmt.Printf("Gemini unavailable, scanning without LLM validation: %v\n", err)
		} else {
			validator = curator.NewValidator(geminiClient, a.log)
		}
	}

	scanner := curator.NewScanner(curator.ScannerConfig{
		Market:           finnhubClient,
		Universe:         a.universeRepo,
		Journal:          a.journalRepo,
		Validator:        validator,
		NewsLookbackDays: a.cfg.Scan.NewsLookbackDays,
		MaxNewsArticles:  a.cfg.Scan.MaxNewsArticles,
	}, a.log)

	failed := 0
	for _, ticker := range args {
		result, err := scanner.Scan(ctx, ticker)
		if err != nil {
			fmt.Printf("%-8s scan failed: %v\n", ticker, err)
			failed++
			continue
		}

		category := "-"
		if result.Category != nil {
			category = *result.Category
		}
		fmt.Printf("%-8s score=%-3d category=%-16s ai_focus=%v\n",
			result.Ticker, result.Score, category, result.HasAI)
		if verbose && result.EvidenceString() != "" {
			fmt.Printf("         evidence: %s\n", result.EvidenceString())
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scans failed", failed, len(args))
	}

	return nil
}
