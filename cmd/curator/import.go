package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/deepdiver/internal/modules/universe"
)

var importCommand = &cobra.Command{
	Use:   "import <csv-file>",
	Short: "Seed the universe from an index constituents CSV",
	Long:  "Reads a CSV with Ticker/Symbol, Name/Company Name and optional Sector columns (a Russell 3000 constituents export works as-is) and seeds every row into the universe. Existing tickers keep their scan state.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCommand)
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	bootstrapper := universe.NewBootstrapper(a.universeRepo, a.log)

	result, err := bootstrapper.ImportFile(args[0])
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Imported %d stocks (%d rows skipped)\n", result.Imported, result.Skipped)

	total, err := a.universeRepo.Count()
	if err == nil {
		fmt.Printf("Universe now holds %d stocks\n", total)
	}

	return nil
}
