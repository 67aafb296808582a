// Package main provides the curator maintenance CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/deepdiver/internal/clientdata"
	"github.com/aristath/deepdiver/internal/config"
	"github.com/aristath/deepdiver/internal/database"
	"github.com/aristath/deepdiver/internal/modules/journal"
	"github.com/aristath/deepdiver/internal/modules/universe"
	"github.com/aristath/deepdiver/internal/modules/watchlist"
	"github.com/aristath/deepdiver/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "DeepDiver curator maintenance CLI",
	Long:  "Maintenance commands for the DeepDiver universe: seed it from an index constituents CSV, scan tickers for AI relevance, and run the watchlist promotion cycle.",
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the shared state every subcommand needs
type app struct {
	cfg *config.Config
	log zerolog.Logger

	universeDB   *database.DB
	journalDB    *database.DB
	clientDataDB *database.DB

	universeRepo  *universe.Repository
	watchlistRepo *watchlist.Repository
	journalRepo   *journal.Repository
	cacheRepo     *clientdata.Repository
}

// openApp loads configuration and opens the databases
func openApp() (*app, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: true})

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	open := func(name string, profile database.DatabaseProfile) (*database.DB, error) {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, name+".db"),
			Profile: profile,
			Name:    name,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", name, err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
		}
		return db, nil
	}

	if a.universeDB, err = open("universe", database.ProfileStandard); err != nil {
		return nil, err
	}
	if a.journalDB, err = open("journal", database.ProfileJournal); err != nil {
		a.Close()
		return nil, err
	}
	if a.clientDataDB, err = open("client_data", database.ProfileCache); err != nil {
		a.Close()
		return nil, err
	}

	a.universeRepo = universe.NewRepository(a.universeDB.Conn(), log)
	a.watchlistRepo = watchlist.NewRepository(a.universeDB.Conn(), log)
	a.journalRepo = journal.NewRepository(a.journalDB.Conn(), log)
	a.cacheRepo = clientdata.NewRepository(a.clientDataDB.Conn())

	return a, nil
}

// Close closes whichever databases were opened
func (a *app) Close() {
	for _, db := range []*database.DB{a.universeDB, a.journalDB, a.clientDataDB} {
		if db != nil {
			db.Close()
		}
	}
}
