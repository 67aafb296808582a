package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/clientdata"
	"github.com/aristath/deepdiver/internal/clients/finnhub"
	"github.com/aristath/deepdiver/internal/clients/gemini"
	"github.com/aristath/deepdiver/internal/config"
	"github.com/aristath/deepdiver/internal/database"
	"github.com/aristath/deepdiver/internal/modules/curator"
	curatorhandlers "github.com/aristath/deepdiver/internal/modules/curator/handlers"
	"github.com/aristath/deepdiver/internal/modules/journal"
	journalhandlers "github.com/aristath/deepdiver/internal/modules/journal/handlers"
	"github.com/aristath/deepdiver/internal/modules/market"
	"github.com/aristath/deepdiver/internal/modules/signals"
	"github.com/aristath/deepdiver/internal/modules/universe"
	universehandlers "github.com/aristath/deepdiver/internal/modules/universe/handlers"
	"github.com/aristath/deepdiver/internal/modules/watchlist"
	watchlisthandlers "github.com/aristath/deepdiver/internal/modules/watchlist/handlers"
	"github.com/aristath/deepdiver/internal/reliability"
	"github.com/aristath/deepdiver/internal/scheduler"
	"github.com/aristath/deepdiver/internal/server"
	"github.com/aristath/deepdiver/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{
		Level:  "info",
		Pretty: true,
	})

	log.Info().Msg("Starting DeepDiver")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Reconfigure with the configured level once config is available
	log = logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	// Databases
	universeDB := openDatabase(log, cfg.DataDir, "universe", database.ProfileStandard)
	defer universeDB.Close()

	journalDB := openDatabase(log, cfg.DataDir, "journal", database.ProfileJournal)
	defer journalDB.Close()

	clientDataDB := openDatabase(log, cfg.DataDir, "client_data", database.ProfileCache)
	defer clientDataDB.Close()

	databases := []*database.DB{universeDB, journalDB, clientDataDB}

	// Repositories
	universeRepo := universe.NewRepository(universeDB.Conn(), log)
	watchlistRepo := watchlist.NewRepository(universeDB.Conn(), log)
	journalRepo := journal.NewRepository(journalDB.Conn(), log)
	cacheRepo := clientdata.NewRepository(clientDataDB.Conn())

	// Outbound clients
	finnhubClient := finnhub.NewClient(cfg.Finnhub.APIKey, cfg.Finnhub.BaseURL, cacheRepo, log)

	var validator *curator.Validator
	if cfg.Validator.Enabled {
		geminiClient, err := gemini.NewClient(context.Background(), cfg.Validator.GeminiAPIKey, cfg.Validator.Model, log)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Gemini client - LLM validation disabled")
		} else {
			validator = curator.NewValidator(geminiClient, log)
		}
	} else {
		log.Info().Msg("Gemini API key not configured - LLM validation disabled")
	}

	// Core services
	scanner := curator.NewScanner(curator.ScannerConfig{
		Market:           finnhubClient,
		Universe:         universeRepo,
		Journal:          journalRepo,
		Validator:        validator,
		NewsLookbackDays: cfg.Scan.NewsLookbackDays,
		MaxNewsArticles:  cfg.Scan.MaxNewsArticles,
	}, log)
	batch := curator.NewBatchScanner(scanner, cfg.Scan.CallsPerMinute, cfg.Scan.Concurrency, log)

	policy := watchlist.NewPolicy(universeRepo, watchlistRepo, journalRepo, log)
	signalsService := signals.NewService(finnhubClient, journalRepo, log)
	bootstrapper := universe.NewBootstrapper(universeRepo, log)

	marketService, err := market.NewService()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize market clock")
	}

	// Live trade stream for watched tickers
	var tradeStream *finnhub.TradeStream
	if cfg.Finnhub.APIKey != "" {
		tradeStream = finnhub.NewTradeStream(cfg.Finnhub.APIKey, log)
		if err := tradeStream.Start(); err != nil {
			log.Warn().Err(err).Msg("Trade stream failed to connect, reconnecting in background")
		}
		defer tradeStream.Stop()

		if tickers, err := watchlistRepo.Tickers(); err == nil {
			for _, ticker := range tickers {
				if err := tradeStream.Subscribe(ticker); err != nil {
					log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to subscribe to live trades")
				}
			}
		}
	} else {
		log.Info().Msg("Finnhub API key not configured - live trade stream disabled")
	}

	// Cloud backups
	var backupService *reliability.BackupService
	if cfg.Backup != nil {
		s3Client, err := reliability.NewS3Client(cfg.Backup, log)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize S3 client - backups disabled")
		} else {
			backupService = reliability.NewBackupService(s3Client, databases, cfg.DataDir, cfg.Backup.RetentionDays, log)
			log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Cloud backups enabled")
		}
	} else {
		log.Debug().Msg("Backup credentials not configured - backups disabled")
	}

	// Scheduler
	sched := scheduler.New(log)
	registerJobs(sched, jobDeps{
		batch:         batch,
		universe:      universeRepo,
		watchlist:     watchlistRepo,
		policy:        policy,
		signals:       signalsService,
		market:        marketService,
		cache:         cacheRepo,
		databases:     databases,
		backupService: backupService,
		tradeStream:   tradeStream,
	}, log)
	sched.Start()
	defer sched.Stop()

	// HTTP server
	var backups server.BackupLister
	if backupService != nil {
		backups = backupService
	}
	systemHandlers := server.NewSystemHandlers(log, cfg.DataDir, databases, backups)

	var prices watchlisthandlers.PriceSource
	if tradeStream != nil {
		prices = tradeStream
	}

	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		DevMode: cfg.DevMode,
		System:  systemHandlers,
		Modules: []server.RouteRegistrar{
			universehandlers.NewHandler(universeRepo, bootstrapper, log),
			watchlisthandlers.NewHandler(watchlistRepo, policy, prices, log),
			journalhandlers.NewHandler(journalRepo, log),
			curatorhandlers.NewHandler(scanner, batch, universeRepo, log),
			signals.NewHandler(signalsService, log),
			market.NewHandler(marketService, log),
		},
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// openDatabase opens and migrates a database, fatal on failure
func openDatabase(log zerolog.Logger, dataDir, name string, profile database.DatabaseProfile) *database.DB {
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		log.Fatal().Err(err).Str("database", name).Msg("Failed to initialize database")
	}

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Str("database", name).Msg("Failed to run migrations")
	}

	return db
}

type jobDeps struct {
	batch         *curator.BatchScanner
	universe      *universe.Repository
	watchlist     *watchlist.Repository
	policy        *watchlist.Policy
	signals       *signals.Service
	market        *market.Service
	cache         *clientdata.Repository
	databases     []*database.DB
	backupService *reliability.BackupService
	tradeStream   *finnhub.TradeStream
}

// registerJobs wires the recurring background jobs
func registerJobs(sched *scheduler.Scheduler, deps jobDeps, log zerolog.Logger) {
	addJob := func(schedule string, job scheduler.Job) {
		if err := sched.AddJob(schedule, job); err != nil {
			log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
		}
	}

	// Daily scan of the active universe before market open
	addJob("0 0 6 * * *", scheduler.NewScanJob(
		"daily_scan", deps.batch, deps.universe.ActiveTickers, 4*time.Hour, log))

	// Weekly deep scan revisits deactivated tickers too
	addJob("0 0 5 * * SUN", scheduler.NewScanJob(
		"weekly_deep_scan", deps.batch, deps.universe.AllTickers, 8*time.Hour, log))

	// Promotion cycle after the daily scan finishes its budget window
	addJob("0 30 10 * * *", scheduler.NewPromotionJob(deps.policy, log))

	// Breakout checks every 15 minutes while the market is open
	addJob("0 */15 * * * MON-FRI", scheduler.NewMarketMonitorJob(
		deps.market, deps.signals, deps.watchlist.Tickers, log))

	// Nightly cache cleanup
	addJob("0 0 1 * * *", clientdata.NewCleanupJob(deps.cache, log))

	// Nightly database maintenance
	addJob("0 0 2 * * *", reliability.NewMaintenanceJob(deps.databases, log))

	if deps.backupService != nil {
		addJob("0 0 3 * * *", reliability.NewBackupJob(deps.backupService, log))
	}

	if deps.tradeStream != nil {
		addJob("@every 5m", scheduler.NewStreamSyncJob(deps.tradeStream, deps.watchlist.Tickers, log))
	}
}
