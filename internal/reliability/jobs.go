package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/database"
)

const backupTimeout = 30 * time.Minute

// BackupJob runs a full backup cycle: snapshot, upload, rotate
type BackupJob struct {
	service *BackupService
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if _, err := j.service.CreateAndUpload(ctx); err != nil {
		return err
	}

	// Rotation failure leaves extra archives behind, which is harmless
	if err := j.service.Rotate(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	return nil
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "nightly_backup"
}

// MaintenanceJob checkpoints the WAL and reclaims free pages across all
// databases. Failures are logged per database and never abort the run.
type MaintenanceJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(databases []*database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting database maintenance")
	startTime := time.Now()

	for _, db := range j.databases {
		j.log.Debug().Str("database", db.Name()).Msg("Running WAL checkpoint")

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Str("database", db.Name()).
				Err(err).
				Msg("WAL checkpoint failed")
		}

		// Databases run with auto_vacuum=INCREMENTAL, so this releases
		// accumulated free pages without a full rewrite
		if _, err := db.Conn().Exec("PRAGMA incremental_vacuum"); err != nil {
			j.log.Warn().
				Str("database", db.Name()).
				Err(err).
				Msg("Incremental vacuum failed")
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Int("databases", len(j.databases)).
		Msg("Database maintenance completed")

	return nil
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}
