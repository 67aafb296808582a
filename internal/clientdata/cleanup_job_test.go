package clientdata

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupJob_Run(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store("finnhub_profile", "NVDA", testPayload{}, -time.Hour))
	require.NoError(t, repo.Store("finnhub_news", "NVDA", testPayload{}, time.Hour))

	job := NewCleanupJob(repo, zerolog.Nop())
	require.NoError(t, job.Run())

	var out testPayload
	found, err := repo.Get("finnhub_profile", "NVDA", &out)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.Get("finnhub_news", "NVDA", &out)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCleanupJob_Name(t *testing.T) {
	job := NewCleanupJob(NewRepository(setupTestDB(t)), zerolog.Nop())
	assert.Equal(t, "client_data_cleanup", job.Name())
}
