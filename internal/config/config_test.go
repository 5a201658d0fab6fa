package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFetchDefaults(t *testing.T) {
	cfg, err := LoadFetch()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Korea_Localities", cfg.LocationsFile)
	assert.Equal(t, "failed_requests", cfg.FailuresFile)
	assert.Equal(t, "korea_solar_data.csv", cfg.CSVFile)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, "ALLSKY_SFC_SW_DWN", cfg.Parameter)
	assert.Equal(t, 2023, cfg.StartYear)
	assert.Equal(t, 2023, cfg.EndYear)
	assert.Equal(t, 3, cfg.Attempts)
	assert.Equal(t, 200*time.Millisecond, cfg.AttemptDelay)
	assert.Equal(t, 15, cfg.BreakerThreshold)
}

func TestLoadFetchFromEnv(t *testing.T) {
	t.Setenv("SOLAR_BATCH_SIZE", "10")
	t.Setenv("SOLAR_START_YEAR", "2020")
	t.Setenv("SOLAR_ATTEMPT_DELAY", "1s")

	cfg, err := LoadFetch()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 2020, cfg.StartYear)
	assert.Equal(t, 2020, cfg.EndYear, "end year follows start year")
	assert.Equal(t, time.Second, cfg.AttemptDelay)
}

func TestLoadFetchRejectsBadValues(t *testing.T) {
	t.Setenv("SOLAR_BATCH_SIZE", "lots")
	_, err := LoadFetch()
	assert.ErrorContains(t, err, "SOLAR_BATCH_SIZE")
}

func TestFetchValidate(t *testing.T) {
	cfg, err := LoadFetch()
	require.NoError(t, err)

	cfg.BatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg.BatchSize = 1
	cfg.EndYear = cfg.StartYear - 1
	assert.Error(t, cfg.Validate())
}

func TestLoadPublishDefaults(t *testing.T) {
	cfg, err := LoadPublish()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "solar-data.js", cfg.OutputFile)
	assert.Equal(t, "../solar-data.js", cfg.BackupFile)
	assert.Equal(t, "solarData", cfg.VarName)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.BackupInterval)
	assert.Equal(t, 2*time.Minute, cfg.MaxBackoff)
	assert.True(t, cfg.WatchEvents)
	assert.False(t, cfg.HTTPDisabled)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadPublishFromEnv(t *testing.T) {
	t.Setenv("PUBLISH_POLL_INTERVAL", "2s")
	t.Setenv("PUBLISH_WATCH_EVENTS", "false")
	t.Setenv("PUBLISH_HTTP_DISABLED", "true")

	cfg, err := LoadPublish()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.False(t, cfg.WatchEvents)
	assert.True(t, cfg.HTTPDisabled)

	t.Setenv("PUBLISH_WATCH_EVENTS", "maybe")
	_, err = LoadPublish()
	assert.ErrorContains(t, err, "PUBLISH_WATCH_EVENTS")
}
