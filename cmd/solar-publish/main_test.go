package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/solar-data-pipeline/internal/config"
	"github.com/i474232898/solar-data-pipeline/internal/dataset"
	"github.com/i474232898/solar-data-pipeline/internal/store"
)

func TestHealth(t *testing.T) {
	app := newApp(store.NewDatasetStore(), nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, serviceName, body["service"])
}

func TestErrorsAreJSON(t *testing.T) {
	app := newApp(store.NewDatasetStore(), nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/solar/location", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["error"])
}

func TestRunPublishesAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.PublishConfig{
		CSVFile:        filepath.Join(dir, "korea_solar_data.csv"),
		OutputFile:     filepath.Join(dir, "web", "solar-data.js"),
		BackupFile:     filepath.Join(dir, "solar-data.js"),
		VarName:        dataset.DefaultVarName,
		PollInterval:   20 * time.Millisecond,
		BackupInterval: 20 * time.Millisecond,
		MaxBackoff:     time.Second,
		HTTPDisabled:   true,
	}
	require.NoError(t, cfg.Validate())
	require.NoError(t, os.WriteFile(cfg.CSVFile,
		[]byte("Latitude,Longitude,Location,202301\n37.5,127.0,서울,2.6\n35.1,129.0,부산,2.9\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zap.NewNop()) }()

	require.Eventually(t, func() bool {
		recs, err := dataset.LoadFile(cfg.BackupFile, dataset.Prefix(cfg.VarName))
		return err == nil && len(recs) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	published, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	backup, err := os.ReadFile(cfg.BackupFile)
	require.NoError(t, err)
	assert.Equal(t, published, backup)
}
