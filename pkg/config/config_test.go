package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HEART_CONFIG", "OPENAI_API_KEY", "OPENAI_BASE_URL", "HEART_DATA_DIR",
		"HEART_DB_PATH", "HEART_ADDR", "HEART_STORAGE_BACKEND", "HEART_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	// keep a stray .env in the package directory out of the picture
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join("data", "audio"), cfg.Storage.AudioDir)
	assert.Equal(t, filepath.Join("data", "badger"), cfg.Storage.DBPath)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Provider.BaseURL)
	assert.Equal(t, "whisper-1", cfg.Provider.TranscriptionModel)
	assert.Empty(t, cfg.Provider.APIKey)
}

func TestLoadYAMLAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  address: ":9000"
  analyze_timeout: 10s
pipeline:
  validation_workers: 1
  transcription_workers: 1
  analysis_workers: 1
  storage_workers: 1
  queue_size: 5
  max_audio_bytes: 1024
storage:
  backend: sqlite
  data_dir: /var/lib/heart
provider:
  base_url: http://localhost:1234/v1/
  summary_enabled: false
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("HEART_ADDR", ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.AnalyzeTimeout)
	assert.Equal(t, 5, cfg.Pipeline.QueueSize)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join("/var/lib/heart", "app.db"), cfg.Storage.DBPath)
	assert.Equal(t, "http://localhost:1234/v1", cfg.Provider.BaseURL)
	assert.Equal(t, "sk-test", cfg.Provider.APIKey)
	assert.False(t, cfg.Provider.SummaryEnabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("HEART_STORAGE_BACKEND=SQLITE\nHEART_DB_PATH=/tmp/x.db\n"), 0o600))
	// godotenv never overrides variables that already exist, even empty ones
	os.Unsetenv("HEART_STORAGE_BACKEND")
	os.Unsetenv("HEART_DB_PATH")
	t.Cleanup(func() {
		os.Unsetenv("HEART_STORAGE_BACKEND")
		os.Unsetenv("HEART_DB_PATH")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.DBPath)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Pipeline.QueueSize = 0
	cfg.Pipeline.StorageWorkers = -1
	cfg.Storage.Backend = "postgres"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue_size")
	assert.Contains(t, err.Error(), "worker counts")
	assert.Contains(t, err.Error(), "postgres")
}
