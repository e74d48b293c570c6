package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Headless)
	assert.Equal(t, 30.0, cfg.LatStepDegrees)
	assert.Equal(t, 30, cfg.MaxEmptyCells)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STORESCOUT_HEADLESS", "false")
	t.Setenv("STORESCOUT_LAT_STEP", "15")
	t.Setenv("STORESCOUT_MAX_EMPTY_CELLS", "5")
	t.Setenv("STORESCOUT_REQUEST_TIMEOUT", "30")
	t.Setenv("STORESCOUT_RETRY_DELAY", "500ms")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.False(t, cfg.Headless)
	assert.Equal(t, 15.0, cfg.LatStepDegrees)
	assert.Equal(t, 5, cfg.MaxEmptyCells)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout, "bare integers are seconds")
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
}

func TestLoadMalformedEnv(t *testing.T) {
	t.Setenv("STORESCOUT_RETRY_COUNT", "many")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORESCOUT_RETRY_COUNT")
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storescout.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"outputDir":"/tmp/runs","maxEmptyCells":10}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/runs", cfg.OutputDir)
	assert.Equal(t, 10, cfg.MaxEmptyCells)
	assert.Equal(t, 3, cfg.RetryCount, "unset file fields keep defaults")
}

func TestLoadFileZeroValuesKeepDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storescout.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"headless":false,"retryCount":0}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// the file layer merges non-zero values only; env keys force zeros
	assert.True(t, cfg.Headless)
	assert.Equal(t, 3, cfg.RetryCount)

	t.Setenv("STORESCOUT_HEADLESS", "false")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Headless)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}
