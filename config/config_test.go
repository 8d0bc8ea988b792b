package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsForUnsetFields(t *testing.T) {
	path := writeConfig(t, "source: file://track.wav\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.EncodedReservoirBytes, cfg.EncodedReservoirBytes)
	assert.Equal(t, def.RampDurationJiffies, cfg.RampDurationJiffies)
	assert.Equal(t, "file://track.wav", cfg.Source)
}

func TestLoadOverridesReservoirsAndRamp(t *testing.T) {
	path := writeConfig(t, `
reservoirs:
  encoded_bytes: 1048576
  decoded_seconds: 4
  gorge_seconds: 2
ramps:
  duration_ms: 250
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, 1048576, cfg.EncodedReservoirBytes)
	assert.Greater(t, cfg.RampDurationJiffies, Default().RampDurationJiffies)
}

func TestLoadRejectsStarvationThresholdsOutOfOrder(t *testing.T) {
	path := writeConfig(t, `
starvation:
  low_ms: 200
  normal_ms: 100
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
