package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 24.0, cfg.MaxHours)
	assert.Equal(t, 30.0, cfg.MaxSpeedKn)
	assert.Equal(t, 5*time.Minute, cfg.NoiseTime)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("AISSEG_MAX_HOURS", "48")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 48.0, cfg.MaxHours)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/aissegment.yaml"
	require.NoError(t, os.WriteFile(path, []byte("max_speed: 40\nsegment_field: track_id\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40.0, cfg.MaxSpeedKn)
	assert.Equal(t, "track_id", cfg.SegmentField)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/aissegment.yaml"
	require.NoError(t, os.WriteFile(path, []byte("max_hours: -1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
