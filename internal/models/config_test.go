package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "database_url: postgres://localhost/photos\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "media", cfg.StoragePath)
	assert.Equal(t, filepath.Join("media", "preview"), cfg.PreviewDir)
	assert.Equal(t, "webp", cfg.DefaultFormat)
	assert.Equal(t, DefaultWarmWidths, cfg.WarmWidths)
	assert.Equal(t, 4000, cfg.MaxWidth)
	assert.Equal(t, 60*time.Second, cfg.Tagging.Timeout)
	assert.Empty(t, cfg.WarmSchedule)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
database_url: postgres://db/photos
storage_path: /srv/photos
default_format: jpeg
warm_widths: [320, 640]
warm_schedule: "0 0 4 * * *"
tagging:
  enabled: true
  endpoint: http://captioner:9000
  timeout: 5s
`))
	require.NoError(t, err)

	assert.Equal(t, "/srv/photos/preview", cfg.PreviewDir)
	assert.Equal(t, []int{320, 640}, cfg.WarmWidths)
	assert.Equal(t, 5*time.Second, cfg.Tagging.Timeout)
	assert.Equal(t, "0 0 4 * * *", cfg.WarmSchedule)
}

func TestLoadConfigInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"no database":  "server_addr: :9000\n",
		"bad width":    "database_url: x\nwarm_widths: [400, 0]\n",
		"bad format":   "database_url: x\ndefault_format: gif\n",
		"tag endpoint": "database_url: x\ntagging:\n  enabled: true\n",
		"negative max": "database_url: x\nmax_width: -1\n",
		"broken yaml":  "database_url: [\n",
	} {
		_, err := LoadConfig(writeConfig(t, body))
		assert.Error(t, err, name)
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHasLocation(t *testing.T) {
	zero, lat, lon := 0.0, 41.9, 12.5
	assert.False(t, PhotoMetadata{}.HasLocation())
	assert.False(t, PhotoMetadata{Latitude: &lat}.HasLocation())
	assert.False(t, PhotoMetadata{Latitude: &zero, Longitude: &zero}.HasLocation())
	assert.True(t, PhotoMetadata{Latitude: &lat, Longitude: &lon}.HasLocation())
	assert.True(t, PhotoMetadata{Latitude: &zero, Longitude: &lon}.HasLocation())
}
