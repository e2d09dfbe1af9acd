package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so no stray .env is read
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("chapterhook.yaml", false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	// backend calls wait as long as the backend takes
	assert.Zero(t, cfg.BackendTimeout)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	inTempDir(t)

	_, err := Load("missing.yaml", true)
	assert.Error(t, err)
}

func TestLoadLayers(t *testing.T) {
	dir := inTempDir(t)

	yml := `
store_path: /var/lib/chapterhook/settings.db
log_level: debug
listen: 127.0.0.1:7777
reply_timeout: 10s
backend_timeout: 5m
browser:
  headless: true
  width: 800
`
	path := filepath.Join(dir, "chapterhook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CHAPTERHOOK_ARCHIVE_DIR=captures\n"), 0644))
	// godotenv writes straight into the process environment
	t.Cleanup(func() { os.Unsetenv("CHAPTERHOOK_ARCHIVE_DIR") })
	t.Setenv("CHAPTERHOOK_LOG_LEVEL", "warn")
	t.Setenv("CHAPTERHOOK_HEADLESS", "false")
	t.Setenv("CHAPTERHOOK_HOTKEY", "  ")

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/chapterhook/settings.db", cfg.StorePath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:7777", cfg.Listen)
	assert.Equal(t, 10*time.Second, cfg.ReplyTimeout)
	assert.Equal(t, 5*time.Minute, cfg.BackendTimeout)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 800, cfg.Browser.Width)
	assert.Equal(t, 900, cfg.Browser.Height)
	assert.Equal(t, "captures", cfg.ArchiveDir)
	// blank variables do not override
	assert.Equal(t, "ctrl+t", cfg.Hotkey)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "log level", env: map[string]string{"CHAPTERHOOK_LOG_LEVEL": "chatty"}},
		{name: "duration", env: map[string]string{"CHAPTERHOOK_REPLY_TIMEOUT": "soon"}},
		{name: "negative timeout", env: map[string]string{"CHAPTERHOOK_REPLY_TIMEOUT": "-1s"}},
		{name: "negative backend timeout", env: map[string]string{"CHAPTERHOOK_BACKEND_TIMEOUT": "-1s"}},
		{name: "bool", env: map[string]string{"CHAPTERHOOK_HEADLESS": "maybe"}},
		{name: "int", env: map[string]string{"CHAPTERHOOK_WINDOW_WIDTH": "wide"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("", false)
			assert.Error(t, err)
		})
	}
}
