package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-shamsi/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), config.FilePermUserRW))
}

func TestDefaults_Sanity(t *testing.T) {
	s := config.NewDefaultSettings()
	require.NoError(t, s.Validate())

	assert.Equal(t, 3*time.Hour+30*time.Minute, s.Calendar.Offset())
	assert.Equal(t, "fa", s.Calendar.Language)
	assert.True(t, s.Notifications.Enabled)
	assert.False(t, s.Notifications.Muted())
	assert.Equal(t, "127.0.0.1:18080", s.Server.Address())
}

func TestLoadSettings_MissingFileUsesDefaults(t *testing.T) {
	s, err := config.LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.NewDefaultSettings(), s)
}

func TestLoadSettings_OverridesAndEnvExpansion(t *testing.T) {
	t.Setenv("SHAMSI_TEST_DB", "/tmp/shamsi.db")
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, `
server:
  port: 9090
calendar:
  utc_offset: "-05:00"
  language: en
notifications:
  enabled: true
  dnd: true
store:
  path: ${SHAMSI_TEST_DB}
`)

	s, err := config.LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, s.Server.Port)
	assert.Equal(t, config.DefaultBindAddr, s.Server.Bind, "unset keys keep defaults")
	assert.Equal(t, -5*time.Hour, s.Calendar.Offset())
	assert.Equal(t, "en", s.Calendar.Language)
	assert.True(t, s.Notifications.Muted())
	assert.Equal(t, "/tmp/shamsi.db", s.Store.Path)
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"bad offset", "calendar:\n  utc_offset: \"3.5\"\n"},
		{"offset minutes overflow", "calendar:\n  utc_offset: \"+03:75\"\n"},
		{"unsupported language", "calendar:\n  language: de\n"},
		{"unknown mode", "source:\n  mode: ftp\n"},
		{"local mode without path", "source:\n  mode: local\n"},
		{"web mode without url", "source:\n  mode: web\n"},
		{"broken yaml", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.yaml")
			writeFile(t, path, tt.yaml)
			_, err := config.LoadSettings(path)
			assert.Error(t, err)
		})
	}
}

func TestParseUTCOffset(t *testing.T) {
	d, err := config.ParseUTCOffset("+03:30")
	require.NoError(t, err)
	assert.Equal(t, 210*time.Minute, d)

	d, err = config.ParseUTCOffset("-09:30")
	require.NoError(t, err)
	assert.Equal(t, -570*time.Minute, d)

	d, err = config.ParseUTCOffset("+00:00")
	require.NoError(t, err)
	assert.Zero(t, d)

	for _, bad := range []string{"", "03:30", "+3:30", "+15:00", "+03:60"} {
		_, err := config.ParseUTCOffset(bad)
		assert.Error(t, err, bad)
	}
}

func TestSettings_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := config.NewDefaultSettings()
	s.Calendar.Language = "en"
	s.Source.Mode = config.SourceModeLocal
	s.Source.LocalPath = "/contacts.vcf"
	require.NoError(t, s.Save(path))

	loaded, err := config.LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	writeFile(t, path, "notifications:\n  dnd: false\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var latest atomic.Pointer[config.Settings]
	done := make(chan error, 1)
	go func() {
		done <- config.Watch(ctx, path, func(s *config.Settings) { latest.Store(s) })
	}()

	// Give the watcher time to register before editing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "notifications:\n  dnd: true\n")

	require.Eventually(t, func() bool {
		s := latest.Load()
		return s != nil && s.Notifications.DND
	}, 5*time.Second, 50*time.Millisecond)

	// An invalid edit is ignored.
	writeFile(t, path, "server:\n  port: -1\n")
	time.Sleep(3 * config.WatchDebounce)
	assert.True(t, latest.Load().Notifications.DND)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
}
