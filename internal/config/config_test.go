// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DLGRAM_TOKEN", "test-token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.Token)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultWorkspace, cfg.Workspace)
	assert.Equal(t, DefaultToolPath, cfg.ToolPath)
	assert.Equal(t, int64(DefaultMaxPayloadBytes), cfg.MaxPayloadBytes)
	assert.Equal(t, DefaultProbeTimeout, cfg.ProbeTimeout)
	assert.Equal(t, DefaultDownloadCeiling, cfg.DownloadCeiling)
	assert.Equal(t, DefaultProgressInterval, cfg.ProgressInterval)
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
	assert.Equal(t, DefaultJanitorInterval, cfg.JanitorInterval)
	assert.Equal(t, DefaultRetention, cfg.Retention)
	assert.Equal(t, DefaultMaxChoices, cfg.MaxChoices)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("DLGRAM_TOKEN", "test-token")
	t.Setenv("DLGRAM_LISTEN", ":9999")
	t.Setenv("DLGRAM_WORKSPACE", "/tmp/media")
	t.Setenv("DLGRAM_YTDLP", "/usr/local/bin/yt-dlp")
	t.Setenv("DLGRAM_MAX_PAYLOAD_BYTES", "1048576")
	t.Setenv("DLGRAM_PROBE_TIMEOUT", "5s")
	t.Setenv("DLGRAM_DOWNLOAD_CEILING", "2m")
	t.Setenv("DLGRAM_PROGRESS_INTERVAL", "1s")
	t.Setenv("DLGRAM_SESSION_TTL", "5m")
	t.Setenv("DLGRAM_JANITOR_INTERVAL", "30s")
	t.Setenv("DLGRAM_RETENTION", "1h")
	t.Setenv("DLGRAM_MAX_CHOICES", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "/tmp/media", cfg.Workspace)
	assert.Equal(t, "/usr/local/bin/yt-dlp", cfg.ToolPath)
	assert.Equal(t, int64(1<<20), cfg.MaxPayloadBytes)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 2*time.Minute, cfg.DownloadCeiling)
	assert.Equal(t, time.Second, cfg.ProgressInterval)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 30*time.Second, cfg.JanitorInterval)
	assert.Equal(t, time.Hour, cfg.Retention)
	assert.Equal(t, 4, cfg.MaxChoices)
}

func TestLoadMissingTokenFails(t *testing.T) {
	t.Setenv("DLGRAM_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("DLGRAM_TOKEN", "test-token")
	t.Setenv("DLGRAM_MAX_PAYLOAD_BYTES", "fifty megabytes")
	t.Setenv("DLGRAM_PROBE_TIMEOUT", "soon")
	t.Setenv("DLGRAM_MAX_CHOICES", "many")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(DefaultMaxPayloadBytes), cfg.MaxPayloadBytes)
	assert.Equal(t, DefaultProbeTimeout, cfg.ProbeTimeout)
	assert.Equal(t, DefaultMaxChoices, cfg.MaxChoices)
}

func TestValidateRejectsBadValues(t *testing.T) {
	valid := func() Config {
		return Config{
			Token:            "tok",
			ListenAddr:       ":8080",
			Workspace:        "/tmp/ws",
			ToolPath:         "yt-dlp",
			MaxPayloadBytes:  1,
			ProbeTimeout:     time.Second,
			DownloadCeiling:  time.Second,
			ProgressInterval: time.Second,
			SessionTTL:       time.Second,
			JanitorInterval:  time.Second,
			Retention:        time.Second,
			MaxChoices:       1,
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty workspace", func(c *Config) { c.Workspace = "" }},
		{"empty tool path", func(c *Config) { c.ToolPath = "" }},
		{"zero payload ceiling", func(c *Config) { c.MaxPayloadBytes = 0 }},
		{"negative payload ceiling", func(c *Config) { c.MaxPayloadBytes = -1 }},
		{"zero max choices", func(c *Config) { c.MaxChoices = 0 }},
		{"zero probe timeout", func(c *Config) { c.ProbeTimeout = 0 }},
		{"negative session ttl", func(c *Config) { c.SessionTTL = -time.Second }},
		{"zero retention", func(c *Config) { c.Retention = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseIntTrimsWhitespace(t *testing.T) {
	t.Setenv("DLGRAM_TEST_INT", "  42 ")
	assert.Equal(t, 42, ParseInt("DLGRAM_TEST_INT", 7))
}

func TestParseStringEmptyUsesDefault(t *testing.T) {
	t.Setenv("DLGRAM_TEST_STR", "")
	assert.Equal(t, "fallback", ParseString("DLGRAM_TEST_STR", "fallback"))
}
