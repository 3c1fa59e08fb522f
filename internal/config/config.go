// SPDX-License-Identifier: MIT

// Package config loads and validates the daemon configuration from the
// environment. Precedence is ENV > defaults; there is no mutable
// process-wide configuration singleton.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Defaults for every tunable. The payload ceiling matches the standard
// Telegram Bot API upload limit.
const (
	DefaultListenAddr       = ":8080"
	DefaultWorkspace        = "./workspace"
	DefaultToolPath         = "yt-dlp"
	DefaultMaxPayloadBytes  = 50 * 1024 * 1024
	DefaultProbeTimeout     = 15 * time.Second
	DefaultDownloadCeiling  = 10 * time.Minute
	DefaultProgressInterval = 3 * time.Second
	DefaultSessionTTL       = 15 * time.Minute
	DefaultJanitorInterval  = 10 * time.Minute
	DefaultRetention        = 30 * time.Minute
	DefaultMaxChoices       = 8
)

// Config holds all daemon settings in their final, typed form.
type Config struct {
	Token      string // bot token for the chat transport
	ListenAddr string // operational HTTP surface (health, metrics)
	Workspace  string // shared artifact directory
	ToolPath   string // download/probe tool binary

	MaxPayloadBytes  int64         // artifact size ceiling for delivery
	ProbeTimeout     time.Duration // wall-clock bound for metadata probes
	DownloadCeiling  time.Duration // hard wall-clock bound per download
	ProgressInterval time.Duration // status edit sampling interval
	SessionTTL       time.Duration // inactivity timeout before lazy expiry
	JanitorInterval  time.Duration // workspace sweep interval
	Retention        time.Duration // max artifact age before the janitor removes it
	MaxChoices       int           // format buttons presented per prompt

	LogLevel string
}

// ErrMissingToken indicates the transport token is not configured.
var ErrMissingToken = errors.New("DLGRAM_TOKEN is not set")

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		Token:      ParseString("DLGRAM_TOKEN", ""),
		ListenAddr: ParseString("DLGRAM_LISTEN", DefaultListenAddr),
		Workspace:  ParseString("DLGRAM_WORKSPACE", DefaultWorkspace),
		ToolPath:   ParseString("DLGRAM_YTDLP", DefaultToolPath),

		MaxPayloadBytes:  ParseInt64("DLGRAM_MAX_PAYLOAD_BYTES", DefaultMaxPayloadBytes),
		ProbeTimeout:     ParseDuration("DLGRAM_PROBE_TIMEOUT", DefaultProbeTimeout),
		DownloadCeiling:  ParseDuration("DLGRAM_DOWNLOAD_CEILING", DefaultDownloadCeiling),
		ProgressInterval: ParseDuration("DLGRAM_PROGRESS_INTERVAL", DefaultProgressInterval),
		SessionTTL:       ParseDuration("DLGRAM_SESSION_TTL", DefaultSessionTTL),
		JanitorInterval:  ParseDuration("DLGRAM_JANITOR_INTERVAL", DefaultJanitorInterval),
		Retention:        ParseDuration("DLGRAM_RETENTION", DefaultRetention),
		MaxChoices:       ParseInt("DLGRAM_MAX_CHOICES", DefaultMaxChoices),

		LogLevel: ParseString("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot safely run with.
func (c Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	if c.Workspace == "" {
		return errors.New("workspace directory must not be empty")
	}
	if c.ToolPath == "" {
		return errors.New("tool path must not be empty")
	}
	if c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("max payload bytes must be positive, got %d", c.MaxPayloadBytes)
	}
	if c.MaxChoices <= 0 {
		return fmt.Errorf("max choices must be positive, got %d", c.MaxChoices)
	}
	for name, d := range map[string]time.Duration{
		"probe timeout":     c.ProbeTimeout,
		"download ceiling":  c.DownloadCeiling,
		"progress interval": c.ProgressInterval,
		"session ttl":       c.SessionTTL,
		"janitor interval":  c.JanitorInterval,
		"retention":         c.Retention,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}
