package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/efreitasn/tradingrelay/internal/feed"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.FeedURL != "ws://localhost:8080/market" {
		t.Errorf("FeedURL = %q, want ws://localhost:8080/market", cfg.FeedURL)
	}
	if cfg.ReconnectDelay != 5*time.Second {
		t.Errorf("ReconnectDelay = %v, want 5s", cfg.ReconnectDelay)
	}
	if cfg.FeedReadTimeout != 60*time.Second {
		t.Errorf("FeedReadTimeout = %v, want 60s", cfg.FeedReadTimeout)
	}
	if cfg.SessionTimeout != 60*time.Second {
		t.Errorf("SessionTimeout = %v, want 60s", cfg.SessionTimeout)
	}
	if cfg.StartingCash.String() != "10000" {
		t.Errorf("StartingCash = %s, want 10000", cfg.StartingCash)
	}
	if cfg.SendQueueSize != 256 {
		t.Errorf("SendQueueSize = %d, want 256", cfg.SendQueueSize)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want 10s", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", cfg.IdleTimeout)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FEED_URL", "ws://feed.internal:9000/market")
	t.Setenv("RECONNECT_DELAY", "2s")
	t.Setenv("FEED_READ_TIMEOUT", "30s")
	t.Setenv("STARTING_CASH", "2500.50")
	t.Setenv("SEND_QUEUE_SIZE", "16")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.FeedURL != "ws://feed.internal:9000/market" {
		t.Errorf("FeedURL = %q", cfg.FeedURL)
	}
	if cfg.ReconnectDelay != 2*time.Second {
		t.Errorf("ReconnectDelay = %v, want 2s", cfg.ReconnectDelay)
	}
	if cfg.FeedReadTimeout != 30*time.Second {
		t.Errorf("FeedReadTimeout = %v, want 30s", cfg.FeedReadTimeout)
	}
	if cfg.StartingCash.String() != "2500.5" {
		t.Errorf("StartingCash = %s, want 2500.5", cfg.StartingCash)
	}
	if cfg.SendQueueSize != 16 {
		t.Errorf("SendQueueSize = %d, want 16", cfg.SendQueueSize)
	}
}

func TestLoad_ReconnectDelayClamped(t *testing.T) {
	for _, v := range []string{"0s", "1ms", "99ms", "-5s"} {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("RECONNECT_DELAY", v)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.ReconnectDelay != feed.MinReconnectDelay {
				t.Errorf("ReconnectDelay = %v, want %v", cfg.ReconnectDelay, feed.MinReconnectDelay)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PORT", "not-a-number"},
		{"LOG_LEVEL", "verbose"},
		{"STARTING_CASH", "lots"},
		{"STARTING_CASH", "-1"},
		{"SEND_QUEUE_SIZE", "0"},
		{"SEND_QUEUE_SIZE", "many"},
		{"FEED_READ_TIMEOUT", "0s"},
		{"SESSION_READ_TIMEOUT", "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	for _, key := range durationEnvKeys {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, "not-a-duration")

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for invalid %s", key)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")

	path := filepath.Join(t.TempDir(), ".env")
	content := "PORT=9999\nFEED_URL=ws://from-file/market\nSTARTING_CASH=500\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Variables already in the environment win over the file.
	if cfg.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Port)
	}
	if cfg.FeedURL != "ws://from-file/market" {
		t.Errorf("FeedURL = %q, want ws://from-file/market", cfg.FeedURL)
	}
	if cfg.StartingCash.String() != "500" {
		t.Errorf("StartingCash = %s, want 500", cfg.StartingCash)
	}
}

func TestLoadEnvFile_MissingIsNotAnError(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadEnvFile(missing) = %v, want nil", err)
	}
}
