package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 3030 {
		t.Errorf("default port = %d, want 3030", cfg.Server.Port)
	}
	if cfg.Board.HistoryLimit != 1000 {
		t.Errorf("default history_limit = %d, want 1000", cfg.Board.HistoryLimit)
	}
	if cfg.Board.InactivityTimeout != 30*time.Minute {
		t.Errorf("default inactivity_timeout = %v, want 30m", cfg.Board.InactivityTimeout)
	}
	if cfg.Canvas.Width != 1280 || cfg.Canvas.Height != 720 {
		t.Errorf("default canvas = %dx%d, want 1280x720", cfg.Canvas.Width, cfg.Canvas.Height)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9999
board:
  history_limit: 50
  detach_grace: 5s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Board.HistoryLimit != 50 {
		t.Errorf("history_limit = %d, want 50", cfg.Board.HistoryLimit)
	}
	if cfg.Board.DetachGrace != 5*time.Second {
		t.Errorf("detach_grace = %v, want 5s", cfg.Board.DetachGrace)
	}
	// Untouched values keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q, want default", cfg.Server.Host)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"BadPort", "server:\n  port: -1\n"},
		{"ZeroHistory", "board:\n  history_limit: 0\n"},
		{"ZeroCanvas", "canvas:\n  width: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load accepted invalid config")
			}
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed YAML")
	}
}
