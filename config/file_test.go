package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keypricer.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileOverlaysSetKeys(t *testing.T) {
	path := writeConfigFile(t, `
game_base_url: https://prices.example/game/
retry_backoff: 250ms
max_retries: 2
fall_through_on_missing_price: true
retry_statuses: [502, 503]
`)

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("load file: %v", err)
	}

	if cfg.GameBaseURL != "https://prices.example/game/" {
		t.Errorf("GameBaseURL=%q", cfg.GameBaseURL)
	}
	if cfg.RetryBackoff != 250*time.Millisecond {
		t.Errorf("RetryBackoff=%s", cfg.RetryBackoff)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries=%d", cfg.MaxRetries)
	}
	if !cfg.FallThroughOnMissingPrice {
		t.Error("FallThroughOnMissingPrice should be set")
	}
	if len(cfg.RetryStatuses) != 2 || cfg.ShouldRetry(500) {
		t.Errorf("RetryStatuses=%v", cfg.RetryStatuses)
	}
	if cfg.ReferenceURL != DefaultReferenceURL {
		t.Errorf("unset keys must keep defaults, ReferenceURL=%q", cfg.ReferenceURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate: %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "unknown key", body: "pages: 3\n", wantErr: "pages"},
		{name: "bad duration", body: "timeout: soon\n", wantErr: "parse config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.LoadFile(writeConfigFile(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFileEmpty(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFile(writeConfigFile(t, "")); err != nil {
		t.Fatalf("empty file should load: %v", err)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("MaxRetries=%d, want default", cfg.MaxRetries)
	}
}
