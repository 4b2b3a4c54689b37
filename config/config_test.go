package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty game base url",
			mutate: func(cfg *Config) {
				cfg.GameBaseURL = ""
			},
			wantErr: "game base URL",
		},
		{
			name: "game base url without trailing slash",
			mutate: func(cfg *Config) {
				cfg.GameBaseURL = "https://gg.deals/game"
			},
			wantErr: "slash",
		},
		{
			name: "invalid reference url",
			mutate: func(cfg *Config) {
				cfg.ReferenceURL = "http://"
			},
			wantErr: "reference URL",
		},
		{
			name: "broken price selector",
			mutate: func(cfg *Config) {
				cfg.PriceSelector = "span[class="
			},
			wantErr: "price selector",
		},
		{
			name: "empty reference selector",
			mutate: func(cfg *Config) {
				cfg.ReferenceSelector = "  "
			},
			wantErr: "reference selector",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "negative retries",
			mutate: func(cfg *Config) {
				cfg.MaxRetries = -1
			},
			wantErr: "max retries",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = time.Minute
			},
			wantErr: "cannot exceed",
		},
		{
			name: "client error in retry statuses",
			mutate: func(cfg *Config) {
				cfg.RetryStatuses = []int{404}
			},
			wantErr: "retry status",
		},
		{
			name: "blank ratio placeholder",
			mutate: func(cfg *Config) {
				cfg.RatioPlaceholder = ""
			},
			wantErr: "placeholder",
		},
		{
			name: "unknown output format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestShouldRetry(t *testing.T) {
	cfg := DefaultConfig()
	for _, status := range []int{500, 502, 503, 504} {
		if !cfg.ShouldRetry(status) {
			t.Errorf("status %d should be retried", status)
		}
	}
	for _, status := range []int{200, 404, 403, 501} {
		if cfg.ShouldRetry(status) {
			t.Errorf("status %d should not be retried", status)
		}
	}
}
