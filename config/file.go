package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML files. Nil fields keep the current value.
type fileConfig struct {
	GameBaseURL               *string        `yaml:"game_base_url"`
	ReferenceURL              *string        `yaml:"reference_url"`
	PriceSelector             *string        `yaml:"price_selector"`
	ReferenceSelector         *string        `yaml:"reference_selector"`
	Timeout                   *time.Duration `yaml:"timeout"`
	Delay                     *time.Duration `yaml:"delay"`
	MaxRetries                *int           `yaml:"max_retries"`
	RetryBackoff              *time.Duration `yaml:"retry_backoff"`
	RetryBackoffMax           *time.Duration `yaml:"retry_backoff_max"`
	RetryStatuses             []int          `yaml:"retry_statuses"`
	UserAgent                 *string        `yaml:"user_agent"`
	FallThroughOnMissingPrice *bool          `yaml:"fall_through_on_missing_price"`
	RatioPlaceholder          *string        `yaml:"ratio_placeholder"`
	ResolutionCacheSize       *int           `yaml:"resolution_cache_size"`
	OutputFormat              *string        `yaml:"output_format"`
	MetricsAddr               *string        `yaml:"metrics_addr"`
}

// LoadFile overlays the YAML file at path onto c. Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.GameBaseURL, fc.GameBaseURL)
	setString(&c.ReferenceURL, fc.ReferenceURL)
	setString(&c.PriceSelector, fc.PriceSelector)
	setString(&c.ReferenceSelector, fc.ReferenceSelector)
	setString(&c.UserAgent, fc.UserAgent)
	setString(&c.RatioPlaceholder, fc.RatioPlaceholder)
	setString(&c.OutputFormat, fc.OutputFormat)
	setString(&c.MetricsAddr, fc.MetricsAddr)
	setDuration(&c.Timeout, fc.Timeout)
	setDuration(&c.Delay, fc.Delay)
	setDuration(&c.RetryBackoff, fc.RetryBackoff)
	setDuration(&c.RetryBackoffMax, fc.RetryBackoffMax)
	if fc.MaxRetries != nil {
		c.MaxRetries = *fc.MaxRetries
	}
	if fc.ResolutionCacheSize != nil {
		c.ResolutionCacheSize = *fc.ResolutionCacheSize
	}
	if fc.FallThroughOnMissingPrice != nil {
		c.FallThroughOnMissingPrice = *fc.FallThroughOnMissingPrice
	}
	if fc.RetryStatuses != nil {
		c.RetryStatuses = fc.RetryStatuses
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}
