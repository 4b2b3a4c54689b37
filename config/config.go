package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
)

const (
	// DefaultGameBaseURL is the listing root candidate slugs are appended to.
	DefaultGameBaseURL = "https://gg.deals/game/"
	// DefaultReferenceURL is the stats page for the Mann Co. Supply Crate Key.
	DefaultReferenceURL = "https://backpack.tf/stats/Unique/Mann%20Co.%20Supply%20Crate%20Key/Tradable/Craftable"
	// DefaultPriceSelector marks the displayed price on a game page. The class
	// attribute must be exactly "price".
	DefaultPriceSelector = `span[class="price"]`
	// DefaultReferenceSelector points at the key price box on the stats page.
	DefaultReferenceSelector = "body > main > div:nth-of-type(1) > div:nth-of-type(1) > div:nth-of-type(2) > div:nth-of-type(2) > div:nth-of-type(1) > a:nth-of-type(2) > div:nth-of-type(2) > div:nth-of-type(1)"
)

// Config holds pricer configuration.
type Config struct {
	GameBaseURL       string
	ReferenceURL      string
	PriceSelector     string
	ReferenceSelector string
	Timeout           time.Duration
	Delay             time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RetryBackoffMax   time.Duration
	RetryStatuses     []int
	UserAgent         string

	// FallThroughOnMissingPrice makes a page without a price advance to the
	// next candidate instead of ending resolution for the title.
	FallThroughOnMissingPrice bool
	RatioPlaceholder          string
	ResolutionCacheSize       int

	OutputFormat string // text, json, or dual
	MetricsAddr  string
	Verbose      bool
}

// DefaultConfig returns the defaults used against the live sites.
func DefaultConfig() *Config {
	return &Config{
		GameBaseURL:         DefaultGameBaseURL,
		ReferenceURL:        DefaultReferenceURL,
		PriceSelector:       DefaultPriceSelector,
		ReferenceSelector:   DefaultReferenceSelector,
		Timeout:             15 * time.Second,
		Delay:               0,
		MaxRetries:          5,
		RetryBackoff:        time.Second,
		RetryBackoffMax:     16 * time.Second,
		RetryStatuses:       []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		RatioPlaceholder:    "N/A",
		ResolutionCacheSize: 512,
		OutputFormat:        "text",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := validateURL("game base URL", c.GameBaseURL); err != nil {
		return err
	}
	if !strings.HasSuffix(c.GameBaseURL, "/") {
		return fmt.Errorf("game base URL must end with a slash")
	}
	if err := validateURL("reference URL", c.ReferenceURL); err != nil {
		return err
	}
	if err := validateSelector("price selector", c.PriceSelector); err != nil {
		return err
	}
	if err := validateSelector("reference selector", c.ReferenceSelector); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	for _, status := range c.RetryStatuses {
		if status < 500 || status > 599 {
			return fmt.Errorf("retry status %d is not a server error", status)
		}
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if strings.TrimSpace(c.RatioPlaceholder) == "" {
		return fmt.Errorf("ratio placeholder cannot be empty")
	}
	if c.ResolutionCacheSize <= 0 {
		return fmt.Errorf("resolution cache size must be positive")
	}
	if c.OutputFormat != "text" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be text, json, or dual")
	}

	return nil
}

// ShouldRetry reports whether status is in the retryable set.
func (c *Config) ShouldRetry(status int) bool {
	for _, s := range c.RetryStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}

func validateSelector(name, sel string) error {
	if strings.TrimSpace(sel) == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if _, err := cascadia.Parse(sel); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	return nil
}
