package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-key-pricer/config"
	"github.com/aluiziolira/go-key-pricer/parser"
)

// ReferenceResolver fetches the reference commodity price once and keeps it
// for the lifetime of the resolver.
type ReferenceResolver struct {
	fetcher  PageFetcher
	url      string
	selector string
	metrics  *Metrics

	mu     sync.Mutex
	cached string
}

// NewReferenceResolver builds a resolver for the configured stats page.
func NewReferenceResolver(fetcher PageFetcher, cfg *config.Config, metrics *Metrics) *ReferenceResolver {
	return &ReferenceResolver{
		fetcher:  fetcher,
		url:      cfg.ReferenceURL,
		selector: cfg.ReferenceSelector,
		metrics:  metrics,
	}
}

// Resolve returns the reference price. Failures are not cached, so a later
// call tries the page again.
func (r *ReferenceResolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != "" {
		return r.cached, nil
	}

	result := r.fetcher.Fetch(ctx, r.url)
	slog.Debug("reference page fetched",
		slog.String("url", r.url),
		slog.Int("status", result.StatusCode),
		slog.String("outcome", result.Outcome.String()),
	)
	if result.Outcome != OutcomeSuccess {
		cause := result.Err
		if cause == nil {
			cause = fmt.Errorf("outcome %s", result.Outcome)
		}
		return "", r.fail(fmt.Errorf("%w: fetch %s (status %d): %w", ErrReferenceUnavailable, r.url, result.StatusCode, cause))
	}

	text, ok := parser.ExtractText(result.Body, r.selector)
	if !ok {
		return "", r.fail(fmt.Errorf("%w: price element not found on %s", ErrReferenceUnavailable, r.url))
	}
	value := parser.NormalizeReference(text)
	if value == "" {
		return "", r.fail(fmt.Errorf("%w: empty price element on %s", ErrReferenceUnavailable, r.url))
	}

	r.cached = value
	slog.Info("reference price resolved", slog.String("value", value))
	return value, nil
}

// Forget drops the cached value.
func (r *ReferenceResolver) Forget() {
	r.mu.Lock()
	r.cached = ""
	r.mu.Unlock()
}

func (r *ReferenceResolver) fail(err error) error {
	r.metrics.IncError(errorTypeLabel(err))
	slog.Error("reference price unavailable", slog.Any("error", err))
	return err
}
