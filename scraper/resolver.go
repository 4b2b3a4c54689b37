package scraper

import (
	"context"
	"log/slog"

	"github.com/aluiziolira/go-key-pricer/config"
	"github.com/aluiziolira/go-key-pricer/models"
	"github.com/aluiziolira/go-key-pricer/parser"
)

// TitleResolver walks the candidate URLs for a title until one yields a
// price, a page without one, or the candidates run out.
type TitleResolver struct {
	fetcher PageFetcher
	cfg     *config.Config
	metrics *Metrics
}

// NewTitleResolver builds a resolver over fetcher.
func NewTitleResolver(fetcher PageFetcher, cfg *config.Config, metrics *Metrics) *TitleResolver {
	return &TitleResolver{
		fetcher: fetcher,
		cfg:     cfg,
		metrics: metrics,
	}
}

// Resolve finds a price for title. The first page that loads ends the walk
// unless FallThroughOnMissingPrice is set; not-found and failed candidates
// both move on to the next one.
func (r *TitleResolver) Resolve(ctx context.Context, title string) *models.Resolution {
	slug := parser.Canonicalize(title)
	res := &models.Resolution{
		Title: title,
		Slug:  slug,
		State: models.StateExhausted,
	}
	if slug == "" {
		slog.Warn("title has no usable characters", slog.String("title", title))
		return r.finish(res)
	}

	for _, url := range parser.CandidateURLs(r.cfg.GameBaseURL, slug) {
		slog.Debug("trying candidate", slog.String("title", title), slog.String("url", url))
		result := r.fetcher.Fetch(ctx, url)
		res.Attempts = append(res.Attempts, models.CandidateAttempt{
			URL:        url,
			StatusCode: result.StatusCode,
			Outcome:    result.Outcome.String(),
			Err:        result.Err,
		})

		if result.Outcome != OutcomeSuccess {
			continue
		}

		if price, ok := parser.ExtractPrice(result.Body, r.cfg.PriceSelector); ok {
			res.State = models.StateFound
			res.Price = price
			res.URL = url
			return r.finish(res)
		}

		r.metrics.IncError(errorTypeLabel(ErrNoPrice{URL: url}))
		slog.Warn("page has no price element", slog.String("url", url))
		if r.cfg.FallThroughOnMissingPrice {
			continue
		}
		res.State = models.StateNoPrice
		res.URL = url
		return r.finish(res)
	}

	return r.finish(res)
}

func (r *TitleResolver) finish(res *models.Resolution) *models.Resolution {
	r.metrics.IncTitle(string(res.State))
	slog.Debug("title resolved",
		slog.String("title", res.Title),
		slog.String("state", string(res.State)),
		slog.String("price", res.Price),
		slog.Int("candidates_tried", len(res.Attempts)),
	)
	return res
}
