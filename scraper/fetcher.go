package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-key-pricer/config"
	"github.com/gocolly/colly/v2"
)

// Outcome is the tagged result of one fetch.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNotFound
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "failure"
	}
}

// FetchResult is what a GET produced once retries are spent.
type FetchResult struct {
	URL        string
	Outcome    Outcome
	StatusCode int
	Body       []byte
	Attempts   int
	Err        error
}

// PageFetcher fetches a single page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) FetchResult
}

// FetchStats summarises the traffic a Fetcher issued.
type FetchStats struct {
	Requests int64
	Retries  int64
	Errors   int64
}

const sinkKey = "sink"

type attemptSink struct {
	status int
	body   []byte
	err    error
}

// Fetcher issues GETs through one colly collector so connections are pooled
// across every request in a run.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *Metrics

	requestCount int64
	retryCount   int64
	errorCount   int64
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		Metrics:   metrics,
	}
	f.configureHandlers()
	return f, nil
}

// WithTransport swaps the round tripper, e.g. for a mock in tests.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Stats returns a snapshot of the request counters.
func (f *Fetcher) Stats() FetchStats {
	return FetchStats{
		Requests: atomic.LoadInt64(&f.requestCount),
		Retries:  atomic.LoadInt64(&f.retryCount),
		Errors:   atomic.LoadInt64(&f.errorCount),
	}
}

// Fetch performs a GET, retrying server errors with exponential backoff.
// 404 is final; other client errors and network errors surface as failures.
func (f *Fetcher) Fetch(ctx context.Context, url string) FetchResult {
	if ctx == nil {
		ctx = context.Background()
	}
	result := FetchResult{URL: url}

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt
		status, body, err := f.attempt(url)
		result.StatusCode = status

		switch {
		case err == nil:
			result.Outcome = OutcomeSuccess
			result.Body = body
			result.Err = nil
			f.Metrics.IncRequest(result.Outcome.String())
			return result

		case status == http.StatusNotFound:
			result.Outcome = OutcomeNotFound
			result.Err = classifyError(err, status)
			f.Metrics.IncRequest(result.Outcome.String())
			return result

		case f.cfg.ShouldRetry(status) && attempt <= f.cfg.MaxRetries:
			f.Metrics.IncRequest("retry")
			f.Metrics.IncRetries()
			atomic.AddInt64(&f.retryCount, 1)
			delay := f.backoff(attempt)
			slog.Debug("server error, retrying",
				slog.String("url", url),
				slog.Int("status", status),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
			)
			if err := sleepContext(ctx, delay); err != nil {
				return f.fail(result, err)
			}

		default:
			return f.fail(result, classifyError(err, status))
		}
	}
}

func (f *Fetcher) fail(result FetchResult, err error) FetchResult {
	result.Outcome = OutcomeFailure
	result.Err = err
	category := errorTypeLabel(err)
	atomic.AddInt64(&f.errorCount, 1)
	f.Metrics.IncRequest(result.Outcome.String())
	f.Metrics.IncError(category)
	slog.Warn("request failed",
		slog.String("url", result.URL),
		slog.Int("status", result.StatusCode),
		slog.String("category", category),
		slog.Any("error", err),
	)
	return result
}

func (f *Fetcher) attempt(url string) (int, []byte, error) {
	sink := &attemptSink{}
	ctx := colly.NewContext()
	ctx.Put(sinkKey, sink)

	start := time.Now()
	err := f.collector.Request(http.MethodGet, url, nil, ctx, nil)
	f.Metrics.ObserveDuration(time.Since(start))
	atomic.AddInt64(&f.requestCount, 1)

	if err == nil && sink.err != nil {
		err = sink.err
	}
	return sink.status, sink.body, err
}

func (f *Fetcher) configureHandlers() {
	f.collector.OnResponse(func(r *colly.Response) {
		sink, ok := r.Ctx.GetAny(sinkKey).(*attemptSink)
		if !ok {
			return
		}
		sink.status = r.StatusCode
		sink.body = r.Body
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		sink, ok := r.Ctx.GetAny(sinkKey).(*attemptSink)
		if !ok {
			return
		}
		sink.status = r.StatusCode
		sink.err = err
	})
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		return 0
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{Status: statusCode, Err: wrapped}
		}
	}

	return err
}
