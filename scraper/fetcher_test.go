package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFetcherBackoffCapped(t *testing.T) {
	cfg := testConfig()
	cfg.RetryBackoff = time.Second
	cfg.RetryBackoffMax = 16 * time.Second

	f, _, _ := newMockedFetcher(cfg)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 16 * time.Second}
	for i, expected := range want {
		if got := f.backoff(i + 1); got != expected {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, expected)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server", err: errors.New("Bad Gateway"), statusCode: http.StatusBadGateway, expected: "server_error"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestErrorTypeLabelDomainErrors(t *testing.T) {
	if got := errorTypeLabel(ErrNoPrice{URL: "http://example.test/"}); got != "no_price" {
		t.Fatalf("label = %q, want no_price", got)
	}
	wrapped := fmt.Errorf("%w: element missing", ErrReferenceUnavailable)
	if got := errorTypeLabel(wrapped); got != "reference" {
		t.Fatalf("label = %q, want reference", got)
	}
}

func TestFetcherOutcomes(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		register     bool
		wantOutcome  Outcome
		wantCategory string
	}{
		{name: "ok", status: http.StatusOK, register: true, wantOutcome: OutcomeSuccess},
		{name: "not found", status: http.StatusNotFound, register: true, wantOutcome: OutcomeNotFound, wantCategory: "not_found"},
		{name: "forbidden", status: http.StatusForbidden, register: true, wantOutcome: OutcomeFailure, wantCategory: "forbidden"},
		{name: "rate limited", status: http.StatusTooManyRequests, register: true, wantOutcome: OutcomeFailure, wantCategory: "rate_limited"},
		{name: "not implemented", status: http.StatusNotImplemented, register: true, wantOutcome: OutcomeFailure, wantCategory: "server_error"},
		{name: "network error", register: false, wantOutcome: OutcomeFailure, wantCategory: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			f, transport, _ := newMockedFetcher(cfg)
			url := testBaseURL + "portal/"
			if tt.register {
				transport.RegisterResponder("GET", url, htmlResponder(tt.status, pricePage("$1.00")))
			}

			result := f.Fetch(context.Background(), url)
			if result.Outcome != tt.wantOutcome {
				t.Fatalf("outcome = %v, want %v (err=%v)", result.Outcome, tt.wantOutcome, result.Err)
			}
			if result.Attempts != 1 {
				t.Fatalf("attempts = %d, want 1", result.Attempts)
			}
			if tt.wantOutcome == OutcomeSuccess {
				if result.Err != nil || len(result.Body) == 0 {
					t.Fatalf("expected body and no error, got err=%v", result.Err)
				}
				return
			}
			if got := errorTypeLabel(result.Err); got != tt.wantCategory {
				t.Fatalf("category = %q, want %q (err=%v)", got, tt.wantCategory, result.Err)
			}
		})
	}
}

func TestFetcherRetriesServerErrors(t *testing.T) {
	cfg := testConfig()
	f, transport, metrics := newMockedFetcher(cfg)
	url := testBaseURL + "portal-2/"
	transport.RegisterResponder("GET", url, sequenceResponder(http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusOK))

	result := f.Fetch(context.Background(), url)
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want success (err=%v)", result.Outcome, result.Err)
	}
	if result.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", result.Attempts)
	}
	if got := transport.GetTotalCallCount(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.RetriesTotal); got != 2 {
		t.Fatalf("retries metric = %v, want 2", got)
	}
	if stats := f.Stats(); stats.Requests != 3 || stats.Retries != 2 || stats.Errors != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestFetcherGivesUpAfterMaxRetries(t *testing.T) {
	cfg := testConfig()
	f, transport, _ := newMockedFetcher(cfg)
	url := testBaseURL + "portal-2/"
	transport.RegisterResponder("GET", url, sequenceResponder(http.StatusInternalServerError))

	result := f.Fetch(context.Background(), url)
	if result.Outcome != OutcomeFailure {
		t.Fatalf("outcome = %v, want failure", result.Outcome)
	}
	if want := cfg.MaxRetries + 1; result.Attempts != want || transport.GetTotalCallCount() != want {
		t.Fatalf("attempts = %d calls = %d, want %d", result.Attempts, transport.GetTotalCallCount(), want)
	}
	var server ErrServer
	if !errors.As(result.Err, &server) || server.Status != http.StatusInternalServerError {
		t.Fatalf("expected ErrServer 500, got %v", result.Err)
	}
}

func TestFetcherDoesNotRetryNotFound(t *testing.T) {
	cfg := testConfig()
	f, transport, _ := newMockedFetcher(cfg)
	url := testBaseURL + "missing/"
	transport.RegisterResponder("GET", url, htmlResponder(http.StatusNotFound, ""))

	result := f.Fetch(context.Background(), url)
	if result.Outcome != OutcomeNotFound {
		t.Fatalf("outcome = %v, want not found", result.Outcome)
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestFetcherBackoffHonoursContext(t *testing.T) {
	cfg := testConfig()
	cfg.RetryBackoff = time.Hour
	cfg.RetryBackoffMax = time.Hour
	f, transport, _ := newMockedFetcher(cfg)
	url := testBaseURL + "portal-2/"
	transport.RegisterResponder("GET", url, sequenceResponder(http.StatusServiceUnavailable))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := f.Fetch(ctx, url)
	if result.Outcome != OutcomeFailure {
		t.Fatalf("outcome = %v, want failure", result.Outcome)
	}
	if !errors.Is(result.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", result.Err)
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}
