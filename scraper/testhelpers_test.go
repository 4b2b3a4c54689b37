package scraper

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aluiziolira/go-key-pricer/config"
	"github.com/jarcoal/httpmock"
)

const (
	testBaseURL      = "http://example.test/game/"
	testReferenceURL = "http://example.test/stats/key"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.GameBaseURL = testBaseURL
	cfg.ReferenceURL = testReferenceURL
	cfg.Timeout = time.Second
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 4 * time.Millisecond
	return cfg
}

func newMockedFetcher(cfg *config.Config) (*Fetcher, *httpmock.MockTransport, *Metrics) {
	metrics := NewMetrics()
	f, err := NewFetcher(cfg, metrics)
	if err != nil {
		panic(err)
	}
	transport := httpmock.NewMockTransport()
	f.WithTransport(transport)
	return f, transport, metrics
}

func htmlResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func sequenceResponder(statuses ...int) httpmock.Responder {
	var mu sync.Mutex
	call := 0
	return func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		status := statuses[len(statuses)-1]
		if call < len(statuses) {
			status = statuses[call]
		}
		call++
		mu.Unlock()
		resp := httpmock.NewStringResponse(status, pricePage("$1.00"))
		resp.Header.Set("Content-Type", "text/html")
		return resp, nil
	}
}

func pricePage(price string) string {
	return fmt.Sprintf(`<html><body><div class="game-info"><span class="price">%s</span></div></body></html>`, price)
}

func noPricePage() string {
	return `<html><body><div class="game-info"><p>No offers yet</p></div></body></html>`
}

// referencePage lays out the stats page so config.DefaultReferenceSelector
// lands on value.
func referencePage(value string) string {
	return `<html><body><main>
<div>
  <div>
    <div></div>
    <div>
      <div></div>
      <div>
        <div>
          <a href="/a">first</a>
          <a href="/b"><div>label</div><div><div>` + value + `</div><div>other</div></div></a>
        </div>
      </div>
    </div>
  </div>
</div>
</main></body></html>`
}

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]FetchResult
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) FetchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if r, ok := f.results[url]; ok {
		r.URL = url
		r.Attempts = 1
		return r
	}
	return FetchResult{
		URL:        url,
		Outcome:    OutcomeNotFound,
		StatusCode: http.StatusNotFound,
		Attempts:   1,
		Err:        ErrNotFound{Err: fmt.Errorf("http status 404")},
	}
}

func ok(body string) FetchResult {
	return FetchResult{Outcome: OutcomeSuccess, StatusCode: http.StatusOK, Body: []byte(body)}
}

func failed(status int) FetchResult {
	return FetchResult{Outcome: OutcomeFailure, StatusCode: status, Err: fmt.Errorf("http status %d", status)}
}
