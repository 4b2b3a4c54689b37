// Package models defines data structures for the pricer.
package models

import "time"

// ResolutionState is the terminal state of resolving one title.
type ResolutionState string

const (
	// StateFound means a candidate page yielded a price.
	StateFound ResolutionState = "found"
	// StateNoPrice means a candidate page loaded but had no price element.
	StateNoPrice ResolutionState = "no_price"
	// StateExhausted means every candidate was missing or failed.
	StateExhausted ResolutionState = "exhausted"
)

// Resolution is the outcome of resolving a free-form title against the pricing site.
type Resolution struct {
	Title    string
	Slug     string
	URL      string // page that ended resolution, empty when exhausted
	Price    string
	State    ResolutionState
	Attempts []CandidateAttempt
}

// Found reports whether the resolution carries a price.
func (r *Resolution) Found() bool {
	return r != nil && r.State == StateFound && r.Price != ""
}

// CandidateAttempt records what happened to one candidate URL.
type CandidateAttempt struct {
	URL        string
	StatusCode int
	Outcome    string
	Err        error
}

// ReferencePrice is the per-run denominator for every ratio.
type ReferencePrice struct {
	Value string
	Err   error
}

// Available reports whether the reference resolved to a value.
func (r ReferencePrice) Available() bool {
	return r.Err == nil && r.Value != ""
}

// ReportLine is one matched title in the report.
type ReportLine struct {
	Title string `json:"title" validate:"required"`
	Price string `json:"price" validate:"required"`
	Ratio string `json:"ratio" validate:"required"`
	URL   string `json:"url,omitempty" validate:"omitempty,url"`
}

// BatchResult holds the overall result of a batch run.
type BatchResult struct {
	RunID      string
	Reference  ReferencePrice
	Lines      []*ReportLine
	Retries    []string
	StartTime  time.Time
	EndTime    time.Time
	Processed  int
	Skipped    int // titles dropped because of cancellation
	Cancelled  bool
	RatioFails int
}
