package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/go-key-pricer/config"
	"github.com/aluiziolira/go-key-pricer/models"
	"github.com/aluiziolira/go-key-pricer/parser"
	"github.com/google/uuid"
)

// TitleSource resolves a free-form title to a price.
type TitleSource interface {
	Resolve(ctx context.Context, title string) *models.Resolution
}

// ReferenceSource supplies the reference price ratios are computed against.
type ReferenceSource interface {
	Resolve(ctx context.Context) (string, error)
}

// Driver runs a list of titles through resolution and writes the report and
// the retry list.
type Driver struct {
	titles      TitleSource
	reference   ReferenceSource
	placeholder string
}

// NewDriver builds a driver from its sources.
func NewDriver(titles TitleSource, reference ReferenceSource, cfg *config.Config) *Driver {
	return &Driver{
		titles:      titles,
		reference:   reference,
		placeholder: cfg.RatioPlaceholder,
	}
}

// Run processes titles in order. The session is checked for cancellation
// before each title; titles not reached are left out of both outputs. Only
// output failures are returned as errors. The session starts clean and is
// reset again on return.
func (d *Driver) Run(ctx context.Context, session *Session, titles []string, out OutputWriter) (*models.BatchResult, error) {
	session.Reset()
	defer session.Reset()

	result := &models.BatchResult{RunID: uuid.NewString(), StartTime: time.Now()}
	defer func() {
		result.EndTime = time.Now()
	}()
	logger := slog.With(slog.String("run_id", result.RunID))

	value, err := d.reference.Resolve(ctx)
	result.Reference = models.ReferencePrice{Value: value, Err: err}
	if err != nil {
		logger.Warn("continuing without reference price", slog.Any("error", err))
	}
	if err := out.Begin(result.Reference); err != nil {
		return result, fmt.Errorf("write report header: %w", err)
	}

	for i, raw := range titles {
		if session.Cancelled() {
			result.Cancelled = true
			result.Skipped = countTitles(titles[i:])
			logger.Info("processing stopped by user", slog.Int("skipped", result.Skipped))
			break
		}

		title := strings.TrimSpace(raw)
		if title == "" {
			continue
		}

		res := d.resolve(ctx, session, title)
		result.Processed++

		if !res.Found() {
			result.Retries = append(result.Retries, title)
			if err := out.WriteRetry(title); err != nil {
				return result, fmt.Errorf("write retry entry: %w", err)
			}
			logger.Info("game not found", slog.String("title", title), slog.String("state", string(res.State)))
			continue
		}

		line, err := d.buildLine(title, res, result.Reference)
		if err != nil {
			result.RatioFails++
			logger.Warn("ratio unavailable", slog.String("title", title), slog.Any("error", err))
		}
		if err := parser.ValidateReportLine(line); err != nil {
			logger.Error("dropping invalid report line", slog.Any("error", err))
			result.Retries = append(result.Retries, title)
			if err := out.WriteRetry(title); err != nil {
				return result, fmt.Errorf("write retry entry: %w", err)
			}
			continue
		}

		result.Lines = append(result.Lines, line)
		if err := out.WriteMatch(line); err != nil {
			return result, fmt.Errorf("write report line: %w", err)
		}
		logger.Info("processed",
			slog.String("title", line.Title),
			slog.String("price", line.Price),
			slog.String("ratio", line.Ratio),
		)
	}

	return result, nil
}

// Quote resolves one title and, when it has a price, prices it against the
// reference. The line is nil when the title was not found.
func (d *Driver) Quote(ctx context.Context, title string) (*models.Resolution, *models.ReportLine) {
	title = strings.TrimSpace(title)
	res := d.titles.Resolve(ctx, title)
	if !res.Found() {
		return res, nil
	}

	value, err := d.reference.Resolve(ctx)
	line, err := d.buildLine(title, res, models.ReferencePrice{Value: value, Err: err})
	if err != nil {
		slog.Warn("ratio unavailable", slog.String("title", title), slog.Any("error", err))
	}
	return res, line
}

func (d *Driver) resolve(ctx context.Context, session *Session, title string) *models.Resolution {
	slug := parser.Canonicalize(title)
	if cached, ok := session.recall(slug); ok {
		slog.Debug("title already resolved in this run", slog.String("title", title), slog.String("slug", slug))
		return cached
	}
	res := d.titles.Resolve(ctx, title)
	session.remember(slug, res)
	return res
}

// buildLine always returns a line; the ratio falls back to the placeholder
// when it cannot be computed and the cause is returned alongside.
func (d *Driver) buildLine(title string, res *models.Resolution, ref models.ReferencePrice) (*models.ReportLine, error) {
	line := &models.ReportLine{
		Title: title,
		Price: res.Price,
		Ratio: d.placeholder,
		URL:   res.URL,
	}
	if !ref.Available() {
		return line, fmt.Errorf("%w: %v", parser.ErrRatioUndefined, ref.Err)
	}
	ratio, err := parser.Ratio(res.Price, ref.Value)
	if err != nil {
		return line, err
	}
	line.Ratio = ratio
	return line, nil
}

func countTitles(lines []string) int {
	n := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			n++
		}
	}
	return n
}
