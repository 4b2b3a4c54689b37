package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-key-pricer/models"
)

// OutputWriter receives the two output streams of a batch run.
type OutputWriter interface {
	Begin(ref models.ReferencePrice) error
	WriteMatch(line *models.ReportLine) error
	WriteRetry(title string) error
	Close() error
}

// TextWriter writes the pipe-separated report and the plain retry list.
// Every write is flushed so a cancelled run leaves its partial output behind.
type TextWriter struct {
	report  *bufio.Writer
	retry   *bufio.Writer
	closers []io.Closer
	mu      sync.Mutex
}

// NewTextWriter writes the report to report and retry entries to retry.
func NewTextWriter(report, retry io.Writer) *TextWriter {
	return &TextWriter{
		report: bufio.NewWriter(report),
		retry:  bufio.NewWriter(retry),
	}
}

// NewTextFileWriter creates (truncating) the report and retry files.
func NewTextFileWriter(reportPath, retryPath string) (*TextWriter, error) {
	reportFile, err := createFile(reportPath)
	if err != nil {
		return nil, fmt.Errorf("create report file: %w", err)
	}
	retryFile, err := createFile(retryPath)
	if err != nil {
		reportFile.Close()
		return nil, fmt.Errorf("create retry file: %w", err)
	}

	w := NewTextWriter(reportFile, retryFile)
	w.closers = []io.Closer{reportFile, retryFile}
	return w, nil
}

// Begin writes the report header.
func (tw *TextWriter) Begin(ref models.ReferencePrice) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if ref.Available() {
		fmt.Fprintf(tw.report, "Reference Price: $%s\n\n", ref.Value)
	} else {
		fmt.Fprintf(tw.report, "Reference Price: unavailable (%v)\n\n", ref.Err)
	}
	fmt.Fprint(tw.report, "Game Name | Price | Ratio\n\n")
	if err := tw.report.Flush(); err != nil {
		return fmt.Errorf("flush report header: %w", err)
	}
	return nil
}

// WriteMatch appends one report line.
func (tw *TextWriter) WriteMatch(line *models.ReportLine) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	fmt.Fprintf(tw.report, "%s | %s | %s\n", line.Title, line.Price, line.Ratio)
	if err := tw.report.Flush(); err != nil {
		return fmt.Errorf("flush report line: %w", err)
	}
	return nil
}

// WriteRetry appends one title to the retry list.
func (tw *TextWriter) WriteRetry(title string) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	fmt.Fprintln(tw.retry, title)
	if err := tw.retry.Flush(); err != nil {
		return fmt.Errorf("flush retry entry: %w", err)
	}
	return nil
}

// Close flushes and closes any files the writer opened.
func (tw *TextWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.report.Flush(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	if err := tw.retry.Flush(); err != nil {
		return fmt.Errorf("flush retry list: %w", err)
	}
	for _, c := range tw.closers {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}

type jsonRecord struct {
	Kind      string `json:"kind"`
	Title     string `json:"title,omitempty"`
	Price     string `json:"price,omitempty"`
	Ratio     string `json:"ratio,omitempty"`
	URL       string `json:"url,omitempty"`
	Reference string `json:"reference,omitempty"`
	Error     string `json:"error,omitempty"`
}

// JSONWriter writes newline-delimited JSON records: one reference record,
// then one record per matched or retried title.
type JSONWriter struct {
	writer  *bufio.Writer
	encoder *json.Encoder
	closer  io.Closer
	mu      sync.Mutex
}

// NewJSONWriter encodes records onto w.
func NewJSONWriter(w io.Writer) *JSONWriter {
	buffer := bufio.NewWriter(w)
	return &JSONWriter{
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}
}

// NewJSONFileWriter creates (truncating) filename.
func NewJSONFileWriter(filename string) (*JSONWriter, error) {
	f, err := createFile(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}
	jw := NewJSONWriter(f)
	jw.closer = f
	return jw, nil
}

// Begin records the reference price.
func (jw *JSONWriter) Begin(ref models.ReferencePrice) error {
	rec := jsonRecord{Kind: "reference", Reference: ref.Value}
	if ref.Err != nil {
		rec.Error = ref.Err.Error()
	}
	return jw.encode(rec)
}

// WriteMatch records a matched title.
func (jw *JSONWriter) WriteMatch(line *models.ReportLine) error {
	return jw.encode(jsonRecord{
		Kind:  "match",
		Title: line.Title,
		Price: line.Price,
		Ratio: line.Ratio,
		URL:   line.URL,
	})
}

// WriteRetry records a title with no price.
func (jw *JSONWriter) WriteRetry(title string) error {
	return jw.encode(jsonRecord{Kind: "retry", Title: title})
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	if jw.closer != nil {
		return jw.closer.Close()
	}
	return nil
}

func (jw *JSONWriter) encode(rec jsonRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.encoder.Encode(rec); err != nil {
		return fmt.Errorf("encode json record: %w", err)
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

func createFile(filename string) (*os.File, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	return os.Create(filename)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
