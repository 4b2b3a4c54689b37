package pipeline

import (
	"fmt"
	"sync"

	"github.com/aluiziolira/go-key-pricer/models"
)

// DualWriter outputs to both the text and JSON formats simultaneously.
type DualWriter struct {
	textWriter *TextWriter
	jsonWriter *JSONWriter
	mu         sync.Mutex
}

// NewDualWriter creates the text report, retry list and JSON files.
func NewDualWriter(reportPath, retryPath, jsonPath string) (*DualWriter, error) {
	textWriter, err := NewTextFileWriter(reportPath, retryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create text writer: %w", err)
	}

	jsonWriter, err := NewJSONFileWriter(jsonPath)
	if err != nil {
		textWriter.Close()
		return nil, fmt.Errorf("failed to create JSON writer: %w", err)
	}

	return &DualWriter{
		textWriter: textWriter,
		jsonWriter: jsonWriter,
	}, nil
}

// Begin writes the header to both outputs.
func (dw *DualWriter) Begin(ref models.ReferencePrice) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.textWriter.Begin(ref); err != nil {
		return fmt.Errorf("text write failed: %w", err)
	}
	if err := dw.jsonWriter.Begin(ref); err != nil {
		return fmt.Errorf("JSON write failed: %w", err)
	}
	return nil
}

// WriteMatch writes a report line to both outputs.
func (dw *DualWriter) WriteMatch(line *models.ReportLine) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.textWriter.WriteMatch(line); err != nil {
		return fmt.Errorf("text write failed: %w", err)
	}
	if err := dw.jsonWriter.WriteMatch(line); err != nil {
		return fmt.Errorf("JSON write failed: %w", err)
	}
	return nil
}

// WriteRetry writes a retry entry to both outputs.
func (dw *DualWriter) WriteRetry(title string) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.textWriter.WriteRetry(title); err != nil {
		return fmt.Errorf("text write failed: %w", err)
	}
	if err := dw.jsonWriter.WriteRetry(title); err != nil {
		return fmt.Errorf("JSON write failed: %w", err)
	}
	return nil
}

// Close closes both writers
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error

	if err := dw.textWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("text close failed: %w", err))
	}

	if err := dw.jsonWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("JSON close failed: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors: %v", errs)
	}

	return nil
}
