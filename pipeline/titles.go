package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/aluiziolira/go-key-pricer/parser"
)

// ReadTitles returns one title per non-blank line, trimmed, in input order.
func ReadTitles(r io.Reader) ([]string, error) {
	var titles []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if title := strings.TrimSpace(scanner.Text()); title != "" {
			titles = append(titles, title)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read titles: %w", err)
	}
	return titles, nil
}

// ReadTitlesFile reads a newline-delimited title list.
func ReadTitlesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open title list: %w", err)
	}
	defer f.Close()
	return ReadTitles(f)
}

// AddTitle appends title to the list at path unless a line with the same slug
// is already there. The list is kept sorted and created when missing.
func AddTitle(path, title string) (bool, error) {
	title = strings.TrimSpace(title)
	slug := parser.Canonicalize(title)
	if slug == "" {
		return false, fmt.Errorf("title %q has no usable characters", title)
	}

	existing, err := ReadTitlesFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	for _, line := range existing {
		if parser.Canonicalize(line) == slug {
			return false, nil
		}
	}

	titles := append(existing, title)
	sort.Strings(titles)

	if err := ensureDir(path); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(strings.Join(titles, "\n")+"\n"), 0o644); err != nil {
		return false, fmt.Errorf("write title list: %w", err)
	}
	return true, nil
}
