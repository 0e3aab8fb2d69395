package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"imagedupes/types"
)

// DefaultFileName is the report written inside the scanned folder
const DefaultFileName = "Similarities.txt"

// Writer appends pair results to a UTF-8 text report, one line per result
type Writer struct {
	mu    sync.Mutex
	file  *os.File
	buf   *bufio.Writer
	lines int
}

// DefaultPath returns the report location for a scanned root folder
func DefaultPath(root string) string {
	return filepath.Join(root, DefaultFileName)
}

// Create truncates or creates the report at path
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cannot create report %s: %w", path, err)
	}
	return &Writer{file: f, buf: bufio.NewWriter(f)}, nil
}

// FormatLine renders a result as "<title1> | <title2> : <percentage>%\n"
func FormatLine(r types.PairResult) string {
	return r.String() + "\n"
}

// WriteRow writes the results of one row and flushes them to disk
func (w *Writer) WriteRow(results []*types.PairResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, r := range results {
		if r == nil {
			continue
		}
		if _, err := w.buf.WriteString(FormatLine(*r)); err != nil {
			return err
		}
		w.lines++
	}
	return w.buf.Flush()
}

// Lines returns the number of results written
func (w *Writer) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

// Close flushes and closes the report
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
