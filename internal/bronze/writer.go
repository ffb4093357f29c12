package bronze

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RecordWriter receives Bronze records
type RecordWriter interface {
	Write(rec Record) error
}

// JSONLWriter writes records as JSON lines to a local file
type JSONLWriter struct {
	path  string
	file  *os.File
	buf   *bufio.Writer
	enc   *json.Encoder
	count int
}

// NewJSONLWriter creates (or truncates) path and its parent directories
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bronze output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create bronze output: %w", err)
	}
	buf := bufio.NewWriterSize(f, 64*1024)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{path: path, file: f, buf: buf, enc: enc}, nil
}

// Write appends one record
func (w *JSONLWriter) Write(rec Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode bronze record: %w", err)
	}
	w.count++
	return nil
}

// Close flushes buffered records and closes the file
func (w *JSONLWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush bronze output: %w", err)
	}
	return w.file.Close()
}

func (w *JSONLWriter) Path() string { return w.path }
func (w *JSONLWriter) Count() int   { return w.count }
