package bronze

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"orangebook/internal/source"
)

// Reader turns a text file into Bronze records. Input is decoded as UTF-8
// with invalid bytes replaced by U+FFFD. A leading byte order mark is kept as
// content unless StripBOM is set.
type Reader struct {
	StripBOM bool
}

// NewReader creates a Reader
func NewReader(stripBOM bool) *Reader {
	return &Reader{StripBOM: stripBOM}
}

func (r *Reader) encoding() encoding.Encoding {
	if r.StripBOM {
		return unicode.UTF8BOM
	}
	return unicode.UTF8
}

// ReadFile emits one record per non-blank line of path and returns how many
// were emitted. "\n", "\r\n" and a lone "\r" all end a line, and line numbers
// count every line including blank ones. Leading and trailing whitespace is
// trimmed from each line.
// An error from emit stops the read and is returned as is.
func (r *Reader) ReadFile(path string, role source.Role, hash string, ingestedAt time.Time, emit func(Record) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	name := filepath.Base(path)
	fileID := FileID(name, hash)
	br := bufio.NewReader(transform.NewReader(f, r.encoding().NewDecoder()))

	count := 0
	lineNumber := 0
	for {
		chunk, err := br.ReadString('\n')
		if len(chunk) > 0 {
			for _, line := range physicalLines(chunk) {
				lineNumber++
				data := strings.TrimSpace(line)
				if data == "" {
					continue
				}
				rec := Record{
					SourceFile:  name,
					FileID:      fileID,
					IngestionTS: ingestedAt,
					SourceHash:  hash,
					Role:        role,
					RawContent:  RawContent{LineNumber: lineNumber, Data: data},
				}
				if err := emit(rec); err != nil {
					return count, err
				}
				count++
			}
		}
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
	}
}

// physicalLines splits a chunk ending in at most one "\n" into lines, where
// "\r\n", a lone "\r" and "\n" each end a line.
func physicalLines(chunk string) []string {
	chunk = strings.TrimSuffix(chunk, "\n")
	chunk = strings.TrimSuffix(chunk, "\r")
	return strings.Split(chunk, "\r")
}
