// Package bronze captures source files line by line, untyped, with the
// provenance needed to trace every record back to one file of one drop.
package bronze

import (
	"time"

	"github.com/google/uuid"

	"orangebook/internal/source"
)

// Namespace is the UUIDv5 namespace for identifiers derived from FDA data
var Namespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("fda.gov"))

// RawContent is one non-blank physical line of a source file
type RawContent struct {
	LineNumber int    `json:"line_number"` // 1-based, counts blank lines
	Data       string `json:"data"`
}

// Record is a Bronze row
type Record struct {
	SourceFile  string      `json:"source_file"`
	FileID      string      `json:"file_id"`
	IngestionTS time.Time   `json:"ingestion_ts"`
	SourceHash  string      `json:"source_hash"`
	Role        source.Role `json:"role"`
	RawContent  RawContent  `json:"raw_content"`
}

// FileID is stable for the same file name and content across runs
func FileID(name, hash string) string {
	return uuid.NewSHA1(Namespace, []byte(name+":"+hash)).String()
}
