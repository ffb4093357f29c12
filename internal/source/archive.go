// Package source acquires the FDA Orange Book archive: it downloads the ZIP
// with a browser-like client, extracts it without letting entries escape the
// destination, fingerprints files and maps extracted files to logical roles.
package source

import "path/filepath"

const (
	chunkSize = 8192

	archiveName = "orange_book.zip"
	extractName = "extracted"
)

// ArchiveSource locates one Orange Book drop and its local working paths.
// It is immutable once constructed.
type ArchiveSource struct {
	baseURL     string
	archivePath string
	extractDir  string
}

// NewArchiveSource places the archive and its extraction directory under workDir
func NewArchiveSource(baseURL, workDir string) ArchiveSource {
	return ArchiveSource{
		baseURL:     baseURL,
		archivePath: filepath.Join(workDir, archiveName),
		extractDir:  filepath.Join(workDir, extractName),
	}
}

func (s ArchiveSource) BaseURL() string     { return s.baseURL }
func (s ArchiveSource) ArchivePath() string { return s.archivePath }
func (s ArchiveSource) ExtractDir() string  { return s.extractDir }
