package source

import (
	"archive/zip"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"orangebook/internal/observability"
)

// Extractor unpacks ZIP archives without letting any entry land outside the
// destination directory.
type Extractor struct {
	logger  observability.Logger
	metrics observability.Metrics
}

// NewExtractor creates an Extractor
func NewExtractor(logger observability.Logger, metrics observability.Metrics) *Extractor {
	return &Extractor{
		logger:  logger.WithFields(map[string]interface{}{"component": "extractor"}),
		metrics: metrics,
	}
}

// Extract writes every safe file entry of archivePath under destDir and returns
// their paths as destDir joined with the entry name. Unsafe entries, and entries
// whose target cannot be created, are skipped with a warning. Directory entries
// are created but not returned. An entry name repeated in the archive is listed
// once and holds the content of its last occurrence.
func (e *Extractor) Extract(archivePath, destDir string) ([]string, error) {
	start := time.Now()

	files, err := e.extract(archivePath, destDir)

	e.metrics.RecordHistogram("extract.duration_ms", float64(time.Since(start).Milliseconds()), nil)
	if err != nil {
		e.metrics.IncrementCounter("extract.errors", map[string]string{"kind": string(KindOf(err))})
		e.logger.Error("Archive extraction failed", "archive", archivePath, "error", err)
		return nil, err
	}

	e.logger.Info("Archive extracted", "archive", archivePath, "destination", destDir, "files", len(files))
	return files, nil
}

func (e *Extractor) extract(archivePath, destDir string) ([]string, error) {
	const op = "extract"

	if _, err := os.Stat(archivePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError(NotFound, op, archivePath, "archive does not exist", err)
		}
		return nil, newError(IOFailure, op, archivePath, "cannot stat archive", err)
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && r != nil) {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, newError(IOFailure, op, archivePath, "cannot read archive", err)
		}
		return nil, newError(InvalidFormat, op, archivePath, "not a valid zip archive", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, newError(IOFailure, op, destDir, "cannot create destination", err)
	}
	root, err := canonicalDir(destDir)
	if err != nil {
		return nil, newError(IOFailure, op, destDir, "cannot resolve destination", err)
	}

	files := make([]string, 0, len(r.File))
	seen := make(map[string]bool, len(r.File))
	for _, f := range r.File {
		name, reason := entryName(f)
		if reason == "" {
			reason = e.checkContainment(root, name)
		}
		if reason != "" {
			e.skip(f.Name, reason)
			continue
		}

		target := filepath.Join(destDir, name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				e.logger.Debug("Cannot create directory entry", "entry", f.Name, "error", err)
				e.skip(f.Name, "unwritable")
			}
			continue
		}

		out, err := createTarget(target)
		if err != nil {
			e.logger.Debug("Cannot create entry target", "entry", f.Name, "error", err)
			e.skip(f.Name, "unwritable")
			continue
		}

		if err := writeEntry(f, out, target); err != nil {
			if KindOf(err) == InvalidFormat {
				removeAll(files)
			}
			return nil, err
		}

		if seen[target] {
			continue
		}
		seen[target] = true
		files = append(files, target)
		e.metrics.IncrementCounter("extract.entries.accepted", nil)
		e.logger.Debug("Extracted archive entry", "entry", f.Name, "path", target)
	}

	return files, nil
}

// checkContainment resolves name against the canonical root, following any
// symlinks already on disk, and reports why it is unsafe ("" when it is safe).
func (e *Extractor) checkContainment(root, name string) string {
	resolved, err := resolvePath(filepath.Join(root, name))
	if err != nil {
		e.logger.Debug("Cannot canonicalize archive entry", "entry", name, "error", err)
		return "unresolvable"
	}
	if !within(root, resolved) {
		return "outside_destination"
	}
	return ""
}

func (e *Extractor) skip(entry, reason string) {
	e.metrics.IncrementCounter("extract.entries.skipped", map[string]string{"reason": reason})
	e.logger.Warn("Skipping unsafe archive entry", "entry", entry, "reason", reason)
}

// entryName converts a stored entry name to a native relative path, rejecting
// names that can never be safe regardless of the destination.
func entryName(f *zip.File) (string, string) {
	if f.Mode()&fs.ModeSymlink != 0 {
		return "", "symlink"
	}
	raw := strings.ReplaceAll(f.Name, `\`, "/")
	if strings.TrimSpace(raw) == "" {
		return "", "empty_name"
	}
	name := filepath.FromSlash(raw)
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" || strings.HasPrefix(raw, "/") {
		return "", "absolute_path"
	}
	// A file cannot replace the destination directory itself ("x/..", ".").
	if !f.FileInfo().IsDir() && filepath.Clean(name) == "." {
		return "", "is_destination"
	}
	return name, ""
}

// within reports whether path is root or a descendant of it. Both must be
// canonical. A prefix check would accept /dest-evil for /dest.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func canonicalDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// resolvePath canonicalizes a path that may not exist yet: symlinks are
// evaluated on its longest existing ancestor and the rest is appended.
func resolvePath(path string) (string, error) {
	path = filepath.Clean(path)
	existing := path
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{resolved}, rest...)...), nil
}

// createTarget creates target and its parents. Failures here are per entry.
func createTarget(target string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

// writeEntry streams f into out and closes it
func writeEntry(f *zip.File, out *os.File, target string) error {
	const op = "extract"

	rc, err := f.Open()
	if err != nil {
		out.Close()
		os.Remove(target)
		return newError(InvalidFormat, op, f.Name, "cannot open archive entry", err)
	}
	defer rc.Close()

	buf := make([]byte, chunkSize)
	for {
		n, rerr := rc.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return newError(IOFailure, op, target, "write failed", werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			os.Remove(target)
			return newError(classifyEntryRead(rerr), op, f.Name, "cannot read archive entry", rerr)
		}
	}

	if err := out.Close(); err != nil {
		return newError(IOFailure, op, target, "close failed", err)
	}
	return nil
}

func classifyEntryRead(err error) Kind {
	var corrupt flate.CorruptInputError
	switch {
	case errors.Is(err, zip.ErrChecksum), errors.Is(err, zip.ErrFormat),
		errors.Is(err, zip.ErrAlgorithm), errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &corrupt):
		return InvalidFormat
	default:
		return IOFailure
	}
}

func removeAll(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}
