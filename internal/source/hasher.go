package source

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
)

// HashFile returns the lowercase hex MD5 digest of the file at path, read in
// fixed-size chunks. The digest is a dedup/provenance fingerprint, not a
// security control.
func HashFile(path string) (string, error) {
	const op = "hash"

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", newError(NotFound, op, path, "file does not exist", err)
		}
		return "", newError(IOFailure, op, path, "cannot stat file", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", newError(NotFound, op, path, "file does not exist", err)
		}
		return "", newError(IOFailure, op, path, "cannot open file", err)
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", newError(IOFailure, op, path, "read failed", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
