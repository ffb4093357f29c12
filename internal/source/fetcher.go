package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"orangebook/internal/config"
	"orangebook/internal/observability"
)

// HTTPClient is the subset of *http.Client the fetcher needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads the archive with browser-like requests and classifies
// every failure. It makes exactly one attempt per call.
type Fetcher struct {
	client  HTTPClient
	cfg     config.SourceConfig
	logger  observability.Logger
	metrics observability.Metrics
}

// FetcherOption customizes a Fetcher
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the browser-fingerprinted client
func WithHTTPClient(client HTTPClient) FetcherOption {
	return func(f *Fetcher) { f.client = client }
}

// NewFetcher creates a Fetcher whose HTTPS handshakes mimic cfg.Browser
func NewFetcher(cfg config.SourceConfig, logger observability.Logger, metrics observability.Metrics, opts ...FetcherOption) (*Fetcher, error) {
	f := &Fetcher{
		cfg:     cfg,
		logger:  logger.WithFields(map[string]interface{}{"component": "fetcher"}),
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		transport, err := newBrowserTransport(cfg.Browser, nil)
		if err != nil {
			return nil, err
		}
		f.client = &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		}
	}
	return f, nil
}

// Download streams url into destPath. On failure a partial file may remain;
// removing it is the caller's job.
func (f *Fetcher) Download(ctx context.Context, url, destPath string) error {
	start := time.Now()
	f.metrics.IncrementCounter("fetch.attempts", nil)
	f.logger.Info("Downloading archive", "url", url, "destination", destPath)

	n, err := f.download(ctx, url, destPath)

	f.metrics.RecordHistogram("fetch.duration_ms", float64(time.Since(start).Milliseconds()), nil)
	if err != nil {
		f.metrics.IncrementCounter("fetch.errors", map[string]string{"kind": string(KindOf(err))})
		f.logger.Error("Archive download failed", "url", url, "error", err)
		return err
	}

	f.metrics.IncrementCounter("fetch.success", nil)
	f.metrics.RecordHistogram("fetch.bytes", float64(n), nil)
	f.logger.Info("Archive downloaded", "url", url, "bytes", n, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (f *Fetcher) download(ctx context.Context, url, destPath string) (int64, error) {
	const op = "fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, newError(ConnectionFailure, op, url, "invalid request", err)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, newError(ConnectionFailure, op, url, "request failed", err)
	}
	defer resp.Body.Close()

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	// Blocked clients are redirected to a landing page that still answers 200.
	if marker := f.blockMarker(finalURL.Path + "?" + finalURL.RawQuery); marker != "" {
		return 0, newError(ConnectionFailure, op, finalURL.String(),
			fmt.Sprintf("request blocked by remote firewall (%s page)", marker), nil)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, newError(SchemaError, op, url, "archive not found at configured URL, the download link may have changed", nil)
	case resp.StatusCode == http.StatusForbidden:
		return 0, newError(ConnectionFailure, op, url, "access forbidden", nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return 0, newError(ConnectionFailure, op, url, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, newError(IOFailure, op, destPath, "cannot create parent directory", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return 0, newError(IOFailure, op, destPath, "cannot create file", err)
	}

	n, err := copyChunks(out, resp.Body, url, destPath)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = newError(IOFailure, op, destPath, "close failed", cerr)
	}
	return n, err
}

func (f *Fetcher) setHeaders(req *http.Request) {
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	if f.cfg.Referer != "" {
		req.Header.Set("Referer", f.cfg.Referer)
	}
	if f.cfg.Accept != "" {
		req.Header.Set("Accept", f.cfg.Accept)
	}
	if f.cfg.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.cfg.AcceptLanguage)
	}
}

func (f *Fetcher) blockMarker(location string) string {
	location = strings.ToLower(location)
	for _, marker := range f.cfg.BlockMarkers {
		if marker != "" && strings.Contains(location, strings.ToLower(marker)) {
			return marker
		}
	}
	return ""
}

// copyChunks streams body to out; read errors are network failures, write
// errors are local disk failures.
func copyChunks(out io.Writer, body io.Reader, url, destPath string) (int64, error) {
	const op = "fetch"

	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return written, newError(IOFailure, op, destPath, "write failed", werr)
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, newError(ConnectionFailure, op, url, "response body read failed", rerr)
		}
	}
}
