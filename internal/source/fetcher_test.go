package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orangebook/internal/config"
	"orangebook/internal/observability/mocks"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	cfg := config.DefaultSourceConfig()
	cfg.Timeout = 5 * time.Second

	f, err := NewFetcher(cfg, mocks.NewQuietLogger(), mocks.NewQuietMetrics())
	require.NoError(t, err)
	return f
}

func newOrangeBookServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/media/76860/download", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != config.DefaultReferer ||
			r.Header.Get("Accept") != config.DefaultAccept ||
			r.Header.Get("Accept-Language") != config.DefaultAcceptLanguage {
			http.Redirect(w, r, "/abuse/detection", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte(payload))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/unavailable", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/blocked", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/abuse/detection?ref=orangebook", http.StatusFound)
	})
	mux.HandleFunc("/abuse/detection", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>Request blocked</html>"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/apology/not-found", http.StatusFound)
	})
	mux.HandleFunc("/apology/not-found", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/reset", func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		if conn, _, err := hj.Hijack(); err == nil {
			conn.Close()
		}
	})
	mux.HandleFunc("/truncated", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		w.Write([]byte("PK partial"))
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload_Success(t *testing.T) {
	payload := strings.Repeat("PK\x03\x04orange-book", 2000)
	srv := newOrangeBookServer(t, payload)
	dest := filepath.Join(t.TempDir(), "nested", "dir", "orange_book.zip")

	err := newTestFetcher(t).Download(context.Background(), srv.URL+"/media/76860/download?attachment", dest)

	require.NoError(t, err)
	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, string(content))
}

func TestDownload_Classification(t *testing.T) {
	srv := newOrangeBookServer(t, "")

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "404 means the link moved", path: "/missing", want: ErrSchema},
		{name: "403 is access denied", path: "/forbidden", want: ErrConnection},
		{name: "other non-2xx", path: "/unavailable", want: ErrConnection},
		{name: "200 on abuse page", path: "/blocked", want: ErrConnection},
		{name: "404 on apology page is a block", path: "/gone", want: ErrConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "orange_book.zip")

			err := newTestFetcher(t).Download(context.Background(), srv.URL+tt.path, dest)

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.NoFileExists(t, dest)
		})
	}
}

func TestDownload_MissingBrowserHeadersGetBlocked(t *testing.T) {
	srv := newOrangeBookServer(t, "zip")
	cfg := config.DefaultSourceConfig()
	cfg.Referer = ""

	f, err := NewFetcher(cfg, mocks.NewQuietLogger(), mocks.NewQuietMetrics())
	require.NoError(t, err)

	err = f.Download(context.Background(), srv.URL+"/media/76860/download", filepath.Join(t.TempDir(), "a.zip"))
	assert.Equal(t, ConnectionFailure, KindOf(err))
	assert.Contains(t, err.Error(), "abuse")
}

func TestDownload_ConnectionReset(t *testing.T) {
	srv := newOrangeBookServer(t, "")

	err := newTestFetcher(t).Download(context.Background(), srv.URL+"/reset", filepath.Join(t.TempDir(), "a.zip"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnection))
	assert.NotNil(t, errors.Unwrap(err), "transport cause must be preserved")
}

func TestDownload_TruncatedBody(t *testing.T) {
	srv := newOrangeBookServer(t, "")

	err := newTestFetcher(t).Download(context.Background(), srv.URL+"/truncated", filepath.Join(t.TempDir(), "a.zip"))

	assert.Equal(t, ConnectionFailure, KindOf(err))
}

func TestDownload_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newTestFetcher(t).Download(context.Background(), url+"/x", filepath.Join(t.TempDir(), "a.zip"))
	assert.Equal(t, ConnectionFailure, KindOf(err))
}

func TestDownload_CancelledContext(t *testing.T) {
	srv := newOrangeBookServer(t, "zip")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestFetcher(t).Download(ctx, srv.URL+"/media/76860/download", filepath.Join(t.TempDir(), "a.zip"))
	assert.Equal(t, ConnectionFailure, KindOf(err))
}

func TestDownload_DestinationNotWritable(t *testing.T) {
	srv := newOrangeBookServer(t, "zip")
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "file")
	writeFile(t, blocker, "x")

	err := newTestFetcher(t).Download(context.Background(), srv.URL+"/media/76860/download", filepath.Join(blocker, "sub", "a.zip"))
	assert.Equal(t, IOFailure, KindOf(err))
}

func TestNewFetcher_UnknownBrowser(t *testing.T) {
	cfg := config.DefaultSourceConfig()
	cfg.Browser = "netscape"

	_, err := NewFetcher(cfg, mocks.NewQuietLogger(), mocks.NewQuietMetrics())
	assert.Error(t, err)
}

type recordingClient struct {
	req  *http.Request
	resp *http.Response
}

func (c *recordingClient) Do(req *http.Request) (*http.Response, error) {
	c.req = req
	return c.resp, nil
}

func TestDownload_UsesInjectedClient(t *testing.T) {
	client := &recordingClient{resp: &http.Response{
		StatusCode: http.StatusOK,
		Body:       http.NoBody,
	}}
	cfg := config.DefaultSourceConfig()
	f, err := NewFetcher(cfg, mocks.NewQuietLogger(), mocks.NewQuietMetrics(), WithHTTPClient(client))
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, f.Download(context.Background(), "https://www.fda.gov/media/76860/download?attachment", dest))

	assert.Equal(t, cfg.UserAgent, client.req.Header.Get("User-Agent"))
	assert.Equal(t, config.DefaultReferer, client.req.Header.Get("Referer"))
	assert.FileExists(t, dest)
}
