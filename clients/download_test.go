package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testDownloader(chunkSize, maxSizeMB int64) *Downloader {
	return NewDownloader(5*time.Second, chunkSize, maxSizeMB)
}

func TestDownloadWritesWholeFile(t *testing.T) {
	payload := strings.Repeat("0123456789abcdef", 4096) // 64 KiB
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte(payload))
		require.NoError(t, err)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "input.mp4")
	written, err := testDownloader(1024, 0).Download(context.Background(), "req-1", server.URL+"/video.mp4", dest)
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), written)

	onDisk, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, payload, string(onDisk))
}

func TestDownloadAbortsOnContentLengthOversize(t *testing.T) {
	var bytesServed bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(10<<20))
		if r.Method == http.MethodGet {
			bytesServed = true
			_, _ = w.Write(make([]byte, 10<<20))
		}
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "input.mp4")
	_, err := testDownloader(1024, 1).Download(context.Background(), "req-1", server.URL+"/video.mp4", dest)
	require.ErrorContains(t, err, "above the 1048576 byte limit")

	// the preflight HEAD stops the transfer before any GET happens
	require.False(t, bytesServed)
	require.NoFileExists(t, dest)
}

func TestDownloadAbortsOnMidStreamOversize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			// hide the size so only the streaming check can catch it
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		flusher := w.(http.Flusher)
		chunk := make([]byte, 256<<10)
		for i := 0; i < 8; i++ {
			_, err := w.Write(chunk)
			require.NoError(t, err)
			flusher.Flush()
		}
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "input.mp4")
	_, err := testDownloader(64<<10, 1).Download(context.Background(), "req-1", server.URL+"/video.mp4", dest)
	require.ErrorContains(t, err, "exceeded the 1048576 byte limit")
	require.NoFileExists(t, dest)
}

func TestDownloadUnlinksPartialOnMidStreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		// promise more bytes than we deliver, then kill the connection
		w.Header().Set("Content-Length", fmt.Sprint(1<<20))
		_, err := w.Write(make([]byte, 100<<10))
		require.NoError(t, err)
		w.(http.Flusher).Flush()
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "input.mp4")
	_, err := testDownloader(16<<10, 0).Download(context.Background(), "req-1", server.URL+"/video.mp4", dest)
	require.ErrorContains(t, err, "interrupted at byte")
	require.NoFileExists(t, dest)
}

func TestDownloadRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "input.mp4")
	_, err := testDownloader(1024, 0).Download(context.Background(), "req-1", server.URL+"/video.mp4", dest)
	require.ErrorContains(t, err, "bad status code")
	require.NoFileExists(t, dest)
}

func TestDownloadRejectsEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "input.mp4")
	_, err := testDownloader(1024, 0).Download(context.Background(), "req-1", server.URL+"/video.mp4", dest)
	require.ErrorContains(t, err, "empty")
	require.NoFileExists(t, dest)
}

func TestCheckFreeDisk(t *testing.T) {
	free, err := checkFreeDisk(t.TempDir())
	// CI hosts always have a gigabyte spare; what matters is a sane reading
	require.NoError(t, err)
	require.Greater(t, free, uint64(minFreeDiskBytes))

	_, err = checkFreeDisk("/does/not/exist")
	require.ErrorContains(t, err, "failed to stat filesystem")
}
