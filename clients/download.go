package clients

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/metrics"
	"github.com/reframelabs/reframe-api/progress"
	"golang.org/x/sys/unix"
)

const (
	// Refuse to start a download on a host with less free disk than this.
	minFreeDiskBytes = 1 << 30
	// Log download progress every this many bytes.
	downloadLogEvery    = 10 << 20
	defaultChunkSize    = 1 << 20
	preflightTimeout    = 15 * time.Second
	defaultDialTimeout  = 30 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
)

// Downloader streams a source video onto local disk in fixed-size chunks.
// There are no whole-download retries here: a failed fetch surfaces as a job
// error and the caller resubmits.
type Downloader struct {
	// ChunkSize is the read/write unit in bytes. Zero means 1 MiB.
	ChunkSize int64
	// MaxSizeBytes aborts downloads whose size exceeds it, before the first
	// byte where Content-Length is known. Zero means unbounded.
	MaxSizeBytes int64

	client          *http.Client
	preflightClient *http.Client
}

// NewDownloader builds a Downloader whose connectTimeout caps connection
// establishment only. Body reads are unbounded on purpose: sources can be
// many gigabytes on slow origins, and the worker's lifecycle is already
// bounded by process shutdown.
func NewDownloader(connectTimeout time.Duration, chunkSize, maxSizeMB int64) *Downloader {
	if connectTimeout <= 0 {
		connectTimeout = defaultDialTimeout
	}
	return &Downloader{
		ChunkSize:    chunkSize,
		MaxSizeBytes: maxSizeMB << 20,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
				TLSHandshakeTimeout: tlsHandshakeTimeout,
			},
		},
		preflightClient: newPreflightClient(),
	}
}

func newPreflightClient() *http.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 2                          // Retry a maximum of this+1 times
	client.RetryWaitMin = 200 * time.Millisecond // Wait at least this long between retries
	client.RetryWaitMax = 2 * time.Second        // Wait at most this long between retries (exponential backoff)
	client.HTTPClient = &http.Client{
		Timeout: preflightTimeout, // Give up on requests that take more than this long
	}
	client.Logger = log.NewRetryableHTTPLogger()
	return client.StandardClient()
}

// Download fetches sourceURL into destPath and returns the byte count. Any
// failure leaves no partial file behind.
func (d *Downloader) Download(ctx context.Context, requestID, sourceURL, destPath string) (int64, error) {
	free, err := checkFreeDisk(filepath.Dir(destPath))
	if err != nil {
		return 0, err
	}
	log.Log(requestID, "starting download", "url", log.RedactURL(sourceURL), "free_disk_bytes", free)

	if size, ok := d.preflightContentLength(ctx, sourceURL); ok && d.oversize(size) {
		return 0, errors.NewDownloadError(fmt.Sprintf("source is %d bytes, above the %d byte limit", size, d.MaxSizeBytes), nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return 0, errors.Unretriable(errors.NewDownloadError("error creating download request", err))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, errors.NewDownloadError(fmt.Sprintf("error fetching %s", log.RedactURL(sourceURL)), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		err := errors.NewDownloadError(fmt.Sprintf("bad status code fetching source: %d %s", resp.StatusCode, resp.Status), nil)
		if resp.StatusCode < 500 {
			err = errors.Unretriable(err)
		}
		return 0, err
	}
	// a Content-Length the preflight HEAD didn't see still aborts before the
	// first byte hits disk
	if d.oversize(resp.ContentLength) {
		return 0, errors.NewDownloadError(fmt.Sprintf("source is %d bytes, above the %d byte limit", resp.ContentLength, d.MaxSizeBytes), nil)
	}

	// Hash while copying so the source checksum costs no second pass.
	hasher := progress.NewReadHasher(resp.Body)
	written, err := d.writeChunks(requestID, hasher, resp.ContentLength, destPath)
	if err != nil {
		return 0, err
	}

	metrics.Metrics.DownloadedBytes.Add(float64(written))
	log.Log(requestID, "download complete", "url", log.RedactURL(sourceURL), "bytes", written, "source_md5", hasher.MD5())
	return written, nil
}

// writeChunks copies body to destPath chunk by chunk, flushing after each
// one. On any failure the partial file is unlinked and the error carries the
// byte offset where the copy stopped.
func (d *Downloader) writeChunks(requestID string, body io.Reader, contentLength int64, destPath string) (int64, error) {
	out, err := os.Create(destPath)
	if err != nil {
		return 0, errors.NewDownloadError("failed to create download target", err)
	}
	defer out.Close()

	chunkSize := d.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	writer := bufio.NewWriterSize(out, int(chunkSize))
	buf := make([]byte, chunkSize)

	var written, lastLogged int64
	abort := func(msg string, cause error) (int64, error) {
		out.Close()
		os.Remove(destPath) //nolint:errcheck
		return 0, errors.NewDownloadError(msg, cause)
	}

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			written += int64(n)
			if d.oversize(written) {
				return abort(fmt.Sprintf("source exceeded the %d byte limit after %d bytes", d.MaxSizeBytes, written), nil)
			}
			if _, err := writer.Write(buf[:n]); err != nil {
				return abort(fmt.Sprintf("write failed at byte %d", written), err)
			}
			if err := writer.Flush(); err != nil {
				return abort(fmt.Sprintf("flush failed at byte %d", written), err)
			}
			if written-lastLogged >= downloadLogEvery {
				lastLogged = written
				if contentLength > 0 {
					log.Log(requestID, "download progress", "bytes", written, "total", contentLength)
				} else {
					log.Log(requestID, "download progress", "bytes", written)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return abort(fmt.Sprintf("download interrupted at byte %d", written), readErr)
		}
	}

	if written == 0 {
		return abort("source was empty", nil)
	}
	return written, nil
}

// preflightContentLength asks the origin for the payload size before the
// real GET. Origins that refuse HEAD just skip the early size check.
func (d *Downloader) preflightContentLength(ctx context.Context, sourceURL string) (int64, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, sourceURL, nil)
	if err != nil {
		return 0, false
	}
	resp, err := d.preflightClient.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 || resp.ContentLength <= 0 {
		return 0, false
	}
	return resp.ContentLength, true
}

func (d *Downloader) oversize(size int64) bool {
	return d.MaxSizeBytes > 0 && size > d.MaxSizeBytes
}

// checkFreeDisk refuses hosts without headroom for a source plus its
// derivatives.
func checkFreeDisk(dir string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, errors.NewDownloadError(fmt.Sprintf("failed to stat filesystem at %s", dir), err)
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeDiskBytes {
		return free, errors.NewDownloadError(fmt.Sprintf("insufficient disk space: %d bytes free, need at least %d", free, uint64(minFreeDiskBytes)), nil)
	}
	return free, nil
}
