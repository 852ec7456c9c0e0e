package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/julienschmidt/httprouter"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/pipeline"
	"github.com/reframelabs/reframe-api/requests"
)

// DownloadVideo streams a completed output as a file attachment. In-flight
// jobs answer 202 so pollers can tell "not yet" from "never"; errored jobs
// answer 400 with the job's public error.
func (d *ReframeAPIHandlersCollection) DownloadVideo() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		requestID := requests.GetRequestID(req)
		videoID := params.ByName("id")

		job, err := d.Engine.Resolve(videoID)
		if err != nil {
			errors.WriteHTTPNotFound(w, fmt.Sprintf("No conversion found for video id '%s'", videoID), nil)
			return
		}

		switch job.State {
		case pipeline.StateError:
			errors.WriteHTTPBadRequest(w, job.Error, nil)
			return
		case pipeline.StateCompleted:
			// fall through to serving
		default:
			writeJSON(w, http.StatusAccepted, map[string]string{
				"state":   string(job.State),
				"message": job.StatusMessage(),
			})
			return
		}

		file, stat, ok := openOutput(w, job)
		if !ok {
			return
		}
		defer file.Close() //nolint:errcheck

		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", fmt.Sprintf("%d", stat.Size()))
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=vertical_video_%s.mp4`, job.PublicID))
		if _, err := io.Copy(w, file); err != nil {
			log.LogError(requestID, "failed to stream output file", err, "path", job.OutputPath)
		}
	}
}

// InlineVideo serves the same file for in-browser playback: range requests,
// cache headers, no attachment disposition. Anything that is not a completed
// job 404s, so probing ids leaks nothing about in-flight work.
func (d *ReframeAPIHandlersCollection) InlineVideo() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		videoID := params.ByName("id")

		job, err := d.Engine.Resolve(videoID)
		if err != nil || job.State != pipeline.StateCompleted {
			errors.WriteHTTPNotFound(w, fmt.Sprintf("No video found for id '%s'", videoID), nil)
			return
		}

		file, stat, ok := openOutput(w, job)
		if !ok {
			return
		}
		defer file.Close() //nolint:errcheck

		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		// ServeContent handles Range and conditional headers and sets
		// Accept-Ranges: bytes on its own.
		http.ServeContent(w, req, stat.Name(), job.CompletedAt, file)
	}
}

// openOutput opens the job's output file, writing the 404 itself when the
// artifact is gone (expired from disk but not yet from the cache).
func openOutput(w http.ResponseWriter, job *pipeline.TransformJob) (*os.File, os.FileInfo, bool) {
	file, err := os.Open(job.OutputPath)
	if err != nil {
		errors.WriteHTTPNotFound(w, "Output file no longer exists", nil)
		return nil, nil, false
	}
	stat, err := file.Stat()
	if err != nil || stat.Size() == 0 {
		file.Close() //nolint:errcheck
		errors.WriteHTTPNotFound(w, "Output file no longer exists", nil)
		return nil, nil, false
	}
	return file, stat, true
}
