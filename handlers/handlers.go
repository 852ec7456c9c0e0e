package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/reframelabs/reframe-api/clips"
	"github.com/reframelabs/reframe-api/config"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/pipeline"
)

// ReframeAPIHandlersCollection serves the public API. Every handler is a
// method returning an httprouter.Handle so the router can wrap them in
// middleware uniformly.
type ReframeAPIHandlersCollection struct {
	Cli          config.Cli
	Engine       *pipeline.Coordinator
	ClipPipeline *clips.Pipeline
}

func (d *ReframeAPIHandlersCollection) Ok() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		if _, err := io.WriteString(w, "OK"); err != nil {
			log.LogNoRequestID("Failed to write HTTP response for " + req.URL.RawPath)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.LogNoRequestID("error writing HTTP response body", "error", err)
	}
}

// writeEngineError maps an error from the job engine or clip pipeline onto
// the right HTTP status, returning the code it wrote. Internal detail stays
// out of the body for anything that isn't the caller's fault.
func writeEngineError(w http.ResponseWriter, err error) int {
	switch {
	case errors.IsInvalidInput(err):
		return errors.WriteHTTPBadRequest(w, err.Error(), nil).Status
	case errors.IsNotFound(err):
		return errors.WriteHTTPNotFound(w, err.Error(), nil).Status
	case errors.IsUnavailableDependency(err):
		return errors.WriteHTTPInternalServerError(w, err.Error(), nil).Status
	case errors.IsTimeout(err):
		return errors.WriteHTTPInternalServerError(w, "Processing timed out", err).Status
	default:
		return errors.WriteHTTPInternalServerError(w, "Processing failed", err).Status
	}
}

func HasContentType(r *http.Request, mimetype string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return mimetype == "application/octet-stream"
	}

	for _, v := range strings.Split(contentType, ",") {
		t, _, err := mime.ParseMediaType(v)
		if err != nil {
			break
		}
		if t == mimetype {
			return true
		}
	}
	return false
}
