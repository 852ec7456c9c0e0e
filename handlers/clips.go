package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/metrics"
	"github.com/reframelabs/reframe-api/requests"
	"github.com/xeipuuv/gojsonschema"
)

type InitialClipsRequest struct {
	VideoURL string `json:"video_url"`
}

type ViralSelectionRequest struct {
	Clips []struct {
		URL string `json:"url"`
	} `json:"clips"`
}

// InitialClips runs the full highlight pipeline synchronously: download,
// analyze, cut, poster. Unlike transforms there is no job to poll; callers
// hold the connection until the clips are ready.
func (d *ReframeAPIHandlersCollection) InitialClips() httprouter.Handle {
	schema := inputSchemasCompiled["InitialClips"]

	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		startTime := time.Now()
		statusCode := http.StatusOK
		defer func() {
			observeClipRequest("initial", statusCode, startTime)
		}()

		var clipsRequest InitialClipsRequest
		if !HasContentType(req, "application/json") {
			statusCode = errors.WriteHTTPUnsupportedMediaType(w, "Requires application/json content type", nil).Status
			return
		}
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			statusCode = errors.WriteHTTPInternalServerError(w, "Cannot read payload", err).Status
			return
		}
		result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
		if err != nil {
			statusCode = errors.WriteHTTPInternalServerError(w, "Cannot validate payload", err).Status
			return
		}
		if !result.Valid() {
			statusCode = errors.WriteHTTPBadBodySchema("InitialClips", w, result.Errors()).Status
			return
		}
		if err := json.Unmarshal(payload, &clipsRequest); err != nil {
			statusCode = errors.WriteHTTPBadRequest(w, "Invalid request payload", err).Status
			return
		}

		requestID := requests.GetRequestID(req)
		initialResult, err := d.ClipPipeline.InitialClips(req.Context(), requestID, clipsRequest.VideoURL)
		if err != nil {
			statusCode = writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, initialResult)
	}
}

// ViralSelection grades already-cut clips and returns them best-first.
func (d *ReframeAPIHandlersCollection) ViralSelection() httprouter.Handle {
	schema := inputSchemasCompiled["ViralSelection"]

	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		startTime := time.Now()
		statusCode := http.StatusOK
		defer func() {
			observeClipRequest("viral", statusCode, startTime)
		}()

		var viralRequest ViralSelectionRequest
		if !HasContentType(req, "application/json") {
			statusCode = errors.WriteHTTPUnsupportedMediaType(w, "Requires application/json content type", nil).Status
			return
		}
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			statusCode = errors.WriteHTTPInternalServerError(w, "Cannot read payload", err).Status
			return
		}
		result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
		if err != nil {
			statusCode = errors.WriteHTTPInternalServerError(w, "Cannot validate payload", err).Status
			return
		}
		if !result.Valid() {
			statusCode = errors.WriteHTTPBadBodySchema("ViralSelection", w, result.Errors()).Status
			return
		}
		if err := json.Unmarshal(payload, &viralRequest); err != nil {
			statusCode = errors.WriteHTTPBadRequest(w, "Invalid request payload", err).Status
			return
		}

		urls := make([]string, 0, len(viralRequest.Clips))
		for _, clip := range viralRequest.Clips {
			urls = append(urls, clip.URL)
		}

		requestID := requests.GetRequestID(req)
		viralResult, err := d.ClipPipeline.ViralSelection(req.Context(), requestID, urls)
		if err != nil {
			statusCode = writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viralResult)
	}
}

func observeClipRequest(endpoint string, statusCode int, startTime time.Time) {
	success := strconv.FormatBool(statusCode < 400)
	metrics.Metrics.ClipRequestDurationSec.
		WithLabelValues(endpoint, success).
		Observe(time.Since(startTime).Seconds())
}
