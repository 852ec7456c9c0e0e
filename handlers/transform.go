package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/metrics"
	"github.com/reframelabs/reframe-api/pipeline"
	"github.com/reframelabs/reframe-api/video"
	"github.com/xeipuuv/gojsonschema"
)

type TransformVideoRequest struct {
	VideoURL         string  `json:"video_url"`
	Quality          string  `json:"quality"`
	Platform         string  `json:"platform"`
	Split            bool    `json:"split"`
	Denoise          bool    `json:"denoise"`
	Sharpen          bool    `json:"sharpen"`
	SharpenStrength  float64 `json:"sharpen_strength"`
	Brightness       float64 `json:"brightness"`
	Contrast         float64 `json:"contrast"`
	Saturation       float64 `json:"saturation"`
	Gamma            float64 `json:"gamma"`
	AddSubtitles     bool    `json:"add_subtitles"`
	SubtitleLanguage string  `json:"subtitle_language"`
	AudioEnhancement bool    `json:"audio_enhancement"`
	CustomBitrate    int64   `json:"custom_bitrate"`
	TargetFPS        int     `json:"target_fps"`
}

type TransformVideoResponse struct {
	Success       bool   `json:"success"`
	VideoID       string `json:"video_id"`
	State         string `json:"state"`
	DownloadURL   string `json:"download_url"`
	VideoURL      string `json:"video_url"`
	StatusURL     string `json:"status_url"`
	EstimatedTime string `json:"estimated_time"`
}

type VideoStatusResponse struct {
	VideoID        string    `json:"video_id"`
	State          string    `json:"state"`
	Quality        string    `json:"quality"`
	CreatedAt      time.Time `json:"created_at"`
	Ready          bool      `json:"ready"`
	Message        string    `json:"message,omitempty"`
	Error          string    `json:"error,omitempty"`
	FileSize       int64     `json:"file_size,omitempty"`
	ConversionTime float64   `json:"conversion_time,omitempty"`
}

// TransformVideo accepts a conversion request and returns immediately with
// the URLs to poll and fetch. The heavy work runs in a background worker;
// resubmitting the same source with the same options lands on the cached job.
func (d *ReframeAPIHandlersCollection) TransformVideo() httprouter.Handle {
	schema := inputSchemasCompiled["TransformVideo"]

	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		startTime := time.Now()
		statusCode := http.StatusOK
		defer func() {
			success := strconv.FormatBool(statusCode < 400)
			metrics.Metrics.TransformRequestDurationSec.
				WithLabelValues(success, strconv.Itoa(statusCode)).
				Observe(time.Since(startTime).Seconds())
		}()

		transformRequest := TransformVideoRequest{
			Quality:  d.Cli.DefaultQuality,
			Platform: d.Cli.DefaultPlatform,
		}
		applyOptionDefaults(&transformRequest, video.DefaultTransformOptions())

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
			statusCode = errors.WriteHTTPBadBodySchema("TransformVideo", w, result.Errors()).Status
			return
		}
		if err := json.Unmarshal(payload, &transformRequest); err != nil {
			statusCode = errors.WriteHTTPBadRequest(w, "Invalid request payload", err).Status
			return
		}

		job, cached, err := d.Engine.Submit(pipeline.TransformRequest{
			SourceURL: transformRequest.VideoURL,
			Quality:   transformRequest.Quality,
			Platform:  transformRequest.Platform,
			Options:   requestOptions(transformRequest),
		})
		if err != nil {
			statusCode = writeEngineError(w, err)
			return
		}

		estimate := pipeline.EstimateConversionTime(job.Quality)
		if cached && job.State == pipeline.StateCompleted {
			estimate = "ready now"
		}
		writeJSON(w, http.StatusOK, TransformVideoResponse{
			Success:       true,
			VideoID:       job.PublicID,
			State:         string(job.State),
			DownloadURL:   "/api/download/" + job.PublicID,
			VideoURL:      "/api/video/" + job.PublicID,
			StatusURL:     "/api/status/" + job.PublicID,
			EstimatedTime: estimate,
		})
	}
}

// VideoStatus reports where a job is in its lifecycle. Completed jobs carry
// the output size and how long the conversion took; errored jobs carry the
// short public error.
func (d *ReframeAPIHandlersCollection) VideoStatus() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		videoID := params.ByName("id")
		job, err := d.Engine.Resolve(videoID)
		if err != nil {
			errors.WriteHTTPNotFound(w, fmt.Sprintf("No conversion found for video id '%s'", videoID), nil)
			return
		}

		resp := VideoStatusResponse{
			VideoID:   job.PublicID,
			State:     string(job.State),
			Quality:   job.Quality,
			CreatedAt: job.CreatedAt,
			Ready:     job.State == pipeline.StateCompleted,
		}
		switch job.State {
		case pipeline.StateError:
			resp.Error = job.Error
		case pipeline.StateCompleted:
			resp.Message = job.StatusMessage()
			resp.FileSize = job.OutputBytes
			resp.ConversionTime = job.ConversionTime.Seconds()
		default:
			resp.Message = job.StatusMessage()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// applyOptionDefaults pre-fills the request with neutral option values so
// absent JSON fields keep them instead of zeroing them out.
func applyOptionDefaults(r *TransformVideoRequest, defaults video.TransformOptions) {
	r.SharpenStrength = defaults.SharpenStrength
	r.Brightness = defaults.Brightness
	r.Contrast = defaults.Contrast
	r.Saturation = defaults.Saturation
	r.Gamma = defaults.Gamma
	r.TargetFPS = defaults.TargetFPS
}

func requestOptions(r TransformVideoRequest) video.TransformOptions {
	return video.TransformOptions{
		Split:            r.Split,
		Denoise:          r.Denoise,
		Sharpen:          r.Sharpen,
		SharpenStrength:  r.SharpenStrength,
		Brightness:       r.Brightness,
		Contrast:         r.Contrast,
		Saturation:       r.Saturation,
		Gamma:            r.Gamma,
		AddSubtitles:     r.AddSubtitles,
		SubtitleLanguage: r.SubtitleLanguage,
		AudioEnhancement: r.AudioEnhancement,
		CustomBitrate:    r.CustomBitrate,
		TargetFPS:        r.TargetFPS,
	}
}
