package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ClientMetrics struct {
	RequestCount    *prometheus.CounterVec
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type ReframeAPIMetrics struct {
	TransformRequestCount       prometheus.Counter
	TransformRequestDurationSec *prometheus.SummaryVec
	JobsInState                 *prometheus.GaugeVec
	ConversionDurationSec       *prometheus.HistogramVec
	ConversionFallbackCount     *prometheus.CounterVec
	DownloadedBytes             prometheus.Counter
	AnalyzerPhaseDurationSec    *prometheus.HistogramVec
	TranscribedSegmentCount     *prometheus.CounterVec
	CacheSweepPurgedCount       prometheus.Counter
	InFlightRequests            *prometheus.GaugeVec
	ClipRequestDurationSec      *prometheus.SummaryVec

	ReasoningClient ClientMetrics
}

func NewMetrics() *ReframeAPIMetrics {
	m := &ReframeAPIMetrics{
		// /api/vertical request metrics
		TransformRequestCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transform_request_count",
			Help: "The total number of requests to /api/vertical",
		}),
		TransformRequestDurationSec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name: "transform_request_duration_seconds",
			Help: "The latency of the requests made to /api/vertical in seconds broken up by success and status code",
		}, []string{"success", "status_code"}),

		// Job manager metrics
		JobsInState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jobs_in_state",
			Help: "The number of cached jobs currently sitting in each state",
		}, []string{"state"}),
		ConversionDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conversion_duration_seconds",
			Help:    "Time taken by a full conversion pipeline run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}, []string{"pipeline", "quality", "success"}),
		ConversionFallbackCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conversion_fallback_count",
			Help: "The number of conversions that fell through to a simpler pipeline rung",
		}, []string{"rung"}),
		DownloadedBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "downloaded_bytes_total",
			Help: "The total number of source bytes fetched by the download manager",
		}),
		CacheSweepPurgedCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cache_sweep_purged_count",
			Help: "The total number of expired jobs removed by the TTL sweeper",
		}),

		// Analyzer metrics
		AnalyzerPhaseDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analyzer_phase_duration_seconds",
			Help:    "Time taken by each phase of the highlight analyzer",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"phase"}),
		TranscribedSegmentCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "transcribed_segment_count",
			Help: "The number of audio segments submitted for transcription, by outcome",
		}, []string{"success"}),

		// HTTP boundary metrics
		InFlightRequests: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "in_flight_requests",
			Help: "The number of expensive requests currently being served, by route class",
		}, []string{"class"}),
		ClipRequestDurationSec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name: "clip_request_duration_seconds",
			Help: "The latency of the clip endpoints in seconds broken up by endpoint and success",
		}, []string{"endpoint", "success"}),

		// Clients metrics
		ReasoningClient: ClientMetrics{
			RequestCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "reasoning_client_request_count",
				Help: "The total number of requests sent to the reasoning service",
			}, []string{"host"}),
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "reasoning_client_retry_count",
				Help: "The number of retries of a successful request to the reasoning service",
			}, []string{"host"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "reasoning_client_failure_count",
				Help: "The total number of failed reasoning service calls",
			}, []string{"host", "status_code"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "reasoning_client_request_duration",
				Help:    "Time taken by reasoning service calls",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			}, []string{"host"}),
		},
	}

	return m
}

var Metrics = NewMetrics()
