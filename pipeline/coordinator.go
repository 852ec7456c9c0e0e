package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/reframelabs/reframe-api/cache"
	"github.com/reframelabs/reframe-api/clients"
	"github.com/reframelabs/reframe-api/config"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/metrics"
	"github.com/reframelabs/reframe-api/video"
)

// JobState is the lifecycle phase of one transform job.
type JobState string

const (
	StateQueued      JobState = "queued"
	StateDownloading JobState = "downloading"
	StateConverting  JobState = "converting"
	StateCompleted   JobState = "completed"
	StateError       JobState = "error"
)

// stateRank orders the lifecycle. Transitions only move forward; an update
// that would run backwards is dropped, so observers never see a regression.
var stateRank = map[JobState]int{
	StateQueued:      0,
	StateDownloading: 1,
	StateConverting:  2,
	StateCompleted:   3,
	StateError:       3,
}

var jobStates = []JobState{StateQueued, StateDownloading, StateConverting, StateCompleted, StateError}

func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// TransformRequest is a validated submission. Options are clamped on entry
// to the coordinator, never inside workers.
type TransformRequest struct {
	SourceURL string
	Quality   string
	Platform  string
	Options   video.TransformOptions
}

// TransformJob is one cached unit of work. Stored entries are immutable:
// every update goes through the coordinator, which replaces the whole entry
// under the cache lock.
type TransformJob struct {
	Fingerprint string
	PublicID    string
	SourceURL   string
	// Quality is already platform-adjusted.
	Quality  string
	Platform string
	Options  video.TransformOptions

	State JobState
	// Error is the short client-facing message; ErrorDetail carries the full
	// chain for the logs and stays out of API responses.
	Error       string
	ErrorDetail string

	CreatedAt      time.Time
	CompletedAt    time.Time
	ConversionTime time.Duration

	TempDir     string
	OutputPath  string
	SourceBytes int64
	OutputBytes int64
	SourceInfo  video.InputVideo
	OutputInfo  video.InputVideo
	// Pipeline names the rung that produced (or last attempted) the output.
	Pipeline string

	teardown *sync.Once
}

// StatusMessage is the human-readable phase line for the status endpoint.
func (j *TransformJob) StatusMessage() string {
	switch j.State {
	case StateQueued:
		return "waiting for a worker"
	case StateDownloading:
		return "downloading the source video"
	case StateConverting:
		return "converting to vertical format"
	case StateCompleted:
		return "ready for download"
	default:
		return j.Error
	}
}

// Teardown removes the job's temp tree. The latch is shared by every stored
// copy of the job, so the sweeper and the error path cannot both remove it.
func (j *TransformJob) Teardown() {
	if j.teardown == nil || j.TempDir == "" {
		return
	}
	dir, publicID := j.TempDir, j.PublicID
	j.teardown.Do(func() {
		if err := os.RemoveAll(dir); err != nil {
			log.LogError(publicID, "failed to remove job temp dir", err, "dir", dir)
		}
	})
}

// SubtitleSource turns a downloaded video into an SRT for burn-in.
// clients.Transcriber implements it; nil disables subtitles.
type SubtitleSource interface {
	Available() bool
	GenerateSubtitles(ctx context.Context, requestID, videoPath, outDir, language string) (string, error)
}

// Coordinator accepts transform requests, deduplicates them against a TTL
// cache, dispatches background workers and serves their results. It never
// blocks on execution: handlers call Submit and return immediately.
type Coordinator struct {
	Jobs *cache.Cache[*TransformJob]

	cli        config.Cli
	prober     video.Prober
	downloader *clients.Downloader
	subtitles  SubtitleSource
}

func NewCoordinator(cli config.Cli, prober video.Prober, downloader *clients.Downloader, subtitles SubtitleSource) *Coordinator {
	return &Coordinator{
		Jobs:       cache.New[*TransformJob](),
		cli:        cli,
		prober:     prober,
		downloader: downloader,
		subtitles:  subtitles,
	}
}

// Submit validates and enqueues one transform. A request whose fingerprint
// is already cached reuses that job instead of spawning a second worker; the
// second return reports the reuse.
func (c *Coordinator) Submit(req TransformRequest) (*TransformJob, bool, error) {
	if err := video.EnsureFFmpeg(); err != nil {
		return nil, false, err
	}
	if !video.ValidQuality(req.Quality) {
		return nil, false, errors.NewInvalidInputError(
			fmt.Sprintf("invalid quality '%s', must be one of %s", req.Quality, strings.Join(video.Qualities(), ", ")), nil)
	}
	if !video.ValidPlatform(req.Platform) {
		return nil, false, errors.NewInvalidInputError(
			fmt.Sprintf("invalid platform '%s', must be one of %s", req.Platform, strings.Join(video.Platforms(), ", ")), nil)
	}
	publicID, err := PublicID(req.SourceURL)
	if err != nil {
		return nil, false, err
	}

	quality := video.AdjustQualityForPlatform(req.Quality, req.Platform)
	opts := req.Options.Clamped()
	fingerprint := Fingerprint(publicID, quality, opts)

	job := &TransformJob{
		Fingerprint: fingerprint,
		PublicID:    publicID,
		SourceURL:   req.SourceURL,
		Quality:     quality,
		Platform:    req.Platform,
		Options:     opts,
		State:       StateQueued,
		CreatedAt:   time.Now(),
		teardown:    &sync.Once{},
	}
	if existing, found := c.Jobs.GetOrStore(fingerprint, job); found {
		log.Log(publicID, "reusing cached transform job", "fingerprint", fingerprint, "state", existing.State)
		return existing, true, nil
	}

	log.AddContext(publicID, "source", log.RedactURL(req.SourceURL), "quality", quality, "platform", req.Platform)
	log.Log(publicID, "transform job accepted", "fingerprint", fingerprint)
	metrics.Metrics.TransformRequestCount.Inc()
	c.refreshStateGauge()
	c.runWorkerAsync(job.Fingerprint)
	return job, false, nil
}

// runWorkerAsync funnels worker errors and panics through finishError so the
// error transition happens exactly once per job.
func (c *Coordinator) runWorkerAsync(fingerprint string) {
	go func() {
		if err := recovered(func() error { return c.runTransform(fingerprint) }); err != nil {
			c.finishError(fingerprint, err)
		}
	}()
}

func recovered(f func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in transform worker: %v", rec)
		}
	}()
	return f()
}

// Resolve finds a job by public id. Fingerprints resolve directly; bare
// public ids fall back to a scan preferring the most advanced state, so a
// completed variant wins over an in-flight or failed one.
func (c *Coordinator) Resolve(id string) (*TransformJob, error) {
	if job := c.Jobs.Get(id); job != nil {
		return job, nil
	}
	var best *TransformJob
	for _, job := range c.Jobs.Values() {
		if job.PublicID != id {
			continue
		}
		if best == nil || resolveRank(job) > resolveRank(best) {
			best = job
		}
	}
	if best == nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no job found for video id '%s'", id), nil)
	}
	return best, nil
}

func resolveRank(j *TransformJob) int {
	switch j.State {
	case StateCompleted:
		return 3
	case StateError:
		return 1
	default:
		return 2
	}
}

// RegisterCompleted inserts an already-produced artifact as a completed job
// so it is served and expired exactly like transform output. The clip
// pipeline registers generated clips and posters this way.
func (c *Coordinator) RegisterCompleted(publicID, tempDir, outputPath string, info video.InputVideo, sizeBytes int64) *TransformJob {
	now := time.Now()
	job := &TransformJob{
		Fingerprint: publicID,
		PublicID:    publicID,
		State:       StateCompleted,
		CreatedAt:   now,
		CompletedAt: now,
		TempDir:     tempDir,
		OutputPath:  outputPath,
		OutputInfo:  info,
		OutputBytes: sizeBytes,
		teardown:    &sync.Once{},
	}
	c.Jobs.Store(publicID, job)
	c.refreshStateGauge()
	return job
}

// RunTTLSweeper expires cached jobs on a fixed interval until ctx is
// cancelled, then sweeps once more so expired temp trees don't outlive the
// process.
func (c *Coordinator) RunTTLSweeper(ctx context.Context) error {
	ticker := time.NewTicker(c.cli.CleanupInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Purge()
			return nil
		case <-ticker.C:
			if purged := c.Purge(); purged > 0 {
				log.LogNoRequestID("ttl sweep removed expired jobs", "purged", purged, "remaining", c.Jobs.Len())
			}
		}
	}
}

// Purge removes every entry older than the cache TTL and releases its disk.
// The admin endpoint calls this directly.
func (c *Coordinator) Purge() int {
	expired := c.Jobs.ExpireBefore(time.Now().Add(-c.cli.CacheExpiry()))
	for _, job := range expired {
		job.Teardown()
	}
	if len(expired) > 0 {
		metrics.Metrics.CacheSweepPurgedCount.Add(float64(len(expired)))
		c.refreshStateGauge()
	}
	return len(expired)
}

// updateJob replaces the stored entry with a modified copy. Each job has a
// single writer (its worker), so read-copy-replace is race-free; readers
// only ever see whole entries.
func (c *Coordinator) updateJob(fingerprint string, mutate func(TransformJob) TransformJob) *TransformJob {
	current := c.Jobs.Get(fingerprint)
	if current == nil {
		return nil
	}
	updated := mutate(*current)
	c.Jobs.Store(fingerprint, &updated)
	return &updated
}

func (c *Coordinator) setState(fingerprint string, state JobState) *TransformJob {
	job := c.updateJob(fingerprint, func(j TransformJob) TransformJob {
		if stateRank[state] < stateRank[j.State] {
			return j
		}
		j.State = state
		return j
	})
	c.refreshStateGauge()
	return job
}

// finishError is the single choke point for the error transition: it records
// the public and detailed messages, tears down the temp dir and emits the
// metrics and log line.
func (c *Coordinator) finishError(fingerprint string, cause error) {
	job := c.updateJob(fingerprint, func(j TransformJob) TransformJob {
		j.State = StateError
		j.Error = publicError(cause)
		j.ErrorDetail = cause.Error()
		j.CompletedAt = time.Now()
		return j
	})
	if job == nil {
		return
	}
	job.Teardown()
	c.refreshStateGauge()
	metrics.Metrics.ConversionDurationSec.
		WithLabelValues(pipelineLabel(job.Pipeline), job.Quality, "false").
		Observe(time.Since(job.CreatedAt).Seconds())
	log.LogError(job.PublicID, "transform job failed", cause, "fingerprint", fingerprint, "error_kind", errors.ErrorKind(cause))
}

// finishSuccess records the output artifact and its stats. The temp dir
// stays on disk until the TTL sweeper reclaims it; it holds the output.
func (c *Coordinator) finishSuccess(fingerprint, outputPath string, outputInfo video.InputVideo, outputBytes int64) {
	job := c.updateJob(fingerprint, func(j TransformJob) TransformJob {
		j.State = StateCompleted
		j.CompletedAt = time.Now()
		j.ConversionTime = time.Since(j.CreatedAt)
		j.OutputPath = outputPath
		j.OutputInfo = outputInfo
		j.OutputBytes = outputBytes
		return j
	})
	if job == nil {
		return
	}
	c.refreshStateGauge()
	metrics.Metrics.ConversionDurationSec.
		WithLabelValues(pipelineLabel(job.Pipeline), job.Quality, "true").
		Observe(job.ConversionTime.Seconds())
	log.Log(job.PublicID, "transform job completed",
		"fingerprint", fingerprint,
		"pipeline", job.Pipeline,
		"output_bytes", outputBytes,
		"conversion_time", job.ConversionTime,
	)
}

func (c *Coordinator) refreshStateGauge() {
	counts := make(map[JobState]int, len(jobStates))
	for _, job := range c.Jobs.Values() {
		counts[job.State]++
	}
	for _, state := range jobStates {
		metrics.Metrics.JobsInState.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}

// publicError maps an internal failure onto the short message stored on the
// job; the full chain only reaches ErrorDetail and the logs.
func publicError(err error) string {
	switch errors.ErrorKind(err) {
	case errors.KindDownload:
		return "failed to download the source video"
	case errors.KindTimeout:
		return "conversion timed out"
	case errors.KindConversion:
		return "video conversion failed"
	case errors.KindUnavailableDependency:
		return "a required tool is unavailable on this node"
	case errors.KindInvalidInput:
		return "the source video cannot be processed"
	case errors.KindNotFound:
		return "the output file went missing"
	default:
		return "internal processing error"
	}
}

func pipelineLabel(pipeline string) string {
	if pipeline == "" {
		return "none"
	}
	return pipeline
}

// EstimateConversionTime is the rough wall-clock hint returned on submit.
// Preset speed and bitrate dominate encode time at short-form lengths.
func EstimateConversionTime(quality string) string {
	switch quality {
	case "low":
		return "1-2 minutes"
	case "high", "youtube":
		return "3-6 minutes"
	case "ultra":
		return "5-10 minutes"
	default:
		return "2-4 minutes"
	}
}
