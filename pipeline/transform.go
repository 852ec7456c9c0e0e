package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/metrics"
	"github.com/reframelabs/reframe-api/video"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// tempDirPatterns match the per-job trees this process creates under the
// configured temp dir.
var tempDirPatterns = []string{"transform-*", "clips-*"}

// runTransform is the worker body: download, probe, convert through the
// fallback ladder, probe the output, publish stats. Any returned error goes
// through finishError in the async wrapper.
func (c *Coordinator) runTransform(fingerprint string) error {
	job := c.Jobs.Get(fingerprint)
	if job == nil {
		return fmt.Errorf("job %s disappeared before work started", fingerprint)
	}
	requestID := job.PublicID
	ctx := context.Background()

	c.setState(fingerprint, StateDownloading)
	tempDir, err := os.MkdirTemp(c.cli.TempDir, "transform-"+job.PublicID+"-")
	if err != nil {
		return fmt.Errorf("cannot create temp dir: %w", err)
	}
	job = c.updateJob(fingerprint, func(j TransformJob) TransformJob {
		j.TempDir = tempDir
		return j
	})

	sourcePath := filepath.Join(tempDir, "input.mp4")
	sourceBytes, err := c.downloader.Download(ctx, requestID, job.SourceURL, sourcePath)
	if err != nil {
		return err
	}

	sourceInfo, err := c.prober.ProbeFile(requestID, sourcePath)
	if err != nil {
		return err
	}
	job = c.updateJob(fingerprint, func(j TransformJob) TransformJob {
		j.SourceBytes = sourceBytes
		j.SourceInfo = sourceInfo
		return j
	})
	c.setState(fingerprint, StateConverting)

	outputPath := filepath.Join(tempDir, job.PublicID+".mp4")
	if err := c.convert(ctx, job, sourcePath, outputPath, sourceInfo); err != nil {
		return err
	}

	outputInfo, err := c.prober.ProbeFile(requestID, outputPath)
	if err != nil {
		return errors.NewConversionError("cannot probe the converted output", err)
	}
	if outputInfo.Duration <= 0 {
		return errors.NewConversionError("converted output has no duration", nil)
	}
	stat, err := os.Stat(outputPath)
	if err != nil {
		return errors.NewNotFoundError("converted output went missing", err)
	}
	c.finishSuccess(fingerprint, outputPath, outputInfo, stat.Size())
	return nil
}

type rung struct {
	name   string
	stream *ffmpeg.Stream
}

// convert picks the pipeline and runs the fallback ladder: the advanced
// graph first, the same graph without subtitle burn-in when subtitles were
// on (the subtitles filter is the most fragile piece), then the plain
// letterbox pipeline. Every rung is bounded by the ffmpeg timeout.
func (c *Coordinator) convert(ctx context.Context, job *TransformJob, sourcePath, outputPath string, info video.InputVideo) error {
	profile, err := video.GetProfile(job.Quality)
	if err != nil {
		return errors.NewInvalidInputError("unknown quality profile", err)
	}
	profile = profile.WithCustomBitrate(job.Options.CustomBitrate)
	hasAudio := info.HasAudio()

	opts := job.Options
	if opts.AddSubtitles && !opts.Split {
		opts.SubtitlePath = c.prepareSubtitles(ctx, job, sourcePath)
	}
	if opts.SubtitlePath == "" {
		opts.AddSubtitles = false
	}

	// Pipeline selection follows what was requested; a dropped subtitle
	// branch only thins out the filter graph.
	if !job.Options.WantsAdvanced() {
		return c.runRung(ctx, job, "simple", video.SimpleVertical(sourcePath, outputPath, profile, hasAudio), outputPath, info)
	}

	rungs := buildLadder(sourcePath, outputPath, profile, opts, hasAudio)
	var lastErr error
	for i, r := range rungs {
		if i > 0 {
			metrics.Metrics.ConversionFallbackCount.WithLabelValues(r.name).Inc()
			log.LogError(job.PublicID, "pipeline rung failed, falling back", lastErr,
				"failed_rung", rungs[i-1].name, "next_rung", r.name)
		}
		if lastErr = c.runRung(ctx, job, r.name, r.stream, outputPath, info); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// buildLadder assembles the fallback rungs for the advanced pipeline.
func buildLadder(sourcePath, outputPath string, profile video.QualityProfile, opts video.TransformOptions, hasAudio bool) []rung {
	build := video.OptimizedVertical
	name := "optimized"
	if opts.Split {
		build = video.SplitVertical
		name = "split"
	}

	rungs := []rung{{name, build(sourcePath, outputPath, profile, opts, hasAudio)}}
	if opts.AddSubtitles {
		bare := opts
		bare.AddSubtitles = false
		bare.SubtitlePath = ""
		rungs = append(rungs, rung{name + "_nosubs", build(sourcePath, outputPath, profile, bare, hasAudio)})
	}
	rungs = append(rungs, rung{"simple", video.SimpleVertical(sourcePath, outputPath, profile, hasAudio)})
	return rungs
}

func (c *Coordinator) runRung(ctx context.Context, job *TransformJob, name string, stream *ffmpeg.Stream, outputPath string, info video.InputVideo) error {
	c.updateJob(job.Fingerprint, func(j TransformJob) TransformJob {
		j.Pipeline = name
		return j
	})
	return video.RunWithProgress(ctx, stream, video.RunConfig{
		RequestID:      job.PublicID,
		Stage:          name,
		OutputPath:     outputPath,
		Timeout:        c.cli.FFmpegTimeout,
		SourceDuration: time.Duration(info.Duration * float64(time.Second)),
	})
}

// prepareSubtitles produces an SRT next to the source and returns a path
// safe to embed in a filter graph. Any failure here drops the subtitle
// branch rather than the job.
func (c *Coordinator) prepareSubtitles(ctx context.Context, job *TransformJob, sourcePath string) string {
	requestID := job.PublicID
	if !c.cli.BurnSubtitles {
		log.Log(requestID, "subtitle burn-in disabled by config")
		return ""
	}
	if c.subtitles == nil || !c.subtitles.Available() {
		log.Log(requestID, "subtitles requested but no transcriber is available")
		return ""
	}

	srtPath, err := c.subtitles.GenerateSubtitles(ctx, requestID, sourcePath, job.TempDir, job.Options.SubtitleLanguage)
	if err != nil {
		log.LogError(requestID, "subtitle generation failed, continuing without burn-in", err)
		return ""
	}
	normalized, ok := video.NormalizeSubtitlePath(srtPath)
	if !ok {
		log.Log(requestID, "subtitle path cannot be embedded in a filter graph, continuing without burn-in", "path", srtPath)
		return ""
	}
	return normalized
}

// CleanOrphanedTempDirs removes per-job temp trees left behind by an earlier
// process. Job state does not survive a restart, so anything matching our
// naming that is older than the TTL is garbage.
func (c *Coordinator) CleanOrphanedTempDirs() error {
	entries, err := os.ReadDir(c.cli.TempDir)
	if err != nil {
		return fmt.Errorf("cannot read temp dir %s: %w", c.cli.TempDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || !matchesTempPattern(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || time.Since(info.ModTime()) <= c.cli.CacheExpiry() {
			continue
		}
		path := filepath.Join(c.cli.TempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("error removing orphaned dir %s: %w", path, err)
		}
		log.LogNoRequestID("cleaned up orphaned temp dir", "path", path, "modified", info.ModTime())
	}
	return nil
}

func matchesTempPattern(name string) bool {
	for _, pattern := range tempDirPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
