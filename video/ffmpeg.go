package video

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/progress"
	"github.com/reframelabs/reframe-api/subprocess"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// RunConfig controls the supervision of one ffmpeg invocation.
type RunConfig struct {
	RequestID  string
	Stage      string
	OutputPath string
	// Timeout kills the subprocess when exceeded. Zero means no limit.
	Timeout time.Duration
	// SourceDuration enables percentage progress when known from a probe.
	// When zero the parser falls back to the duration ffmpeg prints, and
	// only output file size is reported.
	SourceDuration time.Duration
	// StartFraction and EndFraction scale this stage's progress into the
	// job-level range. Zero values mean the full [0, 1] range.
	StartFraction float64
	EndFraction   float64
}

// RunWithProgress executes a built ffmpeg graph, reporting progress from its
// stderr until the process exits. Success requires a zero exit code and a
// non-empty output file. Anything else returns a conversion or timeout error
// carrying the last lines ffmpeg printed.
func RunWithProgress(ctx context.Context, stream *ffmpeg.Stream, cfg RunConfig) error {
	parser := subprocess.NewProgressParser()
	if cfg.SourceDuration > 0 {
		parser.SetTotalDuration(cfg.SourceDuration)
	}
	endFraction := cfg.EndFraction
	if endFraction == 0 {
		endFraction = 1
	}

	stream = stream.OverWriteOutput().Silent(true).WithErrorOutput(parser)
	if cfg.Timeout > 0 {
		stream = stream.WithTimeout(cfg.Timeout)
	}
	log.Log(cfg.RequestID, "running ffmpeg", "stage", cfg.Stage, "args", strings.Join(stream.GetArgs(), " "))

	reportCtx, cancelReporters := context.WithCancel(ctx)
	defer cancelReporters()
	if total := parser.TotalMillis(); total > 0 {
		go progress.ReportProgress(reportCtx, cfg.RequestID, cfg.Stage, total, parser.ElapsedMillis, cfg.StartFraction, endFraction)
	}
	go progress.TrackOutputFileSize(reportCtx, cfg.RequestID, cfg.Stage, cfg.OutputPath)

	start := time.Now()
	err := stream.Run()
	if err != nil {
		if cfg.Timeout > 0 && time.Since(start) >= cfg.Timeout {
			return errors.NewTimeoutError(fmt.Sprintf("%s timed out after %s", cfg.Stage, cfg.Timeout), err)
		}
		return errors.NewConversionError(fmt.Sprintf("%s failed: %s", cfg.Stage, parser.Tail()), err)
	}

	return verifyOutput(cfg.Stage, cfg.OutputPath)
}

// verifyOutput enforces the shared success criterion: the target file exists
// and is non-empty. ffmpeg exits zero in some failure modes that leave an
// empty file behind.
func verifyOutput(stage, outputPath string) error {
	info, err := os.Stat(outputPath)
	if err != nil {
		return errors.NewConversionError(fmt.Sprintf("%s produced no output file", stage), err)
	}
	if info.Size() == 0 {
		return errors.NewConversionError(fmt.Sprintf("%s produced an empty output file %s", stage, outputPath), nil)
	}
	return nil
}
