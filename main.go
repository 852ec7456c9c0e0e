package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/peterbourgon/ff/v3"
	"github.com/reframelabs/reframe-api/analyzer"
	"github.com/reframelabs/reframe-api/api"
	"github.com/reframelabs/reframe-api/clients"
	"github.com/reframelabs/reframe-api/clips"
	"github.com/reframelabs/reframe-api/config"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/metrics"
	"github.com/reframelabs/reframe-api/pipeline"
	"github.com/reframelabs/reframe-api/pprof"
	"github.com/reframelabs/reframe-api/video"
	"golang.org/x/sync/errgroup"
)

func main() {
	err := flag.Set("logtostderr", "true")
	if err != nil {
		glog.Fatal(err)
	}
	vFlag := flag.Lookup("v")
	fs := flag.NewFlagSet("reframe-api", flag.ExitOnError)
	cli := config.Cli{}

	version := fs.Bool("version", false, "print application version")

	// listen addresses
	fs.IntVar(&cli.Port, "port", 8989, "Port to bind for the public Reframe API")
	fs.IntVar(&cli.MetricsPort, "metrics-port", 7979, "Port to bind for Prometheus metrics")
	fs.IntVar(&cli.PprofPort, "pprof-port", 6061, "Pprof listen port")

	// reframe-api parameters
	fs.StringVar(&cli.APIToken, "api-token", "", "Auth header value for the admin endpoints. Empty disables auth")
	fs.StringVar(&cli.TempDir, "temp-dir", os.TempDir(), "Base directory for per-job temp trees")
	fs.IntVar(&cli.CacheExpirySeconds, "cache-expiry-seconds", 3600, "Seconds a finished job and its output stay on disk")
	fs.IntVar(&cli.CleanupIntervalSeconds, "cleanup-interval-seconds", 300, "Seconds between TTL sweeps of the job cache")
	fs.StringVar(&cli.DefaultQuality, "default-quality", "medium", "Quality profile used when a request names none")
	fs.StringVar(&cli.DefaultPlatform, "default-platform", "general", "Platform used when a request names none")
	fs.IntVar(&cli.DefaultFPS, "default-fps", 30, "Output frame rate used when a request names none")
	fs.DurationVar(&cli.FFmpegTimeout, "ffmpeg-timeout", 15*time.Minute, "Wall-clock cap per ffmpeg subprocess")
	fs.DurationVar(&cli.DownloadTimeout, "download-timeout", 30*time.Second, "Cap on establishing a download connection. Body reads are unbounded")
	fs.Int64Var(&cli.ChunkSize, "chunk-size", 1<<20, "Bytes per download read/write")
	fs.Int64Var(&cli.MaxVideoSizeMB, "max-video-size-mb", 2048, "Refuse sources larger than this many MiB. Zero means unbounded")
	fs.Int64Var(&cli.TransformConcurrency, "transform-concurrency", 8, "Maximum number of concurrent transform submissions")
	fs.Int64Var(&cli.ClipConcurrency, "clip-concurrency", 4, "Maximum number of concurrent clip requests")

	// speech to text parameters
	fs.StringVar(&cli.WhisperModel, "whisper-model", "small", "Whisper model name for transcription")
	fs.DurationVar(&cli.WhisperTimeout, "whisper-timeout", 180*time.Second, "Wall-clock cap per transcribed segment")

	// reasoning service parameters
	config.URLVarFlag(fs, &cli.ReasoningEndpoint, "reasoning-endpoint", "", "Base URL of the chat-completions reasoning service. Empty disables AI highlight selection")
	fs.StringVar(&cli.ReasoningAPIKey, "reasoning-api-key", "", "Bearer token for the reasoning service")
	fs.StringVar(&cli.ReasoningModel, "reasoning-model", "gpt-4o-mini", "Model name sent to the reasoning service")

	// transform tuning
	fs.BoolVar(&cli.BurnSubtitles, "burn-subtitles", true, "Allow subtitle burn-in on requests that ask for it")

	// analyzer tuning
	fs.Float64Var(&cli.ViralScoreThreshold, "viral-score-threshold", 0.6, "Minimum highlight score to accept a clip window")
	fs.Float64Var(&cli.MinClipSeparation, "min-clip-separation-seconds", 10, "Minimum gap between accepted clip windows")
	fs.Float64Var(&cli.OptimalClipDurationMin, "optimal-viral-duration-min", 20, "Lower edge of the preferred clip duration band")
	fs.Float64Var(&cli.OptimalClipDurationMax, "optimal-viral-duration-max", 60, "Upper edge of the preferred clip duration band")
	fs.Float64Var(&cli.AbsoluteClipDurationMin, "absolute-min-clip-duration", 10, "Hard lower bound on clip duration")
	fs.Float64Var(&cli.AbsoluteClipDurationMax, "absolute-max-clip-duration", 120, "Hard upper bound on clip duration")
	fs.IntVar(&cli.MaxClipsPerVideo, "max-clips-per-video", 10, "Maximum clips returned per source video")
	fs.BoolVar(&cli.ForceFullCoverage, "force-full-coverage", false, "Transcribe the whole timeline instead of sampling segments")
	fs.Float64Var(&cli.AnalysisSegmentDuration, "analysis-segment-duration", 120, "Seconds of audio per analysis segment")
	fs.IntVar(&cli.MaxAnalysisSegments, "max-analysis-segments", 15, "Maximum audio segments transcribed per video")

	// special parameters
	verbosity := fs.String("v", "", "Log verbosity.  {4|5|6}")
	_ = fs.String("config", "", "config file (optional)")

	err = ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("REFRAME_API"),
	)
	if err != nil {
		glog.Fatalf("error parsing cli: %s", err)
	}
	if len(fs.Args()) > 0 {
		glog.Fatalf("unexpected extra arguments on command line: %v", fs.Args())
	}
	err = flag.CommandLine.Parse(nil)
	if err != nil {
		glog.Fatal(err)
	}

	if *version {
		fmt.Printf("reframe-api version: %s", config.Version)
		return
	}

	if *verbosity != "" {
		err = vFlag.Value.Set(*verbosity)
		if err != nil {
			glog.Fatal(err)
		}
	}

	caps := video.GetCapabilities()
	if !caps.FFmpegAvailable {
		glog.Warning("ffmpeg is not runnable on this host; transform submissions will be refused until it is installed")
	}
	if !caps.WhisperAvailable {
		glog.Info("whisper CLI not found; subtitles and transcript-driven highlight analysis are disabled")
	}

	prober := video.Probe{}
	downloader := clients.NewDownloader(cli.DownloadTimeout, cli.ChunkSize, cli.MaxVideoSizeMB)
	transcriber := clients.Transcriber{Model: cli.WhisperModel, Timeout: cli.WhisperTimeout}

	highlightAnalyzer := &analyzer.Analyzer{
		Tuning:       analyzer.TuningFromCli(cli),
		SpeechToText: transcriber,
	}
	if cli.HasReasoning() {
		highlightAnalyzer.Reasoner = clients.NewReasoningClient(cli.ReasoningEndpoint, cli.ReasoningAPIKey, cli.ReasoningModel)
	} else {
		glog.Info("no reasoning endpoint configured; highlight selection will use timeline distribution")
	}

	// The engine coordinates transforms; the clip pipeline registers its
	// outputs into the same job cache so one sweeper owns all disk artifacts.
	engine := pipeline.NewCoordinator(cli, prober, downloader, transcriber)
	clipPipeline := clips.NewPipeline(cli, prober, downloader, highlightAnalyzer, transcriber, engine)

	if err := engine.CleanOrphanedTempDirs(); err != nil {
		log.LogNoRequestID("failed to clean orphaned temp dirs", "error", err)
	}

	// Initialize root context; cancelling this prompts all components to shut down cleanly
	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		return handleSignals(ctx)
	})

	group.Go(func() error {
		return api.ListenAndServe(ctx, cli, engine, clipPipeline)
	})

	group.Go(func() error {
		return metrics.ListenAndServe(ctx, cli.MetricsPort)
	})

	group.Go(func() error {
		return pprof.ListenAndServe(ctx, cli.PprofPort)
	})

	group.Go(func() error {
		return engine.RunTTLSweeper(ctx)
	})

	err = group.Wait()
	glog.Infof("Shutdown complete. Reason for shutdown: %s", err)
}

func handleSignals(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for {
		select {
		case s := <-c:
			glog.Errorf("caught signal=%v, attempting clean shutdown", s)
			return fmt.Errorf("caught signal=%v", s)
		case <-ctx.Done():
			return nil
		}
	}
}
