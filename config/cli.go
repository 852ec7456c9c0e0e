package config

import (
	"flag"
	"net/url"
	"time"
)

type Cli struct {
	Port        int
	MetricsPort int
	PprofPort   int
	APIToken    string

	TempDir                string
	CacheExpirySeconds     int
	CleanupIntervalSeconds int
	DefaultQuality         string
	DefaultPlatform        string
	DefaultFPS             int
	FFmpegTimeout          time.Duration
	DownloadTimeout        time.Duration
	ChunkSize              int64
	MaxVideoSizeMB         int64
	TransformConcurrency   int64
	ClipConcurrency        int64

	WhisperModel   string
	WhisperTimeout time.Duration

	ReasoningEndpoint *url.URL
	ReasoningAPIKey   string
	ReasoningModel    string

	BurnSubtitles bool

	ViralScoreThreshold     float64
	MinClipSeparation       float64
	OptimalClipDurationMin  float64
	OptimalClipDurationMax  float64
	AbsoluteClipDurationMin float64
	AbsoluteClipDurationMax float64
	MaxClipsPerVideo        int
	ForceFullCoverage       bool
	AnalysisSegmentDuration float64
	MaxAnalysisSegments     int
}

func (cli Cli) CacheExpiry() time.Duration {
	return time.Duration(cli.CacheExpirySeconds) * time.Second
}

func (cli Cli) CleanupInterval() time.Duration {
	return time.Duration(cli.CleanupIntervalSeconds) * time.Second
}

// HasReasoning reports whether a remote reasoning endpoint is configured.
// Without one the highlight analyzer runs its timeline-distribution fallback.
func (cli Cli) HasReasoning() bool {
	return cli.ReasoningEndpoint != nil && cli.ReasoningEndpoint.Host != ""
}

func parseURL(s string, dest **url.URL) error {
	if s == "" {
		*dest = nil
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if _, err = url.ParseQuery(u.RawQuery); err != nil {
		return err
	}
	*dest = u
	return nil
}

func URLVarFlag(fs *flag.FlagSet, dest **url.URL, name, value, usage string) {
	if err := parseURL(value, dest); err != nil {
		panic(err)
	}
	fs.Func(name, usage, func(s string) error {
		return parseURL(s, dest)
	})
}
