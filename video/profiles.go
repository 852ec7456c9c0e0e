package video

import (
	"fmt"
	"sort"
	"strings"
)

const (
	TrackTypeVideo = "video"
	TrackTypeAudio = "audio"

	// Bitrate assumed when probing can't determine one
	FallbackBitrate = 4_000_000
)

type InputVideo struct {
	Format    string       `json:"format,omitempty"`
	Tracks    []InputTrack `json:"tracks,omitempty"`
	Duration  float64      `json:"duration,omitempty"`
	SizeBytes int64        `json:"size,omitempty"`
}

// Finds the first track of the given type from the list of input video tracks.
// If no such track is present, returns an error.
func (i InputVideo) GetTrack(trackType string) (InputTrack, error) {
	if trackType != TrackTypeVideo && trackType != TrackTypeAudio {
		return InputTrack{}, fmt.Errorf("invalid track type - must be '%s' or '%s'", TrackTypeVideo, TrackTypeAudio)
	}
	for _, t := range i.Tracks {
		if t.Type == trackType {
			return t, nil
		}
	}
	return InputTrack{}, fmt.Errorf("no '%s' tracks found", trackType)
}

func (i InputVideo) HasAudio() bool {
	_, err := i.GetTrack(TrackTypeAudio)
	return err == nil
}

type VideoTrack struct {
	Width              int64   `json:"width,omitempty"`
	Height             int64   `json:"height,omitempty"`
	PixelFormat        string  `json:"pixel_format,omitempty"`
	FPS                float64 `json:"fps,omitempty"`
	Rotation           int64   `json:"rotation,omitempty"`
	DisplayAspectRatio string  `json:"display_aspect_ratio,omitempty"`
}

type AudioTrack struct {
	Channels   int `json:"channels,omitempty"`
	SampleRate int `json:"sample_rate,omitempty"`
	SampleBits int `json:"sample_bits,omitempty"`
	BitDepth   int `json:"bit_depth,omitempty"`
}

type InputTrack struct {
	Type         string  `json:"type"`
	Codec        string  `json:"codec"`
	Bitrate      int64   `json:"bitrate"`
	DurationSec  float64 `json:"duration"`
	SizeBytes    int64   `json:"size"`
	StartTimeSec float64 `json:"start_time"`

	// Fields only used if this is a Video Track
	VideoTrack

	// Fields only used if this is an Audio Track
	AudioTrack
}

// QualityProfile is a named encoding preset for the vertical outputs. All
// bitrates are in bits per second.
type QualityProfile struct {
	Name         string
	CRF          int
	Preset       string
	Width        int64
	Height       int64
	Bitrate      int64
	MaxRate      int64
	BufSize      int64
	AudioBitrate int64
}

var qualityProfiles = map[string]QualityProfile{
	"low":       {Name: "low", CRF: 28, Preset: "fast", Width: 720, Height: 1280, Bitrate: 1_200_000, MaxRate: 1_800_000, BufSize: 2_400_000, AudioBitrate: 96_000},
	"medium":    {Name: "medium", CRF: 23, Preset: "medium", Width: 1080, Height: 1920, Bitrate: 2_800_000, MaxRate: 4_200_000, BufSize: 5_600_000, AudioBitrate: 128_000},
	"high":      {Name: "high", CRF: 20, Preset: "medium", Width: 1080, Height: 1920, Bitrate: 5_000_000, MaxRate: 7_500_000, BufSize: 10_000_000, AudioBitrate: 192_000},
	"ultra":     {Name: "ultra", CRF: 16, Preset: "slow", Width: 1080, Height: 1920, Bitrate: 8_000_000, MaxRate: 12_000_000, BufSize: 16_000_000, AudioBitrate: 256_000},
	"tiktok":    {Name: "tiktok", CRF: 22, Preset: "medium", Width: 1080, Height: 1920, Bitrate: 2_500_000, MaxRate: 3_500_000, BufSize: 5_000_000, AudioBitrate: 128_000},
	"instagram": {Name: "instagram", CRF: 21, Preset: "medium", Width: 1080, Height: 1920, Bitrate: 3_200_000, MaxRate: 4_800_000, BufSize: 6_400_000, AudioBitrate: 160_000},
	"youtube":   {Name: "youtube", CRF: 20, Preset: "medium", Width: 1080, Height: 1920, Bitrate: 4_000_000, MaxRate: 6_000_000, BufSize: 8_000_000, AudioBitrate: 192_000},
}

// Platforms that pin their own encoding profile. Everything else keeps the
// quality the caller asked for.
var platformQuality = map[string]string{
	"tiktok":    "tiktok",
	"instagram": "instagram",
	"facebook":  "instagram",
	"youtube":   "youtube",
	"general":   "",
}

func ValidQuality(quality string) bool {
	_, ok := qualityProfiles[quality]
	return ok
}

func ValidPlatform(platform string) bool {
	_, ok := platformQuality[platform]
	return ok
}

func Qualities() []string {
	out := make([]string, 0, len(qualityProfiles))
	for name := range qualityProfiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func Platforms() []string {
	out := make([]string, 0, len(platformQuality))
	for name := range platformQuality {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AdjustQualityForPlatform maps the requested quality onto the platform's
// pinned profile. Platform profiles map to themselves, so applying this twice
// returns the same result.
func AdjustQualityForPlatform(quality, platform string) string {
	if pinned := platformQuality[platform]; pinned != "" {
		return pinned
	}
	return quality
}

func GetProfile(quality string) (QualityProfile, error) {
	p, ok := qualityProfiles[quality]
	if !ok {
		return QualityProfile{}, fmt.Errorf("unknown quality '%s', must be one of %s", quality, strings.Join(Qualities(), ", "))
	}
	return p, nil
}

// WithCustomBitrate overrides the profile's target bitrate, scaling maxrate
// and bufsize with the usual 1.5x / 2x headroom.
func (p QualityProfile) WithCustomBitrate(bitrate int64) QualityProfile {
	if bitrate <= 0 {
		return p
	}
	p.Bitrate = bitrate
	p.MaxRate = bitrate * 3 / 2
	p.BufSize = bitrate * 2
	return p
}

// TransformOptions carries every per-request processing switch. Numeric
// values are clamped at the boundary by Clamped, so downstream code can trust
// the ranges.
type TransformOptions struct {
	Split            bool
	Denoise          bool
	Sharpen          bool
	SharpenStrength  float64
	Brightness       float64
	Contrast         float64
	Saturation       float64
	Gamma            float64
	AddSubtitles     bool
	SubtitlePath     string
	SubtitleLanguage string
	AudioEnhancement bool
	CustomBitrate    int64
	TargetFPS        int
}

// DefaultTransformOptions is the neutral option set requests start from.
func DefaultTransformOptions() TransformOptions {
	return TransformOptions{
		SharpenStrength: 0.5,
		Contrast:        1.0,
		Saturation:      1.0,
		Gamma:           1.0,
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Clamped returns a copy with every numeric parameter forced into its
// plausible range.
func (o TransformOptions) Clamped() TransformOptions {
	o.SharpenStrength = clamp(o.SharpenStrength, 0.1, 1.0)
	o.Brightness = clamp(o.Brightness, -1.0, 1.0)
	o.Contrast = clamp(o.Contrast, 0.0, 2.0)
	o.Saturation = clamp(o.Saturation, 0.0, 3.0)
	o.Gamma = clamp(o.Gamma, 0.1, 10.0)
	return o
}

// NeedsEq reports whether any color adjustment differs from neutral.
func (o TransformOptions) NeedsEq() bool {
	return o.Brightness != 0 || o.Contrast != 1.0 || o.Saturation != 1.0 || o.Gamma != 1.0
}

func (o TransformOptions) HasFilters() bool {
	return o.Denoise || o.Sharpen || o.NeedsEq()
}

// WantsAdvanced reports whether the request needs the full filter-graph
// pipeline rather than the single-pass letterbox.
func (o TransformOptions) WantsAdvanced() bool {
	return o.AddSubtitles || o.HasFilters() || o.Split
}

// OptionTokens lists the processing-affecting switches for cache
// fingerprinting. Numeric parameter values are deliberately excluded: a
// resubmit that only tweaks, say, brightness reuses the prior output rather
// than fragmenting the cache.
func (o TransformOptions) OptionTokens() []string {
	var tokens []string
	if o.Split {
		tokens = append(tokens, "split")
	}
	if o.Denoise {
		tokens = append(tokens, "denoise")
	}
	if o.Sharpen {
		tokens = append(tokens, "sharpen")
	}
	if o.NeedsEq() {
		tokens = append(tokens, "eq")
	}
	if o.AddSubtitles {
		tokens = append(tokens, "subs")
	}
	if o.AudioEnhancement {
		tokens = append(tokens, "audiofx")
	}
	sort.Strings(tokens)
	return tokens
}

func nearestEven(input int64) int64 {
	return input + (input & 1)
}
