package video

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mediumProfile(t *testing.T) QualityProfile {
	profile, err := GetProfile("medium")
	require.NoError(t, err)
	return profile
}

func TestSimpleVerticalArgs(t *testing.T) {
	args := strings.Join(SimpleVertical("/tmp/in.mp4", "/tmp/out.mp4", mediumProfile(t), true).GetArgs(), " ")

	require.Contains(t, args, "-i /tmp/in.mp4")
	require.Contains(t, args, "scale=1080:1920:force_original_aspect_ratio=decrease")
	require.Contains(t, args, "pad=1080:1920:(ow-iw)/2:(oh-ih)/2:black")
	require.Contains(t, args, "-c:v libx264")
	require.Contains(t, args, "-crf 23")
	require.Contains(t, args, "-preset medium")
	require.Contains(t, args, "-r 30")
	require.Contains(t, args, "-pix_fmt yuv420p")
	require.Contains(t, args, "-movflags +faststart")
	require.Contains(t, args, "-c:a aac")
	require.True(t, strings.HasSuffix(args, "/tmp/out.mp4"))

	// no advanced-path filters on the simple path
	require.NotContains(t, args, "gblur")
	require.NotContains(t, args, "overlay")
	require.NotContains(t, args, "lanczos")
}

func TestSimpleVerticalSkipsAudioWhenAbsent(t *testing.T) {
	args := strings.Join(SimpleVertical("/tmp/in.mp4", "/tmp/out.mp4", mediumProfile(t), false).GetArgs(), " ")
	require.NotContains(t, args, "-c:a")
	require.NotContains(t, args, "aac")
}

func TestOptimizedVerticalArgs(t *testing.T) {
	opts := DefaultTransformOptions()
	args := strings.Join(OptimizedVertical("/tmp/in.mp4", "/tmp/out.mp4", mediumProfile(t), opts, true).GetArgs(), " ")

	// blurred background branch: overscan, crop back, blur
	require.Contains(t, args, "split=2")
	require.Contains(t, args, "scale=1620:2880:flags=lanczos")
	require.Contains(t, args, "crop=1080:1920")
	require.Contains(t, args, "gblur=sigma=15")
	// foreground branch fits inside the frame
	require.Contains(t, args, "force_original_aspect_ratio=decrease")
	require.Contains(t, args, "overlay=0:0")

	// encoder set for streaming targets
	require.Contains(t, args, "-profile:v high")
	require.Contains(t, args, "-level 4.2")
	require.Contains(t, args, "-g 60")
	require.Contains(t, args, "-keyint_min 30")
	require.Contains(t, args, "-colorspace bt709")
	require.Contains(t, args, "-color_primaries bt709")
	require.Contains(t, args, "-movflags +faststart")
	require.Contains(t, args, "-ar 48000")

	// neutral options add no cleanup or subtitle filters
	require.NotContains(t, args, "hqdn3d")
	require.NotContains(t, args, "unsharp")
	require.NotContains(t, args, "subtitles=")
	require.NotContains(t, args, "acompressor")
}

func TestOptimizedVerticalFilterOptions(t *testing.T) {
	opts := DefaultTransformOptions()
	opts.Denoise = true
	opts.Sharpen = true
	opts.SharpenStrength = 0.7
	opts.Saturation = 1.2
	opts.AudioEnhancement = true
	args := strings.Join(OptimizedVertical("/tmp/in.mp4", "/tmp/out.mp4", mediumProfile(t), opts, true).GetArgs(), " ")

	require.Contains(t, args, "hqdn3d")
	require.Contains(t, args, "unsharp=5:5:0.70")
	require.Contains(t, args, "eq=")
	require.Contains(t, args, "saturation=1.200")
	require.Contains(t, args, "acompressor")
	require.Contains(t, args, "alimiter")

	// fixed filter order: denoise before sharpen before color
	require.Less(t, strings.Index(args, "hqdn3d"), strings.Index(args, "unsharp"))
	require.Less(t, strings.Index(args, "unsharp"), strings.Index(args, "eq="))
}

func TestOptimizedVerticalBurnsSubtitles(t *testing.T) {
	opts := DefaultTransformOptions()
	opts.AddSubtitles = true
	opts.SubtitlePath = "/tmp/subs.srt"
	args := strings.Join(OptimizedVertical("/tmp/in.mp4", "/tmp/out.mp4", mediumProfile(t), opts, true).GetArgs(), " ")

	require.Contains(t, args, "subtitles=filename=/tmp/subs.srt")
	require.Contains(t, args, "force_style=")
	require.Contains(t, args, "Fontname=Arial")
}

func TestOptimizedVerticalClampsSharpenStrength(t *testing.T) {
	opts := DefaultTransformOptions()
	opts.Sharpen = true
	opts.SharpenStrength = 9.9
	args := strings.Join(OptimizedVertical("/tmp/in.mp4", "/tmp/out.mp4", mediumProfile(t), opts, true).GetArgs(), " ")
	require.Contains(t, args, "unsharp=5:5:1.00")
}

func TestSplitVerticalArgs(t *testing.T) {
	opts := DefaultTransformOptions()
	opts.Split = true
	args := strings.Join(SplitVertical("/tmp/in.mp4", "/tmp/out.mp4", mediumProfile(t), opts, true).GetArgs(), " ")

	require.Contains(t, args, "crop=iw/2:ih:0:0")
	require.Contains(t, args, "crop=iw/2:ih:iw/2:0")
	require.Contains(t, args, "scale=1080:960:flags=lanczos")
	require.Contains(t, args, "vstack")
	require.Contains(t, args, "-c:v libx264")
	require.True(t, strings.HasSuffix(args, "/tmp/out.mp4"))
}

func TestCustomFPSChangesGOP(t *testing.T) {
	opts := DefaultTransformOptions()
	opts.TargetFPS = 60
	args := strings.Join(OptimizedVertical("/tmp/in.mp4", "/tmp/out.mp4", mediumProfile(t), opts, true).GetArgs(), " ")

	require.Contains(t, args, "-r 60")
	require.Contains(t, args, "-g 120")
	require.Contains(t, args, "-keyint_min 60")
}

func TestNormalizeSubtitlePath(t *testing.T) {
	path, ok := NormalizeSubtitlePath("/tmp/job-abc/subs.srt")
	require.True(t, ok)
	require.Equal(t, "/tmp/job-abc/subs.srt", path)

	_, ok = NormalizeSubtitlePath("")
	require.False(t, ok)
	_, ok = NormalizeSubtitlePath("/tmp/has space.srt")
	require.False(t, ok)
	_, ok = NormalizeSubtitlePath("/tmp/has'quote.srt")
	require.False(t, ok)
	_, ok = NormalizeSubtitlePath("/tmp/has,comma.srt")
	require.False(t, ok)
}

func TestNearestEven(t *testing.T) {
	require.Equal(t, int64(0), nearestEven(0))
	require.Equal(t, int64(2), nearestEven(1))
	require.Equal(t, int64(2), nearestEven(2))
	require.Equal(t, int64(1080), nearestEven(1079))
	require.Equal(t, int64(1920), nearestEven(1920))
}
