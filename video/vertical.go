package video

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	// defaultFPS is used when the request does not pin a frame rate.
	defaultFPS = 30
	// subtitleStyle is the fixed burn-in style: readable on a phone held at
	// arm's length, bottom-centered above platform UI chrome.
	subtitleStyle = "Fontname=Arial,FontSize=16,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,Outline=2,Shadow=1,Alignment=2,MarginV=40"
)

// SimpleVertical builds the single-pass letterbox graph: scale to fit inside
// the profile's frame, pad with black borders, reencode. This is the last
// rung of the fallback ladder so it deliberately uses no optional filters.
func SimpleVertical(inputPath, outputPath string, profile QualityProfile, hasAudio bool) *ffmpeg.Stream {
	w, h := nearestEven(profile.Width), nearestEven(profile.Height)
	in := ffmpeg.Input(inputPath)
	v := in.Video().
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", w, h)}, ffmpeg.KwArgs{"force_original_aspect_ratio": "decrease"}).
		Filter("pad", ffmpeg.Args{strconv.FormatInt(w, 10), strconv.FormatInt(h, 10), "(ow-iw)/2", "(oh-ih)/2", "black"})

	outArgs := ffmpeg.KwArgs{
		"c:v":      "libx264",
		"crf":      profile.CRF,
		"preset":   profile.Preset,
		"r":        defaultFPS,
		"pix_fmt":  "yuv420p",
		"movflags": "+faststart",
	}
	streams := []*ffmpeg.Stream{v}
	if hasAudio {
		streams = append(streams, in.Audio())
		outArgs["c:a"] = "aac"
		outArgs["b:a"] = 128_000
		outArgs["ac"] = 2
	}
	return ffmpeg.Output(streams, outputPath, outArgs)
}

// OptimizedVertical builds the full filter graph: the source is split into a
// blurred, overscanned background and a fit-to-frame foreground, optional
// cleanup filters are appended to the foreground, and the two are overlaid.
// Subtitles must already be normalized via NormalizeSubtitlePath; a path that
// survived normalization is burned in with the fixed style.
func OptimizedVertical(inputPath, outputPath string, profile QualityProfile, opts TransformOptions, hasAudio bool) *ffmpeg.Stream {
	opts = opts.Clamped()
	w, h := nearestEven(profile.Width), nearestEven(profile.Height)
	in := ffmpeg.Input(inputPath)

	split := in.Video().Split()
	bg := split.Get("0").
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", nearestEven(w*3/2), nearestEven(h*3/2))}, ffmpeg.KwArgs{"flags": "lanczos"}).
		Filter("crop", ffmpeg.Args{strconv.FormatInt(w, 10), strconv.FormatInt(h, 10)}).
		Filter("gblur", ffmpeg.Args{}, ffmpeg.KwArgs{"sigma": 15})

	fg := split.Get("1").
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", w, h)}, ffmpeg.KwArgs{"force_original_aspect_ratio": "decrease", "flags": "lanczos"}).
		Filter("pad", ffmpeg.Args{strconv.FormatInt(w, 10), strconv.FormatInt(h, 10), "(ow-iw)/2", "(oh-ih)/2", "black"})
	fg = appendCleanupFilters(fg, opts)

	v := ffmpeg.Filter([]*ffmpeg.Stream{bg, fg}, "overlay", ffmpeg.Args{"0:0"})
	if opts.AddSubtitles && opts.SubtitlePath != "" {
		v = v.Filter("subtitles", ffmpeg.Args{"filename=" + opts.SubtitlePath}, ffmpeg.KwArgs{"force_style": "'" + subtitleStyle + "'"})
	}

	streams := []*ffmpeg.Stream{v}
	if hasAudio {
		streams = append(streams, audioChain(in, opts))
	}
	return ffmpeg.Output(streams, outputPath, encoderArgs(profile, opts, hasAudio))
}

// SplitVertical builds the two-speaker layout: left and right halves of the
// source stacked on top of each other, each filling half the frame height.
// Cleanup filters run on the full frame before the crop so both halves get
// identical treatment.
func SplitVertical(inputPath, outputPath string, profile QualityProfile, opts TransformOptions, hasAudio bool) *ffmpeg.Stream {
	opts = opts.Clamped()
	w, h := nearestEven(profile.Width), nearestEven(profile.Height)
	halfHeight := nearestEven(h / 2)
	in := ffmpeg.Input(inputPath)

	split := appendCleanupFilters(in.Video(), opts).Split()
	top := split.Get("0").
		Filter("crop", ffmpeg.Args{"iw/2", "ih", "0", "0"}).
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", w, halfHeight)}, ffmpeg.KwArgs{"flags": "lanczos"})
	bottom := split.Get("1").
		Filter("crop", ffmpeg.Args{"iw/2", "ih", "iw/2", "0"}).
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", w, halfHeight)}, ffmpeg.KwArgs{"flags": "lanczos"})
	v := ffmpeg.Filter([]*ffmpeg.Stream{top, bottom}, "vstack", ffmpeg.Args{})

	streams := []*ffmpeg.Stream{v}
	if hasAudio {
		streams = append(streams, audioChain(in, opts))
	}
	return ffmpeg.Output(streams, outputPath, encoderArgs(profile, opts, hasAudio))
}

// appendCleanupFilters adds the optional per-request filters in a fixed
// order, denoise then sharpen then color, so option combinations compose
// predictably.
func appendCleanupFilters(v *ffmpeg.Stream, opts TransformOptions) *ffmpeg.Stream {
	if opts.Denoise {
		v = v.Filter("hqdn3d", ffmpeg.Args{})
	}
	if opts.Sharpen {
		v = v.Filter("unsharp", ffmpeg.Args{"5", "5", fmt.Sprintf("%.2f", opts.SharpenStrength)})
	}
	if opts.NeedsEq() {
		v = v.Filter("eq", ffmpeg.Args{}, ffmpeg.KwArgs{
			"brightness": fmt.Sprintf("%.3f", opts.Brightness),
			"contrast":   fmt.Sprintf("%.3f", opts.Contrast),
			"saturation": fmt.Sprintf("%.3f", opts.Saturation),
			"gamma":      fmt.Sprintf("%.3f", opts.Gamma),
		})
	}
	return v
}

// audioChain optionally runs the loudness treatment before the AAC reencode.
func audioChain(in *ffmpeg.Stream, opts TransformOptions) *ffmpeg.Stream {
	a := in.Audio()
	if opts.AudioEnhancement {
		a = a.Filter("acompressor", ffmpeg.Args{}).Filter("alimiter", ffmpeg.Args{})
	}
	return a
}

// encoderArgs is the shared output encoder configuration for the advanced
// paths: H.264 High@4.2, BT.709, streaming-friendly GOP and muxing.
func encoderArgs(profile QualityProfile, opts TransformOptions, hasAudio bool) ffmpeg.KwArgs {
	fps := opts.TargetFPS
	if fps <= 0 {
		fps = defaultFPS
	}
	args := ffmpeg.KwArgs{
		"c:v":             "libx264",
		"profile:v":       "high",
		"level":           "4.2",
		"crf":             profile.CRF,
		"preset":          profile.Preset,
		"b:v":             profile.Bitrate,
		"maxrate":         profile.MaxRate,
		"bufsize":         profile.BufSize,
		"r":               fps,
		"g":               2 * fps,
		"keyint_min":      fps,
		"pix_fmt":         "yuv420p",
		"color_primaries": "bt709",
		"color_trc":       "bt709",
		"colorspace":      "bt709",
		"movflags":        "+faststart",
	}
	if hasAudio {
		args["c:a"] = "aac"
		args["b:a"] = profile.AudioBitrate
		args["ar"] = 48_000
		args["ac"] = 2
	}
	return args
}

// NormalizeSubtitlePath rewrites a subtitle file path into the form the
// subtitles filter accepts. Paths that would need filter-syntax escaping are
// rejected so the caller can drop the subtitle branch instead of risking a
// malformed graph.
func NormalizeSubtitlePath(path string) (string, bool) {
	p := filepath.ToSlash(path)
	if p == "" || strings.ContainsAny(p, "':,[]\\\n ") {
		return "", false
	}
	return p, true
}
