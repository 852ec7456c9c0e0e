package video

import (
	"fmt"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const posterResolution = "480:854"

// ExtractPoster builds the single-frame JPEG grab used for clip thumbnails.
// Seeking happens on the input side so long sources don't decode from zero.
func ExtractPoster(inputPath, outputPath string, at float64) *ffmpeg.Stream {
	return ffmpeg.Input(inputPath, ffmpeg.KwArgs{"ss": formatTime(at)}).
		Output(outputPath, ffmpeg.KwArgs{
			"vframes": "1",
			"q:v":     "4",
			"vf":      fmt.Sprintf("scale=%s:force_original_aspect_ratio=decrease", posterResolution),
		})
}
