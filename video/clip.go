package video

import (
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// format time in secs to be compatible with ffmpeg's expected time syntax
func formatTime(timeSeconds float64) string {
	timeMillis := int64(timeSeconds * 1000)
	duration := time.Duration(timeMillis) * time.Millisecond
	formattedTime := time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(duration)
	return formattedTime.Format("15:04:05.000")
}

// CutClip builds the graph that cuts [startTime, endTime] out of a local
// source file. The video track is re-encoded so the cut lands on exact
// frames instead of snapping to the nearest keyframe; audio is re-encoded
// to keep timestamps starting at zero.
func CutClip(inputPath, outputPath string, startTime, endTime float64) *ffmpeg.Stream {
	return ffmpeg.Input(inputPath, ffmpeg.KwArgs{"ss": formatTime(startTime)}).
		Output(outputPath, ffmpeg.KwArgs{
			"t":        formatTime(endTime - startTime),
			"c:v":      "libx264",
			"preset":   "veryfast",
			"crf":      23,
			"c:a":      "aac",
			"b:a":      128_000,
			"movflags": "+faststart",
		})
}
