package video

import (
	"fmt"
	"net/http"
	"time"

	"github.com/grafov/m3u8"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

func newPlaylistClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 2                          // Retry a maximum of this+1 times
	client.RetryWaitMin = 200 * time.Millisecond // Wait at least this long between retries
	client.RetryWaitMax = 1 * time.Second        // Wait at most this long between retries (exponential backoff)
	client.HTTPClient = &http.Client{
		Timeout: 30 * time.Second, // Give up on requests that take more than this long
	}
	client.Logger = log.NewRetryableHTTPLogger()
	return client
}

var playlistClient = newPlaylistClient()

// PlaylistDuration fetches a media playlist and sums its segment durations,
// so HLS conversions can report percentage progress before ffmpeg has read a
// single segment.
func PlaylistDuration(requestID, playlistURL string) (float64, uint64, error) {
	resp, err := playlistClient.Get(playlistURL)
	if err != nil {
		return 0, 0, errors.NewDownloadError(fmt.Sprintf("failed to fetch playlist %s", log.RedactURL(playlistURL)), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, 0, errors.NewDownloadError(fmt.Sprintf("playlist fetch returned %d", resp.StatusCode), nil)
	}

	playlist, playlistType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return 0, 0, errors.NewInvalidInputError("error decoding playlist", err)
	}
	if playlistType != m3u8.MEDIA {
		return 0, 0, errors.NewInvalidInputError("received non-Media playlist, but only Media playlists are supported", nil)
	}
	mediaPlaylist, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok || mediaPlaylist == nil {
		return 0, 0, errors.NewInvalidInputError("failed to parse playlist as MediaPlaylist", nil)
	}

	duration, segments := GetTotalDurationAndSegments(mediaPlaylist)
	log.Log(requestID, "fetched playlist", "url", log.RedactURL(playlistURL), "duration", duration, "segments", segments)
	return duration, segments, nil
}

// GetTotalDurationAndSegments sums segment durations of a media playlist.
func GetTotalDurationAndSegments(manifest *m3u8.MediaPlaylist) (float64, uint64) {
	if manifest == nil {
		return 0.0, 0
	}

	var totalDuration float64
	allSegments := manifest.GetAllSegments()
	for _, segment := range allSegments {
		totalDuration += segment.Duration
	}
	return totalDuration, uint64(len(allSegments))
}

// MuxHLSToMP4 builds a stream-copy remux of an HLS playlist into a single
// MP4. No reencode, just the AAC bitstream fixup the MP4 container needs.
func MuxHLSToMP4(inputURL, outputPath string) *ffmpeg.Stream {
	return ffmpeg.Input(inputURL).
		Output(outputPath, ffmpeg.KwArgs{"movflags": "faststart", "c": "copy", "bsf:a": "aac_adtstoasc"})
}

// ConvertHLSTo360p builds a 640x360 preview reencode of an HLS playlist,
// letterboxed to preserve aspect.
func ConvertHLSTo360p(inputURL, outputPath string) *ffmpeg.Stream {
	in := ffmpeg.Input(inputURL)
	v := in.Video().
		Filter("scale", ffmpeg.Args{"640:360"}, ffmpeg.KwArgs{"force_original_aspect_ratio": "decrease"}).
		Filter("pad", ffmpeg.Args{"640", "360", "(ow-iw)/2", "(oh-ih)/2", "black"})
	return ffmpeg.Output([]*ffmpeg.Stream{v, in.Audio()}, outputPath, ffmpeg.KwArgs{
		"c:v":      "libx264",
		"crf":      28,
		"preset":   "fast",
		"c:a":      "aac",
		"b:a":      96_000,
		"movflags": "+faststart",
	})
}

// ExtractAudioMP3 builds an audio-only MP3 encode of an HLS playlist or local
// file. A zero bitrate leaves the encoder at its default quality.
func ExtractAudioMP3(inputURL, outputPath string, bitrate int64) *ffmpeg.Stream {
	args := ffmpeg.KwArgs{
		"vn":  "",
		"c:a": "libmp3lame",
	}
	if bitrate > 0 {
		args["b:a"] = bitrate
	}
	return ffmpeg.Input(inputURL).Output(outputPath, args)
}
