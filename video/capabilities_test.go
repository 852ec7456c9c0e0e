package video

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const ffmpegVersionOutput = `ffmpeg version 6.0-6ubuntu1 Copyright (c) 2000-2023 the FFmpeg developers
built with gcc 13 (Ubuntu 13.2.0-2ubuntu1)
configuration: --prefix=/usr --extra-version=6ubuntu1`

const ffmpegCodecsOutput = ` Codecs:
 D..... = Decoding supported
 .E.... = Encoding supported
 -------
 DEV.LS h264                 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (decoders: h264 h264_v4l2m2m ) (encoders: libx264 libx264rgb h264_v4l2m2m )
 DEAIL. aac                  AAC (Advanced Audio Coding) (decoders: aac aac_fixed ) (encoders: aac )
 DEAIL. mp3                  MP3 (MPEG audio layer 3) (decoders: mp3float mp3 ) (encoders: libmp3lame )`

const ffmpegFiltersOutput = ` Filters:
  T.. = Timeline support
 ... gblur             V->V       Apply Gaussian Blur filter.
 ... overlay           VV->V      Overlay a video source on top of the input.
 ... scale             V->V       Scale the input video size and/or convert the image format.
 ... scale2ref         VV->VV     Scale the input video size and/or convert the image format to the given reference.
 ... vstack            N->V       Stack video inputs vertically.`

func TestParseFFmpegVersion(t *testing.T) {
	require.Equal(t, "6.0-6ubuntu1", parseFFmpegVersion(ffmpegVersionOutput))
	require.Equal(t, "", parseFFmpegVersion("garbage output"))
	require.Equal(t, "", parseFFmpegVersion(""))
}

func TestListsName(t *testing.T) {
	require.True(t, listsName(ffmpegCodecsOutput, "libx264"))
	require.True(t, listsName(ffmpegCodecsOutput, "aac"))
	require.True(t, listsName(ffmpegCodecsOutput, "libmp3lame"))
	require.False(t, listsName(ffmpegCodecsOutput, "libx265"))

	require.True(t, listsName(ffmpegFiltersOutput, "scale"))
	require.True(t, listsName(ffmpegFiltersOutput, "gblur"))
	require.True(t, listsName(ffmpegFiltersOutput, "vstack"))
	// whole-token match must not treat scale2ref as scale
	require.False(t, listsName(ffmpegFiltersOutput, "scale3"))
	require.False(t, listsName(ffmpegFiltersOutput, "subtitles"))
}

func TestHasSubtitles(t *testing.T) {
	require.False(t, Capabilities{}.HasSubtitles())
	require.False(t, Capabilities{FFmpegAvailable: true, Filters: map[string]bool{}}.HasSubtitles())
	require.True(t, Capabilities{FFmpegAvailable: true, Filters: map[string]bool{"subtitles": true}}.HasSubtitles())
}
