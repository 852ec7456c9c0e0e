package subprocess

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const ffmpegBanner = `ffmpeg version 5.1.2 Copyright (c) 2000-2022 the FFmpeg developers
Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'input.mp4':
  Duration: 00:03:20.00, start: 0.000000, bitrate: 1303 kb/s
  Stream #0:0(und): Video: h264 (High) (avc1 / 0x31637664), yuv420p, 1920x1080, 29.97 fps
Output #0, mp4, to 'output.mp4':
`

func TestParsesDurationFromStreamHeader(t *testing.T) {
	require := require.New(t)
	parser := NewProgressParser()

	_, err := parser.Write([]byte(ffmpegBanner))
	require.NoError(err)
	require.Equal(uint64(200_000), parser.TotalMillis())
	require.Equal(float64(0), parser.Progress())

	_, err = parser.Write([]byte("frame=  100 fps= 25 q=28.0 size=     256kB time=00:00:50.00 bitrate= 524.3kbits/s speed=   1x\r"))
	require.NoError(err)
	require.Equal(uint64(50_000), parser.ElapsedMillis())
	require.InDelta(0.25, parser.Progress(), 0.001)

	_, err = parser.Write([]byte("frame=  200 fps= 25 q=28.0 size=     512kB time=00:01:40.00 bitrate= 524.3kbits/s speed=   1x\r"))
	require.NoError(err)
	require.InDelta(0.5, parser.Progress(), 0.001)
}

func TestSeededTotalWinsOverStreamHeader(t *testing.T) {
	require := require.New(t)
	parser := NewProgressParser()
	parser.SetTotalDuration(100 * time.Second)

	_, err := parser.Write([]byte(ffmpegBanner))
	require.NoError(err)
	require.Equal(uint64(100_000), parser.TotalMillis())

	_, err = parser.Write([]byte("frame= 1 time=00:00:50.00 speed=1x\r"))
	require.NoError(err)
	require.InDelta(0.5, parser.Progress(), 0.001)
}

func TestTimeLinesIgnoredUntilDurationKnown(t *testing.T) {
	require := require.New(t)
	parser := NewProgressParser()

	_, err := parser.Write([]byte("frame= 1 time=00:00:50.00 speed=1x\r"))
	require.NoError(err)
	require.Equal(uint64(0), parser.ElapsedMillis())
	require.Equal(float64(0), parser.Progress())
}

func TestHandlesChunkedWritesAcrossLineBoundaries(t *testing.T) {
	require := require.New(t)
	parser := NewProgressParser()

	full := ffmpegBanner + "frame= 1 time=00:01:00.00 speed=1x\r"
	for i := 0; i < len(full); i += 7 {
		end := i + 7
		if end > len(full) {
			end = len(full)
		}
		_, err := parser.Write([]byte(full[i:end]))
		require.NoError(err)
	}
	require.InDelta(0.3, parser.Progress(), 0.001)
}

func TestProgressCappedBelowOne(t *testing.T) {
	parser := NewProgressParser()
	parser.SetTotalDuration(10 * time.Second)
	_, err := parser.Write([]byte("frame= 1 time=00:00:11.00 speed=1x\n"))
	require.NoError(t, err)
	require.Equal(t, 0.99, parser.Progress())
}

func TestNegativeTimeClampedToZero(t *testing.T) {
	parser := NewProgressParser()
	parser.SetTotalDuration(10 * time.Second)
	_, err := parser.Write([]byte("frame= 1 time=-00:00:00.04 speed=1x\n"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), parser.ElapsedMillis())
}

func TestUnparseableTimeIgnored(t *testing.T) {
	parser := NewProgressParser()
	parser.SetTotalDuration(10 * time.Second)
	_, err := parser.Write([]byte("frame= 1 time=N/A speed=1x\n"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), parser.ElapsedMillis())
}

func TestTailKeepsMostRecentLines(t *testing.T) {
	require := require.New(t)
	parser := NewProgressParser()

	for i := 0; i < 2*tailLines; i++ {
		_, err := parser.Write([]byte("line " + strings.Repeat("x", i) + "\n"))
		require.NoError(err)
	}
	_, err := parser.Write([]byte("[libx264] final partial line"))
	require.NoError(err)

	tail := parser.Tail()
	lines := strings.Split(tail, "\n")
	require.LessOrEqual(len(lines), tailLines+1)
	require.Equal("[libx264] final partial line", lines[len(lines)-1])
	require.NotContains(tail, "line x\n")
}

func TestParseTimestamp(t *testing.T) {
	require := require.New(t)
	require.Equal(time.Hour+23*time.Minute+45*time.Second, parseTimestamp("1", "23", "45"))
	require.Equal(90*time.Millisecond, parseTimestamp("0", "0", "0.09"))
	require.Equal(-10*time.Second, parseTimestamp("-0", "0", "10"))
	require.Equal(time.Duration(0), parseTimestamp("x", "0", "0"))
}
