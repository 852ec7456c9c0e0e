package clips

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reframelabs/reframe-api/analyzer"
	"github.com/reframelabs/reframe-api/clients"
	"github.com/reframelabs/reframe-api/config"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/pipeline"
	"github.com/reframelabs/reframe-api/video"
	"github.com/stretchr/testify/require"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const hotClipTranscript = `¿Sabías que el secreto de los mejores creadores es
increíble? No vas a creer lo que descubrí, es una locura total. Comparte esto
con alguien que lo necesite y dime en los comentarios si a ti te pasa lo
mismo, ¿estás de acuerdo?`

const flatClipTranscript = `hoy vamos a repasar algunos temas generales del
día a día tal como los vimos la semana pasada sin demasiadas novedades por
delante seguimos con la agenda habitual y poco más que contar por hoy`

func testCli(t *testing.T) config.Cli {
	return config.Cli{
		TempDir:                t.TempDir(),
		CacheExpirySeconds:     3600,
		CleanupIntervalSeconds: 60,
		FFmpegTimeout:          time.Minute,
	}
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if err := video.EnsureFFmpeg(); err != nil {
		t.Skip("ffmpeg is not installed on this host")
	}
}

func bytesServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("v"), 1024)) //nolint:errcheck
	}))
	t.Cleanup(server.Close)
	return server
}

type stubProber struct {
	info video.InputVideo
	err  error
}

func (s stubProber) ProbeFile(requestID, url string, opts ...string) (video.InputVideo, error) {
	return s.info, s.err
}

// stubSpeech maps audio file basenames to canned transcripts.
type stubSpeech struct {
	byBase map[string]string
}

func (s stubSpeech) Available() bool { return true }

func (s stubSpeech) Transcribe(_ context.Context, _ string, audioPath, _ string) (string, error) {
	return s.byBase[filepath.Base(audioPath)], nil
}

func writeOutputStream(_ context.Context, _ *ffmpeg.Stream, cfg video.RunConfig) error {
	return os.WriteFile(cfg.OutputPath, []byte("payload"), 0o644)
}

func writeAudioFile(_, _, outputPath string, _, _ float64) error {
	return os.WriteFile(outputPath, []byte("wav"), 0o644)
}

func TestCutHighlightRegistersClipAndPoster(t *testing.T) {
	cli := testCli(t)
	store := pipeline.NewCoordinator(cli, nil, nil, nil)
	p := NewPipeline(cli, stubProber{info: video.InputVideo{Duration: 21.5}}, nil, nil, nil, store)
	p.RunStream = writeOutputStream

	h := analyzer.Highlight{Start: 30, End: 52, Score: 0.83, Reason: "peak moment"}
	clip, err := p.cutHighlight(context.Background(), "req-1", "vid", "/src/source.mp4", h, 1)
	require.NoError(t, err)
	require.Equal(t, "/api/video/clip_vid_1", clip.URL)
	require.Equal(t, "/api/video/thumb_vid_1", clip.ThumbnailURL)
	require.InDelta(t, 22.0, clip.Duration, 0.001)
	require.Equal(t, 0.83, clip.AIScore)
	require.Equal(t, "peak moment", clip.AIReason)

	job, err := store.Resolve("clip_vid_1")
	require.NoError(t, err)
	require.FileExists(t, job.OutputPath)
	require.Equal(t, int64(len("payload")), job.OutputBytes)

	poster, err := store.Resolve("thumb_vid_1")
	require.NoError(t, err)
	require.FileExists(t, poster.OutputPath)
}

func TestCutHighlightFailureLeavesNothingBehind(t *testing.T) {
	cli := testCli(t)
	store := pipeline.NewCoordinator(cli, nil, nil, nil)
	p := NewPipeline(cli, stubProber{info: video.InputVideo{Duration: 20}}, nil, nil, nil, store)
	p.RunStream = func(_ context.Context, _ *ffmpeg.Stream, _ video.RunConfig) error {
		return errors.NewConversionError("cut failed", nil)
	}

	_, err := p.cutHighlight(context.Background(), "req-1", "vid", "/src/source.mp4", analyzer.Highlight{Start: 0, End: 20}, 1)
	require.Error(t, err)
	require.Equal(t, 0, store.Jobs.Len())

	leftovers, err := filepath.Glob(filepath.Join(cli.TempDir, "clips-*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestPosterFailureDegradesClip(t *testing.T) {
	cli := testCli(t)
	store := pipeline.NewCoordinator(cli, nil, nil, nil)
	p := NewPipeline(cli, stubProber{info: video.InputVideo{Duration: 20}}, nil, nil, nil, store)
	p.RunStream = func(ctx context.Context, stream *ffmpeg.Stream, cfg video.RunConfig) error {
		if cfg.Stage == "poster" {
			return errors.NewConversionError("poster failed", nil)
		}
		return writeOutputStream(ctx, stream, cfg)
	}

	clip, err := p.cutHighlight(context.Background(), "req-1", "vid", "/src/source.mp4", analyzer.Highlight{Start: 5, End: 25}, 1)
	require.NoError(t, err)
	require.Empty(t, clip.ThumbnailURL)
	require.NotEmpty(t, clip.URL)
	require.Equal(t, 1, store.Jobs.Len())
}

func TestGradeClip(t *testing.T) {
	cli := testCli(t)
	server := bytesServer(t)
	store := pipeline.NewCoordinator(cli, nil, nil, nil)
	speech := stubSpeech{byBase: map[string]string{"clip-0.wav": hotClipTranscript}}
	p := NewPipeline(cli, stubProber{info: video.InputVideo{Duration: 30}}, clients.NewDownloader(time.Second, 0, 0), nil, speech, store)
	p.ExtractAudio = writeAudioFile

	clip, err := p.gradeClip(context.Background(), "req-1", t.TempDir(), 0, server.URL+"/a.mp4")
	require.NoError(t, err)
	require.Equal(t, server.URL+"/a.mp4", clip.URL)
	require.InDelta(t, 30.0, clip.Duration, 0.001)
	require.Greater(t, clip.ViralScore, 0.0)
	require.Equal(t, clip.Metrics.ViralityCoefficient, clip.ViralScore)
	require.NotEmpty(t, clip.Keywords)
	require.Equal(t, hotClipTranscript, clip.Transcript)
}

func TestInitialClipsEndToEnd(t *testing.T) {
	requireFFmpeg(t)
	cli := testCli(t)
	server := bytesServer(t)
	store := pipeline.NewCoordinator(cli, nil, nil, nil)
	highlights := &analyzer.Analyzer{Tuning: analyzer.TuningFromCli(cli)}
	p := NewPipeline(cli, stubProber{info: video.InputVideo{Duration: 120}}, clients.NewDownloader(time.Second, 0, 0), highlights, nil, store)
	p.RunStream = writeOutputStream

	res, err := p.InitialClips(context.Background(), "req-1", server.URL+"/Talk%20Show.mp4")
	require.NoError(t, err)
	require.Equal(t, "success", res.Status)
	require.Equal(t, analyzer.MethodDistribution, res.AnalysisMethod)
	require.InDelta(t, 120.0, res.TotalVideoDuration, 0.001)
	require.Len(t, res.Clips, 2)

	require.Equal(t, "/api/video/clip_talk_show_1", res.Clips[0].URL)
	require.Equal(t, "/api/video/clip_talk_show_2", res.Clips[1].URL)
	for _, clip := range res.Clips {
		require.NotEmpty(t, clip.ThumbnailURL)
		require.Less(t, clip.Start, clip.End)
		require.LessOrEqual(t, clip.End, 120.0)
	}

	// two clips and two posters are registered for serving
	require.Equal(t, 4, store.Jobs.Len())
	job, err := store.Resolve("clip_talk_show_1")
	require.NoError(t, err)
	require.FileExists(t, job.OutputPath)

	// the source work dir is gone, the clip dirs stay until the sweep
	stale, err := filepath.Glob(filepath.Join(cli.TempDir, "clips-talk_show-*"))
	require.NoError(t, err)
	require.Empty(t, stale)
	kept, err := filepath.Glob(filepath.Join(cli.TempDir, "clips-clip_talk_show_*"))
	require.NoError(t, err)
	require.Len(t, kept, 2)
}

func TestViralSelectionOrdersBestFirst(t *testing.T) {
	requireFFmpeg(t)
	cli := testCli(t)
	server := bytesServer(t)
	store := pipeline.NewCoordinator(cli, nil, nil, nil)
	speech := stubSpeech{byBase: map[string]string{
		"clip-0.wav": flatClipTranscript,
		"clip-1.wav": hotClipTranscript,
	}}
	p := NewPipeline(cli, stubProber{info: video.InputVideo{Duration: 30}}, clients.NewDownloader(time.Second, 0, 0), nil, speech, store)
	p.ExtractAudio = writeAudioFile

	res, err := p.ViralSelection(context.Background(), "req-1", []string{server.URL + "/a.mp4", server.URL + "/b.mp4"})
	require.NoError(t, err)
	require.Equal(t, "success", res.Status)
	require.Len(t, res.ViralClips, 2)

	// the hot transcript came from b.mp4, so it must rank first
	require.Equal(t, server.URL+"/b.mp4", res.ViralClips[0].URL)
	require.Greater(t, res.ViralClips[0].ViralScore, res.ViralClips[1].ViralScore)

	// the grading work dir is fully reclaimed
	stale, err := filepath.Glob(filepath.Join(cli.TempDir, "clips-viral-*"))
	require.NoError(t, err)
	require.Empty(t, stale)
}

func TestViralSelectionRequiresSpeechToText(t *testing.T) {
	requireFFmpeg(t)
	cli := testCli(t)
	store := pipeline.NewCoordinator(cli, nil, nil, nil)
	p := NewPipeline(cli, stubProber{}, nil, nil, nil, store)

	_, err := p.ViralSelection(context.Background(), "req-1", []string{"https://example.com/a.mp4"})
	require.True(t, errors.IsUnavailableDependency(err))
}
