package analyzer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/reframelabs/reframe-api/config"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/stretchr/testify/require"
)

// testTuning is the shared fixture of the package tests: explicit values so
// assertions do not depend on default resolution.
func testTuning() Tuning {
	return Tuning{
		ScoreThreshold:  0.6,
		MinSeparation:   10,
		OptimalMin:      20,
		OptimalMax:      60,
		AbsoluteMin:     10,
		AbsoluteMax:     120,
		MaxClips:        5,
		SegmentDuration: 120,
		MaxSegments:     15,
	}
}

type fakeSpeech struct {
	available bool
	text      string
	err       error
}

func (f fakeSpeech) Available() bool { return f.available }

func (f fakeSpeech) Transcribe(ctx context.Context, requestID, audioPath, outDir string) (string, error) {
	return f.text, f.err
}

type fakeReasoner struct {
	response string
	err      error
	prompt   string
	calls    int
}

func (f *fakeReasoner) Complete(ctx context.Context, requestID, prompt string) (string, error) {
	f.prompt = prompt
	f.calls++
	return f.response, f.err
}

func noAudioExtraction(requestID, inputPath, outputPath string, start, duration float64) error {
	return nil
}

func TestTuningDefaults(t *testing.T) {
	tun := Tuning{}.withDefaults()

	require.Equal(t, 0.6, tun.ScoreThreshold)
	require.Equal(t, 10.0, tun.MinSeparation)
	require.Equal(t, 20.0, tun.OptimalMin)
	require.Equal(t, 60.0, tun.OptimalMax)
	require.Equal(t, 10.0, tun.AbsoluteMin)
	require.Equal(t, 120.0, tun.AbsoluteMax)
	require.Equal(t, 10, tun.MaxClips)
	require.Equal(t, 120.0, tun.SegmentDuration)
	require.Equal(t, 15, tun.MaxSegments)
}

func TestTuningDefaultsRepairInvertedBands(t *testing.T) {
	tun := Tuning{OptimalMin: 50, OptimalMax: 30}.withDefaults()
	require.Equal(t, 90.0, tun.OptimalMax)
	require.Equal(t, 10.0, tun.AbsoluteMin)
	require.Equal(t, 180.0, tun.AbsoluteMax)

	tun = Tuning{OptimalMin: 20, AbsoluteMin: 30}.withDefaults()
	require.Equal(t, 10.0, tun.AbsoluteMin)
}

func TestTuningFromCli(t *testing.T) {
	tun := TuningFromCli(config.Cli{ViralScoreThreshold: 0.7, MaxClipsPerVideo: 3})
	require.Equal(t, 0.7, tun.ScoreThreshold)
	require.Equal(t, 3, tun.MaxClips)
	// Unset knobs resolve to defaults.
	require.Equal(t, 20.0, tun.OptimalMin)
	require.Equal(t, 120.0, tun.SegmentDuration)
}

func TestFindHighlightsDegradesWithoutReasoner(t *testing.T) {
	a := &Analyzer{Tuning: testTuning()}

	highlights, method, err := a.FindHighlights(context.Background(), "req-1", "in.mp4", 600, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, MethodDistribution, method)
	require.NotEmpty(t, highlights)
	for _, h := range highlights {
		require.Equal(t, MethodDistribution, h.Metadata.Method)
	}
}

func TestFindHighlightsDegradesWhenSpeechToTextUnavailable(t *testing.T) {
	a := &Analyzer{
		Tuning:       testTuning(),
		SpeechToText: fakeSpeech{available: false},
		Reasoner:     &fakeReasoner{},
	}

	_, method, err := a.FindHighlights(context.Background(), "req-2", "in.mp4", 600, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, MethodDistribution, method)
}

func TestFindHighlightsReasoningPath(t *testing.T) {
	reasoner := &fakeReasoner{response: `{"highlights":[
		{"start_time":60,"end_time":100,"score":0.9,"confidence":0.8,"reason":"strong hook","transcription":"no vas a creer esto, es una locura, comparte"},
		{"start_time":420,"end_time":460,"score":0.85,"confidence":0.7,"reason":"dramatic turn","transcription":"y entonces de repente todo cambió, increíble"}
	]}`}
	a := &Analyzer{
		Tuning:       testTuning(),
		SpeechToText: fakeSpeech{available: true, text: "hola a todos, hoy pasa algo increíble"},
		Reasoner:     reasoner,
		ExtractAudio: noAudioExtraction,
	}

	highlights, method, err := a.FindHighlights(context.Background(), "req-3", "in.mp4", 600, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, MethodReasoning, method)
	require.Equal(t, 1, reasoner.calls)

	require.Len(t, highlights, 2)
	require.InDelta(t, 80, (highlights[0].Start+highlights[0].End)/2, 1e-6)
	require.InDelta(t, 440, (highlights[1].Start+highlights[1].End)/2, 1e-6)
	for _, h := range highlights {
		require.GreaterOrEqual(t, h.Start, 0.0)
		require.LessOrEqual(t, h.End, 600.0)
		require.Greater(t, h.Score, 0.0)
		require.NotEmpty(t, h.Transcription)
		require.Equal(t, MethodReasoning, h.Metadata.Method)
	}

	// The prompt carries the transcribed windows in absolute time.
	require.Contains(t, reasoner.prompt, "Transcribed segments")
	require.Contains(t, reasoner.prompt, "[segment 0 | 00:00 - 02:00]")
	require.Contains(t, reasoner.prompt, "hola a todos")
}

func TestFindHighlightsDegradesOnReasonerFailure(t *testing.T) {
	a := &Analyzer{
		Tuning:       testTuning(),
		SpeechToText: fakeSpeech{available: true, text: "algo de texto"},
		Reasoner:     &fakeReasoner{err: fmt.Errorf("model overloaded")},
		ExtractAudio: noAudioExtraction,
	}

	highlights, method, err := a.FindHighlights(context.Background(), "req-4", "in.mp4", 600, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, MethodDistribution, method)
	require.NotEmpty(t, highlights)
}

func TestFindHighlightsDegradesOnUnusableResponse(t *testing.T) {
	a := &Analyzer{
		Tuning:       testTuning(),
		SpeechToText: fakeSpeech{available: true, text: "algo de texto"},
		Reasoner:     &fakeReasoner{response: "I'm sorry, I can't help with that."},
		ExtractAudio: noAudioExtraction,
	}

	_, method, err := a.FindHighlights(context.Background(), "req-5", "in.mp4", 600, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, MethodDistribution, method)
}

func TestFindHighlightsDegradesWhenNothingTranscribes(t *testing.T) {
	reasoner := &fakeReasoner{}
	a := &Analyzer{
		Tuning:       testTuning(),
		SpeechToText: fakeSpeech{available: true, text: "   "},
		Reasoner:     reasoner,
		ExtractAudio: noAudioExtraction,
	}

	_, method, err := a.FindHighlights(context.Background(), "req-6", "in.mp4", 600, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, MethodDistribution, method)
	require.Zero(t, reasoner.calls)
}

func TestFindHighlightsRejectsMissingDuration(t *testing.T) {
	a := &Analyzer{Tuning: testTuning()}

	_, _, err := a.FindHighlights(context.Background(), "req-7", "in.mp4", 0, t.TempDir())
	require.Error(t, err)
	require.True(t, errors.IsInvalidInput(err))
}

func TestFindHighlightsHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &Analyzer{
		Tuning:       testTuning(),
		SpeechToText: fakeSpeech{available: true, text: "texto"},
		Reasoner:     &fakeReasoner{},
		ExtractAudio: noAudioExtraction,
	}

	_, _, err := a.FindHighlights(ctx, "req-8", "in.mp4", 600, t.TempDir())
	require.Error(t, err)
	require.True(t, errors.IsTimeout(err))
}

func TestTranscribeSegmentsSkipsFailedWindows(t *testing.T) {
	a := &Analyzer{
		Tuning:       testTuning(),
		SpeechToText: fakeSpeech{available: true, text: "texto de prueba"},
		ExtractAudio: func(requestID, inputPath, outputPath string, start, duration float64) error {
			if start == 0 {
				return fmt.Errorf("disk full")
			}
			return nil
		},
	}
	segments := planSegments(600, a.Tuning)
	require.Len(t, segments, 5)

	transcripts := a.transcribeSegments(context.Background(), "req-9", "in.mp4", t.TempDir(), segments)

	require.Len(t, transcripts, 4)
	require.Equal(t, 1, transcripts[0].Index)
	require.Equal(t, 120.0, transcripts[0].Start)
	require.Equal(t, 240.0, transcripts[0].End)
	for _, tr := range transcripts {
		require.Equal(t, "texto de prueba", tr.Text)
	}
}

func TestTranscribeSegmentsDropsEmptyTranscripts(t *testing.T) {
	a := &Analyzer{
		Tuning:       testTuning(),
		SpeechToText: fakeSpeech{available: true, err: fmt.Errorf("whisper crashed")},
		ExtractAudio: noAudioExtraction,
	}
	segments := planSegments(600, a.Tuning)

	transcripts := a.transcribeSegments(context.Background(), "req-10", "in.mp4", t.TempDir(), segments)
	require.Empty(t, transcripts)
}

func TestDistributeHighlightsShortSource(t *testing.T) {
	a := &Analyzer{}
	highlights := a.distributeHighlights(15, testTuning())

	require.Len(t, highlights, 1)
	require.Equal(t, 0.0, highlights[0].Start)
	require.Equal(t, 15.0, highlights[0].End)
	require.Equal(t, 0.5, highlights[0].Score)
}

func TestDistributeHighlightsSpreadsAcrossTimeline(t *testing.T) {
	a := &Analyzer{}
	tun := testTuning()
	highlights := a.distributeHighlights(600, tun)

	require.Len(t, highlights, 2)
	require.InDelta(t, 200, (highlights[0].Start+highlights[0].End)/2, 1e-6)
	require.InDelta(t, 400, (highlights[1].Start+highlights[1].End)/2, 1e-6)
	for _, h := range highlights {
		require.GreaterOrEqual(t, h.End-h.Start, tun.AbsoluteMin)
		require.LessOrEqual(t, h.End-h.Start, tun.AbsoluteMax)
		require.Equal(t, MethodDistribution, h.Metadata.Method)
	}
}

func TestDistributeHighlightsCapsClipCount(t *testing.T) {
	a := &Analyzer{}
	tun := testTuning()
	highlights := a.distributeHighlights(36000, tun)
	require.Len(t, highlights, tun.MaxClips)
}

func TestFinalizeHighlightsShapesOutput(t *testing.T) {
	tun := testTuning()
	selected := []Candidate{
		{Start: 0, End: 8, FinalScore: 0.8, EmotionalIntensity: 0.5, Reason: "hook"},
		{Start: 290, End: 310, FinalScore: 0.7, Transcription: "algo pasa"},
		{Start: 595, End: 600, FinalScore: 0.6},
	}

	highlights := finalizeHighlights(selected, 600, tun)
	require.Len(t, highlights, 3)

	for i, h := range highlights {
		require.GreaterOrEqual(t, h.Start, 0.0)
		require.LessOrEqual(t, h.End, 600.0)
		require.GreaterOrEqual(t, h.End-h.Start, tun.AbsoluteMin)
		require.LessOrEqual(t, h.End-h.Start, tun.AbsoluteMax)
		require.Equal(t, MethodReasoning, h.Metadata.Method)
		if i > 0 {
			require.GreaterOrEqual(t, h.Start, highlights[i-1].Start)
		}
	}
	require.Equal(t, 0.8, highlights[0].Score)
	require.Equal(t, 0.5, highlights[0].Metadata.EmotionalIntensity)
	require.Equal(t, "hook", highlights[0].Reason)
	require.Equal(t, "algo pasa", highlights[1].Transcription)
	require.Equal(t, 600.0, highlights[2].End)
}

func TestHighlightDuration(t *testing.T) {
	require.Equal(t, 25.0, Highlight{Start: 5, End: 30}.Duration())
	require.Equal(t, 25.0, Candidate{Start: 5, End: 30}.Duration())
}

func TestBuildPromptRendersConstraintsAndSegments(t *testing.T) {
	tun := testTuning()
	prompt := buildPrompt(testSegments(), tun)

	require.True(t, strings.HasPrefix(prompt, HighlightSystemPrompt))
	require.Contains(t, prompt, "Propose at most 5 candidates")
	require.Contains(t, prompt, "Ideal clip length is 20 to 60 seconds; never shorter than 10 or longer than 120 seconds.")
	require.Contains(t, prompt, "[segment 0 | 00:00 - 02:00] hola mundo")
	require.Contains(t, prompt, "[segment 1 | 02:00 - 04:00] segunda parte")
}

func TestFormatClock(t *testing.T) {
	require.Equal(t, "00:00", formatClock(0))
	require.Equal(t, "00:59", formatClock(59.9))
	require.Equal(t, "02:05", formatClock(125))
	require.Equal(t, "01:00:00", formatClock(3600))
	require.Equal(t, "01:02:03", formatClock(3723.5))
}
