package analyzer

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/reframelabs/reframe-api/clients"
	"github.com/reframelabs/reframe-api/config"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/metrics"
	"golang.org/x/sync/errgroup"
)

// Analysis methods reported back to API clients.
const (
	MethodReasoning    = "ai_highlight_detection"
	MethodDistribution = "timeline_distribution"
)

// Whisper runs are CPU bound; more than a couple in flight just thrash.
const transcribeConcurrency = 2

// Tuning holds the knobs of the highlight search. The zero value is not
// usable directly; withDefaults fills the gaps, so partially populated
// Tunings (as in tests) behave sensibly.
type Tuning struct {
	ScoreThreshold    float64
	MinSeparation     float64
	OptimalMin        float64
	OptimalMax        float64
	AbsoluteMin       float64
	AbsoluteMax       float64
	MaxClips          int
	ForceFullCoverage bool
	SegmentDuration   float64
	MaxSegments       int
}

func TuningFromCli(cli config.Cli) Tuning {
	return Tuning{
		ScoreThreshold:    cli.ViralScoreThreshold,
		MinSeparation:     cli.MinClipSeparation,
		OptimalMin:        cli.OptimalClipDurationMin,
		OptimalMax:        cli.OptimalClipDurationMax,
		AbsoluteMin:       cli.AbsoluteClipDurationMin,
		AbsoluteMax:       cli.AbsoluteClipDurationMax,
		MaxClips:          cli.MaxClipsPerVideo,
		ForceFullCoverage: cli.ForceFullCoverage,
		SegmentDuration:   cli.AnalysisSegmentDuration,
		MaxSegments:       cli.MaxAnalysisSegments,
	}.withDefaults()
}

func (t Tuning) withDefaults() Tuning {
	if t.ScoreThreshold <= 0 {
		t.ScoreThreshold = 0.6
	}
	if t.MinSeparation <= 0 {
		t.MinSeparation = 10
	}
	if t.OptimalMin <= 0 {
		t.OptimalMin = 20
	}
	if t.OptimalMax <= t.OptimalMin {
		t.OptimalMax = t.OptimalMin + 40
	}
	if t.AbsoluteMin <= 0 || t.AbsoluteMin > t.OptimalMin {
		t.AbsoluteMin = math.Min(10, t.OptimalMin)
	}
	if t.AbsoluteMax < t.OptimalMax {
		t.AbsoluteMax = t.OptimalMax * 2
	}
	if t.MaxClips <= 0 {
		t.MaxClips = 10
	}
	if t.SegmentDuration <= 0 {
		t.SegmentDuration = 120
	}
	if t.MaxSegments <= 0 {
		t.MaxSegments = 15
	}
	return t
}

// TranscriptSegment is the transcript of one timeline window, positioned in
// absolute source time.
type TranscriptSegment struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// SpeechToText turns an audio file into transcript text.
// clients.Transcriber implements it.
type SpeechToText interface {
	Available() bool
	Transcribe(ctx context.Context, requestID, audioPath, outDir string) (string, error)
}

// Reasoner answers a free-form prompt with free-form text.
// clients.ReasoningClient implements it.
type Reasoner interface {
	Complete(ctx context.Context, requestID, prompt string) (string, error)
}

// Analyzer finds clip-worthy moments in a source video. Without a reasoner
// and a speech-to-text backend it still produces usable output by
// distributing clips across the timeline.
type Analyzer struct {
	Tuning       Tuning
	SpeechToText SpeechToText
	Reasoner     Reasoner

	// ExtractAudio overrides ffmpeg audio-window extraction in tests.
	ExtractAudio func(requestID, inputPath, outputPath string, start, duration float64) error
}

// Highlight is one accepted clip window on the source timeline.
type Highlight struct {
	Start         float64           `json:"start_time"`
	End           float64           `json:"end_time"`
	Score         float64           `json:"score"`
	Reason        string            `json:"reason,omitempty"`
	Transcription string            `json:"transcription,omitempty"`
	Metadata      HighlightMetadata `json:"metadata"`
}

func (h Highlight) Duration() float64 {
	return h.End - h.Start
}

type HighlightMetadata struct {
	EmotionalIntensity float64 `json:"emotional_intensity"`
	SpeechClarity      float64 `json:"speech_clarity"`
	KeywordDensity     float64 `json:"keyword_density"`
	ConversationFlow   float64 `json:"conversation_flow"`
	Method             string  `json:"analysis_method"`
}

// FindHighlights runs the full pipeline: plan transcription windows,
// transcribe them, ask the reasoning model for candidates, score, select and
// fix durations. Every degradable failure drops to the timeline-distribution
// fallback instead of erroring; the returned method tells callers which path
// produced the result.
func (a *Analyzer) FindHighlights(ctx context.Context, requestID, inputPath string, sourceDuration float64, workDir string) ([]Highlight, string, error) {
	t := a.Tuning.withDefaults()
	if sourceDuration <= 0 {
		return nil, "", errors.NewInvalidInputError("cannot analyze a source with no duration", nil)
	}

	phaseStart := time.Now()
	segments := planSegments(sourceDuration, t)
	observePhase("segmentation", phaseStart)

	if a.Reasoner == nil || a.SpeechToText == nil || !a.SpeechToText.Available() {
		log.Log(requestID, "highlight analysis degraded to timeline distribution",
			"reasoner_configured", a.Reasoner != nil, "speech_to_text_available", a.SpeechToText != nil && a.SpeechToText.Available())
		return a.distributeHighlights(sourceDuration, t), MethodDistribution, nil
	}

	phaseStart = time.Now()
	transcripts := a.transcribeSegments(ctx, requestID, inputPath, workDir, segments)
	observePhase("transcription", phaseStart)
	if err := ctx.Err(); err != nil {
		return nil, "", errors.NewTimeoutError("highlight analysis canceled", err)
	}
	if len(transcripts) == 0 {
		log.Log(requestID, "no segment produced a transcript, degrading to timeline distribution", "segments", len(segments))
		return a.distributeHighlights(sourceDuration, t), MethodDistribution, nil
	}

	phaseStart = time.Now()
	response, err := a.Reasoner.Complete(ctx, requestID, buildPrompt(transcripts, t))
	observePhase("reasoning", phaseStart)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", errors.NewTimeoutError("highlight analysis canceled", err)
		}
		log.LogError(requestID, "remote reasoning failed, degrading to timeline distribution", err)
		return a.distributeHighlights(sourceDuration, t), MethodDistribution, nil
	}
	candidates, err := parseHighlightResponse(response, transcripts, sourceDuration, t)
	if err != nil {
		log.LogError(requestID, "unusable reasoning response, degrading to timeline distribution", err)
		return a.distributeHighlights(sourceDuration, t), MethodDistribution, nil
	}

	phaseStart = time.Now()
	scored := scoreCandidates(candidates, sourceDuration, t)
	observePhase("scoring", phaseStart)

	phaseStart = time.Now()
	selected := selectHighlights(scored, t)
	observePhase("selection", phaseStart)
	if len(selected) == 0 {
		return a.distributeHighlights(sourceDuration, t), MethodDistribution, nil
	}

	log.Log(requestID, "highlight analysis complete",
		"segments", len(segments), "transcripts", len(transcripts), "candidates", len(candidates), "selected", len(selected))
	return finalizeHighlights(selected, sourceDuration, t), MethodReasoning, nil
}

// transcribeSegments extracts and transcribes every planned window with
// bounded concurrency. Failed segments are logged and skipped; only
// successful transcripts are returned.
func (a *Analyzer) transcribeSegments(ctx context.Context, requestID, inputPath, workDir string, segments []Segment) []TranscriptSegment {
	results := make([]TranscriptSegment, len(segments))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(transcribeConcurrency)
	for _, segment := range segments {
		segment := segment
		group.Go(func() error {
			audioPath := filepath.Join(workDir, fmt.Sprintf("segment-%d.wav", segment.Index))
			if err := a.extractAudio(requestID, inputPath, audioPath, segment.Start, segment.Duration); err != nil {
				log.LogError(requestID, "audio window extraction failed", err, "segment", segment.Index)
				metrics.Metrics.TranscribedSegmentCount.WithLabelValues("false").Inc()
				return nil
			}
			text, err := a.SpeechToText.Transcribe(groupCtx, requestID, audioPath, workDir)
			if err != nil {
				log.LogError(requestID, "segment transcription failed", err, "segment", segment.Index)
				metrics.Metrics.TranscribedSegmentCount.WithLabelValues("false").Inc()
				return nil
			}
			metrics.Metrics.TranscribedSegmentCount.WithLabelValues("true").Inc()
			results[segment.Index] = TranscriptSegment{
				Index: segment.Index,
				Start: segment.Start,
				End:   segment.End(),
				Text:  text,
			}
			return nil
		})
	}
	// Workers swallow their own failures, so Wait only gates completion.
	_ = group.Wait()

	transcripts := make([]TranscriptSegment, 0, len(results))
	for _, result := range results {
		if strings.TrimSpace(result.Text) != "" {
			transcripts = append(transcripts, result)
		}
	}
	return transcripts
}

func (a *Analyzer) extractAudio(requestID, inputPath, outputPath string, start, duration float64) error {
	if a.ExtractAudio != nil {
		return a.ExtractAudio(requestID, inputPath, outputPath, start, duration)
	}
	return clients.ExtractAudioWindow(requestID, inputPath, outputPath, start, duration)
}

// finalizeHighlights fixes durations and shapes the selected candidates into
// the output form, in time order.
func finalizeHighlights(selected []Candidate, sourceDuration float64, t Tuning) []Highlight {
	highlights := make([]Highlight, 0, len(selected))
	for i, candidate := range selected {
		start, end := assignDuration(candidate, i, sourceDuration, t)
		highlights = append(highlights, Highlight{
			Start:         start,
			End:           end,
			Score:         candidate.FinalScore,
			Reason:        candidate.Reason,
			Transcription: candidate.Transcription,
			Metadata: HighlightMetadata{
				EmotionalIntensity: candidate.EmotionalIntensity,
				SpeechClarity:      candidate.SpeechClarity,
				KeywordDensity:     candidate.KeywordDensity,
				ConversationFlow:   candidate.ConversationFlow,
				Method:             MethodReasoning,
			},
		})
	}
	return highlights
}

// distributeHighlights is the no-remote path: clips spread evenly across the
// timeline, long in the middle and short at the edges.
func (a *Analyzer) distributeHighlights(sourceDuration float64, t Tuning) []Highlight {
	if sourceDuration <= t.AbsoluteMin*2 {
		return []Highlight{{
			Start:    0,
			End:      math.Min(sourceDuration, t.AbsoluteMax),
			Score:    0.5,
			Reason:   "source too short to subdivide",
			Metadata: HighlightMetadata{Method: MethodDistribution},
		}}
	}

	n := int(math.Ceil(sourceDuration / 3600 * 4))
	if n < 2 {
		n = 2
	}
	if n > t.MaxClips {
		n = t.MaxClips
	}

	step := sourceDuration / float64(n+1)
	highlights := make([]Highlight, 0, n)
	for i := 0; i < n; i++ {
		duration := backupDuration(i, n, t)
		center := step * float64(i+1)
		start := clamp(center-duration/2, 0, sourceDuration)
		end := clamp(start+duration, 0, sourceDuration)
		if end-start <= 0 {
			continue
		}
		highlights = append(highlights, Highlight{
			Start:    start,
			End:      end,
			Score:    0.5,
			Reason:   "evenly distributed sample of the timeline",
			Metadata: HighlightMetadata{Method: MethodDistribution},
		})
	}
	return highlights
}

func observePhase(phase string, start time.Time) {
	metrics.Metrics.AnalyzerPhaseDurationSec.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}
