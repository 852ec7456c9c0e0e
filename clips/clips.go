// Package clips produces short clip files from source videos. The initial
// pass cuts the analyzer's highlight windows out of a source and registers
// the results for serving; the viral pass downloads existing clips,
// transcribes them and grades each one with the viral scorer.
package clips

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/reframelabs/reframe-api/analyzer"
	"github.com/reframelabs/reframe-api/clients"
	"github.com/reframelabs/reframe-api/config"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/pipeline"
	"github.com/reframelabs/reframe-api/video"
	"github.com/reframelabs/reframe-api/viral"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"golang.org/x/sync/errgroup"
)

// Downloads plus whisper runs are CPU and network bound; grade a couple of
// clips at a time and no more.
const viralConcurrency = 2

const (
	keywordsPerClip = 5
	// Posters are grabbed this far into the clip to skip the cut-in frame.
	posterOffsetSeconds = 1.0
)

// Clip is one generated clip in an initial-clips response. URLs are
// service-relative so callers behind any host or proxy can use them as-is.
type Clip struct {
	URL           string                     `json:"url"`
	ThumbnailURL  string                     `json:"thumbnail_url,omitempty"`
	Start         float64                    `json:"start"`
	End           float64                    `json:"end"`
	Duration      float64                    `json:"duration"`
	AIScore       float64                    `json:"ai_score"`
	AIReason      string                     `json:"ai_reason,omitempty"`
	Transcription string                     `json:"transcription,omitempty"`
	Metadata      analyzer.HighlightMetadata `json:"metadata"`
}

type InitialResult struct {
	Status             string  `json:"status"`
	Clips              []Clip  `json:"clips"`
	AnalysisMethod     string  `json:"analysis_method"`
	TotalVideoDuration float64 `json:"total_video_duration"`
}

// ViralClip is one graded clip in a viral-selection response.
type ViralClip struct {
	URL        string        `json:"url"`
	Keywords   []string      `json:"keywords"`
	Duration   float64       `json:"duration"`
	ViralScore float64       `json:"viral_score"`
	Transcript string        `json:"transcript"`
	Metrics    viral.Metrics `json:"metrics"`
}

type ViralResult struct {
	Status     string      `json:"status"`
	ViralClips []ViralClip `json:"viral_clips"`
}

// Pipeline runs the clip endpoints' work. It shares the coordinator's job
// cache for serving: every produced clip and poster is registered as a
// completed job, so the TTL sweeper reclaims clip disk exactly like
// transform output.
type Pipeline struct {
	cli        config.Cli
	prober     video.Prober
	downloader *clients.Downloader
	highlights *analyzer.Analyzer
	speech     analyzer.SpeechToText
	store      *pipeline.Coordinator

	// RunStream overrides ffmpeg graph execution in tests.
	RunStream func(ctx context.Context, stream *ffmpeg.Stream, cfg video.RunConfig) error
	// ExtractAudio overrides ffmpeg audio-window extraction in tests.
	ExtractAudio func(requestID, inputPath, outputPath string, start, duration float64) error
}

func NewPipeline(cli config.Cli, prober video.Prober, downloader *clients.Downloader, highlights *analyzer.Analyzer, speech analyzer.SpeechToText, store *pipeline.Coordinator) *Pipeline {
	return &Pipeline{
		cli:        cli,
		prober:     prober,
		downloader: downloader,
		highlights: highlights,
		speech:     speech,
		store:      store,
	}
}

// InitialClips downloads the source, finds highlight windows and cuts each
// one into its own served clip with a poster frame. Individual clips that
// fail to cut are dropped; the request only fails when nothing could be
// produced.
func (p *Pipeline) InitialClips(ctx context.Context, requestID, videoURL string) (InitialResult, error) {
	if err := video.EnsureFFmpeg(); err != nil {
		return InitialResult{}, err
	}
	publicID, err := pipeline.PublicID(videoURL)
	if err != nil {
		return InitialResult{}, err
	}
	ctx = log.WithLogValues(ctx, "request_id", requestID, "video_id", publicID)

	// The work dir only holds the source and analyzer scratch; clips get
	// their own dirs because they outlive this request.
	workDir, err := os.MkdirTemp(p.cli.TempDir, "clips-"+publicID+"-")
	if err != nil {
		return InitialResult{}, fmt.Errorf("cannot create clips work dir: %w", err)
	}
	defer os.RemoveAll(workDir) //nolint:errcheck

	sourcePath := filepath.Join(workDir, "source.mp4")
	if _, err := p.downloader.Download(ctx, requestID, videoURL, sourcePath); err != nil {
		return InitialResult{}, err
	}
	info, err := p.prober.ProbeFile(requestID, sourcePath)
	if err != nil {
		return InitialResult{}, err
	}

	highlights, method, err := p.highlights.FindHighlights(ctx, requestID, sourcePath, info.Duration, workDir)
	if err != nil {
		return InitialResult{}, err
	}
	log.LogCtx(ctx, "highlight analysis produced clip windows", "windows", len(highlights), "method", method)

	clips := make([]Clip, 0, len(highlights))
	var lastErr error
	for i, h := range highlights {
		clip, err := p.cutHighlight(ctx, requestID, publicID, sourcePath, h, i+1)
		if err != nil {
			lastErr = err
			log.LogError(requestID, "failed to cut highlight into a clip", err, "start", h.Start, "end", h.End)
			continue
		}
		clips = append(clips, clip)
	}
	if len(clips) == 0 && len(highlights) > 0 {
		return InitialResult{}, errors.NewConversionError("no highlight could be cut into a clip", lastErr)
	}

	log.LogCtx(ctx, "initial clip generation complete", "clips", len(clips), "source_duration", info.Duration)
	return InitialResult{
		Status:             "success",
		Clips:              clips,
		AnalysisMethod:     method,
		TotalVideoDuration: info.Duration,
	}, nil
}

// cutHighlight cuts one highlight window into a served clip. The clip dir is
// handed to the coordinator on success and removed here on failure.
func (p *Pipeline) cutHighlight(ctx context.Context, requestID, publicID, sourcePath string, h analyzer.Highlight, n int) (Clip, error) {
	clipID := fmt.Sprintf("clip_%s_%d", publicID, n)
	clipDir, err := os.MkdirTemp(p.cli.TempDir, "clips-"+clipID+"-")
	if err != nil {
		return Clip{}, fmt.Errorf("cannot create clip dir: %w", err)
	}
	discard := func(cause error) (Clip, error) {
		os.RemoveAll(clipDir) //nolint:errcheck
		return Clip{}, cause
	}

	clipPath := filepath.Join(clipDir, clipID+".mp4")
	err = p.runStream(ctx, video.CutClip(sourcePath, clipPath, h.Start, h.End), video.RunConfig{
		RequestID:      requestID,
		Stage:          "clip_cut",
		OutputPath:     clipPath,
		Timeout:        p.cli.FFmpegTimeout,
		SourceDuration: time.Duration(h.Duration() * float64(time.Second)),
	})
	if err != nil {
		return discard(err)
	}
	info, err := p.prober.ProbeFile(requestID, clipPath)
	if err != nil {
		return discard(errors.NewConversionError("cannot probe the cut clip", err))
	}
	stat, err := os.Stat(clipPath)
	if err != nil {
		return discard(errors.NewNotFoundError("cut clip went missing", err))
	}
	p.store.RegisterCompleted(clipID, clipDir, clipPath, info, stat.Size())

	return Clip{
		URL:           "/api/video/" + clipID,
		ThumbnailURL:  p.extractPoster(ctx, requestID, publicID, sourcePath, clipDir, h, n),
		Start:         h.Start,
		End:           h.End,
		Duration:      h.Duration(),
		AIScore:       h.Score,
		AIReason:      h.Reason,
		Transcription: h.Transcription,
		Metadata:      h.Metadata,
	}, nil
}

// extractPoster grabs the clip's poster frame from the source. Poster
// failures degrade the clip instead of dropping it, so this only ever
// returns the served URL or "".
func (p *Pipeline) extractPoster(ctx context.Context, requestID, publicID, sourcePath, clipDir string, h analyzer.Highlight, n int) string {
	posterID := fmt.Sprintf("thumb_%s_%d", publicID, n)
	posterPath := filepath.Join(clipDir, posterID+".jpg")
	at := h.Start + math.Min(posterOffsetSeconds, h.Duration()/2)
	err := p.runStream(ctx, video.ExtractPoster(sourcePath, posterPath, at), video.RunConfig{
		RequestID:  requestID,
		Stage:      "poster",
		OutputPath: posterPath,
		Timeout:    p.cli.FFmpegTimeout,
	})
	if err != nil {
		log.LogError(requestID, "poster extraction failed", err, "poster", posterID)
		return ""
	}
	stat, err := os.Stat(posterPath)
	if err != nil || stat.Size() == 0 {
		return ""
	}
	// The poster lives inside the clip's dir, so its entry owns no dir of
	// its own; both entries expire in the same sweep.
	p.store.RegisterCompleted(posterID, "", posterPath, video.InputVideo{}, stat.Size())
	return "/api/video/" + posterID
}

// ViralSelection downloads each submitted clip, transcribes it and grades
// the transcript. Clips that cannot be graded are dropped; the result is
// ordered best-first.
func (p *Pipeline) ViralSelection(ctx context.Context, requestID string, urls []string) (ViralResult, error) {
	if err := video.EnsureFFmpeg(); err != nil {
		return ViralResult{}, err
	}
	if p.speech == nil || !p.speech.Available() {
		return ViralResult{}, errors.NewUnavailableDependencyError("speech to text is not available on this node", nil)
	}
	ctx = log.WithLogValues(ctx, "request_id", requestID)

	workDir, err := os.MkdirTemp(p.cli.TempDir, "clips-viral-")
	if err != nil {
		return ViralResult{}, fmt.Errorf("cannot create viral work dir: %w", err)
	}
	defer os.RemoveAll(workDir) //nolint:errcheck

	results := make([]*ViralClip, len(urls))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(viralConcurrency)
	for i, url := range urls {
		i, url := i, url
		group.Go(func() error {
			clip, err := p.gradeClip(groupCtx, requestID, workDir, i, url)
			if err != nil {
				log.LogError(requestID, "clip grading failed", err, "url", log.RedactURL(url))
				return nil
			}
			results[i] = clip
			return nil
		})
	}
	// Workers swallow their own failures, so Wait only gates completion.
	_ = group.Wait()
	if err := ctx.Err(); err != nil {
		return ViralResult{}, errors.NewTimeoutError("viral selection canceled", err)
	}

	viralClips := make([]ViralClip, 0, len(results))
	for _, clip := range results {
		if clip != nil {
			viralClips = append(viralClips, *clip)
		}
	}
	if len(viralClips) == 0 && len(urls) > 0 {
		return ViralResult{}, errors.NewConversionError("no submitted clip could be graded", nil)
	}
	sort.SliceStable(viralClips, func(i, j int) bool {
		return viralClips[i].ViralScore > viralClips[j].ViralScore
	})

	log.LogCtx(ctx, "viral selection complete", "submitted", len(urls), "graded", len(viralClips))
	return ViralResult{Status: "success", ViralClips: viralClips}, nil
}

func (p *Pipeline) gradeClip(ctx context.Context, requestID, workDir string, index int, url string) (*ViralClip, error) {
	clipPath := filepath.Join(workDir, fmt.Sprintf("clip-%d.mp4", index))
	if _, err := p.downloader.Download(ctx, requestID, url, clipPath); err != nil {
		return nil, err
	}
	info, err := p.prober.ProbeFile(requestID, clipPath)
	if err != nil {
		return nil, err
	}
	if info.Duration <= 0 {
		return nil, errors.NewInvalidInputError("clip has no duration", nil)
	}

	audioPath := filepath.Join(workDir, fmt.Sprintf("clip-%d.wav", index))
	if err := p.extractAudio(requestID, clipPath, audioPath, 0, info.Duration); err != nil {
		return nil, err
	}
	transcript, err := p.speech.Transcribe(ctx, requestID, audioPath, workDir)
	if err != nil {
		return nil, err
	}

	grade := viral.Score(transcript, info.Duration)
	return &ViralClip{
		URL:        url,
		Keywords:   viral.Keywords(transcript, keywordsPerClip),
		Duration:   info.Duration,
		ViralScore: grade.ViralityCoefficient,
		Transcript: transcript,
		Metrics:    grade,
	}, nil
}

func (p *Pipeline) runStream(ctx context.Context, stream *ffmpeg.Stream, cfg video.RunConfig) error {
	if p.RunStream != nil {
		return p.RunStream(ctx, stream, cfg)
	}
	return video.RunWithProgress(ctx, stream, cfg)
}

func (p *Pipeline) extractAudio(requestID, inputPath, outputPath string, start, duration float64) error {
	if p.ExtractAudio != nil {
		return p.ExtractAudio(requestID, inputPath, outputPath, start, duration)
	}
	return clients.ExtractAudioWindow(requestID, inputPath, outputPath, start, duration)
}
