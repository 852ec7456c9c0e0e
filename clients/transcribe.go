package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/subprocess"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	audioExtractTimeout = 30 * time.Second
	defaultWhisperModel = "small"
	// Spanish-language sources dominate the trained corpus, so the hint is
	// pinned rather than guessed per segment.
	whisperLanguage       = "es"
	defaultWhisperTimeout = 180 * time.Second
)

func audioExtractBackoff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(1*time.Second), 1)
}

// audioWindowStream builds the PCM extraction graph the speech-to-text model
// wants: 16 kHz mono signed 16-bit, no video.
func audioWindowStream(inputPath, outputPath string, start, duration float64) *ffmpeg.Stream {
	return ffmpeg.Input(inputPath, ffmpeg.KwArgs{"ss": formatSeconds(start)}).
		Output(outputPath, ffmpeg.KwArgs{
			"t":      formatSeconds(duration),
			"vn":     "",
			"acodec": "pcm_s16le",
			"ar":     16000,
			"ac":     1,
		})
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

// ExtractAudioWindow pulls one transcription window out of the source as a
// WAV file. Transient ffmpeg failures get a single retry.
func ExtractAudioWindow(requestID, inputPath, outputPath string, start, duration float64) error {
	var ffmpegErr bytes.Buffer
	err := backoff.Retry(func() error {
		ffmpegErr = bytes.Buffer{}
		return audioWindowStream(inputPath, outputPath, start, duration).
			OverWriteOutput().
			Silent(true).
			WithTimeout(audioExtractTimeout).
			WithErrorOutput(&ffmpegErr).
			Run()
	}, audioExtractBackoff())
	if err != nil {
		return errors.NewTranscriptionError(fmt.Sprintf("audio extraction failed for window %s+%s: %s", formatSeconds(start), formatSeconds(duration), lastLine(ffmpegErr.String())), err)
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return errors.NewTranscriptionError(fmt.Sprintf("audio extraction produced no output for window %s+%s", formatSeconds(start), formatSeconds(duration)), err)
	}
	log.Log(requestID, "extracted audio window", "start", start, "duration", duration, "bytes", info.Size())
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

var (
	whisperPathOnce sync.Once
	whisperPath     string
	whisperPathErr  error
)

// lookupWhisper resolves the whisper binary once per process. PATH doesn't
// change under us and LookPath hits the filesystem.
func lookupWhisper() (string, error) {
	whisperPathOnce.Do(func() {
		whisperPath, whisperPathErr = exec.LookPath("whisper")
	})
	return whisperPath, whisperPathErr
}

// Transcriber drives a local whisper CLI. The model is lazy-loaded by the
// CLI itself on first use; all this type manages is the subprocess.
type Transcriber struct {
	Model   string
	Timeout time.Duration
}

func (t Transcriber) Available() bool {
	_, err := lookupWhisper()
	return err == nil
}

// Transcribe runs speech-to-text over one extracted audio window, returning
// the recognized text. The CLI writes its JSON next to the audio file in
// outDir.
func (t Transcriber) Transcribe(ctx context.Context, requestID, audioPath, outDir string) (string, error) {
	binary, err := lookupWhisper()
	if err != nil {
		return "", errors.NewUnavailableDependencyError("whisper binary not found in PATH", err)
	}
	model := t.Model
	if model == "" {
		model = defaultWhisperModel
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultWhisperTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, binary,
		audioPath,
		"--model", model,
		"--language", whisperLanguage,
		"--output_format", "json",
		"--output_dir", outDir,
		"--fp16", "False",
	)
	if err := subprocess.LogOutputs(cmd); err != nil {
		return "", errors.NewTranscriptionError("failed to wire whisper output pipes", err)
	}

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.NewTimeoutError(fmt.Sprintf("whisper timed out after %s", timeout), err)
		}
		return "", errors.NewTranscriptionError(fmt.Sprintf("whisper failed on %s", filepath.Base(audioPath)), err)
	}
	log.Log(requestID, "transcribed segment", "audio", filepath.Base(audioPath), "model", model, "duration", time.Since(start))

	return readWhisperText(whisperJSONPath(audioPath, outDir))
}

// GenerateSubtitles runs speech-to-text over a whole video file and returns
// the path of the SRT whisper wrote into outDir. The CLI decodes the media
// itself, so no separate audio extraction pass is needed. An empty language
// falls back to the transcription default.
func (t Transcriber) GenerateSubtitles(ctx context.Context, requestID, videoPath, outDir, language string) (string, error) {
	binary, err := lookupWhisper()
	if err != nil {
		return "", errors.NewUnavailableDependencyError("whisper binary not found in PATH", err)
	}
	model := t.Model
	if model == "" {
		model = defaultWhisperModel
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultWhisperTimeout
	}
	if language == "" {
		language = whisperLanguage
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, binary,
		videoPath,
		"--model", model,
		"--language", language,
		"--output_format", "srt",
		"--output_dir", outDir,
		"--fp16", "False",
	)
	if err := subprocess.LogOutputs(cmd); err != nil {
		return "", errors.NewTranscriptionError("failed to wire whisper output pipes", err)
	}

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.NewTimeoutError(fmt.Sprintf("subtitle generation timed out after %s", timeout), err)
		}
		return "", errors.NewTranscriptionError(fmt.Sprintf("whisper failed on %s", filepath.Base(videoPath)), err)
	}

	srtPath := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))+".srt")
	if info, err := os.Stat(srtPath); err != nil || info.Size() == 0 {
		return "", errors.NewTranscriptionError("whisper wrote no srt file", err)
	}
	log.Log(requestID, "generated subtitles", "srt", filepath.Base(srtPath), "model", model, "language", language, "duration", time.Since(start))
	return srtPath, nil
}

// whisperJSONPath is where the CLI writes its result: the audio basename
// with a .json extension, inside the output dir.
func whisperJSONPath(audioPath, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return filepath.Join(outDir, base+".json")
}

func readWhisperText(jsonPath string) (string, error) {
	contents, err := os.ReadFile(jsonPath)
	if err != nil {
		return "", errors.NewTranscriptionError("whisper wrote no result file", err)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(contents, &result); err != nil {
		return "", errors.NewTranscriptionError("unparseable whisper result", err)
	}
	return strings.TrimSpace(result.Text), nil
}
