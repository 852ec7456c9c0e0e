package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/reframelabs/reframe-api/errors"
)

// Candidate is a potential clip window before selection. BaseScore and
// Confidence come from the reasoning model; the remaining component scores
// are filled in by scoreCandidates.
type Candidate struct {
	Start           float64
	End             float64
	BaseScore       float64
	Confidence      float64
	Reason          string
	Transcription   string
	OptimalDuration float64

	EmotionalIntensity float64
	SpeechClarity      float64
	KeywordDensity     float64
	ConversationFlow   float64
	FinalScore         float64
}

func (c Candidate) Duration() float64 {
	return c.End - c.Start
}

type highlightEnvelope struct {
	Highlights []rawHighlight `json:"highlights"`
}

// rawHighlight is what we ask the model for. Every field is optional
// because models routinely drop or rename half of them.
type rawHighlight struct {
	StartTime       flexTime `json:"start_time"`
	EndTime         flexTime `json:"end_time"`
	Duration        flexTime `json:"duration"`
	OptimalDuration flexTime `json:"optimal_duration"`
	SegmentIndex    *int     `json:"segment_index"`
	Score           float64  `json:"score"`
	Confidence      float64  `json:"confidence"`
	Reason          string   `json:"reason"`
	Transcription   string   `json:"transcription"`
}

// flexTime accepts a JSON number of seconds or a clock string
// ("01:02:03.5", "02:03", "90.5", "90s"). Unparseable values are left
// unset rather than failing the whole response.
type flexTime struct {
	Seconds float64
	Set     bool
}

func (ft *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		seconds, err := ParseClockTime(s)
		if err != nil {
			return nil
		}
		ft.Seconds, ft.Set = seconds, true
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	ft.Seconds, ft.Set = f, true
	return nil
}

// ParseClockTime converts "hh:mm:ss(.ms)", "mm:ss" or plain seconds
// (optionally suffixed with "s") into seconds.
func ParseClockTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		seconds, err := strconv.ParseFloat(strings.TrimSuffix(parts[0], "s"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		return seconds, nil
	case 2, 3:
		var total float64
		for _, part := range parts {
			v, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
			}
			total = total*60 + v
		}
		return total, nil
	default:
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
}

// ExtractJSONObject strips Markdown code fences and returns the outermost
// JSON object embedded in free-form model output.
func ExtractJSONObject(text string) (string, bool) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return cleaned[start : end+1], true
}

// parseHighlightResponse turns raw model output into candidate windows on
// the absolute source timeline. Items we cannot anchor in time are dropped;
// the response as a whole only fails when no usable item survives.
func parseHighlightResponse(text string, segments []TranscriptSegment, sourceDuration float64, t Tuning) ([]Candidate, error) {
	payload, ok := ExtractJSONObject(text)
	if !ok {
		return nil, errors.NewRemoteReasoningError("reasoning response contains no JSON object", nil)
	}
	var envelope highlightEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, errors.NewRemoteReasoningError("reasoning response is not valid JSON", err)
	}

	var candidates []Candidate
	for _, raw := range envelope.Highlights {
		candidate, ok := anchorHighlight(raw, segments, sourceDuration, t)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
	}
	if len(candidates) == 0 {
		return nil, errors.NewRemoteReasoningError("reasoning response contains no usable highlights", nil)
	}
	return candidates, nil
}

// anchorHighlight resolves one raw item to an absolute [start, end) window.
// Items with explicit start/end are taken as absolute source timestamps; a
// bare duration is centered on the item's segment. Windows shorter than the
// absolute minimum are expanded symmetrically.
func anchorHighlight(raw rawHighlight, segments []TranscriptSegment, sourceDuration float64, t Tuning) (Candidate, bool) {
	var start, end float64
	switch {
	case raw.StartTime.Set && raw.EndTime.Set:
		start, end = raw.StartTime.Seconds, raw.EndTime.Seconds
	case raw.StartTime.Set && raw.Duration.Set:
		start, end = raw.StartTime.Seconds, raw.StartTime.Seconds+raw.Duration.Seconds
	case raw.Duration.Set:
		segment, ok := segmentFor(raw.SegmentIndex, segments)
		if !ok {
			return Candidate{}, false
		}
		center := (segment.Start + segment.End) / 2
		start, end = center-raw.Duration.Seconds/2, center+raw.Duration.Seconds/2
	default:
		return Candidate{}, false
	}

	start = clamp(start, 0, sourceDuration)
	end = clamp(end, 0, sourceDuration)
	if end-start < t.AbsoluteMin {
		center := (start + end) / 2
		start = center - t.AbsoluteMin/2
		end = center + t.AbsoluteMin/2
		if start < 0 {
			start, end = 0, math.Min(t.AbsoluteMin, sourceDuration)
		}
		if end > sourceDuration {
			end = sourceDuration
			start = math.Max(0, end-t.AbsoluteMin)
		}
	}
	if end-start <= 0 {
		return Candidate{}, false
	}

	transcription := strings.TrimSpace(raw.Transcription)
	if transcription == "" {
		transcription = transcriptCovering(segments, start, end)
	}
	return Candidate{
		Start:           start,
		End:             end,
		BaseScore:       clamp(raw.Score, 0, 1),
		Confidence:      clamp(raw.Confidence, 0, 1),
		Reason:          strings.TrimSpace(raw.Reason),
		Transcription:   transcription,
		OptimalDuration: raw.OptimalDuration.Seconds,
	}, true
}

func segmentFor(index *int, segments []TranscriptSegment) (TranscriptSegment, bool) {
	if len(segments) == 0 {
		return TranscriptSegment{}, false
	}
	if index == nil {
		return TranscriptSegment{}, false
	}
	for _, segment := range segments {
		if segment.Index == *index {
			return segment, true
		}
	}
	return TranscriptSegment{}, false
}

// transcriptCovering stitches together the transcript text of every segment
// overlapping the window, as a stand-in when the model omits its own.
func transcriptCovering(segments []TranscriptSegment, start, end float64) string {
	var parts []string
	for _, segment := range segments {
		if segment.End <= start || segment.Start >= end {
			continue
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
