package analyzer

import (
	"fmt"
	"strings"
)

// HighlightSystemPrompt instructs the reasoning model to return machine
// readable highlight proposals. The schema mirrors rawHighlight; anything
// outside the JSON object is discarded by the parser.
const HighlightSystemPrompt = `You are a short-form video editor hunting for viral moments in long recordings.

Task
- Read the transcribed segments below. Each segment is prefixed with its index and its absolute position in the source video.
- Propose the strongest clip candidates: hooks, emotional peaks, bold claims, confessions, conflict, humor, surprising reveals.
- Prefer self-contained moments a viewer understands without extra context.

Rules
- Timestamps are absolute positions in the source video, never offsets inside a segment.
- start_time and end_time accept "hh:mm:ss", "mm:ss" or plain seconds.
- Score each candidate from 0.0 to 1.0 for viral potential, and report your confidence from 0.0 to 1.0.
- If a moment plays better shorter or longer, set optimal_duration in seconds.
- Copy the exact transcript words of the moment into transcription.
- Respond with STRICT JSON only. No prose, no Markdown fences.

Response schema
{
  "highlights": [
    {
      "start_time": "mm:ss",
      "end_time": "mm:ss",
      "score": 0.8,
      "confidence": 0.9,
      "reason": "why this moment works",
      "transcription": "exact words spoken",
      "segment_index": 0,
      "optimal_duration": 45
    }
  ]
}`

// buildPrompt renders the full request: instructions, tuning hints and the
// transcript corpus.
func buildPrompt(segments []TranscriptSegment, t Tuning) string {
	var b strings.Builder
	b.WriteString(HighlightSystemPrompt)
	b.WriteString("\n\nConstraints\n")
	fmt.Fprintf(&b, "- Propose at most %d candidates.\n", t.MaxClips)
	fmt.Fprintf(&b, "- Ideal clip length is %.0f to %.0f seconds; never shorter than %.0f or longer than %.0f seconds.\n",
		t.OptimalMin, t.OptimalMax, t.AbsoluteMin, t.AbsoluteMax)
	b.WriteString("\nTranscribed segments\n")
	for _, segment := range segments {
		fmt.Fprintf(&b, "[segment %d | %s - %s] %s\n",
			segment.Index, formatClock(segment.Start), formatClock(segment.End), segment.Text)
	}
	return b.String()
}

// formatClock renders seconds as mm:ss, or hh:mm:ss past the hour mark.
func formatClock(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
