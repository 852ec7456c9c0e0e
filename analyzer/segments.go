package analyzer

import "math"

// Hard ceiling on contiguous segmentation. force_full_coverage on a
// ten-hour source must not fan out thousands of whisper runs.
const fullCoverageCap = 300

// Segment is one transcription window of the source timeline.
type Segment struct {
	Index    int
	Start    float64
	Duration float64
}

func (s Segment) End() float64 {
	return s.Start + s.Duration
}

// planSegments decides which windows of the source get transcribed. Short
// sources are covered contiguously; long ones get max_segments windows
// spread evenly so the analyzer samples the whole timeline instead of only
// the first minutes.
func planSegments(totalDuration float64, t Tuning) []Segment {
	if totalDuration <= 0 {
		return nil
	}
	window := t.SegmentDuration

	if t.ForceFullCoverage {
		return contiguousSegments(totalDuration, window, fullCoverageCap)
	}
	if totalDuration <= window*float64(t.MaxSegments) {
		return contiguousSegments(totalDuration, window, t.MaxSegments)
	}

	step := totalDuration / float64(t.MaxSegments)
	segments := make([]Segment, 0, t.MaxSegments)
	for i := 0; i < t.MaxSegments; i++ {
		start := float64(i) * step
		segments = append(segments, Segment{
			Index:    i,
			Start:    start,
			Duration: math.Min(window, totalDuration-start),
		})
	}
	return segments
}

func contiguousSegments(totalDuration, window float64, limit int) []Segment {
	var segments []Segment
	for start := 0.0; start < totalDuration && len(segments) < limit; start += window {
		segments = append(segments, Segment{
			Index:    len(segments),
			Start:    start,
			Duration: math.Min(window, totalDuration-start),
		})
	}
	return segments
}
