package analyzer

import (
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Pace clips are normalized to when deriving length from word count.
const targetWordsPerSecond = 3.0

var suggestedDurationPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:seconds?|segundos?|secs?|s\b)`)

// assignDuration fixes the final window of a selected candidate. The model's
// own optimal_duration wins; otherwise the target is derived from the reason
// text, the speaking pace, or the middle of the optimal band. A
// deterministic jitter keeps a batch of clips from all landing on identical
// lengths.
func assignDuration(c Candidate, index int, sourceDuration float64, t Tuning) (float64, float64) {
	target := c.OptimalDuration
	if target <= 0 {
		target = derivedDuration(c, t)
	}
	target *= jitterFactor(c, index)
	target = clamp(target, t.AbsoluteMin, t.AbsoluteMax)

	center := (c.Start + c.End) / 2
	start := center - target/2
	end := center + target/2
	if start < 0 {
		start, end = 0, target
	}
	if end > sourceDuration {
		end = sourceDuration
		start = math.Max(0, end-target)
	}
	return start, end
}

func derivedDuration(c Candidate, t Tuning) float64 {
	if suggested := suggestedDuration(c.Reason); suggested > 0 {
		return suggested
	}
	if words := len(strings.Fields(c.Transcription)); words > 0 {
		return clamp(float64(words)/targetWordsPerSecond, t.OptimalMin, t.OptimalMax)
	}
	return (t.OptimalMin + t.OptimalMax) / 2
}

// suggestedDuration picks an explicit length out of model prose like
// "works best as a 45 second clip".
func suggestedDuration(reason string) float64 {
	match := suggestedDurationPattern.FindStringSubmatch(reason)
	if match == nil {
		return 0
	}
	seconds, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return float64(seconds)
}

// jitterFactor derives a stable ±5-8% length adjustment from the window and
// its position in the output, so identical windows at different positions
// still come out distinguishable and reruns stay reproducible.
func jitterFactor(c Candidate, index int) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%.3f-%.3f-%d", c.Start, c.End, index)
	sum := h.Sum64()

	magnitude := 0.05 + float64(sum%1000)/1000*0.03
	if sum&(1<<63) != 0 {
		return 1 - magnitude
	}
	return 1 + magnitude
}

// backupDuration interpolates clip length by distance from the middle of
// the batch: clips near the center get the long end of the optimal band,
// clips near the edges the short end.
func backupDuration(index, total int, t Tuning) float64 {
	duration := (t.OptimalMin + t.OptimalMax) / 2
	if total > 1 {
		half := float64(total-1) / 2
		centerDistance := math.Abs(float64(index)-half) / half
		duration = t.OptimalMax - (t.OptimalMax-t.OptimalMin)*centerDistance
	}
	duration *= jitterFactor(Candidate{Start: float64(index), End: float64(total)}, index)
	return clamp(duration, t.AbsoluteMin, t.AbsoluteMax)
}
