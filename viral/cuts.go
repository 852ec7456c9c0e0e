package viral

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// CutPoint is a recommended trim position inside a clip. PeakEnd cuts land
// right after an energy spike, ValleyStart cuts land where energy is about
// to rise again.
type CutPoint struct {
	Time       float64 `json:"time"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

const (
	CutPeakEnd     = "peak_end"
	CutValleyStart = "valley_start"

	secondsPerSegment = 5.0
	maxCutPoints      = 10
)

// segmentTranscript splits the transcript into roughly five-second windows
// by word count. Whisper segment timestamps are gone by the time a clip is
// graded, so an even speech rate is assumed.
func segmentTranscript(transcript string, duration float64) []string {
	words := strings.Fields(transcript)
	if len(words) == 0 {
		return nil
	}
	count := 1
	if duration > 0 {
		count = int(math.Round(duration / secondsPerSegment))
	}
	if count < 3 {
		count = 3
	}
	if count > 20 {
		count = 20
	}
	if count > len(words) {
		count = len(words)
	}

	segments := make([]string, 0, count)
	for i := 0; i < count; i++ {
		lo := i * len(words) / count
		hi := (i + 1) * len(words) / count
		segments = append(segments, strings.Join(words[lo:hi], " "))
	}
	return segments
}

func segmentEnergies(segments []string) []float64 {
	energies := make([]float64, len(segments))
	for i, segment := range segments {
		energies[i] = segmentEnergy(segment)
	}
	return energies
}

// segmentEnergy scores one window from exclamations, questions, shouted
// tokens and intensity words, normalized by window length.
func segmentEnergy(segment string) float64 {
	words := strings.Fields(segment)
	if len(words) == 0 {
		return 0
	}
	var raw float64
	raw += 0.15 * float64(strings.Count(segment, "!"))
	raw += 0.10 * float64(strings.Count(segment, "?"))
	for _, word := range words {
		if isShouted(word) {
			raw += 0.15
		}
	}
	raw += 0.20 * float64(countMatches(segment, intensityWords))
	return clamp(raw/(float64(len(words))/10+1), 0, 1)
}

func isShouted(word string) bool {
	cleaned := strings.Trim(word, ".,!?¡¿;:\"")
	if len([]rune(cleaned)) < 3 {
		return false
	}
	var letters int
	for _, r := range cleaned {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return letters >= 3
}

func energyVariance(energies []float64) float64 {
	if len(energies) < 2 {
		return 0
	}
	var mean float64
	for _, e := range energies {
		mean += e
	}
	mean /= float64(len(energies))

	var variance float64
	for _, e := range energies {
		variance += (e - mean) * (e - mean)
	}
	variance /= float64(len(energies))
	return clamp(math.Sqrt(variance)*2, 0, 1)
}

// cutPoints walks the energy curve. A local maximum above 0.5 suggests
// cutting right after the spike; a local minimum whose neighbors rise and
// whose next segment clears 0.4 suggests starting a new beat there. The
// strongest ten win.
func cutPoints(energies []float64, duration float64) []CutPoint {
	if len(energies) < 3 || duration <= 0 {
		return nil
	}
	segmentLength := duration / float64(len(energies))

	var cuts []CutPoint
	for i := 1; i < len(energies)-1; i++ {
		prev, cur, next := energies[i-1], energies[i], energies[i+1]
		switch {
		case cur > prev && cur > next && cur > 0.5:
			cuts = append(cuts, CutPoint{
				Time:       float64(i+1) * segmentLength,
				Type:       CutPeakEnd,
				Confidence: cur,
			})
		case cur < prev && cur < next && next > 0.4:
			cuts = append(cuts, CutPoint{
				Time:       float64(i) * segmentLength,
				Type:       CutValleyStart,
				Confidence: next,
			})
		}
	}

	sort.Slice(cuts, func(i, j int) bool { return cuts[i].Confidence > cuts[j].Confidence })
	if len(cuts) > maxCutPoints {
		cuts = cuts[:maxCutPoints]
	}
	return cuts
}
