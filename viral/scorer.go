package viral

import (
	"math"
	"sort"
	"strings"
)

// Metrics is the grading vector for one clip. Every axis lands in [0,1];
// ViralityCoefficient combines them and Recommendation maps the coefficient
// to an editorial tier.
type Metrics struct {
	EmotionalImpact      float64    `json:"emotional_impact"`
	Memorability         float64    `json:"memorability"`
	Shareability         float64    `json:"shareability"`
	EngagementPotential  float64    `json:"engagement_potential"`
	HookStrength         float64    `json:"hook_strength"`
	RetentionProbability float64    `json:"retention_probability"`
	ViralityCoefficient  float64    `json:"virality_coefficient"`
	Recommendation       string     `json:"recommendation"`
	OptimalCutPoints     []CutPoint `json:"optimal_cut_points"`
}

// Retention optimum band in seconds.
const (
	retentionOptimalMin = 15.0
	retentionOptimalMax = 45.0
)

// Score grades a transcribed clip. duration is the clip length in seconds;
// a zero duration is tolerated and only hurts the axes that depend on time.
func Score(transcript string, duration float64) Metrics {
	segments := segmentTranscript(transcript, duration)
	energies := segmentEnergies(segments)

	m := Metrics{
		EmotionalImpact:      emotionalImpact(transcript, energies),
		Memorability:         memorability(transcript),
		Shareability:         shareability(transcript),
		EngagementPotential:  engagementPotential(transcript),
		HookStrength:         hookStrength(transcript, duration),
		RetentionProbability: retentionProbability(transcript, duration, energies),
		OptimalCutPoints:     cutPoints(energies, duration),
	}
	m.ViralityCoefficient = viralityCoefficient(m)
	m.Recommendation = recommendation(m.ViralityCoefficient)
	return m
}

// Axis weights of the virality coefficient.
const (
	weightHook         = 0.25
	weightEmotional    = 0.20
	weightShareability = 0.20
	weightEngagement   = 0.15
	weightMemorability = 0.10
	weightRetention    = 0.10
)

// viralityCoefficient combines the axes. A strong hook on top of strong
// emotion compounds, as does shareability on top of engagement; two or more
// weak primary axes drag the whole clip down.
func viralityCoefficient(m Metrics) float64 {
	v := weightHook*m.HookStrength +
		weightEmotional*m.EmotionalImpact +
		weightShareability*m.Shareability +
		weightEngagement*m.EngagementPotential +
		weightMemorability*m.Memorability +
		weightRetention*m.RetentionProbability

	if m.HookStrength > 0.7 && m.EmotionalImpact > 0.6 {
		v *= 1.3
	}
	if m.Shareability > 0.6 && m.EngagementPotential > 0.6 {
		v *= 1.2
	}
	var weak int
	for _, axis := range []float64{m.HookStrength, m.EmotionalImpact, m.Shareability} {
		if axis < 0.3 {
			weak++
		}
	}
	if weak >= 2 {
		v *= 0.7
	}
	return clamp(v, 0, 1)
}

func recommendation(virality float64) string {
	switch {
	case virality >= 0.8:
		return "publish_now"
	case virality >= 0.65:
		return "strong_candidate"
	case virality >= 0.45:
		return "worth_testing"
	case virality >= 0.25:
		return "needs_stronger_hook"
	default:
		return "skip"
	}
}

// emotionalImpact normalizes high-intensity hits by word count and boosts
// clips whose energy varies across segments; flat delivery reads as
// monotone even when the words are loud.
func emotionalImpact(text string, energies []float64) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	hits := countMatches(text, highIntensityPatterns)
	base := clamp(float64(hits)/(float64(words)/25+1), 0, 0.8)
	return clamp(base*(1+0.5*energyVariance(energies)), 0, 1)
}

func memorability(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	var score float64
	score += 0.40 * math.Min(1, float64(countMatches(text, memorabilitySignals))/2)
	score += 0.30 * math.Min(1, float64(len(quotedPassage.FindAllString(text, -1))))
	score += 0.30 * recurringWordRatio(words)
	return clamp(score, 0, 1)
}

func shareability(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	var score float64
	score += 0.35 * math.Min(1, float64(countMatches(text, shareTriggers))/2)
	score += 0.25 * math.Min(1, float64(countMatches(text, controversyCues)))
	score += 0.25 * math.Min(1, float64(countMatches(text, infoValueCues))/2)
	score += 0.15 * questionDensity(text)
	return clamp(score, 0, 1)
}

func engagementPotential(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	var score float64
	score += 0.60 * math.Min(1, float64(countMatches(text, engagementTriggers))/2)
	score += 0.40 * math.Min(1, float64(countMatches(text, relatableTemplates))/2)
	if conversationalStructure(text) {
		score *= 1.3
	}
	return clamp(score, 0, 1)
}

// conversationalStructure is true when at least two distinct structure
// kinds appear, e.g. a contrast plus a causal link.
func conversationalStructure(text string) bool {
	var kinds int
	for _, patterns := range structureFamilies {
		if anyMatch(text, patterns) {
			kinds++
		}
	}
	return kinds >= 2
}

// hookStrength grades only the opening of the clip: the words a viewer
// hears in the first five seconds, estimated from the average speech rate.
func hookStrength(text string, duration float64) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	opening := len(words)
	if duration > 5 {
		wps := float64(len(words)) / duration
		opening = int(math.Ceil(wps * 5))
		if opening < 5 {
			opening = 5
		}
		if opening > len(words) {
			opening = len(words)
		}
	}
	head := strings.Join(words[:opening], " ")

	var score float64
	score += 0.50 * math.Min(1, float64(countMatches(head, hookPatterns)))
	score += 0.30 * math.Min(1, float64(countMatches(head, curiosityBoosters)))
	if strings.HasPrefix(strings.TrimSpace(text), "¿") || strings.Contains(head, "?") {
		score += 0.20
	}
	return clamp(score, 0, 1)
}

// retentionProbability mixes the duration optimum with how evenly
// interesting segments are spread and how dense the narrative tension is.
func retentionProbability(text string, duration float64, energies []float64) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}

	var durationScore float64
	switch {
	case duration >= retentionOptimalMin && duration <= retentionOptimalMax:
		durationScore = 1
	case duration > 0 && duration < retentionOptimalMin:
		durationScore = duration / retentionOptimalMin
	case duration > retentionOptimalMax:
		durationScore = math.Max(0, 1-(duration-retentionOptimalMax)/60)
	}

	var interesting int
	for _, energy := range energies {
		if energy > 0.3 {
			interesting++
		}
	}
	var spread float64
	if len(energies) > 0 {
		spread = float64(interesting) / float64(len(energies))
	}

	tension := clamp(float64(countMatches(text, narrativeTension))/(float64(words)/100+1), 0, 1)

	return clamp(0.45*durationScore+0.30*spread+0.25*tension, 0, 1)
}

func questionDensity(text string) float64 {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	if len(sentences) == 0 {
		return 0
	}
	questions := strings.Count(text, "?")
	return clamp(float64(questions)/float64(len(sentences))*2, 0, 1)
}

// recurringWordRatio measures how much of the vocabulary repeats: content
// words of five or more characters that show up three or more times.
func recurringWordRatio(words []string) float64 {
	counts := make(map[string]int)
	for _, word := range words {
		cleaned := normalizeWord(word)
		if len([]rune(cleaned)) >= 5 {
			counts[cleaned]++
		}
	}
	if len(counts) == 0 {
		return 0
	}
	var recurring int
	for _, count := range counts {
		if count >= 3 {
			recurring++
		}
	}
	return clamp(float64(recurring)/5, 0, 1)
}

// Keywords returns the most frequent content words of the transcript, most
// frequent first, for clip tagging. Stopwords and short words are skipped.
func Keywords(transcript string, limit int) []string {
	counts := make(map[string]int)
	for _, word := range strings.Fields(transcript) {
		cleaned := normalizeWord(word)
		if len([]rune(cleaned)) < 5 {
			continue
		}
		if _, stop := keywordStopwords[cleaned]; stop {
			continue
		}
		counts[cleaned]++
	}

	keywords := make([]string, 0, len(counts))
	for word := range counts {
		keywords = append(keywords, word)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.Trim(word, ".,!?¡¿;:\"«»“”()"))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
