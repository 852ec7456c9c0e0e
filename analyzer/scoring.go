package analyzer

import (
	"math"
	"regexp"
	"strings"
)

// Pattern families for emotional-intensity scoring. Transcripts come out of
// whisper in Spanish with the occasional English loan phrase, so both are
// matched. Weights do not need to sum to 1; the result is clamped.
type patternFamily struct {
	name     string
	weight   float64
	patterns []*regexp.Regexp
}

var emotionalFamilies = []patternFamily{
	{
		name:   "hook",
		weight: 0.30,
		patterns: compilePatterns(
			`no (vas|van) a creer`,
			`no (puedo|podía) creer`,
			`(mira|miren|escucha|escuchen) esto`,
			`lo que (pasó|descubrí|nadie te dice)`,
			`te voy a (contar|enseñar|mostrar)`,
			`you won'?t believe`,
			`wait for it`,
			`watch this`,
		),
	},
	{
		name:   "dramatic",
		weight: 0.25,
		patterns: compilePatterns(
			`de repente`,
			`en ese momento`,
			`y entonces`,
			`nunca (pensé|imaginé|esperé)`,
			`no sabía que`,
			`hasta que`,
			`all of a sudden`,
			`plot twist`,
		),
	},
	{
		name:   "extreme",
		weight: 0.25,
		patterns: compilePatterns(
			`increíble(mente)?`,
			`impresionante`,
			`(una |la )?locura`,
			`brutal`,
			`no puede ser`,
			`qué (fuerte|barbaridad)`,
			`me (muero|morí) de (risa|miedo)`,
			`insane`,
			`unbelievable`,
			`mind.?blow(n|ing)`,
		),
	},
	{
		name:   "cta",
		weight: 0.10,
		patterns: compilePatterns(
			`comparte`,
			`etiqueta a`,
			`(dale|deja tu) like`,
			`sígueme`,
			`suscríbete`,
			`comenta`,
			`share this`,
			`tag (a friend|someone)`,
		),
	},
	{
		name:   "urgency",
		weight: 0.15,
		patterns: compilePatterns(
			`ahora (mismo)?`,
			`antes de que`,
			`(última|ultima) oportunidad`,
			`no te (pierdas|puedes perder)`,
			`urgente`,
			`ya mismo`,
			`right now`,
			`before it'?s too late`,
		),
	},
	{
		name:   "contrast",
		weight: 0.15,
		patterns: compilePatterns(
			`todo el mundo (cree|piensa|dice)`,
			`nadie (sabe|te dice|habla de)`,
			`la verdad es que`,
			`en realidad`,
			`al contrario`,
			`pero lo que no saben`,
			`everyone thinks`,
			`nobody tells you`,
		),
	},
}

// antiViralPatterns flag filler openings that kill retention in the first
// seconds of a clip.
var antiViralPatterns = compilePatterns(
	`^\s*(bueno|vale|okay|ok|entonces|pues|eh+|em+|este)\b`,
	`como (iba|decía) diciendo`,
	`donde (me|nos) quedamos`,
	`un momento`,
	`espera un segundo`,
	`perdón por`,
	`as i was saying`,
)

// conversationFlowPatterns reward connected, structured speech: causal
// links, sequencing, direct address and questions that pull a viewer along.
var conversationFlowPatterns = compilePatterns(
	`\b(porque|así que|por eso|entonces|o sea|es decir)\b`,
	`\b(primero|segundo|después|luego|al final|finalmente)\b`,
	`\b(imagínate|fíjate|piénsalo|dime|atención)\b`,
	`\?`,
	`\b(because|so that'?s why|first of all|and then)\b`,
)

func compilePatterns(exprs ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		patterns[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return patterns
}

// Component weights of the final candidate score.
const (
	weightBase        = 0.35
	weightEmotional   = 0.25
	weightClarity     = 0.15
	weightFlow        = 0.15
	weightDurationOpt = 0.10

	confidenceBoost = 0.20
)

var durationVariantFactors = []float64{1.25, 0.85, 1.0}

// scoreCandidates computes component scores for every candidate and expands
// each into duration variants so selection can trade length against score.
func scoreCandidates(candidates []Candidate, sourceDuration float64, t Tuning) []Candidate {
	scored := make([]Candidate, 0, len(candidates)*len(durationVariantFactors))
	for _, candidate := range candidates {
		for _, factor := range durationVariantFactors {
			variant, ok := durationVariant(candidate, factor, sourceDuration, t)
			if !ok {
				continue
			}
			scoreCandidate(&variant, t)
			scored = append(scored, variant)
		}
	}
	return scored
}

// durationVariant recenters the candidate window on its midpoint with the
// duration scaled by factor, clamped to the absolute bounds and the source.
func durationVariant(c Candidate, factor, sourceDuration float64, t Tuning) (Candidate, bool) {
	duration := clamp(c.Duration()*factor, t.AbsoluteMin, t.AbsoluteMax)
	center := (c.Start + c.End) / 2
	start := center - duration/2
	end := center + duration/2
	if start < 0 {
		start, end = 0, duration
	}
	if end > sourceDuration {
		end = sourceDuration
		start = math.Max(0, end-duration)
	}
	if end-start <= 0 {
		return Candidate{}, false
	}
	c.Start, c.End = start, end
	return c, true
}

func scoreCandidate(c *Candidate, t Tuning) {
	duration := c.Duration()
	c.EmotionalIntensity = emotionalIntensity(c.Transcription)
	c.SpeechClarity = speechClarity(c.Transcription, duration)
	c.ConversationFlow = conversationFlow(c.Transcription)
	c.KeywordDensity = keywordDensity(c.Transcription, duration)

	final := weightBase*c.BaseScore +
		weightEmotional*c.EmotionalIntensity +
		weightClarity*c.SpeechClarity +
		weightFlow*c.ConversationFlow +
		weightDurationOpt*durationOptimality(duration, t)
	final *= 1 + confidenceBoost*c.Confidence
	c.FinalScore = clamp(final, 0, 1)
}

// emotionalIntensity scores the presence of viral speech patterns. A single
// hit earns half a family's weight, two or more the full weight. Filler
// openings are penalized.
func emotionalIntensity(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	var score float64
	for _, family := range emotionalFamilies {
		var hits int
		for _, pattern := range family.patterns {
			hits += len(pattern.FindAllStringIndex(text, -1))
		}
		if hits > 0 {
			score += family.weight * math.Min(1, float64(hits)/2)
		}
	}
	for _, pattern := range antiViralPatterns {
		if pattern.MatchString(text) {
			score -= 0.15
		}
	}
	return clamp(score, 0, 1)
}

// speechClarity rates pacing. Two to four words per second reads as clear,
// energetic speech; outside that band the score tapers. Varied vocabulary
// earns up to a 20% bonus.
func speechClarity(text string, duration float64) float64 {
	words := strings.Fields(text)
	if len(words) == 0 || duration <= 0 {
		return 0
	}
	wps := float64(len(words)) / duration

	var base float64
	switch {
	case wps >= 2 && wps <= 4:
		base = 1
	case wps < 2:
		base = wps / 2
	default:
		base = math.Max(0, 1-(wps-4)/4)
	}

	unique := make(map[string]struct{}, len(words))
	for _, word := range words {
		unique[strings.ToLower(strings.Trim(word, ".,!?¡¿;:"))] = struct{}{}
	}
	diversity := float64(len(unique)) / float64(len(words))
	return clamp(base*(1+0.2*diversity), 0, 1)
}

// conversationFlow measures how connected the speech is, normalized by
// length so long rambling windows do not win on volume alone.
func conversationFlow(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	var hits int
	for _, pattern := range conversationFlowPatterns {
		hits += len(pattern.FindAllStringIndex(text, -1))
	}
	return clamp(float64(hits)/(float64(words)/10+1), 0, 1)
}

func keywordDensity(text string, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(len(strings.Fields(text))) / duration
}

// durationOptimality is 1 inside the optimal band and tapers linearly to 0
// at the absolute bounds.
func durationOptimality(duration float64, t Tuning) float64 {
	switch {
	case duration >= t.OptimalMin && duration <= t.OptimalMax:
		return 1
	case duration < t.OptimalMin:
		if t.OptimalMin == t.AbsoluteMin {
			return 0
		}
		return clamp((duration-t.AbsoluteMin)/(t.OptimalMin-t.AbsoluteMin), 0, 1)
	default:
		if t.AbsoluteMax == t.OptimalMax {
			return 0
		}
		return clamp((t.AbsoluteMax-duration)/(t.AbsoluteMax-t.OptimalMax), 0, 1)
	}
}
