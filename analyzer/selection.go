package analyzer

import (
	"math"
	"sort"
	"strings"
)

const (
	similarityPenalty = 0.15
	maxDiversityBonus = 0.20

	// Near-duplicate transcripts get a tighter overlap budget.
	highSimilarity = 0.6
	tightOverlap   = 0.35
	looseOverlap   = 0.5
)

// Thresholds tried in order when nothing clears the configured one.
var relaxedThresholds = []float64{0.55, 0.5, 0.45, 0.4, 0.35}

// selectHighlights picks a pairwise-compatible, high-scoring subset of the
// candidates. A greedy pass is the baseline; a DP pass that also accounts
// for transcript similarity and vocabulary diversity replaces it when it
// finds a better set. The result is in time order.
func selectHighlights(candidates []Candidate, t Tuning) []Candidate {
	viral := aboveThreshold(candidates, t.ScoreThreshold)
	for _, threshold := range relaxedThresholds {
		if len(viral) > 0 {
			break
		}
		viral = aboveThreshold(candidates, threshold)
	}
	if len(viral) == 0 {
		viral = topByScore(candidates)
	}
	if len(viral) == 0 {
		return nil
	}

	limit := len(viral)
	if limit < 5 {
		limit = 5
	}
	if t.MaxClips < limit {
		limit = t.MaxClips
	}

	greedy := greedySelect(viral, limit, t)
	selected := greedy
	if dp := dpSelect(viral, limit, t); combinedScore(dp) > combinedScore(greedy) {
		selected = dp
	}

	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Start < selected[j].Start })
	return selected
}

func aboveThreshold(candidates []Candidate, threshold float64) []Candidate {
	var out []Candidate
	for _, candidate := range candidates {
		if candidate.FinalScore >= threshold {
			out = append(out, candidate)
		}
	}
	return out
}

// topByScore is the everything-scored-low fallback: the better half of the
// pool, at least five when available.
func topByScore(candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return nil
	}
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FinalScore > sorted[j].FinalScore })
	n := (len(sorted) + 1) / 2
	if n < 5 {
		n = 5
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// compatible reports whether two windows may coexist in one output set.
func compatible(a, b Candidate, t Tuning) bool {
	if a.Start > b.Start {
		a, b = b, a
	}
	overlap := math.Min(a.End, b.End) - b.Start
	if overlap < 0 {
		overlap = 0
	}
	longest := math.Max(a.Duration(), b.Duration())
	var ratio float64
	if longest > 0 {
		ratio = overlap / longest
	}
	allowed := looseOverlap
	if jaccard(a.Transcription, b.Transcription) >= highSimilarity {
		allowed = tightOverlap
	}
	if ratio <= allowed {
		return true
	}
	return b.Start-a.End >= t.MinSeparation
}

func compatibleWithAll(candidate Candidate, selected []Candidate, t Tuning) bool {
	for _, other := range selected {
		if !compatible(candidate, other, t) {
			return false
		}
	}
	return true
}

func greedySelect(viral []Candidate, limit int, t Tuning) []Candidate {
	byScore := make([]Candidate, len(viral))
	copy(byScore, viral)
	sort.SliceStable(byScore, func(i, j int) bool { return byScore[i].FinalScore > byScore[j].FinalScore })

	var selected []Candidate
	for _, candidate := range byScore {
		if len(selected) >= limit {
			break
		}
		if compatibleWithAll(candidate, selected, t) {
			selected = append(selected, candidate)
		}
	}
	return selected
}

type dpCell struct {
	score float64
	prev  int
	set   bool
}

// dpSelect maximizes the combined set score over chains of pairwise
// compatible candidates in start order. dp[i][k] is the best chain of
// exactly k candidates ending at i; chains are reconstructed by walking
// predecessor indices rather than copying slices per cell.
func dpSelect(viral []Candidate, limit int, t Tuning) []Candidate {
	n := len(viral)
	if n == 0 || limit <= 0 {
		return nil
	}
	byStart := make([]Candidate, n)
	copy(byStart, viral)
	sort.SliceStable(byStart, func(i, j int) bool { return byStart[i].Start < byStart[j].Start })

	dp := make([][]dpCell, n)
	for i := range dp {
		dp[i] = make([]dpCell, limit+1)
		dp[i][1] = dpCell{score: byStart[i].FinalScore, prev: -1, set: true}
	}

	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			for k := 2; k <= limit; k++ {
				if !dp[j][k-1].set {
					continue
				}
				chain := chainOf(byStart, dp, j, k-1)
				if !compatibleWithAll(byStart[i], chain, t) {
					continue
				}
				score := dp[j][k-1].score + additionScore(byStart[i], chain)
				if !dp[i][k].set || score > dp[i][k].score {
					dp[i][k] = dpCell{score: score, prev: j, set: true}
				}
			}
		}
	}

	bestScore := math.Inf(-1)
	bestI, bestK := -1, 0
	for i := 0; i < n; i++ {
		for k := 1; k <= limit; k++ {
			if dp[i][k].set && dp[i][k].score > bestScore {
				bestScore, bestI, bestK = dp[i][k].score, i, k
			}
		}
	}
	if bestI < 0 {
		return nil
	}
	return chainOf(byStart, dp, bestI, bestK)
}

func chainOf(byStart []Candidate, dp [][]dpCell, i, k int) []Candidate {
	chain := make([]Candidate, 0, k)
	for i >= 0 && k >= 1 {
		chain = append(chain, byStart[i])
		i, k = dp[i][k].prev, k-1
	}
	for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
		chain[l], chain[r] = chain[r], chain[l]
	}
	return chain
}

// additionScore is the marginal value of appending candidate c to an
// accepted prefix: its own score, minus a penalty for sounding like what is
// already selected, plus a bonus for bringing new vocabulary.
func additionScore(c Candidate, prefix []Candidate) float64 {
	score := c.FinalScore
	for _, member := range prefix {
		score -= similarityPenalty * jaccard(member.Transcription, c.Transcription)
	}
	return score + diversityBonus(c, prefix)
}

func diversityBonus(c Candidate, prefix []Candidate) float64 {
	if len(prefix) == 0 {
		return 0
	}
	current := make(map[string]struct{})
	for _, member := range prefix {
		for token := range tokenSet(member.Transcription) {
			current[token] = struct{}{}
		}
	}
	if len(current) == 0 {
		return 0
	}
	var fresh int
	for token := range tokenSet(c.Transcription) {
		if _, ok := current[token]; !ok {
			fresh++
		}
	}
	return math.Min(maxDiversityBonus, float64(fresh)/float64(len(current)))
}

// combinedScore evaluates a whole set with the same marginal formula the DP
// uses, inserting in time order, so greedy and DP results are comparable.
func combinedScore(selected []Candidate) float64 {
	if len(selected) == 0 {
		return math.Inf(-1)
	}
	ordered := make([]Candidate, len(selected))
	copy(ordered, selected)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })
	var total float64
	for i, candidate := range ordered {
		total += additionScore(candidate, ordered[:i])
	}
	return total
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		if token := strings.Trim(field, ".,!?¡¿;:\"'()"); token != "" {
			set[token] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	var intersection int
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}
