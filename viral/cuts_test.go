package viral

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCutPointsPeaksAndValleys(t *testing.T) {
	energies := []float64{0.1, 0.8, 0.1, 0.45, 0.2}
	cuts := cutPoints(energies, 50)

	require.Len(t, cuts, 2)
	// Strongest first: the 0.8 peak, then the valley rising into 0.45.
	require.Equal(t, CutPeakEnd, cuts[0].Type)
	require.InDelta(t, 20.0, cuts[0].Time, 1e-9)
	require.InDelta(t, 0.8, cuts[0].Confidence, 1e-9)

	require.Equal(t, CutValleyStart, cuts[1].Type)
	require.InDelta(t, 20.0, cuts[1].Time, 1e-9)
	require.InDelta(t, 0.45, cuts[1].Confidence, 1e-9)
}

func TestCutPointsIgnoresWeakPeaks(t *testing.T) {
	energies := []float64{0.1, 0.4, 0.1, 0.3, 0.1}
	require.Empty(t, cutPoints(energies, 50))
}

func TestCutPointsCappedAtTen(t *testing.T) {
	energies := make([]float64, 41)
	for i := range energies {
		if i%2 == 1 {
			energies[i] = 0.9
		} else {
			energies[i] = 0.1
		}
	}
	cuts := cutPoints(energies, 200)
	require.Len(t, cuts, maxCutPoints)
	for i := 1; i < len(cuts); i++ {
		require.GreaterOrEqual(t, cuts[i-1].Confidence, cuts[i].Confidence)
	}
}

func TestCutPointsTooFewSegments(t *testing.T) {
	require.Empty(t, cutPoints([]float64{0.9, 0.1}, 10))
	require.Empty(t, cutPoints(nil, 10))
}

func TestSegmentTranscriptWindowCount(t *testing.T) {
	words := strings.Repeat("palabra ", 200)
	require.Len(t, segmentTranscript(words, 60), 12)
	require.Len(t, segmentTranscript(words, 600), 20)
	require.Len(t, segmentTranscript(words, 5), 3)
	require.Empty(t, segmentTranscript("", 60))
}

func TestSegmentTranscriptCoversAllWords(t *testing.T) {
	transcript := "uno dos tres cuatro cinco seis siete ocho nueve diez once doce"
	segments := segmentTranscript(transcript, 20)
	require.Equal(t, strings.Fields(transcript), strings.Fields(strings.Join(segments, " ")))
}

func TestSegmentEnergy(t *testing.T) {
	require.Zero(t, segmentEnergy(""))
	require.Greater(t, segmentEnergy("¡¡ESTO es BRUTAL!! increíble nunca"), segmentEnergy("un comentario tranquilo sin nada especial"))
}

func TestIsShouted(t *testing.T) {
	require.True(t, isShouted("BRUTAL"))
	require.True(t, isShouted("¡WOW!"))
	require.False(t, isShouted("OK"))
	require.False(t, isShouted("Brutal"))
	require.False(t, isShouted("123"))
}

func TestEnergyVariance(t *testing.T) {
	require.Zero(t, energyVariance([]float64{0.5}))
	require.Zero(t, energyVariance([]float64{0.5, 0.5, 0.5}))
	require.Greater(t, energyVariance([]float64{0.1, 0.9, 0.1, 0.9}), 0.5)
}
