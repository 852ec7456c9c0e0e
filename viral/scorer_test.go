package viral

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const hotTranscript = `¿Sabías que el secreto de los mejores creadores es increíble?
No vas a creer lo que descubrí, es una locura total. La regla número 3 es la
que nadie quiere decirlo en voz alta. Pero por eso funciona, porque además la
mayoría no sabe que existe. Comparte esto con alguien que lo necesite y dime
en los comentarios si a ti te pasa lo mismo, ¿estás de acuerdo? De repente
todo cambió, resulta que el secreto de verdad es brutal.`

const flatTranscript = `hoy vamos a repasar algunos temas generales del día a
día tal como los vimos la semana pasada sin demasiadas novedades por delante
seguimos con la agenda habitual y poco más que contar por hoy`

func TestScoreSeparatesHotFromFlat(t *testing.T) {
	hot := Score(hotTranscript, 30)
	flat := Score(flatTranscript, 30)

	require.Greater(t, hot.ViralityCoefficient, flat.ViralityCoefficient)
	require.Greater(t, hot.HookStrength, flat.HookStrength)
	require.Greater(t, hot.Shareability, flat.Shareability)
	require.NotEqual(t, "skip", hot.Recommendation)
}

func TestScoreAxesStayInRange(t *testing.T) {
	loud := strings.Repeat("¡¡INCREÍBLE!! ¡brutal! comparte esto ¿sabías que? ", 40)
	m := Score(loud, 30)

	for name, axis := range map[string]float64{
		"emotional_impact":      m.EmotionalImpact,
		"memorability":          m.Memorability,
		"shareability":          m.Shareability,
		"engagement_potential":  m.EngagementPotential,
		"hook_strength":         m.HookStrength,
		"retention_probability": m.RetentionProbability,
		"virality_coefficient":  m.ViralityCoefficient,
	} {
		require.GreaterOrEqual(t, axis, 0.0, name)
		require.LessOrEqual(t, axis, 1.0, name)
	}
}

func TestScoreEmptyTranscript(t *testing.T) {
	m := Score("", 30)
	require.Zero(t, m.EmotionalImpact)
	require.Zero(t, m.HookStrength)
	require.Zero(t, m.ViralityCoefficient)
	require.Equal(t, "skip", m.Recommendation)
	require.Empty(t, m.OptimalCutPoints)
}

func TestViralityCoefficientHookEmotionBoost(t *testing.T) {
	m := Metrics{
		HookStrength:         0.8,
		EmotionalImpact:      0.7,
		Shareability:         0.5,
		EngagementPotential:  0.5,
		Memorability:         0.5,
		RetentionProbability: 0.5,
	}
	sum := weightHook*0.8 + weightEmotional*0.7 + weightShareability*0.5 +
		weightEngagement*0.5 + weightMemorability*0.5 + weightRetention*0.5
	require.InDelta(t, sum*1.3, viralityCoefficient(m), 1e-9)
}

func TestViralityCoefficientShareEngagementBoost(t *testing.T) {
	m := Metrics{
		HookStrength:         0.5,
		EmotionalImpact:      0.5,
		Shareability:         0.7,
		EngagementPotential:  0.65,
		Memorability:         0.5,
		RetentionProbability: 0.5,
	}
	sum := weightHook*0.5 + weightEmotional*0.5 + weightShareability*0.7 +
		weightEngagement*0.65 + weightMemorability*0.5 + weightRetention*0.5
	require.InDelta(t, sum*1.2, viralityCoefficient(m), 1e-9)
}

func TestViralityCoefficientWeakAxesPenalty(t *testing.T) {
	m := Metrics{
		HookStrength:         0.1,
		EmotionalImpact:      0.2,
		Shareability:         0.25,
		EngagementPotential:  0.9,
		Memorability:         0.9,
		RetentionProbability: 0.9,
	}
	sum := weightHook*0.1 + weightEmotional*0.2 + weightShareability*0.25 +
		weightEngagement*0.9 + weightMemorability*0.9 + weightRetention*0.9
	require.InDelta(t, sum*0.7, viralityCoefficient(m), 1e-9)
}

func TestViralityCoefficientClampedToOne(t *testing.T) {
	m := Metrics{
		HookStrength:         1,
		EmotionalImpact:      1,
		Shareability:         1,
		EngagementPotential:  1,
		Memorability:         1,
		RetentionProbability: 1,
	}
	require.Equal(t, 1.0, viralityCoefficient(m))
}

func TestRecommendationTiers(t *testing.T) {
	require.Equal(t, "publish_now", recommendation(0.8))
	require.Equal(t, "strong_candidate", recommendation(0.65))
	require.Equal(t, "worth_testing", recommendation(0.45))
	require.Equal(t, "needs_stronger_hook", recommendation(0.25))
	require.Equal(t, "skip", recommendation(0.24))
}

func TestHookStrengthOnlyLooksAtOpening(t *testing.T) {
	filler := strings.Repeat("seguimos hablando del tema principal con calma ", 20)
	hookAtStart := "no vas a creer lo que descubrí " + filler
	hookAtEnd := filler + " no vas a creer lo que descubrí"

	require.Greater(t, hookStrength(hookAtStart, 60), hookStrength(hookAtEnd, 60))
}

func TestConversationalStructureNeedsTwoKinds(t *testing.T) {
	require.True(t, conversationalStructure("me gusta pero no lo compro porque es caro"))
	require.False(t, conversationalStructure("me gusta pero no lo compro"))
	require.False(t, conversationalStructure("un día cualquiera sin conectores"))
}

func TestKeywords(t *testing.T) {
	transcript := `la historia de esta historia es otra historia porque porque
		porque el creador cuenta secretos secretos y un par de cosas`
	keywords := Keywords(transcript, 3)

	require.NotEmpty(t, keywords)
	require.Equal(t, "historia", keywords[0])
	require.NotContains(t, keywords, "porque")
	require.LessOrEqual(t, len(keywords), 3)
}

func TestKeywordsEmptyTranscript(t *testing.T) {
	require.Empty(t, Keywords("", 5))
}
