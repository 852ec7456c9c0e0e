package viral

import "regexp"

// Pattern tables for the standalone clip grader. Like the highlight
// analyzer, transcripts arrive in Spanish with the occasional English loan
// phrase, so both are matched. Everything is compiled once at package init;
// scoring only runs FindAllStringIndex over these tables.

// highIntensityPatterns feed the emotional-impact axis: stacked exclamation
// marks, love/hate superlatives and disbelief idioms.
var highIntensityPatterns = compile(
	`!{2,}`,
	`\b(me encanta|lo amo|lo odio|odio esto)\b`,
	`\b(el|la) (mejor|peor) .{0,30}(de mi vida|del mundo|de la historia)`,
	`no (puedo|podía) creer(lo)?`,
	`\b(increíble|impresionante|brutal|espectacular|terrible)\b`,
	`qué (locura|barbaridad|fuerte|horror)`,
	`me (muero|morí|explota la cabeza)`,
	`\b(best|worst) .{0,20}(ever|of my life)`,
	`\bi (love|hate) (this|it)\b`,
	`\bunbelievable\b`,
)

// memorabilitySignals catch the "save this" content shapes: numbered tips,
// named rules and formulas, note-this-down imperatives.
var memorabilitySignals = compile(
	`\b\d+ (tips?|trucos?|claves?|formas?|maneras?|pasos?|secretos?|errores?|razones?)\b`,
	`\b(truco|secreto|regla|paso) (número|numero) \d+\b`,
	`\b(recuerda|apunta|anota|guarda) (esto|bien|este)\b`,
	`\bla (fórmula|formula|regla) (de|del|es)\b`,
	`\b\d+ (tips?|ways|steps|mistakes|rules)\b`,
)

// quotedPassage matches short quotable fragments. Straight and angled
// quotes both appear in whisper output.
var quotedPassage = regexp.MustCompile(`["«“]([^"»”]{10,50})["»”]`)

var shareTriggers = compile(
	`comparte (esto|este)`,
	`(manda|envía|pasa) (esto|este|el vídeo|el video) a`,
	`etiqueta a`,
	`(tienes|tenéis|tienen) que ver`,
	`enséñale esto a`,
	`share this`,
	`send this to`,
	`tag (a friend|someone)`,
)

// controversyCues mark defensible hot takes, the tasteful end of the
// controversy spectrum.
var controversyCues = compile(
	`opinión impopular`,
	`nadie (quiere|se atreve a) decirlo`,
	`(sé|se) que me van a (criticar|funar|cancelar)`,
	`no estoy de acuerdo con`,
	`la gente se enoja cuando`,
	`unpopular opinion`,
	`hot take`,
)

var infoValueCues = compile(
	`(¿)?sabías que`,
	`el dato (es|que)`,
	`la mayoría no sabe`,
	`casi nadie sabe`,
	`(el|un) estudio (dice|demuestra|encontró)`,
	`está (comprobado|demostrado)`,
	`did you know`,
	`fun fact`,
)

var engagementTriggers = compile(
	`(comenta|dime|cuéntame|escribe) (en los comentarios|abajo|aquí)`,
	`¿(tú|ustedes|vosotros) qué (harías|harían|opinas|opinan|piensas)`,
	`¿estás de acuerdo`,
	`¿a ti te (pasa|pasó|ha pasado)`,
	`(dale|deja tu) like`,
	`sígueme para`,
	`comment below`,
	`let me know`,
)

// relatableTemplates are the "this is so me" formats.
var relatableTemplates = compile(
	`a todos nos (ha pasado|pasa|pasó)`,
	`si eres de los que`,
	`¿quién más`,
	`(tú|usted) también`,
	`cuando (tu|tú|te|estás)`,
	`todos (hemos|tenemos|conocemos)`,
	`pov:?`,
	`we('ve| have) all`,
)

// Conversational-structure detectors. Engagement gets a boost when at least
// two distinct kinds are present, not just two hits of the same kind.
var structureFamilies = map[string][]*regexp.Regexp{
	"contrast": compile(
		`\b(pero|sin embargo|aunque|en cambio|a pesar de)\b`,
		`\b(but|however|although)\b`,
	),
	"cause": compile(
		`\b(porque|por eso|así que|ya que|por lo tanto)\b`,
		`\b(because|that'?s why)\b`,
	),
	"additive": compile(
		`\b(además|también|encima|aparte|es más)\b`,
		`\b(also|on top of that)\b`,
	),
	"question_statement": compile(
		`[?][^?¿]{10,}`,
	),
}

// hookPatterns grade the opening seconds; curiosityBoosters are weaker
// openers that still buy attention.
var hookPatterns = compile(
	`no (vas|van) a creer`,
	`(mira|miren|escucha|escuchen) esto`,
	`lo que nadie te (dice|cuenta)`,
	`te voy a (contar|enseñar|mostrar|revelar)`,
	`espera a ver`,
	`esto (te va a|les va a|va a) (cambiar|sorprender|volar)`,
	`(¿)?sabías que`,
	`deja de (hacer|usar|comprar)`,
	`you won'?t believe`,
	`wait for it`,
	`stop doing`,
)

var curiosityBoosters = compile(
	`el secreto (de|para|es)`,
	`lo que pasó después`,
	`nadie habla de`,
	`la verdad (sobre|detrás de|es que)`,
	`lo que descubrí`,
	`hay algo que`,
	`what happened next`,
	`the truth about`,
)

// narrativeTension marks story beats that keep a viewer through the middle
// of a clip.
var narrativeTension = compile(
	`de repente`,
	`en ese momento`,
	`y entonces`,
	`hasta que`,
	`justo cuando`,
	`no sabía que`,
	`resulta que`,
	`lo que no (esperaba|sabía)`,
	`plot twist`,
	`all of a sudden`,
)

// intensityWords feed the per-segment energy curve used for cut points and
// emotion variance.
var intensityWords = compile(
	`\b(increíble|brutal|locura|impresionante|espectacular|tremendo)\b`,
	`\b(nunca|jamás|siempre|todo el mundo|nadie)\b`,
	`\b(gigante|enorme|muchísimo|demasiado)\b`,
	`\b(insane|crazy|amazing|huge|never|always)\b`,
)

// Stopwords excluded from keyword extraction; transcripts are Spanish-first
// so the list leans that way.
var keywordStopwords = map[string]struct{}{
	"estaba": {}, "estamos": {}, "porque": {}, "cuando": {}, "entonces": {},
	"también": {}, "siempre": {}, "ahora": {}, "mucho": {}, "muchos": {},
	"donde": {}, "quiero": {}, "puede": {}, "pueden": {}, "hacer": {},
	"tiene": {}, "tienen": {}, "tenemos": {}, "sobre": {}, "desde": {},
	"hasta": {}, "había": {}, "están": {}, "estas": {}, "estos": {},
	"nosotros": {}, "ustedes": {}, "vamos": {}, "bueno": {}, "cosas": {},
	"gente": {}, "decir": {}, "dicen": {}, "nunca": {}, "nada": {},
	"todos": {}, "todas": {}, "mismo": {}, "misma": {}, "being": {},
	"about": {}, "their": {}, "there": {}, "would": {}, "could": {},
	"should": {}, "because": {}, "people": {}, "thing": {}, "things": {},
}

func compile(exprs ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		patterns[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return patterns
}

func countMatches(text string, patterns []*regexp.Regexp) int {
	var hits int
	for _, pattern := range patterns {
		hits += len(pattern.FindAllStringIndex(text, -1))
	}
	return hits
}

func anyMatch(text string, patterns []*regexp.Regexp) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
