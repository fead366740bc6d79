package intent

import (
	"strings"

	"github.com/kalebecaldas/zorahapp/internal/workflow"
)

// Intent is the deterministic classification the keyword matcher
// produces before any LLM is consulted.
type Intent string

const (
	IntentNone         Intent = ""
	IntentLateness     Intent = "lateness"
	IntentComplaint    Intent = "complaint"
	IntentHumanRequest Intent = "human_request"
	IntentScheduling   Intent = "scheduling"
	IntentRegistration Intent = "registration"
)

// keywordSets maps each intent to the pt-BR fragments matched against
// normalized (lowercased, accent-folded) text. Fragments are substrings
// on purpose: "atras" covers atraso, atrasar, atrasado.
var keywordSets = map[Intent][]string{
	IntentLateness: {
		"atras", "vou chegar mais tarde", "chego mais tarde", "to chegando",
	},
	IntentComplaint: {
		"reclamac", "reclamar", "pessimo", "horrivel", "absurdo",
		"insatisfeit", "quero meu dinheiro", "procon",
	},
	IntentHumanRequest: {
		"atendente", "falar com alguem", "falar com uma pessoa", "humano",
		"pessoa de verdade", "falar com a recepcao",
	},
	IntentScheduling: {
		"agendar", "agendamento", "marcar consulta", "marcar um horario",
		"marcar sessao", "remarcar", "quero marcar", "tem horario",
	},
	IntentRegistration: {
		"cadastro", "cadastrar", "primeira vez", "fazer minha ficha",
		"sou paciente novo", "paciente nova",
	},
}

// matchOrder keeps classification deterministic when several intents
// match: transfer triggers win over flow starters.
var matchOrder = []Intent{
	IntentLateness,
	IntentComplaint,
	IntentHumanRequest,
	IntentScheduling,
	IntentRegistration,
}

// Matcher is the cheap rule-based classifier that runs before the LLM.
type Matcher struct{}

func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match returns the best intent for the text and a confidence score.
// One keyword hit scores 0.6; each extra hit adds 0.15 up to 0.95.
func (m *Matcher) Match(text string) (Intent, float64) {
	normalized := workflow.Normalize(text)
	if normalized == "" {
		return IntentNone, 0
	}

	bestIntent := IntentNone
	bestScore := 0.0
	for _, intent := range matchOrder {
		hits := 0
		for _, kw := range keywordSets[intent] {
			if containsWord(normalized, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := 0.6 + 0.15*float64(hits-1)
		if score > 0.95 {
			score = 0.95
		}
		if score > bestScore {
			bestIntent = intent
			bestScore = score
		}
	}
	return bestIntent, bestScore
}

func containsWord(normalizedText, fragment string) bool {
	return strings.Contains(normalizedText, fragment)
}
