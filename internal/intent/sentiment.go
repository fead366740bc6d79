package intent

import (
	"strings"

	"github.com/kalebecaldas/zorahapp/internal/workflow"
)

// Analyzer is a small lexicon-based sentiment check. It exists to flag
// clearly negative messages as transfer triggers regardless of intent,
// not to be a general sentiment model.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

var negativeTerms = map[string]int{
	"pessimo":     2,
	"horrivel":    2,
	"absurdo":     2,
	"ridiculo":    2,
	"revoltad":    2,
	"inaceitavel": 2,
	"nunca mais":  2,
	"descaso":     2,
	"enganad":     2,
	"ruim":        1,
	"demora":      1,
	"decepcionad": 1,
	"insatisfeit": 1,
	"frustrad":    1,
	"mal atendid": 1,
}

var positiveTerms = []string{
	"obrigad", "otimo", "excelente", "maravilhos", "adorei", "perfeito",
}

// IsNegative reports whether the text crosses the negative threshold
// (score >= 2 after positives are discounted).
func (a *Analyzer) IsNegative(text string) bool {
	normalized := workflow.Normalize(text)
	if normalized == "" {
		return false
	}

	score := 0
	for term, weight := range negativeTerms {
		if strings.Contains(normalized, term) {
			score += weight
		}
	}
	for _, term := range positiveTerms {
		if strings.Contains(normalized, term) {
			score--
		}
	}
	return score >= 2
}
