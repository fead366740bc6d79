package workflow

import (
	"fmt"
	"strings"
)

// accent folding for pt-BR user text, so "reclamação" matches "reclamacao"
var accentReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n",
)

// Normalize lowercases, trims and folds accents so token matching is
// insensitive to casing and diacritics.
func Normalize(s string) string {
	return accentReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// evaluateExpression resolves what a CONDITION node compares: the
// inbound text ("input" or empty) or a context value by key.
func evaluateExpression(expr string, state *State) string {
	if expr == "" || expr == ContextKeyInput {
		if v, ok := state.Context[ContextKeyInput]; ok {
			return fmt.Sprint(v)
		}
		return ""
	}
	key := strings.TrimPrefix(expr, "context.")
	if v, ok := state.Context[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

// matchEdge reports whether the evaluated text selects this edge.
// The edge's condition is a pipe-delimited token list; an edge with no
// condition uses its port as the sole token. A token matches on
// normalized equality or containment in the evaluated text.
func matchEdge(e Edge, evaluated string) bool {
	tokens := e.Condition
	if tokens == "" {
		tokens = e.Port
	}
	text := Normalize(evaluated)
	if text == "" {
		return false
	}
	for _, raw := range strings.Split(tokens, "|") {
		token := Normalize(raw)
		if token == "" {
			continue
		}
		if text == token || strings.Contains(text, token) {
			return true
		}
	}
	return false
}

// selectEdge walks the outgoing edges in declaration order and returns
// the first match, falling back to the "default" port.
func selectEdge(edges []Edge, evaluated string) (Edge, error) {
	for _, e := range edges {
		if e.Port == PortDefault {
			continue
		}
		if matchEdge(e, evaluated) {
			return e, nil
		}
	}
	for _, e := range edges {
		if e.Port == PortDefault {
			return e, nil
		}
	}
	return Edge{}, ErrNoMatchingEdge
}

// mainEdge returns the unconditional outgoing edge of MESSAGE/ACTION/START
// nodes: the edge with port "main", or the sole outgoing edge.
func mainEdge(edges []Edge) (Edge, error) {
	for _, e := range edges {
		if e.Port == PortMain {
			return e, nil
		}
	}
	if len(edges) == 1 {
		return edges[0], nil
	}
	return Edge{}, ErrNoMatchingEdge
}
