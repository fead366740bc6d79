package workflow

import (
	"fmt"
	"regexp"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Render substitutes {{key}} placeholders with context values. Unknown
// keys are left intact so authoring mistakes stay visible instead of
// silently producing empty text.
func Render(template string, context map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		if v, ok := context[key]; ok {
			return fmt.Sprint(v)
		}
		return match
	})
}
