package gemini

import (
	"regexp"
	"strings"
)

// Matches a fenced block with an optional language tag, e.g.
// ```python\n...\n```.
var fencePattern = regexp.MustCompile("```(?:\\w+)?\\n([\\s\\S]*?)```")

// StripCodeFences removes Markdown code fences from model output,
// keeping the fenced content. Text without fences is returned trimmed.
func StripCodeFences(text string) string {
	cleaned := fencePattern.ReplaceAllString(text, "$1")
	return strings.TrimSpace(cleaned)
}
