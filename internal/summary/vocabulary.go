package summary

import (
	"strings"

	"github.com/lecturecast/engine/internal/session"
)

// ParseVocabulary parses the LLM Gateway's vocabulary-purpose completion
// into structured items. The prompt (prompts.ForVocabulary) asks for one
// term per line in "Term: definition (context)" form; this is a best-effort
// line parser, not a strict grammar, since the source is a free-text
// completion rather than a structured response.
func ParseVocabulary(text string) []session.VocabularyItem {
	var items []session.VocabularyItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		if line == "" {
			continue
		}

		term, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		term = strings.TrimSpace(term)
		rest = strings.TrimSpace(rest)
		if term == "" || rest == "" {
			continue
		}

		definition := rest
		context := ""
		if open := strings.LastIndex(rest, "("); open != -1 && strings.HasSuffix(rest, ")") {
			definition = strings.TrimSpace(rest[:open])
			context = strings.TrimSpace(rest[open+1 : len(rest)-1])
		}

		items = append(items, session.VocabularyItem{
			Term:       term,
			Definition: definition,
			Context:    context,
		})
	}
	return items
}
