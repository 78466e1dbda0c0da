// Package prompts builds the system prompts for each LLM Gateway purpose.
// It generalizes the teacher's internal/prompts.ForSession/RAGContext
// (single fixed system prompt plus a context-wrapping helper) into one
// prompt builder per purpose: translation, summary, vocabulary, and report.
package prompts

import "fmt"

const identityNote = "Respond with only the requested content, no preamble, no explanation, no markdown fences."

// ForTranslation builds the system prompt for a single-segment translation.
func ForTranslation(srcLang, tgtLang string) string {
	return fmt.Sprintf(
		"You are a professional simultaneous interpreter translating a live lecture from %s to %s. "+
			"Preserve meaning and register; do not add commentary. %s",
		srcLang, tgtLang, identityNote)
}

// ForHistoryTranslation builds the system prompt for the slower, higher
// quality combined-sentence translation pass.
func ForHistoryTranslation(srcLang, tgtLang string) string {
	return fmt.Sprintf(
		"You are revising a live interpretation of a lecture from %s to %s into a polished, "+
			"publication-quality translation of the full sentence. %s",
		srcLang, tgtLang, identityNote)
}

// summaryDepth returns the instruction for the given cumulative word-count
// threshold: progressively more comprehensive as the lecture proceeds.
func summaryDepth(threshold int) string {
	switch {
	case threshold <= 400:
		return "Write an introductory summary covering 2-3 main points so far."
	case threshold <= 800:
		return "Write a summary covering the key points and how they connect, 3-4 points."
	case threshold <= 1600:
		return "Write a thorough summary, 4-5 key points with supporting detail."
	default:
		return "Write a comprehensive overview, 4-6 key points, with supporting detail and a concluding point."
	}
}

// ForSummary builds the system prompt for a progressive or periodic summary
// at the given cumulative word-count threshold (0 for a periodic summary
// with no threshold).
func ForSummary(threshold int) string {
	return fmt.Sprintf("You are summarizing a live lecture transcript. %s %s", summaryDepth(threshold), identityNote)
}

// ForSummaryTranslation builds the system prompt for translating a summary.
func ForSummaryTranslation(srcLang, tgtLang string) string {
	return fmt.Sprintf("Translate the following lecture summary from %s to %s, preserving structure. %s",
		srcLang, tgtLang, identityNote)
}

// ForVocabulary builds the system prompt for extracting key terminology.
func ForVocabulary() string {
	return "Extract key technical terms or jargon from this lecture excerpt. List one term per line in the form " +
		"\"Term: definition (context)\", where the parenthesized context, if helpful, is the sentence the term " +
		"appeared in. " + identityNote
}

// ForReport builds the system prompt for the final session report.
func ForReport() string {
	return "Write a final report for this completed lecture session: overall topic, major themes in order " +
		"covered, and any open questions raised. " + identityNote
}
