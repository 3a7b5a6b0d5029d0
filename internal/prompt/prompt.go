// Package prompt builds the single prompt string sent to the inference endpoint.
package prompt

import "strings"

const sectionSep = "\n\n"

// Compose joins the system instruction, the content and an optional question
// into blank-line separated sections:
//
//	System: <systemPrompt>
//
//	Content:
//	<content>
//
//	User question: <question>
//
// The question section is present only when the trimmed question is non-empty.
// Nothing is truncated.
func Compose(systemPrompt, content, question string) string {
	parts := []string{
		"System: " + systemPrompt,
		"Content:\n" + content,
	}
	if q := strings.TrimSpace(question); q != "" {
		parts = append(parts, "User question: "+q)
	}
	return strings.Join(parts, sectionSep)
}
