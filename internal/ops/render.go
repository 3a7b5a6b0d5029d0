package ops

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var answerPolicy = bluemonday.UGCPolicy()

// RenderAnswer converts a model answer from Markdown to sanitized HTML.
// Raw HTML in the answer is dropped by goldmark; bluemonday strips anything
// unsafe that Markdown itself can express (javascript: links and the like).
func RenderAnswer(md string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTMLEscapeString(md)
	}
	return answerPolicy.Sanitize(buf.String())
}
