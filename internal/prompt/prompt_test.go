package prompt

import (
	"strings"
	"testing"
)

func TestCompose_WithoutQuestion(t *testing.T) {
	got := Compose("Be brief.", "page text", "")
	want := "System: Be brief.\n\nContent:\npage text"
	if got != want {
		t.Errorf("Compose = %q, want %q", got, want)
	}
}

func TestCompose_WhitespaceQuestionIsOmitted(t *testing.T) {
	got := Compose("Be brief.", "page text", " \t\n ")
	if strings.Contains(got, "User question:") {
		t.Errorf("Compose = %q, should not contain a question section", got)
	}
}

func TestCompose_WithTrimmedQuestion(t *testing.T) {
	got := Compose("Be brief.", "page text", "  why? ")
	want := "System: Be brief.\n\nContent:\npage text\n\nUser question: why?"
	if got != want {
		t.Errorf("Compose = %q, want %q", got, want)
	}
}

func TestCompose_EmptySystemAndContent(t *testing.T) {
	got := Compose("", "", "q")
	want := "System: \n\nContent:\n\n\nUser question: q"
	if got != want {
		t.Errorf("Compose = %q, want %q", got, want)
	}
}

func TestCompose_ContentKeptVerbatim(t *testing.T) {
	content := "  line one\n\nline two  "
	got := Compose("s", content, "")
	if !strings.HasSuffix(got, "Content:\n"+content) {
		t.Errorf("Compose = %q, content not verbatim", got)
	}
}
